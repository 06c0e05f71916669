// Package notification composes violence alerts and delivers them over
// independent channels from a bounded worker pool.
package notification

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vigil-cam/vigil/internal/enrich"
	"github.com/vigil-cam/vigil/internal/evidence"
)

// AlertSubject is the subject line of every alert.
const AlertSubject = "Violence Detected Alert"

// ClipAttachmentName is the attachment name of the evidence clip.
const ClipAttachmentName = "violence_clip.mp4"

// AlertJob is one confirmed event waiting for delivery. Jobs are immutable
// once dispatched.
type AlertJob struct {
	Evidence *evidence.EvidenceSet // nil for alerts without evidence
	Context  enrich.AlertContext
	Source   string // stream that produced the event
}

// Attachment is a file sent along with an alert.
type Attachment struct {
	Path string // file on disk
	Name string // name presented to the recipient
}

// Alert is the channel independent payload of a job.
type Alert struct {
	Subject     string
	Body        string
	Short       string // single message body for SMS and push
	Timestamp   string
	Location    string
	Source      string
	Site        string
	EventID     string
	Attachments []Attachment
}

// Compose builds the alert payload of job. Key frames are attached as
// frame_N.jpg in capture order and the clip as violence_clip.mp4.
func Compose(job AlertJob, site string) *Alert {
	a := &Alert{
		Subject:   AlertSubject,
		Timestamp: job.Context.Timestamp,
		Location:  job.Context.Location,
		Source:    job.Source,
		Site:      site,
	}
	if a.Location == "" {
		a.Location = enrich.UnknownLocation
	}

	if ev := job.Evidence; ev != nil {
		a.EventID = ev.EventID
		for i, path := range ev.KeyFrames {
			a.Attachments = append(a.Attachments, Attachment{
				Path: path,
				Name: fmt.Sprintf("frame_%d%s", i+1, filepath.Ext(path)),
			})
		}
		if ev.ClipPath != "" {
			a.Attachments = append(a.Attachments, Attachment{Path: ev.ClipPath, Name: ClipAttachmentName})
		}
	}

	a.Body = composeBody(a)
	a.Short = composeShort(a)
	return a
}

func composeBody(a *Alert) string {
	var b strings.Builder
	b.WriteString("Violence has been detected")
	if a.Source != "" {
		fmt.Fprintf(&b, " in %s", a.Source)
	}
	b.WriteString(".\n\n")
	if a.Site != "" {
		fmt.Fprintf(&b, "Site: %s\n", a.Site)
	}
	fmt.Fprintf(&b, "Location: %s\n", a.Location)
	fmt.Fprintf(&b, "Time: %s\n", a.Timestamp)
	if a.EventID != "" {
		fmt.Fprintf(&b, "Event: %s\n", a.EventID)
	}
	b.WriteString("\n")
	if len(a.Attachments) > 0 {
		b.WriteString("Attached: key frames and a video clip.\n")
	} else {
		b.WriteString("No evidence was recorded for this alert.\n")
	}
	return b.String()
}

func composeShort(a *Alert) string {
	var b strings.Builder
	b.WriteString("Violence detected!")
	if a.Site != "" {
		fmt.Fprintf(&b, " [%s]", a.Site)
	}
	fmt.Fprintf(&b, "\nLocation: %s\nTime: %s", a.Location, a.Timestamp)
	return b.String()
}
