// Package evidence records the key frames and clip of a detection run and
// hands them off as an EvidenceSet once the run is confirmed and closed.
//
// Layout on disk:
//
//	<root>/<event-id>/violence_clip.mp4
//	<root>/<event-id>/violence_frame_<frame-index>.jpg
package evidence

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/vigil-cam/vigil/internal/errors"
)

const (
	// ClipFileName is the file name of the clip inside an event directory.
	ClipFileName = "violence_clip.mp4"
	// keyFramePattern names key frames by their stream frame index.
	keyFramePattern = "violence_frame_%d.jpg"
	// DefaultKeyFrameCap bounds the number of key frames per run.
	DefaultKeyFrameCap = 5
	// DefaultJPEGQuality is used for key frames when no quality is configured.
	DefaultJPEGQuality = 90
)

var (
	// ErrNotOpen is returned when finalizing without an open run.
	ErrNotOpen = errors.NewStd("evidence buffer has no open run")
	// ErrNotConfirmed is returned when finalizing a run that was never confirmed.
	ErrNotConfirmed = errors.NewStd("evidence run not confirmed")
)

// EvidenceSet is the evidence of one confirmed run. It is immutable after
// hand-off.
type EvidenceSet struct {
	EventID   string   // unique per run
	Dir       string   // event directory holding all artifacts
	KeyFrames []string // key frame paths in capture order
	ClipPath  string   // finalized clip, empty if no clip was recorded
	StartedAt int      // index of the first frame of the run
	EndedAt   int      // index of the last positive frame recorded
}

// Empty reports whether the set carries no artifacts.
func (s *EvidenceSet) Empty() bool {
	return s == nil || (len(s.KeyFrames) == 0 && s.ClipPath == "")
}

// Remove deletes the event directory.
func (s *EvidenceSet) Remove() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(s.Dir); err != nil {
		return errors.New(err).
			Component("evidence").
			Category(errors.CategoryEvidenceIO).
			Context("operation", "remove_event_dir").
			Context("event_id", s.EventID).
			Build()
	}
	return nil
}

// ClipSpec describes the video geometry of a clip.
type ClipSpec struct {
	Width  int
	Height int
	FPS    float64
}

// Validate checks the layout is usable by an encoder.
func (c ClipSpec) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid clip size %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("invalid clip frame rate %g", c.FPS)
	}
	return nil
}

// ClipWriter receives the frames of one clip.
type ClipWriter interface {
	// WriteFrame appends a frame to the clip.
	WriteFrame(img image.Image) error
	// Close finalizes the clip at its destination path.
	Close() error
	// Discard stops writing and leaves no file at the destination path.
	Discard() error
}

// ClipOpener creates clip writers.
type ClipOpener interface {
	OpenClip(ctx context.Context, path string, layout ClipSpec) (ClipWriter, error)
}

func keyFramePath(dir string, frameIndex int) string {
	return filepath.Join(dir, fmt.Sprintf(keyFramePattern, frameIndex))
}
