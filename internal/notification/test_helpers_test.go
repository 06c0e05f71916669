package notification

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vigil-cam/vigil/internal/enrich"
	"github.com/vigil-cam/vigil/internal/evidence"
)

// recordingNotifier records every alert it receives.
type recordingNotifier struct {
	name  string
	err   error
	delay time.Duration
	panic bool

	mu     sync.Mutex
	alerts []*Alert
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Send(ctx context.Context, alert *Alert) error {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.panic {
		panic("channel exploded")
	}
	r.mu.Lock()
	r.alerts = append(r.alerts, alert)
	r.mu.Unlock()
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func (r *recordingNotifier) received() []*Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Alert(nil), r.alerts...)
}

// blockingNotifier holds every delivery until released.
type blockingNotifier struct {
	release chan struct{}
	started chan struct{}
}

func newBlockingNotifier() *blockingNotifier {
	return &blockingNotifier{release: make(chan struct{}), started: make(chan struct{}, 64)}
}

func (b *blockingNotifier) Name() string { return "blocking" }

func (b *blockingNotifier) Send(ctx context.Context, _ *Alert) error {
	b.started <- struct{}{}
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// testEvidence writes a fake event directory with n key frames and a clip.
func testEvidence(t *testing.T, n int) *evidence.EvidenceSet {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "event-1")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	set := &evidence.EvidenceSet{EventID: "event-1", Dir: dir, StartedAt: 10, EndedAt: 20}
	for i := range n {
		p := filepath.Join(dir, fmt.Sprintf("violence_frame_%d.jpg", i))
		require.NoError(t, os.WriteFile(p, []byte("jpeg"), 0o600))
		set.KeyFrames = append(set.KeyFrames, p)
	}
	set.ClipPath = filepath.Join(dir, evidence.ClipFileName)
	require.NoError(t, os.WriteFile(set.ClipPath, []byte("mp4"), 0o600))
	return set
}

func testJob(t *testing.T) AlertJob {
	t.Helper()
	return AlertJob{
		Evidence: testEvidence(t, 2),
		Context:  enrich.AlertContext{Timestamp: "2024-05-01 12:00:00", Location: "Helsinki, Uusimaa, Finland"},
		Source:   "rtsp://cam-1",
	}
}

func testAlert() *Alert {
	return &Alert{
		Subject:   AlertSubject,
		Body:      "Violence has been detected.",
		Short:     "Violence detected!",
		Timestamp: "2024-05-01 12:00:00",
		Location:  "Helsinki, Uusimaa, Finland",
		EventID:   "event-1",
	}
}
