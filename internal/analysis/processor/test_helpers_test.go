package processor

import (
	"context"
	"image"
	"image/color"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/vigil-cam/vigil/internal/detection"
	"github.com/vigil-cam/vigil/internal/enrich"
	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/evidence"
	"github.com/vigil-cam/vigil/internal/notification"
)

// script describes a stream: 'P' positive, 'N' negative, 'E' classifier error.
type script string

// scriptSource yields one small frame per script character.
type scriptSource struct {
	frames int
	next   int
	err    error  // returned instead of io.EOF when set
	onLast func() // called once when the frames run out
}

func (s *scriptSource) Next() (detection.Frame, error) {
	if s.next == s.frames && s.onLast != nil {
		s.onLast()
		s.onLast = nil
	}
	if s.next >= s.frames {
		if s.err != nil {
			return detection.Frame{}, s.err
		}
		return detection.Frame{}, io.EOF
	}
	s.next++
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	return detection.Frame{Index: s.next, Image: img}, nil
}

// classifierFor answers each frame according to sc, indexed from 1.
func classifierFor(sc script) detection.Classifier {
	return detection.ClassifierFunc(func(_ context.Context, f detection.Frame) ([]detection.Detection, error) {
		switch sc[f.Index-1] {
		case 'P':
			return []detection.Detection{{Label: "VIOLENCE", Confidence: 0.9}}, nil
		case 'E':
			return nil, errors.NewStd("inference service returned 500")
		default:
			return []detection.Detection{{Label: "NON_VIOLENCE", Confidence: 0.8}}, nil
		}
	})
}

// fakeDispatcher records accepted jobs.
type fakeDispatcher struct {
	mu     sync.Mutex
	reject bool
	jobs   []notification.AlertJob
}

func (d *fakeDispatcher) Dispatch(job notification.AlertJob) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reject {
		return false
	}
	d.jobs = append(d.jobs, job)
	return true
}

// fixedContext returns the same context for every alert.
type fixedContext enrich.AlertContext

func (c fixedContext) CurrentContext(context.Context) enrich.AlertContext {
	return enrich.AlertContext(c)
}

// fakeClips opens clips that count frames and write a file on Close.
type fakeClips struct {
	openErr  error
	writeErr error
	writers  []*fakeClip
}

type fakeClip struct {
	ctx       context.Context // the encoder dies with it, like exec.CommandContext
	path      string
	frames    int
	discarded bool
	writeErr  error
}

func (o *fakeClips) OpenClip(ctx context.Context, path string, _ evidence.ClipSpec) (evidence.ClipWriter, error) {
	if o.openErr != nil {
		return nil, o.openErr
	}
	c := &fakeClip{ctx: ctx, path: path, writeErr: o.writeErr}
	o.writers = append(o.writers, c)
	return c, nil
}

func (c *fakeClip) WriteFrame(image.Image) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.frames++
	return nil
}

func (c *fakeClip) Close() error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	return os.WriteFile(c.path, []byte("clip"), 0o600)
}

func (c *fakeClip) Discard() error {
	c.discarded = true
	return nil
}

type harness struct {
	proc       *Processor
	dispatcher *fakeDispatcher
	clips      *fakeClips
	root       string
}

func newHarness(t *testing.T, sc script, threshold, maxClipFrames int) *harness {
	t.Helper()
	return newHarnessContext(t, t.Context(), sc, threshold, maxClipFrames)
}

// newHarnessContext builds the processor on ctx, the stream context.
func newHarnessContext(t *testing.T, ctx context.Context, sc script, threshold, maxClipFrames int) *harness {
	t.Helper()
	h := &harness{
		dispatcher: &fakeDispatcher{},
		clips:      &fakeClips{},
		root:       t.TempDir(),
	}
	h.proc = New(ctx, Config{
		Source:           "cam-1",
		ConfirmThreshold: threshold,
		Label:            "VIOLENCE",
		Evidence: evidence.Config{
			Root:          h.root,
			KeyFrameCap:   evidence.DefaultKeyFrameCap,
			MaxClipFrames: maxClipFrames,
		},
	}, classifierFor(sc), h.clips, h.dispatcher, fixedContext{Timestamp: "2024-05-01 12:00:00", Location: "Lagos, Lagos, Nigeria"})
	return h
}

func (h *harness) run(t *testing.T, sc script) Stats {
	t.Helper()
	stats, err := h.proc.Run(t.Context(), &scriptSource{frames: len(sc)})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return stats
}

func eventDirs(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read evidence root: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
