package evidence

import (
	"context"
	"image"
	"image/color"
	"os"
	"sync"
	"testing"

	"github.com/vigil-cam/vigil/internal/detection"
	"github.com/vigil-cam/vigil/internal/errors"
)

// fakeClipOpener records opened clips. Close writes a marker file at the
// clip path so finalized clips can be asserted on disk.
type fakeClipOpener struct {
	mu        sync.Mutex
	openErr   error
	writeErr  error
	closeErr  error
	writers   []*fakeClipWriter
	lastSpec  ClipSpec
	openCalls int
}

type fakeClipWriter struct {
	path      string
	frames    int
	closed    bool
	discarded bool
	writeErr  error
	closeErr  error
}

func (o *fakeClipOpener) OpenClip(_ context.Context, path string, layout ClipSpec) (ClipWriter, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.openCalls++
	o.lastSpec = layout
	if o.openErr != nil {
		return nil, o.openErr
	}
	w := &fakeClipWriter{path: path, writeErr: o.writeErr, closeErr: o.closeErr}
	o.writers = append(o.writers, w)
	return w, nil
}

func (w *fakeClipWriter) WriteFrame(image.Image) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.frames++
	return nil
}

func (w *fakeClipWriter) Close() error {
	if w.closeErr != nil {
		return w.closeErr
	}
	w.closed = true
	return os.WriteFile(w.path, []byte("clip"), 0o600)
}

func (w *fakeClipWriter) Discard() error {
	w.discarded = true
	return nil
}

func (o *fakeClipOpener) last() *fakeClipWriter {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.writers) == 0 {
		return nil
	}
	return o.writers[len(o.writers)-1]
}

var errDiskFull = errors.NewStd("no space left on device")

func testFrame(index int) detection.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for y := range 12 {
		for x := range 16 {
			img.Set(x, y, color.RGBA{R: uint8(index * 10), G: uint8(x * 8), B: uint8(y * 8), A: 255})
		}
	}
	return detection.Frame{Index: index, Image: img}
}

func newTestBuffer(t *testing.T, cfg Config, opener ClipOpener) *Buffer {
	t.Helper()
	if cfg.Root == "" {
		cfg.Root = t.TempDir()
	}
	if cfg.KeyFrameCap == 0 {
		cfg.KeyFrameCap = DefaultKeyFrameCap
	}
	return NewBuffer(t.Context(), cfg, opener)
}

// recordRun drives a buffer through a run of positive frames first..last.
func recordRun(t *testing.T, b *Buffer, first, last int) {
	t.Helper()
	if err := b.OnStart(testFrame(first)); err != nil {
		t.Fatalf("OnStart: %v", err)
	}
	for i := first; i <= last; i++ {
		if err := b.OnFrame(testFrame(i), true); err != nil {
			t.Fatalf("OnFrame(%d): %v", i, err)
		}
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
