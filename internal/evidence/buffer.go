package evidence

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/vigil-cam/vigil/internal/detection"
	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/observability/metrics"
)

// Config holds buffer settings.
type Config struct {
	Root          string   // evidence root directory
	KeyFrameCap   int      // max key frames per run
	MaxClipFrames int      // a confirmed run is handed off once its clip holds this many frames, 0 disables
	JPEGQuality   int      // key frame quality
	Clip          ClipSpec // clip geometry, zero width/height are taken from the first frame
	Source        string   // stream name for logs
	Metrics       *metrics.PipelineMetrics
}

// Buffer captures the evidence of the current run of one stream. It is not
// safe for concurrent use; the stream loop owns it.
type Buffer struct {
	ctx    context.Context
	cfg    Config
	clips  ClipOpener
	newID  func() string
	logger *slog.Logger

	open       bool
	confirmed  bool
	eventID    string
	dir        string
	clip       ClipWriter
	clipPath   string
	clipFrames int
	keyFrames  []string
	startedAt  int
	endedAt    int
}

// NewBuffer creates a buffer. A nil clip opener records key frames only.
func NewBuffer(ctx context.Context, cfg Config, clips ClipOpener) *Buffer {
	if cfg.KeyFrameCap < 0 {
		cfg.KeyFrameCap = 0
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}
	return &Buffer{
		ctx:    ctx,
		cfg:    cfg,
		clips:  clips,
		newID:  uuid.NewString,
		logger: getLogger().With("source", cfg.Source),
	}
}

// OnStart opens a new run at frame: a fresh event directory and clip writer.
// The start frame itself is recorded by the following OnFrame call.
func (b *Buffer) OnStart(frame detection.Frame) error {
	if b.open {
		b.logger.Warn("run started while previous run still open, discarding it",
			"event_id", b.eventID)
		b.OnAbort()
	}

	eventID := b.newID()
	dir := filepath.Join(b.cfg.Root, eventID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		b.cfg.Metrics.RecordEvidenceError("create_event_dir")
		return errors.New(err).
			Component("evidence").
			Category(errors.CategoryEvidenceIO).
			Context("operation", "create_event_dir").
			Context("event_id", eventID).
			Build()
	}

	b.eventID = eventID
	b.dir = dir
	b.startedAt = frame.Index
	b.endedAt = frame.Index
	b.keyFrames = b.keyFrames[:0]
	b.clipFrames = 0
	b.confirmed = false
	b.open = true

	if b.clips != nil {
		layout := b.cfg.Clip
		if layout.Width <= 0 || layout.Height <= 0 {
			layout.Width, layout.Height = frame.Width(), frame.Height()
		}
		clipPath := filepath.Join(dir, ClipFileName)
		// The clip outlives stream cancellation until Finalize or OnAbort
		w, err := b.clips.OpenClip(context.WithoutCancel(b.ctx), clipPath, layout)
		if err != nil {
			b.cfg.Metrics.RecordEvidenceError("open_clip")
			b.OnAbort()
			return errors.New(err).
				Component("evidence").
				Category(errors.CategoryEvidenceIO).
				Context("operation", "open_clip").
				Context("event_id", eventID).
				Build()
		}
		b.clip = w
		b.clipPath = clipPath
	}

	b.logger.Debug("evidence run opened", "event_id", eventID, "frame", frame.Index)
	return nil
}

// OnFrame records a frame of the open run. Negative frames and frames
// outside a run are ignored. Key frames are kept up to the configured cap.
func (b *Buffer) OnFrame(frame detection.Frame, positive bool) error {
	if !b.open || !positive {
		return nil
	}

	if b.clip != nil {
		if err := b.clip.WriteFrame(frame.Image); err != nil {
			b.cfg.Metrics.RecordEvidenceError("write_clip_frame")
			return errors.New(err).
				Component("evidence").
				Category(errors.CategoryEvidenceIO).
				FrameContext(b.cfg.Source, frame.Index).
				Context("operation", "write_clip_frame").
				Context("event_id", b.eventID).
				Build()
		}
		b.clipFrames++
	}
	b.endedAt = frame.Index

	if len(b.keyFrames) < b.cfg.KeyFrameCap {
		path := keyFramePath(b.dir, frame.Index)
		if err := writeJPEG(path, frame.Image, b.cfg.JPEGQuality); err != nil {
			b.cfg.Metrics.RecordEvidenceError("write_key_frame")
			return errors.New(err).
				Component("evidence").
				Category(errors.CategoryEvidenceIO).
				FrameContext(b.cfg.Source, frame.Index).
				Context("operation", "write_key_frame").
				Context("event_id", b.eventID).
				Build()
		}
		b.keyFrames = append(b.keyFrames, path)
		b.cfg.Metrics.RecordKeyFrame()
	}
	return nil
}

// OnConfirm marks the open run as confirmed. The clip keeps recording until
// Finalize closes the run.
func (b *Buffer) OnConfirm() {
	if b.open {
		b.confirmed = true
	}
}

// Finalize closes the clip of a confirmed run and returns its EvidenceSet.
// The buffer is idle afterwards. A clip finalization failure discards the
// run's artifacts.
func (b *Buffer) Finalize() (*EvidenceSet, error) {
	if !b.open {
		return nil, ErrNotOpen
	}
	if !b.confirmed {
		return nil, ErrNotConfirmed
	}

	set := &EvidenceSet{
		EventID:   b.eventID,
		Dir:       b.dir,
		KeyFrames: append([]string(nil), b.keyFrames...),
		ClipPath:  b.clipPath,
		StartedAt: b.startedAt,
		EndedAt:   b.endedAt,
	}

	if b.clip != nil {
		if err := b.clip.Close(); err != nil {
			b.cfg.Metrics.RecordEvidenceError("finalize_clip")
			b.clip = nil
			b.OnAbort()
			return nil, errors.New(err).
				Component("evidence").
				Category(errors.CategoryEvidenceIO).
				Context("operation", "finalize_clip").
				Context("event_id", set.EventID).
				Build()
		}
	}

	b.logger.Info("evidence run finalized",
		"event_id", set.EventID,
		"started_at", set.StartedAt,
		"ended_at", set.EndedAt,
		"key_frames", len(set.KeyFrames),
		"clip_frames", b.clipFrames)

	b.reset()
	return set, nil
}

// OnAbort discards the open run: the clip is dropped and the event directory
// with its key frames is removed.
func (b *Buffer) OnAbort() {
	if !b.open {
		return
	}
	if b.clip != nil {
		if err := b.clip.Discard(); err != nil {
			b.logger.Warn("failed to discard clip", "event_id", b.eventID, "error", err)
		}
	}
	if err := os.RemoveAll(b.dir); err != nil {
		b.cfg.Metrics.RecordEvidenceError("remove_event_dir")
		b.logger.Warn("failed to remove evidence directory", "event_id", b.eventID, "error", err)
	}
	b.logger.Debug("evidence run discarded", "event_id", b.eventID)
	b.reset()
}

// OnStreamEnd closes whatever run is open when the stream ends. A confirmed
// run is finalized; an unconfirmed one is discarded and nil is returned.
func (b *Buffer) OnStreamEnd() (*EvidenceSet, error) {
	if !b.open {
		return nil, nil
	}
	if b.confirmed {
		return b.Finalize()
	}
	b.OnAbort()
	return nil, nil
}

// ClipFull reports whether the open run reached the clip frame limit.
func (b *Buffer) ClipFull() bool {
	return b.open && b.cfg.MaxClipFrames > 0 && b.clipFrames >= b.cfg.MaxClipFrames
}

// Open reports whether a run is being recorded.
func (b *Buffer) Open() bool { return b.open }

// Confirmed reports whether the open run was confirmed.
func (b *Buffer) Confirmed() bool { return b.open && b.confirmed }

// EventID returns the id of the open run, empty when idle.
func (b *Buffer) EventID() string { return b.eventID }

// KeyFrameCount returns the number of key frames of the open run.
func (b *Buffer) KeyFrameCount() int { return len(b.keyFrames) }

func (b *Buffer) reset() {
	b.open = false
	b.confirmed = false
	b.eventID = ""
	b.dir = ""
	b.clip = nil
	b.clipPath = ""
	b.clipFrames = 0
	b.keyFrames = nil
	b.startedAt = 0
	b.endedAt = 0
}
