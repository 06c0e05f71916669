// Package processor runs the per-stream detection loop: classify each frame,
// advance the temporal detector, record evidence and hand confirmed events
// to the alert dispatcher.
package processor

import (
	"context"
	"io"
	"log/slog"

	"github.com/vigil-cam/vigil/internal/detection"
	"github.com/vigil-cam/vigil/internal/detector"
	"github.com/vigil-cam/vigil/internal/enrich"
	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/evidence"
	"github.com/vigil-cam/vigil/internal/notification"
	"github.com/vigil-cam/vigil/internal/observability/metrics"
)

// FrameSource yields decoded frames in order. Next returns io.EOF at the end
// of the stream.
type FrameSource interface {
	Next() (detection.Frame, error)
}

// Dispatcher accepts alert jobs without blocking.
type Dispatcher interface {
	Dispatch(job notification.AlertJob) bool
}

// ContextProvider supplies the timestamp and location of an alert.
type ContextProvider interface {
	CurrentContext(ctx context.Context) enrich.AlertContext
}

// Config holds processor settings.
type Config struct {
	Source           string // stream name in logs, metrics and alerts
	ConfirmThreshold int
	Label            string
	Evidence         evidence.Config
	Metrics          *metrics.PipelineMetrics
}

// Stats summarizes a processed stream.
type Stats struct {
	Frames    int // frames read
	Positive  int // frames classified positive
	Confirmed int // runs confirmed
	Aborted   int // runs ended before confirmation
	Failed    int // runs abandoned on evidence errors
	Alerts    int // jobs accepted by the dispatcher
	Dropped   int // jobs the dispatcher rejected
}

// Processor owns the detector and evidence buffer of one stream. It is not
// safe for concurrent use; run one Processor per stream.
type Processor struct {
	source     string
	classifier detection.Classifier
	dispatcher Dispatcher
	enricher   ContextProvider
	metrics    *metrics.PipelineMetrics
	logger     *slog.Logger

	det   *detector.Detector
	buf   *evidence.Buffer
	stats Stats
}

// New creates a processor. clips may be nil to record key frames only.
func New(ctx context.Context, cfg Config, classifier detection.Classifier, clips evidence.ClipOpener,
	dispatcher Dispatcher, enricher ContextProvider) *Processor {
	cfg.Evidence.Source = cfg.Source
	cfg.Evidence.Metrics = cfg.Metrics

	return &Processor{
		source:     cfg.Source,
		classifier: classifier,
		dispatcher: dispatcher,
		enricher:   enricher,
		metrics:    cfg.Metrics,
		logger:     getLogger().With("source", cfg.Source),
		det: detector.New(detector.Config{
			ConfirmThreshold: cfg.ConfirmThreshold,
			Label:            cfg.Label,
			Source:           cfg.Source,
			Metrics:          cfg.Metrics,
		}),
		buf: evidence.NewBuffer(ctx, cfg.Evidence, clips),
	}
}

// Run processes src until it ends, fails or ctx is cancelled. A confirmed
// run still open at that point is finalized and alerted; an unconfirmed one
// is discarded. The returned error is nil at a clean end of stream.
func (p *Processor) Run(ctx context.Context, src FrameSource) (Stats, error) {
	p.logger.Info("stream processing started", "threshold", p.det.Threshold())

	for {
		if err := ctx.Err(); err != nil {
			p.EndStream(ctx)
			return p.stats, err
		}

		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			p.EndStream(ctx)
			p.logger.Info("stream processing finished", "stats", p.stats)
			return p.stats, nil
		}
		if err != nil {
			p.EndStream(ctx)
			return p.stats, errors.New(err).
				Component("processor").
				Category(errors.CategoryMedia).
				FrameContext(p.source, p.stats.Frames+1).
				Context("operation", "read_frame").
				Build()
		}

		p.Step(ctx, frame)
	}
}

// Step processes one frame.
func (p *Processor) Step(ctx context.Context, frame detection.Frame) {
	p.stats.Frames++
	signal, positive := p.det.ObserveFrame(ctx, p.classifier, frame)
	if positive {
		p.stats.Positive++
	}

	switch signal {
	case detector.SignalStart:
		if !p.startRun(frame) {
			return
		}
	case detector.SignalConfirm:
		// A threshold of 1 confirms on the first frame of the run
		if !p.buf.Open() && !p.startRun(frame) {
			return
		}
		p.buf.OnConfirm()
		p.stats.Confirmed++
		p.metrics.RecordRun(p.source, metrics.OutcomeConfirmed)
		p.logger.Warn("violence confirmed",
			"event_id", p.buf.EventID(),
			"frame", frame.Index,
			"consecutive", p.det.Count())
	case detector.SignalAbort:
		p.buf.OnAbort()
		p.stats.Aborted++
		p.metrics.RecordRun(p.source, metrics.OutcomeAborted)
		p.logger.Debug("run aborted before confirmation", "frame", frame.Index)
	}

	if positive && p.buf.Open() {
		if err := p.buf.OnFrame(frame, true); err != nil {
			p.failRun(err, frame)
			return
		}
		if p.buf.Confirmed() && p.buf.ClipFull() {
			p.finishRun(ctx)
		}
		return
	}

	if !positive && p.buf.Confirmed() {
		p.finishRun(ctx)
	}
}

// EndStream closes the open run at the end of a stream. The detector is
// reset so the processor can be reused.
func (p *Processor) EndStream(ctx context.Context) {
	wasPending := p.buf.Open() && !p.buf.Confirmed()
	set, err := p.buf.OnStreamEnd()
	p.det.Reset()

	switch {
	case err != nil:
		p.stats.Failed++
		p.metrics.RecordRun(p.source, metrics.OutcomeFailed)
		p.logger.Error("failed to finalize evidence at stream end", "error", err)
	case set != nil:
		p.alert(ctx, set)
	case wasPending:
		p.stats.Aborted++
		p.metrics.RecordRun(p.source, metrics.OutcomeAborted)
	}
}

// ClassifyImage handles a still image: it is classified once and a positive
// result is alerted without evidence.
func (p *Processor) ClassifyImage(ctx context.Context, frame detection.Frame) (bool, error) {
	p.stats.Frames++
	detections, err := p.classifier.Classify(ctx, frame)
	if err != nil {
		p.metrics.RecordClassificationError(p.source)
		return false, errors.New(err).
			Component("processor").
			Category(errors.CategoryClassification).
			FrameContext(p.source, frame.Index).
			Build()
	}
	if !detection.IsPositive(detections, p.det.Label()) {
		return false, nil
	}
	p.stats.Positive++
	p.logger.Warn("violence detected in image")
	p.alert(ctx, nil)
	return true, nil
}

// Stats returns the counters so far.
func (p *Processor) Stats() Stats {
	return p.stats
}

func (p *Processor) startRun(frame detection.Frame) bool {
	if err := p.buf.OnStart(frame); err != nil {
		p.failRun(err, frame)
		return false
	}
	p.metrics.RecordRun(p.source, metrics.OutcomeStarted)
	return true
}

// failRun abandons the current run after an evidence error. The detector
// stays silent until the run ends so no alert is raised for it.
func (p *Processor) failRun(err error, frame detection.Frame) {
	p.logger.Error("evidence recording failed, abandoning run",
		"frame", frame.Index,
		"error", err)
	p.buf.OnAbort()
	p.det.Cancel()
	p.stats.Failed++
	p.metrics.RecordRun(p.source, metrics.OutcomeFailed)
}

func (p *Processor) finishRun(ctx context.Context) {
	set, err := p.buf.Finalize()
	if err != nil {
		p.det.Cancel()
		p.stats.Failed++
		p.metrics.RecordRun(p.source, metrics.OutcomeFailed)
		p.logger.Error("failed to finalize evidence", "error", err)
		return
	}
	p.alert(ctx, set)
}

func (p *Processor) alert(ctx context.Context, set *evidence.EvidenceSet) {
	// The lookup has its own bound and must run even while shutting down
	alertCtx := p.enricher.CurrentContext(context.WithoutCancel(ctx))

	job := notification.AlertJob{Evidence: set, Context: alertCtx, Source: p.source}
	if !p.dispatcher.Dispatch(job) {
		p.stats.Dropped++
		p.logger.Error("alert was not accepted by the dispatcher", "event_id", eventID(set))
		return
	}
	p.stats.Alerts++
	p.logger.Info("alert dispatched",
		"event_id", eventID(set),
		"location", alertCtx.Location,
		"timestamp", alertCtx.Timestamp)
}

func eventID(set *evidence.EvidenceSet) string {
	if set == nil {
		return ""
	}
	return set.EventID
}
