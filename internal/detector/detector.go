// Package detector implements the temporal event detector: hysteresis over
// per-frame classifications that separates sustained events from noise.
package detector

import (
	"context"
	"log/slog"
	"time"

	"github.com/vigil-cam/vigil/internal/detection"
	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/observability/metrics"
)

// DefaultConfirmThreshold is the number of consecutive positive frames that
// confirm an event when no threshold is configured.
const DefaultConfirmThreshold = 5

// Signal is emitted by the detector for each observed frame.
type Signal int

const (
	SignalNone    Signal = iota // nothing to do
	SignalStart                 // first positive frame of a run
	SignalConfirm               // run reached the confirm threshold
	SignalAbort                 // run ended before confirmation
)

// String returns the signal name.
func (s Signal) String() string {
	switch s {
	case SignalStart:
		return "start"
	case SignalConfirm:
		return "confirm"
	case SignalAbort:
		return "abort"
	default:
		return "none"
	}
}

// State is the detector state between frames.
type State int

const (
	StateIdle      State = iota // no open run
	StateBuffering              // run started, not yet confirmed
	StateConfirmed              // run confirmed, still positive
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateBuffering:
		return "buffering"
	case StateConfirmed:
		return "confirmed"
	default:
		return "idle"
	}
}

// Config holds detector settings.
type Config struct {
	ConfirmThreshold int                      // consecutive positives needed to confirm
	Label            string                   // label that marks a frame positive
	Source           string                   // stream name used in logs and metrics
	Metrics          *metrics.PipelineMetrics // optional
}

// Detector tracks one stream. It is not safe for concurrent use; each
// stream loop owns its own instance.
type Detector struct {
	threshold int
	label     string
	source    string
	metrics   *metrics.PipelineMetrics
	logger    *slog.Logger

	count     int  // length of the current positive suffix
	started   bool // Start emitted for the current run
	confirmed bool // Confirm emitted for the current run
	cancelled bool // run abandoned by the consumer, silent until the next negative
}

// New creates a detector. A threshold below 1 falls back to the default.
func New(cfg Config) *Detector {
	if cfg.ConfirmThreshold < 1 {
		cfg.ConfirmThreshold = DefaultConfirmThreshold
	}
	if cfg.Label == "" {
		cfg.Label = "VIOLENCE"
	}
	return &Detector{
		threshold: cfg.ConfirmThreshold,
		label:     cfg.Label,
		source:    cfg.Source,
		metrics:   cfg.Metrics,
		logger:    getLogger().With("source", cfg.Source),
	}
}

// Observe advances the state machine by one frame.
//
// The first positive frame of a run emits SignalStart. The frame on which the
// positive count reaches the threshold emits SignalConfirm, once per run. A
// negative frame ending an unconfirmed run emits SignalAbort; a negative frame
// ending a confirmed run resets silently. With a threshold of 1 the first
// positive frame emits SignalConfirm and consumers treat it as start and
// confirmation at once.
func (d *Detector) Observe(positive bool) Signal {
	if !positive {
		wasOpen := d.started && !d.confirmed && !d.cancelled
		d.count = 0
		d.started = false
		d.confirmed = false
		d.cancelled = false
		if wasOpen {
			return SignalAbort
		}
		return SignalNone
	}

	d.count++
	if d.cancelled {
		return SignalNone
	}

	if !d.started {
		d.started = true
		if d.threshold == 1 {
			d.confirmed = true
			return SignalConfirm
		}
		return SignalStart
	}

	if !d.confirmed && d.count == d.threshold {
		d.confirmed = true
		return SignalConfirm
	}
	return SignalNone
}

// ObserveFrame classifies frame and feeds the result to Observe. A
// classification failure is logged and the frame is treated as negative.
func (d *Detector) ObserveFrame(ctx context.Context, classifier detection.Classifier, frame detection.Frame) (Signal, bool) {
	start := time.Now()
	detections, err := classifier.Classify(ctx, frame)
	if err != nil {
		enhanced := errors.New(err).
			Component("detector").
			Category(errors.CategoryClassification).
			FrameContext(d.source, frame.Index).
			Build()
		d.logger.Warn("classification failed, treating frame as negative",
			"frame", frame.Index,
			"error", enhanced)
		d.metrics.RecordClassificationError(d.source)
		return d.Observe(false), false
	}

	positive := detection.IsPositive(detections, d.label)
	d.metrics.RecordFrame(d.source, positive, time.Since(start))
	signal := d.Observe(positive)
	if signal != SignalNone {
		d.logger.Debug("detector signal",
			"frame", frame.Index,
			"signal", signal.String(),
			"count", d.count)
	}
	return signal, positive
}

// Cancel abandons the current run. No further signals are emitted until a
// negative frame ends it; the positive count keeps tracking the suffix.
func (d *Detector) Cancel() {
	if d.started {
		d.cancelled = true
	}
}

// State returns the current state.
func (d *Detector) State() State {
	switch {
	case !d.started || d.cancelled:
		return StateIdle
	case d.confirmed:
		return StateConfirmed
	default:
		return StateBuffering
	}
}

// Count returns the number of consecutive positive frames ending at the most
// recent observation.
func (d *Detector) Count() int {
	return d.count
}

// Threshold returns the configured confirm threshold.
func (d *Detector) Threshold() int {
	return d.threshold
}

// Label returns the label that marks a frame positive.
func (d *Detector) Label() string {
	return d.label
}

// Reset returns the detector to idle.
func (d *Detector) Reset() {
	d.count = 0
	d.started = false
	d.confirmed = false
	d.cancelled = false
}
