package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics covers frame processing, classification and evidence capture.
// A nil *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	FramesProcessed      *prometheus.CounterVec   // frames by source and result (positive/negative)
	ClassificationErrors *prometheus.CounterVec   // classifier failures by source
	ClassifyDuration     *prometheus.HistogramVec // classifier latency by source
	Runs                 *prometheus.CounterVec   // run outcomes by source
	EvidenceErrors       *prometheus.CounterVec   // evidence write failures by operation
	KeyFramesSaved       prometheus.Counter
}

// NewPipelineMetrics creates and registers pipeline metrics.
func NewPipelineMetrics(registry prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{
		FramesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_frames_processed_total",
			Help: "Frames processed by source and classification result",
		}, []string{"source", "result"}),
		ClassificationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_classification_errors_total",
			Help: "Frames whose classification failed and were treated as negative",
		}, []string{"source"}),
		ClassifyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vigil_classify_duration_seconds",
			Help:    "Time spent classifying a single frame",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		}, []string{"source"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_runs_total",
			Help: "Positive runs by outcome",
		}, []string{"source", "outcome"}),
		EvidenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_evidence_errors_total",
			Help: "Evidence write failures by operation",
		}, []string{"operation"}),
		KeyFramesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_key_frames_saved_total",
			Help: "Key frames written to disk",
		}),
	}

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

// RecordFrame counts a processed frame.
func (m *PipelineMetrics) RecordFrame(source string, positive bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "negative"
	if positive {
		result = "positive"
	}
	m.FramesProcessed.WithLabelValues(source, result).Inc()
	m.ClassifyDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordClassificationError counts a failed classification.
func (m *PipelineMetrics) RecordClassificationError(source string) {
	if m == nil {
		return
	}
	m.ClassificationErrors.WithLabelValues(source).Inc()
}

// RecordRun counts a run outcome.
func (m *PipelineMetrics) RecordRun(source, outcome string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(source, outcome).Inc()
}

// RecordEvidenceError counts an evidence write failure.
func (m *PipelineMetrics) RecordEvidenceError(operation string) {
	if m == nil {
		return
	}
	m.EvidenceErrors.WithLabelValues(operation).Inc()
}

// RecordKeyFrame counts a saved key frame.
func (m *PipelineMetrics) RecordKeyFrame() {
	if m == nil {
		return
	}
	m.KeyFramesSaved.Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.FramesProcessed.Describe(ch)
	m.ClassificationErrors.Describe(ch)
	m.ClassifyDuration.Describe(ch)
	m.Runs.Describe(ch)
	m.EvidenceErrors.Describe(ch)
	m.KeyFramesSaved.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.FramesProcessed.Collect(ch)
	m.ClassificationErrors.Collect(ch)
	m.ClassifyDuration.Collect(ch)
	m.Runs.Collect(ch)
	m.EvidenceErrors.Collect(ch)
	m.KeyFramesSaved.Collect(ch)
}
