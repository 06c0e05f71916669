package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AlertMetrics covers the alert dispatcher, channel deliveries and location lookups.
// A nil *AlertMetrics is valid and records nothing.
type AlertMetrics struct {
	JobsDispatched   prometheus.Counter       // jobs accepted into the queue
	JobsDropped      *prometheus.CounterVec   // jobs rejected by reason (queue_full, closed)
	JobsActive       prometheus.Gauge         // jobs currently being delivered
	QueueDepth       prometheus.Gauge         // jobs waiting in the queue
	Deliveries       *prometheus.CounterVec   // channel deliveries by channel and status
	DeliveryDuration *prometheus.HistogramVec // channel delivery latency
	LocationLookups  *prometheus.CounterVec   // geolocation lookups by result
}

// NewAlertMetrics creates and registers alert metrics.
func NewAlertMetrics(registry prometheus.Registerer) (*AlertMetrics, error) {
	m := &AlertMetrics{
		JobsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_alert_jobs_dispatched_total",
			Help: "Alert jobs accepted by the dispatcher",
		}),
		JobsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_alert_jobs_dropped_total",
			Help: "Alert jobs rejected by the dispatcher by reason",
		}, []string{"reason"}),
		JobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_alert_jobs_active",
			Help: "Alert jobs currently being delivered",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_alert_queue_depth",
			Help: "Alert jobs waiting for a worker",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_alert_deliveries_total",
			Help: "Channel delivery attempts by channel and status",
		}, []string{"channel", "status"}),
		DeliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vigil_alert_delivery_duration_seconds",
			Help:    "Time taken by a single channel delivery",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		}, []string{"channel"}),
		LocationLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_location_lookups_total",
			Help: "Geolocation lookups by result",
		}, []string{"result"}),
	}

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register alert metrics: %w", err)
	}
	return m, nil
}

// RecordDispatched counts an accepted job.
func (m *AlertMetrics) RecordDispatched() {
	if m == nil {
		return
	}
	m.JobsDispatched.Inc()
}

// RecordDropped counts a rejected job.
func (m *AlertMetrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.JobsDropped.WithLabelValues(reason).Inc()
}

// SetQueueDepth records the number of queued jobs.
func (m *AlertMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
}

// JobStarted marks a job as in flight.
func (m *AlertMetrics) JobStarted() {
	if m == nil {
		return
	}
	m.JobsActive.Inc()
}

// JobFinished marks an in-flight job as done.
func (m *AlertMetrics) JobFinished() {
	if m == nil {
		return
	}
	m.JobsActive.Dec()
}

// RecordDelivery records the result of one channel delivery.
func (m *AlertMetrics) RecordDelivery(channel, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(channel, status).Inc()
	m.DeliveryDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordLocationLookup records a geolocation result (success, fallback, override).
func (m *AlertMetrics) RecordLocationLookup(result string) {
	if m == nil {
		return
	}
	m.LocationLookups.WithLabelValues(result).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *AlertMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.JobsDispatched.Describe(ch)
	m.JobsDropped.Describe(ch)
	m.JobsActive.Describe(ch)
	m.QueueDepth.Describe(ch)
	m.Deliveries.Describe(ch)
	m.DeliveryDuration.Describe(ch)
	m.LocationLookups.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *AlertMetrics) Collect(ch chan<- prometheus.Metric) {
	m.JobsDispatched.Collect(ch)
	m.JobsDropped.Collect(ch)
	m.JobsActive.Collect(ch)
	m.QueueDepth.Collect(ch)
	m.Deliveries.Collect(ch)
	m.DeliveryDuration.Collect(ch)
	m.LocationLookups.Collect(ch)
}
