// Package metrics provides the Prometheus collectors for the detection pipeline and alerting.
package metrics

import "time"

// Label values for delivery status.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
	StatusPanic   = "panic"
)

// Label values for run outcomes.
const (
	OutcomeStarted   = "started"
	OutcomeConfirmed = "confirmed"
	OutcomeAborted   = "aborted"
	OutcomeFailed    = "failed" // evidence I/O error
)

// Histogram bucket configuration.
const (
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~40s range).
	BucketStart10ms = 0.01
	// BucketFactor2 is the common exponential growth factor for histogram buckets.
	BucketFactor2 = 2
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)

// ShutdownTimeout is the timeout for graceful shutdown of the metrics endpoint.
const ShutdownTimeout = 5 * time.Second
