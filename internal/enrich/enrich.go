// Package enrich builds the context attached to an alert: when it happened
// and, best effort, where.
package enrich

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/vigil-cam/vigil/internal/observability/metrics"
)

const (
	// UnknownLocation is reported whenever the location cannot be determined.
	UnknownLocation = "Unknown location"
	// TimestampLayout formats alert timestamps in local time.
	TimestampLayout = "2006-01-02 15:04:05"
	// DefaultLookupTimeout bounds a location lookup.
	DefaultLookupTimeout = time.Second
)

// Location lookup results recorded in metrics.
const (
	lookupSuccess  = "success"
	lookupFailed   = "failed"
	lookupOverride = "override"
	lookupDisabled = "disabled"
)

// AlertContext is computed fresh for every alert.
type AlertContext struct {
	Timestamp string
	Location  string
}

// Config configures an Enricher.
type Config struct {
	Enabled  bool          // false skips the lookup and reports UnknownLocation
	Override string        // static location, skips the lookup
	Timeout  time.Duration // lookup bound
}

// Option customizes an Enricher.
type Option func(*Enricher)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) { e.now = now }
}

// WithMetrics records lookup outcomes.
func WithMetrics(m *metrics.AlertMetrics) Option {
	return func(e *Enricher) { e.metrics = m }
}

// Enricher produces AlertContext values. Safe for concurrent use.
type Enricher struct {
	cfg     Config
	locator Locator
	now     func() time.Time
	metrics *metrics.AlertMetrics
	logger  *slog.Logger
}

// NewEnricher creates an enricher. locator may be nil when the lookup is
// disabled or overridden.
func NewEnricher(cfg Config, locator Locator, opts ...Option) *Enricher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLookupTimeout
	}
	e := &Enricher{
		cfg:     cfg,
		locator: locator,
		now:     time.Now,
		logger:  getLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CurrentContext returns the alert context for now. It never fails; a failed
// lookup yields UnknownLocation and is logged.
func (e *Enricher) CurrentContext(ctx context.Context) AlertContext {
	return AlertContext{
		Timestamp: e.now().Local().Format(TimestampLayout),
		Location:  e.location(ctx),
	}
}

func (e *Enricher) location(ctx context.Context) string {
	if override := strings.TrimSpace(e.cfg.Override); override != "" {
		e.metrics.RecordLocationLookup(lookupOverride)
		return override
	}
	if !e.cfg.Enabled || e.locator == nil {
		e.metrics.RecordLocationLookup(lookupDisabled)
		return UnknownLocation
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	loc, err := e.locator.Locate(ctx)
	if err != nil {
		e.metrics.RecordLocationLookup(lookupFailed)
		e.logger.Warn("location lookup failed, using fallback",
			"fallback", UnknownLocation,
			"error", err)
		return UnknownLocation
	}

	s := loc.String()
	if s == "" {
		e.metrics.RecordLocationLookup(lookupFailed)
		return UnknownLocation
	}
	e.metrics.RecordLocationLookup(lookupSuccess)
	return s
}
