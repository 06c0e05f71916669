package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/observability/metrics"
)

// Dispatcher defaults.
const (
	DefaultQueueSize      = 32
	DefaultWorkers        = 2
	DefaultChannelTimeout = 30 * time.Second

	shutdownGrace = 2 * time.Second
)

// Drop reasons recorded in metrics.
const (
	dropQueueFull = "queue_full"
	dropShutdown  = "shutdown"
)

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	QueueSize      int           // bounded job queue
	Workers        int           // concurrent jobs
	ChannelTimeout time.Duration // deadline of one channel delivery
	Site           string        // site name included in alert bodies
	RemoveEvidence bool          // delete the event directory after delivery
}

// DispatcherStats is a snapshot of dispatcher counters.
type DispatcherStats struct {
	Dispatched uint64 // jobs accepted
	Dropped    uint64 // jobs rejected or abandoned
	Completed  uint64 // jobs whose channels all ran
	Delivered  uint64 // successful channel deliveries
	Failed     uint64 // failed channel deliveries, including timeouts and panics
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics records queue and delivery metrics.
func WithMetrics(m *metrics.AlertMetrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher runs alert jobs on a bounded worker pool. Submission never
// blocks; delivery is best effort with no retries.
type Dispatcher struct {
	cfg       DispatcherConfig
	notifiers []Notifier
	jobs      chan AlertJob

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu orders Dispatch sends against closing the queue
	mu     sync.RWMutex
	closed bool

	dispatched atomic.Uint64
	dropped    atomic.Uint64
	completed  atomic.Uint64
	delivered  atomic.Uint64
	failed     atomic.Uint64

	metrics *metrics.AlertMetrics
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher and starts its workers.
func NewDispatcher(cfg DispatcherConfig, notifiers []Notifier, opts ...Option) *Dispatcher {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.ChannelTimeout <= 0 {
		cfg.ChannelTimeout = DefaultChannelTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:       cfg,
		notifiers: append([]Notifier(nil), notifiers...),
		jobs:      make(chan AlertJob, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		logger:    getLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}

	names := make([]string, 0, len(d.notifiers))
	for _, n := range d.notifiers {
		names = append(names, n.Name())
	}
	if len(names) == 0 {
		d.logger.Warn("alert dispatcher started without channels, alerts will only be logged")
	}
	d.logger.Info("alert dispatcher started",
		"queue_size", cfg.QueueSize,
		"workers", cfg.Workers,
		"channels", names)

	for i := range cfg.Workers {
		d.wg.Go(func() { d.worker(i) })
	}
	return d
}

// Dispatch submits job without blocking. It returns false when the queue is
// full or the dispatcher is shut down; the job is then dropped.
func (d *Dispatcher) Dispatch(job AlertJob) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(job, dropShutdown)
		return false
	}

	select {
	case d.jobs <- job:
		d.dispatched.Add(1)
		d.metrics.RecordDispatched()
		d.metrics.SetQueueDepth(len(d.jobs))
		return true
	default:
		d.drop(job, dropQueueFull)
		return false
	}
}

func (d *Dispatcher) drop(job AlertJob, reason string) {
	d.dropped.Add(1)
	d.metrics.RecordDropped(reason)
	d.logger.Warn("alert dropped",
		"reason", reason,
		"source", job.Source,
		"event_id", eventID(job))
}

func (d *Dispatcher) worker(id int) {
	logger := d.logger.With("worker_id", id)
	for job := range d.jobs {
		d.metrics.SetQueueDepth(len(d.jobs))
		if d.ctx.Err() != nil {
			// Shutdown deadline passed, abandon what is left
			d.drop(job, dropShutdown)
			continue
		}
		d.run(job, logger)
	}
}

// run delivers job over every channel concurrently and waits for all of them.
func (d *Dispatcher) run(job AlertJob, logger *slog.Logger) {
	d.metrics.JobStarted()
	defer d.metrics.JobFinished()

	alert := Compose(job, d.cfg.Site)
	logger.Info("delivering alert",
		"source", job.Source,
		"event_id", alert.EventID,
		"location", alert.Location,
		"attachments", len(alert.Attachments))

	var wg sync.WaitGroup
	for _, n := range d.notifiers {
		wg.Go(func() { d.deliver(n, alert, logger) })
	}
	wg.Wait()

	if d.cfg.RemoveEvidence && job.Evidence != nil {
		if err := job.Evidence.Remove(); err != nil {
			logger.Warn("failed to remove delivered evidence", "event_id", alert.EventID, "error", err)
		}
	}
	d.completed.Add(1)
}

// deliver sends alert over one channel with its own deadline. Errors and
// panics are contained here.
func (d *Dispatcher) deliver(n Notifier, alert *Alert, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(d.ctx, d.cfg.ChannelTimeout)
	defer cancel()

	start := time.Now()
	status := metrics.StatusSuccess
	defer func() {
		if r := recover(); r != nil {
			status = metrics.StatusPanic
			d.failed.Add(1)
			logger.Error("alert channel panicked",
				"channel", n.Name(),
				"event_id", alert.EventID,
				"panic", fmt.Sprint(r))
		}
		d.metrics.RecordDelivery(n.Name(), status, time.Since(start))
	}()

	err := n.Send(ctx, alert)
	if err == nil {
		d.delivered.Add(1)
		logger.Info("alert delivered",
			"channel", n.Name(),
			"event_id", alert.EventID,
			"duration", time.Since(start))
		return
	}

	status = metrics.StatusError
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		status = metrics.StatusTimeout
	}
	d.failed.Add(1)

	enhanced := errors.New(err).
		Component("notification").
		Category(errors.CategoryChannelDelivery).
		Context("channel", n.Name()).
		Context("operation", "send_"+n.Name()).
		Context("status", status).
		Build()
	logger.Warn("alert delivery failed",
		"channel", n.Name(),
		"event_id", alert.EventID,
		"status", status,
		"error", enhanced)
}

// Shutdown stops intake and waits up to timeout for queued jobs to finish.
// When the timeout passes, in-flight deliveries are cancelled and the
// remaining jobs are dropped.
func (d *Dispatcher) Shutdown(timeout time.Duration) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.logger.Info("shutting down alert dispatcher", "queued", len(d.jobs), "timeout", timeout)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		d.cancel()
		d.logger.Info("alert dispatcher stopped", "stats", d.Stats())
		return nil
	case <-timer.C:
		d.cancel()
		// Channels honour cancellation; one that does not is left behind
		select {
		case <-done:
		case <-time.After(shutdownGrace):
		}
		d.logger.Warn("alert dispatcher shutdown timeout exceeded", "stats", d.Stats())
		return errors.Newf("alert dispatcher shutdown timed out after %s", timeout).
			Component("notification").
			Category(errors.CategoryTimeout).
			Build()
	}
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Dispatched: d.dispatched.Load(),
		Dropped:    d.dropped.Load(),
		Completed:  d.completed.Load(),
		Delivered:  d.delivered.Load(),
		Failed:     d.failed.Load(),
	}
}

// Channels returns the names of the configured channels.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.notifiers))
	for _, n := range d.notifiers {
		names = append(names, n.Name())
	}
	return names
}

func eventID(job AlertJob) string {
	if job.Evidence == nil {
		return ""
	}
	return job.Evidence.EventID
}
