package observability

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/vigil-cam/vigil/internal/conf"
	"github.com/vigil-cam/vigil/internal/errors"
	metricspkg "github.com/vigil-cam/vigil/internal/observability/metrics"
)

// Endpoint serves /metrics over HTTP.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	boundAddress  string
	metrics       *Metrics
	wg            sync.WaitGroup
}

// NewEndpoint creates the metrics endpoint. Returns an error when metrics are disabled.
func NewEndpoint(settings *conf.Settings, metrics *Metrics) (*Endpoint, error) {
	if !settings.Metrics.Enabled {
		return nil, errors.NewStd("metrics endpoint not enabled in settings")
	}

	return &Endpoint{
		listenAddress: settings.Metrics.Listen,
		metrics:       metrics,
	}, nil
}

// Start binds the listen address and serves until ctx is cancelled.
func (e *Endpoint) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return err
	}

	e.boundAddress = listener.Addr().String()

	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)
	e.server = &http.Server{Handler: mux, ReadHeaderTimeout: metricspkg.ShutdownTimeout}

	e.wg.Go(func() {
		getLogger().Info("metrics endpoint starting", "address", e.boundAddress)
		if err := e.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			getLogger().Error("metrics HTTP server error", "error", err)
		}
	})

	e.wg.Go(func() {
		<-ctx.Done()
		e.shutdown()
	})

	return nil
}

func (e *Endpoint) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		getLogger().Error("metrics server shutdown error", "error", err)
	}
}

// Addr returns the bound listen address once Start has succeeded.
func (e *Endpoint) Addr() string {
	return e.boundAddress
}

// Wait blocks until the endpoint goroutines have exited.
func (e *Endpoint) Wait() {
	e.wg.Wait()
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}
