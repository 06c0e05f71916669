package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-cam/vigil/internal/conf"
)

func TestMetricsHandlerExposesVigilMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	m.Alert.RecordDispatched()
	m.Pipeline.RecordRun("cam1", "confirmed")

	mux := http.NewServeMux()
	m.RegisterHandlers(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "vigil_alert_jobs_dispatched_total 1")
	assert.Contains(t, body, `vigil_runs_total{outcome="confirmed",source="cam1"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestNewEndpointRequiresEnabled(t *testing.T) {
	t.Parallel()

	_, err := NewEndpoint(&conf.Settings{}, nil)
	assert.Error(t, err)
}

func TestEndpointServesUntilCancelled(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Metrics.Enabled = true
	settings.Metrics.Listen = "127.0.0.1:0"

	endpoint, err := NewEndpoint(settings, m)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	require.NoError(t, endpoint.Start(ctx))

	resp, err := http.Get("http://" + endpoint.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "vigil_alert_queue_depth")

	cancel()
	endpoint.Wait()
}
