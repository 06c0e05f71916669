package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("nil config uses defaults", func(t *testing.T) {
		t.Parallel()
		client := New(nil)
		assert.Equal(t, DefaultTimeout, client.defaultTimeout)
		assert.Equal(t, defaultUserAgent, client.userAgent)
	})

	t.Run("custom config", func(t *testing.T) {
		t.Parallel()
		client := New(&Config{DefaultTimeout: 5 * time.Second, UserAgent: "VigilTest/1.0"})
		assert.Equal(t, 5*time.Second, client.defaultTimeout)
		assert.Equal(t, "VigilTest/1.0", client.userAgent)
	})

	t.Run("caller config is not mutated", func(t *testing.T) {
		t.Parallel()
		cfg := Config{}
		_ = New(&cfg)
		assert.Zero(t, cfg.DefaultTimeout)
		assert.Empty(t, cfg.UserAgent)
	})
}

func TestDo_UserAgentInjected(t *testing.T) {
	t.Parallel()

	client, transport := newMockClient(t)
	var receivedUA string
	transport.RegisterResponder(http.MethodGet, "http://classifier.local/health",
		func(req *http.Request) (*http.Response, error) {
			receivedUA = req.Header.Get("User-Agent")
			return httpmock.NewStringResponse(http.StatusOK, "ok"), nil
		})

	resp, err := client.Get(t.Context(), "http://classifier.local/health")
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	assert.Equal(t, defaultUserAgent, receivedUA)
}

func TestDo_BodyReadableAfterReturnWithDefaultTimeout(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"success","city":"Oslo"}`))
	})

	client := newTestClient(t, &Config{DefaultTimeout: 2 * time.Second})

	// No deadline on the context, so the default timeout context is created inside Do
	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "Oslo", payload["city"])
}

func TestDo_DefaultTimeout(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(t, &Config{DefaultTimeout: 50 * time.Millisecond})

	resp, err := client.Get(context.Background(), server.URL)
	defer closeResponseBody(t, resp)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_ContextCancellation(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	client := newTestClient(t, nil)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	resp, err := client.Get(ctx, server.URL)
	defer closeResponseBody(t, resp)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_Hooks(t *testing.T) {
	t.Parallel()

	client, transport := newMockClient(t)
	transport.RegisterResponder(http.MethodGet, "http://classifier.local/health",
		httpmock.NewStringResponder(http.StatusNoContent, ""))

	var before, after atomic.Int32
	var capturedStatus int
	client.SetBeforeRequestHook(func(*http.Request) { before.Add(1) })
	client.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, err error) {
		after.Add(1)
		if err == nil {
			capturedStatus = resp.StatusCode
		}
	})

	resp, err := client.Get(t.Context(), "http://classifier.local/health")
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	assert.Equal(t, int32(1), before.Load())
	assert.Equal(t, int32(1), after.Load())
	assert.Equal(t, http.StatusNoContent, capturedStatus)
}

func TestPost_BodyKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		body        any
		wantCT      string
		wantBody    string
	}{
		{"form string", "application/x-www-form-urlencoded", "To=%2B1&Body=hi", "application/x-www-form-urlencoded", "To=%2B1&Body=hi"},
		{"bytes", "application/octet-stream", []byte{0x1, 0x2}, "application/octet-stream", "\x01\x02"},
		{"reader", "text/plain", strings.NewReader("plain"), "text/plain", "plain"},
		{"struct as json", "", map[string]int{"frame": 5}, "application/json", `{"frame":5}`},
		{"nil body", "", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, transport := newMockClient(t)
			var gotCT, gotBody string
			transport.RegisterResponder(http.MethodPost, "http://sms.local/messages",
				func(req *http.Request) (*http.Response, error) {
					gotCT = req.Header.Get("Content-Type")
					data, _ := io.ReadAll(req.Body)
					gotBody = string(data)
					return httpmock.NewStringResponse(http.StatusCreated, ""), nil
				})

			resp, err := client.Post(t.Context(), "http://sms.local/messages", tt.contentType, tt.body)
			require.NoError(t, err)
			defer closeResponseBody(t, resp)

			assert.Equal(t, http.StatusCreated, resp.StatusCode)
			assert.Equal(t, tt.wantCT, gotCT)
			assert.Equal(t, tt.wantBody, gotBody)
		})
	}
}

func TestClose(t *testing.T) {
	t.Parallel()

	client := New(nil)
	client.Close()
	client.Close()
}
