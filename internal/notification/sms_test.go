package notification

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/httpclient"
)

const testSMSURL = "https://sms.test/2010-04-01/Accounts/AC123/Messages.json"

func newTestSMSNotifier(t *testing.T, to ...string) (*SMSNotifier, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	hc := httpclient.New(&httpclient.Config{DefaultTimeout: time.Second, Transport: transport})
	t.Cleanup(hc.Close)

	n, err := NewSMSNotifier(SMSConfig{
		BaseURL:    "https://sms.test/",
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "+15550001111",
		To:         to,
		Rate:       1000,
	}, hc)
	require.NoError(t, err)
	return n, transport
}

func TestSMSSendPostsFormPerRecipient(t *testing.T) {
	t.Parallel()

	n, transport := newTestSMSNotifier(t, "+15550002222", "+15550003333")

	var recipients []string
	transport.RegisterResponder(http.MethodPost, testSMSURL,
		func(req *http.Request) (*http.Response, error) {
			user, pass, ok := req.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "AC123", user)
			assert.Equal(t, "secret", pass)
			assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))

			require.NoError(t, req.ParseForm())
			assert.Equal(t, "+15550001111", req.PostForm.Get("From"))
			assert.Contains(t, req.PostForm.Get("Body"), "Violence detected!")
			recipients = append(recipients, req.PostForm.Get("To"))
			return httpmock.NewStringResponse(http.StatusCreated, `{"sid":"SM1"}`), nil
		})

	require.NoError(t, n.Send(t.Context(), Compose(testJob(t), "")))
	assert.Equal(t, []string{"+15550002222", "+15550003333"}, recipients)
	assert.Equal(t, 2, transport.GetTotalCallCount())
}

func TestSMSSendAPIError(t *testing.T) {
	t.Parallel()

	n, transport := newTestSMSNotifier(t, "+15550002222")
	transport.RegisterResponder(http.MethodPost, testSMSURL,
		httpmock.NewStringResponder(http.StatusBadRequest, `{"code":21211,"message":"Invalid 'To' Phone Number"}`))

	err := n.Send(t.Context(), testAlert())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryChannelDelivery))
	assert.Contains(t, err.Error(), "Invalid 'To' Phone Number (code 21211)")
	assert.NotContains(t, err.Error(), "+15550002222")
}

func TestSMSSendAttemptsAllRecipients(t *testing.T) {
	t.Parallel()

	n, transport := newTestSMSNotifier(t, "+15550002222", "+15550003333")
	calls := 0
	transport.RegisterResponder(http.MethodPost, testSMSURL,
		func(*http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewStringResponse(http.StatusInternalServerError, "boom"), nil
			}
			return httpmock.NewStringResponse(http.StatusCreated, `{}`), nil
		})

	err := n.Send(t.Context(), testAlert())
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestSMSSendPacedByRate(t *testing.T) {
	t.Parallel()

	n, transport := newTestSMSNotifier(t, "+15550002222", "+15550003333")
	n.limiter.SetLimit(0.1)
	transport.RegisterResponder(http.MethodPost, testSMSURL,
		httpmock.NewStringResponder(http.StatusCreated, `{}`))

	ctx, cancel := context.WithTimeout(t.Context(), 500*time.Millisecond)
	defer cancel()

	err := n.Send(ctx, testAlert())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryTimeout))
	assert.Equal(t, 1, transport.GetTotalCallCount(), "second recipient waits for the next slot")
}

func TestNewSMSNotifierValidation(t *testing.T) {
	t.Parallel()

	_, err := NewSMSNotifier(SMSConfig{AccountSID: "AC1", AuthToken: "x", From: "+1"}, nil)
	require.Error(t, err)

	n, err := NewSMSNotifier(SMSConfig{AccountSID: "AC1", AuthToken: "x", From: "+1", To: []string{"+2"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSMSBaseURL+"/2010-04-01/Accounts/AC1/Messages.json", n.messagesURL())
	assert.InDelta(t, DefaultSMSRate, float64(n.limiter.Limit()), 0)
}
