package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/time/rate"

	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/httpclient"
	"github.com/vigil-cam/vigil/internal/privacy"
)

const (
	// DefaultSMSBaseURL is the Twilio REST API.
	DefaultSMSBaseURL = "https://api.twilio.com"
	// DefaultSMSRate matches the per-sender throughput of a Twilio long code.
	DefaultSMSRate = 1.0
)

// SMSConfig configures the Twilio-compatible SMS channel.
type SMSConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string
	To         []string
	Rate       float64 // messages per second, <= 0 uses DefaultSMSRate
}

// twilioError is the error document returned by the Messages API.
type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

// SMSNotifier sends the short alert text to every configured number.
type SMSNotifier struct {
	cfg     SMSConfig
	http    *httpclient.Client
	limiter *rate.Limiter
}

// NewSMSNotifier creates the channel on the shared HTTP client.
func NewSMSNotifier(cfg SMSConfig, client *httpclient.Client) (*SMSNotifier, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" || len(cfg.To) == 0 {
		return nil, errors.Newf("sms channel requires account sid, auth token, sender and at least one recipient").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSMSBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.To = slices.Clone(cfg.To)
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultSMSRate
	}
	if client == nil {
		client = httpclient.New(nil)
	}
	return &SMSNotifier{
		cfg:     cfg,
		http:    client,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), 1),
	}, nil
}

// Name returns the channel name.
func (n *SMSNotifier) Name() string { return "sms" }

// Send messages every recipient. All recipients are attempted; the errors
// are joined.
func (n *SMSNotifier) Send(ctx context.Context, alert *Alert) error {
	var errs []error
	for _, to := range n.cfg.To {
		if err := n.sendOne(ctx, to, alert.Short); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *SMSNotifier) messagesURL() string {
	return fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", n.cfg.BaseURL, url.PathEscape(n.cfg.AccountSID))
}

func (n *SMSNotifier) sendOne(ctx context.Context, to, body string) error {
	// Wait fails fast when the next slot lies past the channel deadline
	if err := n.limiter.Wait(ctx); err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryTimeout).
			Context("channel", n.Name()).
			Context("recipient", privacy.RedactPhone(to)).
			Build()
	}

	form := url.Values{}
	form.Set("From", n.cfg.From)
	form.Set("To", to)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.messagesURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("operation", "build_sms_request").
			Build()
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(n.cfg.AccountSID, n.cfg.AuthToken)

	resp, err := n.http.Do(ctx, req)
	if err != nil {
		return errors.New(privacy.WrapError(err)).
			Component("notification").
			Category(errors.CategoryChannelDelivery).
			Context("channel", n.Name()).
			Context("recipient", privacy.RedactPhone(to)).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var apiErr twilioError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
		msg = fmt.Sprintf("%s (code %d)", apiErr.Message, apiErr.Code)
	}
	return errors.Newf("sms api returned status %d: %s", resp.StatusCode, msg).
		Component("notification").
		Category(errors.CategoryChannelDelivery).
		Context("channel", n.Name()).
		Context("status_code", resp.StatusCode).
		Context("recipient", privacy.RedactPhone(to)).
		Build()
}
