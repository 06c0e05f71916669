package notification

import (
	"context"
	"io"
	"log"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/privacy"
)

// pushSender is the part of the shoutrrr router used for delivery.
type pushSender interface {
	Send(message string, params *stypes.Params) []error
}

// PushNotifier sends the short alert text to every shoutrrr URL. Push
// services carry no attachments.
type PushNotifier struct {
	urls   []string
	sender pushSender
}

// NewPushNotifier validates urls and builds one router for all of them.
func NewPushNotifier(urls []string, timeout time.Duration) (*PushNotifier, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("push channel requires at least one url").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		// URLs carry service tokens
		return nil, errors.New(privacy.WrapError(err)).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("operation", "create_push_sender").
			Context("url_count", len(urls)).
			Build()
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &PushNotifier{urls: slices.Clone(urls), sender: sender}, nil
}

// Name returns the channel name.
func (n *PushNotifier) Name() string { return "push" }

// Send pushes alert to every service. The router enforces its own timeout;
// ctx cancellation returns early and leaves the router to finish.
func (n *PushNotifier) Send(ctx context.Context, alert *Alert) error {
	params := stypes.Params{}
	params.SetTitle(alert.Subject)

	result := make(chan []error, 1)
	go func() { result <- n.sender.Send(alert.Short, &params) }()

	var errs []error
	select {
	case errs = <-result:
	case <-ctx.Done():
		return errors.New(ctx.Err()).
			Component("notification").
			Category(errors.CategoryTimeout).
			Context("channel", n.Name()).
			Build()
	}

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, privacy.WrapError(err))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return errors.New(errors.Join(failed...)).
		Component("notification").
		Category(errors.CategoryChannelDelivery).
		Context("channel", n.Name()).
		Context("failed_services", len(failed)).
		Context("total_services", len(n.urls)).
		Build()
}
