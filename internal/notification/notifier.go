package notification

import "context"

// Notifier delivers an alert over one channel. Implementations must be safe
// for concurrent use; a failure affects only the channel that returned it.
type Notifier interface {
	Name() string
	Send(ctx context.Context, alert *Alert) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc struct {
	ChannelName string
	Fn          func(ctx context.Context, alert *Alert) error
}

// Name returns the channel name.
func (f NotifierFunc) Name() string { return f.ChannelName }

// Send calls the wrapped function.
func (f NotifierFunc) Send(ctx context.Context, alert *Alert) error { return f.Fn(ctx, alert) }
