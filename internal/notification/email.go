package notification

import (
	"context"
	"os"
	"slices"

	"github.com/wneessen/go-mail"

	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/privacy"
)

// DefaultSMTPPort is implicit TLS submission.
const DefaultSMTPPort = 465

// EmailConfig configures the SMTP channel.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// mailSender is the part of *mail.Client used for delivery.
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailNotifier sends alerts as multipart mail with the evidence attached.
type EmailNotifier struct {
	cfg       EmailConfig
	newSender func() (mailSender, error)
}

// NewEmailNotifier creates the channel. The SMTP connection is opened per
// alert.
func NewEmailNotifier(cfg EmailConfig) (*EmailNotifier, error) {
	if cfg.Host == "" || cfg.From == "" || len(cfg.To) == 0 {
		return nil, errors.Newf("email channel requires host, sender and at least one recipient").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultSMTPPort
	}
	cfg.To = slices.Clone(cfg.To)

	n := &EmailNotifier{cfg: cfg}
	n.newSender = n.dial
	return n, nil
}

// Name returns the channel name.
func (n *EmailNotifier) Name() string { return "email" }

func (n *EmailNotifier) dial() (mailSender, error) {
	opts := []mail.Option{mail.WithPort(n.cfg.Port)}
	if n.cfg.Port == DefaultSMTPPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}
	return mail.NewClient(n.cfg.Host, opts...)
}

// Send delivers alert by mail. Attachments that no longer exist are logged
// and skipped.
func (n *EmailNotifier) Send(ctx context.Context, alert *Alert) error {
	msg, err := n.buildMessage(alert)
	if err != nil {
		return err
	}

	sender, err := n.newSender()
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("operation", "create_smtp_client").
			Build()
	}

	if err := sender.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.New(privacy.WrapError(err)).
			Component("notification").
			Category(errors.CategoryChannelDelivery).
			Context("channel", n.Name()).
			Context("smtp_port", n.cfg.Port).
			Build()
	}
	return nil
}

func (n *EmailNotifier) buildMessage(alert *Alert) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return nil, errors.New(err).
			Component("notification").
			Category(errors.CategoryValidation).
			Context("field", "from").
			Build()
	}
	if err := msg.To(n.cfg.To...); err != nil {
		return nil, errors.New(err).
			Component("notification").
			Category(errors.CategoryValidation).
			Context("field", "to").
			Build()
	}
	msg.Subject(alert.Subject)
	msg.SetBodyString(mail.TypeTextPlain, alert.Body)

	for _, a := range alert.Attachments {
		if _, err := os.Stat(a.Path); err != nil {
			getLogger().Warn("skipping missing attachment",
				"channel", n.Name(),
				"event_id", alert.EventID,
				"attachment", a.Name,
				"error", err)
			continue
		}
		msg.AttachFile(a.Path, mail.WithFileName(a.Name))
	}
	return msg, nil
}
