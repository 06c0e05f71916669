package notification

import (
	"io"

	"github.com/vigil-cam/vigil/internal/conf"
	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/httpclient"
)

// BuildNotifiers creates a notifier for every enabled channel in settings.
// A misconfigured channel fails the whole build so that a typo does not
// silently disable alerting.
func BuildNotifiers(settings *conf.Settings, hc *httpclient.Client) ([]Notifier, error) {
	var (
		notifiers []Notifier
		errs      []error
	)

	if s := settings.Email; s.Enabled {
		n, err := NewEmailNotifier(EmailConfig{
			Host:     s.Host,
			Port:     s.Port,
			Username: s.Username,
			Password: s.Password,
			From:     s.From,
			To:       s.To,
		})
		if err != nil {
			errs = append(errs, err)
		} else {
			notifiers = append(notifiers, n)
		}
	}

	if s := settings.SMS; s.Enabled {
		n, err := NewSMSNotifier(SMSConfig{
			BaseURL:    s.BaseURL,
			AccountSID: s.AccountSID,
			AuthToken:  s.AuthToken,
			From:       s.From,
			To:         s.To,
			Rate:       s.Rate,
		}, hc)
		if err != nil {
			errs = append(errs, err)
		} else {
			notifiers = append(notifiers, n)
		}
	}

	if s := settings.Push; s.Enabled {
		n, err := NewPushNotifier(s.URLs, settings.Alert.ChannelTimeout)
		if err != nil {
			errs = append(errs, err)
		} else {
			notifiers = append(notifiers, n)
		}
	}

	if s := settings.MQTT; s.Enabled {
		qos := s.QoS
		if qos < 0 || qos > 2 {
			qos = 3 // rejected by NewMQTTNotifier
		}
		n, err := NewMQTTNotifier(MQTTConfig{
			Broker:   s.Broker,
			Topic:    s.Topic,
			Username: s.Username,
			Password: s.Password,
			ClientID: s.ClientID,
			QoS:      byte(qos),
			Retain:   s.Retain,
		})
		if err != nil {
			errs = append(errs, err)
		} else {
			notifiers = append(notifiers, n)
		}
	}

	if len(errs) > 0 {
		CloseNotifiers(notifiers)
		return nil, errors.New(errors.Join(errs...)).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Context("operation", "build_notifiers").
			Build()
	}
	return notifiers, nil
}

// CloseNotifiers releases channel connections.
func CloseNotifiers(notifiers []Notifier) {
	for _, n := range notifiers {
		c, ok := n.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			getLogger().Warn("failed to close alert channel", "channel", n.Name(), "error", err)
		}
	}
}
