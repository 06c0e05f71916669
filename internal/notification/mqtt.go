package notification

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/privacy"
)

const (
	mqttConnectTimeout    = 30 * time.Second
	mqttDisconnectQuiesce = 250 // milliseconds
	defaultMQTTClientID   = "vigil"
)

// MQTTConfig configures the MQTT channel.
type MQTTConfig struct {
	Broker   string
	Topic    string
	Username string
	Password string
	ClientID string
	QoS      byte
	Retain   bool
}

// mqttAlert is the JSON document published for every alert.
type mqttAlert struct {
	Type        string   `json:"type"`
	EventID     string   `json:"event_id,omitempty"`
	Site        string   `json:"site,omitempty"`
	Source      string   `json:"source,omitempty"`
	Timestamp   string   `json:"timestamp"`
	Location    string   `json:"location"`
	Message     string   `json:"message"`
	Attachments []string `json:"attachments,omitempty"`
}

// MQTTNotifier publishes alerts as JSON to a broker topic. The connection
// is opened on first use and kept for later alerts.
type MQTTNotifier struct {
	cfg       MQTTConfig
	newClient func(*mqtt.ClientOptions) mqtt.Client

	mu     sync.Mutex
	client mqtt.Client
}

// NewMQTTNotifier creates the channel without connecting.
func NewMQTTNotifier(cfg MQTTConfig) (*MQTTNotifier, error) {
	if cfg.Broker == "" || cfg.Topic == "" {
		return nil, errors.Newf("mqtt channel requires broker and topic").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.QoS > 2 {
		return nil, errors.Newf("mqtt qos %d out of range", cfg.QoS).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.ClientID == "" {
		cfg.ClientID = defaultMQTTClientID
	}
	return &MQTTNotifier{cfg: cfg, newClient: mqtt.NewClient}, nil
}

// Name returns the channel name.
func (n *MQTTNotifier) Name() string { return "mqtt" }

// Send publishes alert to the configured topic.
func (n *MQTTNotifier) Send(ctx context.Context, alert *Alert) error {
	payload, err := json.Marshal(n.document(alert))
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryValidation).
			Context("operation", "marshal_mqtt_payload").
			Build()
	}

	client, err := n.connect(ctx)
	if err != nil {
		return err
	}

	token := client.Publish(n.cfg.Topic, n.cfg.QoS, n.cfg.Retain, payload)
	if err := waitToken(ctx, token); err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryChannelDelivery).
			Context("channel", n.Name()).
			Context("topic", n.cfg.Topic).
			Context("qos", n.cfg.QoS).
			Build()
	}
	return nil
}

func (n *MQTTNotifier) document(alert *Alert) mqttAlert {
	doc := mqttAlert{
		Type:      "violence",
		EventID:   alert.EventID,
		Site:      alert.Site,
		Source:    alert.Source,
		Timestamp: alert.Timestamp,
		Location:  alert.Location,
		Message:   alert.Short,
	}
	for _, a := range alert.Attachments {
		doc.Attachments = append(doc.Attachments, a.Name)
	}
	return doc
}

// connect returns the live client, dialing the broker when needed.
func (n *MQTTNotifier) connect(ctx context.Context) (mqtt.Client, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.client != nil && n.client.IsConnectionOpen() {
		return n.client, nil
	}

	if n.client == nil {
		opts := mqtt.NewClientOptions()
		opts.AddBroker(n.cfg.Broker)
		opts.SetClientID(n.cfg.ClientID)
		opts.SetUsername(n.cfg.Username)
		opts.SetPassword(n.cfg.Password)
		opts.SetCleanSession(true)
		opts.SetAutoReconnect(true)
		opts.SetConnectTimeout(mqttConnectTimeout)
		opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			getLogger().Warn("mqtt connection lost", "broker", privacy.AnonymizeURL(n.cfg.Broker), "error", err)
		})
		n.client = n.newClient(opts)
	}

	if err := waitToken(ctx, n.client.Connect()); err != nil {
		return nil, errors.New(privacy.WrapError(err)).
			Component("notification").
			Category(errors.CategoryNetwork).
			Context("channel", n.Name()).
			Context("operation", "mqtt_connect").
			Context("broker", privacy.AnonymizeURL(n.cfg.Broker)).
			Build()
	}
	getLogger().Info("connected to mqtt broker", "broker", privacy.AnonymizeURL(n.cfg.Broker))
	return n.client, nil
}

// Close disconnects from the broker.
func (n *MQTTNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.client != nil && n.client.IsConnected() {
		n.client.Disconnect(mqttDisconnectQuiesce)
	}
	n.client = nil
	return nil
}

// waitToken blocks until token completes or ctx is done.
func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
