// Package mqtt implements the push-style MQTT transport adapter. The broker
// delivers inbound messages via a subscription callback, which the adapter
// forwards into the shared receive path.
package mqtt

import (
	"context"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tether/pkg/adapter"
	"github.com/ajitpratap0/tether/pkg/adapter/base"
	"github.com/ajitpratap0/tether/pkg/errors"
)

// TransportName is the registry type name of this adapter.
const TransportName = "mqtt"

// Config extends the base adapter configuration with MQTT connection
// parameters.
type Config struct {
	adapter.Config `mapstructure:",squash"`

	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         int    `mapstructure:"qos"`
	KeepAlive   int    `mapstructure:"keepalive"` // seconds
	TLS         bool   `mapstructure:"tls"`
}

// ParseConfig builds a Config from a free-form configuration map.
func ParseConfig(raw map[string]interface{}) (*Config, error) {
	cfg := &Config{
		Config:      adapter.DefaultConfig(TransportName),
		Host:        "localhost",
		Port:        1883,
		TopicPrefix: "tether",
		QoS:         1,
		KeepAlive:   60,
	}
	if err := adapter.Decode(raw, cfg); err != nil {
		return nil, err
	}
	cfg.Name = TransportName
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.QoS < 0 || cfg.QoS > 2 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "qos must be 0, 1 or 2, got %d", cfg.QoS)
	}
	return cfg, nil
}

// Adapter is the MQTT transport adapter.
type Adapter struct {
	*base.BaseAdapter

	cfg    *Config
	client pahomqtt.Client

	publishTopic   string
	subscribeTopic string
}

// New creates an MQTT adapter from a free-form configuration map. Matches
// the registry.Factory signature.
func New(raw map[string]interface{}) (adapter.Adapter, error) {
	cfg, err := ParseConfig(raw)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		BaseAdapter:    base.NewBaseAdapter(cfg.Config),
		cfg:            cfg,
		publishTopic:   cfg.TopicPrefix + "/out",
		subscribeTopic: cfg.TopicPrefix + "/in",
	}, nil
}

// brokerURL assembles the broker address from the configured host and port.
func (a *Adapter) brokerURL() string {
	scheme := "tcp"
	if a.cfg.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, a.cfg.Host, a.cfg.Port)
}

// Connect establishes the broker session under the retry policy and starts
// the subscription keep-alive loop.
func (a *Adapter) Connect(ctx context.Context) error {
	bgCtx := a.BeginConnect(ctx)

	clientID := a.cfg.ClientID
	if clientID == "" {
		id := a.ConnectionID()
		if len(id) > 8 {
			id = id[:8]
		}
		clientID = "tether-" + id
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(a.brokerURL()).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(false). // retries are driven by the adapter's own policy
		SetKeepAlive(time.Duration(a.cfg.KeepAlive) * time.Second).
		SetConnectTimeout(a.cfg.Timeout)
	if a.cfg.Username != "" {
		opts.SetUsername(a.cfg.Username)
		opts.SetPassword(a.cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		a.SetStatus(adapter.StatusDisconnected)
		a.SetStatusMessage(fmt.Sprintf("Disconnected with error: %v", err))
		if a.Running() {
			a.HandleError(bgCtx, errors.Wrap(err, errors.ErrorTypeConnection, "broker connection lost"))
		}
	})

	a.client = pahomqtt.NewClient(opts)

	err := a.ConnectWithRetry(ctx, func(context.Context) error {
		token := a.client.Connect()
		if !token.WaitTimeout(a.cfg.Timeout) {
			return errors.New(errors.ErrorTypeTimeout, "broker connect timed out")
		}
		if err := token.Error(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection, "broker connect failed")
		}
		if !a.client.IsConnected() {
			return errors.New(errors.ErrorTypeConnection, "broker session not established")
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.Go("receive", a.runReceiveLoop)
	return nil
}

// runReceiveLoop subscribes to the inbound topic and keeps the session
// attached until the adapter stops. Message delivery itself happens on
// paho's callback goroutines.
func (a *Adapter) runReceiveLoop(ctx context.Context) {
	token := a.client.Subscribe(a.subscribeTopic, byte(a.cfg.QoS), func(_ pahomqtt.Client, msg pahomqtt.Message) {
		a.HandleReceivedData(ctx, msg.Payload())
	})
	if !token.WaitTimeout(a.cfg.Timeout) || token.Error() != nil {
		a.HandleError(ctx, errors.Wrap(token.Error(), errors.ErrorTypeReceive,
			fmt.Sprintf("subscribe to %s failed", a.subscribeTopic)))
		return
	}
	a.Logger().Info("subscribed", zap.String("topic", a.subscribeTopic))

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for a.Running() && a.client.IsConnected() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Send publishes data to the outbound topic.
func (a *Adapter) Send(ctx context.Context, data []byte) (int, error) {
	if err := a.EnsureConnected(); err != nil {
		return 0, err
	}

	token := a.client.Publish(a.publishTopic, byte(a.cfg.QoS), false, data)
	if !token.WaitTimeout(a.cfg.Timeout) {
		err := errors.New(errors.ErrorTypeTimeout, "publish timed out")
		a.HandleError(ctx, err)
		return 0, err
	}
	if err := token.Error(); err != nil {
		werr := errors.Wrap(err, errors.ErrorTypeSend, "publish failed")
		a.HandleError(ctx, werr)
		return 0, werr
	}

	a.RecordSend(len(data))
	a.Logger().Debug("published",
		zap.String("topic", a.publishTopic), zap.Int("bytes", len(data)))
	return len(data), nil
}

// Subscribe attaches an additional topic to the shared receive path.
func (a *Adapter) Subscribe(ctx context.Context, topic string) error {
	if err := a.EnsureConnected(); err != nil {
		return err
	}
	token := a.client.Subscribe(topic, byte(a.cfg.QoS), func(_ pahomqtt.Client, msg pahomqtt.Message) {
		a.HandleReceivedData(ctx, msg.Payload())
	})
	if !token.WaitTimeout(a.cfg.Timeout) || token.Error() != nil {
		return errors.Wrap(token.Error(), errors.ErrorTypeReceive,
			fmt.Sprintf("subscribe to %s failed", topic))
	}
	a.Logger().Info("subscribed", zap.String("topic", topic))
	return nil
}

// Unsubscribe detaches a topic.
func (a *Adapter) Unsubscribe(topic string) error {
	if err := a.EnsureConnected(); err != nil {
		return err
	}
	token := a.client.Unsubscribe(topic)
	if !token.WaitTimeout(a.cfg.Timeout) || token.Error() != nil {
		return errors.Wrap(token.Error(), errors.ErrorTypeReceive,
			fmt.Sprintf("unsubscribe from %s failed", topic))
	}
	a.Logger().Info("unsubscribed", zap.String("topic", topic))
	return nil
}

// Disconnect tears the broker session down and joins all background
// goroutines. Safe to call on an already-disconnected adapter.
func (a *Adapter) Disconnect(context.Context) error {
	if a.client != nil && a.client.IsConnected() {
		a.client.Disconnect(250)
	}
	a.Shutdown()
	return nil
}
