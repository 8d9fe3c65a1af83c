// Package kafka implements the Kafka transport adapter backed by a sarama
// sync producer and consumer group.
package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tether/pkg/adapter"
	"github.com/ajitpratap0/tether/pkg/adapter/base"
	"github.com/ajitpratap0/tether/pkg/errors"
)

// TransportName is the registry type name of this adapter.
const TransportName = "kafka"

// Config extends the base adapter configuration with Kafka connection
// parameters.
type Config struct {
	adapter.Config `mapstructure:",squash"`

	Brokers       []string `mapstructure:"brokers"`
	ProduceTopic  string   `mapstructure:"produce_topic"`
	ConsumeTopic  string   `mapstructure:"consume_topic"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	InitialOffset string   `mapstructure:"initial_offset"` // "newest" or "oldest"
	SASLUsername  string   `mapstructure:"sasl_username"`
	SASLPassword  string   `mapstructure:"sasl_password"`
}

// ParseConfig builds a Config from a free-form configuration map.
func ParseConfig(raw map[string]interface{}) (*Config, error) {
	cfg := &Config{
		Config:        adapter.DefaultConfig(TransportName),
		Brokers:       []string{"localhost:9092"},
		ProduceTopic:  "tether-out",
		ConsumeTopic:  "tether-in",
		ConsumerGroup: "tether",
		InitialOffset: "newest",
	}
	if err := adapter.Decode(raw, cfg); err != nil {
		return nil, err
	}
	cfg.Name = TransportName
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "at least one broker is required")
	}
	switch strings.ToLower(cfg.InitialOffset) {
	case "newest", "oldest":
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "initial_offset must be newest or oldest, got %q", cfg.InitialOffset)
	}
	return cfg, nil
}

// Adapter is the Kafka transport adapter.
type Adapter struct {
	*base.BaseAdapter

	cfg      *Config
	client   sarama.Client
	producer sarama.SyncProducer
	group    sarama.ConsumerGroup
}

// New creates a Kafka adapter from a free-form configuration map. Matches
// the registry.Factory signature.
func New(raw map[string]interface{}) (adapter.Adapter, error) {
	cfg, err := ParseConfig(raw)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		BaseAdapter: base.NewBaseAdapter(cfg.Config),
		cfg:         cfg,
	}, nil
}

func (a *Adapter) saramaConfig() *sarama.Config {
	sc := sarama.NewConfig()
	sc.ClientID = "tether-" + a.ConnectionID()
	sc.Net.DialTimeout = a.cfg.Timeout

	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true

	sc.Consumer.Return.Errors = true
	sc.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	if strings.EqualFold(a.cfg.InitialOffset, "oldest") {
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	if a.cfg.SASLUsername != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		sc.Net.SASL.User = a.cfg.SASLUsername
		sc.Net.SASL.Password = a.cfg.SASLPassword
	}
	return sc
}

// Connect dials the broker set under the retry policy and starts the
// consumer group loop.
func (a *Adapter) Connect(ctx context.Context) error {
	a.BeginConnect(ctx)

	err := a.ConnectWithRetry(ctx, func(context.Context) error {
		client, err := sarama.NewClient(a.cfg.Brokers, a.saramaConfig())
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConnection,
				fmt.Sprintf("broker dial failed (%s)", strings.Join(a.cfg.Brokers, ",")))
		}

		producer, err := sarama.NewSyncProducerFromClient(client)
		if err != nil {
			_ = client.Close()
			return errors.Wrap(err, errors.ErrorTypeConnection, "producer init failed")
		}

		group, err := sarama.NewConsumerGroupFromClient(a.cfg.ConsumerGroup, client)
		if err != nil {
			_ = producer.Close()
			_ = client.Close()
			return errors.Wrap(err, errors.ErrorTypeConnection, "consumer group init failed")
		}

		a.client = client
		a.producer = producer
		a.group = group
		return nil
	})
	if err != nil {
		return err
	}

	a.Go("consume", a.runConsumeLoop)
	a.Go("consume-errors", a.runErrorLoop)
	return nil
}

// runConsumeLoop drives the consumer group session. Consume returns on
// every rebalance, so it is called in a loop until the adapter stops.
func (a *Adapter) runConsumeLoop(ctx context.Context) {
	handler := &groupHandler{adapter: a}
	for a.Running() {
		if err := a.group.Consume(ctx, []string{a.cfg.ConsumeTopic}, handler); err != nil {
			if ctx.Err() != nil {
				return
			}
			a.HandleError(ctx, errors.Wrap(err, errors.ErrorTypeReceive, "consumer group session failed"))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// runErrorLoop surfaces asynchronous consumer group errors.
func (a *Adapter) runErrorLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-a.group.Errors():
			if !ok {
				return
			}
			a.HandleError(ctx, errors.Wrap(err, errors.ErrorTypeReceive, "consumer error"))
		}
	}
}

// groupHandler routes claimed messages into the shared receive path.
type groupHandler struct {
	adapter *Adapter
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			h.adapter.HandleReceivedData(session.Context(), message.Value)
			session.MarkMessage(message, "")
			h.adapter.Logger().Debug("consumed message",
				zap.String("topic", message.Topic),
				zap.Int32("partition", message.Partition),
				zap.Int64("offset", message.Offset))
		case <-session.Context().Done():
			return nil
		}
	}
}

// Send produces data to the outbound topic.
func (a *Adapter) Send(ctx context.Context, data []byte) (int, error) {
	if err := a.EnsureConnected(); err != nil {
		return 0, err
	}

	msg := &sarama.ProducerMessage{
		Topic: a.cfg.ProduceTopic,
		Value: sarama.ByteEncoder(data),
	}
	partition, offset, err := a.producer.SendMessage(msg)
	if err != nil {
		werr := errors.Wrap(err, errors.ErrorTypeSend, "produce failed")
		a.HandleError(ctx, werr)
		return 0, werr
	}

	a.RecordSend(len(data))
	a.Logger().Debug("produced message",
		zap.String("topic", a.cfg.ProduceTopic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.Int("bytes", len(data)))
	return len(data), nil
}

// Disconnect closes the producer, consumer group and client, then joins
// all background goroutines.
func (a *Adapter) Disconnect(context.Context) error {
	a.Halt() // stop the consume loop from re-entering a closed group
	if a.group != nil {
		if err := a.group.Close(); err != nil {
			a.Logger().Warn("consumer group close failed", zap.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.Logger().Warn("producer close failed", zap.Error(err))
		}
	}
	if a.client != nil && !a.client.Closed() {
		_ = a.client.Close()
	}
	a.Shutdown()
	return nil
}
