package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "kafka", cfg.Name)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, "tether-out", cfg.ProduceTopic)
	assert.Equal(t, "tether-in", cfg.ConsumeTopic)
	assert.Equal(t, "tether", cfg.ConsumerGroup)
	assert.Equal(t, "newest", cfg.InitialOffset)
}

func TestParseConfigOverrides(t *testing.T) {
	cfg, err := ParseConfig(map[string]interface{}{
		"brokers":        []string{"b1:9092", "b2:9092"},
		"produce_topic":  "events",
		"consume_topic":  "commands",
		"consumer_group": "plant-4",
		"initial_offset": "oldest",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Brokers)
	assert.Equal(t, "events", cfg.ProduceTopic)
	assert.Equal(t, "oldest", cfg.InitialOffset)
}

func TestParseConfigRejectsEmptyBrokers(t *testing.T) {
	_, err := ParseConfig(map[string]interface{}{"brokers": []string{}})
	assert.Error(t, err)
}

func TestParseConfigRejectsBadOffset(t *testing.T) {
	_, err := ParseConfig(map[string]interface{}{"initial_offset": "middle"})
	assert.Error(t, err)
}

func TestSaramaConfig(t *testing.T) {
	t.Run("oldest offset", func(t *testing.T) {
		a, err := New(map[string]interface{}{"initial_offset": "oldest"})
		require.NoError(t, err)
		sc := a.(*Adapter).saramaConfig()
		assert.Equal(t, sarama.OffsetOldest, sc.Consumer.Offsets.Initial)
		assert.True(t, sc.Producer.Return.Successes)
	})

	t.Run("sasl plain when credentials set", func(t *testing.T) {
		a, err := New(map[string]interface{}{
			"sasl_username": "svc",
			"sasl_password": "pw",
		})
		require.NoError(t, err)
		sc := a.(*Adapter).saramaConfig()
		assert.True(t, sc.Net.SASL.Enable)
		assert.Equal(t, sarama.SASLTypePlaintext, string(sc.Net.SASL.Mechanism))
	})

	t.Run("no sasl by default", func(t *testing.T) {
		a, err := New(nil)
		require.NoError(t, err)
		assert.False(t, a.(*Adapter).saramaConfig().Net.SASL.Enable)
	})
}
