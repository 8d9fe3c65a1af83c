package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to ConnectionStatus
		ok       bool
	}{
		{StatusDisconnected, StatusConnecting, true},
		{StatusError, StatusConnecting, true},
		{StatusConnecting, StatusConnected, true},
		{StatusConnecting, StatusReconnecting, true},
		{StatusReconnecting, StatusConnected, true},
		{StatusConnected, StatusDisconnected, true},

		{StatusDisconnected, StatusConnected, false},
		{StatusConnected, StatusConnecting, false},
		{StatusReconnecting, StatusDisconnected, false},
		{StatusConnecting, StatusDisconnected, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestAnyStatusCanFail(t *testing.T) {
	for _, from := range []ConnectionStatus{
		StatusDisconnected, StatusConnecting, StatusConnected, StatusReconnecting, StatusError,
	} {
		assert.True(t, from.CanTransition(StatusError), "%s -> error", from)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("mqtt")
	assert.Equal(t, "mqtt", cfg.Name)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing name", func(c *Config) { c.Name = "" }},
		{"zero attempts", func(c *Config) { c.RetryMaxAttempts = 0 }},
		{"factor at one", func(c *Config) { c.RetryBackoffFactor = 1.0 }},
		{"negative max delay", func(c *Config) { c.RetryMaxDelay = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("fake")
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDecodeDurations(t *testing.T) {
	t.Run("bare numbers are seconds", func(t *testing.T) {
		var cfg Config
		err := Decode(map[string]interface{}{
			"name":            "fake",
			"timeout":         15,
			"retry_max_delay": 10.5,
		}, &cfg)
		require.NoError(t, err)
		assert.Equal(t, 15*time.Second, cfg.Timeout)
		assert.Equal(t, 10500*time.Millisecond, cfg.RetryMaxDelay)
	})

	t.Run("duration strings", func(t *testing.T) {
		var cfg Config
		err := Decode(map[string]interface{}{
			"name":    "fake",
			"timeout": "2m",
		}, &cfg)
		require.NoError(t, err)
		assert.Equal(t, 2*time.Minute, cfg.Timeout)
	})

	t.Run("unknown keys ignored", func(t *testing.T) {
		var cfg Config
		err := Decode(map[string]interface{}{
			"name": "fake",
			"host": "broker.local",
		}, &cfg)
		require.NoError(t, err)
		assert.Equal(t, "fake", cfg.Name)
	})
}
