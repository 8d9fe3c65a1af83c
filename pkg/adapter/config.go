package adapter

import (
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/ajitpratap0/tether/pkg/errors"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Config is the base configuration shared by all transports. Transport
// packages embed it and add their own connection parameters.
type Config struct {
	// Name identifies the transport (e.g. "mqtt", "rest", "kafka")
	Name string `mapstructure:"name" json:"name"`

	// RetryMaxAttempts caps connect attempts before the adapter gives up
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" json:"retry_max_attempts"`

	// RetryBackoffFactor multiplies the backoff delay per failed attempt
	RetryBackoffFactor float64 `mapstructure:"retry_backoff_factor" json:"retry_backoff_factor"`

	// RetryMaxDelay caps the backoff delay between attempts
	RetryMaxDelay time.Duration `mapstructure:"retry_max_delay" json:"retry_max_delay"`

	// Timeout bounds individual transport operations
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`

	// Metadata carries free-form caller-supplied settings
	Metadata map[string]interface{} `mapstructure:"metadata" json:"metadata,omitempty"`
}

// DefaultConfig returns a Config with production defaults for the given
// transport name.
func DefaultConfig(name string) Config {
	return Config{
		Name:               name,
		RetryMaxAttempts:   5,
		RetryBackoffFactor: 2.0,
		RetryMaxDelay:      60 * time.Second,
		Timeout:            30 * time.Second,
	}
}

// Validate checks the retry policy bounds
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "transport name is required")
	}
	if c.RetryMaxAttempts < 1 {
		return errors.New(errors.ErrorTypeConfig, "retry_max_attempts must be at least 1")
	}
	if c.RetryBackoffFactor <= 1.0 {
		return errors.New(errors.ErrorTypeConfig, "retry_backoff_factor must be greater than 1.0")
	}
	if c.RetryMaxDelay <= 0 {
		return errors.New(errors.ErrorTypeConfig, "retry_max_delay must be positive")
	}
	return nil
}

// Decode fills target from a free-form configuration map. Duration fields
// accept numbers (seconds) or strings ("30s"). Unknown keys are ignored so
// transport-specific maps can be decoded into the base Config and into the
// transport config from the same source.
func Decode(raw map[string]interface{}, target interface{}) error {
	dc := &mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			secondsToDurationHook,
		),
	}
	dec, err := mapstructure.NewDecoder(dc)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid decoder configuration")
	}
	if err := dec.Decode(raw); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "malformed adapter configuration")
	}
	return nil
}

// secondsToDurationHook converts bare numbers into durations, treating them
// as seconds. Callers historically supply "timeout": 30 or
// "retry_max_delay": 10.5 in JSON config maps.
func secondsToDurationHook(_, to reflect.Type, data interface{}) (interface{}, error) {
	if to != durationType {
		return data, nil
	}
	switch v := data.(type) {
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	}
	return data, nil
}
