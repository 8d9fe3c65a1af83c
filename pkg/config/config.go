// Package config provides the process-wide configuration for Tether.
//
// Settings are loaded from a YAML file with ${ENV_VAR} substitution and can
// be overridden by TETHER_* environment variables. Per-transport default
// maps are merged under caller-supplied connection config, with caller
// values taking precedence.
package config

import (
	"os"
	"strconv"
	"time"
)

// Settings is the unified process configuration.
type Settings struct {
	// Server settings
	Server ServerConfig `yaml:"server"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`

	// Security settings
	Security SecurityConfig `yaml:"security"`

	// Docs controls the documentation search index
	Docs DocsConfig `yaml:"docs"`

	// AdapterDefaults holds per-transport default connection settings,
	// merged under caller-supplied config
	AdapterDefaults map[string]map[string]interface{} `yaml:"adapter_defaults"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"` // json or console
}

// SecurityConfig holds API authentication settings.
type SecurityConfig struct {
	// APIKey, when set, is required in the X-API-Key header of every request
	APIKey string `yaml:"api_key"`
	// CORSOrigins lists allowed CORS origins
	CORSOrigins []string `yaml:"cors_origins"`
}

// DocsConfig controls documentation preloading.
type DocsConfig struct {
	// Enabled loads the documentation index on startup
	Enabled bool `yaml:"enabled"`
	// Dir is the directory of markdown files to index
	Dir string `yaml:"dir"`
}

// Default returns Settings with production defaults.
func Default() *Settings {
	return &Settings{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Security: SecurityConfig{
			CORSOrigins: []string{"*"},
		},
		Docs: DocsConfig{
			Enabled: false,
			Dir:     "docs",
		},
		AdapterDefaults: map[string]map[string]interface{}{
			"mqtt": {
				"host": "localhost",
				"port": 1883,
			},
			"kafka": {
				"brokers": []string{"localhost:9092"},
			},
			"rest": {
				"poll_interval": 1.0,
			},
		},
	}
}

// ApplyEnv overrides settings from TETHER_* environment variables.
func (s *Settings) ApplyEnv() {
	if v := os.Getenv("TETHER_HOST"); v != "" {
		s.Server.Host = v
	}
	if v := os.Getenv("TETHER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			s.Server.Port = port
		}
	}
	if v := os.Getenv("TETHER_API_KEY"); v != "" {
		s.Security.APIKey = v
	}
	if v := os.Getenv("TETHER_LOG_LEVEL"); v != "" {
		s.Logging.Level = v
	}
	if v := os.Getenv("TETHER_LOG_ENCODING"); v != "" {
		s.Logging.Encoding = v
	}
	if v := os.Getenv("TETHER_DOCS_DIR"); v != "" {
		s.Docs.Dir = v
		s.Docs.Enabled = true
	}
}

// AdapterDefaultsFor returns the default connection settings for a
// transport type merged under the supplied config. Caller values take
// precedence; the supplied map is not modified.
func (s *Settings) AdapterDefaultsFor(adapterType string, supplied map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{})
	for k, v := range s.AdapterDefaults[adapterType] {
		merged[k] = v
	}
	for k, v := range supplied {
		merged[k] = v
	}
	return merged
}
