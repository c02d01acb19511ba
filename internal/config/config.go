// Package config provides environment-based configuration for binaries
// built on the packet-stream transport.
//
// Queue capacities are protocol constants shared by both ends of a
// stream; loading them from one configuration source on both sides is
// what keeps a capacity mismatch (undefined behavior on the wire) from
// happening in practice.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all transport configuration.
type Config struct {
	Stream  StreamConfig
	Logging LogConfig
}

// StreamConfig holds the shared stream parameters.
type StreamConfig struct {
	SubmitSlots int `envconfig:"STREAM_SUBMIT_SLOTS" default:"64"`
	AckSlots    int `envconfig:"STREAM_ACK_SLOTS" default:"64"`
	RegionBytes int `envconfig:"STREAM_REGION_BYTES" default:"1048576"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Stream: StreamConfig{
			SubmitSlots: 64,
			AckSlots:    64,
			RegionBytes: 1 << 20,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
