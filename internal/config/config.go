package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/chase3718/serial-midi-bridge/internal/bridge"
)

// Config holds all runtime configuration, loaded from BRIDGE_* environment
// variables.
type Config struct {
	// HTTP surface for commands, events and metrics
	Addr string `envconfig:"HTTP_ADDR" default:":8080"`

	// Logging
	Debug bool `envconfig:"DEBUG" default:"false"`

	// Pipeline
	Scaling       string `envconfig:"SCALING" default:"proportional"` // proportional (0-1000 raw) or clamp (0-127 raw)
	QueueCapacity int    `envconfig:"QUEUE_CAPACITY" default:"64"`
	Port          string `envconfig:"SERIAL_PORT"` // started on launch when set

	// MIDI outputs whose name contains one of these are skipped
	MIDIExclude []string `envconfig:"MIDI_EXCLUDE"`
}

// Load reads configuration from the environment. envconfig falls back to the
// unprefixed name (DEBUG, SERIAL_PORT, ...) when the BRIDGE_ one is unset.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("bridge", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that the environment parser cannot.
func (c *Config) Validate() error {
	if _, err := bridge.ParsePolicy(c.Scaling); err != nil {
		return err
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("queue capacity must be at least 1, got %d", c.QueueCapacity)
	}
	if c.Addr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	return nil
}

// Policy returns the configured scaling policy. Call Validate first.
func (c *Config) Policy() bridge.Policy {
	p, _ := bridge.ParsePolicy(c.Scaling)
	return p
}
