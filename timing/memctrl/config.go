package memctrl

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"os"
)

// Config holds the memory controller timing parameters.
type Config struct {
	// LineSize is the transfer granularity in bytes. Must match the cache
	// line size and be a power of two.
	LineSize int `json:"line_size"`

	// AcceptLatency is the number of ticks a request is held at the
	// controller's front before it is accepted.
	AcceptLatency int `json:"accept_latency"`

	// ResponseLatency is the number of ticks between accepting a read and
	// delivering its line.
	ResponseLatency int `json:"response_latency"`
}

// DefaultConfig returns DRAM-ish defaults: 64B lines, immediate accept,
// 20-tick reads.
func DefaultConfig() *Config {
	return &Config{
		LineSize:        64,
		AcceptLatency:   0,
		ResponseLatency: 20,
	}
}

// LoadConfig loads a Config from a JSON file. Missing fields keep their
// default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse memory config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the parameters.
func (c *Config) Validate() error {
	if c.LineSize <= 0 || bits.OnesCount(uint(c.LineSize)) != 1 {
		return fmt.Errorf("line_size must be a power of two, got %d", c.LineSize)
	}
	if c.AcceptLatency < 0 {
		return fmt.Errorf("accept_latency must be >= 0, got %d", c.AcceptLatency)
	}
	if c.ResponseLatency < 1 {
		return fmt.Errorf("response_latency must be >= 1, got %d", c.ResponseLatency)
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
