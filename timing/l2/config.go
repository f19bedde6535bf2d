package l2

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"os"
)

// Config holds the L2 geometry and timing parameters.
type Config struct {
	// Size in bytes.
	Size int `json:"size"`

	// Associativity (number of ways).
	Associativity int `json:"associativity"`

	// BlockSize in bytes. Must match the L1 line size.
	BlockSize int `json:"block_size"`

	// HitLatency is the number of ticks between accepting a read hit and
	// delivering its line.
	HitLatency int `json:"hit_latency"`

	// MissPenalty is the number of L2-internal ticks a read miss spends
	// before its downstream traffic starts. Downstream latency comes on top.
	MissPenalty int `json:"miss_penalty"`
}

// DefaultConfig returns a 256KB, 8-way L2 with 64B blocks.
func DefaultConfig() *Config {
	return &Config{
		Size:          256 * 1024,
		Associativity: 8,
		BlockSize:     64,
		HitLatency:    8,
		MissPenalty:   4,
	}
}

// LoadConfig loads a Config from a JSON file. Missing fields keep their
// default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read l2 config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse l2 config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the parameters.
func (c *Config) Validate() error {
	if c.BlockSize <= 0 || bits.OnesCount(uint(c.BlockSize)) != 1 {
		return fmt.Errorf("block_size must be a power of two, got %d", c.BlockSize)
	}
	if c.Associativity <= 0 {
		return fmt.Errorf("associativity must be > 0, got %d", c.Associativity)
	}
	if c.Size <= 0 || c.Size%(c.Associativity*c.BlockSize) != 0 {
		return fmt.Errorf(
			"size %d is not a multiple of associativity %d x block_size %d",
			c.Size, c.Associativity, c.BlockSize)
	}
	if c.HitLatency < 1 {
		return fmt.Errorf("hit_latency must be >= 1, got %d", c.HitLatency)
	}
	if c.MissPenalty < 0 {
		return fmt.Errorf("miss_penalty must be >= 0, got %d", c.MissPenalty)
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// NumSets returns the number of sets the geometry produces.
func (c *Config) NumSets() int {
	return c.Size / (c.Associativity * c.BlockSize)
}
