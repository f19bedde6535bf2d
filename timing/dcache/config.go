package dcache

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"os"
)

// wordBytes is the CPU-side access width. The controller serves 32-bit words
// with per-byte write enables.
const wordBytes = 4

// Config holds the cache geometry.
type Config struct {
	// NumSets is the number of sets. Must be a power of two.
	NumSets int `json:"num_sets"`

	// NumWays is the associativity. Must be a power of two; 1 selects a
	// direct-mapped cache.
	NumWays int `json:"num_ways"`

	// LineSize is the cache line size in bytes. Must be a power of two and a
	// multiple of the word size.
	LineSize int `json:"line_size"`

	// NumMSHRs is the number of miss-status holding registers, bounding the
	// number of outstanding misses.
	NumMSHRs int `json:"num_mshrs"`
}

// DefaultConfig returns the reference geometry: 4KB, 4-way, 64B lines,
// 8 MSHRs.
func DefaultConfig() *Config {
	return &Config{
		NumSets:  16,
		NumWays:  4,
		LineSize: 64,
		NumMSHRs: 8,
	}
}

// LoadConfig loads a Config from a JSON file. Missing fields keep their
// default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse cache config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that the geometry is well formed.
func (c *Config) Validate() error {
	if c.NumSets <= 0 || bits.OnesCount(uint(c.NumSets)) != 1 {
		return fmt.Errorf("num_sets must be a power of two, got %d", c.NumSets)
	}
	if c.NumWays <= 0 || bits.OnesCount(uint(c.NumWays)) != 1 {
		return fmt.Errorf("num_ways must be a power of two, got %d", c.NumWays)
	}
	if c.LineSize < wordBytes || bits.OnesCount(uint(c.LineSize)) != 1 {
		return fmt.Errorf(
			"line_size must be a power of two of at least %d bytes, got %d",
			wordBytes, c.LineSize)
	}
	if c.NumMSHRs <= 0 {
		return fmt.Errorf("num_mshrs must be > 0, got %d", c.NumMSHRs)
	}
	if c.WordsPerLine() > 64 {
		return fmt.Errorf(
			"line_size %d exceeds the %d-word mask limit", c.LineSize, 64)
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// WordsPerLine returns the number of 32-bit words per cache line.
func (c *Config) WordsPerLine() int {
	return c.LineSize / wordBytes
}

func (c *Config) offsetBits() int {
	return bits.TrailingZeros(uint(c.LineSize))
}

func (c *Config) setBits() int {
	return bits.TrailingZeros(uint(c.NumSets))
}

// LineAddress strips the in-line offset bits from addr.
func (c *Config) LineAddress(addr uint64) uint64 {
	return addr &^ uint64(c.LineSize-1)
}

// SetIndex returns the set that addr maps to.
func (c *Config) SetIndex(addr uint64) int {
	return int(addr>>c.offsetBits()) & (c.NumSets - 1)
}

// Tag returns the tag bits of addr.
func (c *Config) Tag(addr uint64) uint64 {
	return addr >> (c.offsetBits() + c.setBits())
}

// WordOffset returns the index of the 32-bit word addr falls in within its
// line.
func (c *Config) WordOffset(addr uint64) int {
	return int(addr&uint64(c.LineSize-1)) / wordBytes
}

// lineAddrOf rebuilds a line address from its tag and set index. Used to
// address write-backs, whose lines are identified by stored tags.
func (c *Config) lineAddrOf(tag uint64, setIdx int) uint64 {
	return tag<<(c.offsetBits()+c.setBits()) |
		uint64(setIdx)<<c.offsetBits()
}
