// Package l2 models a unified second-level cache between the L1 data cache
// and the memory controller, using Akita cache components for tag and
// replacement bookkeeping.
package l2

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/rvcache/timing/dcache"
)

type state int

const (
	stateIdle state = iota
	stateHitWait
	stateMissWait
	stateWriteBack
	stateFetch
)

// Stats holds L2 performance statistics.
type Stats struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// Cache is a tick-level write-back L2. It serves line-granular requests on
// its upper side and issues line-granular requests to the lower MemoryPort,
// one transaction at a time on either side.
type Cache struct {
	cfg       *Config
	directory *akitacache.DirectoryImpl
	dataStore [][]byte
	lower     dcache.MemoryPort

	state    state
	waitLeft int

	// Read-miss latches, held from acceptance to delivery.
	missAddr       uint64
	victim         *akitacache.Block
	victimWasValid bool
	fetchIssued    bool

	// Read-hit latch.
	hitBlock *akitacache.Block

	flushArmed bool
	flushDone  bool

	stats Stats
}

// New builds an L2 over the lower memory port. The config must have been
// validated.
func New(cfg *Config, lower dcache.MemoryPort) *Cache {
	numSets := cfg.NumSets()
	totalBlocks := numSets * cfg.Associativity

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, cfg.BlockSize)
	}

	return &Cache{
		cfg: cfg.Clone(),
		directory: akitacache.NewDirectory(
			numSets,
			cfg.Associativity,
			cfg.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		lower:     lower,
		flushDone: true,
	}
}

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.cfg.Associativity + block.WayID
}

func (c *Cache) blockAddr(addr uint64) uint64 {
	return addr &^ uint64(c.cfg.BlockSize-1)
}

// Tick advances one cycle, sampling at most one request. The lower port is
// driven exactly once.
func (c *Cache) Tick(req dcache.MemRequest) dcache.MemResponse {
	switch c.state {
	case stateIdle:
		return c.tickIdle(req)
	case stateHitWait:
		return c.tickHitWait()
	case stateMissWait:
		if c.waitLeft > 0 {
			c.waitLeft--
			c.lower.Tick(dcache.MemRequest{})
			return dcache.MemResponse{}
		}
		if c.victimWasValid && c.victim.IsDirty {
			c.state = stateWriteBack
			return c.tickWriteBack()
		}
		c.state = stateFetch
		return c.tickFetch()
	case stateWriteBack:
		return c.tickWriteBack()
	case stateFetch:
		return c.tickFetch()
	}
	return dcache.MemResponse{}
}

func (c *Cache) tickIdle(req dcache.MemRequest) dcache.MemResponse {
	if c.flushArmed {
		return c.tickFlush()
	}
	if !req.Valid {
		c.lower.Tick(dcache.MemRequest{})
		return dcache.MemResponse{}
	}
	if req.IsWrite {
		return c.acceptWrite(req)
	}
	return c.acceptRead(req)
}

// acceptWrite handles a full-line write. A hit or a clean victim completes
// immediately; a dirty victim is written back first, holding the request off
// with Ready low until the slot is reusable.
func (c *Cache) acceptWrite(req dcache.MemRequest) dcache.MemResponse {
	addr := c.blockAddr(req.Address)

	block := c.directory.Lookup(0, addr)
	if block != nil && block.IsValid {
		c.stats.Writes++
		c.stats.Hits++
		copy(c.dataStore[c.blockIndex(block)], req.Line)
		block.IsDirty = true
		c.directory.Visit(block)
		c.lower.Tick(dcache.MemRequest{})
		return dcache.MemResponse{Ready: true}
	}

	victim := c.directory.FindVictim(addr)
	if victim == nil {
		c.lower.Tick(dcache.MemRequest{})
		return dcache.MemResponse{}
	}
	if victim.IsValid && victim.IsDirty {
		resp := c.lower.Tick(dcache.MemRequest{
			Valid:   true,
			Address: victim.Tag,
			IsWrite: true,
			Line:    c.dataStore[c.blockIndex(victim)],
		})
		if resp.Ready {
			c.stats.Writebacks++
			c.stats.Evictions++
			victim.IsValid = false
			victim.IsDirty = false
		}
		return dcache.MemResponse{}
	}

	c.stats.Writes++
	c.stats.Misses++
	if victim.IsValid {
		c.stats.Evictions++
	}
	copy(c.dataStore[c.blockIndex(victim)], req.Line)
	victim.Tag = addr
	victim.IsValid = true
	victim.IsDirty = true
	c.directory.Visit(victim)
	c.lower.Tick(dcache.MemRequest{})
	return dcache.MemResponse{Ready: true}
}

func (c *Cache) acceptRead(req dcache.MemRequest) dcache.MemResponse {
	addr := c.blockAddr(req.Address)

	block := c.directory.Lookup(0, addr)
	if block != nil && block.IsValid {
		c.stats.Reads++
		c.stats.Hits++
		c.directory.Visit(block)
		c.hitBlock = block
		c.waitLeft = c.cfg.HitLatency
		c.state = stateHitWait
		c.lower.Tick(dcache.MemRequest{})
		return dcache.MemResponse{Ready: true}
	}

	victim := c.directory.FindVictim(addr)
	if victim == nil {
		c.lower.Tick(dcache.MemRequest{})
		return dcache.MemResponse{}
	}

	c.stats.Reads++
	c.stats.Misses++
	c.missAddr = addr
	c.victim = victim
	c.victimWasValid = c.victim.IsValid
	c.fetchIssued = false
	c.waitLeft = c.cfg.MissPenalty
	c.state = stateMissWait
	c.lower.Tick(dcache.MemRequest{})
	return dcache.MemResponse{Ready: true}
}

func (c *Cache) tickHitWait() dcache.MemResponse {
	c.lower.Tick(dcache.MemRequest{})
	c.waitLeft--
	if c.waitLeft > 0 {
		return dcache.MemResponse{}
	}

	line := make([]byte, c.cfg.BlockSize)
	copy(line, c.dataStore[c.blockIndex(c.hitBlock)])
	c.hitBlock = nil
	c.state = stateIdle
	return dcache.MemResponse{Valid: true, Line: line}
}

func (c *Cache) tickWriteBack() dcache.MemResponse {
	resp := c.lower.Tick(dcache.MemRequest{
		Valid:   true,
		Address: c.victim.Tag,
		IsWrite: true,
		Line:    c.dataStore[c.blockIndex(c.victim)],
	})
	if resp.Ready {
		c.stats.Writebacks++
		c.state = stateFetch
		c.fetchIssued = false
	}
	return dcache.MemResponse{}
}

func (c *Cache) tickFetch() dcache.MemResponse {
	resp := c.lower.Tick(dcache.MemRequest{
		Valid:   !c.fetchIssued,
		Address: c.missAddr,
	})
	if resp.Ready {
		c.fetchIssued = true
	}
	if !resp.Valid {
		return dcache.MemResponse{}
	}

	if c.victimWasValid {
		c.stats.Evictions++
	}
	data := c.dataStore[c.blockIndex(c.victim)]
	copy(data, resp.Line)
	c.victim.Tag = c.missAddr
	c.victim.IsValid = true
	c.victim.IsDirty = false
	c.directory.Visit(c.victim)
	c.victim = nil
	c.state = stateIdle

	line := make([]byte, c.cfg.BlockSize)
	copy(line, data)
	return dcache.MemResponse{Valid: true, Line: line}
}

// tickFlush writes back one dirty block per tick; once none remain, every
// block is invalidated and the flush completes.
func (c *Cache) tickFlush() dcache.MemResponse {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if !block.IsValid || !block.IsDirty {
				continue
			}
			resp := c.lower.Tick(dcache.MemRequest{
				Valid:   true,
				Address: block.Tag,
				IsWrite: true,
				Line:    c.dataStore[c.blockIndex(block)],
			})
			if resp.Ready {
				c.stats.Writebacks++
				block.IsDirty = false
			}
			return dcache.MemResponse{}
		}
	}

	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			block.IsValid = false
			block.IsDirty = false
		}
	}
	c.flushArmed = false
	c.flushDone = true
	c.lower.Tick(dcache.MemRequest{})
	return dcache.MemResponse{}
}

// FlushRequest arms a write-back sweep. The sweep runs on idle ticks; until
// FlushDone reports true again, upstream requests are held off.
func (c *Cache) FlushRequest() {
	c.flushArmed = true
	c.flushDone = false
}

// FlushDone reports whether no flush is armed or running.
func (c *Cache) FlushDone() bool {
	return c.flushDone
}

// Stats returns a copy of the performance statistics.
func (c *Cache) Stats() Stats {
	return c.stats
}

// Reset invalidates every block without write-back and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Stats{}
	c.state = stateIdle
	c.victim = nil
	c.hitBlock = nil
	c.flushArmed = false
	c.flushDone = true
}
