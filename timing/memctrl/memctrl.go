// Package memctrl models the memory controller behind the cache hierarchy:
// line-granular transfers against a backing store, with configurable accept
// and response latency and at most one read in flight.
package memctrl

import (
	"github.com/sarchlab/rvcache/mem"
	"github.com/sarchlab/rvcache/timing/dcache"
)

// Stats holds the controller's traffic counters.
type Stats struct {
	Reads        uint64
	Writes       uint64
	BytesRead    uint64
	BytesWritten uint64
	StallTicks   uint64
}

// Model is a tick-level memory controller over a sparse backing memory.
// Writes complete at acceptance; an accepted read delivers its line
// ResponseLatency ticks later. While a read is in flight new requests are
// not accepted.
type Model struct {
	cfg     *Config
	backing *mem.Memory

	acceptLeft  int
	pending     bool
	pendingAddr uint64
	pendingLeft int

	stats Stats
}

// New builds a memory controller over the backing memory. The config must
// have been validated.
func New(cfg *Config, backing *mem.Memory) *Model {
	return &Model{
		cfg:        cfg.Clone(),
		backing:    backing,
		acceptLeft: cfg.AcceptLatency,
	}
}

// Tick advances one cycle, sampling at most one request.
func (m *Model) Tick(req dcache.MemRequest) dcache.MemResponse {
	resp := dcache.MemResponse{}

	if m.pending {
		m.pendingLeft--
		if m.pendingLeft <= 0 {
			resp.Valid = true
			resp.Line = m.backing.ReadBytes(m.pendingAddr, m.cfg.LineSize)
			m.pending = false
		}
	}

	if !req.Valid {
		return resp
	}
	if m.pending || m.acceptLeft > 0 {
		if m.acceptLeft > 0 {
			m.acceptLeft--
		}
		m.stats.StallTicks++
		return resp
	}

	resp.Ready = true
	m.acceptLeft = m.cfg.AcceptLatency

	if req.IsWrite {
		m.backing.WriteBytes(req.Address, req.Line)
		m.stats.Writes++
		m.stats.BytesWritten += uint64(len(req.Line))
	} else {
		m.pending = true
		m.pendingAddr = req.Address
		m.pendingLeft = m.cfg.ResponseLatency
		m.stats.Reads++
		m.stats.BytesRead += uint64(m.cfg.LineSize)
	}
	return resp
}

// Stats returns a copy of the traffic counters.
func (m *Model) Stats() Stats {
	return m.stats
}
