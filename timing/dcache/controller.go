// Package dcache models a non-blocking, set-associative, write-back L1 data
// cache with a miss-status holding register table. Hits are served while a
// miss refill is in flight, and misses to an outstanding line coalesce into
// its MSHR entry.
package dcache

// State is the refill orchestrator state.
type State int

const (
	// StateIdle serves hits and starts refills.
	StateIdle State = iota

	// StateWriteMem writes the dirty victim line back to memory.
	StateWriteMem

	// StateReadMem fetches the missed line from memory.
	StateReadMem

	// StateUpdateCache installs the fetched line. Single-cycle state.
	StateUpdateCache

	// StateFlush sweeps the cache, writing back dirty lines.
	StateFlush
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateWriteMem:
		return "WriteMem"
	case StateReadMem:
		return "ReadMem"
	case StateUpdateCache:
		return "UpdateCache"
	case StateFlush:
		return "Flush"
	}
	return "Unknown"
}

// Stats holds the performance counters. All counters reset to zero on
// controller reset.
type Stats struct {
	// Hits and Misses count accepted idle-state requests.
	Hits   uint64
	Misses uint64

	// RefillHits counts hits served while a refill was in flight.
	RefillHits uint64

	// Evictions counts completed line write-backs, flush sweeps included.
	Evictions uint64

	// Coalesces counts misses merged into an already outstanding miss.
	Coalesces uint64
}

// MSHREntryStatus is a read-only view of one miss-status holding register.
type MSHREntryStatus struct {
	ID          string
	Valid       bool
	LineAddress uint64
	WordMask    uint64
}

// MSHRStatus is a read-only view of the MSHR table.
type MSHRStatus struct {
	Full    bool
	Entries []MSHREntryStatus
}

// Controller is a non-blocking, set-associative, write-back data cache with
// an MSHR table. It serves word-sized CPU requests on one side and issues
// line-sized transactions to a MemoryPort on the other.
//
// Tick evaluates one cycle: the CPU request presented that cycle, the
// memory-side exchange, and the state commit. Non-blocking means hits, miss
// coalescing, and miss allocation keep being served while one refill is in
// flight; only one refill is active at a time even when several MSHRs are
// allocated.
type Controller struct {
	cfg   *Config
	mem   MemoryPort
	store *lineStore
	mshrs *mshrTable

	state State

	// Refill latches, captured when a miss starts its refill and held until
	// the install completes.
	saved      Request
	savedSet   int
	savedTag   uint64
	refillLine uint64
	victimWay  int
	victimTag  uint64
	activeMSHR int

	// queued marks a refill started from a pending MSHR entry rather than a
	// live request. Queued refills install the line but emit no response.
	queued bool

	memIssued bool
	fetched   []byte

	flushArmed bool
	flushDone  bool
	flushSet   int
	flushWay   int

	stats Stats
}

// NewController builds a controller over the given memory-side collaborator.
// The config must have been validated.
func NewController(cfg *Config, mem MemoryPort) *Controller {
	c := &Controller{
		cfg:       cfg.Clone(),
		mem:       mem,
		store:     newLineStore(cfg),
		mshrs:     newMSHRTable(cfg.NumMSHRs),
		flushDone: true,
	}
	return c
}

// Tick runs one cycle. The request is sampled once; the returned Response
// reports whether it was accepted (Ready) and whether a response is delivered
// this cycle (Valid). The MemoryPort is driven exactly once.
func (c *Controller) Tick(req Request) Response {
	switch c.state {
	case StateIdle:
		return c.tickIdle(req)
	case StateWriteMem:
		return c.tickWriteMem(req)
	case StateReadMem:
		return c.tickReadMem(req)
	case StateUpdateCache:
		return c.tickUpdateCache(req)
	case StateFlush:
		return c.tickFlush()
	}
	return Response{}
}

func (c *Controller) tickIdle(req Request) Response {
	if c.flushArmed {
		if c.mshrs.empty() {
			c.state = StateFlush
			c.flushSet = 0
			c.flushWay = 0
			return c.tickFlush()
		}
		// Outstanding misses drain before the sweep starts.
		c.startQueuedRefill()
		c.mem.Tick(MemRequest{})
		return Response{}
	}

	resp := Response{}
	startedRefill := false

	if req.Valid {
		setIdx := c.cfg.SetIndex(req.Address)
		tag := c.cfg.Tag(req.Address)
		if way, hit := c.store.lookup(setIdx, tag); hit {
			resp = c.serveHit(req, setIdx, way)
			c.stats.Hits++
		} else {
			lineAddr := c.cfg.LineAddress(req.Address)
			wordOff := c.cfg.WordOffset(req.Address)
			switch {
			case c.mshrs.contains(lineAddr):
				if req.IsWrite {
					// A pending refill already tracks this line. The store
					// data has nowhere to merge, so the request is not
					// accepted; it retries and hits once the line is
					// installed.
					break
				}
				// Coalesced into the outstanding miss. Accepted, but the
				// response comes through a later retry.
				c.mshrs.match(lineAddr, wordOff)
				resp = Response{Ready: true}
				c.stats.Misses++
				c.stats.Coalesces++
			default:
				if slot, ok := c.mshrs.allocate(lineAddr, wordOff); ok {
					c.startRefill(req, slot, false)
					resp = Response{Ready: true}
					c.stats.Misses++
					startedRefill = true
				}
				// MSHR table full: not accepted, retry.
			}
		}
	}

	if !startedRefill && c.state == StateIdle {
		c.startQueuedRefill()
	}

	c.mem.Tick(MemRequest{})
	return resp
}

// startRefill latches the in-flight request state and picks the next
// orchestrator state from the victim's dirty bit.
func (c *Controller) startRefill(req Request, slot int, queued bool) {
	lineAddr := c.mshrs.entries[slot].lineAddr
	setIdx := c.cfg.SetIndex(lineAddr)

	c.saved = req
	c.savedSet = setIdx
	c.savedTag = c.cfg.Tag(lineAddr)
	c.refillLine = lineAddr
	c.victimWay = c.store.victim(setIdx)
	c.activeMSHR = slot
	c.queued = queued
	c.memIssued = false

	valid, dirty, tag := c.store.lineMeta(setIdx, c.victimWay)
	c.victimTag = tag
	if valid && dirty {
		c.state = StateWriteMem
	} else {
		c.state = StateReadMem
	}
}

// startQueuedRefill services the lowest pending MSHR entry, if any. Entries
// allocated while an earlier refill was in flight are drained this way, one
// per free idle tick.
func (c *Controller) startQueuedRefill() {
	slot, ok := c.mshrs.lowestPending()
	if !ok {
		return
	}
	c.startRefill(Request{}, slot, true)
}

func (c *Controller) serveHit(req Request, setIdx, way int) Response {
	c.store.touch(setIdx, way)
	if req.IsWrite {
		c.store.writeWord(
			setIdx, way, c.cfg.WordOffset(req.Address), req.Data,
			req.ByteEnable)
		return Response{Ready: true, Valid: true}
	}
	data := c.store.readWord(setIdx, way, c.cfg.WordOffset(req.Address))
	return Response{Ready: true, Valid: true, Data: data}
}

// serveDuringRefill handles the CPU request presented while a refill is in
// flight. Hits are served from the line store. Read misses coalesce or
// allocate; write misses are rejected, since the store data could not be
// applied until its own refill completes. protectVictim rejects stores to
// the victim slot, whose line is about to be overwritten by the install: a
// store accepted there after the write-back would be lost.
func (c *Controller) serveDuringRefill(req Request, protectVictim bool) Response {
	if !req.Valid || c.flushArmed {
		return Response{}
	}

	setIdx := c.cfg.SetIndex(req.Address)
	tag := c.cfg.Tag(req.Address)
	if way, hit := c.store.lookup(setIdx, tag); hit {
		if protectVictim && req.IsWrite &&
			setIdx == c.savedSet && way == c.victimWay {
			return Response{}
		}
		resp := c.serveHit(req, setIdx, way)
		c.stats.RefillHits++
		return resp
	}

	if req.IsWrite {
		return Response{}
	}
	lineAddr := c.cfg.LineAddress(req.Address)
	wordOff := c.cfg.WordOffset(req.Address)
	if _, ok := c.mshrs.match(lineAddr, wordOff); ok {
		c.stats.Coalesces++
		return Response{Ready: true}
	}
	if _, ok := c.mshrs.allocate(lineAddr, wordOff); ok {
		return Response{Ready: true}
	}
	return Response{}
}

func (c *Controller) tickWriteMem(req Request) Response {
	resp := c.serveDuringRefill(req, true)

	memResp := c.mem.Tick(MemRequest{
		Valid:   true,
		Address: c.cfg.lineAddrOf(c.victimTag, c.savedSet),
		IsWrite: true,
		Line:    c.store.lineCopy(c.savedSet, c.victimWay),
	})
	if memResp.Ready {
		c.stats.Evictions++
		c.state = StateReadMem
		c.memIssued = false
	}

	return resp
}

func (c *Controller) tickReadMem(req Request) Response {
	resp := c.serveDuringRefill(req, true)

	memResp := c.mem.Tick(MemRequest{
		Valid:   !c.memIssued,
		Address: c.refillLine,
		IsWrite: false,
	})
	if memResp.Ready {
		c.memIssued = true
	}
	if memResp.Valid {
		c.fetched = append(c.fetched[:0], memResp.Line...)
		c.state = StateUpdateCache
	}

	return resp
}

func (c *Controller) tickUpdateCache(req Request) Response {
	c.store.install(c.savedSet, c.victimWay, c.savedTag, c.fetched)
	if !c.queued && c.saved.IsWrite {
		c.store.writeWord(
			c.savedSet, c.victimWay, c.cfg.WordOffset(c.saved.Address),
			c.saved.Data, c.saved.ByteEnable)
	}
	c.store.touch(c.savedSet, c.victimWay)

	// Retire before serving the current request, so a same-tick allocation
	// can reclaim the slot and a same-tick request to this line sees the
	// installed line rather than the retiring entry.
	c.mshrs.retire(c.activeMSHR)

	completion := Response{}
	if !c.queued {
		completion.Valid = true
		if !c.saved.IsWrite {
			completion.Data = c.store.readWord(
				c.savedSet, c.victimWay, c.cfg.WordOffset(c.saved.Address))
		}
	}

	c.state = StateIdle
	c.mem.Tick(MemRequest{})

	// The just-installed line is live, so a request matching it hits here.
	// A current-request hit outranks the completion response; misses are
	// rejected this tick and retried in the idle state.
	if req.Valid && !c.flushArmed {
		setIdx := c.cfg.SetIndex(req.Address)
		tag := c.cfg.Tag(req.Address)
		if way, hit := c.store.lookup(setIdx, tag); hit {
			resp := c.serveHit(req, setIdx, way)
			c.stats.RefillHits++
			return resp
		}
	}
	return completion
}

func (c *Controller) tickFlush() Response {
	// Clean and invalid lines cost nothing; dirty lines are written back one
	// per tick, honoring memory-side backpressure.
	for c.flushSet < c.cfg.NumSets {
		valid, dirty, tag := c.store.lineMeta(c.flushSet, c.flushWay)
		if valid && dirty {
			memResp := c.mem.Tick(MemRequest{
				Valid:   true,
				Address: c.cfg.lineAddrOf(tag, c.flushSet),
				IsWrite: true,
				Line:    c.store.lineCopy(c.flushSet, c.flushWay),
			})
			if memResp.Ready {
				c.stats.Evictions++
				c.store.invalidate(c.flushSet, c.flushWay)
				c.advanceFlushCursor()
			}
			return Response{}
		}
		c.store.invalidate(c.flushSet, c.flushWay)
		c.advanceFlushCursor()
	}

	c.store.resetLRU()
	c.flushArmed = false
	c.flushDone = true
	c.state = StateIdle
	c.mem.Tick(MemRequest{})
	return Response{}
}

func (c *Controller) advanceFlushCursor() {
	c.flushWay++
	if c.flushWay == c.cfg.NumWays {
		c.flushWay = 0
		c.flushSet++
	}
}

// FlushRequest arms a full write-back sweep. The sweep starts once the
// orchestrator is idle with no outstanding misses; until FlushDone reports
// true again, CPU requests are rejected. Every dirty line is written back,
// every line invalidated, and the replacement state cleared.
func (c *Controller) FlushRequest() {
	c.flushArmed = true
	c.flushDone = false
}

// FlushDone reports whether no flush is armed or running.
func (c *Controller) FlushDone() bool {
	return c.flushDone
}

// Reset returns the controller to its power-on state. All lines are
// invalidated, all MSHRs freed, and all counters cleared.
func (c *Controller) Reset() {
	c.store.reset()
	c.mshrs.reset()
	c.state = StateIdle
	c.saved = Request{}
	c.memIssued = false
	c.fetched = nil
	c.flushArmed = false
	c.flushDone = true
	c.stats = Stats{}
}

// State returns the current orchestrator state.
func (c *Controller) State() State {
	return c.state
}

// Stats returns a copy of the performance counters.
func (c *Controller) Stats() Stats {
	return c.stats
}

// MSHRStatus returns a read-only view of the MSHR table.
func (c *Controller) MSHRStatus() MSHRStatus {
	status := MSHRStatus{
		Full:    c.mshrs.full(),
		Entries: make([]MSHREntryStatus, len(c.mshrs.entries)),
	}
	for i, e := range c.mshrs.entries {
		status.Entries[i] = MSHREntryStatus{
			ID:          e.id,
			Valid:       e.valid,
			LineAddress: e.lineAddr,
			WordMask:    e.wordMask,
		}
	}
	return status
}
