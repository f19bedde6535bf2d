package dcache

import "github.com/rs/xid"

// mshrEntry tracks one outstanding cache-line miss.
type mshrEntry struct {
	valid    bool
	id       string
	lineAddr uint64
	wordMask uint64
}

// mshrTable is a fixed-capacity CAM of outstanding misses. Valid entries
// always hold pairwise-distinct line addresses: a miss either coalesces into
// a matching entry or allocates a new one, never both.
//
// Slots are scanned in index order (first-free allocation, lowest-index
// match). A free list would serve larger tables without changing observable
// behavior.
type mshrTable struct {
	entries []mshrEntry
}

func newMSHRTable(capacity int) *mshrTable {
	return &mshrTable{
		entries: make([]mshrEntry, capacity),
	}
}

// allocate claims the first free slot for lineAddr, recording the requested
// word. It reports failure when the table is full, leaving every entry
// untouched.
func (t *mshrTable) allocate(lineAddr uint64, wordOff int) (int, bool) {
	for i := range t.entries {
		if t.entries[i].valid {
			continue
		}
		t.entries[i] = mshrEntry{
			valid:    true,
			id:       xid.New().String(),
			lineAddr: lineAddr,
			wordMask: 1 << wordOff,
		}
		return i, true
	}
	return 0, false
}

// match compares lineAddr against all valid entries and returns the lowest
// matching slot. On a match the requested word is ORed into the entry's word
// mask (coalescing).
func (t *mshrTable) match(lineAddr uint64, wordOff int) (int, bool) {
	for i := range t.entries {
		if t.entries[i].valid && t.entries[i].lineAddr == lineAddr {
			t.entries[i].wordMask |= 1 << wordOff
			return i, true
		}
	}
	return 0, false
}

// contains reports whether a valid entry tracks lineAddr, without the
// word-mask side effect of match.
func (t *mshrTable) contains(lineAddr uint64) bool {
	for i := range t.entries {
		if t.entries[i].valid && t.entries[i].lineAddr == lineAddr {
			return true
		}
	}
	return false
}

// retire frees the slot. Retiring an already-free slot is a no-op. Within a
// tick the controller sequences retire before allocate, so a same-tick
// allocation of the slot survives.
func (t *mshrTable) retire(slot int) {
	t.entries[slot] = mshrEntry{}
}

// full reports whether no free slot remains.
func (t *mshrTable) full() bool {
	for i := range t.entries {
		if !t.entries[i].valid {
			return false
		}
	}
	return true
}

// empty reports whether no miss is outstanding.
func (t *mshrTable) empty() bool {
	for i := range t.entries {
		if t.entries[i].valid {
			return false
		}
	}
	return true
}

// lowestPending returns the lowest valid slot, if any. The refill
// orchestrator drains pending entries in slot order.
func (t *mshrTable) lowestPending() (int, bool) {
	for i := range t.entries {
		if t.entries[i].valid {
			return i, true
		}
	}
	return 0, false
}

func (t *mshrTable) reset() {
	for i := range t.entries {
		t.entries[i] = mshrEntry{}
	}
}
