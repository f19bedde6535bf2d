package dcache

import "encoding/binary"

// line is one cache line in a (set, way) slot.
type line struct {
	valid bool
	dirty bool
	tag   uint64
	data  []byte
}

// set holds the ways an address can map to, plus the replacement state.
type set struct {
	lines []line
	lru   plruTree
}

// lineStore owns the tag, valid, dirty, and data arrays of the cache as a
// flat arena of sets. The controller is the sole mutator.
type lineStore struct {
	cfg  *Config
	sets []set
}

func newLineStore(cfg *Config) *lineStore {
	s := &lineStore{cfg: cfg}
	s.reset()
	return s
}

func (s *lineStore) reset() {
	s.sets = make([]set, s.cfg.NumSets)
	for i := range s.sets {
		s.sets[i].lines = make([]line, s.cfg.NumWays)
		for j := range s.sets[i].lines {
			s.sets[i].lines[j].data = make([]byte, s.cfg.LineSize)
		}
	}
}

// lookup returns the way holding a valid line with the given tag. Ties are
// broken by the lowest way index.
func (s *lineStore) lookup(setIdx int, tag uint64) (int, bool) {
	for way := range s.sets[setIdx].lines {
		ln := &s.sets[setIdx].lines[way]
		if ln.valid && ln.tag == tag {
			return way, true
		}
	}
	return 0, false
}

// victim returns the way the replacement state currently selects for the set.
func (s *lineStore) victim(setIdx int) int {
	return s.sets[setIdx].lru.victim(s.cfg.NumWays)
}

// touch records an access to the given way in the set's replacement state.
func (s *lineStore) touch(setIdx, way int) {
	s.sets[setIdx].lru = s.sets[setIdx].lru.touch(s.cfg.NumWays, way)
}

// readWord returns the addressed 32-bit word from the line buffer.
func (s *lineStore) readWord(setIdx, way, wordOff int) uint32 {
	data := s.sets[setIdx].lines[way].data
	return binary.LittleEndian.Uint32(data[wordOff*wordBytes:])
}

// writeWord merges the enabled byte lanes of value into the addressed word
// and marks the line dirty when at least one lane is enabled. Bytes whose
// lane is disabled are preserved exactly.
func (s *lineStore) writeWord(
	setIdx, way, wordOff int,
	value uint32,
	enable ByteEnable,
) {
	ln := &s.sets[setIdx].lines[way]
	base := wordOff * wordBytes
	wrote := false
	for i := 0; i < wordBytes; i++ {
		if enable.Lane(i) {
			ln.data[base+i] = byte(value >> (8 * i))
			wrote = true
		}
	}
	if wrote {
		ln.dirty = true
	}
}

// install overwrites the (set, way) slot with a freshly fetched line. The
// installed line starts clean; a write-allocate merge afterwards marks it
// dirty through writeWord.
func (s *lineStore) install(setIdx, way int, tag uint64, data []byte) {
	ln := &s.sets[setIdx].lines[way]
	ln.valid = true
	ln.dirty = false
	ln.tag = tag
	copy(ln.data, data)
}

// lineMeta returns the valid, dirty, and tag state of a (set, way) slot.
func (s *lineStore) lineMeta(setIdx, way int) (valid, dirty bool, tag uint64) {
	ln := &s.sets[setIdx].lines[way]
	return ln.valid, ln.dirty, ln.tag
}

// invalidate drops the line in the (set, way) slot. The data buffer is kept
// allocated for reuse.
func (s *lineStore) invalidate(setIdx, way int) {
	ln := &s.sets[setIdx].lines[way]
	ln.valid = false
	ln.dirty = false
}

// resetLRU clears the replacement state of every set.
func (s *lineStore) resetLRU() {
	for i := range s.sets {
		s.sets[i].lru = 0
	}
}

// lineCopy returns a copy of the line buffer, decoupled from later mutation.
// Used for write-backs.
func (s *lineStore) lineCopy(setIdx, way int) []byte {
	data := make([]byte, s.cfg.LineSize)
	copy(data, s.sets[setIdx].lines[way].data)
	return data
}
