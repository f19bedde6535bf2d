// Package mem provides a sparse byte-addressable memory model that backs the
// cache hierarchy.
package mem

// pageSize is the granularity of lazy page allocation.
const pageSize = 4096

// Memory is a sparse memory. Pages are allocated on first write; reads from
// unallocated pages return zero.
type Memory struct {
	pages map[uint64]*[pageSize]byte
}

// NewMemory creates an empty sparse memory.
func NewMemory() *Memory {
	return &Memory{
		pages: make(map[uint64]*[pageSize]byte),
	}
}

func (m *Memory) page(addr uint64, allocate bool) (*[pageSize]byte, uint64) {
	pageID := addr / pageSize
	offset := addr % pageSize

	p, ok := m.pages[pageID]
	if !ok {
		if !allocate {
			return nil, offset
		}
		p = &[pageSize]byte{}
		m.pages[pageID] = p
	}

	return p, offset
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint64) uint8 {
	p, offset := m.page(addr, false)
	if p == nil {
		return 0
	}
	return p[offset]
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint64, value uint8) {
	p, offset := m.page(addr, true)
	p[offset] = value
}

// Read16 reads a little-endian 16-bit value.
func (m *Memory) Read16(addr uint64) uint16 {
	return uint16(m.Read8(addr)) | uint16(m.Read8(addr+1))<<8
}

// Write16 writes a little-endian 16-bit value.
func (m *Memory) Write16(addr uint64, value uint16) {
	m.Write8(addr, uint8(value))
	m.Write8(addr+1, uint8(value>>8))
}

// Read32 reads a little-endian 32-bit value.
func (m *Memory) Read32(addr uint64) uint32 {
	return uint32(m.Read16(addr)) | uint32(m.Read16(addr+2))<<16
}

// Write32 writes a little-endian 32-bit value.
func (m *Memory) Write32(addr uint64, value uint32) {
	m.Write16(addr, uint16(value))
	m.Write16(addr+2, uint16(value>>16))
}

// Read64 reads a little-endian 64-bit value.
func (m *Memory) Read64(addr uint64) uint64 {
	return uint64(m.Read32(addr)) | uint64(m.Read32(addr+4))<<32
}

// Write64 writes a little-endian 64-bit value.
func (m *Memory) Write64(addr uint64, value uint64) {
	m.Write32(addr, uint32(value))
	m.Write32(addr+4, uint32(value>>32))
}

// ReadBytes reads size bytes starting at addr.
func (m *Memory) ReadBytes(addr uint64, size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = m.Read8(addr + uint64(i))
	}
	return data
}

// WriteBytes writes data starting at addr.
func (m *Memory) WriteBytes(addr uint64, data []byte) {
	for i, b := range data {
		m.Write8(addr+uint64(i), b)
	}
}
