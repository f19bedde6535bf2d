package dcache

// ByteEnable selects which byte lanes of a 32-bit word a store writes. Bit i
// enables byte lane i (little-endian: lane 0 is the least significant byte).
type ByteEnable uint8

// ByteEnableWord enables all four byte lanes.
const ByteEnableWord ByteEnable = 0xF

// Lane reports whether byte lane i is enabled.
func (e ByteEnable) Lane(i int) bool {
	return e&(1<<i) != 0
}

// Request is the CPU-side request, sampled once per tick. The low two address
// bits are ignored: accesses operate on the aligned 32-bit word and sub-word
// stores are expressed through ByteEnable.
type Request struct {
	Valid      bool
	Address    uint64
	IsWrite    bool
	Data       uint32
	ByteEnable ByteEnable
}

// Response is the CPU-side response for the same tick. Ready reports whether
// the request was accepted; a rejected request must be retried. Valid
// delivers Data for reads, or acknowledges completion for writes.
type Response struct {
	Ready bool
	Valid bool
	Data  uint32
}

// MemRequest is the memory-side request. It operates on whole cache lines.
type MemRequest struct {
	Valid   bool
	Address uint64
	IsWrite bool
	Line    []byte
}

// MemResponse is the memory-side response. Ready acknowledges acceptance of
// the request presented this tick; Valid delivers the line of an earlier
// accepted read.
type MemResponse struct {
	Ready bool
	Valid bool
	Line  []byte
}

// MemoryPort is the memory-side collaborator. The controller calls Tick
// exactly once per cycle, with an invalid MemRequest when it has nothing to
// issue, so that the collaborator can advance its own internal timing.
type MemoryPort interface {
	Tick(req MemRequest) MemResponse
}
