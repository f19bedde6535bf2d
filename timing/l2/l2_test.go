package l2_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvcache/mem"
	"github.com/sarchlab/rvcache/timing/dcache"
	"github.com/sarchlab/rvcache/timing/l2"
)

func TestL2(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "L2 Suite")
}

// immediateMemory accepts every request and answers reads one tick later.
type immediateMemory struct {
	backing  *mem.Memory
	lineSize int

	pending     bool
	pendingAddr uint64

	reads  []uint64
	writes []uint64
}

func (m *immediateMemory) Tick(req dcache.MemRequest) dcache.MemResponse {
	resp := dcache.MemResponse{}
	if m.pending {
		resp.Valid = true
		resp.Line = m.backing.ReadBytes(m.pendingAddr, m.lineSize)
		m.pending = false
	}
	if !req.Valid {
		return resp
	}
	resp.Ready = true
	if req.IsWrite {
		m.backing.WriteBytes(req.Address, req.Line)
		m.writes = append(m.writes, req.Address)
	} else {
		m.pending = true
		m.pendingAddr = req.Address
		m.reads = append(m.reads, req.Address)
	}
	return resp
}

var _ = Describe("Cache", func() {
	var (
		backing *mem.Memory
		lower   *immediateMemory
		c       *l2.Cache
	)

	BeforeEach(func() {
		backing = mem.NewMemory()
		lower = &immediateMemory{backing: backing, lineSize: 64}
		cfg := l2.DefaultConfig()
		cfg.HitLatency = 2
		cfg.MissPenalty = 1
		c = l2.New(cfg, lower)
	})

	readLine := func(addr uint64) []byte {
		var resp dcache.MemResponse
		for i := 0; i < 500; i++ {
			resp = c.Tick(dcache.MemRequest{Valid: true, Address: addr})
			if resp.Ready {
				break
			}
		}
		Expect(resp.Ready).To(BeTrue())
		for i := 0; i < 500; i++ {
			if resp.Valid {
				return resp.Line
			}
			resp = c.Tick(dcache.MemRequest{})
		}
		Fail("no line delivered")
		return nil
	}

	writeLine := func(addr uint64, line []byte) {
		for i := 0; i < 500; i++ {
			resp := c.Tick(dcache.MemRequest{
				Valid: true, Address: addr, IsWrite: true, Line: line,
			})
			if resp.Ready {
				return
			}
		}
		Fail("write never accepted")
	}

	It("fetches a missing line from the lower level", func() {
		backing.Write32(0x1000, 0xDEADBEEF)

		line := readLine(0x1000)
		Expect(line).To(HaveLen(64))
		Expect(line[0]).To(Equal(byte(0xEF)))
		Expect(lower.reads).To(Equal([]uint64{0x1000}))

		stats := c.Stats()
		Expect(stats.Misses).To(Equal(uint64(1)))
		Expect(stats.Hits).To(Equal(uint64(0)))
	})

	It("serves a second read from its own store", func() {
		backing.Write32(0x1000, 0x12345678)

		readLine(0x1000)
		line := readLine(0x1000)

		Expect(line[0]).To(Equal(byte(0x78)))
		Expect(lower.reads).To(HaveLen(1))
		Expect(c.Stats().Hits).To(Equal(uint64(1)))
	})

	It("absorbs full-line writes without fetching", func() {
		line := make([]byte, 64)
		line[8] = 0xAB

		writeLine(0x2000, line)
		Expect(lower.reads).To(BeEmpty())
		Expect(lower.writes).To(BeEmpty())

		got := readLine(0x2000)
		Expect(got[8]).To(Equal(byte(0xAB)))
		Expect(c.Stats().Writes).To(Equal(uint64(1)))
	})

	It("writes a dirty victim back before fetching its replacement", func() {
		line := make([]byte, 64)
		line[0] = 0x77
		writeLine(0x1000, line)

		// 512 sets x 64B blocks: addresses 0x8000 apart collide.
		for i := 1; i <= 8; i++ {
			readLine(0x1000 + uint64(i)*0x8000)
		}

		Expect(lower.writes).To(Equal([]uint64{0x1000}))
		Expect(backing.Read8(0x1000)).To(Equal(uint8(0x77)))
		Expect(c.Stats().Writebacks).To(Equal(uint64(1)))
	})

	It("flushes dirty blocks and invalidates everything", func() {
		line := make([]byte, 64)
		line[0] = 0x11
		writeLine(0x1000, line)
		line2 := make([]byte, 64)
		line2[0] = 0x22
		writeLine(0x2000, line2)

		c.FlushRequest()
		Expect(c.FlushDone()).To(BeFalse())
		for i := 0; i < 500 && !c.FlushDone(); i++ {
			c.Tick(dcache.MemRequest{})
		}
		Expect(c.FlushDone()).To(BeTrue())

		Expect(backing.Read8(0x1000)).To(Equal(uint8(0x11)))
		Expect(backing.Read8(0x2000)).To(Equal(uint8(0x22)))

		fetches := len(lower.reads)
		readLine(0x1000)
		Expect(lower.reads).To(HaveLen(fetches + 1))
	})

	It("resets without writing anything back", func() {
		line := make([]byte, 64)
		writeLine(0x1000, line)

		c.Reset()
		Expect(lower.writes).To(BeEmpty())
		Expect(c.Stats()).To(Equal(l2.Stats{}))
	})
})
