package memctrl_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvcache/mem"
	"github.com/sarchlab/rvcache/timing/dcache"
	"github.com/sarchlab/rvcache/timing/memctrl"
)

func TestMemCtrl(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "MemCtrl Suite")
}

var _ = Describe("Model", func() {
	var (
		backing *mem.Memory
		m       *memctrl.Model
	)

	BeforeEach(func() {
		backing = mem.NewMemory()
		cfg := memctrl.DefaultConfig()
		cfg.ResponseLatency = 3
		m = memctrl.New(cfg, backing)
	})

	It("delivers a read line after the response latency", func() {
		backing.Write32(0x1000, 0x12345678)

		resp := m.Tick(dcache.MemRequest{Valid: true, Address: 0x1000})
		Expect(resp.Ready).To(BeTrue())
		Expect(resp.Valid).To(BeFalse())

		m.Tick(dcache.MemRequest{})
		m.Tick(dcache.MemRequest{})
		resp = m.Tick(dcache.MemRequest{})
		Expect(resp.Valid).To(BeTrue())
		Expect(resp.Line).To(HaveLen(64))
		Expect(resp.Line[0]).To(Equal(byte(0x78)))
		Expect(resp.Line[3]).To(Equal(byte(0x12)))
	})

	It("completes writes at acceptance", func() {
		line := make([]byte, 64)
		line[4] = 0xAB

		resp := m.Tick(dcache.MemRequest{
			Valid:   true,
			Address: 0x2000,
			IsWrite: true,
			Line:    line,
		})
		Expect(resp.Ready).To(BeTrue())
		Expect(backing.Read8(0x2004)).To(Equal(uint8(0xAB)))
	})

	It("rejects new requests while a read is in flight", func() {
		m.Tick(dcache.MemRequest{Valid: true, Address: 0x1000})

		resp := m.Tick(dcache.MemRequest{Valid: true, Address: 0x3000})
		Expect(resp.Ready).To(BeFalse())

		stats := m.Stats()
		Expect(stats.Reads).To(Equal(uint64(1)))
		Expect(stats.StallTicks).To(Equal(uint64(1)))
	})

	It("holds requests for the accept latency", func() {
		cfg := memctrl.DefaultConfig()
		cfg.AcceptLatency = 2
		cfg.ResponseLatency = 1
		m = memctrl.New(cfg, backing)

		req := dcache.MemRequest{Valid: true, Address: 0x1000}
		Expect(m.Tick(req).Ready).To(BeFalse())
		Expect(m.Tick(req).Ready).To(BeFalse())
		Expect(m.Tick(req).Ready).To(BeTrue())
	})

	It("counts traffic", func() {
		m.Tick(dcache.MemRequest{
			Valid: true, Address: 0x0, IsWrite: true, Line: make([]byte, 64),
		})
		m.Tick(dcache.MemRequest{Valid: true, Address: 0x40})

		stats := m.Stats()
		Expect(stats.Writes).To(Equal(uint64(1)))
		Expect(stats.BytesWritten).To(Equal(uint64(64)))
		Expect(stats.Reads).To(Equal(uint64(1)))
		Expect(stats.BytesRead).To(Equal(uint64(64)))
	})
})
