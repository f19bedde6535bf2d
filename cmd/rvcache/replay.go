package main

import (
	"fmt"
	"io"

	"github.com/sarchlab/rvcache/timing/dcache"
	"github.com/sarchlab/rvcache/timing/l2"
	"github.com/sarchlab/rvcache/trace"
)

// maxTicksPerAccess bounds how long the driver waits on a single access
// before declaring the memory side stuck.
const maxTicksPerAccess = 100000

// ReplayResult holds the cycle accounting of one trace replay.
type ReplayResult struct {
	Cycles     uint64
	Accesses   uint64
	Reads      uint64
	Writes     uint64
	StallTicks uint64
}

// Replay drives the trace through the controller one access at a time: each
// access is presented every tick until it is accepted, then the driver idles
// until the response arrives. Ticks spent presenting a rejected request
// count as stalls.
func Replay(c *dcache.Controller, accesses []trace.Access) (ReplayResult, error) {
	var result ReplayResult

	for i, a := range accesses {
		req := dcache.Request{
			Valid:      true,
			Address:    a.Address,
			IsWrite:    a.IsWrite,
			Data:       a.Data,
			ByteEnable: dcache.ByteEnable(a.ByteEnable),
		}

		accepted := false
		done := false
		for t := 0; t < maxTicksPerAccess; t++ {
			var resp dcache.Response
			if !accepted {
				resp = c.Tick(req)
				result.Cycles++
				if resp.Ready {
					accepted = true
				} else {
					result.StallTicks++
				}
			} else {
				resp = c.Tick(dcache.Request{})
				result.Cycles++
			}
			if resp.Valid {
				done = true
				break
			}
		}
		if !done {
			return result, fmt.Errorf(
				"access %d (%#x) got no response after %d ticks",
				i, a.Address, maxTicksPerAccess)
		}

		result.Accesses++
		if a.IsWrite {
			result.Writes++
		} else {
			result.Reads++
		}
	}

	return result, nil
}

// Drain runs the controller through a full flush, then flushes the second
// level if one is stacked below it, so write-backs reach memory. It returns
// the number of ticks the sweep took.
func Drain(c *dcache.Controller, level2 *l2.Cache) (uint64, error) {
	c.FlushRequest()
	ticks := uint64(0)
	for ; ticks < maxTicksPerAccess; ticks++ {
		c.Tick(dcache.Request{})
		if c.FlushDone() {
			ticks++
			break
		}
	}
	if !c.FlushDone() {
		return ticks, fmt.Errorf(
			"flush did not finish after %d ticks", maxTicksPerAccess)
	}
	if level2 == nil {
		return ticks, nil
	}

	level2.FlushRequest()
	for t := uint64(0); t < maxTicksPerAccess; t++ {
		level2.Tick(dcache.MemRequest{})
		if level2.FlushDone() {
			return ticks + t + 1, nil
		}
	}
	return ticks, fmt.Errorf(
		"L2 flush did not finish after %d ticks", maxTicksPerAccess)
}

// PrintReport writes the replay statistics in the style of a timing report.
func PrintReport(w io.Writer, result ReplayResult, stats dcache.Stats) {
	total := result.Cycles
	if total == 0 {
		total = 1
	}
	accesses := stats.Hits + stats.Misses
	if accesses == 0 {
		accesses = 1
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Accesses: %d (%d reads, %d writes)\n",
		result.Accesses, result.Reads, result.Writes)
	fmt.Fprintf(w, "Total Cycles: %d\n", result.Cycles)
	fmt.Fprintf(w, "Cycles per access: %.2f\n",
		float64(result.Cycles)/float64(max(result.Accesses, 1)))
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Cache:\n")
	fmt.Fprintf(w, "  Hits:        %6d (%5.1f%%)\n",
		stats.Hits, 100.0*float64(stats.Hits)/float64(accesses))
	fmt.Fprintf(w, "  Misses:      %6d (%5.1f%%)\n",
		stats.Misses, 100.0*float64(stats.Misses)/float64(accesses))
	fmt.Fprintf(w, "  Refill hits: %6d\n", stats.RefillHits)
	fmt.Fprintf(w, "  Coalesces:   %6d\n", stats.Coalesces)
	fmt.Fprintf(w, "  Evictions:   %6d\n", stats.Evictions)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Stall ticks: %d (%5.1f%%)\n",
		result.StallTicks, 100.0*float64(result.StallTicks)/float64(total))
}
