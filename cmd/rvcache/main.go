// Package main provides the rvcache CLI: it replays a memory-access trace
// through the data-cache hierarchy and reports timing statistics.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rvcache/mem"
	"github.com/sarchlab/rvcache/timing/dcache"
	"github.com/sarchlab/rvcache/timing/l2"
	"github.com/sarchlab/rvcache/timing/memctrl"
	"github.com/sarchlab/rvcache/trace"
)

var (
	dcacheConfigPath string
	l2ConfigPath     string
	memConfigPath    string
	withL2           bool
	flushAtEnd       bool
	verbose          bool
)

var rootCmd = &cobra.Command{
	Use:   "rvcache <trace-file>",
	Short: "Replay a memory-access trace through the data-cache model.",
	Long: `rvcache drives a cycle-level model of a non-blocking, write-back ` +
		`data cache with an MSHR table. It replays the accesses of a trace ` +
		`file one at a time and prints hit, miss, and stall statistics.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(args[0])
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVar(&dcacheConfigPath, "dcache-config", "",
		"path to data-cache geometry JSON file")
	rootCmd.Flags().StringVar(&l2ConfigPath, "l2-config", "",
		"path to L2 configuration JSON file")
	rootCmd.Flags().StringVar(&memConfigPath, "mem-config", "",
		"path to memory controller configuration JSON file")
	rootCmd.Flags().BoolVar(&withL2, "l2", false,
		"place an L2 between the data cache and memory")
	rootCmd.Flags().BoolVar(&flushAtEnd, "flush", false,
		"flush the cache after the trace and count the sweep")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
}

func runReplay(tracePath string) error {
	accesses, err := trace.Load(tracePath)
	if err != nil {
		return err
	}

	dcacheConfig := dcache.DefaultConfig()
	if dcacheConfigPath != "" {
		dcacheConfig, err = dcache.LoadConfig(dcacheConfigPath)
		if err != nil {
			return err
		}
	}

	memConfig := memctrl.DefaultConfig()
	if memConfigPath != "" {
		memConfig, err = memctrl.LoadConfig(memConfigPath)
		if err != nil {
			return err
		}
	}
	memConfig.LineSize = dcacheConfig.LineSize

	backing := mem.NewMemory()
	controller := memctrl.New(memConfig, backing)

	var port dcache.MemoryPort = controller
	var level2 *l2.Cache
	if withL2 {
		l2Config := l2.DefaultConfig()
		if l2ConfigPath != "" {
			l2Config, err = l2.LoadConfig(l2ConfigPath)
			if err != nil {
				return err
			}
		}
		l2Config.BlockSize = dcacheConfig.LineSize
		level2 = l2.New(l2Config, controller)
		port = level2
	}

	cache := dcache.NewController(dcacheConfig, port)

	if verbose {
		fmt.Printf("Trace: %s (%d accesses)\n", tracePath, len(accesses))
		fmt.Printf("Cache: %d sets x %d ways x %dB lines, %d MSHRs\n",
			dcacheConfig.NumSets, dcacheConfig.NumWays,
			dcacheConfig.LineSize, dcacheConfig.NumMSHRs)
	}

	result, err := Replay(cache, accesses)
	if err != nil {
		return err
	}

	if flushAtEnd {
		sweep, err := Drain(cache, level2)
		if err != nil {
			return err
		}
		result.Cycles += sweep
		if verbose {
			fmt.Printf("Flush sweep: %d cycles\n", sweep)
		}
	}

	PrintReport(os.Stdout, result, cache.Stats())

	if withL2 {
		l2Stats := level2.Stats()
		fmt.Printf("\n")
		fmt.Printf("L2:\n")
		fmt.Printf("  Hits:       %6d\n", l2Stats.Hits)
		fmt.Printf("  Misses:     %6d\n", l2Stats.Misses)
		fmt.Printf("  Writebacks: %6d\n", l2Stats.Writebacks)
	}

	memStats := controller.Stats()
	fmt.Printf("\n")
	fmt.Printf("Memory:\n")
	fmt.Printf("  Reads:  %6d (%d bytes)\n", memStats.Reads, memStats.BytesRead)
	fmt.Printf("  Writes: %6d (%d bytes)\n", memStats.Writes, memStats.BytesWritten)

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
