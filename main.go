// Package main provides the entry point for rvcache.
// rvcache is a cycle-level model of a non-blocking, write-back data cache.
//
// For the full CLI, use: go run ./cmd/rvcache
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("rvcache - Non-blocking data-cache timing model")
	fmt.Println("")
	fmt.Println("Usage: rvcache [options] <trace-file>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  --dcache-config  Path to data-cache geometry JSON file")
	fmt.Println("  --l2             Place an L2 between the cache and memory")
	fmt.Println("  --flush          Flush the cache after the trace")
	fmt.Println("  -v               Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rvcache' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/rvcache' instead.")
	}
}
