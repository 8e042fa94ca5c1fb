// Package parallel provides chunked parallel iteration used by the soft
// driver to fan kernel work items out across host CPUs.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 256, // Work items are cheap; amortize goroutine cost.
	}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinChunkSize {
		// Sequential fallback.
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForGrid walks an up-to-3D grid of extents, calling f(x, y, z) once per
// point. The linear index is decomposed x-fastest, matching how compute
// runtimes number global work items.
func ForGrid(extents [3]int, f func(x, y, z int), cfg Config) {
	ex := max(extents[0], 1)
	ey := max(extents[1], 1)
	ez := max(extents[2], 1)
	For(ex*ey*ez, func(i int) {
		x := i % ex
		y := (i / ex) % ey
		z := i / (ex * ey)
		f(x, y, z)
	}, cfg)
}
