package parallel

import (
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != 100 {
		t.Errorf("Expected 100, got %d", counter)
	}
}

func TestForGrid(t *testing.T) {
	cfg := DefaultConfig()

	ex, ey, ez := 4, 3, 2
	var visited [4][3][2]atomic.Int32

	ForGrid([3]int{ex, ey, ez}, func(x, y, z int) {
		visited[x][y][z].Add(1)
	}, cfg)

	for x := 0; x < ex; x++ {
		for y := 0; y < ey; y++ {
			for z := 0; z < ez; z++ {
				if n := visited[x][y][z].Load(); n != 1 {
					t.Errorf("point (%d,%d,%d) visited %d times", x, y, z, n)
				}
			}
		}
	}
}

func TestForGrid_ZeroExtents(t *testing.T) {
	var counter int64
	// Unused trailing dimensions are treated as extent 1.
	ForGrid([3]int{5, 0, 0}, func(x, y, z int) {
		if y != 0 || z != 0 {
			t.Errorf("unexpected coordinates (%d,%d,%d)", x, y, z)
		}
		atomic.AddInt64(&counter, 1)
	}, Config{Enabled: false})

	if counter != 5 {
		t.Errorf("Expected 5 points, got %d", counter)
	}
}
