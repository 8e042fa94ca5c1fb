package soft

import "sync/atomic"

const (
	opKernel  = "kernel"
	opRead    = "read"
	opWrite   = "write"
	opCopy    = "copy"
	opFill    = "fill"
	opMap     = "map"
	opUnmap   = "unmap"
	opBarrier = "barrier"
	opMarker  = "marker"
	opFinish  = "finish"
)

// counters accumulates executed operations per class.
type counters struct {
	kernels  atomic.Uint64
	reads    atomic.Uint64
	writes   atomic.Uint64
	copies   atomic.Uint64
	fills    atomic.Uint64
	maps     atomic.Uint64
	unmaps   atomic.Uint64
	barriers atomic.Uint64
	markers  atomic.Uint64
	finishes atomic.Uint64
}

func (c *counters) bump(op string) {
	switch op {
	case opKernel:
		c.kernels.Add(1)
	case opRead:
		c.reads.Add(1)
	case opWrite:
		c.writes.Add(1)
	case opCopy:
		c.copies.Add(1)
	case opFill:
		c.fills.Add(1)
	case opMap:
		c.maps.Add(1)
	case opUnmap:
		c.unmaps.Add(1)
	case opBarrier:
		c.barriers.Add(1)
	case opMarker:
		c.markers.Add(1)
	case opFinish:
		c.finishes.Add(1)
	}
}

// Stats is a point-in-time snapshot of executed operation counts. The
// kernel counter is what reduction tests use to observe dispatch rounds.
type Stats struct {
	KernelDispatches uint64
	Reads            uint64
	Writes           uint64
	Copies           uint64
	Fills            uint64
	Maps             uint64
	Unmaps           uint64
	Barriers         uint64
	Markers          uint64
	Finishes         uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		KernelDispatches: c.kernels.Load(),
		Reads:            c.reads.Load(),
		Writes:           c.writes.Load(),
		Copies:           c.copies.Load(),
		Fills:            c.fills.Load(),
		Maps:             c.maps.Load(),
		Unmaps:           c.unmaps.Load(),
		Barriers:         c.barriers.Load(),
		Markers:          c.markers.Load(),
		Finishes:         c.finishes.Load(),
	}
}
