package compute

import (
	"fmt"
	"strings"

	"github.com/spindle-gpu/spindle/driver"
)

// WorkSize describes an index space for a kernel dispatch: global
// extents per dimension, an optional work-group shape, and an optional
// global offset. Local and Offset may be empty; when present they must
// match Global's dimensionality.
type WorkSize struct {
	Global []int
	Local  []int
	Offset []int
}

// Work builds a WorkSize for the given global extents.
func Work(global ...int) WorkSize {
	return WorkSize{Global: global}
}

// WithLocal returns a copy with the work-group shape set.
func (w WorkSize) WithLocal(local ...int) WorkSize {
	w.Local = local
	return w
}

// WithOffset returns a copy with the global offset set.
func (w WorkSize) WithOffset(offset ...int) WorkSize {
	w.Offset = offset
	return w
}

// Dims returns the dimensionality of the global extents.
func (w WorkSize) Dims() int { return len(w.Global) }

// Validate checks the shape: one to three global dimensions, every
// extent positive, and Local/Offset either absent or of matching
// dimensionality with positive sizes and non-negative offsets.
// Divisibility of global by local is the device's decision and is
// reported by the dispatch itself.
func (w WorkSize) Validate() error {
	const op = "work size"
	d := len(w.Global)
	if d < 1 || d > 3 {
		return usagef(op, "want 1 to 3 dimensions, got %d", d)
	}
	for i, g := range w.Global {
		if g < 1 {
			return usagef(op, "global[%d] = %d, extents must be positive", i, g)
		}
	}
	if len(w.Local) != 0 && len(w.Local) != d {
		return usagef(op, "local has %d dimensions, global has %d", len(w.Local), d)
	}
	for i, l := range w.Local {
		if l < 1 {
			return usagef(op, "local[%d] = %d, group sizes must be positive", i, l)
		}
	}
	if len(w.Offset) != 0 && len(w.Offset) != d {
		return usagef(op, "offset has %d dimensions, global has %d", len(w.Offset), d)
	}
	for i, o := range w.Offset {
		if o < 0 {
			return usagef(op, "offset[%d] = %d, offsets cannot be negative", i, o)
		}
	}
	return nil
}

// String renders the size the way it reads in an error message:
// "global [1024 8], local [256 1], offset [0 4]". Absent parts are
// omitted.
func (w WorkSize) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "global %v", w.Global)
	if len(w.Local) > 0 {
		fmt.Fprintf(&b, ", local %v", w.Local)
	}
	if len(w.Offset) > 0 {
		fmt.Fprintf(&b, ", offset %v", w.Offset)
	}
	return b.String()
}

// ndrange validates the size and converts it to the driver form.
func (w WorkSize) ndrange() (driver.NDRange, error) {
	if err := w.Validate(); err != nil {
		return driver.NDRange{}, err
	}
	var r driver.NDRange
	r.Dims = len(w.Global)
	for i, g := range w.Global {
		r.Global[i] = uint64(g)
	}
	if len(w.Local) > 0 {
		r.HasLocal = true
		for i, l := range w.Local {
			r.Local[i] = uint64(l)
		}
	}
	if len(w.Offset) > 0 {
		r.HasOffset = true
		for i, o := range w.Offset {
			r.Offset[i] = uint64(o)
		}
	}
	return r, nil
}

// CountWorkGroups returns how many groups of size local a dispatch over
// n items produces: ceil(n/local) while local < n, otherwise a single
// group. local must be positive.
func CountWorkGroups(local, n int) int {
	if local >= n {
		return 1
	}
	return (n + local - 1) / local
}
