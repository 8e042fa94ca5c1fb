// Package reduce orchestrates iterative device-side reductions.
//
// A reduction runs one main dispatch that collapses n inputs to one
// partial value per work group, then repeatedly dispatches a fold
// kernel over the partials until a single value remains. The host only
// ever sizes dispatches; the data stays on the device throughout.
// Reducing 1,048,576 items with work groups of 256 takes three
// dispatches: 1,048,576 -> 4,096 -> 16 -> 1.
package reduce

import (
	"fmt"

	"github.com/spindle-gpu/spindle/internal/compute"
)

func usagef(op, format string, args ...any) error {
	return &compute.UsageError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Plan is a one-dimensional reduction: Main maps n inputs to
// CountWorkGroups(Local, n) partials, Fold collapses partials the same
// way until one remains. Both kernels must already have their buffers
// bound; Rebind, when set, runs before each fold dispatch with the
// partial count that dispatch consumes.
type Plan struct {
	Main   *compute.Kernel
	Fold   *compute.Kernel
	Local  int
	Rebind func(count int) error
}

// Run enqueues the full reduction on q and drains the queue. It
// returns the number of kernel dispatches enqueued.
//
// The global size of every dispatch must divide by its group size, so n
// must be a multiple of Local whenever more than one group is needed.
// A Local below 2 cannot make progress over multiple groups and is
// rejected before anything is enqueued.
func (p Plan) Run(q *compute.Queue, n int) (int, error) {
	const op = "reduce"
	if p.Main == nil || p.Fold == nil {
		return 0, usagef(op, "plan needs both a main and a fold kernel")
	}
	if n < 1 {
		return 0, usagef(op, "n = %d, need at least one element", n)
	}
	if p.Local < 1 {
		return 0, usagef(op, "local size %d, must be positive", p.Local)
	}
	count := compute.CountWorkGroups(p.Local, n)
	if count > 1 && p.Local < 2 {
		return 0, usagef(op, "local size %d cannot fold %d elements", p.Local, n)
	}

	dispatches := 0
	err := q.EnqueueKernel(p.Main, compute.Work(n).WithLocal(min(p.Local, n)), nil, nil)
	if err != nil {
		return dispatches, err
	}
	dispatches++

	for count > 1 {
		local := min(p.Local, count)
		if p.Rebind != nil {
			if err := p.Rebind(count); err != nil {
				return dispatches, err
			}
		}
		if err := q.EnqueueKernel(p.Fold, compute.Work(count).WithLocal(local), nil, nil); err != nil {
			return dispatches, err
		}
		dispatches++
		next := compute.CountWorkGroups(local, count)
		if next >= count {
			// A fold that does not shrink would spin forever.
			return dispatches, usagef(op, "fold stalled at %d elements with local size %d", count, local)
		}
		count = next
	}
	return dispatches, q.Finish()
}

// Plan2D is a two-dimensional reduction that folds the Y extent down to
// one row while the X extent stays fixed. Main runs over the full
// [nx, ny] grid; Fold runs over [nx, county] grids of shrinking county.
type Plan2D struct {
	Main   *compute.Kernel
	Fold   *compute.Kernel
	LocalX int
	LocalY int
	Rebind func(county int) error
}

// Run enqueues the 2D reduction on q and drains the queue, returning
// the number of kernel dispatches enqueued. nx must be a multiple of
// LocalX; ny must be a multiple of LocalY whenever more than one group
// of rows is needed.
func (p Plan2D) Run(q *compute.Queue, nx, ny int) (int, error) {
	const op = "reduce 2d"
	if p.Main == nil || p.Fold == nil {
		return 0, usagef(op, "plan needs both a main and a fold kernel")
	}
	if nx < 1 || ny < 1 {
		return 0, usagef(op, "grid %dx%d, both extents must be at least one", nx, ny)
	}
	if p.LocalX < 1 || p.LocalY < 1 {
		return 0, usagef(op, "local sizes %dx%d, must be positive", p.LocalX, p.LocalY)
	}
	county := compute.CountWorkGroups(p.LocalY, ny)
	if county > 1 && p.LocalY < 2 {
		return 0, usagef(op, "local y size %d cannot fold %d rows", p.LocalY, ny)
	}

	dispatches := 0
	ws := compute.Work(nx, ny).WithLocal(p.LocalX, min(p.LocalY, ny))
	if err := q.EnqueueKernel(p.Main, ws, nil, nil); err != nil {
		return dispatches, err
	}
	dispatches++

	for county > 1 {
		ly := min(p.LocalY, county)
		if p.Rebind != nil {
			if err := p.Rebind(county); err != nil {
				return dispatches, err
			}
		}
		ws := compute.Work(nx, county).WithLocal(p.LocalX, ly)
		if err := q.EnqueueKernel(p.Fold, ws, nil, nil); err != nil {
			return dispatches, err
		}
		dispatches++
		next := compute.CountWorkGroups(ly, county)
		if next >= county {
			return dispatches, usagef(op, "fold stalled at %d rows with local y size %d", county, ly)
		}
		county = next
	}
	return dispatches, q.Finish()
}
