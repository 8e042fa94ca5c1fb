package compute

// Chain strings enqueue calls together without per-call error
// checking. The first failure sticks: later steps become no-ops and
// Finish or Err reports it. Within a chain, FIFO queue order is the
// only ordering; cross-queue dependencies enter through Wait and leave
// through Marker.
//
//	err := q.Chain().
//		Write(in, host).
//		Kernel(square, compute.Work(n).WithLocal(256)).
//		Read(out, result).
//		Finish()
//
// Reads and writes inside a chain are non-blocking; their data is valid
// once Finish returns.
type Chain struct {
	q   *Queue
	err error
}

// Chain starts a fluent enqueue sequence on the queue.
func (q *Queue) Chain() *Chain { return &Chain{q: q} }

func (c *Chain) step(fn func() error) *Chain {
	if c.err == nil {
		c.err = fn()
	}
	return c
}

// Kernel enqueues a dispatch.
func (c *Chain) Kernel(k *Kernel, ws WorkSize) *Chain {
	return c.step(func() error { return c.q.EnqueueKernel(k, ws, nil, nil) })
}

// Write enqueues a non-blocking whole-region write to offset 0.
func (c *Chain) Write(b *Buffer, src Memory) *Chain {
	return c.step(func() error { return c.q.EnqueueWrite(b, false, 0, src, nil, nil) })
}

// WriteAt enqueues a non-blocking write at a device-side byte offset.
func (c *Chain) WriteAt(b *Buffer, offset int, src Memory) *Chain {
	return c.step(func() error { return c.q.EnqueueWrite(b, false, offset, src, nil, nil) })
}

// Read enqueues a non-blocking whole-region read from offset 0.
func (c *Chain) Read(b *Buffer, dst Memory) *Chain {
	return c.step(func() error { return c.q.EnqueueRead(b, false, 0, dst, nil, nil) })
}

// ReadAt enqueues a non-blocking read from a device-side byte offset.
func (c *Chain) ReadAt(b *Buffer, offset int, dst Memory) *Chain {
	return c.step(func() error { return c.q.EnqueueRead(b, false, offset, dst, nil, nil) })
}

// Copy enqueues a device-to-device copy of n bytes from the start of
// src to the start of dst.
func (c *Chain) Copy(src, dst *Buffer, n int) *Chain {
	return c.step(func() error { return c.q.EnqueueCopy(src, dst, 0, 0, n, nil, nil) })
}

// Fill enqueues a whole-buffer fill with the repeating pattern.
func (c *Chain) Fill(b *Buffer, pattern []byte) *Chain {
	return c.step(func() error {
		if b == nil {
			return usagef("clEnqueueFillBuffer", "buffer is nil")
		}
		return c.q.EnqueueFill(b, pattern, 0, b.Size(), nil, nil)
	})
}

// FillAt enqueues a fill of n bytes starting at offset.
func (c *Chain) FillAt(b *Buffer, pattern []byte, offset, n int) *Chain {
	return c.step(func() error { return c.q.EnqueueFill(b, pattern, offset, n, nil, nil) })
}

// Wait enqueues a barrier on the given events: later chain steps run
// only after all of them complete.
func (c *Chain) Wait(events ...*Event) *Chain {
	return c.step(func() error { return c.q.EnqueueBarrier(events, nil) })
}

// Barrier enqueues a barrier on everything submitted so far.
func (c *Chain) Barrier() *Chain {
	return c.step(func() error { return c.q.EnqueueBarrier(nil, nil) })
}

// Marker attaches ev to the completion of everything enqueued so far,
// without blocking later steps.
func (c *Chain) Marker(ev *Event) *Chain {
	return c.step(func() error { return c.q.EnqueueMarker(nil, ev) })
}

// Err returns the sticky error without waiting for completion.
func (c *Chain) Err() error { return c.err }

// Finish drains the queue and returns the sticky error, or any error
// from the drain itself.
func (c *Chain) Finish() error {
	if c.err != nil {
		return c.err
	}
	return c.q.Finish()
}
