package compute

import (
	"go.uber.org/zap"

	"github.com/spindle-gpu/spindle/driver"
)

// Queue is a FIFO submission point on one device. Enqueue calls take an
// optional wait-list of events that must complete first and an optional
// out-event that will track the new operation. Pass nil for either when
// ordering or tracking is not needed.
//
// A Queue is safe for concurrent use; commands from concurrent callers
// interleave in submission order.
type Queue struct {
	d     driver.Driver
	h     handle
	dev   *Device
	props driver.QueueProp
}

// Handle returns the native queue handle, zero once released.
func (q *Queue) Handle() driver.Queue { return driver.Queue(q.h.load()) }

// Released reports whether Release has run.
func (q *Queue) Released() bool { return q.h.released() }

// Equal reports whether both wrappers currently hold the same handle.
func (q *Queue) Equal(o *Queue) bool { return o != nil && q.h.equal(&o.h) }

// Device returns the device the queue submits to.
func (q *Queue) Device() *Device { return q.dev }

// Profiling reports whether the queue records event timestamps.
func (q *Queue) Profiling() bool { return q.props&driver.QueueProfiling != 0 }

// Release releases the queue. Idempotent and concurrent-safe.
func (q *Queue) Release() error {
	return q.h.release("queue", func(v uintptr) driver.Status {
		return q.d.ReleaseQueue(driver.Queue(v))
	})
}

// waitHandles lowers a wait-list to native handles. Released events
// lower to the zero handle and are rejected by the driver.
func waitHandles(wait []*Event) ([]driver.Event, error) {
	if len(wait) == 0 {
		return nil, nil
	}
	hs := make([]driver.Event, len(wait))
	for i, e := range wait {
		if e == nil {
			return nil, usagef("wait list", "event %d is nil", i)
		}
		hs[i] = e.Handle()
	}
	return hs, nil
}

// checkOut rejects an out-event that already tracks an operation before
// any driver state changes.
func checkOut(op string, ev *Event) error {
	if ev != nil && !ev.h.released() {
		return usagef(op, "out-event already tracks an operation; use a fresh Event per enqueue")
	}
	return nil
}

// adopt binds the operation's native event to the caller's out-event,
// or releases it when the caller passed nil.
func (q *Queue) adopt(ev *Event, h driver.Event) error {
	if ev == nil {
		if st := q.d.ReleaseEvent(h); !st.Ok() {
			logger().Warn("event release failed", zap.String("status", st.String()))
		}
		return nil
	}
	return ev.attach(q.d, h)
}

// EnqueueKernel submits a kernel dispatch over the given index space.
// Argument bindings are snapshotted by the driver at enqueue time;
// rebinding after this call does not affect the submitted dispatch.
func (q *Queue) EnqueueKernel(k *Kernel, ws WorkSize, wait []*Event, ev *Event) error {
	const op = "clEnqueueNDRangeKernel"
	if k == nil {
		return usagef(op, "kernel is nil")
	}
	if err := checkOut(op, ev); err != nil {
		return err
	}
	r, err := ws.ndrange()
	if err != nil {
		return err
	}
	wl, err := waitHandles(wait)
	if err != nil {
		return err
	}
	h, st := q.d.EnqueueKernel(q.Handle(), k.Handle(), r, wl)
	if !st.Ok() {
		return statusErr(op, st, "kernel %q, %s", k.Name(), ws)
	}
	return q.adopt(ev, h)
}

// EnqueueRead copies dst.ByteLen() bytes from the buffer, starting at
// the device-side byte offset, into the host region. Blocking variants
// return only after the data has landed.
func (q *Queue) EnqueueRead(b *Buffer, blocking bool, offset int, dst Memory, wait []*Event, ev *Event) error {
	const op = "clEnqueueReadBuffer"
	if b == nil {
		return usagef(op, "buffer is nil")
	}
	if dst == nil || dst.Ptr() == nil {
		return usagef(op, "destination has no host address")
	}
	if offset < 0 {
		return usagef(op, "offset %d is negative", offset)
	}
	if err := checkOut(op, ev); err != nil {
		return err
	}
	wl, err := waitHandles(wait)
	if err != nil {
		return err
	}
	n := dst.ByteLen()
	h, st := q.d.EnqueueRead(q.Handle(), b.Handle(), blocking, offset, n, dst.Ptr(), wl)
	if !st.Ok() {
		return statusErr(op, st, "%d bytes at offset %d from buffer of %d", n, offset, b.Size())
	}
	return q.adopt(ev, h)
}

// EnqueueWrite copies src.ByteLen() bytes from the host region into the
// buffer at the device-side byte offset.
func (q *Queue) EnqueueWrite(b *Buffer, blocking bool, offset int, src Memory, wait []*Event, ev *Event) error {
	const op = "clEnqueueWriteBuffer"
	if b == nil {
		return usagef(op, "buffer is nil")
	}
	if src == nil || src.Ptr() == nil {
		return usagef(op, "source has no host address")
	}
	if offset < 0 {
		return usagef(op, "offset %d is negative", offset)
	}
	if err := checkOut(op, ev); err != nil {
		return err
	}
	wl, err := waitHandles(wait)
	if err != nil {
		return err
	}
	n := src.ByteLen()
	h, st := q.d.EnqueueWrite(q.Handle(), b.Handle(), blocking, offset, n, src.Ptr(), wl)
	if !st.Ok() {
		return statusErr(op, st, "%d bytes at offset %d into buffer of %d", n, offset, b.Size())
	}
	return q.adopt(ev, h)
}

// Read is a blocking EnqueueRead of the whole region from offset 0.
func (q *Queue) Read(b *Buffer, dst Memory) error {
	return q.EnqueueRead(b, true, 0, dst, nil, nil)
}

// Write is a blocking EnqueueWrite of the whole region to offset 0.
func (q *Queue) Write(b *Buffer, src Memory) error {
	return q.EnqueueWrite(b, true, 0, src, nil, nil)
}

// EnqueueCopy copies n bytes between device buffers without a host
// round trip.
func (q *Queue) EnqueueCopy(src, dst *Buffer, srcOffset, dstOffset, n int, wait []*Event, ev *Event) error {
	const op = "clEnqueueCopyBuffer"
	if src == nil || dst == nil {
		return usagef(op, "source and destination buffers must be non-nil")
	}
	if err := checkOut(op, ev); err != nil {
		return err
	}
	wl, err := waitHandles(wait)
	if err != nil {
		return err
	}
	h, st := q.d.EnqueueCopy(q.Handle(), src.Handle(), dst.Handle(), srcOffset, dstOffset, n, wl)
	if !st.Ok() {
		return statusErr(op, st, "%d bytes, src offset %d, dst offset %d", n, srcOffset, dstOffset)
	}
	return q.adopt(ev, h)
}

// EnqueueFill replicates pattern across n bytes of the buffer starting
// at offset. n and offset must be multiples of the pattern length.
func (q *Queue) EnqueueFill(b *Buffer, pattern []byte, offset, n int, wait []*Event, ev *Event) error {
	const op = "clEnqueueFillBuffer"
	if b == nil {
		return usagef(op, "buffer is nil")
	}
	if len(pattern) == 0 {
		return usagef(op, "empty fill pattern")
	}
	if err := checkOut(op, ev); err != nil {
		return err
	}
	wl, err := waitHandles(wait)
	if err != nil {
		return err
	}
	h, st := q.d.EnqueueFill(q.Handle(), b.Handle(), pattern, offset, n, wl)
	if !st.Ok() {
		return statusErr(op, st, "pattern of %d bytes, offset %d, n %d", len(pattern), offset, n)
	}
	return q.adopt(ev, h)
}

// EnqueueMap exposes a buffer region as host-visible memory until the
// paired EnqueueUnmap. The mapped size is the requested n clamped to
// the capacity remaining past offset.
func (q *Queue) EnqueueMap(b *Buffer, blocking bool, flags driver.MapFlag, offset, n int, wait []*Event, ev *Event) (*MappedMem, error) {
	const op = "clEnqueueMapBuffer"
	if b == nil {
		return nil, usagef(op, "buffer is nil")
	}
	if offset < 0 || offset >= b.Size() {
		return nil, usagef(op, "offset %d outside buffer of %d bytes", offset, b.Size())
	}
	if n <= 0 {
		return nil, usagef(op, "mapped size %d, must be positive", n)
	}
	if err := checkOut(op, ev); err != nil {
		return nil, err
	}
	if rem := b.Size() - offset; n > rem {
		n = rem
	}
	wl, err := waitHandles(wait)
	if err != nil {
		return nil, err
	}
	p, h, st := q.d.EnqueueMap(q.Handle(), b.Handle(), blocking, flags, offset, n, wl)
	if !st.Ok() {
		return nil, statusErr(op, st, "%d bytes at offset %d", n, offset)
	}
	m := &MappedMem{buf: b, p: p, n: n, offset: uint64(offset)}
	return m, q.adopt(ev, h)
}

// EnqueueUnmap retires a mapped region and schedules its write-back.
// The region is unusable from the moment this call is made, even
// before the unmap completes on the device.
func (q *Queue) EnqueueUnmap(m *MappedMem, wait []*Event, ev *Event) error {
	const op = "clEnqueueUnmapMemObject"
	if m == nil {
		return usagef(op, "mapped region is nil")
	}
	if err := checkOut(op, ev); err != nil {
		return err
	}
	wl, err := waitHandles(wait)
	if err != nil {
		return err
	}
	if !m.retire() {
		return usageWrap(op, ErrReleased)
	}
	h, st := q.d.EnqueueUnmap(q.Handle(), m.buf.Handle(), m.p, wl)
	if !st.Ok() {
		return statusErr(op, st, "%d bytes at offset %d", m.n, m.offset)
	}
	return q.adopt(ev, h)
}

// EnqueueBarrier blocks commands enqueued after it until the wait list
// completes, or until everything already submitted completes when the
// list is empty.
func (q *Queue) EnqueueBarrier(wait []*Event, ev *Event) error {
	const op = "clEnqueueBarrierWithWaitList"
	if err := checkOut(op, ev); err != nil {
		return err
	}
	wl, err := waitHandles(wait)
	if err != nil {
		return err
	}
	h, st := q.d.EnqueueBarrier(q.Handle(), wl)
	if !st.Ok() {
		return statusErr(op, st, "")
	}
	return q.adopt(ev, h)
}

// EnqueueMarker completes when the wait list completes, without holding
// up later commands.
func (q *Queue) EnqueueMarker(wait []*Event, ev *Event) error {
	const op = "clEnqueueMarkerWithWaitList"
	if err := checkOut(op, ev); err != nil {
		return err
	}
	wl, err := waitHandles(wait)
	if err != nil {
		return err
	}
	h, st := q.d.EnqueueMarker(q.Handle(), wl)
	if !st.Ok() {
		return statusErr(op, st, "")
	}
	return q.adopt(ev, h)
}

// Flush hands all queued commands to the device without waiting.
func (q *Queue) Flush() error {
	if st := q.d.Flush(q.Handle()); !st.Ok() {
		return statusErr("clFlush", st, "")
	}
	return nil
}

// Finish drains the queue, returning once every submitted command has
// completed.
func (q *Queue) Finish() error {
	if st := q.d.Finish(q.Handle()); !st.Ok() {
		return statusErr("clFinish", st, "")
	}
	return nil
}
