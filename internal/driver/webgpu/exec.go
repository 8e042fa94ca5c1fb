//go:build windows

package webgpu

import (
	"bytes"
	"sort"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/spindle-gpu/spindle/driver"
)

// queueOK validates a queue handle.
func (d *Driver) queueOK(q driver.Queue) bool {
	d.mu.Lock()
	_, ok := d.queues[q]
	d.mu.Unlock()
	return ok
}

// waitOK validates a wait list. Every event this driver creates is
// already complete, so validation is all a wait list amounts to.
func (d *Driver) waitOK(wait []driver.Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ev := range wait {
		if _, ok := d.events[ev]; !ok {
			return false
		}
	}
	return true
}

// newEvent mints a complete event.
func (d *Driver) newEvent() driver.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := driver.Event(d.newID())
	d.events[id] = &eventObj{refs: 1}
	return id
}

func (d *Driver) getMem(m driver.Mem) (*memObj, bool) {
	d.mu.Lock()
	mo, ok := d.mems[m]
	d.mu.Unlock()
	return mo, ok
}

func checkSpan(offset, n, size int) bool {
	return offset >= 0 && n > 0 && offset+n <= size
}

// uniformFor wraps a by-value argument in a fresh uniform buffer,
// padded to the 16-byte alignment uniform bindings require.
func (d *Driver) uniformFor(data []byte) (*wgpu.Buffer, uint64) {
	size := (uint64(len(data)) + 15) &^ 15
	buf := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	dst := unsafe.Slice((*byte)(buf.GetMappedRange(0, size)), size)
	copy(dst, data)
	buf.Unmap()
	return buf, size
}

// EnqueueKernel dispatches one compute pass. Workgroup counts are the
// ceiling division of the global size by the workgroup size; when the
// caller leaves the workgroup size to the driver each work item counts
// as one group, matching a @workgroup_size(1) shader. WebGPU has no
// global offset.
func (d *Driver) EnqueueKernel(q driver.Queue, k driver.Kernel, r driver.NDRange, wait []driver.Event) (driver.Event, driver.Status) {
	if !d.queueOK(q) {
		return 0, driver.InvalidCommandQueue
	}
	d.mu.Lock()
	ko, ok := d.kernels[k]
	d.mu.Unlock()
	if !ok {
		return 0, driver.InvalidKernel
	}
	if !d.waitOK(wait) {
		return 0, driver.InvalidEventWaitList
	}
	if r.Dims < 1 || r.Dims > 3 {
		return 0, driver.InvalidWorkDimension
	}
	if r.HasOffset {
		return 0, driver.InvalidGlobalOffset
	}
	groups := [3]uint32{1, 1, 1}
	groupItems := uint64(1)
	for i := 0; i < r.Dims; i++ {
		if r.Global[i] == 0 {
			return 0, driver.InvalidGlobalWorkSize
		}
		local := uint64(1)
		if r.HasLocal {
			local = r.Local[i]
			if local == 0 || local > 256 {
				return 0, driver.InvalidWorkItemSize
			}
		}
		groupItems *= local
		groups[i] = uint32((r.Global[i] + local - 1) / local)
	}
	if groupItems > 256 {
		return 0, driver.InvalidWorkGroupSize
	}

	// Resolve bindings: storage buffers stay put, by-value payloads ride
	// in throwaway uniform buffers for the duration of the dispatch.
	snap := ko.snapshotArgs()
	idxs := make([]int, 0, len(snap))
	for i := range snap {
		idxs = append(idxs, int(i))
	}
	sort.Ints(idxs)

	var scratch []*wgpu.Buffer
	cleanup := func() {
		for _, b := range scratch {
			b.Release()
		}
	}
	entries := make([]wgpu.BindGroupEntry, 0, len(idxs))
	for _, i := range idxs {
		a := snap[uint(i)]
		if a.isMem {
			mo, ok := d.getMem(a.mem)
			if !ok {
				cleanup()
				return 0, driver.InvalidKernelArgs
			}
			entries = append(entries, wgpu.BufferBindingEntry(uint32(i), mo.buf, 0, uint64(mo.size)))
			continue
		}
		u, usize := d.uniformFor(a.bytes)
		scratch = append(scratch, u)
		entries = append(entries, wgpu.BufferBindingEntry(uint32(i), u, 0, usize))
	}

	encoder := d.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(ko.pipeline)
	var group *wgpu.BindGroup
	if len(entries) > 0 {
		layout := ko.pipeline.GetBindGroupLayout(0)
		group = d.device.CreateBindGroupSimple(layout, entries)
		pass.SetBindGroup(0, group, nil)
	}
	pass.DispatchWorkgroups(groups[0], groups[1], groups[2])
	pass.End()
	cmd := encoder.Finish(nil)
	d.queue.Submit(cmd)

	if group != nil {
		group.Release()
	}
	cleanup()
	return d.newEvent(), driver.Success
}

// EnqueueRead copies device bytes to the host through a staging
// buffer; storage buffers cannot be mapped directly. The queue is
// synchronous, so the blocking flag changes nothing.
func (d *Driver) EnqueueRead(q driver.Queue, m driver.Mem, blocking bool, offset, n int, dst unsafe.Pointer, wait []driver.Event) (driver.Event, driver.Status) {
	if !d.queueOK(q) {
		return 0, driver.InvalidCommandQueue
	}
	mo, ok := d.getMem(m)
	if !ok {
		return 0, driver.InvalidMemObject
	}
	if !d.waitOK(wait) {
		return 0, driver.InvalidEventWaitList
	}
	if dst == nil || !checkSpan(offset, n, mo.size) {
		return 0, driver.InvalidValue
	}

	staging := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  uint64(n),
	})
	defer staging.Release()

	encoder := d.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(mo.buf, uint64(offset), staging, 0, uint64(n))
	cmd := encoder.Finish(nil)
	d.queue.Submit(cmd)

	if err := staging.MapAsync(d.device, wgpu.MapModeRead, 0, uint64(n)); err != nil {
		return 0, driver.MapFailure
	}
	src := unsafe.Slice((*byte)(staging.GetMappedRange(0, uint64(n))), n)
	copy(unsafe.Slice((*byte)(dst), n), src)
	staging.Unmap()

	return d.newEvent(), driver.Success
}

// EnqueueWrite uploads host bytes with WriteBuffer, which copies the
// payload before returning.
func (d *Driver) EnqueueWrite(q driver.Queue, m driver.Mem, blocking bool, offset, n int, src unsafe.Pointer, wait []driver.Event) (driver.Event, driver.Status) {
	if !d.queueOK(q) {
		return 0, driver.InvalidCommandQueue
	}
	mo, ok := d.getMem(m)
	if !ok {
		return 0, driver.InvalidMemObject
	}
	if !d.waitOK(wait) {
		return 0, driver.InvalidEventWaitList
	}
	if src == nil || !checkSpan(offset, n, mo.size) {
		return 0, driver.InvalidValue
	}
	d.queue.WriteBuffer(mo.buf, uint64(offset), unsafe.Slice((*byte)(src), n))
	return d.newEvent(), driver.Success
}

func (d *Driver) EnqueueCopy(q driver.Queue, src, dst driver.Mem, srcOffset, dstOffset, n int, wait []driver.Event) (driver.Event, driver.Status) {
	if !d.queueOK(q) {
		return 0, driver.InvalidCommandQueue
	}
	so, ok := d.getMem(src)
	if !ok {
		return 0, driver.InvalidMemObject
	}
	do, ok := d.getMem(dst)
	if !ok {
		return 0, driver.InvalidMemObject
	}
	if !d.waitOK(wait) {
		return 0, driver.InvalidEventWaitList
	}
	if !checkSpan(srcOffset, n, so.size) || !checkSpan(dstOffset, n, do.size) {
		return 0, driver.InvalidValue
	}
	if src == dst && srcOffset < dstOffset+n && dstOffset < srcOffset+n {
		return 0, driver.MemCopyOverlap
	}

	encoder := d.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(so.buf, uint64(srcOffset), do.buf, uint64(dstOffset), uint64(n))
	cmd := encoder.Finish(nil)
	d.queue.Submit(cmd)
	return d.newEvent(), driver.Success
}

// EnqueueFill expands the pattern host-side and uploads it; WebGPU's
// ClearBuffer only writes zeroes.
func (d *Driver) EnqueueFill(q driver.Queue, m driver.Mem, pattern []byte, offset, n int, wait []driver.Event) (driver.Event, driver.Status) {
	if !d.queueOK(q) {
		return 0, driver.InvalidCommandQueue
	}
	mo, ok := d.getMem(m)
	if !ok {
		return 0, driver.InvalidMemObject
	}
	if !d.waitOK(wait) {
		return 0, driver.InvalidEventWaitList
	}
	if len(pattern) == 0 || n%len(pattern) != 0 {
		return 0, driver.InvalidValue
	}
	if !checkSpan(offset, n, mo.size) {
		return 0, driver.InvalidValue
	}
	d.queue.WriteBuffer(mo.buf, uint64(offset), bytes.Repeat(pattern, n/len(pattern)))
	return d.newEvent(), driver.Success
}

// EnqueueMap is not available: WebGPU cannot map storage buffers into
// host memory.
func (d *Driver) EnqueueMap(q driver.Queue, m driver.Mem, blocking bool, flags driver.MapFlag, offset, n int, wait []driver.Event) (unsafe.Pointer, driver.Event, driver.Status) {
	if !d.queueOK(q) {
		return nil, 0, driver.InvalidCommandQueue
	}
	if _, ok := d.getMem(m); !ok {
		return nil, 0, driver.InvalidMemObject
	}
	return nil, 0, driver.InvalidOperation
}

func (d *Driver) EnqueueUnmap(q driver.Queue, m driver.Mem, ptr unsafe.Pointer, wait []driver.Event) (driver.Event, driver.Status) {
	if !d.queueOK(q) {
		return 0, driver.InvalidCommandQueue
	}
	if _, ok := d.getMem(m); !ok {
		return 0, driver.InvalidMemObject
	}
	return 0, driver.InvalidOperation
}

// EnqueueBarrier is trivially satisfied: every prior command has
// already completed by the time it is called.
func (d *Driver) EnqueueBarrier(q driver.Queue, wait []driver.Event) (driver.Event, driver.Status) {
	if !d.queueOK(q) {
		return 0, driver.InvalidCommandQueue
	}
	if !d.waitOK(wait) {
		return 0, driver.InvalidEventWaitList
	}
	return d.newEvent(), driver.Success
}

func (d *Driver) EnqueueMarker(q driver.Queue, wait []driver.Event) (driver.Event, driver.Status) {
	if !d.queueOK(q) {
		return 0, driver.InvalidCommandQueue
	}
	if !d.waitOK(wait) {
		return 0, driver.InvalidEventWaitList
	}
	return d.newEvent(), driver.Success
}

func (d *Driver) Flush(q driver.Queue) driver.Status {
	if !d.queueOK(q) {
		return driver.InvalidCommandQueue
	}
	return driver.Success
}

// Finish has nothing to drain; Submit returns only after the work is
// scheduled and reads synchronize through MapAsync.
func (d *Driver) Finish(q driver.Queue) driver.Status {
	if !d.queueOK(q) {
		return driver.InvalidCommandQueue
	}
	return driver.Success
}

// CreateUserEvent is not available: with a synchronous queue there is
// nothing a host-signaled event could gate.
func (d *Driver) CreateUserEvent(c driver.Context) (driver.Event, driver.Status) {
	d.mu.Lock()
	_, ok := d.contexts[c]
	d.mu.Unlock()
	if !ok {
		return 0, driver.InvalidContext
	}
	return 0, driver.InvalidOperation
}

func (d *Driver) SetUserEventStatus(e driver.Event, status int32) driver.Status {
	d.mu.Lock()
	_, ok := d.events[e]
	d.mu.Unlock()
	if !ok {
		return driver.InvalidEvent
	}
	return driver.InvalidOperation
}

func (d *Driver) EventStatus(e driver.Event) (driver.ExecStatus, driver.Status) {
	d.mu.Lock()
	_, ok := d.events[e]
	d.mu.Unlock()
	if !ok {
		return 0, driver.InvalidEvent
	}
	return driver.Complete, driver.Success
}

// SetEventCallback fires immediately on a fresh goroutine; the event
// is already terminal.
func (d *Driver) SetEventCallback(e driver.Event, trigger driver.ExecStatus, fn func(driver.Event, driver.ExecStatus)) driver.Status {
	d.mu.Lock()
	_, ok := d.events[e]
	d.mu.Unlock()
	if !ok {
		return driver.InvalidEvent
	}
	if fn == nil {
		return driver.InvalidValue
	}
	go fn(e, driver.Complete)
	return driver.Success
}

func (d *Driver) EventProfiling(e driver.Event, key driver.ProfilingKey) (uint64, driver.Status) {
	d.mu.Lock()
	_, ok := d.events[e]
	d.mu.Unlock()
	if !ok {
		return 0, driver.InvalidEvent
	}
	if key < driver.ProfilingQueued || key > driver.ProfilingEnd {
		return 0, driver.InvalidValue
	}
	return 0, driver.ProfilingInfoNotAvailable
}

func (d *Driver) WaitForEvents(events []driver.Event) driver.Status {
	if len(events) == 0 {
		return driver.InvalidValue
	}
	if !d.waitOK(events) {
		return driver.InvalidEvent
	}
	return driver.Success
}

func (d *Driver) RetainEvent(e driver.Event) driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	eo, ok := d.events[e]
	if !ok {
		return driver.InvalidEvent
	}
	eo.refs++
	return driver.Success
}

func (d *Driver) ReleaseEvent(e driver.Event) driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	eo, ok := d.events[e]
	if !ok {
		return driver.InvalidEvent
	}
	eo.refs--
	if eo.refs <= 0 {
		delete(d.events, e)
	}
	return driver.Success
}
