//go:build linux || darwin

package opencl

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/spindle-gpu/spindle/driver"
)

func clBool(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// eventArgs lowers a wait list to the native calling convention. The
// returned slice must stay alive across the call; runtime.KeepAlive it.
func eventArgs(wait []driver.Event) (uint32, *uintptr, []uintptr) {
	if len(wait) == 0 {
		return 0, nil, nil
	}
	raw := make([]uintptr, len(wait))
	for i, e := range wait {
		raw[i] = uintptr(e)
	}
	return uint32(len(raw)), &raw[0], raw
}

// EnqueueKernel submits an N-dimensional kernel dispatch.
func (d *Driver) EnqueueKernel(q driver.Queue, k driver.Kernel, r driver.NDRange, wait []driver.Event) (driver.Event, driver.Status) {
	if r.Dims < 1 || r.Dims > 3 {
		return 0, driver.InvalidWorkDimension
	}
	var global, local, offset [3]uintptr
	for i := 0; i < r.Dims; i++ {
		global[i] = uintptr(r.Global[i])
		local[i] = uintptr(r.Local[i])
		offset[i] = uintptr(r.Offset[i])
	}
	var localPtr, offsetPtr *uintptr
	if r.HasLocal {
		localPtr = &local[0]
	}
	if r.HasOffset {
		offsetPtr = &offset[0]
	}
	num, waitPtr, keep := eventArgs(wait)
	var ev uintptr
	ret := clEnqueueNDRangeKernel(uintptr(q), uintptr(k), uint32(r.Dims),
		offsetPtr, &global[0], localPtr, num, waitPtr, &ev)
	runtime.KeepAlive(keep)
	return driver.Event(ev), driver.Status(ret)
}

// EnqueueRead copies n bytes from device memory into dst.
func (d *Driver) EnqueueRead(q driver.Queue, m driver.Mem, blocking bool, offset, n int, dst unsafe.Pointer, wait []driver.Event) (driver.Event, driver.Status) {
	num, waitPtr, keep := eventArgs(wait)
	var ev uintptr
	ret := clEnqueueReadBuffer(uintptr(q), uintptr(m), clBool(blocking),
		uintptr(offset), uintptr(n), dst, num, waitPtr, &ev)
	runtime.KeepAlive(keep)
	return driver.Event(ev), driver.Status(ret)
}

// EnqueueWrite copies n bytes from src into device memory.
func (d *Driver) EnqueueWrite(q driver.Queue, m driver.Mem, blocking bool, offset, n int, src unsafe.Pointer, wait []driver.Event) (driver.Event, driver.Status) {
	num, waitPtr, keep := eventArgs(wait)
	var ev uintptr
	ret := clEnqueueWriteBuffer(uintptr(q), uintptr(m), clBool(blocking),
		uintptr(offset), uintptr(n), src, num, waitPtr, &ev)
	runtime.KeepAlive(keep)
	return driver.Event(ev), driver.Status(ret)
}

// EnqueueCopy copies n bytes between device buffers.
func (d *Driver) EnqueueCopy(q driver.Queue, src, dst driver.Mem, srcOffset, dstOffset, n int, wait []driver.Event) (driver.Event, driver.Status) {
	num, waitPtr, keep := eventArgs(wait)
	var ev uintptr
	ret := clEnqueueCopyBuffer(uintptr(q), uintptr(src), uintptr(dst),
		uintptr(srcOffset), uintptr(dstOffset), uintptr(n), num, waitPtr, &ev)
	runtime.KeepAlive(keep)
	return driver.Event(ev), driver.Status(ret)
}

// EnqueueFill replicates pattern across n bytes starting at offset.
func (d *Driver) EnqueueFill(q driver.Queue, m driver.Mem, pattern []byte, offset, n int, wait []driver.Event) (driver.Event, driver.Status) {
	if len(pattern) == 0 {
		return 0, driver.InvalidValue
	}
	num, waitPtr, keep := eventArgs(wait)
	var ev uintptr
	ret := clEnqueueFillBuffer(uintptr(q), uintptr(m), unsafe.Pointer(&pattern[0]),
		uintptr(len(pattern)), uintptr(offset), uintptr(n), num, waitPtr, &ev)
	runtime.KeepAlive(pattern)
	runtime.KeepAlive(keep)
	return driver.Event(ev), driver.Status(ret)
}

// EnqueueMap maps [offset, offset+n) into host memory.
func (d *Driver) EnqueueMap(q driver.Queue, m driver.Mem, blocking bool, flags driver.MapFlag, offset, n int, wait []driver.Event) (unsafe.Pointer, driver.Event, driver.Status) {
	num, waitPtr, keep := eventArgs(wait)
	var (
		ev     uintptr
		errRet int32
	)
	p := clEnqueueMapBuffer(uintptr(q), uintptr(m), clBool(blocking), uint64(flags),
		uintptr(offset), uintptr(n), num, waitPtr, &ev, &errRet)
	runtime.KeepAlive(keep)
	if errRet != 0 {
		return nil, 0, driver.Status(errRet)
	}
	return p, driver.Event(ev), driver.Success
}

// EnqueueUnmap schedules the write-back of a mapped region.
func (d *Driver) EnqueueUnmap(q driver.Queue, m driver.Mem, ptr unsafe.Pointer, wait []driver.Event) (driver.Event, driver.Status) {
	num, waitPtr, keep := eventArgs(wait)
	var ev uintptr
	ret := clEnqueueUnmapMemObject(uintptr(q), uintptr(m), ptr, num, waitPtr, &ev)
	runtime.KeepAlive(keep)
	return driver.Event(ev), driver.Status(ret)
}

// EnqueueBarrier blocks later commands on the wait list, or on all
// previously submitted commands with an empty list.
func (d *Driver) EnqueueBarrier(q driver.Queue, wait []driver.Event) (driver.Event, driver.Status) {
	num, waitPtr, keep := eventArgs(wait)
	var ev uintptr
	ret := clEnqueueBarrierWithWaitList(uintptr(q), num, waitPtr, &ev)
	runtime.KeepAlive(keep)
	return driver.Event(ev), driver.Status(ret)
}

// EnqueueMarker completes when the wait list completes.
func (d *Driver) EnqueueMarker(q driver.Queue, wait []driver.Event) (driver.Event, driver.Status) {
	num, waitPtr, keep := eventArgs(wait)
	var ev uintptr
	ret := clEnqueueMarkerWithWaitList(uintptr(q), num, waitPtr, &ev)
	runtime.KeepAlive(keep)
	return driver.Event(ev), driver.Status(ret)
}

func (d *Driver) Flush(q driver.Queue) driver.Status {
	return driver.Status(clFlush(uintptr(q)))
}

func (d *Driver) Finish(q driver.Queue) driver.Status {
	return driver.Status(clFinish(uintptr(q)))
}

// CreateUserEvent creates a host-signalable event.
func (d *Driver) CreateUserEvent(c driver.Context) (driver.Event, driver.Status) {
	var errRet int32
	h := clCreateUserEvent(uintptr(c), &errRet)
	if errRet != 0 {
		return 0, driver.Status(errRet)
	}
	return driver.Event(h), driver.Success
}

func (d *Driver) SetUserEventStatus(e driver.Event, status int32) driver.Status {
	return driver.Status(clSetUserEventStatus(uintptr(e), status))
}

// EventStatus reads the current execution status of an event.
func (d *Driver) EventStatus(e driver.Event) (driver.ExecStatus, driver.Status) {
	var v int32
	ret := clGetEventInfo(uintptr(e), clEventExecutionStatus, unsafe.Sizeof(v), unsafe.Pointer(&v), nil)
	return driver.ExecStatus(v), driver.Status(ret)
}

// Event callbacks arrive on a runtime-owned thread through one shared
// C-callable trampoline. Each registration parks its Go closure in a
// token-keyed table; the trampoline fires it at most once and removes
// it.
var (
	cbMu    sync.Mutex
	cbSeq   uintptr
	cbFns   = map[uintptr]func(driver.Event, driver.ExecStatus){}
	cbOnce  sync.Once
	cbTramp uintptr
)

func eventTrampoline() uintptr {
	cbOnce.Do(func() {
		cbTramp = purego.NewCallback(func(ev, status, user uintptr) uintptr {
			cbMu.Lock()
			fn := cbFns[user]
			delete(cbFns, user)
			cbMu.Unlock()
			if fn != nil {
				fn(driver.Event(ev), driver.ExecStatus(int32(uint32(status))))
			}
			return 0
		})
	})
	return cbTramp
}

// SetEventCallback arranges fn to run at most once when e reaches
// trigger or terminates abnormally.
func (d *Driver) SetEventCallback(e driver.Event, trigger driver.ExecStatus, fn func(driver.Event, driver.ExecStatus)) driver.Status {
	if fn == nil {
		return driver.InvalidValue
	}
	cbMu.Lock()
	cbSeq++
	token := cbSeq
	cbFns[token] = fn
	cbMu.Unlock()

	ret := clSetEventCallback(uintptr(e), int32(trigger), eventTrampoline(), token)
	if ret != 0 {
		cbMu.Lock()
		delete(cbFns, token)
		cbMu.Unlock()
	}
	return driver.Status(ret)
}

// EventProfiling reads one profiling counter of a completed event.
func (d *Driver) EventProfiling(e driver.Event, key driver.ProfilingKey) (uint64, driver.Status) {
	var param uint32
	switch key {
	case driver.ProfilingQueued:
		param = clProfilingQueued
	case driver.ProfilingSubmitted:
		param = clProfilingSubmit
	case driver.ProfilingStart:
		param = clProfilingStart
	case driver.ProfilingEnd:
		param = clProfilingEnd
	default:
		return 0, driver.InvalidValue
	}
	var v uint64
	ret := clGetEventProfilingInfo(uintptr(e), param, unsafe.Sizeof(v), unsafe.Pointer(&v), nil)
	return v, driver.Status(ret)
}

// WaitForEvents blocks until every listed event completes.
func (d *Driver) WaitForEvents(events []driver.Event) driver.Status {
	if len(events) == 0 {
		return driver.InvalidValue
	}
	raw := make([]uintptr, len(events))
	for i, e := range events {
		raw[i] = uintptr(e)
	}
	ret := clWaitForEvents(uint32(len(raw)), &raw[0])
	runtime.KeepAlive(raw)
	return driver.Status(ret)
}

func (d *Driver) RetainEvent(e driver.Event) driver.Status {
	return driver.Status(clRetainEvent(uintptr(e)))
}

func (d *Driver) ReleaseEvent(e driver.Event) driver.Status {
	return driver.Status(clReleaseEvent(uintptr(e)))
}
