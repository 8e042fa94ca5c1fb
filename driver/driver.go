// Copyright 2025 The Spindle Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package driver defines the boundary between spindle's host-side compute
// layer and a native parallel-compute runtime.
//
// A Driver exposes the OpenCL-shaped host object model: platforms own
// devices, devices join contexts, contexts own command queues, memory
// objects, programs and events. Every call returns a Status; calls that
// create resources additionally return an opaque handle. Handles are plain
// integers with no methods; ownership, idempotent release and error
// wrapping all live above this boundary, in the compute package.
//
// Three drivers ship with spindle:
//
//   - driver/soft: a pure Go in-process driver, always available, used as
//     the reference implementation and test bed.
//   - driver/opencl: bindings to the system OpenCL runtime via purego
//     (linux and darwin).
//   - driver/webgpu: an experimental WebGPU-backed driver (windows).
package driver

import "unsafe"

// Opaque native handles. The zero value is the null/released sentinel for
// every handle type.
type (
	// Platform identifies one installed compute platform.
	Platform uintptr
	// Device identifies one compute device under a platform.
	Device uintptr
	// Context identifies a context joining one or more devices.
	Context uintptr
	// Queue identifies a command queue on one device.
	Queue uintptr
	// Mem identifies a device-resident memory object.
	Mem uintptr
	// Program identifies a program created from source fragments.
	Program uintptr
	// Kernel identifies one entry point of a built program.
	Kernel uintptr
	// Event identifies a completion-tracking event.
	Event uintptr
)

// DeviceType is a bitmask selecting device classes during enumeration.
type DeviceType uint64

const (
	DeviceDefault     DeviceType = 1 << 0
	DeviceCPU         DeviceType = 1 << 1
	DeviceGPU         DeviceType = 1 << 2
	DeviceAccelerator DeviceType = 1 << 3
	DeviceCustom      DeviceType = 1 << 4
	DeviceAll         DeviceType = 0xFFFFFFFF
)

// MemFlag controls allocation and host-pointer semantics of CreateBuffer.
type MemFlag uint64

const (
	MemReadWrite    MemFlag = 1 << 0
	MemWriteOnly    MemFlag = 1 << 1
	MemReadOnly     MemFlag = 1 << 2
	MemUseHostPtr   MemFlag = 1 << 3
	MemAllocHostPtr MemFlag = 1 << 4
	MemCopyHostPtr  MemFlag = 1 << 5
)

// MapFlag selects the access mode of a mapped region.
type MapFlag uint64

const (
	MapRead  MapFlag = 1 << 0
	MapWrite MapFlag = 1 << 1
)

// QueueProp is a bitmask of command-queue properties.
type QueueProp uint64

const (
	QueueOutOfOrder QueueProp = 1 << 0
	QueueProfiling  QueueProp = 1 << 1
)

// ProfilingKey selects one of the four event profiling counters.
type ProfilingKey int

const (
	ProfilingQueued ProfilingKey = iota
	ProfilingSubmitted
	ProfilingStart
	ProfilingEnd
)

// NDRange is the validated wire form of a kernel dispatch size. Dims is
// 1 to 3; only the first Dims entries of each array are meaningful.
// HasLocal false lets the driver pick the workgroup size.
type NDRange struct {
	Dims      int
	Global    [3]uint64
	Local     [3]uint64
	Offset    [3]uint64
	HasLocal  bool
	HasOffset bool
}

// PlatformDesc carries the identity strings of one platform.
type PlatformDesc struct {
	Name       string
	Vendor     string
	Version    string
	Profile    string
	Extensions string
}

// DeviceDesc carries the capability summary of one device.
type DeviceDesc struct {
	Name             string
	Vendor           string
	DriverVersion    string
	DeviceVersion    string
	Profile          string
	Type             DeviceType
	ComputeUnits     uint32
	MaxWorkGroupSize uint64
	MaxWorkItemDims  uint32
	MaxWorkItemSizes [3]uint64
	GlobalMemSize    uint64
	LocalMemSize     uint64
	MaxAllocSize     uint64
	Extensions       string
}

// Driver is the native boundary. Implementations must be safe for
// concurrent use; blocking variants of enqueue calls may suspend the
// calling goroutine until native completion.
//
// Wait lists carry events the operation must observe as complete before it
// runs. A nil or empty wait list imposes no extra ordering. Every enqueue
// call returns an event tracking its own completion.
type Driver interface {
	// Name identifies the driver ("soft", "opencl", "webgpu").
	Name() string
	// Available reports whether the native runtime can be reached. Soft is
	// always available; opencl requires a loadable libOpenCL.
	Available() bool

	Platforms() ([]Platform, Status)
	DescribePlatform(p Platform) (PlatformDesc, Status)
	Devices(p Platform, t DeviceType) ([]Device, Status)
	DescribeDevice(d Device) (DeviceDesc, Status)
	// ReleaseDevice is a no-op for root devices; it exists so the wrapper
	// layer can treat every resource uniformly.
	ReleaseDevice(d Device) Status

	CreateContext(devices []Device) (Context, Status)
	ReleaseContext(c Context) Status

	CreateQueue(c Context, d Device, props QueueProp) (Queue, Status)
	ReleaseQueue(q Queue) Status

	// CreateBuffer allocates size bytes. hostPtr is consulted only when
	// flags carry MemUseHostPtr or MemCopyHostPtr.
	CreateBuffer(c Context, flags MemFlag, size int, hostPtr unsafe.Pointer) (Mem, Status)
	ReleaseMem(m Mem) Status

	CreateProgram(c Context, sources []string) (Program, Status)
	// BuildProgram compiles for the given devices (nil means all context
	// devices) with an optional compiler-option string.
	BuildProgram(p Program, devices []Device, options string) Status
	// BuildLog returns the compiler transcript for one device after a
	// build attempt.
	BuildLog(p Program, d Device) (string, Status)
	ReleaseProgram(p Program) Status

	CreateKernel(p Program, name string) (Kernel, Status)
	// KernelNames lists the kernel entry points of a built program.
	KernelNames(p Program) ([]string, Status)
	ReleaseKernel(k Kernel) Status

	// SetKernelArg binds argument index to size bytes at ptr. A nil ptr
	// reserves size bytes of device local memory instead.
	SetKernelArg(k Kernel, index uint, size uintptr, ptr unsafe.Pointer) Status
	// SetKernelArgMem binds a device memory object by handle.
	SetKernelArgMem(k Kernel, index uint, m Mem) Status

	EnqueueKernel(q Queue, k Kernel, r NDRange, wait []Event) (Event, Status)
	EnqueueRead(q Queue, m Mem, blocking bool, offset, n int, dst unsafe.Pointer, wait []Event) (Event, Status)
	EnqueueWrite(q Queue, m Mem, blocking bool, offset, n int, src unsafe.Pointer, wait []Event) (Event, Status)
	EnqueueCopy(q Queue, src, dst Mem, srcOffset, dstOffset, n int, wait []Event) (Event, Status)
	// EnqueueFill replicates pattern across n bytes starting at offset.
	// n must be a multiple of len(pattern).
	EnqueueFill(q Queue, m Mem, pattern []byte, offset, n int, wait []Event) (Event, Status)
	// EnqueueMap exposes [offset, offset+n) as host-visible memory until
	// the paired EnqueueUnmap.
	EnqueueMap(q Queue, m Mem, blocking bool, flags MapFlag, offset, n int, wait []Event) (unsafe.Pointer, Event, Status)
	EnqueueUnmap(q Queue, m Mem, ptr unsafe.Pointer, wait []Event) (Event, Status)
	// EnqueueBarrier blocks later commands on the wait list, or on all
	// previously submitted commands when the list is empty.
	EnqueueBarrier(q Queue, wait []Event) (Event, Status)
	// EnqueueMarker completes when the wait list (or, with an empty list,
	// everything submitted so far) completes, without blocking later work.
	EnqueueMarker(q Queue, wait []Event) (Event, Status)
	Flush(q Queue) Status
	// Finish drains the queue, returning only when every submitted
	// command has completed.
	Finish(q Queue) Status

	CreateUserEvent(c Context) (Event, Status)
	// SetUserEventStatus moves a user event to a terminal state: 0 for
	// complete, a negative status for abnormal termination. A second call
	// on the same event fails with InvalidOperation.
	SetUserEventStatus(e Event, status int32) Status
	EventStatus(e Event) (ExecStatus, Status)
	// SetEventCallback arranges fn to run at most once, on a driver-owned
	// thread or goroutine, when e reaches trigger or terminates abnormally.
	SetEventCallback(e Event, trigger ExecStatus, fn func(Event, ExecStatus)) Status
	EventProfiling(e Event, key ProfilingKey) (uint64, Status)
	WaitForEvents(events []Event) Status
	RetainEvent(e Event) Status
	ReleaseEvent(e Event) Status
}
