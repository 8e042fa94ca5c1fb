//go:build windows

// Package webgpu implements the spindle driver boundary on top of a
// WebGPU device via go-webgpu. It is experimental and exposes a partial
// surface: one platform with one GPU device, WGSL programs, storage
// buffers, and a synchronous queue. Commands complete before the
// enqueue call returns, so every event this driver hands out is already
// in the complete state. Mapping, out-of-order queues, user events and
// profiling are not expressible on WebGPU and fail with the matching
// invalid-operation statuses rather than pretending.
package webgpu

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/spindle-gpu/spindle/driver"
)

const version = "spindle-webgpu 0.1"

// The single platform and device the driver exposes. Object handles
// from newID start above these.
const (
	platformHandle driver.Platform = 1
	deviceHandle   driver.Device   = 2
)

// Compile-time check that Driver implements the boundary.
var _ driver.Driver = (*Driver)(nil)

// Driver binds the spindle driver interface to a WebGPU device. The
// zero value is not usable; call New. The native instance is acquired
// lazily at first use, so binaries construct the driver safely on
// machines without a usable GPU.
type Driver struct {
	initOnce sync.Once
	initErr  error

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	info     wgpu.AdapterInfo

	mu       sync.Mutex
	lastID   uintptr
	contexts map[driver.Context]*contextObj
	queues   map[driver.Queue]*queueObj
	mems     map[driver.Mem]*memObj
	programs map[driver.Program]*programObj
	kernels  map[driver.Kernel]*kernelObj
	events   map[driver.Event]*eventObj
}

type contextObj struct{}

type queueObj struct{}

type memObj struct {
	buf  *wgpu.Buffer
	size int
}

// eventObj exists only so handles stay valid for status queries and
// release accounting; every event is complete from birth.
type eventObj struct {
	refs int
}

// New returns the WebGPU driver. The native library is not touched
// until the first call that needs it.
func New() *Driver {
	return &Driver{
		lastID:   uintptr(deviceHandle),
		contexts: make(map[driver.Context]*contextObj),
		queues:   make(map[driver.Queue]*queueObj),
		mems:     make(map[driver.Mem]*memObj),
		programs: make(map[driver.Program]*programObj),
		kernels:  make(map[driver.Kernel]*kernelObj),
		events:   make(map[driver.Event]*eventObj),
	}
}

// Name identifies the driver.
func (d *Driver) Name() string { return "webgpu" }

// Available reports whether a WebGPU adapter and device could be
// acquired.
func (d *Driver) Available() bool { return d.ensure() == nil }

// LoadError returns the reason the device could not be acquired, nil
// when acquisition succeeded.
func (d *Driver) LoadError() error { return d.ensure() }

func (d *Driver) ensure() error {
	d.initOnce.Do(func() { d.initErr = d.acquire() })
	return d.initErr
}

// acquire walks instance → adapter → device → queue, unwinding on
// failure. wgpu panics when the native library is missing, so the
// whole walk runs under a recover.
func (d *Driver) acquire() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, aerr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if aerr != nil {
		instance.Release()
		return fmt.Errorf("webgpu: request adapter: %w", aerr)
	}
	info := adapter.GetInfo()

	device, derr := adapter.RequestDevice(nil)
	if derr != nil {
		adapter.Release()
		instance.Release()
		return fmt.Errorf("webgpu: request device: %w", derr)
	}
	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return fmt.Errorf("webgpu: no default queue")
	}

	d.instance = instance
	d.adapter = adapter
	d.device = device
	d.queue = queue
	d.info = info
	return nil
}

// Close releases the native device, adapter and instance. Objects
// created through the driver must be released first.
func (d *Driver) Close() {
	if d.ensure() != nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

func (d *Driver) newID() uintptr {
	d.lastID++
	return d.lastID
}

func (d *Driver) Platforms() ([]driver.Platform, driver.Status) {
	if d.ensure() != nil {
		return nil, driver.DeviceNotAvailable
	}
	return []driver.Platform{platformHandle}, driver.Success
}

func (d *Driver) DescribePlatform(p driver.Platform) (driver.PlatformDesc, driver.Status) {
	if d.ensure() != nil {
		return driver.PlatformDesc{}, driver.DeviceNotAvailable
	}
	if p != platformHandle {
		return driver.PlatformDesc{}, driver.InvalidPlatform
	}
	return driver.PlatformDesc{
		Name:    "WebGPU",
		Vendor:  d.info.VendorName,
		Version: version,
		Profile: "EMBEDDED_PROFILE",
	}, driver.Success
}

func (d *Driver) Devices(p driver.Platform, t driver.DeviceType) ([]driver.Device, driver.Status) {
	if d.ensure() != nil {
		return nil, driver.DeviceNotAvailable
	}
	if p != platformHandle {
		return nil, driver.InvalidPlatform
	}
	if t != driver.DeviceAll && t != driver.DeviceDefault && t&driver.DeviceGPU == 0 {
		return nil, driver.DeviceNotFound
	}
	return []driver.Device{deviceHandle}, driver.Success
}

// DescribeDevice reports the adapter identity with the WebGPU base
// limits; the native API does not expose the adapter's real ones.
func (d *Driver) DescribeDevice(dev driver.Device) (driver.DeviceDesc, driver.Status) {
	if d.ensure() != nil {
		return driver.DeviceDesc{}, driver.DeviceNotAvailable
	}
	if dev != deviceHandle {
		return driver.DeviceDesc{}, driver.InvalidDevice
	}
	return driver.DeviceDesc{
		Name:             d.info.Name,
		Vendor:           d.info.VendorName,
		DriverVersion:    d.info.DriverDescription,
		DeviceVersion:    "WebGPU 1.0",
		Profile:          "EMBEDDED_PROFILE",
		Type:             driver.DeviceGPU,
		ComputeUnits:     1,
		MaxWorkGroupSize: 256,
		MaxWorkItemDims:  3,
		MaxWorkItemSizes: [3]uint64{256, 256, 64},
		GlobalMemSize:    1 << 30,
		LocalMemSize:     16 << 10,
		MaxAllocSize:     256 << 20,
	}, driver.Success
}

// ReleaseDevice is a no-op for the root device.
func (d *Driver) ReleaseDevice(dev driver.Device) driver.Status {
	if dev != deviceHandle {
		return driver.InvalidDevice
	}
	return driver.Success
}

func (d *Driver) CreateContext(devices []driver.Device) (driver.Context, driver.Status) {
	if d.ensure() != nil {
		return 0, driver.DeviceNotAvailable
	}
	if len(devices) == 0 {
		return 0, driver.InvalidValue
	}
	for _, dev := range devices {
		if dev != deviceHandle {
			return 0, driver.InvalidDevice
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := driver.Context(d.newID())
	d.contexts[id] = &contextObj{}
	return id, driver.Success
}

func (d *Driver) ReleaseContext(c driver.Context) driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.contexts[c]; !ok {
		return driver.InvalidContext
	}
	delete(d.contexts, c)
	return driver.Success
}

// CreateQueue hands out a handle backed by the device's single native
// queue. Out-of-order execution is not available on WebGPU; the
// profiling property is accepted but queries fail, since timestamps
// are not exposed either.
func (d *Driver) CreateQueue(c driver.Context, dev driver.Device, props driver.QueueProp) (driver.Queue, driver.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.contexts[c]; !ok {
		return 0, driver.InvalidContext
	}
	if dev != deviceHandle {
		return 0, driver.InvalidDevice
	}
	if props&driver.QueueOutOfOrder != 0 {
		return 0, driver.InvalidQueueProperties
	}
	id := driver.Queue(d.newID())
	d.queues[id] = &queueObj{}
	return id, driver.Success
}

func (d *Driver) ReleaseQueue(q driver.Queue) driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.queues[q]; !ok {
		return driver.InvalidCommandQueue
	}
	delete(d.queues, q)
	return driver.Success
}

// CreateBuffer allocates a storage buffer. Every buffer carries the
// copy-src and copy-dst usages so reads, writes and copies work
// regardless of the access flags, which WebGPU cannot enforce per
// buffer anyway.
func (d *Driver) CreateBuffer(c driver.Context, flags driver.MemFlag, size int, hostPtr unsafe.Pointer) (driver.Mem, driver.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.contexts[c]; !ok {
		return 0, driver.InvalidContext
	}
	if size <= 0 {
		return 0, driver.InvalidBufferSize
	}
	seed := flags&(driver.MemUseHostPtr|driver.MemCopyHostPtr) != 0
	if seed && hostPtr == nil {
		return 0, driver.InvalidHostPtr
	}

	usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
	var buf *wgpu.Buffer
	if seed {
		buf = d.device.CreateBuffer(&wgpu.BufferDescriptor{
			Usage:            usage,
			Size:             uint64(size),
			MappedAtCreation: wgpu.True,
		})
		dst := unsafe.Slice((*byte)(buf.GetMappedRange(0, uint64(size))), size)
		copy(dst, unsafe.Slice((*byte)(hostPtr), size))
		buf.Unmap()
	} else {
		buf = d.device.CreateBuffer(&wgpu.BufferDescriptor{
			Usage: usage,
			Size:  uint64(size),
		})
	}

	id := driver.Mem(d.newID())
	d.mems[id] = &memObj{buf: buf, size: size}
	return id, driver.Success
}

func (d *Driver) ReleaseMem(m driver.Mem) driver.Status {
	d.mu.Lock()
	mo, ok := d.mems[m]
	if ok {
		delete(d.mems, m)
	}
	d.mu.Unlock()
	if !ok {
		return driver.InvalidMemObject
	}
	mo.buf.Release()
	return driver.Success
}
