// Package soft implements the spindle driver boundary in pure Go.
//
// The soft driver is the reference implementation: one platform, a
// configurable number of CPU devices, real FIFO command queues with one
// worker goroutine each, byte-slice memory objects, a minimal program
// validator, and events with monotonic profiling timestamps. Kernels
// execute host-side through registered KernelFunc bodies; a kernel
// without a body dispatches as a no-op, which keeps sizing and ordering
// fully observable without any device arithmetic.
package soft

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"go.uber.org/zap"

	"github.com/spindle-gpu/spindle/driver"
	"github.com/spindle-gpu/spindle/internal/parallel"
)

const version = "spindle-soft 0.1"

// Compile-time check that Driver implements the boundary.
var _ driver.Driver = (*Driver)(nil)

type config struct {
	devices int
	logger  *zap.Logger
	kernels map[string]KernelFunc
	par     parallel.Config
}

// Option configures the driver at construction.
type Option func(*config)

// WithDevices sets the number of devices the single platform exposes.
func WithDevices(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.devices = n
		}
	}
}

// WithLogger routes driver diagnostics to l instead of discarding them.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithKernelFunc registers a host-side body for kernels named name.
// Programs whose source declares the name compile against it; dispatches
// of other kernels are no-ops.
func WithKernelFunc(name string, fn KernelFunc) Option {
	return func(c *config) { c.kernels[name] = fn }
}

// WithParallel overrides how dispatches fan work items across host CPUs.
func WithParallel(p parallel.Config) Option {
	return func(c *config) { c.par = p }
}

// Driver is the pure Go software driver.
type Driver struct {
	cfg   config
	log   *zap.Logger
	epoch time.Time

	ids       atomic.Uintptr
	platforms table[driver.Platform, platformObj]
	devices   table[driver.Device, deviceObj]
	contexts  table[driver.Context, contextObj]
	queues    table[driver.Queue, queueObj]
	mems      table[driver.Mem, memObj]
	programs  table[driver.Program, programObj]
	kernels   table[driver.Kernel, kernelObj]
	events    table[driver.Event, eventObj]

	stats counters
}

type platformObj struct {
	desc    driver.PlatformDesc
	devices []driver.Device
}

type deviceObj struct {
	desc driver.DeviceDesc
}

type contextObj struct {
	devices []driver.Device
}

type memObj struct {
	data  []byte
	flags driver.MemFlag
}

// New constructs a driver with one platform and cfg.devices devices.
func New(opts ...Option) *Driver {
	cfg := config{
		devices: 1,
		logger:  zap.NewNop(),
		kernels: make(map[string]KernelFunc),
		par:     parallel.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &Driver{cfg: cfg, log: cfg.logger, epoch: time.Now()}
	d.platforms.init()
	d.devices.init()
	d.contexts.init()
	d.queues.init()
	d.mems.init()
	d.programs.init()
	d.kernels.init()
	d.events.init()

	plat := &platformObj{
		desc: driver.PlatformDesc{
			Name:    "Spindle Soft Platform",
			Vendor:  "spindle",
			Version: "OpenCL 1.2 " + version,
			Profile: "FULL_PROFILE",
		},
	}
	pid := driver.Platform(d.nextID())
	for i := 0; i < cfg.devices; i++ {
		dev := &deviceObj{desc: driver.DeviceDesc{
			Name:             fmt.Sprintf("Spindle Soft Device %d", i),
			Vendor:           "spindle",
			DriverVersion:    version,
			DeviceVersion:    "OpenCL 1.2 " + version,
			Profile:          "FULL_PROFILE",
			Type:             driver.DeviceCPU,
			ComputeUnits:     uint32(runtime.NumCPU()),
			MaxWorkGroupSize: 1024,
			MaxWorkItemDims:  3,
			MaxWorkItemSizes: [3]uint64{1024, 1024, 64},
			GlobalMemSize:    4 << 30,
			LocalMemSize:     64 << 10,
			MaxAllocSize:     1 << 30,
		}}
		did := driver.Device(d.nextID())
		d.devices.put(did, dev)
		plat.devices = append(plat.devices, did)
	}
	d.platforms.put(pid, plat)
	return d
}

func (d *Driver) nextID() uintptr { return d.ids.Add(1) }

// now returns nanoseconds since driver construction on the monotonic clock.
func (d *Driver) now() uint64 { return uint64(time.Since(d.epoch)) }

// Name implements driver.Driver.
func (d *Driver) Name() string { return "soft" }

// Available implements driver.Driver. The soft driver is always available.
func (d *Driver) Available() bool { return true }

// Stats returns a snapshot of the per-operation dispatch counters.
func (d *Driver) Stats() Stats { return d.stats.snapshot() }

func (d *Driver) Platforms() ([]driver.Platform, driver.Status) {
	return d.platforms.keys(), driver.Success
}

func (d *Driver) DescribePlatform(p driver.Platform) (driver.PlatformDesc, driver.Status) {
	po, ok := d.platforms.get(p)
	if !ok {
		return driver.PlatformDesc{}, driver.InvalidPlatform
	}
	return po.desc, driver.Success
}

func (d *Driver) Devices(p driver.Platform, t driver.DeviceType) ([]driver.Device, driver.Status) {
	po, ok := d.platforms.get(p)
	if !ok {
		return nil, driver.InvalidPlatform
	}
	var out []driver.Device
	for _, id := range po.devices {
		dev, ok := d.devices.get(id)
		if !ok {
			continue
		}
		if t == driver.DeviceAll || t == driver.DeviceDefault || dev.desc.Type&t != 0 {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil, driver.DeviceNotFound
	}
	return out, driver.Success
}

func (d *Driver) DescribeDevice(dev driver.Device) (driver.DeviceDesc, driver.Status) {
	do, ok := d.devices.get(dev)
	if !ok {
		return driver.DeviceDesc{}, driver.InvalidDevice
	}
	return do.desc, driver.Success
}

// ReleaseDevice is a no-op for the soft driver's root devices.
func (d *Driver) ReleaseDevice(dev driver.Device) driver.Status {
	if _, ok := d.devices.get(dev); !ok {
		return driver.InvalidDevice
	}
	return driver.Success
}

func (d *Driver) CreateContext(devices []driver.Device) (driver.Context, driver.Status) {
	if len(devices) == 0 {
		return 0, driver.InvalidValue
	}
	for _, dev := range devices {
		if _, ok := d.devices.get(dev); !ok {
			return 0, driver.InvalidDevice
		}
	}
	id := driver.Context(d.nextID())
	d.contexts.put(id, &contextObj{devices: append([]driver.Device(nil), devices...)})
	return id, driver.Success
}

func (d *Driver) ReleaseContext(c driver.Context) driver.Status {
	if _, ok := d.contexts.del(c); !ok {
		return driver.InvalidContext
	}
	return driver.Success
}

func (d *Driver) CreateBuffer(c driver.Context, flags driver.MemFlag, size int, hostPtr unsafe.Pointer) (driver.Mem, driver.Status) {
	if _, ok := d.contexts.get(c); !ok {
		return 0, driver.InvalidContext
	}
	if size <= 0 {
		return 0, driver.InvalidBufferSize
	}
	if flags&(driver.MemUseHostPtr|driver.MemCopyHostPtr) != 0 && hostPtr == nil {
		return 0, driver.InvalidHostPtr
	}
	mo := &memObj{data: make([]byte, size), flags: flags}
	if flags&(driver.MemUseHostPtr|driver.MemCopyHostPtr) != 0 {
		copy(mo.data, unsafe.Slice((*byte)(hostPtr), size))
	}
	id := driver.Mem(d.nextID())
	d.mems.put(id, mo)
	return id, driver.Success
}

func (d *Driver) ReleaseMem(m driver.Mem) driver.Status {
	if _, ok := d.mems.del(m); !ok {
		return driver.InvalidMemObject
	}
	return driver.Success
}
