package compute

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spindle-gpu/spindle/driver"
)

// Device is a host wrapper over one compute device. The capability
// descriptor is fetched once on first use and cached for the life of
// the wrapper; Release clears the handle but keeps the cache readable.
type Device struct {
	d    driver.Driver
	h    handle
	once sync.Once
	desc driver.DeviceDesc
	err  error
}

func newDevice(d driver.Driver, h driver.Device) *Device {
	dev := &Device{d: d}
	dev.h.set(uintptr(h))
	return dev
}

// Handle returns the native device handle, zero once released.
func (d *Device) Handle() driver.Device { return driver.Device(d.h.load()) }

// Released reports whether Release has run.
func (d *Device) Released() bool { return d.h.released() }

// Equal reports whether both wrappers currently hold the same handle.
func (d *Device) Equal(o *Device) bool { return o != nil && d.h.equal(&o.h) }

// Release releases the device. Root devices make this a no-op on the
// native side; the wrapper still clears its handle so later use is
// rejected by the driver.
func (d *Device) Release() error {
	return d.h.release("device", func(v uintptr) driver.Status {
		return d.d.ReleaseDevice(driver.Device(v))
	})
}

func (d *Device) describe() (driver.DeviceDesc, error) {
	d.once.Do(func() {
		desc, st := d.d.DescribeDevice(d.Handle())
		if !st.Ok() {
			d.err = statusErr("clGetDeviceInfo", st, "device %#x", d.h.load())
			return
		}
		d.desc = desc
	})
	return d.desc, d.err
}

// Describe returns the full capability descriptor.
func (d *Device) Describe() (driver.DeviceDesc, error) { return d.describe() }

// Name returns the device name string.
func (d *Device) Name() (string, error) {
	c, err := d.describe()
	return c.Name, err
}

// Vendor returns the device vendor string.
func (d *Device) Vendor() (string, error) {
	c, err := d.describe()
	return c.Vendor, err
}

// DriverVersion returns the native driver version string.
func (d *Device) DriverVersion() (string, error) {
	c, err := d.describe()
	return c.DriverVersion, err
}

// Version returns the device version string.
func (d *Device) Version() (string, error) {
	c, err := d.describe()
	return c.DeviceVersion, err
}

// Profile returns FULL_PROFILE or EMBEDDED_PROFILE.
func (d *Device) Profile() (string, error) {
	c, err := d.describe()
	return c.Profile, err
}

// Type returns the device class bits.
func (d *Device) Type() (driver.DeviceType, error) {
	c, err := d.describe()
	return c.Type, err
}

// ComputeUnits returns the parallel compute unit count.
func (d *Device) ComputeUnits() (uint32, error) {
	c, err := d.describe()
	return c.ComputeUnits, err
}

// MaxWorkGroupSize returns the work-group item limit for kernels on
// this device.
func (d *Device) MaxWorkGroupSize() (int, error) {
	c, err := d.describe()
	return int(c.MaxWorkGroupSize), err
}

// MaxWorkItemDims returns how many index-space dimensions the device
// supports.
func (d *Device) MaxWorkItemDims() (int, error) {
	c, err := d.describe()
	return int(c.MaxWorkItemDims), err
}

// MaxWorkItemSizes returns the per-axis work-group limits.
func (d *Device) MaxWorkItemSizes() ([3]int, error) {
	c, err := d.describe()
	var s [3]int
	for i, v := range c.MaxWorkItemSizes {
		s[i] = int(v)
	}
	return s, err
}

// GlobalMemSize returns the device global memory size in bytes.
func (d *Device) GlobalMemSize() (uint64, error) {
	c, err := d.describe()
	return c.GlobalMemSize, err
}

// LocalMemSize returns the per-group local memory size in bytes.
func (d *Device) LocalMemSize() (uint64, error) {
	c, err := d.describe()
	return c.LocalMemSize, err
}

// MaxAllocSize returns the largest single buffer the device accepts.
func (d *Device) MaxAllocSize() (uint64, error) {
	c, err := d.describe()
	return c.MaxAllocSize, err
}

// Extensions returns the device extension names.
func (d *Device) Extensions() ([]string, error) {
	c, err := d.describe()
	return strings.Fields(c.Extensions), err
}

// Report renders a multi-line capability summary. Every field is read
// through Maybe so one unanswerable query degrades to "-" instead of
// killing the report.
func (d *Device) Report() string {
	name, _ := Maybe(d.Name())
	vendor, _ := Maybe(d.Vendor())
	version, _ := Maybe(d.Version())
	drv, _ := Maybe(d.DriverVersion())
	units, _ := Maybe(d.ComputeUnits())
	wg, _ := Maybe(d.MaxWorkGroupSize())
	sizes, _ := Maybe(d.MaxWorkItemSizes())
	gmem, _ := Maybe(d.GlobalMemSize())
	lmem, _ := Maybe(d.LocalMemSize())

	var b strings.Builder
	fmt.Fprintf(&b, "device:          %s\n", orDash(name))
	fmt.Fprintf(&b, "vendor:          %s\n", orDash(vendor))
	fmt.Fprintf(&b, "version:         %s\n", orDash(version))
	fmt.Fprintf(&b, "driver:          %s\n", orDash(drv))
	fmt.Fprintf(&b, "compute units:   %d\n", units)
	fmt.Fprintf(&b, "max group size:  %d\n", wg)
	fmt.Fprintf(&b, "max item sizes:  %v\n", sizes)
	fmt.Fprintf(&b, "global memory:   %d\n", gmem)
	fmt.Fprintf(&b, "local memory:    %d", lmem)
	return b.String()
}

// TypeString renders a device type mask as "cpu|gpu" style text.
func TypeString(t driver.DeviceType) string {
	var parts []string
	if t&driver.DeviceDefault != 0 {
		parts = append(parts, "default")
	}
	if t&driver.DeviceCPU != 0 {
		parts = append(parts, "cpu")
	}
	if t&driver.DeviceGPU != 0 {
		parts = append(parts, "gpu")
	}
	if t&driver.DeviceAccelerator != 0 {
		parts = append(parts, "accelerator")
	}
	if t&driver.DeviceCustom != 0 {
		parts = append(parts, "custom")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}
