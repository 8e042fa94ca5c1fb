//go:build linux || darwin

// Package opencl implements the spindle driver boundary on the system
// OpenCL runtime. The library is loaded at first use with dlopen, so
// binaries build and start on machines without OpenCL; Available
// reports whether a usable runtime with at least one platform was
// found.
//
// Handles returned by this driver are the native OpenCL object
// pointers.
package opencl

import (
	"runtime"
	"strings"
	"unsafe"

	"github.com/spindle-gpu/spindle/driver"
)

// Driver binds the spindle driver interface to the system OpenCL
// runtime. The zero value is not usable; call New.
type Driver struct{}

var _ driver.Driver = (*Driver)(nil)

// New returns the OpenCL driver. The runtime library is not touched
// until the first call that needs it.
func New() *Driver { return &Driver{} }

// Name identifies the driver.
func (d *Driver) Name() string { return "opencl" }

// LoadError returns the reason the runtime could not be loaded, nil
// when loading succeeded.
func (d *Driver) LoadError() error { return initLib() }

// Available reports whether an OpenCL runtime with at least one
// platform is reachable.
func (d *Driver) Available() bool {
	if initLib() != nil {
		return false
	}
	var n uint32
	if clGetPlatformIDs(0, nil, &n) != 0 {
		return false
	}
	return n > 0
}

// Platforms enumerates the installed OpenCL platforms.
func (d *Driver) Platforms() ([]driver.Platform, driver.Status) {
	if err := initLib(); err != nil {
		return nil, driver.DeviceNotAvailable
	}
	var n uint32
	if ret := clGetPlatformIDs(0, nil, &n); ret != 0 {
		return nil, driver.Status(ret)
	}
	if n == 0 {
		return nil, driver.Success
	}
	raw := make([]uintptr, n)
	if ret := clGetPlatformIDs(n, &raw[0], nil); ret != 0 {
		return nil, driver.Status(ret)
	}
	out := make([]driver.Platform, n)
	for i, h := range raw {
		out[i] = driver.Platform(h)
	}
	return out, driver.Success
}

// Devices enumerates the platform's devices matching the type mask.
func (d *Driver) Devices(p driver.Platform, t driver.DeviceType) ([]driver.Device, driver.Status) {
	if err := initLib(); err != nil {
		return nil, driver.DeviceNotAvailable
	}
	var n uint32
	if ret := clGetDeviceIDs(uintptr(p), uint64(t), 0, nil, &n); ret != 0 {
		return nil, driver.Status(ret)
	}
	if n == 0 {
		return nil, driver.DeviceNotFound
	}
	raw := make([]uintptr, n)
	if ret := clGetDeviceIDs(uintptr(p), uint64(t), n, &raw[0], nil); ret != 0 {
		return nil, driver.Status(ret)
	}
	out := make([]driver.Device, n)
	for i, h := range raw {
		out[i] = driver.Device(h)
	}
	return out, driver.Success
}

// ReleaseDevice drops one reference on a device. OpenCL defines the
// call as a no-op on root devices.
func (d *Driver) ReleaseDevice(dev driver.Device) driver.Status {
	return driver.Status(clReleaseDevice(uintptr(dev)))
}

// CreateContext creates a context over the given devices.
func (d *Driver) CreateContext(devices []driver.Device) (driver.Context, driver.Status) {
	if err := initLib(); err != nil {
		return 0, driver.DeviceNotAvailable
	}
	if len(devices) == 0 {
		return 0, driver.InvalidValue
	}
	raw := make([]uintptr, len(devices))
	for i, dev := range devices {
		raw[i] = uintptr(dev)
	}
	var errRet int32
	h := clCreateContext(nil, uint32(len(raw)), &raw[0], 0, 0, &errRet)
	runtime.KeepAlive(raw)
	if errRet != 0 {
		return 0, driver.Status(errRet)
	}
	return driver.Context(h), driver.Success
}

func (d *Driver) ReleaseContext(c driver.Context) driver.Status {
	return driver.Status(clReleaseContext(uintptr(c)))
}

// CreateQueue creates a command queue with the given property bits.
// The property values match the native encoding bit for bit.
func (d *Driver) CreateQueue(c driver.Context, dev driver.Device, props driver.QueueProp) (driver.Queue, driver.Status) {
	var errRet int32
	h := clCreateCommandQueue(uintptr(c), uintptr(dev), uint64(props), &errRet)
	if errRet != 0 {
		return 0, driver.Status(errRet)
	}
	return driver.Queue(h), driver.Success
}

func (d *Driver) ReleaseQueue(q driver.Queue) driver.Status {
	return driver.Status(clReleaseCommandQueue(uintptr(q)))
}

// CreateBuffer allocates size bytes, honoring the host-pointer flags.
func (d *Driver) CreateBuffer(c driver.Context, flags driver.MemFlag, size int, hostPtr unsafe.Pointer) (driver.Mem, driver.Status) {
	if size <= 0 {
		return 0, driver.InvalidBufferSize
	}
	var errRet int32
	h := clCreateBuffer(uintptr(c), uint64(flags), uintptr(size), hostPtr, &errRet)
	if errRet != 0 {
		return 0, driver.Status(errRet)
	}
	return driver.Mem(h), driver.Success
}

func (d *Driver) ReleaseMem(m driver.Mem) driver.Status {
	return driver.Status(clReleaseMemObject(uintptr(m)))
}

// CreateProgram hands the source fragments to the runtime, which
// concatenates them in order.
func (d *Driver) CreateProgram(c driver.Context, sources []string) (driver.Program, driver.Status) {
	if len(sources) == 0 {
		return 0, driver.InvalidValue
	}
	bufs := make([][]byte, len(sources))
	ptrs := make([]uintptr, len(sources))
	lens := make([]uintptr, len(sources))
	for i, s := range sources {
		if s == "" {
			return 0, driver.InvalidValue
		}
		bufs[i] = []byte(s)
		ptrs[i] = uintptr(unsafe.Pointer(&bufs[i][0]))
		lens[i] = uintptr(len(bufs[i]))
	}
	var errRet int32
	h := clCreateProgramWithSource(uintptr(c), uint32(len(sources)), &ptrs[0], &lens[0], &errRet)
	runtime.KeepAlive(bufs)
	if errRet != 0 {
		return 0, driver.Status(errRet)
	}
	return driver.Program(h), driver.Success
}

// BuildProgram compiles for the given devices, or for every context
// device when the list is empty.
func (d *Driver) BuildProgram(p driver.Program, devices []driver.Device, options string) driver.Status {
	var (
		num uint32
		ptr *uintptr
		raw []uintptr
	)
	if len(devices) > 0 {
		raw = make([]uintptr, len(devices))
		for i, dev := range devices {
			raw[i] = uintptr(dev)
		}
		num = uint32(len(raw))
		ptr = &raw[0]
	}
	ret := clBuildProgram(uintptr(p), num, ptr, options, 0, 0)
	runtime.KeepAlive(raw)
	return driver.Status(ret)
}

// BuildLog returns the compiler transcript for one device.
func (d *Driver) BuildLog(p driver.Program, dev driver.Device) (string, driver.Status) {
	return infoString(func(param uint32, size uintptr, value unsafe.Pointer, sizeRet *uintptr) int32 {
		return clGetProgramBuildInfo(uintptr(p), uintptr(dev), param, size, value, sizeRet)
	}, clProgramBuildLog)
}

func (d *Driver) ReleaseProgram(p driver.Program) driver.Status {
	return driver.Status(clReleaseProgram(uintptr(p)))
}

// CreateKernel creates a kernel by entry-point name.
func (d *Driver) CreateKernel(p driver.Program, name string) (driver.Kernel, driver.Status) {
	var errRet int32
	h := clCreateKernel(uintptr(p), name, &errRet)
	if errRet != 0 {
		return 0, driver.Status(errRet)
	}
	return driver.Kernel(h), driver.Success
}

// KernelNames lists the kernel entry points of a built program. The
// runtime reports them as one semicolon-separated string.
func (d *Driver) KernelNames(p driver.Program) ([]string, driver.Status) {
	s, st := infoString(func(param uint32, size uintptr, value unsafe.Pointer, sizeRet *uintptr) int32 {
		return clGetProgramInfo(uintptr(p), param, size, value, sizeRet)
	}, clProgramKernelNames)
	if !st.Ok() {
		return nil, st
	}
	var names []string
	for _, n := range strings.Split(s, ";") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names, driver.Success
}

func (d *Driver) ReleaseKernel(k driver.Kernel) driver.Status {
	return driver.Status(clReleaseKernel(uintptr(k)))
}

// SetKernelArg binds size bytes at ptr to the argument, or reserves
// size bytes of local memory when ptr is nil.
func (d *Driver) SetKernelArg(k driver.Kernel, index uint, size uintptr, ptr unsafe.Pointer) driver.Status {
	return driver.Status(clSetKernelArg(uintptr(k), uint32(index), size, ptr))
}

// SetKernelArgMem binds a memory object. The native call takes the
// handle by address with the handle's own size.
func (d *Driver) SetKernelArgMem(k driver.Kernel, index uint, m driver.Mem) driver.Status {
	h := uintptr(m)
	ret := clSetKernelArg(uintptr(k), uint32(index), unsafe.Sizeof(h), unsafe.Pointer(&h))
	runtime.KeepAlive(&h)
	return driver.Status(ret)
}
