//go:build linux || darwin

package opencl

import (
	"bytes"
	"unsafe"

	"github.com/spindle-gpu/spindle/driver"
)

// Info parameter codes from the OpenCL 1.2 headers; only the ones this
// driver queries.
const (
	clPlatformProfile    = 0x0900
	clPlatformVersion    = 0x0901
	clPlatformName       = 0x0902
	clPlatformVendor     = 0x0903
	clPlatformExtensions = 0x0904

	clDeviceType              = 0x1000
	clDeviceMaxComputeUnits   = 0x1002
	clDeviceMaxWorkItemDims   = 0x1003
	clDeviceMaxWorkGroupSize  = 0x1004
	clDeviceMaxWorkItemSizes  = 0x1005
	clDeviceMaxMemAllocSize   = 0x1010
	clDeviceGlobalMemSize     = 0x101F
	clDeviceLocalMemSize      = 0x1023
	clDeviceName              = 0x102B
	clDeviceVendor            = 0x102C
	clDriverVersion           = 0x102D
	clDeviceProfile           = 0x102E
	clDeviceVersion           = 0x102F
	clDeviceExtensions        = 0x1030

	clProgramKernelNames = 0x1168
	clProgramBuildLog    = 0x1183

	clEventExecutionStatus = 0x11D3

	clProfilingQueued = 0x1280
	clProfilingSubmit = 0x1281
	clProfilingStart  = 0x1282
	clProfilingEnd    = 0x1283
)

// infoString runs the usual two-phase string query: size first, then
// the bytes. Trailing NULs are stripped.
func infoString(query func(param uint32, size uintptr, value unsafe.Pointer, sizeRet *uintptr) int32, param uint32) (string, driver.Status) {
	var size uintptr
	if ret := query(param, 0, nil, &size); ret != 0 {
		return "", driver.Status(ret)
	}
	if size == 0 {
		return "", driver.Success
	}
	buf := make([]byte, size)
	if ret := query(param, size, unsafe.Pointer(&buf[0]), nil); ret != 0 {
		return "", driver.Status(ret)
	}
	return string(bytes.TrimRight(buf, "\x00")), driver.Success
}

func platformString(p uintptr, param uint32) (string, driver.Status) {
	return infoString(func(param uint32, size uintptr, value unsafe.Pointer, sizeRet *uintptr) int32 {
		return clGetPlatformInfo(p, param, size, value, sizeRet)
	}, param)
}

func deviceString(d uintptr, param uint32) (string, driver.Status) {
	return infoString(func(param uint32, size uintptr, value unsafe.Pointer, sizeRet *uintptr) int32 {
		return clGetDeviceInfo(d, param, size, value, sizeRet)
	}, param)
}

func deviceUint32(d uintptr, param uint32) (uint32, driver.Status) {
	var v uint32
	ret := clGetDeviceInfo(d, param, unsafe.Sizeof(v), unsafe.Pointer(&v), nil)
	return v, driver.Status(ret)
}

func deviceUint64(d uintptr, param uint32) (uint64, driver.Status) {
	var v uint64
	ret := clGetDeviceInfo(d, param, unsafe.Sizeof(v), unsafe.Pointer(&v), nil)
	return v, driver.Status(ret)
}

func deviceSize(d uintptr, param uint32) (uintptr, driver.Status) {
	var v uintptr
	ret := clGetDeviceInfo(d, param, unsafe.Sizeof(v), unsafe.Pointer(&v), nil)
	return v, driver.Status(ret)
}

// DescribePlatform reads the platform identity strings.
func (d *Driver) DescribePlatform(p driver.Platform) (driver.PlatformDesc, driver.Status) {
	if err := initLib(); err != nil {
		return driver.PlatformDesc{}, driver.DeviceNotAvailable
	}
	var desc driver.PlatformDesc
	for _, q := range []struct {
		param uint32
		dst   *string
	}{
		{clPlatformName, &desc.Name},
		{clPlatformVendor, &desc.Vendor},
		{clPlatformVersion, &desc.Version},
		{clPlatformProfile, &desc.Profile},
		{clPlatformExtensions, &desc.Extensions},
	} {
		s, st := platformString(uintptr(p), q.param)
		if !st.Ok() {
			return driver.PlatformDesc{}, st
		}
		*q.dst = s
	}
	return desc, driver.Success
}

// DescribeDevice reads the capability summary of one device.
func (d *Driver) DescribeDevice(dev driver.Device) (driver.DeviceDesc, driver.Status) {
	if err := initLib(); err != nil {
		return driver.DeviceDesc{}, driver.DeviceNotAvailable
	}
	h := uintptr(dev)
	var desc driver.DeviceDesc

	for _, q := range []struct {
		param uint32
		dst   *string
	}{
		{clDeviceName, &desc.Name},
		{clDeviceVendor, &desc.Vendor},
		{clDriverVersion, &desc.DriverVersion},
		{clDeviceVersion, &desc.DeviceVersion},
		{clDeviceProfile, &desc.Profile},
		{clDeviceExtensions, &desc.Extensions},
	} {
		s, st := deviceString(h, q.param)
		if !st.Ok() {
			return driver.DeviceDesc{}, st
		}
		*q.dst = s
	}

	t, st := deviceUint64(h, clDeviceType)
	if !st.Ok() {
		return driver.DeviceDesc{}, st
	}
	desc.Type = driver.DeviceType(t)

	if desc.ComputeUnits, st = deviceUint32(h, clDeviceMaxComputeUnits); !st.Ok() {
		return driver.DeviceDesc{}, st
	}
	if desc.MaxWorkItemDims, st = deviceUint32(h, clDeviceMaxWorkItemDims); !st.Ok() {
		return driver.DeviceDesc{}, st
	}
	wg, st := deviceSize(h, clDeviceMaxWorkGroupSize)
	if !st.Ok() {
		return driver.DeviceDesc{}, st
	}
	desc.MaxWorkGroupSize = uint64(wg)

	dims := desc.MaxWorkItemDims
	if dims > 0 {
		sizes := make([]uintptr, dims)
		var s uintptr
		ret := clGetDeviceInfo(h, clDeviceMaxWorkItemSizes,
			uintptr(dims)*unsafe.Sizeof(s), unsafe.Pointer(&sizes[0]), nil)
		if ret != 0 {
			return driver.DeviceDesc{}, driver.Status(ret)
		}
		for i := 0; i < len(sizes) && i < 3; i++ {
			desc.MaxWorkItemSizes[i] = uint64(sizes[i])
		}
	}

	if desc.GlobalMemSize, st = deviceUint64(h, clDeviceGlobalMemSize); !st.Ok() {
		return driver.DeviceDesc{}, st
	}
	if desc.LocalMemSize, st = deviceUint64(h, clDeviceLocalMemSize); !st.Ok() {
		return driver.DeviceDesc{}, st
	}
	if desc.MaxAllocSize, st = deviceUint64(h, clDeviceMaxMemAllocSize); !st.Ok() {
		return driver.DeviceDesc{}, st
	}
	return desc, driver.Success
}
