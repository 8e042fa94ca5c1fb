//go:build linux || darwin

package opencl

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// OpenCL entry points, bound at first use. No cgo: the runtime library
// is loaded with dlopen and every function registered through purego.
var (
	libOnce sync.Once
	libErr  error

	clGetPlatformIDs  func(numEntries uint32, platforms *uintptr, numPlatforms *uint32) int32
	clGetPlatformInfo func(platform uintptr, param uint32, size uintptr, value unsafe.Pointer, sizeRet *uintptr) int32
	clGetDeviceIDs    func(platform uintptr, deviceType uint64, numEntries uint32, devices *uintptr, numDevices *uint32) int32
	clGetDeviceInfo   func(device uintptr, param uint32, size uintptr, value unsafe.Pointer, sizeRet *uintptr) int32
	clReleaseDevice   func(device uintptr) int32

	clCreateContext  func(properties *uintptr, numDevices uint32, devices *uintptr, notify, userData uintptr, errRet *int32) uintptr
	clReleaseContext func(ctx uintptr) int32

	clCreateCommandQueue  func(ctx, device uintptr, properties uint64, errRet *int32) uintptr
	clReleaseCommandQueue func(q uintptr) int32

	clCreateBuffer     func(ctx uintptr, flags uint64, size uintptr, hostPtr unsafe.Pointer, errRet *int32) uintptr
	clReleaseMemObject func(m uintptr) int32

	clCreateProgramWithSource func(ctx uintptr, count uint32, strs, lengths *uintptr, errRet *int32) uintptr
	clBuildProgram            func(prog uintptr, numDevices uint32, devices *uintptr, options string, notify, userData uintptr) int32
	clGetProgramBuildInfo     func(prog, device uintptr, param uint32, size uintptr, value unsafe.Pointer, sizeRet *uintptr) int32
	clGetProgramInfo          func(prog uintptr, param uint32, size uintptr, value unsafe.Pointer, sizeRet *uintptr) int32
	clReleaseProgram          func(prog uintptr) int32

	clCreateKernel  func(prog uintptr, name string, errRet *int32) uintptr
	clReleaseKernel func(k uintptr) int32
	clSetKernelArg  func(k uintptr, index uint32, size uintptr, value unsafe.Pointer) int32

	clEnqueueNDRangeKernel       func(q, k uintptr, dims uint32, offset, global, local *uintptr, numWait uint32, wait, event *uintptr) int32
	clEnqueueReadBuffer          func(q, m uintptr, blocking uint32, offset, n uintptr, ptr unsafe.Pointer, numWait uint32, wait, event *uintptr) int32
	clEnqueueWriteBuffer         func(q, m uintptr, blocking uint32, offset, n uintptr, ptr unsafe.Pointer, numWait uint32, wait, event *uintptr) int32
	clEnqueueCopyBuffer          func(q, src, dst uintptr, srcOffset, dstOffset, n uintptr, numWait uint32, wait, event *uintptr) int32
	clEnqueueFillBuffer          func(q, m uintptr, pattern unsafe.Pointer, patternSize, offset, n uintptr, numWait uint32, wait, event *uintptr) int32
	clEnqueueMapBuffer           func(q, m uintptr, blocking uint32, flags uint64, offset, n uintptr, numWait uint32, wait, event *uintptr, errRet *int32) unsafe.Pointer
	clEnqueueUnmapMemObject      func(q, m uintptr, ptr unsafe.Pointer, numWait uint32, wait, event *uintptr) int32
	clEnqueueMarkerWithWaitList  func(q uintptr, numWait uint32, wait, event *uintptr) int32
	clEnqueueBarrierWithWaitList func(q uintptr, numWait uint32, wait, event *uintptr) int32
	clFlush                      func(q uintptr) int32
	clFinish                     func(q uintptr) int32

	clCreateUserEvent       func(ctx uintptr, errRet *int32) uintptr
	clSetUserEventStatus    func(e uintptr, status int32) int32
	clGetEventInfo          func(e uintptr, param uint32, size uintptr, value unsafe.Pointer, sizeRet *uintptr) int32
	clSetEventCallback      func(e uintptr, callbackType int32, notify, userData uintptr) int32
	clGetEventProfilingInfo func(e uintptr, param uint32, size uintptr, value unsafe.Pointer, sizeRet *uintptr) int32
	clWaitForEvents         func(num uint32, events *uintptr) int32
	clRetainEvent           func(e uintptr) int32
	clReleaseEvent          func(e uintptr) int32
)

// libPaths lists the runtime library candidates per platform, most
// specific first.
func libPaths() []string {
	if runtime.GOOS == "darwin" {
		return []string{"/System/Library/Frameworks/OpenCL.framework/OpenCL"}
	}
	return []string{"libOpenCL.so.1", "libOpenCL.so"}
}

// initLib loads the OpenCL runtime and registers every entry point.
// The OpenCL 1.2 surface is required: a library missing any symbol is
// treated as unavailable.
func initLib() error {
	libOnce.Do(func() {
		var lib uintptr
		for _, path := range libPaths() {
			var err error
			lib, err = purego.Dlopen(path, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
			if err == nil {
				break
			}
			libErr = err
			lib = 0
		}
		if lib == 0 {
			libErr = fmt.Errorf("opencl: cannot load OpenCL runtime: %w", libErr)
			return
		}
		libErr = nil

		funcs := []struct {
			ptr  any
			name string
		}{
			{&clGetPlatformIDs, "clGetPlatformIDs"},
			{&clGetPlatformInfo, "clGetPlatformInfo"},
			{&clGetDeviceIDs, "clGetDeviceIDs"},
			{&clGetDeviceInfo, "clGetDeviceInfo"},
			{&clReleaseDevice, "clReleaseDevice"},
			{&clCreateContext, "clCreateContext"},
			{&clReleaseContext, "clReleaseContext"},
			{&clCreateCommandQueue, "clCreateCommandQueue"},
			{&clReleaseCommandQueue, "clReleaseCommandQueue"},
			{&clCreateBuffer, "clCreateBuffer"},
			{&clReleaseMemObject, "clReleaseMemObject"},
			{&clCreateProgramWithSource, "clCreateProgramWithSource"},
			{&clBuildProgram, "clBuildProgram"},
			{&clGetProgramBuildInfo, "clGetProgramBuildInfo"},
			{&clGetProgramInfo, "clGetProgramInfo"},
			{&clReleaseProgram, "clReleaseProgram"},
			{&clCreateKernel, "clCreateKernel"},
			{&clReleaseKernel, "clReleaseKernel"},
			{&clSetKernelArg, "clSetKernelArg"},
			{&clEnqueueNDRangeKernel, "clEnqueueNDRangeKernel"},
			{&clEnqueueReadBuffer, "clEnqueueReadBuffer"},
			{&clEnqueueWriteBuffer, "clEnqueueWriteBuffer"},
			{&clEnqueueCopyBuffer, "clEnqueueCopyBuffer"},
			{&clEnqueueFillBuffer, "clEnqueueFillBuffer"},
			{&clEnqueueMapBuffer, "clEnqueueMapBuffer"},
			{&clEnqueueUnmapMemObject, "clEnqueueUnmapMemObject"},
			{&clEnqueueMarkerWithWaitList, "clEnqueueMarkerWithWaitList"},
			{&clEnqueueBarrierWithWaitList, "clEnqueueBarrierWithWaitList"},
			{&clFlush, "clFlush"},
			{&clFinish, "clFinish"},
			{&clCreateUserEvent, "clCreateUserEvent"},
			{&clSetUserEventStatus, "clSetUserEventStatus"},
			{&clGetEventInfo, "clGetEventInfo"},
			{&clSetEventCallback, "clSetEventCallback"},
			{&clGetEventProfilingInfo, "clGetEventProfilingInfo"},
			{&clWaitForEvents, "clWaitForEvents"},
			{&clRetainEvent, "clRetainEvent"},
			{&clReleaseEvent, "clReleaseEvent"},
		}
		for _, f := range funcs {
			if _, err := purego.Dlsym(lib, f.name); err != nil {
				libErr = fmt.Errorf("opencl: runtime is missing %s: %w", f.name, err)
				return
			}
		}
		for _, f := range funcs {
			purego.RegisterLibFunc(f.ptr, lib, f.name)
		}
	})
	return libErr
}
