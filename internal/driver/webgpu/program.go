//go:build windows

package webgpu

import (
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/spindle-gpu/spindle/driver"
)

type programObj struct {
	sources []string

	mu     sync.Mutex
	built  bool
	module *wgpu.ShaderModule
	names  []string
	log    string
}

type kernelObj struct {
	name     string
	pipeline *wgpu.ComputePipeline

	mu   sync.Mutex
	args map[uint]kernelArg
}

// kernelArg is one bound argument: a storage buffer by handle, or a
// by-value payload delivered through an ad hoc uniform buffer at
// dispatch.
type kernelArg struct {
	isMem bool
	mem   driver.Mem
	bytes []byte
}

// CreateProgram records WGSL source fragments; compilation happens at
// BuildProgram.
func (d *Driver) CreateProgram(c driver.Context, sources []string) (driver.Program, driver.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.contexts[c]; !ok {
		return 0, driver.InvalidContext
	}
	if len(sources) == 0 {
		return 0, driver.InvalidValue
	}
	for _, s := range sources {
		if s == "" {
			return 0, driver.InvalidValue
		}
	}
	po := &programObj{sources: append([]string(nil), sources...)}
	id := driver.Program(d.newID())
	d.programs[id] = po
	return id, driver.Success
}

// BuildProgram compiles the joined source as a WGSL shader module. wgpu
// surfaces compile errors by panicking, so the panic text doubles as
// the build log. Compiler options have no WGSL equivalent and are
// ignored.
func (d *Driver) BuildProgram(p driver.Program, devices []driver.Device, options string) driver.Status {
	d.mu.Lock()
	po, ok := d.programs[p]
	d.mu.Unlock()
	if !ok {
		return driver.InvalidProgram
	}
	for _, dev := range devices {
		if dev != deviceHandle {
			return driver.InvalidDevice
		}
	}

	src := strings.Join(po.sources, "\n")
	names := entryPoints(src)
	module, problem := d.compileWGSL(src)
	if problem == "" && len(names) == 0 {
		problem = "error: no @compute entry point found"
		if module != nil {
			module.Release()
			module = nil
		}
	}

	po.mu.Lock()
	defer po.mu.Unlock()
	if po.module != nil {
		po.module.Release()
	}
	if problem != "" {
		po.built = false
		po.module = nil
		po.names = nil
		po.log = problem
		return driver.BuildProgramFailure
	}
	po.built = true
	po.module = module
	po.names = names
	po.log = ""
	return driver.Success
}

// compileWGSL creates the shader module under a recover so a compile
// error becomes a transcript instead of tearing the process down.
func (d *Driver) compileWGSL(src string) (module *wgpu.ShaderModule, problem string) {
	defer func() {
		if r := recover(); r != nil {
			module = nil
			problem = fmt.Sprint(r)
		}
	}()
	return d.device.CreateShaderModuleWGSL(src), ""
}

// entryPoints scans WGSL source for @compute entry points. It tracks
// declarations, not semantics; the shader compiler has the final word.
func entryPoints(src string) []string {
	var names []string
	rest := src
	for {
		i := strings.Index(rest, "@compute")
		if i < 0 {
			break
		}
		rest = rest[i+len("@compute"):]
		j := strings.Index(rest, "fn ")
		if j < 0 {
			break
		}
		rest = rest[j+len("fn "):]
		k := strings.IndexAny(rest, "( \t\n")
		if k <= 0 {
			break
		}
		names = append(names, rest[:k])
		rest = rest[k:]
	}
	return names
}

func (d *Driver) BuildLog(p driver.Program, dev driver.Device) (string, driver.Status) {
	d.mu.Lock()
	po, ok := d.programs[p]
	d.mu.Unlock()
	if !ok {
		return "", driver.InvalidProgram
	}
	if dev != deviceHandle {
		return "", driver.InvalidDevice
	}
	po.mu.Lock()
	defer po.mu.Unlock()
	return po.log, driver.Success
}

func (d *Driver) ReleaseProgram(p driver.Program) driver.Status {
	d.mu.Lock()
	po, ok := d.programs[p]
	if ok {
		delete(d.programs, p)
	}
	d.mu.Unlock()
	if !ok {
		return driver.InvalidProgram
	}
	po.mu.Lock()
	defer po.mu.Unlock()
	if po.module != nil {
		po.module.Release()
		po.module = nil
	}
	return driver.Success
}

// CreateKernel builds a compute pipeline with the entry point name and
// an auto layout, the way every pipeline here is built.
func (d *Driver) CreateKernel(p driver.Program, name string) (driver.Kernel, driver.Status) {
	d.mu.Lock()
	po, ok := d.programs[p]
	d.mu.Unlock()
	if !ok {
		return 0, driver.InvalidProgram
	}
	po.mu.Lock()
	built := po.built
	module := po.module
	known := false
	for _, n := range po.names {
		if n == name {
			known = true
			break
		}
	}
	po.mu.Unlock()
	if !built {
		return 0, driver.InvalidProgramExecutable
	}
	if !known {
		return 0, driver.InvalidKernelName
	}

	pipeline, problem := d.createPipeline(module, name)
	if problem != "" {
		return 0, driver.InvalidKernelDefinition
	}
	ko := &kernelObj{name: name, pipeline: pipeline, args: make(map[uint]kernelArg)}
	d.mu.Lock()
	id := driver.Kernel(d.newID())
	d.kernels[id] = ko
	d.mu.Unlock()
	return id, driver.Success
}

func (d *Driver) createPipeline(module *wgpu.ShaderModule, entry string) (pipeline *wgpu.ComputePipeline, problem string) {
	defer func() {
		if r := recover(); r != nil {
			pipeline = nil
			problem = fmt.Sprint(r)
		}
	}()
	return d.device.CreateComputePipelineSimple(nil, module, entry), ""
}

func (d *Driver) KernelNames(p driver.Program) ([]string, driver.Status) {
	d.mu.Lock()
	po, ok := d.programs[p]
	d.mu.Unlock()
	if !ok {
		return nil, driver.InvalidProgram
	}
	po.mu.Lock()
	defer po.mu.Unlock()
	if !po.built {
		return nil, driver.InvalidProgramExecutable
	}
	return append([]string(nil), po.names...), driver.Success
}

func (d *Driver) ReleaseKernel(k driver.Kernel) driver.Status {
	d.mu.Lock()
	ko, ok := d.kernels[k]
	if ok {
		delete(d.kernels, k)
	}
	d.mu.Unlock()
	if !ok {
		return driver.InvalidKernel
	}
	ko.pipeline.Release()
	return driver.Success
}

const maxArgIndex = 255

// SetKernelArg binds a by-value payload. Local-memory reservations
// (nil ptr) cannot be expressed: WGSL fixes workgroup storage in the
// shader text.
func (d *Driver) SetKernelArg(k driver.Kernel, index uint, size uintptr, ptr unsafe.Pointer) driver.Status {
	d.mu.Lock()
	ko, ok := d.kernels[k]
	d.mu.Unlock()
	if !ok {
		return driver.InvalidKernel
	}
	if index > maxArgIndex {
		return driver.InvalidArgIndex
	}
	if size == 0 {
		return driver.InvalidArgSize
	}
	if ptr == nil {
		return driver.InvalidOperation
	}
	buf := make([]byte, size)
	copy(buf, unsafe.Slice((*byte)(ptr), size))
	ko.setArg(index, kernelArg{bytes: buf})
	return driver.Success
}

func (d *Driver) SetKernelArgMem(k driver.Kernel, index uint, m driver.Mem) driver.Status {
	d.mu.Lock()
	ko, ok := d.kernels[k]
	_, memOK := d.mems[m]
	d.mu.Unlock()
	if !ok {
		return driver.InvalidKernel
	}
	if index > maxArgIndex {
		return driver.InvalidArgIndex
	}
	if !memOK {
		return driver.InvalidMemObject
	}
	ko.setArg(index, kernelArg{isMem: true, mem: m})
	return driver.Success
}

func (ko *kernelObj) setArg(index uint, a kernelArg) {
	ko.mu.Lock()
	ko.args[index] = a
	ko.mu.Unlock()
}

// snapshotArgs freezes the current bindings for one dispatch.
func (ko *kernelObj) snapshotArgs() map[uint]kernelArg {
	ko.mu.Lock()
	defer ko.mu.Unlock()
	out := make(map[uint]kernelArg, len(ko.args))
	for i, a := range ko.args {
		out[i] = a
	}
	return out
}
