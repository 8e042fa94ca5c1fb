package compute

import (
	"fmt"

	"github.com/spindle-gpu/spindle/driver"
)

// Program is source handed to the device compiler. Build it before
// creating kernels from it.
type Program struct {
	d    driver.Driver
	h    handle
	devs []*Device
}

// Handle returns the native program handle, zero once released.
func (p *Program) Handle() driver.Program { return driver.Program(p.h.load()) }

// Released reports whether Release has run.
func (p *Program) Released() bool { return p.h.released() }

// Equal reports whether both wrappers currently hold the same handle.
func (p *Program) Equal(o *Program) bool { return o != nil && p.h.equal(&o.h) }

// Release releases the program. Idempotent and concurrent-safe.
func (p *Program) Release() error {
	return p.h.release("program", func(v uintptr) driver.Status {
		return p.d.ReleaseProgram(driver.Program(v))
	})
}

// Build compiles the program for the given devices, or for every
// context device when none are named. A compile failure returns a
// BuildError carrying each target's build log.
func (p *Program) Build(devices ...*Device) error {
	return p.BuildOptions("", devices...)
}

// BuildOptions is Build with a compiler-option string.
func (p *Program) BuildOptions(options string, devices ...*Device) error {
	targets := devices
	if len(targets) == 0 {
		targets = p.devs
	}
	hs := make([]driver.Device, len(targets))
	for i, dev := range targets {
		if dev == nil {
			return usagef("build program", "device %d is nil", i)
		}
		hs[i] = dev.Handle()
	}
	st := p.d.BuildProgram(p.Handle(), hs, options)
	if st.Ok() {
		return nil
	}
	be := &BuildError{Status: st}
	for _, dev := range targets {
		be.Logs = append(be.Logs, DeviceLog{
			Device: deviceLabel(dev),
			Log:    p.buildLog(dev),
		})
	}
	return be
}

// BuildLog returns the compiler transcript for one device after a build
// attempt.
func (p *Program) BuildLog(dev *Device) (string, error) {
	if dev == nil {
		return "", usagef("build log", "device is nil")
	}
	s, st := p.d.BuildLog(p.Handle(), dev.Handle())
	if !st.Ok() {
		return "", statusErr("clGetProgramBuildInfo", st, "device %s", deviceLabel(dev))
	}
	return s, nil
}

func (p *Program) buildLog(dev *Device) string {
	s, st := p.d.BuildLog(p.Handle(), dev.Handle())
	if !st.Ok() {
		return ""
	}
	return s
}

// KernelNames lists the kernel entry points of a built program.
func (p *Program) KernelNames() ([]string, error) {
	names, st := p.d.KernelNames(p.Handle())
	if !st.Ok() {
		return nil, statusErr("clGetProgramInfo", st, "kernel names")
	}
	return names, nil
}

// CreateKernel creates one kernel by entry-point name.
func (p *Program) CreateKernel(name string) (*Kernel, error) {
	h, st := p.d.CreateKernel(p.Handle(), name)
	if !st.Ok() {
		return nil, statusErr("clCreateKernel", st, "kernel %q", name)
	}
	k := &Kernel{d: p.d, name: name}
	k.h.set(uintptr(h))
	return k, nil
}

// Kernels creates one kernel per entry point of the built program.
func (p *Program) Kernels() ([]*Kernel, error) {
	names, err := p.KernelNames()
	if err != nil {
		return nil, err
	}
	ks := make([]*Kernel, 0, len(names))
	for _, name := range names {
		k, err := p.CreateKernel(name)
		if err != nil {
			_ = ReleaseAll(releasers(ks)...)
			return nil, err
		}
		ks = append(ks, k)
	}
	return ks, nil
}

func releasers(ks []*Kernel) []Releaser {
	rs := make([]Releaser, len(ks))
	for i, k := range ks {
		rs[i] = k
	}
	return rs
}

// deviceLabel names a device for diagnostics, falling back to the raw
// handle when the name query fails.
func deviceLabel(dev *Device) string {
	if name, _ := Maybe(dev.Name()); name != "" {
		return name
	}
	return fmt.Sprintf("device %#x", dev.h.load())
}
