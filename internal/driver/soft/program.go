package soft

import (
	"strings"
	"sync"
	"unsafe"

	"github.com/spindle-gpu/spindle/driver"
	"github.com/spindle-gpu/spindle/internal/parallel"
)

// Item identifies one work item within a dispatch.
type Item struct {
	ID     [3]int // global work-item id, x-fastest
	Global [3]int // global extents of the dispatch
}

// Value is one kernel argument resolved for execution. Exactly one field
// group is populated: Data aliases device buffer storage (stores are
// visible to later commands), Bytes carries a by-value payload, and for
// local-memory reservations Local is the byte count with Data pointing at
// a scratch region shared by the whole dispatch.
type Value struct {
	Data  []byte
	Bytes []byte
	Local int
}

// KernelFunc is a host-side kernel body, called once per work item.
type KernelFunc func(it Item, args []Value)

type programObj struct {
	ctx     driver.Context
	sources []string

	mu    sync.Mutex
	built bool
	names []string
	logs  map[driver.Device]string
}

type kernelObj struct {
	name string
	fn   KernelFunc

	mu   sync.Mutex
	args map[uint]kernelArg
}

type kernelArg struct {
	isMem bool
	mem   driver.Mem
	bytes []byte
	local int
}

func (d *Driver) CreateProgram(c driver.Context, sources []string) (driver.Program, driver.Status) {
	if _, ok := d.contexts.get(c); !ok {
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
	po := &programObj{
		ctx:     c,
		sources: append([]string(nil), sources...),
		logs:    make(map[driver.Device]string),
	}
	id := driver.Program(d.nextID())
	d.programs.put(id, po)
	return id, driver.Success
}

// BuildProgram runs the minimal validator: the joined source must declare
// at least one __kernel entry point and keep braces balanced. The
// transcript of a failed build is retained per device.
func (d *Driver) BuildProgram(p driver.Program, devices []driver.Device, options string) driver.Status {
	po, ok := d.programs.get(p)
	if !ok {
		return driver.InvalidProgram
	}
	targets := devices
	if len(targets) == 0 {
		co, ok := d.contexts.get(po.ctx)
		if !ok {
			return driver.InvalidContext
		}
		targets = co.devices
	}
	for _, dev := range targets {
		if _, ok := d.devices.get(dev); !ok {
			return driver.InvalidDevice
		}
	}

	src := strings.Join(po.sources, "\n")
	names, problem := compile(src)

	po.mu.Lock()
	defer po.mu.Unlock()
	if problem != "" {
		po.built = false
		po.names = nil
		for _, dev := range targets {
			po.logs[dev] = problem
		}
		return driver.BuildProgramFailure
	}
	po.built = true
	po.names = names
	for _, dev := range targets {
		po.logs[dev] = ""
	}
	return driver.Success
}

// compile extracts kernel entry-point names and reports the first
// validation problem, if any, as a compiler-style message.
func compile(src string) (names []string, problem string) {
	depth := 0
	for _, r := range src {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return nil, "error: unexpected '}' before any '{'"
			}
		}
	}
	if depth != 0 {
		return nil, "error: unbalanced braces at end of source"
	}
	names = scanKernelNames(src)
	if len(names) == 0 {
		return nil, "error: no __kernel declaration found"
	}
	return names, ""
}

func scanKernelNames(src string) []string {
	var names []string
	rest := src
	for {
		i := strings.Index(rest, "__kernel")
		if i < 0 {
			break
		}
		rest = rest[i+len("__kernel"):]
		j := strings.IndexByte(rest, '(')
		if j < 0 {
			break
		}
		head := strings.Fields(rest[:j])
		if len(head) >= 2 && head[len(head)-2] == "void" {
			names = append(names, head[len(head)-1])
		}
		rest = rest[j:]
	}
	return names
}

func (d *Driver) BuildLog(p driver.Program, dev driver.Device) (string, driver.Status) {
	po, ok := d.programs.get(p)
	if !ok {
		return "", driver.InvalidProgram
	}
	if _, ok := d.devices.get(dev); !ok {
		return "", driver.InvalidDevice
	}
	po.mu.Lock()
	defer po.mu.Unlock()
	log, ok := po.logs[dev]
	if !ok {
		return "", driver.InvalidDevice
	}
	return log, driver.Success
}

func (d *Driver) ReleaseProgram(p driver.Program) driver.Status {
	if _, ok := d.programs.del(p); !ok {
		return driver.InvalidProgram
	}
	return driver.Success
}

func (d *Driver) CreateKernel(p driver.Program, name string) (driver.Kernel, driver.Status) {
	po, ok := d.programs.get(p)
	if !ok {
		return 0, driver.InvalidProgram
	}
	po.mu.Lock()
	built := po.built
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
	ko := &kernelObj{name: name, fn: d.cfg.kernels[name], args: make(map[uint]kernelArg)}
	id := driver.Kernel(d.nextID())
	d.kernels.put(id, ko)
	return id, driver.Success
}

func (d *Driver) KernelNames(p driver.Program) ([]string, driver.Status) {
	po, ok := d.programs.get(p)
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
	if _, ok := d.kernels.del(k); !ok {
		return driver.InvalidKernel
	}
	return driver.Success
}

const maxArgIndex = 255

func (d *Driver) SetKernelArg(k driver.Kernel, index uint, size uintptr, ptr unsafe.Pointer) driver.Status {
	ko, ok := d.kernels.get(k)
	if !ok {
		return driver.InvalidKernel
	}
	if index > maxArgIndex {
		return driver.InvalidArgIndex
	}
	if ptr == nil {
		if size == 0 {
			return driver.InvalidArgSize
		}
		ko.setArg(index, kernelArg{local: int(size)})
		return driver.Success
	}
	if size == 0 {
		return driver.InvalidArgSize
	}
	// Argument payloads are captured at bind time, as the native layer does.
	buf := make([]byte, size)
	copy(buf, unsafe.Slice((*byte)(ptr), size))
	ko.setArg(index, kernelArg{bytes: buf})
	return driver.Success
}

func (d *Driver) SetKernelArgMem(k driver.Kernel, index uint, m driver.Mem) driver.Status {
	ko, ok := d.kernels.get(k)
	if !ok {
		return driver.InvalidKernel
	}
	if index > maxArgIndex {
		return driver.InvalidArgIndex
	}
	if _, ok := d.mems.get(m); !ok {
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

// execKernel resolves argument bindings against live memory objects and
// walks the global range. A kernel without a registered body is a no-op
// dispatch; its sizing was still validated and its event still completes.
func (d *Driver) execKernel(ko *kernelObj, args map[uint]kernelArg, r driver.NDRange) driver.Status {
	var maxIdx int = -1
	for i := range args {
		if int(i) > maxIdx {
			maxIdx = int(i)
		}
	}
	resolved := make([]Value, maxIdx+1)
	for i, a := range args {
		switch {
		case a.isMem:
			mo, ok := d.mems.get(a.mem)
			if !ok {
				return driver.InvalidMemObject
			}
			resolved[i] = Value{Data: mo.data}
		case a.local > 0:
			resolved[i] = Value{Local: a.local, Data: make([]byte, a.local)}
		default:
			resolved[i] = Value{Bytes: a.bytes}
		}
	}

	if ko.fn == nil {
		return driver.Success
	}

	var extents [3]int
	global := [3]int{1, 1, 1}
	for i := 0; i < r.Dims; i++ {
		extents[i] = int(r.Global[i])
		global[i] = int(r.Global[i])
	}
	fn := ko.fn
	parallel.ForGrid(extents, func(x, y, z int) {
		fn(Item{ID: [3]int{x, y, z}, Global: global}, resolved)
	}, d.cfg.par)
	return driver.Success
}
