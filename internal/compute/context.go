package compute

import (
	"unsafe"

	"github.com/spindle-gpu/spindle/driver"
)

// Context joins one or more devices of a single driver. It is the
// factory for every per-context resource: buffers, queues, programs and
// user events.
type Context struct {
	d    driver.Driver
	h    handle
	devs []*Device
}

// NewContext creates a context over the given devices. All devices must
// come from the same driver.
func NewContext(devices ...*Device) (*Context, error) {
	const op = "create context"
	if len(devices) == 0 {
		return nil, usagef(op, "need at least one device")
	}
	d := devices[0].d
	hs := make([]driver.Device, len(devices))
	for i, dev := range devices {
		if dev == nil {
			return nil, usagef(op, "device %d is nil", i)
		}
		if dev.d != d {
			return nil, usagef(op, "device %d belongs to a different driver", i)
		}
		hs[i] = dev.Handle()
	}
	h, st := d.CreateContext(hs)
	if !st.Ok() {
		return nil, statusErr("clCreateContext", st, "%d device(s)", len(devices))
	}
	c := &Context{d: d, devs: append([]*Device(nil), devices...)}
	c.h.set(uintptr(h))
	return c, nil
}

// Handle returns the native context handle, zero once released.
func (c *Context) Handle() driver.Context { return driver.Context(c.h.load()) }

// Released reports whether Release has run.
func (c *Context) Released() bool { return c.h.released() }

// Equal reports whether both wrappers currently hold the same handle.
func (c *Context) Equal(o *Context) bool { return o != nil && c.h.equal(&o.h) }

// Devices returns the devices the context was created over.
func (c *Context) Devices() []*Device { return c.devs }

// Driver returns the driver the context lives on.
func (c *Context) Driver() driver.Driver { return c.d }

// Release releases the context. Idempotent and concurrent-safe.
func (c *Context) Release() error {
	return c.h.release("context", func(v uintptr) driver.Status {
		return c.d.ReleaseContext(driver.Context(v))
	})
}

// CreateBuffer allocates a device buffer of size bytes. Flags are OR-ed
// together; when no access bit is present the buffer is read-write.
func (c *Context) CreateBuffer(size int, flags ...driver.MemFlag) (*Buffer, error) {
	return c.createBuffer(size, combineMemFlags(flags, 0), nil)
}

// CreateBufferFrom allocates a device buffer sized and initialized from
// a host region. Unless the caller picks a host-pointer mode the region
// is copied at creation.
func (c *Context) CreateBufferFrom(src Memory, flags ...driver.MemFlag) (*Buffer, error) {
	const op = "create buffer"
	if src == nil || src.Ptr() == nil || src.ByteLen() == 0 {
		return nil, usagef(op, "source region is empty")
	}
	f := combineMemFlags(flags, 0)
	if f&(driver.MemUseHostPtr|driver.MemCopyHostPtr) == 0 {
		f |= driver.MemCopyHostPtr
	}
	b, err := c.createBuffer(src.ByteLen(), f, src)
	if err != nil {
		return nil, err
	}
	if f&driver.MemUseHostPtr != 0 {
		b.ref = src
	}
	return b, nil
}

func (c *Context) createBuffer(size int, flags driver.MemFlag, src Memory) (*Buffer, error) {
	if size <= 0 {
		return nil, usagef("create buffer", "size %d, must be positive", size)
	}
	var p unsafe.Pointer
	if src != nil {
		p = src.Ptr()
	}
	h, st := c.d.CreateBuffer(c.Handle(), flags, size, p)
	if !st.Ok() {
		return nil, statusErr("clCreateBuffer", st, "size %d, flags %#x", size, uint64(flags))
	}
	b := &Buffer{d: c.d, size: size, flags: flags}
	b.h.set(uintptr(h))
	return b, nil
}

func combineMemFlags(flags []driver.MemFlag, def driver.MemFlag) driver.MemFlag {
	f := def
	for _, x := range flags {
		f |= x
	}
	const access = driver.MemReadWrite | driver.MemReadOnly | driver.MemWriteOnly
	if f&access == 0 {
		f |= driver.MemReadWrite
	}
	return f
}

// CreateQueue creates a command queue on one of the context's devices.
func (c *Context) CreateQueue(dev *Device, props ...driver.QueueProp) (*Queue, error) {
	const op = "create queue"
	if dev == nil {
		return nil, usagef(op, "device is nil")
	}
	var p driver.QueueProp
	for _, x := range props {
		p |= x
	}
	h, st := c.d.CreateQueue(c.Handle(), dev.Handle(), p)
	if !st.Ok() {
		return nil, statusErr("clCreateCommandQueue", st, "props %#x", uint64(p))
	}
	q := &Queue{d: c.d, dev: dev, props: p}
	q.h.set(uintptr(h))
	return q, nil
}

// CreateProgram creates a program from source fragments. The fragments
// are concatenated by the driver in order.
func (c *Context) CreateProgram(sources ...string) (*Program, error) {
	h, st := c.d.CreateProgram(c.Handle(), sources)
	if !st.Ok() {
		return nil, statusErr("clCreateProgramWithSource", st, "%d fragment(s)", len(sources))
	}
	p := &Program{d: c.d, devs: c.devs}
	p.h.set(uintptr(h))
	return p, nil
}

// CreateUserEvent creates a host-controlled event in the submitted
// state. Signal it with Event.Complete or Event.Abort.
func (c *Context) CreateUserEvent() (*Event, error) {
	h, st := c.d.CreateUserEvent(c.Handle())
	if !st.Ok() {
		return nil, statusErr("clCreateUserEvent", st, "")
	}
	e := &Event{d: c.d, user: true}
	e.claimed.Store(true)
	e.h.set(uintptr(h))
	return e, nil
}
