package compute

import (
	"fmt"
	"unsafe"

	"github.com/spindle-gpu/spindle/driver"
)

// Kernel is one entry point of a built program. Argument bindings are
// kernel state: they persist across dispatches until rebound, and a
// dispatch snapshots them at enqueue time.
type Kernel struct {
	d    driver.Driver
	h    handle
	name string
}

// Name returns the kernel entry-point name.
func (k *Kernel) Name() string { return k.name }

// Handle returns the native kernel handle, zero once released.
func (k *Kernel) Handle() driver.Kernel { return driver.Kernel(k.h.load()) }

// Released reports whether Release has run.
func (k *Kernel) Released() bool { return k.h.released() }

// Equal reports whether both wrappers currently hold the same handle.
func (k *Kernel) Equal(o *Kernel) bool { return o != nil && k.h.equal(&o.h) }

// Release releases the kernel. Idempotent and concurrent-safe.
func (k *Kernel) Release() error {
	return k.h.release("kernel", func(v uintptr) driver.Status {
		return k.d.ReleaseKernel(driver.Kernel(v))
	})
}

// SetArg binds one kernel argument. The accepted kinds are:
//
//   - *Buffer: bound by device memory handle.
//   - *MappedMem, *HostMem, Memory: bound by value from the host
//     region's bytes.
//   - []byte, []int16, []int32, []int64, []uint16, []uint32, []uint64,
//     []float32, []float64: bound by value, len(s) elements wide. A
//     one-element slice is how a scalar is passed by value.
//   - int, int8, int16, int32, int64: reserves that many bytes of
//     device local memory for the argument.
//
// Anything else is rejected with a UsageError naming the kernel, the
// index and the offending type.
func (k *Kernel) SetArg(index uint, v any) error {
	const op = "set kernel arg"
	h := k.Handle()
	var (
		st   driver.Status
		desc string
	)
	switch a := v.(type) {
	case nil:
		return usagef(op, "kernel %q arg %d: nil argument", k.name, index)

	case *Buffer:
		if a == nil {
			return usagef(op, "kernel %q arg %d: nil buffer", k.name, index)
		}
		st = k.d.SetKernelArgMem(h, index, a.Handle())
		desc = fmt.Sprintf("buffer of %d bytes", a.Size())

	case *MappedMem:
		p := a.Ptr()
		if p == nil {
			return usageWrap(op, ErrReleased)
		}
		st = k.d.SetKernelArg(h, index, uintptr(a.ByteLen()), p)
		desc = fmt.Sprintf("mapped region of %d bytes", a.ByteLen())

	case *HostMem:
		if a.Ptr() == nil {
			return usagef(op, "kernel %q arg %d: empty host region", k.name, index)
		}
		st = k.d.SetKernelArg(h, index, uintptr(a.ByteLen()), a.Ptr())
		desc = fmt.Sprintf("host region of %d bytes", a.ByteLen())

	case int:
		return k.setLocal(index, int64(a))
	case int8:
		return k.setLocal(index, int64(a))
	case int16:
		return k.setLocal(index, int64(a))
	case int32:
		return k.setLocal(index, int64(a))
	case int64:
		return k.setLocal(index, a)

	case []byte:
		return setSlice(k, index, a)
	case []int16:
		return setSlice(k, index, a)
	case []int32:
		return setSlice(k, index, a)
	case []int64:
		return setSlice(k, index, a)
	case []uint16:
		return setSlice(k, index, a)
	case []uint32:
		return setSlice(k, index, a)
	case []uint64:
		return setSlice(k, index, a)
	case []float32:
		return setSlice(k, index, a)
	case []float64:
		return setSlice(k, index, a)

	case Memory:
		if a.Ptr() == nil {
			return usagef(op, "kernel %q arg %d: memory region has no host address", k.name, index)
		}
		st = k.d.SetKernelArg(h, index, uintptr(a.ByteLen()), a.Ptr())
		desc = fmt.Sprintf("memory region of %d bytes", a.ByteLen())

	default:
		return usagef(op,
			"kernel %q arg %d: unsupported type %T; pass a *Buffer, a host region, a typed slice, or a signed integer local-memory size",
			k.name, index, v)
	}
	if !st.Ok() {
		return statusErr("clSetKernelArg", st, "kernel %q arg %d (%s)", k.name, index, desc)
	}
	return nil
}

// setLocal reserves n bytes of device local memory for the argument.
func (k *Kernel) setLocal(index uint, n int64) error {
	if n < 0 {
		return usagef("set kernel arg",
			"kernel %q arg %d: local-memory size %d is negative", k.name, index, n)
	}
	st := k.d.SetKernelArg(k.Handle(), index, uintptr(n), nil)
	if !st.Ok() {
		return statusErr("clSetKernelArg", st, "kernel %q arg %d (%d bytes local)", k.name, index, n)
	}
	return nil
}

// setSlice binds the slice contents by value: base pointer, element
// count times element width.
func setSlice[T Scalar](k *Kernel, index uint, s []T) error {
	if len(s) == 0 {
		return usagef("set kernel arg",
			"kernel %q arg %d: empty %T", k.name, index, s)
	}
	var t T
	size := uintptr(len(s)) * unsafe.Sizeof(t)
	st := k.d.SetKernelArg(k.Handle(), index, size, unsafe.Pointer(unsafe.SliceData(s)))
	if !st.Ok() {
		return statusErr("clSetKernelArg", st,
			"kernel %q arg %d (%T of %d bytes)", k.name, index, s, size)
	}
	return nil
}

// SetArgs binds arguments 0..len(vs)-1 in order, stopping at the first
// failure.
func (k *Kernel) SetArgs(vs ...any) error {
	for i, v := range vs {
		if err := k.SetArg(uint(i), v); err != nil {
			return err
		}
	}
	return nil
}
