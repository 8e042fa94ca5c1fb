package compute

import (
	"unsafe"

	"github.com/spindle-gpu/spindle/driver"
)

// Buffer is a device-resident memory object. It satisfies Memory with a
// nil pointer: transfers and kernel arguments address it by handle, not
// by host address.
type Buffer struct {
	d     driver.Driver
	h     handle
	size  int
	flags driver.MemFlag
	ref   any // keeps a MemUseHostPtr source region alive
}

// Flags returns the allocation flags the buffer was created with.
func (b *Buffer) Flags() driver.MemFlag { return b.flags }

// Handle returns the native memory handle, zero once released.
func (b *Buffer) Handle() driver.Mem { return driver.Mem(b.h.load()) }

// Released reports whether Release has run.
func (b *Buffer) Released() bool { return b.h.released() }

// Equal reports whether both wrappers currently hold the same handle.
func (b *Buffer) Equal(o *Buffer) bool { return o != nil && b.h.equal(&o.h) }

// Size returns the buffer capacity in bytes.
func (b *Buffer) Size() int { return b.size }

// ByteLen returns the buffer capacity in bytes.
func (b *Buffer) ByteLen() int { return b.size }

// Ptr returns nil: device memory has no host address until mapped.
func (b *Buffer) Ptr() unsafe.Pointer { return nil }

// Release releases the buffer. Idempotent and concurrent-safe.
func (b *Buffer) Release() error {
	err := b.h.release("buffer", func(v uintptr) driver.Status {
		return b.d.ReleaseMem(driver.Mem(v))
	})
	b.ref = nil
	return err
}
