package compute

import (
	"sync/atomic"
	"unsafe"
)

// Memory is a contiguous region that transfers can read from or write
// into. Host regions expose their base pointer; device buffers report a
// nil pointer and are addressed by handle instead.
type Memory interface {
	// ByteLen is the region size in bytes.
	ByteLen() int
	// Ptr is the base address for host regions, nil for device memory.
	Ptr() unsafe.Pointer
}

// Scalar is the set of element types host regions can be viewed as.
type Scalar interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// HostMem is pinned-for-Go host memory usable on both ends of a
// transfer. The region either owns its backing array (NewHostMem) or
// aliases a caller slice (HostOf); refs keeps aliased backing arrays
// reachable for as long as the region lives.
type HostMem struct {
	p   unsafe.Pointer
	n   int
	ref any
}

// NewHostMem allocates a zeroed host region of n bytes.
func NewHostMem(n int) *HostMem {
	if n <= 0 {
		return &HostMem{}
	}
	b := make([]byte, n)
	return &HostMem{p: unsafe.Pointer(&b[0]), n: n, ref: b}
}

// HostOf wraps an existing slice as a host region without copying.
// Writes through the region are visible in s and vice versa.
func HostOf[T Scalar](s []T) *HostMem {
	if len(s) == 0 {
		return &HostMem{}
	}
	var t T
	return &HostMem{
		p:   unsafe.Pointer(unsafe.SliceData(s)),
		n:   len(s) * int(unsafe.Sizeof(t)),
		ref: s,
	}
}

// ByteLen returns the region size in bytes.
func (h *HostMem) ByteLen() int { return h.n }

// Ptr returns the base address of the region, nil when empty.
func (h *HostMem) Ptr() unsafe.Pointer { return h.p }

// Bytes views the region as a byte slice.
func (h *HostMem) Bytes() []byte { return view[byte](h) }

// Int32s views the region as int32 elements.
func (h *HostMem) Int32s() []int32 { return view[int32](h) }

// Int64s views the region as int64 elements.
func (h *HostMem) Int64s() []int64 { return view[int64](h) }

// Uint32s views the region as uint32 elements.
func (h *HostMem) Uint32s() []uint32 { return view[uint32](h) }

// Float32s views the region as float32 elements.
func (h *HostMem) Float32s() []float32 { return view[float32](h) }

// Float64s views the region as float64 elements.
func (h *HostMem) Float64s() []float64 { return view[float64](h) }

// view reinterprets the region as a slice of T, truncating any tail
// bytes that do not fill a whole element.
func view[T Scalar](h *HostMem) []T {
	if h.p == nil {
		return nil
	}
	var t T
	return unsafe.Slice((*T)(h.p), h.n/int(unsafe.Sizeof(t)))
}

// MappedMem is a buffer region mapped into host memory by EnqueueMap.
// The view stays valid until the matching unmap is enqueued; after that
// every accessor reports ErrReleased via a nil view.
type MappedMem struct {
	buf      *Buffer
	p        unsafe.Pointer
	n        int
	offset   uint64
	unmapped atomic.Bool
}

// Buffer returns the buffer this mapping views.
func (m *MappedMem) Buffer() *Buffer { return m.buf }

// Offset returns the byte offset of the mapping within its buffer.
func (m *MappedMem) Offset() uint64 { return m.offset }

// ByteLen returns the mapped size in bytes, 0 once unmapped.
func (m *MappedMem) ByteLen() int {
	if m.unmapped.Load() {
		return 0
	}
	return m.n
}

// Ptr returns the mapped base address, nil once unmapped.
func (m *MappedMem) Ptr() unsafe.Pointer {
	if m.unmapped.Load() {
		return nil
	}
	return m.p
}

// Bytes views the mapped region. It returns an error wrapping
// ErrReleased once the region has been unmapped.
func (m *MappedMem) Bytes() ([]byte, error) {
	if m.unmapped.Load() {
		return nil, usageWrap("mapped bytes", ErrReleased)
	}
	return unsafe.Slice((*byte)(m.p), m.n), nil
}

// retire marks the mapping unusable. It reports whether this call was
// the one that retired it.
func (m *MappedMem) retire() bool {
	return m.unmapped.CompareAndSwap(false, true)
}
