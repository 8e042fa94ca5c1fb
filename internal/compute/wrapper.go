package compute

import (
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spindle-gpu/spindle/driver"
)

// Releaser frees a device resource. Release is idempotent and safe to
// call from multiple goroutines: the first call performs exactly one
// native release, every later call returns nil. A failed native release
// still leaves the wrapper cleared, so teardown never wedges on a
// half-dead resource.
type Releaser interface {
	Release() error
}

// handle is the shared wrapper slot. The live native handle is swapped
// out atomically on release, leaving zero as the stale sentinel.
type handle struct {
	v atomic.Uintptr
}

func (h *handle) set(v uintptr)  { h.v.Store(v) }
func (h *handle) load() uintptr  { return h.v.Load() }
func (h *handle) released() bool { return h.v.Load() == 0 }
func (h *handle) take() uintptr  { return h.v.Swap(0) }
func (h *handle) cas(old, v uintptr) bool {
	return h.v.CompareAndSwap(old, v)
}
func (h *handle) equal(o *handle) bool {
	return o != nil && h.v.Load() == o.v.Load()
}

// release clears the slot and runs the native release exactly once.
// Failures are logged and returned, never retried.
func (h *handle) release(what string, fn func(uintptr) driver.Status) error {
	v := h.take()
	if v == 0 {
		return nil
	}
	if st := fn(v); !st.Ok() {
		logger().Warn("release failed",
			zap.String("resource", what),
			zap.String("status", st.String()))
		return statusErr("release "+what, st, "")
	}
	return nil
}

// ReleaseAll releases everything it is given, last first, and keeps
// going past failures. The returned error joins every failure; nil
// entries are skipped.
func ReleaseAll(rs ...Releaser) error {
	var errs []error
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == nil {
			continue
		}
		if err := rs[i].Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Scope collects resources as they are created and releases them in
// reverse order. Resources promoted with Keep survive Close, which
// makes the early-return paths of a multi-step setup safe:
//
//	s := compute.NewScope()
//	defer s.Close()
//	buf, err := ctx.CreateBuffer(n)
//	if err != nil {
//		return nil, err
//	}
//	s.Add(buf)
//	...
//	s.Keep(buf)
//	return buf, nil
type Scope struct {
	rs []Releaser
}

// NewScope returns an empty scope.
func NewScope() *Scope { return &Scope{} }

// Add registers r for release at Close. Nil is ignored.
func (s *Scope) Add(r Releaser) {
	if r != nil {
		s.rs = append(s.rs, r)
	}
}

// Keep removes r from the scope so Close will not touch it.
func (s *Scope) Keep(r Releaser) {
	for i := len(s.rs) - 1; i >= 0; i-- {
		if s.rs[i] == r {
			s.rs = append(s.rs[:i], s.rs[i+1:]...)
			break
		}
	}
}

// KeepAll empties the scope without releasing anything.
func (s *Scope) KeepAll() {
	s.rs = nil
}

// Close releases every still-held resource in reverse registration
// order. The scope is empty afterwards and may be reused.
func (s *Scope) Close() error {
	rs := s.rs
	s.rs = nil
	return ReleaseAll(rs...)
}

// WithRelease runs fn inside a fresh scope and closes the scope when fn
// returns or panics. fn decides what survives by calling Keep.
func WithRelease(fn func(s *Scope) error) error {
	s := NewScope()
	defer func() {
		if err := s.Close(); err != nil {
			logger().Warn("scope close failed", zap.Error(err))
		}
	}()
	return fn(s)
}

// Bind adds v to s when err is nil and passes both through, so a
// wrapper-producing call lands in a scope in one line:
//
//	buf, err := compute.Bind(s, ctx.CreateBuffer(n))
//
// On error nothing is added; earlier bindings stay with the scope.
func Bind[T Releaser](s *Scope, v T, err error) (T, error) {
	if err == nil {
		s.Add(v)
	}
	return v, err
}

// BindAll is Bind for calls that produce a slice of wrappers.
func BindAll[T Releaser](s *Scope, vs []T, err error) ([]T, error) {
	if err == nil {
		for _, v := range vs {
			s.Add(v)
		}
	}
	return vs, err
}
