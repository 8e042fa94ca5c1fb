// Copyright 2025 The Spindle Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package compute

import (
	"github.com/spindle-gpu/spindle/driver"
	"github.com/spindle-gpu/spindle/internal/compute"
)

// Type aliases for the public API.

// Platform wraps one enumerated compute platform.
type Platform = compute.Platform

// Device wraps one compute device and caches its capability summary.
type Device = compute.Device

// Context owns queues, buffers, programs and events created under it.
type Context = compute.Context

// Queue submits commands to one device and hands back completion
// events.
type Queue = compute.Queue

// Buffer is a device-resident memory object.
type Buffer = compute.Buffer

// Program is compiled compute source; kernels are its entry points.
type Program = compute.Program

// Kernel is one dispatchable entry point of a built program.
type Kernel = compute.Kernel

// Event tracks completion of one command, or carries a host-side
// signal when created as a user event.
type Event = compute.Event

// Notification is what an event callback delivers.
type Notification = compute.Notification

// Profile is the four profiling counters of a completed command.
type Profile = compute.Profile

// Chain is a fluent command sequence that latches its first failure.
type Chain = compute.Chain

// WorkSize is a validated dispatch geometry.
type WorkSize = compute.WorkSize

// Session bundles the default platform, device, context and queue.
type Session = compute.Session

// SessionOption configures Open.
type SessionOption = compute.SessionOption

// Releaser frees a device resource; every wrapper in this package
// implements it.
type Releaser = compute.Releaser

// Scope collects resources and releases them in reverse order.
type Scope = compute.Scope

// BufferPool recycles device buffers by size class.
type BufferPool = compute.BufferPool

// BufferSize is a pool size class.
type BufferSize = compute.BufferSize

// Pool size classes.
const (
	SmallBuffer  BufferSize = compute.SmallBuffer
	MediumBuffer BufferSize = compute.MediumBuffer
	LargeBuffer  BufferSize = compute.LargeBuffer
)

// Platforms enumerates the driver's platforms.
func Platforms(d driver.Driver) ([]*Platform, error) {
	return compute.Platforms(d)
}

// NewContext creates a context joining the given devices.
func NewContext(devices ...*Device) (*Context, error) {
	return compute.NewContext(devices...)
}

// Open resolves platform, device, context and queue in one call.
func Open(d driver.Driver, opts ...SessionOption) (*Session, error) {
	return compute.Open(d, opts...)
}

// WithPlatformIndex selects the platform by enumeration index.
func WithPlatformIndex(i int) SessionOption { return compute.WithPlatformIndex(i) }

// WithDeviceType restricts device selection to the given type mask.
func WithDeviceType(t driver.DeviceType) SessionOption { return compute.WithDeviceType(t) }

// WithDeviceIndex selects the device by enumeration index.
func WithDeviceIndex(i int) SessionOption { return compute.WithDeviceIndex(i) }

// WithProfiling creates the session queue with profiling enabled.
func WithProfiling() SessionOption { return compute.WithProfiling() }

// WithOutOfOrder creates the session queue with out-of-order execution.
func WithOutOfOrder() SessionOption { return compute.WithOutOfOrder() }

// Work builds a dispatch geometry from global extents.
func Work(global ...int) WorkSize { return compute.Work(global...) }

// CountWorkGroups returns how many groups of size local cover n items:
// the ceiling division while local < n, and a single group otherwise.
func CountWorkGroups(local, n int) int { return compute.CountWorkGroups(local, n) }

// NewEvent returns an unattached event for use as a command's
// completion slot.
func NewEvent() *Event { return compute.NewEvent() }

// WaitAll blocks until every event completes.
func WaitAll(events ...*Event) error { return compute.WaitAll(events...) }

// DroppedNotifications reports callbacks discarded because their
// channel was full.
func DroppedNotifications() uint64 { return compute.DroppedNotifications() }

// NewScope returns an empty scope.
func NewScope() *Scope { return compute.NewScope() }

// WithRelease runs fn inside a fresh scope, closing it on return or
// panic.
func WithRelease(fn func(s *Scope) error) error { return compute.WithRelease(fn) }

// ReleaseAll releases everything it is given, last first.
func ReleaseAll(rs ...Releaser) error { return compute.ReleaseAll(rs...) }

// Bind adds v to s when err is nil and passes both through unchanged.
func Bind[T Releaser](s *Scope, v T, err error) (T, error) { return compute.Bind(s, v, err) }

// BindAll is Bind for calls that produce a slice of wrappers.
func BindAll[T Releaser](s *Scope, vs []T, err error) ([]T, error) {
	return compute.BindAll(s, vs, err)
}

// NewBufferPool returns an empty pool allocating from ctx.
func NewBufferPool(ctx *Context) *BufferPool { return compute.NewBufferPool(ctx) }

// TypeString renders a device type mask for humans.
func TypeString(t driver.DeviceType) string { return compute.TypeString(t) }
