// Copyright 2025 The Spindle Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package soft provides the pure Go spindle driver.
//
// The soft driver is always available and needs no hardware: one
// platform, a configurable number of CPU devices, real FIFO command
// queues, and events with monotonic profiling timestamps. Kernels
// execute host-side through registered KernelFunc bodies, which makes
// it the reference implementation and the test bed for everything
// built on top.
//
// Example:
//
//	drv := soft.New(soft.WithKernelFunc("square", square))
//	sess, err := compute.Open(drv)
package soft

import (
	"go.uber.org/zap"

	"github.com/spindle-gpu/spindle/driver"
	internalsoft "github.com/spindle-gpu/spindle/internal/driver/soft"
)

// Driver is the pure Go software driver.
type Driver = internalsoft.Driver

// Option configures the driver at construction.
type Option = internalsoft.Option

// Item identifies one work item within a dispatch.
type Item = internalsoft.Item

// Value is one kernel argument resolved for execution.
type Value = internalsoft.Value

// KernelFunc is a host-side kernel body, called once per work item.
type KernelFunc = internalsoft.KernelFunc

// Stats is a snapshot of the driver's per-operation dispatch counters.
type Stats = internalsoft.Stats

// Compile-time check that Driver implements the boundary.
var _ driver.Driver = (*Driver)(nil)

// New constructs a soft driver.
func New(opts ...Option) *Driver { return internalsoft.New(opts...) }

// WithDevices sets the number of devices the single platform exposes.
func WithDevices(n int) Option { return internalsoft.WithDevices(n) }

// WithLogger routes driver diagnostics to l instead of discarding them.
func WithLogger(l *zap.Logger) Option { return internalsoft.WithLogger(l) }

// WithKernelFunc registers a host-side body for kernels named name.
func WithKernelFunc(name string, fn KernelFunc) Option {
	return internalsoft.WithKernelFunc(name, fn)
}
