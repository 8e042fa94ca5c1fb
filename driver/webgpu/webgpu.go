//go:build windows

// Copyright 2025 The Spindle Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the experimental WebGPU-backed spindle
// driver.
//
// The driver exposes one platform with one GPU device, compiles WGSL
// programs, and runs a synchronous queue: commands complete before the
// enqueue call returns and every event starts out complete. Mapping,
// out-of-order queues, user events and profiling are not expressible
// on WebGPU and fail with the matching statuses; the compute package's
// Maybe combinator degrades those queries cleanly.
package webgpu

import (
	"github.com/spindle-gpu/spindle/driver"
	internalwebgpu "github.com/spindle-gpu/spindle/internal/driver/webgpu"
)

// Driver binds the spindle driver interface to a WebGPU device.
type Driver = internalwebgpu.Driver

// Compile-time check that Driver implements the boundary.
var _ driver.Driver = (*Driver)(nil)

// New returns the WebGPU driver. The native library is not touched
// until the first call that needs it.
func New() *Driver { return internalwebgpu.New() }
