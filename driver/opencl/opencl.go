//go:build linux || darwin

// Copyright 2025 The Spindle Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package opencl provides the spindle driver for the system OpenCL
// runtime.
//
// The runtime library is loaded at first use, so binaries build and
// start on machines without OpenCL installed. Use Available (or
// LoadError for the reason) before committing to the driver:
//
//	drv := opencl.New()
//	if !drv.Available() {
//	    drv = soft.New()
//	}
package opencl

import (
	"github.com/spindle-gpu/spindle/driver"
	internalopencl "github.com/spindle-gpu/spindle/internal/driver/opencl"
)

// Driver binds the spindle driver interface to the system OpenCL
// runtime.
type Driver = internalopencl.Driver

// Compile-time check that Driver implements the boundary.
var _ driver.Driver = (*Driver)(nil)

// New returns the OpenCL driver. The runtime library is not touched
// until the first call that needs it.
func New() *Driver { return internalopencl.New() }
