// Copyright 2025 The Spindle Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package compute

import "github.com/spindle-gpu/spindle/internal/compute"

// Memory is a host region a queue can read from or write to.
type Memory = compute.Memory

// Scalar constrains the element types a HostMem can view.
type Scalar = compute.Scalar

// HostMem is pinned-style host memory with typed views.
type HostMem = compute.HostMem

// MappedMem is a device region mapped into host memory; it retires at
// unmap.
type MappedMem = compute.MappedMem

// NewHostMem allocates n zeroed bytes of host memory.
func NewHostMem(n int) *HostMem { return compute.NewHostMem(n) }

// HostOf wraps a typed slice as host memory without copying.
func HostOf[T Scalar](s []T) *HostMem { return compute.HostOf(s) }
