// Copyright 2025 The Spindle Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package compute provides the host-side programming surface of spindle.
//
// # Overview
//
// Spindle manages parallel-compute devices through an OpenCL-shaped
// object model. This package wraps every native handle in a small typed
// object whose lifetime is explicit and whose release is idempotent and
// safe under concurrency:
//   - Platform, Device: enumeration and capability introspection
//   - Context: the owner of queues, buffers, programs and events
//   - Queue: command submission with wait lists and completion events
//   - Program, Kernel: source compilation and entry-point dispatch
//   - Event: completion tracking, callbacks and profiling counters
//
// # Basic Usage
//
//	import (
//	    "github.com/spindle-gpu/spindle/compute"
//	    "github.com/spindle-gpu/spindle/driver/soft"
//	)
//
//	func main() {
//	    sess, err := compute.Open(soft.New())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer sess.Release()
//
//	    buf, err := sess.Context.CreateBuffer(1 << 20)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer buf.Release()
//
//	    host := compute.HostOf([]float32{1, 2, 3, 4})
//	    if err := sess.Queue.Write(buf, host); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Lifecycle
//
// Every wrapper exposes Release, which frees the native object exactly
// once no matter how many times or from how many goroutines it is
// called, and never fails on repetition. Scope and WithRelease tie a
// group of objects together so one call tears them down in reverse
// creation order:
//
//	err := compute.WithRelease(func(s *compute.Scope) error {
//	    buf, err := ctx.CreateBuffer(n)
//	    if err != nil {
//	        return err
//	    }
//	    s.Add(buf) // released when WithRelease returns
//	    return work(buf)
//	})
//
// # Queues and Chains
//
// Queue methods enqueue single commands and return an *Event per
// command. Chain runs a sequence and latches the first failure, so a
// pipeline reads as a pipeline:
//
//	err := q.Chain().
//	    Write(in, host).
//	    Kernel(k, compute.Work(n).WithLocal(256)).
//	    Read(out, result).
//	    Finish()
//
// # Errors
//
// Failures surface as *StatusError (a native result code with the
// failing operation), *UsageError (host-side misuse caught before the
// driver is involved), or *BuildError (program compilation, carrying
// per-device build logs). ErrReleased marks use after release. The
// Maybe combinator collapses optional queries so partial driver
// surfaces degrade instead of aborting.
//
// # Drivers
//
// The package runs against any driver.Driver. Three ship with spindle:
// driver/soft (pure Go, always available), driver/opencl (system
// OpenCL runtime, linux and darwin) and driver/webgpu (experimental,
// windows).
package compute
