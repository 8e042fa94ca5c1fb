// Copyright 2025 The Spindle Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package compute_test

import (
	"testing"

	"github.com/spindle-gpu/spindle/compute"
	"github.com/spindle-gpu/spindle/driver"
	"github.com/spindle-gpu/spindle/driver/soft"
)

// TestDriverInterface verifies the soft driver satisfies the driver
// boundary the package is built over.
func TestDriverInterface(_ *testing.T) {
	var _ driver.Driver = (*soft.Driver)(nil)
}

// TestSessionRoundTrip drives the public API end to end: open a
// session, build a kernel, dispatch it over a buffer, and read the
// result back.
func TestSessionRoundTrip(t *testing.T) {
	drv := soft.New(soft.WithKernelFunc("brighten", func(it soft.Item, args []soft.Value) {
		args[0].Data[it.ID[0]] += args[1].Bytes[0]
	}))
	sess, err := compute.Open(drv)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = sess.Release() }()

	prog, err := sess.Context.CreateProgram("__kernel void brighten(__global uchar* img, uchar delta) { }")
	if err != nil {
		t.Fatalf("CreateProgram failed: %v", err)
	}
	defer func() { _ = prog.Release() }()
	if err := prog.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	k, err := prog.CreateKernel("brighten")
	if err != nil {
		t.Fatalf("CreateKernel failed: %v", err)
	}
	defer func() { _ = k.Release() }()

	pixels := []byte{0, 10, 20, 30, 40, 50, 60, 70}
	buf, err := sess.Context.CreateBufferFrom(compute.HostOf(pixels))
	if err != nil {
		t.Fatalf("CreateBufferFrom failed: %v", err)
	}
	defer func() { _ = buf.Release() }()

	if err := k.SetArgs(buf, []byte{5}); err != nil {
		t.Fatalf("SetArgs failed: %v", err)
	}
	done := compute.NewEvent()
	if err := sess.Queue.EnqueueKernel(k, compute.Work(len(pixels)), nil, done); err != nil {
		t.Fatalf("EnqueueKernel failed: %v", err)
	}
	if err := done.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	defer func() { _ = done.Release() }()

	got := compute.NewHostMem(len(pixels))
	if err := sess.Queue.Read(buf, got); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	for i, b := range got.Bytes() {
		if want := pixels[i] + 5; b != want {
			t.Errorf("pixel %d = %d, want %d", i, b, want)
		}
	}

	// A transfer past the end of the buffer surfaces the native code.
	err = sess.Queue.Read(buf, compute.NewHostMem(64))
	if !compute.IsStatus(err, driver.InvalidValue) {
		t.Errorf("oversized Read error = %v, want CL_INVALID_VALUE", err)
	}
}

// TestScopeRelease verifies scoped cleanup through the public surface.
func TestScopeRelease(t *testing.T) {
	drv := soft.New()
	sess, err := compute.Open(drv)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = sess.Release() }()

	var kept *compute.Buffer
	err = compute.WithRelease(func(s *compute.Scope) error {
		scratch, err := sess.Context.CreateBuffer(256)
		if err != nil {
			return err
		}
		s.Add(scratch)

		b, err := sess.Context.CreateBuffer(1024)
		if err != nil {
			return err
		}
		s.Add(b)
		s.Keep(b)
		kept = b
		return nil
	})
	if err != nil {
		t.Fatalf("WithRelease failed: %v", err)
	}
	if kept.Released() {
		t.Error("kept buffer was released with the scope")
	}
	if err := kept.Release(); err != nil {
		t.Errorf("Release failed: %v", err)
	}
}

// TestWorkSizeHelpers exercises the dispatch-geometry helpers.
func TestWorkSizeHelpers(t *testing.T) {
	ws := compute.Work(1024, 8).WithLocal(256, 1)
	if got := ws.String(); got != "global [1024 8], local [256 1]" {
		t.Errorf("String() = %q", got)
	}
	if err := ws.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	if err := compute.Work().Validate(); err == nil {
		t.Error("Validate() accepted zero dimensions")
	}
	if got := compute.CountWorkGroups(256, 1000); got != 4 {
		t.Errorf("CountWorkGroups(256, 1000) = %d, want 4", got)
	}
	if got := compute.TypeString(driver.DeviceCPU | driver.DeviceGPU); got != "cpu|gpu" {
		t.Errorf("TypeString = %q, want cpu|gpu", got)
	}
}
