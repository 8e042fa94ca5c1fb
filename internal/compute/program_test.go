package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-gpu/spindle/driver"
)

func TestBuildFailureCarriesLogs(t *testing.T) {
	_, s := rig(t, nil)

	prog, err := s.Context.CreateProgram("__kernel void broken(int n) {")
	require.NoError(t, err)
	t.Cleanup(func() { _ = prog.Release() })

	err = prog.Build()
	require.Error(t, err)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, driver.BuildProgramFailure, be.Status)
	require.Len(t, be.Logs, 1)
	assert.Equal(t, "Spindle Soft Device 0", be.Logs[0].Device)
	assert.Contains(t, be.Logs[0].Log, "unbalanced braces")
	assert.Contains(t, err.Error(), "program build failed")
	assert.Contains(t, err.Error(), "[Spindle Soft Device 0]")

	// The transcript stays queryable after the failed attempt.
	log, err := prog.BuildLog(s.Device)
	require.NoError(t, err)
	assert.Contains(t, log, "unbalanced braces")

	_, err = prog.CreateKernel("broken")
	assert.True(t, IsStatus(err, driver.InvalidProgramExecutable), "got %v", err)
}

func TestKernelsPerEntryPoint(t *testing.T) {
	_, s := rig(t, nil)

	prog, err := s.Context.CreateProgram(
		"__kernel void scale(__global float* v, float k) { }",
		"__kernel void shift(__global float* v, float k) { }",
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = prog.Release() })
	require.NoError(t, prog.Build())

	names, err := prog.KernelNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"scale", "shift"}, names)

	ks, err := prog.Kernels()
	require.NoError(t, err)
	require.Len(t, ks, 2)
	assert.Equal(t, "scale", ks[0].Name())
	assert.Equal(t, "shift", ks[1].Name())
	rs := make([]Releaser, len(ks))
	for i, k := range ks {
		rs[i] = k
	}
	require.NoError(t, ReleaseAll(rs...))

	_, err = prog.CreateKernel("absent")
	assert.True(t, IsStatus(err, driver.InvalidKernelName), "got %v", err)
	assert.Contains(t, err.Error(), `kernel "absent"`)
}

func TestBuildValidation(t *testing.T) {
	_, s := rig(t, nil)

	prog, err := s.Context.CreateProgram("__kernel void ok(int n) { }")
	require.NoError(t, err)
	t.Cleanup(func() { _ = prog.Release() })

	err = prog.Build(nil)
	var ue *UsageError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, err.Error(), "device 0 is nil")

	_, err = prog.KernelNames()
	assert.True(t, IsStatus(err, driver.InvalidProgramExecutable), "unbuilt program has no entry points, got %v", err)

	require.NoError(t, prog.Build(s.Device))
	log, err := prog.BuildLog(s.Device)
	require.NoError(t, err)
	assert.Empty(t, log, "a clean build leaves no transcript")

	_, err = prog.BuildLog(nil)
	require.ErrorAs(t, err, &ue)

	_, err = s.Context.CreateProgram()
	assert.True(t, IsStatus(err, driver.InvalidValue), "got %v", err)
}
