package compute

import (
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-gpu/spindle/internal/driver/soft"
)

// buildKernel compiles a one-kernel program and returns the kernel,
// both released with the test.
func buildKernel(t *testing.T, s *Session, src, name string) *Kernel {
	t.Helper()
	prog, err := s.Context.CreateProgram(src)
	require.NoError(t, err)
	t.Cleanup(func() { _ = prog.Release() })
	require.NoError(t, prog.Build())
	k, err := prog.CreateKernel(name)
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Release() })
	return k
}

func TestSetArgBindsEachKind(t *testing.T) {
	got := make(chan []soft.Value, 1)
	_, s := rig(t, []soft.Option{soft.WithKernelFunc("probe", func(it soft.Item, args []soft.Value) {
		if it.ID == [3]int{0, 0, 0} {
			out := make([]soft.Value, len(args))
			copy(out, args)
			got <- out
		}
	})})
	k := buildKernel(t, s,
		"__kernel void probe(__global float* data, float4 coeff, __local float* scratch) { }",
		"probe")

	buf := mkbuf(t, s, 16)
	require.NoError(t, k.SetArg(0, buf))
	require.NoError(t, k.SetArg(1, []float32{1, 2, 3, 4}))
	require.NoError(t, k.SetArg(2, 512))

	require.NoError(t, s.Queue.EnqueueKernel(k, Work(1), nil, nil))
	require.NoError(t, s.Queue.Finish())

	var vals []soft.Value
	select {
	case vals = <-got:
	case <-time.After(time.Second):
		t.Fatal("kernel body never ran")
	}
	require.Len(t, vals, 3)

	assert.Len(t, vals[0].Data, 16, "a buffer arg resolves to device storage")
	assert.Nil(t, vals[0].Bytes)

	require.Len(t, vals[1].Bytes, 16, "a slice arg is passed by value, len times width")
	fs := unsafe.Slice((*float32)(unsafe.Pointer(&vals[1].Bytes[0])), 4)
	assert.Equal(t, []float32{1, 2, 3, 4}, fs)

	assert.Equal(t, 512, vals[2].Local, "an integer arg reserves local memory")
	assert.Len(t, vals[2].Data, 512)
}

func TestBufferArgAliasesDeviceStorage(t *testing.T) {
	_, s := rig(t, []soft.Option{soft.WithKernelFunc("stamp", func(it soft.Item, args []soft.Value) {
		args[0].Data[it.ID[0]] = byte(it.ID[0] + 1)
	})})
	k := buildKernel(t, s, "__kernel void stamp(__global uchar* data) { }", "stamp")

	buf := mkbuf(t, s, 4)
	require.NoError(t, k.SetArgs(buf))
	require.NoError(t, s.Queue.EnqueueKernel(k, Work(4), nil, nil))

	got := make([]byte, 4)
	require.NoError(t, s.Queue.Read(buf, HostOf(got)))
	assert.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestSetArgHostRegion(t *testing.T) {
	got := make(chan []soft.Value, 1)
	_, s := rig(t, []soft.Option{soft.WithKernelFunc("take", func(it soft.Item, args []soft.Value) {
		if it.ID == [3]int{0, 0, 0} {
			out := make([]soft.Value, len(args))
			copy(out, args)
			got <- out
		}
	})})
	k := buildKernel(t, s, "__kernel void take(int2 pair) { }", "take")

	host := HostOf([]int32{-3, 7})
	require.NoError(t, k.SetArg(0, host))
	require.NoError(t, s.Queue.EnqueueKernel(k, Work(1), nil, nil))
	require.NoError(t, s.Queue.Finish())

	select {
	case vals := <-got:
		require.Len(t, vals, 1)
		require.Len(t, vals[0].Bytes, 8)
		is := unsafe.Slice((*int32)(unsafe.Pointer(&vals[0].Bytes[0])), 2)
		assert.Equal(t, []int32{-3, 7}, is)
	case <-time.After(time.Second):
		t.Fatal("kernel body never ran")
	}
}

func TestSetArgRejections(t *testing.T) {
	_, s := rig(t, nil)
	k := buildKernel(t, s, "__kernel void guard(int a) { }", "guard")

	tests := []struct {
		name string
		arg  any
		frag string
	}{
		{"nil", nil, "nil argument"},
		{"nil buffer", (*Buffer)(nil), "nil buffer"},
		{"unsupported string", "wat", "unsupported type string"},
		{"unsupported uint", uint(4), "unsupported type uint"},
		{"empty slice", []float32{}, "empty []float32"},
		{"negative local size", -1, "negative"},
		{"empty host region", NewHostMem(0), "empty host region"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := k.SetArg(3, tt.arg)
			require.Error(t, err)
			var ue *UsageError
			require.ErrorAs(t, err, &ue)
			assert.Contains(t, err.Error(), tt.frag)
			assert.Contains(t, err.Error(), `kernel "guard" arg 3`)
		})
	}
}

func TestSetArgsStopsAtFirstFailure(t *testing.T) {
	got := make(chan []soft.Value, 1)
	_, s := rig(t, []soft.Option{soft.WithKernelFunc("partial", func(it soft.Item, args []soft.Value) {
		if it.ID == [3]int{0, 0, 0} {
			out := make([]soft.Value, len(args))
			copy(out, args)
			got <- out
		}
	})})
	k := buildKernel(t, s, "__kernel void partial(__local float* a, int b, int c) { }", "partial")

	err := k.SetArgs(64, struct{}{}, 128)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arg 1")

	// The first binding landed; nothing past the failure ran.
	require.NoError(t, s.Queue.EnqueueKernel(k, Work(1), nil, nil))
	require.NoError(t, s.Queue.Finish())

	select {
	case vals := <-got:
		require.Len(t, vals, 1)
		assert.Equal(t, 64, vals[0].Local)
	case <-time.After(time.Second):
		t.Fatal("kernel body never ran")
	}
}
