package soft

import (
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-gpu/spindle/driver"
)

// rig builds a driver with one context and one queue.
func rig(t *testing.T, opts ...Option) (*Driver, driver.Context, driver.Queue, driver.Device) {
	t.Helper()
	d := New(opts...)
	platforms, st := d.Platforms()
	require.True(t, st.Ok())
	devices, st := d.Devices(platforms[0], driver.DeviceAll)
	require.True(t, st.Ok())
	ctx, st := d.CreateContext(devices)
	require.True(t, st.Ok())
	q, st := d.CreateQueue(ctx, devices[0], driver.QueueProfiling)
	require.True(t, st.Ok())
	return d, ctx, q, devices[0]
}

func TestReadWriteRoundTrip(t *testing.T) {
	d, ctx, q, _ := rig(t)

	mem, st := d.CreateBuffer(ctx, driver.MemReadWrite, 16, nil)
	require.True(t, st.Ok())

	src := []byte("0123456789abcdef")
	_, st = d.EnqueueWrite(q, mem, true, 0, len(src), unsafe.Pointer(&src[0]), nil)
	require.True(t, st.Ok())

	dst := make([]byte, 16)
	_, st = d.EnqueueRead(q, mem, true, 0, len(dst), unsafe.Pointer(&dst[0]), nil)
	require.True(t, st.Ok())
	assert.Equal(t, src, dst)

	// Offset read of the tail.
	tail := make([]byte, 6)
	_, st = d.EnqueueRead(q, mem, true, 10, 6, unsafe.Pointer(&tail[0]), nil)
	require.True(t, st.Ok())
	assert.Equal(t, []byte("abcdef"), tail)

	// Out-of-range rejected at submission.
	_, st = d.EnqueueRead(q, mem, true, 12, 8, unsafe.Pointer(&dst[0]), nil)
	assert.Equal(t, driver.InvalidValue, st)
}

func TestCopyAndFill(t *testing.T) {
	d, ctx, q, _ := rig(t)

	a, st := d.CreateBuffer(ctx, driver.MemReadWrite, 8, nil)
	require.True(t, st.Ok())
	b, st := d.CreateBuffer(ctx, driver.MemReadWrite, 8, nil)
	require.True(t, st.Ok())

	_, st = d.EnqueueFill(q, a, []byte{0xAB, 0xCD}, 0, 8, nil)
	require.True(t, st.Ok())
	_, st = d.EnqueueCopy(q, a, b, 0, 0, 8, nil)
	require.True(t, st.Ok())
	require.Equal(t, driver.Success, d.Finish(q))

	got := make([]byte, 8)
	_, st = d.EnqueueRead(q, b, true, 0, 8, unsafe.Pointer(&got[0]), nil)
	require.True(t, st.Ok())
	assert.Equal(t, []byte{0xAB, 0xCD, 0xAB, 0xCD, 0xAB, 0xCD, 0xAB, 0xCD}, got)

	// Fill length must be a whole number of patterns.
	_, st = d.EnqueueFill(q, a, []byte{1, 2, 3}, 0, 8, nil)
	assert.Equal(t, driver.InvalidValue, st)

	// Overlapping same-buffer copy is rejected.
	_, st = d.EnqueueCopy(q, a, a, 0, 2, 4, nil)
	assert.Equal(t, driver.MemCopyOverlap, st)
}

func TestMapAliasesStorage(t *testing.T) {
	d, ctx, q, _ := rig(t)

	mem, st := d.CreateBuffer(ctx, driver.MemReadWrite, 8, nil)
	require.True(t, st.Ok())

	ptr, _, st := d.EnqueueMap(q, mem, true, driver.MapWrite, 0, 8, nil)
	require.True(t, st.Ok())
	view := unsafe.Slice((*byte)(ptr), 8)
	copy(view, []byte{9, 8, 7, 6, 5, 4, 3, 2})
	_, st = d.EnqueueUnmap(q, mem, ptr, nil)
	require.True(t, st.Ok())

	got := make([]byte, 8)
	_, st = d.EnqueueRead(q, mem, true, 0, 8, unsafe.Pointer(&got[0]), nil)
	require.True(t, st.Ok())
	assert.Equal(t, []byte{9, 8, 7, 6, 5, 4, 3, 2}, got)
}

func TestKernelDispatchRunsBody(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[[3]int]int)

	d, ctx, q, _ := rig(t, WithKernelFunc("bump", func(it Item, args []Value) {
		data := args[0].Data
		if it.ID[0] < len(data) {
			data[it.ID[0]]++
		}
		mu.Lock()
		seen[it.ID]++
		mu.Unlock()
	}))

	prog, st := d.CreateProgram(ctx, []string{"__kernel void bump(__global uchar* data) { }"})
	require.True(t, st.Ok())
	require.Equal(t, driver.Success, d.BuildProgram(prog, nil, ""))

	k, st := d.CreateKernel(prog, "bump")
	require.True(t, st.Ok())

	mem, st := d.CreateBuffer(ctx, driver.MemReadWrite, 8, nil)
	require.True(t, st.Ok())
	require.Equal(t, driver.Success, d.SetKernelArgMem(k, 0, mem))

	_, st = d.EnqueueKernel(q, k, driver.NDRange{Dims: 1, Global: [3]uint64{8}}, nil)
	require.True(t, st.Ok())
	require.Equal(t, driver.Success, d.Finish(q))

	got := make([]byte, 8)
	_, st = d.EnqueueRead(q, mem, true, 0, 8, unsafe.Pointer(&got[0]), nil)
	require.True(t, st.Ok())
	assert.Equal(t, []byte{1, 1, 1, 1, 1, 1, 1, 1}, got)

	mu.Lock()
	assert.Len(t, seen, 8, "each work item runs exactly once")
	mu.Unlock()

	stats := d.Stats()
	assert.Equal(t, uint64(1), stats.KernelDispatches)
}

func TestKernelArgSnapshotAtEnqueue(t *testing.T) {
	got := make(chan int32, 1)
	d, ctx, q, _ := rig(t, WithKernelFunc("probe", func(it Item, args []Value) {
		if it.ID == [3]int{0, 0, 0} {
			b := args[0].Bytes
			got <- int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16 | int32(b[3])<<24
		}
	}))

	prog, _ := d.CreateProgram(ctx, []string{"__kernel void probe(int v) { }"})
	require.Equal(t, driver.Success, d.BuildProgram(prog, nil, ""))
	k, st := d.CreateKernel(prog, "probe")
	require.True(t, st.Ok())

	v := int32(42)
	require.Equal(t, driver.Success,
		d.SetKernelArg(k, 0, 4, unsafe.Pointer(&v)))
	_, st = d.EnqueueKernel(q, k, driver.NDRange{Dims: 1, Global: [3]uint64{1}}, nil)
	require.True(t, st.Ok())

	// Rebinding after enqueue must not affect the in-flight dispatch.
	v2 := int32(7)
	require.Equal(t, driver.Success,
		d.SetKernelArg(k, 0, 4, unsafe.Pointer(&v2)))
	require.Equal(t, driver.Success, d.Finish(q))

	select {
	case x := <-got:
		assert.Equal(t, int32(42), x)
	case <-time.After(time.Second):
		t.Fatal("kernel body never ran")
	}
}

func TestWaitListGatesExecution(t *testing.T) {
	d, ctx, q, _ := rig(t)

	gate, st := d.CreateUserEvent(ctx)
	require.True(t, st.Ok())

	mem, st := d.CreateBuffer(ctx, driver.MemReadWrite, 4, nil)
	require.True(t, st.Ok())

	ev, st := d.EnqueueFill(q, mem, []byte{1}, 0, 4, []driver.Event{gate})
	require.True(t, st.Ok())

	// Not executed while the gate is open.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, uint64(0), d.Stats().Fills)
	es, st := d.EventStatus(ev)
	require.True(t, st.Ok())
	assert.NotEqual(t, driver.Complete, es)

	require.Equal(t, driver.Success, d.SetUserEventStatus(gate, 0))
	require.Equal(t, driver.Success, d.Finish(q))
	assert.Equal(t, uint64(1), d.Stats().Fills)

	es, st = d.EventStatus(ev)
	require.True(t, st.Ok())
	assert.Equal(t, driver.Complete, es)
}

func TestUserEventDoubleSignal(t *testing.T) {
	d, ctx, _, _ := rig(t)

	ev, st := d.CreateUserEvent(ctx)
	require.True(t, st.Ok())
	require.Equal(t, driver.Success, d.SetUserEventStatus(ev, 0))
	assert.Equal(t, driver.InvalidOperation, d.SetUserEventStatus(ev, 0))
	assert.Equal(t, driver.InvalidOperation,
		d.SetUserEventStatus(ev, int32(driver.OutOfResources)))
}

func TestEventCallbackFiresOnce(t *testing.T) {
	d, ctx, _, _ := rig(t)

	ev, st := d.CreateUserEvent(ctx)
	require.True(t, st.Ok())

	fired := make(chan driver.ExecStatus, 4)
	st = d.SetEventCallback(ev, driver.Complete, func(_ driver.Event, es driver.ExecStatus) {
		fired <- es
	})
	require.True(t, st.Ok())

	require.Equal(t, driver.Success, d.SetUserEventStatus(ev, 0))

	select {
	case es := <-fired:
		assert.Equal(t, driver.Complete, es)
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
	select {
	case <-fired:
		t.Fatal("callback fired twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestProfilingOrdering(t *testing.T) {
	d, ctx, q, _ := rig(t)

	mem, st := d.CreateBuffer(ctx, driver.MemReadWrite, 4, nil)
	require.True(t, st.Ok())

	ev, st := d.EnqueueFill(q, mem, []byte{0xFF}, 0, 4, nil)
	require.True(t, st.Ok())
	require.Equal(t, driver.Success, d.WaitForEvents([]driver.Event{ev}))

	var ts [4]uint64
	for key := driver.ProfilingQueued; key <= driver.ProfilingEnd; key++ {
		v, st := d.EventProfiling(ev, key)
		require.True(t, st.Ok(), "profiling key %d", key)
		ts[key] = v
	}
	assert.LessOrEqual(t, ts[0], ts[1], "queued <= submitted")
	assert.LessOrEqual(t, ts[1], ts[2], "submitted <= start")
	assert.LessOrEqual(t, ts[2], ts[3], "start <= end")
}

func TestProfilingUnavailableWithoutFlag(t *testing.T) {
	d := New()
	platforms, _ := d.Platforms()
	devices, _ := d.Devices(platforms[0], driver.DeviceAll)
	ctx, _ := d.CreateContext(devices)
	q, st := d.CreateQueue(ctx, devices[0], 0)
	require.True(t, st.Ok())

	mem, _ := d.CreateBuffer(ctx, driver.MemReadWrite, 4, nil)
	ev, st := d.EnqueueFill(q, mem, []byte{1}, 0, 4, nil)
	require.True(t, st.Ok())
	require.Equal(t, driver.Success, d.Finish(q))

	_, st = d.EventProfiling(ev, driver.ProfilingStart)
	assert.Equal(t, driver.ProfilingInfoNotAvailable, st)
}

func TestBuildFailureKeepsLog(t *testing.T) {
	d, ctx, _, dev := rig(t)

	prog, st := d.CreateProgram(ctx, []string{"__kernel void broken(int n) {"})
	require.True(t, st.Ok())
	assert.Equal(t, driver.BuildProgramFailure, d.BuildProgram(prog, nil, ""))

	log, st := d.BuildLog(prog, dev)
	require.True(t, st.Ok())
	assert.Contains(t, log, "unbalanced braces")

	// Unbuilt programs cannot produce kernels.
	_, st = d.CreateKernel(prog, "broken")
	assert.Equal(t, driver.InvalidProgramExecutable, st)
}

func TestCreateKernelUnknownName(t *testing.T) {
	d, ctx, _, _ := rig(t)

	prog, _ := d.CreateProgram(ctx, []string{"__kernel void real_one(int n) { }"})
	require.Equal(t, driver.Success, d.BuildProgram(prog, nil, ""))

	_, st := d.CreateKernel(prog, "no_such_kernel")
	assert.Equal(t, driver.InvalidKernelName, st)

	names, st := d.KernelNames(prog)
	require.True(t, st.Ok())
	assert.Equal(t, []string{"real_one"}, names)
}
