package reduce

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-gpu/spindle/internal/compute"
	"github.com/spindle-gpu/spindle/internal/driver/soft"
)

const kernelSrc = `
__kernel void sum_groups(__global uint* src, __global uint* dst, uint span) { }
__kernel void fold_groups(__global uint* src, __global uint* dst, uint span) { }
__kernel void sum_columns(__global uint* src, __global uint* dst, uint span) { }
__kernel void fold_columns(__global uint* src, __global uint* dst, uint span) { }
`

// words views a byte region as native-endian uint32 values.
func words(b []byte) []uint32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// groupSum collapses runs of span adjacent values into one partial per
// run. Only the run's leading item does the work, so the body is safe
// under any execution order.
func groupSum(it soft.Item, args []soft.Value) {
	span := int(words(args[2].Bytes)[0])
	if it.ID[0]%span != 0 {
		return
	}
	src, dst := words(args[0].Data), words(args[1].Data)
	end := it.ID[0] + span
	if end > it.Global[0] {
		end = it.Global[0]
	}
	var sum uint32
	for i := it.ID[0]; i < end; i++ {
		sum += src[i]
	}
	dst[it.ID[0]/span] = sum
}

// columnSum collapses runs of span adjacent rows into one partial row,
// column by column, over a row-major [nx, ny] grid.
func columnSum(it soft.Item, args []soft.Value) {
	span := int(words(args[2].Bytes)[0])
	if it.ID[1]%span != 0 {
		return
	}
	src, dst := words(args[0].Data), words(args[1].Data)
	nx := it.Global[0]
	end := it.ID[1] + span
	if end > it.Global[1] {
		end = it.Global[1]
	}
	var sum uint32
	for y := it.ID[1]; y < end; y++ {
		sum += src[y*nx+it.ID[0]]
	}
	dst[(it.ID[1]/span)*nx+it.ID[0]] = sum
}

func rig(t *testing.T) (*soft.Driver, *compute.Session) {
	t.Helper()
	d := soft.New(
		soft.WithKernelFunc("sum_groups", groupSum),
		soft.WithKernelFunc("fold_groups", groupSum),
		soft.WithKernelFunc("sum_columns", columnSum),
		soft.WithKernelFunc("fold_columns", columnSum),
	)
	s, err := compute.Open(d)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Release() })
	return d, s
}

func buildKernels(t *testing.T, s *compute.Session, names ...string) []*compute.Kernel {
	t.Helper()
	prog, err := s.Context.CreateProgram(kernelSrc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = prog.Release() })
	require.NoError(t, prog.Build())
	ks := make([]*compute.Kernel, len(names))
	for i, name := range names {
		k, err := prog.CreateKernel(name)
		require.NoError(t, err)
		t.Cleanup(func() { _ = k.Release() })
		ks[i] = k
	}
	return ks
}

func mkbuf(t *testing.T, s *compute.Session, size int) *compute.Buffer {
	t.Helper()
	b, err := s.Context.CreateBuffer(size)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Release() })
	return b
}

func TestRunThreeDispatchRounds(t *testing.T) {
	d, s := rig(t)
	ks := buildKernels(t, s, "sum_groups", "fold_groups")
	mainK, foldK := ks[0], ks[1]

	const n = 1 << 20
	const local = 256

	ones := make([]uint32, n)
	for i := range ones {
		ones[i] = 1
	}
	data := mkbuf(t, s, n*4)
	require.NoError(t, s.Queue.Write(data, compute.HostOf(ones)))

	// Two partial buffers ping-pong so no fold reads the buffer it
	// writes.
	bufs := [2]*compute.Buffer{
		mkbuf(t, s, (n/local)*4),
		mkbuf(t, s, (n/local)*4),
	}
	cur := 0
	require.NoError(t, mainK.SetArgs(data, bufs[cur], []uint32{local}))

	var rebinds []int
	plan := Plan{
		Main:  mainK,
		Fold:  foldK,
		Local: local,
		Rebind: func(count int) error {
			rebinds = append(rebinds, count)
			span := min(local, count)
			if err := foldK.SetArgs(bufs[cur], bufs[1-cur], []uint32{uint32(span)}); err != nil {
				return err
			}
			cur = 1 - cur
			return nil
		},
	}

	dispatches, err := plan.Run(s.Queue, n)
	require.NoError(t, err)
	assert.Equal(t, 3, dispatches)
	assert.Equal(t, []int{4096, 16}, rebinds)
	assert.Equal(t, uint64(3), d.Stats().KernelDispatches)

	out := make([]uint32, 1)
	require.NoError(t, s.Queue.Read(bufs[cur], compute.HostOf(out)))
	assert.Equal(t, uint32(n), out[0])
}

func TestRunSingleGroup(t *testing.T) {
	_, s := rig(t)
	ks := buildKernels(t, s, "sum_groups", "fold_groups")
	mainK, foldK := ks[0], ks[1]

	vals := make([]uint32, 200)
	for i := range vals {
		vals[i] = uint32(i)
	}
	data, err := s.Context.CreateBufferFrom(compute.HostOf(vals))
	require.NoError(t, err)
	t.Cleanup(func() { _ = data.Release() })
	part := mkbuf(t, s, 4)
	require.NoError(t, mainK.SetArgs(data, part, []uint32{200}))

	rebinds := 0
	plan := Plan{
		Main:   mainK,
		Fold:   foldK,
		Local:  256,
		Rebind: func(int) error { rebinds++; return nil },
	}

	dispatches, err := plan.Run(s.Queue, len(vals))
	require.NoError(t, err)
	assert.Equal(t, 1, dispatches, "one group needs no folds")
	assert.Equal(t, 0, rebinds)

	out := make([]uint32, 1)
	require.NoError(t, s.Queue.Read(part, compute.HostOf(out)))
	assert.Equal(t, uint32(19900), out[0])
}

func TestRunValidation(t *testing.T) {
	_, s := rig(t)
	ks := buildKernels(t, s, "sum_groups", "fold_groups")
	mainK, foldK := ks[0], ks[1]

	tests := []struct {
		name string
		plan Plan
		n    int
		frag string
	}{
		{"missing main", Plan{Fold: foldK, Local: 4}, 16, "both a main and a fold kernel"},
		{"missing fold", Plan{Main: mainK, Local: 4}, 16, "both a main and a fold kernel"},
		{"no elements", Plan{Main: mainK, Fold: foldK, Local: 4}, 0, "at least one element"},
		{"zero local", Plan{Main: mainK, Fold: foldK, Local: 0}, 16, "must be positive"},
		{"local cannot fold", Plan{Main: mainK, Fold: foldK, Local: 1}, 16, "local size 1 cannot fold 16 elements"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatches, err := tt.plan.Run(s.Queue, tt.n)
			require.Error(t, err)
			assert.Equal(t, 0, dispatches)
			var ue *compute.UsageError
			require.ErrorAs(t, err, &ue)
			assert.Contains(t, err.Error(), tt.frag)
		})
	}
}

func TestRunStopsOnRebindError(t *testing.T) {
	d, s := rig(t)
	ks := buildKernels(t, s, "sum_groups", "fold_groups")
	mainK, foldK := ks[0], ks[1]

	data := mkbuf(t, s, 64*4)
	part := mkbuf(t, s, 16*4)
	require.NoError(t, mainK.SetArgs(data, part, []uint32{4}))

	boom := errors.New("rebind failed")
	plan := Plan{
		Main:   mainK,
		Fold:   foldK,
		Local:  4,
		Rebind: func(int) error { return boom },
	}

	dispatches, err := plan.Run(s.Queue, 64)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, dispatches, "the main dispatch went out before the rebind failed")

	require.NoError(t, s.Queue.Finish())
	assert.Equal(t, uint64(1), d.Stats().KernelDispatches)
}

func TestPlan2DFoldsRows(t *testing.T) {
	_, s := rig(t)
	ks := buildKernels(t, s, "sum_columns", "fold_columns")
	mainK, foldK := ks[0], ks[1]

	const nx, ny = 8, 1024
	const localX, localY = 8, 128

	ones := make([]uint32, nx*ny)
	for i := range ones {
		ones[i] = 1
	}
	data := mkbuf(t, s, nx*ny*4)
	require.NoError(t, s.Queue.Write(data, compute.HostOf(ones)))

	bufs := [2]*compute.Buffer{
		mkbuf(t, s, nx*(ny/localY)*4),
		mkbuf(t, s, nx*(ny/localY)*4),
	}
	cur := 0
	require.NoError(t, mainK.SetArgs(data, bufs[cur], []uint32{localY}))

	var rebinds []int
	plan := Plan2D{
		Main:   mainK,
		Fold:   foldK,
		LocalX: localX,
		LocalY: localY,
		Rebind: func(county int) error {
			rebinds = append(rebinds, county)
			span := min(localY, county)
			if err := foldK.SetArgs(bufs[cur], bufs[1-cur], []uint32{uint32(span)}); err != nil {
				return err
			}
			cur = 1 - cur
			return nil
		},
	}

	dispatches, err := plan.Run(s.Queue, nx, ny)
	require.NoError(t, err)
	assert.Equal(t, 2, dispatches)
	assert.Equal(t, []int{8}, rebinds)

	row := make([]uint32, nx)
	require.NoError(t, s.Queue.Read(bufs[cur], compute.HostOf(row)))
	for x, v := range row {
		assert.Equal(t, uint32(ny), v, "column %d", x)
	}
}

func TestPlan2DValidation(t *testing.T) {
	_, s := rig(t)
	ks := buildKernels(t, s, "sum_columns", "fold_columns")
	mainK, foldK := ks[0], ks[1]

	tests := []struct {
		name   string
		plan   Plan2D
		nx, ny int
		frag   string
	}{
		{"missing main", Plan2D{Fold: foldK, LocalX: 2, LocalY: 2}, 4, 4, "both a main and a fold kernel"},
		{"empty grid", Plan2D{Main: mainK, Fold: foldK, LocalX: 2, LocalY: 2}, 0, 4, "both extents must be at least one"},
		{"zero local x", Plan2D{Main: mainK, Fold: foldK, LocalX: 0, LocalY: 2}, 4, 4, "must be positive"},
		{"local y cannot fold", Plan2D{Main: mainK, Fold: foldK, LocalX: 2, LocalY: 1}, 4, 16, "local y size 1 cannot fold 16 rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatches, err := tt.plan.Run(s.Queue, tt.nx, tt.ny)
			require.Error(t, err)
			assert.Equal(t, 0, dispatches)
			var ue *compute.UsageError
			require.ErrorAs(t, err, &ue)
			assert.Contains(t, err.Error(), tt.frag)
		})
	}
}
