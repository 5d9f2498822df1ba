package matrix

import (
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/justyntemme/gomedian/pkg/class"
	"github.com/justyntemme/gomedian/pkg/external"
	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/max/simhost"
	"github.com/justyntemme/gomedian/pkg/object"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// strides lays out dims the way a host does: cell bytes first, then each
// dimension times the previous, with pad bytes after every row.
func strides(cell, pad int64, dims []int64) []int64 {
	out := make([]int64, len(dims))
	stride := cell
	for i, d := range dims {
		out[i] = stride
		stride *= d
		if i == 0 {
			stride += pad
		}
	}
	return out
}

// shapes lists every dims vector of the given rank with sizes 1 to 3.
func shapes(rank int) [][]int64 {
	out := [][]int64{nil}
	for d := 0; d < rank; d++ {
		var next [][]int64
		for _, s := range out {
			for n := int64(1); n <= 3; n++ {
				next = append(next, append(append([]int64(nil), s...), n))
			}
		}
		out = next
	}
	return out
}

// nested calls fn with every index vector of dims, the last dimension in
// the outermost loop.
func nested(dims []int64, fn func(idx []int64)) {
	idx := make([]int64, len(dims))
	var loop func(d int)
	loop = func(d int) {
		if d < 0 {
			fn(idx)
			return
		}
		for i := int64(0); i < dims[d]; i++ {
			idx[d] = i
			loop(d - 1)
		}
	}
	loop(len(dims) - 1)
}

func dot(idx, stride []int64) int64 {
	var off int64
	for i := range idx {
		off += idx[i] * stride[i]
	}
	return off
}

func TestChunksMatchNestedLoops(t *testing.T) {
	for rank := 3; rank <= 5; rank++ {
		for _, dims := range shapes(rank) {
			a := strides(2, 0, dims)
			b := strides(4, 5, dims)

			var want [][2]int64
			nested(dims[2:], func(idx []int64) {
				want = append(want, [2]int64{dot(idx, a[2:]), dot(idx, b[2:])})
			})

			var got [][2]int64
			c := NewChunks(dims, a, b)
			for c.Next() {
				got = append(got, [2]int64{c.Offset(0), c.Offset(1)})
			}
			require.Equal(t, want, got, "dims %v", dims)
		}
	}
}

func TestChunksIndexCarries(t *testing.T) {
	dims := []int64{2, 2, 2, 3}
	c := NewChunks(dims, strides(1, 0, dims))

	var idx [][]int64
	for c.Next() {
		idx = append(idx, c.Index())
	}
	assert.Equal(t, [][]int64{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {0, 2}, {1, 2}}, idx)
}

func TestChunksFlatAndEmpty(t *testing.T) {
	c := NewChunks([]int64{4, 3}, []int64{1, 4})
	require.True(t, c.Next())
	assert.Equal(t, int64(0), c.Offset(0))
	assert.Empty(t, c.Index())
	assert.False(t, c.Next())

	empty := NewChunks([]int64{4, 0, 2}, []int64{1, 4, 0})
	assert.False(t, empty.Next())
}

func TestWalkVisitsEveryCellOnce(t *testing.T) {
	buf := make([]byte, 1024)
	base := unsafe.Pointer(&buf[0])

	for rank := 1; rank <= 4; rank++ {
		for _, dims := range shapes(rank) {
			a := strides(2, 0, dims)
			b := strides(4, 5, dims)

			var want [][2]int64
			nested(dims, func(idx []int64) {
				want = append(want, [2]int64{dot(idx, a), dot(idx, b)})
			})

			var got [][2]int64
			walk(dims, []operand{{base: base, stride: a}, {base: base, stride: b}}, func(p []unsafe.Pointer) bool {
				got = append(got, [2]int64{
					int64(uintptr(p[0]) - uintptr(base)),
					int64(uintptr(p[1]) - uintptr(base)),
				})
				return true
			})
			require.Equal(t, want, got, "dims %v", dims)
		}
	}
}

func TestWalkStopsWhenVisitSaysSo(t *testing.T) {
	buf := make([]byte, 64)
	dims := []int64{2, 2, 2}
	calls := 0
	walk(dims, []operand{{base: unsafe.Pointer(&buf[0]), stride: strides(1, 0, dims)}}, func([]unsafe.Pointer) bool {
		calls++
		return calls < 3
	})
	assert.Equal(t, 3, calls)
}

func TestIntersect(t *testing.T) {
	h := simhost.New()
	a := NewInfo(h, max.SymChar, 4, 5, 3)
	b := NewInfo(h, max.SymChar, 2, 4, 6, 2)

	dims, planes := Intersect(a, b)
	assert.Equal(t, []int64{4, 3, 1}, dims)
	assert.Equal(t, 2, planes)

	dims, planes = Intersect()
	assert.Nil(t, dims)
	assert.Zero(t, planes)
}

func TestInfo(t *testing.T) {
	h := simhost.New()
	info := NewInfo(h, max.SymFloat32, 3, 4, 2)

	assert.Equal(t, max.SymFloat32, info.TypeName())
	assert.Equal(t, []int64{4, 2}, info.Dims())
	assert.Equal(t, 3, info.Planes())
	assert.Equal(t, int64(4), info.ElemSize())
	assert.Equal(t, int64(8), info.Len())
	assert.Zero(t, Info{}.Len())

	assert.Equal(t, max.SymChar, TypeOf[uint8]())
	assert.Equal(t, max.SymLong, TypeOf[int32]())
	assert.Equal(t, max.SymFloat64, TypeOf[float64]())
	assert.Zero(t, ElemSize("complex"))
}

// cellAt returns the planes of cell idx in a locked matrix.
func cellAt[E Element](t *testing.T, m Matrix, idx ...int64) []E {
	t.Helper()
	g, err := m.Lock()
	require.NoError(t, err)
	defer g.Unlock()
	all, info, err := Elements[E](g)
	require.NoError(t, err)
	size := info.ElemSize()
	off := int64(0)
	for d, i := range idx {
		off += i * info.DimStride[d]
	}
	start := off / size
	return append([]E(nil), all[start:start+int64(info.Planes())]...)
}

// fillCells sets every cell of a 2D matrix with fn(x, y, plane).
func fillCells[E Element](t *testing.T, m Matrix, fn func(x, y int64, p int) E) {
	t.Helper()
	g, err := m.Lock()
	require.NoError(t, err)
	defer g.Unlock()
	all, info, err := Elements[E](g)
	require.NoError(t, err)
	dims := info.Dims()
	rows := int64(1)
	if len(dims) > 1 {
		rows = dims[1]
	}
	size := info.ElemSize()
	for y := int64(0); y < rows; y++ {
		for x := int64(0); x < dims[0]; x++ {
			start := (x*info.DimStride[0] + y*info.DimStride[1]) / size
			for p := 0; p < info.Planes(); p++ {
				all[start+int64(p)] = fn(x, y, p)
			}
		}
	}
}

func TestCalcIntersection2DSkipsRowPadding(t *testing.T) {
	h := simhost.New()
	in := Wrap(h, h.NewMatrixPadded(max.SymChar, 4, 3, 3, 2))
	out := Wrap(h, h.NewMatrix(max.SymChar, 4, 5, 5))
	fillCells(t, in, func(x, y int64, p int) uint8 { return uint8(x*10 + y + int64(p)*100) })

	calls := 0
	err := CalcIntersection2D(in, out, func(a, b []uint8) {
		calls++
		copy(b, a)
	})
	require.NoError(t, err)
	assert.Equal(t, 6, calls)

	assert.Equal(t, []uint8{21, 121, 221, 65}, cellAt[uint8](t, out, 2, 1))
	assert.Equal(t, []uint8{0, 0, 0, 0}, cellAt[uint8](t, out, 4, 4))
	assert.Zero(t, h.MatrixLockState(in.Ptr()))
	assert.Zero(t, h.MatrixLockState(out.Ptr()))
}

func TestParallel2CoversEveryCell(t *testing.T) {
	h := simhost.New(simhost.WithWorkers(3))
	dims := []int{4, 3, 5}
	in := Wrap(h, h.NewMatrix(max.SymFloat32, 1, dims...))
	out := Wrap(h, h.NewMatrix(max.SymFloat32, 2, dims...))

	g, err := in.Lock()
	require.NoError(t, err)
	vals, _, err := Elements[float32](g)
	require.NoError(t, err)
	for i := range vals {
		vals[i] = float32(i)
	}
	g.Unlock()

	err = Parallel2(in, out, [2]int{}, func(a, b []float32) {
		b[0] = a[0] * 2
	})
	require.NoError(t, err)

	for z := int64(0); z < 5; z++ {
		for y := int64(0); y < 3; y++ {
			for x := int64(0); x < 4; x++ {
				want := float32(x+4*y+12*z) * 2
				assert.Equal(t, []float32{want, 0}, cellAt[float32](t, out, x, y, z))
			}
		}
	}
}

func TestParallel3AddsLongMatrices(t *testing.T) {
	h := simhost.New(simhost.WithWorkers(3))
	a := Wrap(h, h.NewMatrix(max.SymLong, 1, 2, 7))
	b := Wrap(h, h.NewMatrixPadded(max.SymLong, 1, 8, 2, 7))
	c := Wrap(h, h.NewMatrix(max.SymLong, 1, 2, 7))
	fillCells(t, a, func(x, y int64, _ int) int32 { return int32(x + 10*y) })
	fillCells(t, b, func(x, y int64, _ int) int32 { return int32(1000 * (x + 1)) })

	err := Parallel3(a, b, c, [3]int{}, func(x []int32, y []int32, z []int32) {
		z[0] = x[0] + y[0]
	})
	require.NoError(t, err)

	for y := int64(0); y < 7; y++ {
		for x := int64(0); x < 2; x++ {
			assert.Equal(t, []int32{int32(x + 10*y + 1000*(x+1))}, cellAt[int32](t, c, x, y))
		}
	}
}

func TestParallelPanicsExit(t *testing.T) {
	var exits atomic.Int32
	restore := object.SetExitFunc(func(code int) {
		assert.Equal(t, 1, code)
		exits.Add(1)
	})
	defer restore()

	h := simhost.New(simhost.WithWorkers(2))
	a := Wrap(h, h.NewMatrix(max.SymLong, 1, 2, 4))
	b := Wrap(h, h.NewMatrix(max.SymLong, 1, 2, 4))
	c := Wrap(h, h.NewMatrix(max.SymLong, 1, 2, 4))

	err := Parallel2(a, b, [2]int{}, func(_, _ []int32) { panic("bad cell") })
	require.NoError(t, err)
	assert.Positive(t, exits.Load())

	exits.Store(0)
	err = Parallel3(a, b, c, [3]int{}, func(_, _, _ []int32) { panic("bad cell") })
	require.NoError(t, err)
	assert.Positive(t, exits.Load())
}

func TestParallelRejectsWrongElementType(t *testing.T) {
	h := simhost.New()
	in := Wrap(h, h.NewMatrix(max.SymChar, 1, 4))
	out := Wrap(h, h.NewMatrix(max.SymChar, 1, 4))

	err := Parallel2(in, out, [2]int{}, func([]float32, []uint8) {})
	require.Error(t, err)
	assert.Equal(t, max.CodeMatrixTypeMismatch, max.ErrorCode(err))
	assert.Zero(t, h.MatrixLockState(in.Ptr()))
}

func TestEntries2D(t *testing.T) {
	h := simhost.New()
	m := Wrap(h, h.NewMatrixPadded(max.SymLong, 2, 4, 3, 2))
	fillCells(t, m, func(x, y int64, p int) int32 { return int32(x + 10*y + 100*int64(p)) })

	g, err := m.Lock()
	require.NoError(t, err)
	defer g.Unlock()
	seq, err := Entries2D[int32](g)
	require.NoError(t, err)

	var got [][]int32
	for cell := range seq {
		got = append(got, append([]int32(nil), cell...))
	}
	assert.Equal(t, [][]int32{
		{0, 100}, {1, 101}, {2, 102},
		{10, 110}, {11, 111}, {12, 112},
	}, got)

	n := 0
	for range seq {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)

	_, err = Entries2D[float64](g)
	assert.Equal(t, max.CodeMatrixTypeMismatch, max.ErrorCode(err))
}

func TestGuardRestoresLockState(t *testing.T) {
	h := simhost.New()
	p := h.NewMatrix(max.SymChar, 1, 2)
	h.MatrixLock(p, 7)

	g, err := Wrap(h, p).Lock()
	require.NoError(t, err)
	assert.Equal(t, int64(1), h.MatrixLockState(p))
	assert.Equal(t, p, g.Matrix().Ptr())

	g.Unlock()
	assert.Equal(t, int64(7), h.MatrixLockState(p))

	h.MatrixLock(p, 3)
	g.Unlock()
	assert.Equal(t, int64(3), h.MatrixLockState(p))
}

func TestGuardErrors(t *testing.T) {
	h := simhost.New()

	_, err := Wrap(h, nil).Lock()
	assert.Equal(t, max.CodeMatrixInvalidPtr, max.ErrorCode(err))
	assert.False(t, Wrap(h, nil).Valid())

	p := h.NewMatrix(max.SymChar, 1, 2)
	g, err := Wrap(h, p).Lock()
	require.NoError(t, err)
	defer g.Unlock()

	_, _, err = Elements[float32](g)
	assert.Equal(t, max.CodeMatrixTypeMismatch, max.ErrorCode(err))

	err = g.SetInfo(NewInfo(h, "complex", 1, 2))
	assert.Equal(t, max.CodeMatrixInvalidPtr, max.ErrorCode(err))

	h.DropMatrixData(p)
	_, err = g.Data()
	assert.Equal(t, max.CodeMatrixInvalidPtr, max.ErrorCode(err))

	h.FreeMatrix(p)
	_, err = g.Info()
	assert.Equal(t, max.CodeMatrixLock, max.ErrorCode(err))
}

func TestSetInfoReallocates(t *testing.T) {
	h := simhost.New()
	m := Wrap(h, h.NewMatrix(max.SymChar, 1, 1))
	g, err := m.Lock()
	require.NoError(t, err)
	defer g.Unlock()

	require.NoError(t, g.SetInfo(NewInfo(h, max.SymFloat64, 2, 3, 4)))
	info, err := g.Info()
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, info.Dims())
	assert.Equal(t, int64(16), info.DimStride[0])
	assert.Equal(t, int64(48), info.DimStride[1])
	assert.Equal(t, int64(192), info.Size)
}

// offset adds a constant to a long matrix.
type offset struct {
	amount int32
	closed *bool
}

func (o *offset) Calc(inputs, outputs []Matrix) error {
	return Parallel2(inputs[0], outputs[0], [2]int{}, func(a, b []int32) {
		for p := range b {
			b[p] = a[p] + o.amount
		}
	})
}

func (o *offset) Close() { *o.closed = true }

type noCalc struct{}

func newOffsetModule(t *testing.T, h *simhost.Host) *external.Module {
	t.Helper()
	m := external.NewModule(h, external.Config{Exit: func(int) {}})
	t.Cleanup(m.Close)
	return m
}

func TestRegisterOpRunsMatrixCalc(t *testing.T) {
	h := simhost.New()
	m := newOffsetModule(t, h)
	closed := false
	setups := 0
	def := OpDefinition[offset]{
		Name: "jit_offset",
		IO:   IOCount{Inputs: 1, Outputs: 1},
		New:  func() (*offset, error) { return &offset{amount: 3, closed: &closed}, nil },
		Setup: func(*class.Class[offset]) error {
			setups++
			return nil
		},
	}
	op, err := RegisterOp(m, def)
	require.NoError(t, err)
	again, err := RegisterOp(m, def)
	require.NoError(t, err)
	assert.Same(t, op, again)
	assert.Equal(t, 1, setups)
	assert.Equal(t, "jit_offset", op.Name())
	assert.NotZero(t, op.Handle())
	assert.NotNil(t, op.Class())

	ins, outs, ok := h.MOPCounts("jit_offset")
	require.True(t, ok)
	assert.Equal(t, [2]int{1, 1}, [2]int{ins, outs})

	obj, err := h.NewJitObject("jit_offset")
	require.NoError(t, err)
	assert.Equal(t, 1, op.Instances())
	payload, err := op.Borrow(obj)
	require.NoError(t, err)
	assert.Equal(t, int32(3), payload.amount)

	in := h.NewMatrix(max.SymLong, 1, 4, 2)
	out := h.NewMatrix(max.SymLong, 1, 4, 2)
	fillCells(t, Wrap(h, in), func(x, y int64, _ int) int32 { return int32(x + 4*y) })

	code, err := h.CalcMatrix(obj, []unsafe.Pointer{in}, []unsafe.Pointer{out})
	require.NoError(t, err)
	assert.Equal(t, max.JitErrNone, code)
	assert.Equal(t, []int32{9}, cellAt[int32](t, Wrap(h, out), 2, 1))

	code, err = h.CalcMatrix(obj, []unsafe.Pointer{in}, nil)
	require.NoError(t, err)
	assert.Equal(t, max.JitErrInvalidPtr, code)

	chars := h.NewMatrix(max.SymChar, 1, 4, 2)
	code, err = h.CalcMatrix(obj, []unsafe.Pointer{chars}, []unsafe.Pointer{out})
	require.NoError(t, err)
	assert.Equal(t, max.JitErrMismatchType, code)

	require.NoError(t, h.FreeObject(obj))
	assert.True(t, closed)
	assert.Zero(t, op.Instances())
	_, err = op.Borrow(obj)
	assert.Error(t, err)
}

func TestRegisterOpRejectsIncompleteDefinitions(t *testing.T) {
	h := simhost.New()
	m := newOffsetModule(t, h)

	_, err := RegisterOp(m, OpDefinition[noCalc]{
		Name: "jit_nocalc",
		New:  func() (*noCalc, error) { return &noCalc{}, nil },
	})
	assert.Equal(t, max.CodeClassRegister, max.ErrorCode(err))

	_, err = RegisterOp(m, OpDefinition[offset]{Name: "jit_offset"})
	assert.Equal(t, max.CodeClassRegister, max.ErrorCode(err))

	_, err = RegisterOp(m, OpDefinition[offset]{New: func() (*offset, error) { return &offset{}, nil }})
	assert.Equal(t, max.CodeClassRegister, max.ErrorCode(err))
}
