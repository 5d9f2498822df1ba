package matrix

import (
	"iter"
	"unsafe"

	"github.com/samber/oops"

	"github.com/justyntemme/gomedian/pkg/max"
)

// operand is one matrix taking part in a walk.
type operand struct {
	base   unsafe.Pointer
	stride []int64
}

// walk visits every cell of the intersection shape dims until visit returns
// false. For each cell, ptrs[i] points at the first plane of operand i.
// Columns advance by the dimension 0 stride and rows by the dimension 1
// stride, both in bytes, so padded rows are skipped correctly. Offsets are
// kept as integers so no pointer ever leaves its matrix.
func walk(dims []int64, ops []operand, visit func(ptrs []unsafe.Pointer) bool) {
	if len(dims) == 0 {
		return
	}
	strides := make([][]int64, len(ops))
	for i, op := range ops {
		strides[i] = op.stride
	}
	cols := dims[0]
	rows := int64(1)
	if len(dims) > 1 {
		rows = dims[1]
	}
	ptrs := make([]unsafe.Pointer, len(ops))

	chunks := NewChunks(dims, strides...)
	for chunks.Next() {
		for r := int64(0); r < rows; r++ {
			for c := int64(0); c < cols; c++ {
				for i, op := range ops {
					off := chunks.Offset(i) + c*op.stride[0]
					if r > 0 {
						off += r * op.stride[1]
					}
					ptrs[i] = unsafe.Add(op.base, off)
				}
				if !visit(ptrs) {
					return
				}
			}
		}
	}
}

// Entries2D iterates the cells of the first two dimensions of a locked
// matrix, row by row. Each yielded slice holds the cell's planes and is
// only valid while the guard is held.
func Entries2D[E Element](g *Guard) (iter.Seq[[]E], error) {
	info, err := g.Info()
	if err != nil {
		return nil, err
	}
	if err := checkType[E](info); err != nil {
		return nil, err
	}
	if info.DimCount < 1 {
		return nil, oops.Code(max.CodeMatrixInvalidPtr).Errorf("matrix has no dimensions")
	}
	data, err := g.Data()
	if err != nil {
		return nil, err
	}
	dims := info.Dims()
	if len(dims) > 2 {
		dims = dims[:2]
	}
	planes := info.Planes()
	op := []operand{{base: data, stride: info.DimStride[:]}}
	return func(yield func([]E) bool) {
		walk(dims, op, func(ptrs []unsafe.Pointer) bool {
			return yield(unsafe.Slice((*E)(ptrs[0]), planes))
		})
	}, nil
}
