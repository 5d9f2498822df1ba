package matrix

import (
	"unsafe"

	"github.com/justyntemme/gomedian/pkg/debug"
	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/object"
)

// held is a matrix locked for the duration of a calculation.
type held struct {
	g    *Guard
	info Info
	data unsafe.Pointer
}

func hold[E Element](m Matrix) (*held, error) {
	g, err := m.Lock()
	if err != nil {
		return nil, err
	}
	info, err := g.Info()
	if err == nil {
		err = checkType[E](info)
	}
	var data unsafe.Pointer
	if err == nil {
		data, err = g.Data()
	}
	if err != nil {
		g.Unlock()
		return nil, err
	}
	return &held{g: g, info: info, data: data}, nil
}

func (h *held) operand() operand {
	return operand{base: h.data, stride: h.info.DimStride[:]}
}

func release(hs ...*held) {
	for _, h := range hs {
		if h != nil {
			h.g.Unlock()
		}
	}
}

// Intersect returns the shape shared by every matrix: for each dimension
// the smallest size, a missing dimension counting as 1, and the smallest
// plane count.
func Intersect(infos ...Info) (dims []int64, planes int) {
	if len(infos) == 0 {
		return nil, 0
	}
	rank := int64(0)
	planes = infos[0].Planes()
	for _, info := range infos {
		if info.DimCount > rank {
			rank = info.DimCount
		}
		if info.Planes() < planes {
			planes = info.Planes()
		}
	}
	dims = make([]int64, rank)
	for d := range dims {
		size := int64(-1)
		for _, info := range infos {
			n := int64(1)
			if int64(d) < info.DimCount {
				n = info.Dim[d]
			}
			if size < 0 || n < size {
				size = n
			}
		}
		dims[d] = size
	}
	return dims, planes
}

// CalcIntersection2D locks both matrices and calls fn once for every cell
// they have in common, slab by slab. a and b hold the planes the two
// matrices share and are only valid during the call.
func CalcIntersection2D[E0, E1 Element](m0, m1 Matrix, fn func(a []E0, b []E1)) error {
	h0, err := hold[E0](m0)
	if err != nil {
		return err
	}
	defer release(h0)
	h1, err := hold[E1](m1)
	if err != nil {
		return err
	}
	defer release(h1)

	dims, planes := Intersect(h0.info, h1.info)
	if planes == 0 {
		return nil
	}
	walk(dims, []operand{h0.operand(), h1.operand()}, func(p []unsafe.Pointer) bool {
		fn(unsafe.Slice((*E0)(p[0]), planes), unsafe.Slice((*E1)(p[1]), planes))
		return true
	})
	return nil
}

// Parallel2 is CalcIntersection2D run on the host's worker pool. fn is
// called concurrently on disjoint cells, and a panic in fn ends the process
// like a panic in any other host callback. flags hold max.ParallelFullMatrix
// for operands that must not be split.
func Parallel2[E0, E1 Element](m0, m1 Matrix, flags [2]int, fn func(a []E0, b []E1)) error {
	h0, err := hold[E0](m0)
	if err != nil {
		return err
	}
	defer release(h0)
	h1, err := hold[E1](m1)
	if err != nil {
		return err
	}
	defer release(h1)

	dims, planes := Intersect(h0.info, h1.info)
	if planes == 0 || len(dims) == 0 {
		return nil
	}
	calc := func(dimcount int, dim []int64, planecount int, mi0 *max.MatrixInfo, bp0 unsafe.Pointer, mi1 *max.MatrixInfo, bp1 unsafe.Pointer) {
		defer object.Boundary(debug.Logger(), "parallel_calc")
		ops := []operand{
			{base: bp0, stride: mi0.DimStride[:]},
			{base: bp1, stride: mi1.DimStride[:]},
		}
		walk(dim[:dimcount], ops, func(p []unsafe.Pointer) bool {
			fn(unsafe.Slice((*E0)(p[0]), planecount), unsafe.Slice((*E1)(p[1]), planecount))
			return true
		})
	}
	m0.rt.ParallelNDimSimpleCalc2(calc, len(dims), dims, planes,
		&h0.info.MatrixInfo, h0.data,
		&h1.info.MatrixInfo, h1.data,
		flags[0], flags[1])
	return nil
}

// Parallel3 is the three operand form of Parallel2.
func Parallel3[E0, E1, E2 Element](m0, m1, m2 Matrix, flags [3]int, fn func(a []E0, b []E1, c []E2)) error {
	h0, err := hold[E0](m0)
	if err != nil {
		return err
	}
	defer release(h0)
	h1, err := hold[E1](m1)
	if err != nil {
		return err
	}
	defer release(h1)
	h2, err := hold[E2](m2)
	if err != nil {
		return err
	}
	defer release(h2)

	dims, planes := Intersect(h0.info, h1.info, h2.info)
	if planes == 0 || len(dims) == 0 {
		return nil
	}
	calc := func(dimcount int, dim []int64, planecount int, mi0 *max.MatrixInfo, bp0 unsafe.Pointer, mi1 *max.MatrixInfo, bp1 unsafe.Pointer, mi2 *max.MatrixInfo, bp2 unsafe.Pointer) {
		defer object.Boundary(debug.Logger(), "parallel_calc")
		ops := []operand{
			{base: bp0, stride: mi0.DimStride[:]},
			{base: bp1, stride: mi1.DimStride[:]},
			{base: bp2, stride: mi2.DimStride[:]},
		}
		walk(dim[:dimcount], ops, func(p []unsafe.Pointer) bool {
			fn(unsafe.Slice((*E0)(p[0]), planecount),
				unsafe.Slice((*E1)(p[1]), planecount),
				unsafe.Slice((*E2)(p[2]), planecount))
			return true
		})
	}
	m0.rt.ParallelNDimSimpleCalc3(calc, len(dims), dims, planes,
		&h0.info.MatrixInfo, h0.data,
		&h1.info.MatrixInfo, h1.data,
		&h2.info.MatrixInfo, h2.data,
		flags[0], flags[1], flags[2])
	return nil
}
