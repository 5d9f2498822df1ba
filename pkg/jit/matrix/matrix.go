// Package matrix gives typed, strided access to Jitter matrices and wraps Go
// types as Jitter matrix operators.
package matrix

import (
	"unsafe"

	"github.com/samber/oops"

	"github.com/justyntemme/gomedian/pkg/max"
)

// Element is a primitive matrix element type: char, long, float32 or
// float64.
type Element interface {
	uint8 | int32 | float32 | float64
}

// TypeOf returns the matrix type name for E.
func TypeOf[E Element]() string {
	var zero E
	switch any(zero).(type) {
	case uint8:
		return max.SymChar
	case int32:
		return max.SymLong
	case float32:
		return max.SymFloat32
	default:
		return max.SymFloat64
	}
}

// ElemSize returns the byte size of one plane of type typ, or 0 for an
// unknown type.
func ElemSize(typ string) int64 {
	switch typ {
	case max.SymChar:
		return 1
	case max.SymLong, max.SymFloat32:
		return 4
	case max.SymFloat64:
		return 8
	default:
		return 0
	}
}

// Info describes a matrix without owning its data.
type Info struct {
	max.MatrixInfo
}

// NewInfo describes a packed matrix of the given type, plane count and
// dimensions. Strides are filled in by the host when the info is applied.
func NewInfo(syms max.Symbols, typ string, planes int, dims ...int64) Info {
	var info Info
	info.Type = syms.Gensym(typ)
	info.PlaneCount = int64(planes)
	info.DimCount = int64(len(dims))
	copy(info.Dim[:], dims)
	return info
}

// TypeName returns the element type name.
func (i Info) TypeName() string { return i.Type.Name() }

// Dims returns the size of every dimension.
func (i Info) Dims() []int64 { return i.Dim[:i.DimCount] }

// Planes returns the plane count.
func (i Info) Planes() int { return int(i.PlaneCount) }

// ElemSize returns the byte size of one plane.
func (i Info) ElemSize() int64 { return ElemSize(i.TypeName()) }

// Len returns the number of cells in the matrix.
func (i Info) Len() int64 {
	if i.DimCount == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range i.Dims() {
		n *= d
	}
	return n
}

// checkType fails unless the matrix holds elements of type E.
func checkType[E Element](info Info) error {
	if want := TypeOf[E](); info.TypeName() != want {
		return oops.Code(max.CodeMatrixTypeMismatch).
			With("want", want).
			With("have", info.TypeName()).
			Errorf("matrix element type mismatch")
	}
	return nil
}

// Matrix is a reference to a host matrix.
type Matrix struct {
	rt  max.Jitter
	ptr unsafe.Pointer
}

// Wrap refers to the host matrix at p.
func Wrap(rt max.Jitter, p unsafe.Pointer) Matrix {
	return Matrix{rt: rt, ptr: p}
}

// Ptr returns the host matrix pointer.
func (m Matrix) Ptr() unsafe.Pointer { return m.ptr }

// Valid reports whether the matrix refers to anything.
func (m Matrix) Valid() bool { return m.ptr != nil }

// Lock locks the matrix and returns a guard that restores the previous lock
// state on Unlock.
func (m Matrix) Lock() (*Guard, error) {
	if m.ptr == nil {
		return nil, oops.Code(max.CodeMatrixInvalidPtr).Errorf("matrix is nil")
	}
	return &Guard{m: m, prev: m.rt.MatrixLock(m.ptr, 1)}, nil
}

// Guard is a locked matrix.
type Guard struct {
	m        Matrix
	prev     int64
	released bool
}

// Matrix returns the locked matrix.
func (g *Guard) Matrix() Matrix { return g.m }

// Info reads the matrix description.
func (g *Guard) Info() (Info, error) {
	var info Info
	if e := g.m.rt.MatrixGetInfo(g.m.ptr, &info.MatrixInfo); e != max.ErrNone {
		return Info{}, oops.Code(max.CodeMatrixLock).Wrap(e)
	}
	return info, nil
}

// SetInfo reshapes the matrix. Previously read data pointers are invalid
// afterwards.
func (g *Guard) SetInfo(info Info) error {
	if e := g.m.rt.MatrixSetInfo(g.m.ptr, &info.MatrixInfo); e != max.ErrNone {
		return oops.Code(max.CodeMatrixInvalidPtr).With("type", info.TypeName()).Wrap(e)
	}
	return nil
}

// Data returns the matrix buffer. A matrix without data is an error.
func (g *Guard) Data() (unsafe.Pointer, error) {
	p := g.m.rt.MatrixGetData(g.m.ptr)
	if p == nil {
		return nil, oops.Code(max.CodeMatrixInvalidPtr).Errorf("matrix has no data")
	}
	return p, nil
}

// Unlock restores the lock state found by Lock. Calling it again does
// nothing.
func (g *Guard) Unlock() {
	if g.released {
		return
	}
	g.released = true
	g.m.rt.MatrixLock(g.m.ptr, g.prev)
}

// Elements returns the whole matrix buffer as a slice of E, padding
// included. Use strides from Info to address cells.
func Elements[E Element](g *Guard) ([]E, Info, error) {
	info, err := g.Info()
	if err != nil {
		return nil, Info{}, err
	}
	if err := checkType[E](info); err != nil {
		return nil, Info{}, err
	}
	p, err := g.Data()
	if err != nil {
		return nil, Info{}, err
	}
	return unsafe.Slice((*E)(p), info.Size/info.ElemSize()), info, nil
}
