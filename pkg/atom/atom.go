// Package atom converts between host atoms and native Go values.
//
// Integers and floats marshal losslessly within their native range. Symbols
// marshal as the interned *max.Symbol handle, never as a copied string.
package atom

import (
	"strconv"
	"strings"
	"unsafe"

	"github.com/justyntemme/gomedian/pkg/max"
)

// Value is the set of Go types that have a direct atom representation.
type Value interface {
	int64 | int | int32 | bool | float64 | float32 | *max.Symbol | unsafe.Pointer
}

// KindOf returns the atom tag values of type T marshal to.
func KindOf[T Value]() max.AtomType {
	var zero T
	switch any(zero).(type) {
	case int64, int, int32, bool:
		return max.ALong
	case float64, float32:
		return max.AFloat
	case *max.Symbol:
		return max.ASym
	default:
		return max.AObj
	}
}

// From marshals v into a new atom.
func From[T Value](v T) max.Atom {
	switch x := any(v).(type) {
	case int64:
		return max.LongAtom(x)
	case int:
		return max.LongAtom(int64(x))
	case int32:
		return max.LongAtom(int64(x))
	case bool:
		if x {
			return max.LongAtom(1)
		}
		return max.LongAtom(0)
	case float64:
		return max.FloatAtom(x)
	case float32:
		return max.FloatAtom(float64(x))
	case *max.Symbol:
		return max.SymAtom(x)
	case unsafe.Pointer:
		return max.ObjAtom(x)
	}
	panic("unreachable")
}

// To unmarshals a into a T, applying the host's numeric coercions.
func To[T Value](a *max.Atom) T {
	var out T
	if a == nil {
		return out
	}
	switch p := any(&out).(type) {
	case *int64:
		*p = a.Long()
	case *int:
		*p = int(a.Long())
	case *int32:
		*p = int32(a.Long())
	case *bool:
		*p = a.Long() != 0
	case *float64:
		*p = a.Float()
	case *float32:
		*p = float32(a.Float())
	case **max.Symbol:
		*p = a.Sym()
	case *unsafe.Pointer:
		*p = a.Obj()
	}
	return out
}

// Set overwrites a with v.
func Set[T Value](a *max.Atom, v T) max.Err {
	if a == nil {
		return max.ErrInvalidPtr
	}
	*a = From(v)
	return max.ErrNone
}

// Slice marshals every value in vs.
func Slice[T Value](vs ...T) []max.Atom {
	out := make([]max.Atom, len(vs))
	for i, v := range vs {
		out[i] = From(v)
	}
	return out
}

// Parse turns whitespace separated text into atoms: integers become longs,
// other numbers become floats and everything else is interned as a symbol.
func Parse(syms max.Symbols, text string) []max.Atom {
	fields := strings.Fields(text)
	out := make([]max.Atom, 0, len(fields))
	for _, f := range fields {
		if v, err := strconv.ParseInt(f, 10, 64); err == nil {
			out = append(out, max.LongAtom(v))
			continue
		}
		if v, err := strconv.ParseFloat(f, 64); err == nil {
			out = append(out, max.FloatAtom(v))
			continue
		}
		out = append(out, max.SymAtom(syms.Gensym(f)))
	}
	return out
}

// Format renders atoms the way the host console prints them.
func Format(argv []max.Atom) string {
	var b strings.Builder
	for i := range argv {
		if i > 0 {
			b.WriteByte(' ')
		}
		a := &argv[i]
		switch a.Type() {
		case max.ALong:
			b.WriteString(strconv.FormatInt(a.Long(), 10))
		case max.AFloat:
			b.WriteString(strconv.FormatFloat(a.Float(), 'f', -1, 64))
		case max.ASym:
			b.WriteString(a.Sym().Name())
		case max.AObj:
			b.WriteString("<obj>")
		default:
			b.WriteString("<nothing>")
		}
	}
	return b.String()
}
