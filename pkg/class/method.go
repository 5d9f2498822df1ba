package class

import (
	"unsafe"

	"github.com/samber/oops"

	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/object"
)

// Arg is the set of Go types a typed method argument may have.
type Arg interface {
	int64 | float64 | *max.Symbol
}

type shape int

const (
	shapeBang shape = iota
	shapeTyped
	shapeGimme
)

// Method describes one message a class responds to. It is immutable; the
// With* methods return modified copies.
type Method[T any] struct {
	name     string
	shape    shape
	kinds    []max.AtomType
	defaults int
	bang     func(*T)
	typed    func(*T, []max.Word)
	gimme    func(*T, *max.Symbol, []max.Atom)
}

// Selector returns the message name.
func (m Method[T]) Selector() string { return m.name }

// Kinds returns the declared argument kinds, before defaults are applied.
func (m Method[T]) Kinds() []max.AtomType { return append([]max.AtomType(nil), m.kinds...) }

// Defaults returns the number of trailing arguments that may be omitted.
func (m Method[T]) Defaults() int { return m.defaults }

// WithDefaults lets the last n arguments be omitted. Omitted ints and floats
// arrive as zero and omitted symbols as the host's empty symbol.
func (m Method[T]) WithDefaults(n int) Method[T] {
	m.defaults = n
	return m
}

func kindOf[A Arg]() max.AtomType {
	var zero A
	switch any(zero).(type) {
	case int64:
		return max.ALong
	case float64:
		return max.AFloat
	default:
		return max.ASym
	}
}

func argAt[A Arg](args []max.Word, i int) A {
	var out A
	if i >= len(args) {
		return out
	}
	switch p := any(&out).(type) {
	case *int64:
		*p = args[i].Long
	case *float64:
		*p = args[i].Float
	case **max.Symbol:
		*p = args[i].Sym
	}
	return out
}

// ApplyDefaults converts the last n kinds to their DEF* variants. At most
// len(kinds) defaults are allowed, and the defaulted kinds must be all
// floats or all non-floats.
func ApplyDefaults(kinds []max.AtomType, n int) ([]max.AtomType, error) {
	if n < 0 || n > len(kinds) {
		return nil, oops.Code(max.CodeMethodInvalid).
			With("args", len(kinds)).With("defaults", n).
			Errorf("more defaults than arguments")
	}
	out := append([]max.AtomType(nil), kinds...)
	tail := out[len(out)-n:]
	floats := 0
	for _, k := range tail {
		if k.Base() == max.AFloat {
			floats++
		}
	}
	if floats != 0 && floats != len(tail) {
		return nil, oops.Code(max.CodeMethodInvalid).Errorf("defaults mix float and non-float arguments")
	}
	for i, k := range tail {
		switch k.Base() {
		case max.ALong:
			tail[i] = max.ADefLong
		case max.AFloat:
			tail[i] = max.ADefFloat
		case max.ASym:
			tail[i] = max.ADefSym
		}
	}
	return out, nil
}

func (m Method[T]) install(c *Class[T]) error {
	if m.name == "" {
		return oops.Code(max.CodeMethodInvalid).Errorf("method has no selector")
	}
	kinds := m.kinds
	var raw max.Method
	switch m.shape {
	case shapeBang:
		raw = c.bangTrampoline(m.name, m.bang)
	case shapeGimme:
		raw = c.gimmeTrampoline(m.name, m.gimme)
		kinds = []max.AtomType{max.AGimme}
	case shapeTyped:
		if !Supported(kinds) {
			return oops.Code(max.CodeMethodInvalid).
				With("selector", m.name).With("signature", signatureKey(kinds)).
				Errorf("unsupported argument signature")
		}
		var err error
		if kinds, err = ApplyDefaults(kinds, m.defaults); err != nil {
			return oops.With("selector", m.name).Wrap(err)
		}
		raw = c.typedTrampoline(m.name, m.typed)
	}
	if m.shape != shapeTyped && m.defaults != 0 {
		return oops.Code(max.CodeMethodInvalid).With("selector", m.name).Errorf("only typed methods take defaults")
	}
	return c.AddRaw(m.name, raw, kinds...)
}

func (c *Class[T]) bangTrampoline(sel string, fn func(*T)) max.BangMethod {
	return func(self unsafe.Pointer) {
		defer object.Boundary(c.log, sel)
		t, err := c.borrow(self)
		if err != nil {
			c.drop(sel, err)
			return
		}
		c.Delivered(sel)
		fn(t)
	}
}

func (c *Class[T]) typedTrampoline(sel string, fn func(*T, []max.Word)) max.TypedMethod {
	return func(self unsafe.Pointer, args []max.Word) {
		defer object.Boundary(c.log, sel)
		t, err := c.borrow(self)
		if err != nil {
			c.drop(sel, err)
			return
		}
		c.Delivered(sel)
		fn(t, args)
	}
}

func (c *Class[T]) gimmeTrampoline(sel string, fn func(*T, *max.Symbol, []max.Atom)) max.GimmeMethod {
	return func(self unsafe.Pointer, s *max.Symbol, argv []max.Atom) {
		defer object.Boundary(c.log, sel)
		t, err := c.borrow(self)
		if err != nil {
			c.drop(sel, err)
			return
		}
		c.Delivered(sel)
		fn(t, s, argv)
	}
}

// Bang responds to "bang".
func Bang[T any](fn func(*T)) Method[T] {
	return Method[T]{name: max.SymBang, shape: shapeBang, bang: fn}
}

// Int responds to "int".
func Int[T any](fn func(*T, int64)) Method[T] {
	return Sel1(max.SymInt, fn)
}

// Float responds to "float".
func Float[T any](fn func(*T, float64)) Method[T] {
	return Sel1(max.SymFloat, fn)
}

// Symbol responds to "symbol".
func Symbol[T any](fn func(*T, *max.Symbol)) Method[T] {
	return Sel1(max.SymSymbol, fn)
}

// List responds to "list" with the raw atoms.
func List[T any](fn func(*T, []max.Atom)) Method[T] {
	return Method[T]{name: max.SymList, shape: shapeGimme, gimme: func(t *T, _ *max.Symbol, argv []max.Atom) {
		fn(t, argv)
	}}
}

// Anything catches every selector that has no method of its own.
func Anything[T any](fn func(*T, *max.Symbol, []max.Atom)) Method[T] {
	return Method[T]{name: max.SymAnything, shape: shapeGimme, gimme: fn}
}

// Sel responds to a named selector with no arguments.
func Sel[T any](name string, fn func(*T)) Method[T] {
	return Method[T]{name: name, shape: shapeBang, bang: fn}
}

// SelVarArgs responds to a named selector with any number of atoms.
func SelVarArgs[T any](name string, fn func(*T, []max.Atom)) Method[T] {
	return Method[T]{name: name, shape: shapeGimme, gimme: func(t *T, _ *max.Symbol, argv []max.Atom) {
		fn(t, argv)
	}}
}

func typed[T any](name string, kinds []max.AtomType, fn func(*T, []max.Word)) Method[T] {
	return Method[T]{name: name, shape: shapeTyped, kinds: kinds, typed: fn}
}

// Sel1 responds to a named selector with one typed argument.
func Sel1[T any, A0 Arg](name string, fn func(*T, A0)) Method[T] {
	return typed[T](name, []max.AtomType{kindOf[A0]()}, func(t *T, w []max.Word) {
		fn(t, argAt[A0](w, 0))
	})
}

// Sel2 responds to a named selector with two typed arguments.
func Sel2[T any, A0, A1 Arg](name string, fn func(*T, A0, A1)) Method[T] {
	return typed[T](name, []max.AtomType{kindOf[A0](), kindOf[A1]()}, func(t *T, w []max.Word) {
		fn(t, argAt[A0](w, 0), argAt[A1](w, 1))
	})
}

// Sel3 responds to a named selector with three typed arguments.
func Sel3[T any, A0, A1, A2 Arg](name string, fn func(*T, A0, A1, A2)) Method[T] {
	return typed[T](name, []max.AtomType{kindOf[A0](), kindOf[A1](), kindOf[A2]()}, func(t *T, w []max.Word) {
		fn(t, argAt[A0](w, 0), argAt[A1](w, 1), argAt[A2](w, 2))
	})
}

// Sel4 responds to a named selector with four typed arguments.
func Sel4[T any, A0, A1, A2, A3 Arg](name string, fn func(*T, A0, A1, A2, A3)) Method[T] {
	return typed[T](name, []max.AtomType{kindOf[A0](), kindOf[A1](), kindOf[A2](), kindOf[A3]()}, func(t *T, w []max.Word) {
		fn(t, argAt[A0](w, 0), argAt[A1](w, 1), argAt[A2](w, 2), argAt[A3](w, 3))
	})
}

// Sel5 responds to a named selector with five typed arguments.
func Sel5[T any, A0, A1, A2, A3, A4 Arg](name string, fn func(*T, A0, A1, A2, A3, A4)) Method[T] {
	return typed[T](name, []max.AtomType{kindOf[A0](), kindOf[A1](), kindOf[A2](), kindOf[A3](), kindOf[A4]()}, func(t *T, w []max.Word) {
		fn(t, argAt[A0](w, 0), argAt[A1](w, 1), argAt[A2](w, 2), argAt[A3](w, 3), argAt[A4](w, 4))
	})
}

// Sel6 responds to a named selector with six typed arguments.
func Sel6[T any, A0, A1, A2, A3, A4, A5 Arg](name string, fn func(*T, A0, A1, A2, A3, A4, A5)) Method[T] {
	return typed[T](name, []max.AtomType{kindOf[A0](), kindOf[A1](), kindOf[A2](), kindOf[A3](), kindOf[A4](), kindOf[A5]()}, func(t *T, w []max.Word) {
		fn(t, argAt[A0](w, 0), argAt[A1](w, 1), argAt[A2](w, 2), argAt[A3](w, 3), argAt[A4](w, 4), argAt[A5](w, 5))
	})
}

// Sel7 responds to a named selector with seven typed arguments.
func Sel7[T any, A0, A1, A2, A3, A4, A5, A6 Arg](name string, fn func(*T, A0, A1, A2, A3, A4, A5, A6)) Method[T] {
	return typed[T](name, []max.AtomType{kindOf[A0](), kindOf[A1](), kindOf[A2](), kindOf[A3](), kindOf[A4](), kindOf[A5](), kindOf[A6]()}, func(t *T, w []max.Word) {
		fn(t, argAt[A0](w, 0), argAt[A1](w, 1), argAt[A2](w, 2), argAt[A3](w, 3), argAt[A4](w, 4), argAt[A5](w, 5), argAt[A6](w, 6))
	})
}
