// Package outlet sends messages out of an object's outlets.
package outlet

import (
	"unsafe"

	"github.com/samber/oops"

	"github.com/justyntemme/gomedian/pkg/max"
)

// Kind is the message type an outlet is declared with. The host uses it
// for patch cord checking only.
type Kind string

const (
	Any      Kind = ""
	Bang     Kind = max.SymBang
	Int      Kind = max.SymInt
	Float    Kind = max.SymFloat
	List     Kind = max.SymList
	Anything Kind = max.SymAnything
	Signal   Kind = max.SymSignal
)

// Outlet is one outlet of a host instance.
type Outlet struct {
	rt     max.Runtime
	handle max.Outlet
	kind   Kind
	index  int
}

// New appends an outlet to obj. Outlets are numbered left to right in the
// order they are created.
func New(rt max.Runtime, obj unsafe.Pointer, kind Kind, index int) (*Outlet, error) {
	o := Declare(kind, index)
	if err := o.Bind(rt, obj); err != nil {
		return nil, err
	}
	return o, nil
}

// Declare describes an outlet without creating it. Bind creates it.
func Declare(kind Kind, index int) *Outlet {
	return &Outlet{kind: kind, index: index}
}

// Bind appends the declared outlet to obj.
func (o *Outlet) Bind(rt max.Runtime, obj unsafe.Pointer) error {
	if o.handle != 0 {
		return oops.With("outlet", o.index).Errorf("outlet already bound")
	}
	var typ *max.Symbol
	if o.kind != Any {
		typ = rt.Gensym(string(o.kind))
	}
	h := rt.OutletAppend(obj, typ)
	if h == 0 {
		return oops.Code(max.CodeOutOfMemory).With("kind", string(o.kind)).Errorf("host refused outlet")
	}
	o.rt, o.handle = rt, h
	return nil
}

// Bound reports whether the outlet exists on the host.
func (o *Outlet) Bound() bool { return o.handle != 0 }

// Kind returns the declared message type.
func (o *Outlet) Kind() Kind { return o.kind }

// Index returns the outlet position, counting from 0 at the left.
func (o *Outlet) Index() int { return o.index }

// Handle returns the host outlet.
func (o *Outlet) Handle() max.Outlet { return o.handle }

func (o *Outlet) sent(ok bool, sel string) error {
	if ok {
		return nil
	}
	return oops.Code(max.CodeOutletStackOverflow).
		With("outlet", o.index).With("selector", sel).
		Errorf("stack overflow")
}

func (o *Outlet) unbound(sel string) error {
	return oops.With("outlet", o.index).With("selector", sel).Errorf("outlet is not bound")
}

// Bang sends bang.
func (o *Outlet) Bang() error {
	if o.handle == 0 {
		return o.unbound(max.SymBang)
	}
	return o.sent(o.rt.OutletBang(o.handle), max.SymBang)
}

// Int sends an integer.
func (o *Outlet) Int(v int64) error {
	if o.handle == 0 {
		return o.unbound(max.SymInt)
	}
	return o.sent(o.rt.OutletInt(o.handle, v), max.SymInt)
}

// Float sends a float.
func (o *Outlet) Float(v float64) error {
	if o.handle == 0 {
		return o.unbound(max.SymFloat)
	}
	return o.sent(o.rt.OutletFloat(o.handle, v), max.SymFloat)
}

// List sends a list.
func (o *Outlet) List(argv []max.Atom) error {
	if o.handle == 0 {
		return o.unbound(max.SymList)
	}
	return o.sent(o.rt.OutletList(o.handle, argv), max.SymList)
}

// Anything sends an arbitrary selector with arguments.
func (o *Outlet) Anything(sel *max.Symbol, argv []max.Atom) error {
	if o.handle == 0 {
		return o.unbound(sel.Name())
	}
	return o.sent(o.rt.OutletAnything(o.handle, sel, argv), sel.Name())
}

// Symbol sends a symbol as "symbol <s>".
func (o *Outlet) Symbol(s *max.Symbol) error {
	if o.handle == 0 {
		return o.unbound(max.SymSymbol)
	}
	return o.Anything(o.rt.Gensym(max.SymSymbol), []max.Atom{max.SymAtom(s)})
}
