package object

import (
	"fmt"
	"unsafe"

	"github.com/justyntemme/gomedian/pkg/max"
)

// Obj is a payload's view of its own host instance.
type Obj struct {
	rt   max.Runtime
	self unsafe.Pointer
}

// NewObj wraps a host instance pointer.
func NewObj(rt max.Runtime, self unsafe.Pointer) Obj {
	return Obj{rt: rt, self: self}
}

// Ptr returns the host instance pointer.
func (o Obj) Ptr() unsafe.Pointer { return o.self }

// Runtime returns the host the instance lives in.
func (o Obj) Runtime() max.Runtime { return o.rt }

// Post prints to the host console on behalf of the instance.
func (o Obj) Post(format string, args ...any) {
	o.rt.ObjectPost(o.self, fmt.Sprintf(format, args...))
}

// Error prints an error on behalf of the instance.
func (o Obj) Error(format string, args ...any) {
	o.rt.ObjectError(o.self, fmt.Sprintf(format, args...))
}

// Notify sends msg to every client attached to the instance.
func (o Obj) Notify(msg string, data unsafe.Pointer) error {
	if err := o.rt.ObjectNotify(o.self, o.rt.Gensym(msg), data); err != max.ErrNone {
		return err
	}
	return nil
}

// AttrTouch tells attached clients that an attribute changed.
func (o Obj) AttrTouch(name string) error {
	if err := o.rt.ObjectAttrTouch(o.self, o.rt.Gensym(name)); err != max.ErrNone {
		return err
	}
	return nil
}

// Sym interns name in the instance's host.
func (o Obj) Sym(name string) *max.Symbol {
	return o.rt.Gensym(name)
}

// Inlet returns the inlet the current message arrived on. It is only
// meaningful inside a message handler of an object with proxy inlets.
func (o Obj) Inlet() int {
	return o.rt.ProxyGetInlet(o.self)
}
