package external

import (
	"errors"
	"unsafe"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/justyntemme/gomedian/pkg/buffer"
	"github.com/justyntemme/gomedian/pkg/clock"
	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/notify"
	"github.com/justyntemme/gomedian/pkg/object"
	"github.com/justyntemme/gomedian/pkg/outlet"
)

type inletKind int

const (
	inletFloat inletKind = iota
	inletInt
	inletProxy
)

type inletDecl[T any] struct {
	kind    inletKind
	pos     int
	intFn   func(*T, int64)
	floatFn func(*T, float64)
}

// Builder collects the topology of a new instance. Declaring things on it
// does not touch the host; everything is created in one pass once the
// constructor returns.
type Builder[T any] struct {
	w    *Wrapper[T]
	self unsafe.Pointer
	name *max.Symbol
	args []max.Atom

	signalIns  int
	signalOuts int
	inlets     []inletDecl[T]
	outlets    []*outlet.Outlet
	assistIn   map[int]string
	assistOut  map[int]string
	buffers    []*buffer.Ref
	clocks     []*clock.Clock
	subs       []notify.Subscriber
	errs       []error
}

func newBuilder[T any](w *Wrapper[T], self unsafe.Pointer, name *max.Symbol, argv []max.Atom) *Builder[T] {
	return &Builder[T]{
		w:         w,
		self:      self,
		name:      name,
		args:      argv,
		assistIn:  make(map[int]string),
		assistOut: make(map[int]string),
	}
}

// Args returns the creation arguments typed after the class name.
func (b *Builder[T]) Args() []max.Atom { return b.args }

// Name returns the name the instance was created with.
func (b *Builder[T]) Name() *max.Symbol { return b.name }

// Obj returns the instance being built.
func (b *Builder[T]) Obj() object.Obj { return object.NewObj(b.w.rt, b.self) }

// Logger returns the class logger.
func (b *Builder[T]) Logger() *zap.Logger { return b.w.log }

func (b *Builder[T]) fail(err error) {
	b.errs = append(b.errs, err)
}

// nextInlet is the position the next non-signal inlet will occupy. Signal
// inlets, including the leftmost one, come first.
func (b *Builder[T]) nextInlet() int {
	first := b.signalIns
	if first < 1 {
		first = 1
	}
	return first + len(b.inlets)
}

func (b *Builder[T]) addInlet(d inletDecl[T], assist string) int {
	d.pos = b.nextInlet()
	b.inlets = append(b.inlets, d)
	if assist != "" {
		b.assistIn[d.pos] = assist
	}
	return d.pos
}

// DefaultInletAssist sets the hover text of the leftmost inlet.
func (b *Builder[T]) DefaultInletAssist(text string) {
	b.assistIn[0] = text
}

// FloatInlet declares an inlet that calls fn with every number it receives,
// and returns its position.
func (b *Builder[T]) FloatInlet(fn func(*T, float64), assist string) int {
	return b.addInlet(inletDecl[T]{kind: inletFloat, floatFn: fn}, assist)
}

// IntInlet declares an inlet that calls fn with every number it receives,
// and returns its position.
func (b *Builder[T]) IntInlet(fn func(*T, int64), assist string) int {
	return b.addInlet(inletDecl[T]{kind: inletInt, intFn: fn}, assist)
}

// ProxyInlet declares an inlet that accepts any message. Handlers tell which
// inlet a message arrived on with Obj.Inlet, which returns the position
// returned here.
func (b *Builder[T]) ProxyInlet(assist string) int {
	return b.addInlet(inletDecl[T]{kind: inletProxy}, assist)
}

// SignalInlets declares n signal inlets, the leftmost being the default
// inlet. It must be called at most once and before any other inlet.
func (b *Builder[T]) SignalInlets(n int, assist ...string) {
	switch {
	case b.w.kind != max.HeaderPxObject:
		b.fail(oops.Code(max.CodeMethodInvalid).Errorf("signal inlets need a signal class"))
		return
	case b.signalIns > 0 || len(b.inlets) > 0:
		b.fail(oops.Code(max.CodeMethodInvalid).Errorf("signal inlets must be declared once, before other inlets"))
		return
	case n < 1:
		b.fail(oops.Code(max.CodeMethodInvalid).With("count", n).Errorf("signal inlet count must be positive"))
		return
	}
	b.signalIns = n
	for i, text := range assist {
		if i < n {
			b.assistIn[i] = text
		}
	}
}

// Outlet declares an outlet. Outlets appear left to right in declaration
// order and can be used once the constructor has returned.
func (b *Builder[T]) Outlet(kind outlet.Kind, assist string) *outlet.Outlet {
	if kind == outlet.Signal {
		if b.w.kind != max.HeaderPxObject {
			b.fail(oops.Code(max.CodeMethodInvalid).Errorf("signal outlets need a signal class"))
		}
		b.signalOuts++
	}
	o := outlet.Declare(kind, len(b.outlets))
	b.outlets = append(b.outlets, o)
	if assist != "" {
		b.assistOut[o.Index()] = assist
	}
	return o
}

// SignalOutlets declares n signal outlets.
func (b *Builder[T]) SignalOutlets(n int, assist ...string) {
	for i := 0; i < n; i++ {
		text := ""
		if i < len(assist) {
			text = assist[i]
		}
		b.Outlet(outlet.Signal, text)
	}
}

// Buffer declares a reference to the buffer~ called name. The reference
// follows rebinding notifications on its own.
func (b *Builder[T]) Buffer(name string) *buffer.Ref {
	r := buffer.Declare(name)
	b.buffers = append(b.buffers, r)
	return r
}

// Clock declares a clock whose callback receives the payload. The clock is
// freed before the payload's Close runs, and freeing waits for a callback in
// progress, so a callback must not free its own instance. Queue the free
// with Defer instead; it runs on the main thread once the callback returns.
func (b *Builder[T]) Clock(fn func(*T)) *clock.Clock {
	w, self := b.w, b.self
	c := clock.Declare(func() {
		t, err := w.Borrow(self)
		if err != nil {
			return
		}
		fn(t)
	})
	b.clocks = append(b.clocks, c)
	return c
}

// Subscribe routes notifications received by the instance to s.
func (b *Builder[T]) Subscribe(s notify.Subscriber) {
	b.subs = append(b.subs, s)
}

// finalize creates everything the constructor declared. Inlets are created
// right to left because the host inserts each new inlet to the left of the
// previous ones. On error every host object created so far is released.
func (b *Builder[T]) finalize(v *T) (*cell[T], error) {
	if len(b.errs) > 0 {
		return nil, oops.Code(max.CodeMethodInvalid).
			With("class", b.w.def.Name).
			Wrap(errors.Join(b.errs...))
	}
	rt := b.w.rt
	c := &cell[T]{
		value:     v,
		assistIn:  b.assistIn,
		assistOut: b.assistOut,
		block:     newBlock(b.signalIns, b.signalOuts),
	}
	if p, ok := any(v).(Performer); ok {
		c.performer = p
	}

	if b.w.kind == max.HeaderPxObject {
		rt.DSPSetup(b.self, b.signalIns)
	}

	err := b.createInlets(c)
	if err == nil {
		err = b.createOutlets()
	}
	if err == nil {
		err = b.bindResources(c)
	}
	if err != nil {
		b.w.releaseHost(b.self, c)
		return nil, err
	}
	c.subs = append(c.subs, b.subs...)
	return c, nil
}

func (b *Builder[T]) createInlets(c *cell[T]) error {
	rt := b.w.rt
	for i := len(b.inlets) - 1; i >= 0; i-- {
		d := b.inlets[i]
		if d.kind != inletProxy && (d.pos < 1 || d.pos > maxNumberInlet) {
			return oops.Code(max.CodeMethodInvalid).
				With("inlet", d.pos).
				Errorf("number inlets must be within 1..%d", maxNumberInlet)
		}
		switch d.kind {
		case inletFloat:
			if rt.FloatIn(b.self, d.pos) == 0 {
				return oops.Code(max.CodeOutOfMemory).With("inlet", d.pos).Errorf("host refused float inlet")
			}
			c.floatIn[d.pos] = d.floatFn
		case inletInt:
			if rt.IntIn(b.self, d.pos) == 0 {
				return oops.Code(max.CodeOutOfMemory).With("inlet", d.pos).Errorf("host refused int inlet")
			}
			c.intIn[d.pos] = d.intFn
		case inletProxy:
			p := rt.ProxyNew(b.self, d.pos)
			if p == 0 {
				return oops.Code(max.CodeOutOfMemory).With("inlet", d.pos).Errorf("host refused proxy inlet")
			}
			c.proxies = append(c.proxies, p)
		}
	}
	return nil
}

func (b *Builder[T]) createOutlets() error {
	for _, o := range b.outlets {
		if err := o.Bind(b.w.rt, b.self); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder[T]) bindResources(c *cell[T]) error {
	rt := b.w.rt
	for _, r := range b.buffers {
		if err := r.Bind(rt, b.self); err != nil {
			return err
		}
		c.buffers = append(c.buffers, r)
		c.subs = append(c.subs, r)
	}
	for _, ck := range b.clocks {
		if err := ck.Bind(rt, b.self, b.w.log); err != nil {
			return err
		}
		c.clocks = append(c.clocks, ck)
	}
	return nil
}
