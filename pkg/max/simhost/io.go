package simhost

import (
	"unsafe"

	"github.com/justyntemme/gomedian/pkg/max"
)

type inlet struct {
	owner unsafe.Pointer
}

type proxy struct {
	owner unsafe.Pointer
	id    int
}

type cord struct {
	to    unsafe.Pointer
	inlet int
}

type outlet struct {
	owner unsafe.Pointer
	index int
	typ   string
	cords []cord
}

// Output is one message that left an outlet.
type Output struct {
	Outlet   int
	Selector string
	Args     []max.Atom
}

// insertInletLocked places a new secondary inlet immediately right of the
// signal inlets, to the left of every secondary inlet created before it.
func (h *Host) insertInletLocked(o *object, slot inletSlot) {
	pos := 1
	if o.signalInlets > 1 {
		pos = o.signalInlets
	}
	if pos > len(o.inlets) {
		pos = len(o.inlets)
	}
	o.inlets = append(o.inlets, inletSlot{})
	copy(o.inlets[pos+1:], o.inlets[pos:])
	o.inlets[pos] = slot
}

func (h *Host) newInlet(obj unsafe.Pointer, kind inletKind, n int) max.Inlet {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.objects[obj]
	if !ok || n < 1 || n > 9 {
		return 0
	}
	h.insertInletLocked(o, inletSlot{kind: kind, index: n})
	in := max.Inlet(h.handle())
	h.inlets[in] = &inlet{owner: obj}
	return in
}

// IntIn creates an inlet that sends "in<n>" to its owner.
func (h *Host) IntIn(obj unsafe.Pointer, n int) max.Inlet {
	return h.newInlet(obj, inletInt, n)
}

// FloatIn creates an inlet that sends "ft<n>" to its owner.
func (h *Host) FloatIn(obj unsafe.Pointer, n int) max.Inlet {
	return h.newInlet(obj, inletFloat, n)
}

// ProxyNew creates a proxy inlet that forwards messages to its owner with
// the inlet number available through ProxyGetInlet.
func (h *Host) ProxyNew(obj unsafe.Pointer, id int) max.Proxy {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.objects[obj]
	if !ok || id < 1 {
		return 0
	}
	h.insertInletLocked(o, inletSlot{kind: inletProxy, index: id})
	p := max.Proxy(h.handle())
	h.proxies[p] = &proxy{owner: obj, id: id}
	return p
}

// ProxyFree releases a proxy.
func (h *Host) ProxyFree(p max.Proxy) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.proxies, p)
}

// LiveProxies counts proxies not yet freed.
func (h *Host) LiveProxies() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.proxies)
}

// ProxyGetInlet reports which inlet the message being handled arrived on.
func (h *Host) ProxyGetInlet(obj unsafe.Pointer) int {
	h.mu.Lock()
	o, ok := h.objects[obj]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	return int(o.current.Load())
}

// OutletAppend adds an outlet to the right of the existing ones.
func (h *Host) OutletAppend(obj unsafe.Pointer, typ *max.Symbol) max.Outlet {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.objects[obj]
	if !ok {
		return 0
	}
	out := max.Outlet(h.handle())
	h.outlets[out] = &outlet{owner: obj, index: len(o.outlets), typ: typ.Name()}
	o.outlets = append(o.outlets, out)
	return out
}

// Connect draws a patch cord from an outlet of one instance to an inlet of
// another.
func (h *Host) Connect(from unsafe.Pointer, outletIndex int, to unsafe.Pointer, inletIndex int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.objects[from]
	if !ok || outletIndex < 0 || outletIndex >= len(o.outlets) {
		return errorf("no outlet %d on %p", outletIndex, from)
	}
	if _, ok := h.objects[to]; !ok {
		return errorf("no object at %p", to)
	}
	out := h.outlets[o.outlets[outletIndex]]
	out.cords = append(out.cords, cord{to: to, inlet: inletIndex})
	return nil
}

// Outlets lists the outlet types of an instance, left to right.
func (h *Host) Outlets(obj unsafe.Pointer) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.objects[obj]
	if !ok {
		return nil
	}
	types := make([]string, len(o.outlets))
	for i, out := range o.outlets {
		types[i] = h.outlets[out].typ
	}
	return types
}

// Outputs returns and clears everything the instance has sent.
func (h *Host) Outputs(obj unsafe.Pointer) []Output {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.objects[obj]
	if !ok {
		return nil
	}
	var out []Output
	rest := h.sent[:0]
	for _, s := range h.sent {
		if s.owner == o.ptr {
			out = append(out, s.Output)
		} else {
			rest = append(rest, s)
		}
	}
	h.sent = rest
	return out
}

type sentOutput struct {
	Output
	owner unsafe.Pointer
}

func (h *Host) emit(o max.Outlet, sel string, argv []max.Atom) bool {
	if h.depth.Add(1) > int32(h.stackLimit) {
		h.depth.Add(-1)
		h.Error("stack overflow")
		return false
	}
	defer h.depth.Add(-1)

	h.mu.Lock()
	out, ok := h.outlets[o]
	if !ok {
		h.mu.Unlock()
		return false
	}
	h.sent = append(h.sent, sentOutput{
		Output: Output{Outlet: out.index, Selector: sel, Args: append([]max.Atom(nil), argv...)},
		owner:  out.owner,
	})
	cords := append([]cord(nil), out.cords...)
	h.mu.Unlock()

	for _, c := range cords {
		if err := h.Send(c.to, c.inlet, sel, argv...); err != nil {
			h.Error(err.Error())
		}
	}
	return true
}

// OutletBang sends bang.
func (h *Host) OutletBang(o max.Outlet) bool {
	return h.emit(o, max.SymBang, nil)
}

// OutletInt sends an int.
func (h *Host) OutletInt(o max.Outlet, v int64) bool {
	return h.emit(o, max.SymInt, []max.Atom{max.LongAtom(v)})
}

// OutletFloat sends a float.
func (h *Host) OutletFloat(o max.Outlet, v float64) bool {
	return h.emit(o, max.SymFloat, []max.Atom{max.FloatAtom(v)})
}

// OutletList sends a list.
func (h *Host) OutletList(o max.Outlet, argv []max.Atom) bool {
	return h.emit(o, max.SymList, argv)
}

// OutletAnything sends an arbitrary selector.
func (h *Host) OutletAnything(o max.Outlet, sel *max.Symbol, argv []max.Atom) bool {
	return h.emit(o, sel.Name(), argv)
}
