package simhost

import (
	"fmt"
	"sort"
	"sync/atomic"
	"unsafe"

	"github.com/justyntemme/gomedian/pkg/max"
)

type method struct {
	name  string
	fn    max.Method
	kinds []max.AtomType
}

type class struct {
	handle    max.Class
	name      string
	ns        string
	jit       bool
	newFn     max.NewMethod
	jitNew    max.JitNewMethod
	freeFn    max.FreeMethod
	size      uintptr
	argKinds  []max.AtomType
	methods   map[string]*method
	attrs     map[string]*attribute
	attrOrder []string
	dsp       bool
	mop       *mop
}

type inletKind int

const (
	inletDefault inletKind = iota
	inletSignal
	inletInt
	inletFloat
	inletProxy
)

func (k inletKind) String() string {
	switch k {
	case inletSignal:
		return "signal"
	case inletInt:
		return "int"
	case inletFloat:
		return "float"
	case inletProxy:
		return "proxy"
	default:
		return "default"
	}
}

type inletSlot struct {
	kind  inletKind
	index int
}

type object struct {
	ptr          unsafe.Pointer
	class        *class
	inlets       []inletSlot
	outlets      []max.Outlet
	signalInlets int
	dspSetup     bool
	current      atomic.Int32
	freed        bool
}

// InletInfo describes one inlet of an instance, left to right.
type InletInfo struct {
	Kind  string
	Index int
}

// ClassInfo summarizes a registered class.
type ClassInfo struct {
	Name      string
	Namespace string
	Methods   []string
	Attrs     []string
	DSP       bool
	Jitter    bool
}

func (h *Host) newClass(name string, size uintptr) *class {
	c := &class{
		handle:  max.Class(h.handle()),
		name:    name,
		size:    size,
		methods: make(map[string]*method),
		attrs:   make(map[string]*attribute),
	}
	h.classes[c.handle] = c
	return c
}

// ClassNew creates an unregistered class.
func (h *Host) ClassNew(name string, newFn max.NewMethod, freeFn max.FreeMethod, size uintptr, argKinds ...max.AtomType) max.Class {
	if name == "" || newFn == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.newClass(name, size)
	c.newFn = newFn
	c.freeFn = freeFn
	c.argKinds = append([]max.AtomType(nil), argKinds...)
	return c.handle
}

func (h *Host) addMethod(c max.Class, name string, m max.Method, kinds []max.AtomType) max.Err {
	if m == nil || name == "" {
		return max.ErrInvalidPtr
	}
	if len(kinds) > max.MaxTypedArgs {
		return max.ErrGeneric
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	cl, ok := h.classes[c]
	if !ok {
		return max.ErrInvalidPtr
	}
	cl.methods[name] = &method{name: name, fn: m, kinds: append([]max.AtomType(nil), kinds...)}
	return max.ErrNone
}

// ClassAddMethod adds or replaces a method.
func (h *Host) ClassAddMethod(c max.Class, name string, m max.Method, kinds ...max.AtomType) max.Err {
	return h.addMethod(c, name, m, kinds)
}

// ClassAddAttr attaches an attribute object to a class.
func (h *Host) ClassAddAttr(c max.Class, a max.Attr) max.Err {
	h.mu.Lock()
	defer h.mu.Unlock()
	cl, ok := h.classes[c]
	if !ok {
		return max.ErrInvalidPtr
	}
	at, ok := h.attrs[a]
	if !ok {
		return max.ErrInvalidPtr
	}
	if _, dup := cl.attrs[at.name]; dup {
		return max.ErrDuplicate
	}
	cl.attrs[at.name] = at
	cl.attrOrder = append(cl.attrOrder, at.name)
	return max.ErrNone
}

// ClassDSPInit marks a class as an MSP class.
func (h *Host) ClassDSPInit(c max.Class) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cl, ok := h.classes[c]; ok {
		cl.dsp = true
	}
}

// ClassRegister publishes a class under a namespace. Registering a second
// class under a name already taken fails with ErrDuplicate.
func (h *Host) ClassRegister(ns *max.Symbol, c max.Class) max.Err {
	h.mu.Lock()
	defer h.mu.Unlock()
	cl, ok := h.classes[c]
	if !ok {
		return max.ErrInvalidPtr
	}
	key := ns.Name() + "/" + cl.name
	if existing, ok := h.byName[key]; ok {
		if existing == cl {
			return max.ErrNone
		}
		return max.ErrDuplicate
	}
	cl.ns = ns.Name()
	h.byName[key] = cl
	return max.ErrNone
}

// ClassFindByName looks up a registered class.
func (h *Host) ClassFindByName(ns, name *max.Symbol) max.Class {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cl, ok := h.byName[ns.Name()+"/"+name.Name()]; ok {
		return cl.handle
	}
	return 0
}

func (h *Host) allocObject(c max.Class) unsafe.Pointer {
	h.mu.Lock()
	defer h.mu.Unlock()
	cl, ok := h.classes[c]
	if !ok {
		return nil
	}
	p := h.allocLocked(cl.size)
	if p == nil {
		return nil
	}
	*(*uint64)(p) = objectMagic
	*(*uint64)(unsafe.Add(p, 8)) = uint64(cl.handle)
	o := &object{ptr: p, class: cl, inlets: []inletSlot{{kind: inletDefault}}}
	h.objects[p] = o
	return p
}

// ObjectAlloc allocates a zeroed instance of a class and stamps its header.
func (h *Host) ObjectAlloc(c max.Class) unsafe.Pointer {
	return h.allocObject(c)
}

// ObjectFree calls the class destructor and releases the instance memory.
func (h *Host) ObjectFree(obj unsafe.Pointer) max.Err {
	h.mu.Lock()
	o, ok := h.objects[obj]
	if !ok || o.freed {
		h.mu.Unlock()
		return max.ErrInvalidPtr
	}
	o.freed = true
	freeFn := o.class.freeFn
	h.mu.Unlock()

	if freeFn != nil {
		freeFn(obj)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, out := range o.outlets {
		delete(h.outlets, out)
	}
	h.removeFromChainLocked(obj)
	h.detachClientLocked(obj)
	delete(h.objects, obj)
	delete(h.allocs, uintptr(obj))
	return max.ErrNone
}

func (h *Host) object(obj unsafe.Pointer) (*object, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.objects[obj]
	if !ok || o.freed {
		return nil, errorf("no live object at %p", obj)
	}
	return o, nil
}

// Header returns the magic and class handle stamped into an instance header.
func (h *Host) Header(obj unsafe.Pointer) (magic uint64, c max.Class) {
	return *(*uint64)(obj), max.Class(*(*uint64)(unsafe.Add(obj, 8)))
}

// NewObject instantiates a registered box class the way a patcher does.
func (h *Host) NewObject(name string, argv ...max.Atom) (unsafe.Pointer, error) {
	h.mu.Lock()
	cl, ok := h.byName[max.NamespaceBox+"/"+name]
	h.mu.Unlock()
	if !ok {
		return nil, errorf("no class named %q", name)
	}
	var p unsafe.Pointer
	h.onThread(ThreadMain, func() {
		p = cl.newFn(h.Gensym(name), argv)
	})
	if p == nil {
		return nil, errorf("could not create %q", name)
	}
	return p, nil
}

// FreeObject destroys an instance.
func (h *Host) FreeObject(obj unsafe.Pointer) error {
	var err max.Err
	h.onThread(ThreadMain, func() { err = h.ObjectFree(obj) })
	if err != max.ErrNone {
		return errorf("free %p: %v", obj, err)
	}
	return nil
}

// LiveObjects counts instances that have not been freed.
func (h *Host) LiveObjects() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.objects)
}

// Inlets lists the inlets of an instance from left to right.
func (h *Host) Inlets(obj unsafe.Pointer) []InletInfo {
	o, err := h.object(obj)
	if err != nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]InletInfo, len(o.inlets))
	for i, in := range o.inlets {
		out[i] = InletInfo{Kind: in.kind.String(), Index: in.index}
	}
	return out
}

// Classes lists registered classes sorted by name.
func (h *Host) Classes() []ClassInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ClassInfo, 0, len(h.byName))
	for _, cl := range h.byName {
		info := ClassInfo{Name: cl.name, Namespace: cl.ns, DSP: cl.dsp, Jitter: cl.jit}
		for name := range cl.methods {
			info.Methods = append(info.Methods, name)
		}
		sort.Strings(info.Methods)
		info.Attrs = append(info.Attrs, cl.attrOrder...)
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (cl *class) lookup(name string) *method {
	return cl.methods[name]
}

// Send delivers a message to an inlet of an instance, as a patch cord would.
func (h *Host) Send(obj unsafe.Pointer, inlet int, sel string, argv ...max.Atom) error {
	o, err := h.object(obj)
	if err != nil {
		return err
	}
	if inlet < 0 || inlet >= len(o.inlets) {
		return errorf("%s has no inlet %d", o.class.name, inlet)
	}
	slot := o.inlets[inlet]
	switch slot.kind {
	case inletInt, inletFloat:
		if len(argv) == 0 || (sel != max.SymInt && sel != max.SymFloat && sel != max.SymList) {
			return errorf("%s: inlet %d only accepts numbers", o.class.name, inlet)
		}
		prefix := "in"
		if slot.kind == inletFloat {
			prefix = "ft"
		}
		m := o.class.lookup(fmt.Sprintf("%s%d", prefix, slot.index))
		if m == nil {
			return errorf("%s: no %s%d method", o.class.name, prefix, slot.index)
		}
		return h.invoke(o, m, h.Gensym(m.name), argv[:1])
	}

	id := int32(inlet)
	if slot.kind == inletProxy {
		id = int32(slot.index)
	}
	prev := o.current.Swap(id)
	defer o.current.Store(prev)
	return h.dispatch(o, h.Gensym(sel), argv)
}

// SendAtoms interprets argv the way a message box does: a leading number
// makes an int, float or list message, a leading symbol is the selector.
func (h *Host) SendAtoms(obj unsafe.Pointer, inlet int, argv []max.Atom) error {
	if len(argv) == 0 {
		return h.Send(obj, inlet, max.SymBang)
	}
	first := &argv[0]
	switch first.Type() {
	case max.ASym:
		return h.Send(obj, inlet, first.Sym().Name(), argv[1:]...)
	case max.ALong:
		if len(argv) == 1 {
			return h.Send(obj, inlet, max.SymInt, argv...)
		}
	case max.AFloat:
		if len(argv) == 1 {
			return h.Send(obj, inlet, max.SymFloat, argv...)
		}
	}
	return h.Send(obj, inlet, max.SymList, argv...)
}

func (h *Host) dispatch(o *object, sel *max.Symbol, argv []max.Atom) error {
	if m := o.class.lookup(sel.Name()); m != nil {
		return h.invoke(o, m, sel, argv)
	}
	switch sel.Name() {
	case max.SymInt:
		if m := o.class.lookup(max.SymFloat); m != nil {
			return h.invoke(o, m, h.Gensym(max.SymFloat), argv)
		}
	case max.SymFloat:
		if m := o.class.lookup(max.SymInt); m != nil {
			return h.invoke(o, m, h.Gensym(max.SymInt), argv)
		}
	case max.SymList:
		if len(argv) == 1 {
			switch argv[0].Type() {
			case max.ALong:
				if m := o.class.lookup(max.SymInt); m != nil {
					return h.invoke(o, m, h.Gensym(max.SymInt), argv)
				}
			case max.AFloat:
				if m := o.class.lookup(max.SymFloat); m != nil {
					return h.invoke(o, m, h.Gensym(max.SymFloat), argv)
				}
			}
		}
	}
	if m := o.class.lookup(max.SymAnything); m != nil {
		return h.invoke(o, m, sel, argv)
	}
	return errorf("%s: doesn't understand %q", o.class.name, sel.Name())
}

func (h *Host) invoke(o *object, m *method, sel *max.Symbol, argv []max.Atom) error {
	switch fn := m.fn.(type) {
	case max.BangMethod:
		fn(o.ptr)
	case max.TypedMethod:
		words, err := h.coerce(o.class.name, m, argv)
		if err != nil {
			return err
		}
		fn(o.ptr, words)
	case max.GimmeMethod:
		fn(o.ptr, sel, argv)
	default:
		return errorf("%s: method %q cannot be called by message", o.class.name, m.name)
	}
	return nil
}

// coerce converts atoms to the words a typed method expects, substituting
// zero values for omitted DEF* arguments.
func (h *Host) coerce(className string, m *method, argv []max.Atom) ([]max.Word, error) {
	words := make([]max.Word, len(m.kinds))
	for i, k := range m.kinds {
		if i >= len(argv) {
			if !k.Defaulted() {
				return nil, errorf("%s: %s: missing argument %d", className, m.name, i+1)
			}
			if k == max.ADefSym {
				words[i].Sym = h.Gensym("")
			}
			continue
		}
		a := &argv[i]
		switch k.Base() {
		case max.ALong:
			if a.Type() != max.ALong && a.Type() != max.AFloat {
				return nil, errorf("%s: %s: bad argument %d", className, m.name, i+1)
			}
			words[i].Long = a.Long()
		case max.AFloat:
			if a.Type() != max.ALong && a.Type() != max.AFloat {
				return nil, errorf("%s: %s: bad argument %d", className, m.name, i+1)
			}
			words[i].Float = a.Float()
		case max.ASym:
			if a.Type() != max.ASym {
				return nil, errorf("%s: %s: bad argument %d", className, m.name, i+1)
			}
			words[i].Sym = a.Sym()
		}
	}
	return words, nil
}

// Assist asks an instance for the hover text of an inlet or outlet.
func (h *Host) Assist(obj unsafe.Pointer, kind max.AssistKind, index int) (string, error) {
	o, err := h.object(obj)
	if err != nil {
		return "", err
	}
	m := o.class.lookup(max.SymAssist)
	fn, ok := m.fnAssist()
	if !ok {
		return "", errorf("%s has no assist method", o.class.name)
	}
	return fn(obj, nil, kind, index), nil
}

func (m *method) fnAssist() (max.AssistMethod, bool) {
	if m == nil {
		return nil, false
	}
	fn, ok := m.fn.(max.AssistMethod)
	return fn, ok
}

// MethodKinds returns the kind list a method was registered with.
func (h *Host) MethodKinds(className, sel string) ([]max.AtomType, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cl := range h.classes {
		if cl.name != className {
			continue
		}
		if m, ok := cl.methods[sel]; ok {
			return append([]max.AtomType(nil), m.kinds...), true
		}
	}
	return nil, false
}
