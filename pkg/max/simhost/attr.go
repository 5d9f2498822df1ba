package simhost

import (
	"unsafe"

	"github.com/justyntemme/gomedian/pkg/max"
)

type clip struct {
	min, max       float64
	useMin, useMax bool
}

func (c *clip) apply(argv []max.Atom) {
	if c == nil {
		return
	}
	for i := range argv {
		a := &argv[i]
		switch a.Type() {
		case max.AFloat:
			v := a.Float()
			if c.useMin && v < c.min {
				v = c.min
			}
			if c.useMax && v > c.max {
				v = c.max
			}
			a.SetFloat(v)
		case max.ALong:
			v := a.Long()
			if c.useMin && float64(v) < c.min {
				v = int64(c.min)
			}
			if c.useMax && float64(v) > c.max {
				v = int64(c.max)
			}
			a.SetLong(v)
		}
	}
}

type attribute struct {
	handle  max.Attr
	name    string
	typ     string
	flags   max.AttrFlags
	get     max.AttrGetter
	set     max.AttrSetter
	offset  uintptr
	getClip *clip
	setClip *clip
}

// AttrInfo describes an attribute as the host sees it.
type AttrInfo struct {
	Name      string
	Type      string
	Flags     max.AttrFlags
	Offset    uintptr
	HasGetter bool
	HasSetter bool
	GetClip   *[4]float64
	SetClip   *[4]float64
}

// AttrOffsetNew creates an attribute object.
func (h *Host) AttrOffsetNew(name string, typ *max.Symbol, flags max.AttrFlags, get max.AttrGetter, set max.AttrSetter, offset uintptr) max.Attr {
	if name == "" {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	a := &attribute{
		handle: max.Attr(h.handle()),
		name:   name,
		typ:    typ.Name(),
		flags:  flags,
		get:    get,
		set:    set,
		offset: offset,
	}
	h.attrs[a.handle] = a
	return a.handle
}

// AttrAddFilterClip installs a clip filter on the get side, the set side or both.
func (h *Host) AttrAddFilterClip(a max.Attr, target max.ClipTarget, min, maxv float64, useMin, useMax bool) max.Err {
	h.mu.Lock()
	defer h.mu.Unlock()
	at, ok := h.attrs[a]
	if !ok {
		return max.ErrInvalidPtr
	}
	c := &clip{min: min, max: maxv, useMin: useMin, useMax: useMax}
	switch target {
	case max.ClipGet:
		at.getClip = c
	case max.ClipSet:
		at.setClip = c
	case max.ClipGetSet:
		at.getClip = c
		at.setClip = c
	default:
		return max.ErrGeneric
	}
	return max.ErrNone
}

// ObjectAttrTouch tells clients attached to obj that an attribute changed.
func (h *Host) ObjectAttrTouch(obj unsafe.Pointer, name *max.Symbol) max.Err {
	return h.ObjectNotify(obj, h.Gensym(max.SymAttrModified), unsafe.Pointer(name))
}

// AttrCount reports how many attribute objects have been created.
func (h *Host) AttrCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.attrs)
}

func (h *Host) findAttr(obj unsafe.Pointer, name string) (*object, *attribute, error) {
	o, err := h.object(obj)
	if err != nil {
		return nil, nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	at, ok := o.class.attrs[name]
	if !ok {
		return nil, nil, errorf("%s has no attribute %q", o.class.name, name)
	}
	return o, at, nil
}

// Attr describes the attribute name of the instance's class.
func (h *Host) Attr(obj unsafe.Pointer, name string) (AttrInfo, error) {
	_, at, err := h.findAttr(obj, name)
	if err != nil {
		return AttrInfo{}, err
	}
	info := AttrInfo{
		Name:      at.name,
		Type:      at.typ,
		Flags:     at.flags,
		Offset:    at.offset,
		HasGetter: at.get != nil,
		HasSetter: at.set != nil,
	}
	if at.getClip != nil {
		info.GetClip = at.getClip.params()
	}
	if at.setClip != nil {
		info.SetClip = at.setClip.params()
	}
	return info, nil
}

func (c *clip) params() *[4]float64 {
	p := [4]float64{c.min, c.max, 0, 0}
	if c.useMin {
		p[2] = 1
	}
	if c.useMax {
		p[3] = 1
	}
	return &p
}

// GetAttr reads an attribute through its getter, or straight from the
// instance memory when it only has an offset.
func (h *Host) GetAttr(obj unsafe.Pointer, name string) ([]max.Atom, error) {
	_, at, err := h.findAttr(obj, name)
	if err != nil {
		return nil, err
	}
	var out []max.Atom
	if at.get != nil {
		var ac int64
		var av *max.Atom
		if e := at.get(obj, at.handle, &ac, &av); e != max.ErrNone {
			return nil, errorf("get %s: %v", name, e)
		}
		out = append(out, max.AtomsAt(av, int(ac))...)
		h.SysmemFreePtr(unsafe.Pointer(av))
	} else {
		a, err := readOffset(obj, at)
		if err != nil {
			return nil, err
		}
		out = []max.Atom{a}
	}
	at.getClip.apply(out)
	return out, nil
}

// SetAttr writes an attribute. Deferred attributes are queued on the main
// thread queue; collapsing ones replace a pending write to the same attribute.
func (h *Host) SetAttr(obj unsafe.Pointer, name string, argv ...max.Atom) error {
	_, at, err := h.findAttr(obj, name)
	if err != nil {
		return err
	}
	argv = append([]max.Atom(nil), argv...)
	at.setClip.apply(argv)

	write := func(self unsafe.Pointer, _ *max.Symbol, argv []max.Atom) {
		if err := h.writeAttr(self, at, argv); err != nil {
			h.ObjectError(self, err.Error())
		}
	}
	switch {
	case at.flags&max.AttrSetUsurpLow != 0:
		h.deferKeyed(obj, at.name, write, h.Gensym(name), argv)
		return nil
	case at.flags&max.AttrSetDeferLow != 0:
		h.DeferLow(obj, write, h.Gensym(name), argv)
		return nil
	case at.flags&(max.AttrSetDefer|max.AttrSetUsurp) != 0 && !h.IsMainThread():
		h.Defer(obj, write, h.Gensym(name), argv)
		return nil
	}
	return h.writeAttr(obj, at, argv)
}

func (h *Host) writeAttr(obj unsafe.Pointer, at *attribute, argv []max.Atom) error {
	if at.set != nil {
		var av *max.Atom
		if len(argv) > 0 {
			av = &argv[0]
		}
		if e := at.set(obj, at.handle, int64(len(argv)), av); e != max.ErrNone {
			return errorf("set %s: %v", at.name, e)
		}
	} else if len(argv) > 0 {
		if err := writeOffset(obj, at, &argv[0]); err != nil {
			return err
		}
	}
	h.ObjectAttrTouch(obj, h.Gensym(at.name))
	return nil
}

func readOffset(obj unsafe.Pointer, at *attribute) (max.Atom, error) {
	p := unsafe.Add(obj, at.offset)
	switch at.typ {
	case max.SymLong:
		return max.LongAtom(*(*int64)(p)), nil
	case max.SymChar:
		return max.LongAtom(int64(*(*uint8)(p))), nil
	case max.SymFloat32:
		return max.FloatAtom(float64(*(*float32)(p))), nil
	case max.SymFloat64:
		return max.FloatAtom(*(*float64)(p)), nil
	case max.SymSymbol:
		return max.SymAtom(*(**max.Symbol)(p)), nil
	case max.SymAtomType:
		return *(*max.Atom)(p), nil
	}
	return max.Atom{}, errorf("attribute %s: cannot read type %q by offset", at.name, at.typ)
}

func writeOffset(obj unsafe.Pointer, at *attribute, a *max.Atom) error {
	p := unsafe.Add(obj, at.offset)
	switch at.typ {
	case max.SymLong:
		*(*int64)(p) = a.Long()
	case max.SymChar:
		*(*uint8)(p) = uint8(a.Long())
	case max.SymFloat32:
		*(*float32)(p) = float32(a.Float())
	case max.SymFloat64:
		*(*float64)(p) = a.Float()
	case max.SymSymbol:
		*(**max.Symbol)(p) = a.Sym()
	case max.SymAtomType:
		*(*max.Atom)(p) = *a
	default:
		return errorf("attribute %s: cannot write type %q by offset", at.name, at.typ)
	}
	return nil
}
