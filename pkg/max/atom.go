package max

import "unsafe"

// Atom is the host's tagged value. Exactly one payload field is meaningful,
// selected by the tag.
type Atom struct {
	typ AtomType
	l   int64
	f   float64
	s   *Symbol
	o   unsafe.Pointer
}

// AtomSize is the number of bytes a host allocation needs to hold one Atom.
const AtomSize = unsafe.Sizeof(Atom{})

// LongAtom returns an A_LONG atom.
func LongAtom(v int64) Atom { return Atom{typ: ALong, l: v} }

// FloatAtom returns an A_FLOAT atom.
func FloatAtom(v float64) Atom { return Atom{typ: AFloat, f: v} }

// SymAtom returns an A_SYM atom.
func SymAtom(s *Symbol) Atom { return Atom{typ: ASym, s: s} }

// ObjAtom returns an A_OBJ atom.
func ObjAtom(p unsafe.Pointer) Atom { return Atom{typ: AObj, o: p} }

// Type returns the tag.
func (a *Atom) Type() AtomType { return a.typ }

// SetLong overwrites the atom with an integer.
func (a *Atom) SetLong(v int64) Err {
	if a == nil {
		return ErrInvalidPtr
	}
	*a = LongAtom(v)
	return ErrNone
}

// SetFloat overwrites the atom with a float.
func (a *Atom) SetFloat(v float64) Err {
	if a == nil {
		return ErrInvalidPtr
	}
	*a = FloatAtom(v)
	return ErrNone
}

// SetSym overwrites the atom with a symbol.
func (a *Atom) SetSym(s *Symbol) Err {
	if a == nil {
		return ErrInvalidPtr
	}
	*a = SymAtom(s)
	return ErrNone
}

// SetObj overwrites the atom with an object pointer.
func (a *Atom) SetObj(p unsafe.Pointer) Err {
	if a == nil {
		return ErrInvalidPtr
	}
	*a = ObjAtom(p)
	return ErrNone
}

// Long reads the atom as an integer the way atom_getlong does: floats
// truncate, everything else reads as 0.
func (a *Atom) Long() int64 {
	switch a.typ {
	case ALong:
		return a.l
	case AFloat:
		return int64(a.f)
	default:
		return 0
	}
}

// Float reads the atom as a float the way atom_getfloat does.
func (a *Atom) Float() float64 {
	switch a.typ {
	case AFloat:
		return a.f
	case ALong:
		return float64(a.l)
	default:
		return 0
	}
}

// Sym returns the symbol payload, or nil for non-symbol atoms.
func (a *Atom) Sym() *Symbol {
	if a.typ == ASym {
		return a.s
	}
	return nil
}

// Obj returns the object payload, or nil for non-object atoms.
func (a *Atom) Obj() unsafe.Pointer {
	if a.typ == AObj {
		return a.o
	}
	return nil
}

// AtomsAt views n atoms starting at p, a block the host allocated. Host
// memory is not scanned by the garbage collector, so atoms stored there may
// only point at interned symbols or at host allocated objects, both of which
// the host keeps alive.
func AtomsAt(p *Atom, n int) []Atom {
	if p == nil || n <= 0 {
		return nil
	}
	return unsafe.Slice(p, n)
}
