// Package attr builds host attributes for a payload type T.
package attr

import "github.com/justyntemme/gomedian/pkg/max"

// Kind is the value type an attribute advertises to the host.
type Kind int

const (
	Char Kind = iota
	Int64
	Float32
	Float64
	AtomPtr
	Symbol
	Ptr
	ObjectPtr
)

// TypeName returns the host type symbol name for the kind.
func (k Kind) TypeName() string {
	switch k {
	case Char:
		return max.SymChar
	case Int64:
		return max.SymLong
	case Float32:
		return max.SymFloat32
	case Float64:
		return max.SymFloat64
	case AtomPtr:
		return max.SymAtomType
	case Symbol:
		return max.SymSymbol
	case Ptr:
		return max.SymPointer
	case ObjectPtr:
		return max.SymObject
	default:
		return ""
	}
}

func (k Kind) String() string { return k.TypeName() }

// Visibility controls who may read or write an attribute.
type Visibility int

const (
	// Visible attributes are reachable from the inspector and from patcher messages.
	Visible Visibility = iota
	// UserVisible attributes are hidden from the inspector but reachable from messages.
	UserVisible
	// Opaque attributes are only reachable from code.
	Opaque
)

// Schedule selects the thread an attribute access runs on.
type Schedule int

const (
	// Immediate runs on the calling thread.
	Immediate Schedule = iota
	// Deferred runs on the main thread.
	Deferred
	// DeferredLow queues at low priority on the main thread.
	DeferredLow
	// Collapsing runs on the main thread, replacing a pending access.
	Collapsing
	// CollapsingLow is the low priority form of Collapsing.
	CollapsingLow
)

// Bounds is a clip range. Only the ends with Use* set are enforced.
type Bounds struct {
	Min, Max       float64
	UseMin, UseMax bool
}

// Min clips values below v.
func Min(v float64) Bounds { return Bounds{Min: v, UseMin: true} }

// Max clips values above v.
func Max(v float64) Bounds { return Bounds{Max: v, UseMax: true} }

// MinMax clips values outside [lo, hi].
func MinMax(lo, hi float64) Bounds { return Bounds{Min: lo, Max: hi, UseMin: true, UseMax: true} }

func flags(getVis, setVis Visibility, get, set Schedule) max.AttrFlags {
	var f max.AttrFlags
	switch getVis {
	case UserVisible:
		f |= max.AttrGetOpaqueUser
	case Opaque:
		f |= max.AttrGetOpaque
	}
	switch setVis {
	case UserVisible:
		f |= max.AttrSetOpaqueUser
	case Opaque:
		f |= max.AttrSetOpaque
	}
	switch get {
	case Deferred:
		f |= max.AttrGetDefer
	case DeferredLow:
		f |= max.AttrGetDeferLow
	case Collapsing:
		f |= max.AttrGetUsurp
	case CollapsingLow:
		f |= max.AttrGetUsurpLow
	}
	switch set {
	case Deferred:
		f |= max.AttrSetDefer
	case DeferredLow:
		f |= max.AttrSetDeferLow
	case Collapsing:
		f |= max.AttrSetUsurp
	case CollapsingLow:
		f |= max.AttrSetUsurpLow
	}
	return f
}
