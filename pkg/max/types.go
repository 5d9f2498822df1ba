// Package max describes the host runtime's C ABI surface as seen from Go:
// atom type tags, error codes, opaque handles, raw method shapes and the
// Runtime interface that every host implementation satisfies.
package max

import "fmt"

// AtomType mirrors the host's atom type tags (e_max_atomtypes).
type AtomType int16

const (
	ANothing  AtomType = 0
	ALong     AtomType = 1
	AFloat    AtomType = 2
	ASym      AtomType = 3
	AObj      AtomType = 4
	ADefLong  AtomType = 5
	ADefFloat AtomType = 6
	ADefSym   AtomType = 7
	AGimme    AtomType = 8
	ACant     AtomType = 9
)

// MaxTypedArgs is the largest number of typed arguments the host will pass
// to a method registered with an explicit kind list.
const MaxTypedArgs = 7

func (t AtomType) String() string {
	switch t {
	case ANothing:
		return "A_NOTHING"
	case ALong:
		return "A_LONG"
	case AFloat:
		return "A_FLOAT"
	case ASym:
		return "A_SYM"
	case AObj:
		return "A_OBJ"
	case ADefLong:
		return "A_DEFLONG"
	case ADefFloat:
		return "A_DEFFLOAT"
	case ADefSym:
		return "A_DEFSYM"
	case AGimme:
		return "A_GIMME"
	case ACant:
		return "A_CANT"
	default:
		return fmt.Sprintf("AtomType(%d)", int16(t))
	}
}

// Defaulted reports whether the tag is one of the DEF* variants the host
// fills with a zero value when the caller omits the argument.
func (t AtomType) Defaulted() bool {
	return t == ADefLong || t == ADefFloat || t == ADefSym
}

// Base strips the DEF* flavor off a tag.
func (t AtomType) Base() AtomType {
	switch t {
	case ADefLong:
		return ALong
	case ADefFloat:
		return AFloat
	case ADefSym:
		return ASym
	default:
		return t
	}
}

// Err mirrors t_max_err.
type Err int64

const (
	ErrNone       Err = 0
	ErrGeneric    Err = -1
	ErrInvalidPtr Err = -2
	ErrDuplicate  Err = -3
	ErrOutOfMem   Err = -4
)

func (e Err) Error() string {
	switch e {
	case ErrNone:
		return "no error"
	case ErrGeneric:
		return "generic error"
	case ErrInvalidPtr:
		return "invalid pointer"
	case ErrDuplicate:
		return "duplicate entry"
	case ErrOutOfMem:
		return "out of memory"
	default:
		return fmt.Sprintf("max error %d", int64(e))
	}
}

// JitErr mirrors t_jit_err. Non-zero values are four character codes.
type JitErr int64

const (
	JitErrNone          JitErr = 0
	JitErrGeneric       JitErr = 'E'<<24 | 'G'<<16 | 'E'<<8 | 'N'
	JitErrInvalidPtr    JitErr = 'E'<<24 | 'I'<<16 | 'N'<<8 | 'P'
	JitErrMismatchType  JitErr = 'E'<<24 | 'M'<<16 | 'T'<<8 | 'Y'
	JitErrMismatchPlane JitErr = 'E'<<24 | 'M'<<16 | 'P'<<8 | 'L'
	JitErrMismatchDim   JitErr = 'E'<<24 | 'M'<<16 | 'D'<<8 | 'M'
	JitErrOutOfMem      JitErr = 'E'<<24 | 'O'<<16 | 'O'<<8 | 'M'
)

func (e JitErr) Error() string {
	switch e {
	case JitErrNone:
		return "no error"
	case JitErrGeneric:
		return "generic error"
	case JitErrInvalidPtr:
		return "invalid pointer"
	case JitErrMismatchType:
		return "type mismatch"
	case JitErrMismatchPlane:
		return "plane count mismatch"
	case JitErrMismatchDim:
		return "dimension mismatch"
	case JitErrOutOfMem:
		return "out of memory"
	default:
		return fmt.Sprintf("jit error %#x", int64(e))
	}
}

// Opaque host handles. A zero value means "no object".
type (
	Class     uintptr
	Attr      uintptr
	Outlet    uintptr
	Inlet     uintptr
	Proxy     uintptr
	Clock     uintptr
	BufferRef uintptr
	Buffer    uintptr
	MOP       uintptr
)

// HeaderKind selects which host-native struct heads an instance.
type HeaderKind int

const (
	// HeaderObject is a plain t_object.
	HeaderObject HeaderKind = iota
	// HeaderPxObject is an MSP t_pxobject.
	HeaderPxObject
	// HeaderJitObject is a Jitter t_jit_object.
	HeaderJitObject
)

func (k HeaderKind) String() string {
	switch k {
	case HeaderObject:
		return "t_object"
	case HeaderPxObject:
		return "t_pxobject"
	case HeaderJitObject:
		return "t_jit_object"
	default:
		return "unknown"
	}
}

// Class namespaces.
const (
	NamespaceBox   = "box"
	NamespaceNoBox = "nobox"
)

// AttrFlags mirrors the host attribute flag bits.
type AttrFlags int64

const (
	AttrFlagsNone     AttrFlags = 0
	AttrGetOpaque     AttrFlags = 0x00000001
	AttrSetOpaque     AttrFlags = 0x00000002
	AttrGetOpaqueUser AttrFlags = 0x00000100
	AttrSetOpaqueUser AttrFlags = 0x00000200
	AttrGetDefer      AttrFlags = 0x00010000
	AttrGetUsurp      AttrFlags = 0x00020000
	AttrGetDeferLow   AttrFlags = 0x00040000
	AttrGetUsurpLow   AttrFlags = 0x00080000
	AttrSetDefer      AttrFlags = 0x01000000
	AttrSetUsurp      AttrFlags = 0x02000000
	AttrSetDeferLow   AttrFlags = 0x04000000
	AttrSetUsurpLow   AttrFlags = 0x08000000
)

// ClipTarget selects which side of an attribute a clip filter guards.
type ClipTarget int

const (
	ClipGet ClipTarget = iota + 1
	ClipSet
	ClipGetSet
)

// AssistKind tells an assist method whether it describes an inlet or outlet.
type AssistKind int

const (
	AssistInlet  AssistKind = 1
	AssistOutlet AssistKind = 2
)

// Well-known selector and type names.
const (
	SymBang     = "bang"
	SymInt      = "int"
	SymFloat    = "float"
	SymSymbol   = "symbol"
	SymList     = "list"
	SymAnything = "anything"
	SymSignal   = "signal"
	SymNotify   = "notify"
	SymAssist   = "assist"
	SymDSP64    = "dsp64"
	SymLong     = "long"
	SymFloat32  = "float32"
	SymFloat64  = "float64"
	SymChar     = "char"
	SymAtomType = "atom"
	SymPointer  = "pointer"
	SymObject   = "object"

	// Jitter matrix operator entry points.
	SymMatrixCalc = "matrix_calc"

	// Notification messages that affect buffer references.
	SymGlobalSymbolBinding   = "globalsymbol_binding"
	SymGlobalSymbolUnbinding = "globalsymbol_unbinding"
	SymBufferModified        = "buffer_modified"
	SymAttrModified          = "attr_modified"
)
