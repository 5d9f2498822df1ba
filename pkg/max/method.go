package max

import "unsafe"

// Method is a raw entry point the host can invoke on an instance. The set of
// shapes is closed; each corresponds to one calling convention the host uses.
type Method interface {
	shape() string
}

// Word is one positional argument of a typed method call. Which field is
// meaningful is fixed by the kind list the method was registered with.
type Word struct {
	Long  int64
	Float float64
	Sym   *Symbol
}

type (
	// NewMethod is a class constructor. It returns the new instance or nil.
	NewMethod func(name *Symbol, argv []Atom) unsafe.Pointer
	// JitNewMethod is a Jitter class constructor.
	JitNewMethod func() unsafe.Pointer
	// FreeMethod is a class destructor.
	FreeMethod func(self unsafe.Pointer)

	// BangMethod takes no arguments.
	BangMethod func(self unsafe.Pointer)
	// TypedMethod receives exactly as many words as kinds were registered,
	// with defaults already substituted by the host.
	TypedMethod func(self unsafe.Pointer, args []Word)
	// GimmeMethod receives the selector and the raw atom list.
	GimmeMethod func(self unsafe.Pointer, sel *Symbol, argv []Atom)
	// NotifyMethod receives object notifications.
	NotifyMethod func(self unsafe.Pointer, senderName, msg *Symbol, sender, data unsafe.Pointer) Err
	// AssistMethod returns the hover text for an inlet or outlet.
	AssistMethod func(self unsafe.Pointer, box unsafe.Pointer, kind AssistKind, index int) string
	// DSP64Method is called when the audio chain is compiled.
	DSP64Method func(self unsafe.Pointer, dsp64 unsafe.Pointer, count []int16, sampleRate float64, maxVectorSize int, flags int)
	// MatrixCalcMethod is a Jitter matrix operator entry point.
	MatrixCalcMethod func(self, inputs, outputs unsafe.Pointer) JitErr
)

func (NewMethod) shape() string        { return "new" }
func (JitNewMethod) shape() string     { return "jit_new" }
func (FreeMethod) shape() string       { return "free" }
func (BangMethod) shape() string       { return "bang" }
func (TypedMethod) shape() string      { return "typed" }
func (GimmeMethod) shape() string      { return "gimme" }
func (NotifyMethod) shape() string     { return "notify" }
func (AssistMethod) shape() string     { return "assist" }
func (DSP64Method) shape() string      { return "dsp64" }
func (MatrixCalcMethod) shape() string { return "matrix_calc" }

// Shape names the calling convention of m.
func Shape(m Method) string {
	if m == nil {
		return ""
	}
	return m.shape()
}

// PerformMethod is the per-block audio entry point. ins and outs point at
// arrays of numIns and numOuts channel pointers, each valid for frames samples.
type PerformMethod func(self unsafe.Pointer, dsp64 unsafe.Pointer, ins unsafe.Pointer, numIns int, outs unsafe.Pointer, numOuts int, frames int, flags int, userParam unsafe.Pointer)

// AttrGetter fills *av with *ac atoms. When *ac is 0 or *av is nil the
// getter allocates the atom storage itself through the host allocator.
type AttrGetter func(self unsafe.Pointer, attr Attr, ac *int64, av **Atom) Err

// AttrSetter consumes ac atoms starting at av. av may be nil.
type AttrSetter func(self unsafe.Pointer, attr Attr, ac int64, av *Atom) Err

// ClockMethod runs when a clock fires.
type ClockMethod func(owner unsafe.Pointer)

// DeferMethod is the shape of calls queued to the main thread.
type DeferMethod func(self unsafe.Pointer, sel *Symbol, argv []Atom)

// ParallelCalc2 is invoked by the host worker pool for one slab of a two
// operand parallel calculation.
type ParallelCalc2 func(dimcount int, dim []int64, planecount int, mi0 *MatrixInfo, bp0 unsafe.Pointer, mi1 *MatrixInfo, bp1 unsafe.Pointer)

// ParallelCalc3 is the three operand form of ParallelCalc2.
type ParallelCalc3 func(dimcount int, dim []int64, planecount int, mi0 *MatrixInfo, bp0 unsafe.Pointer, mi1 *MatrixInfo, bp1 unsafe.Pointer, mi2 *MatrixInfo, bp2 unsafe.Pointer)
