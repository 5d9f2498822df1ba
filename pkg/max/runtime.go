package max

import "unsafe"

// Console prints to the host's message window.
type Console interface {
	Post(msg string)
	Error(msg string)
	ObjectPost(obj unsafe.Pointer, msg string)
	ObjectError(obj unsafe.Pointer, msg string)
}

// Allocator is the host memory allocator.
type Allocator interface {
	SysmemNewPtr(size uintptr) unsafe.Pointer
	SysmemFreePtr(p unsafe.Pointer)
}

// Symbols is the host symbol table.
type Symbols interface {
	Gensym(name string) *Symbol
}

// Classes covers class construction, registration and instance allocation.
type Classes interface {
	HeaderSize(kind HeaderKind) uintptr
	ClassNew(name string, newFn NewMethod, freeFn FreeMethod, size uintptr, argKinds ...AtomType) Class
	ClassAddMethod(c Class, name string, m Method, kinds ...AtomType) Err
	ClassAddAttr(c Class, a Attr) Err
	ClassDSPInit(c Class)
	ClassRegister(ns *Symbol, c Class) Err
	ClassFindByName(ns, name *Symbol) Class
	ObjectAlloc(c Class) unsafe.Pointer
	ObjectFree(obj unsafe.Pointer) Err
}

// Attributes covers attribute objects and their filters.
type Attributes interface {
	AttrOffsetNew(name string, typ *Symbol, flags AttrFlags, get AttrGetter, set AttrSetter, offset uintptr) Attr
	AttrAddFilterClip(a Attr, target ClipTarget, min, max float64, useMin, useMax bool) Err
	ObjectAttrTouch(obj unsafe.Pointer, name *Symbol) Err
}

// Inlets covers secondary inlet allocation. The host places each new inlet
// to the left of the inlets allocated before it.
type Inlets interface {
	IntIn(obj unsafe.Pointer, n int) Inlet
	FloatIn(obj unsafe.Pointer, n int) Inlet
	ProxyNew(obj unsafe.Pointer, id int) Proxy
	ProxyFree(p Proxy)
	ProxyGetInlet(obj unsafe.Pointer) int
}

// Outlets covers outlet creation and message output. The Outlet* senders
// report false when the host refused the message because of a stack overflow.
type Outlets interface {
	OutletAppend(obj unsafe.Pointer, typ *Symbol) Outlet
	OutletBang(o Outlet) bool
	OutletInt(o Outlet, v int64) bool
	OutletFloat(o Outlet, v float64) bool
	OutletList(o Outlet, argv []Atom) bool
	OutletAnything(o Outlet, sel *Symbol, argv []Atom) bool
}

// DSP covers the audio chain.
type DSP interface {
	DSPSetup(obj unsafe.Pointer, signalInlets int)
	DSPFree(obj unsafe.Pointer)
	DSPAdd64(dsp64 unsafe.Pointer, obj unsafe.Pointer, fn PerformMethod, flags int, userParam unsafe.Pointer)
}

// Notifier covers the object registration and notification service.
type Notifier interface {
	ObjectRegister(ns, name *Symbol, obj unsafe.Pointer) unsafe.Pointer
	ObjectUnregister(obj unsafe.Pointer) Err
	ObjectFindRegistered(ns, name *Symbol) unsafe.Pointer
	ObjectAttach(ns, name *Symbol, client unsafe.Pointer) unsafe.Pointer
	ObjectDetach(ns, name *Symbol, client unsafe.Pointer) Err
	ObjectSubscribe(ns, name, classname *Symbol, client unsafe.Pointer) unsafe.Pointer
	ObjectUnsubscribe(ns, name, classname *Symbol, client unsafe.Pointer) Err
	ObjectNotify(obj unsafe.Pointer, msg *Symbol, data unsafe.Pointer) Err
}

// Buffers covers buffer~ references and sample access.
type Buffers interface {
	BufferRefNew(owner unsafe.Pointer, name *Symbol) BufferRef
	BufferRefSet(r BufferRef, name *Symbol)
	BufferRefExists(r BufferRef) bool
	BufferRefGetBuffer(r BufferRef) Buffer
	BufferRefNotify(r BufferRef, senderName, msg *Symbol, sender, data unsafe.Pointer) Err
	BufferRefFree(r BufferRef)
	BufferChannelCount(b Buffer) int
	BufferFrameCount(b Buffer) int
	BufferSampleRate(b Buffer) float64
	BufferLockSamples(b Buffer) unsafe.Pointer
	BufferUnlockSamples(b Buffer)
	BufferSetDirty(b Buffer)
}

// Clocks covers the scheduler's clock objects.
type Clocks interface {
	ClockNew(owner unsafe.Pointer, fn ClockMethod) Clock
	ClockDelay(c Clock, ms int64)
	ClockFDelay(c Clock, ms float64)
	ClockUnset(c Clock)
	ClockFree(c Clock)
	SchedulerTime() float64
}

// Threads covers main-thread detection and deferral.
type Threads interface {
	IsMainThread() bool
	Defer(obj unsafe.Pointer, fn DeferMethod, sel *Symbol, argv []Atom)
	DeferLow(obj unsafe.Pointer, fn DeferMethod, sel *Symbol, argv []Atom)
}

// Jitter covers Jitter classes, matrices and the parallel worker pool.
type Jitter interface {
	JitClassNew(name string, newFn JitNewMethod, freeFn FreeMethod, size uintptr) Class
	JitClassAddMethod(c Class, name string, m Method, kinds ...AtomType) Err
	JitClassAddAttr(c Class, a Attr) Err
	JitClassAddAdornment(c Class, mop MOP) Err
	JitClassRegister(c Class) Err
	JitMOPNew(inputs, outputs int) MOP
	JitObjectAlloc(c Class) unsafe.Pointer
	JitObjectFree(obj unsafe.Pointer)

	MatrixListSize(list unsafe.Pointer) int
	MatrixListIndex(list unsafe.Pointer, i int) unsafe.Pointer
	MatrixLock(m unsafe.Pointer, lock int64) int64
	MatrixGetInfo(m unsafe.Pointer, info *MatrixInfo) Err
	MatrixSetInfo(m unsafe.Pointer, info *MatrixInfo) Err
	MatrixGetData(m unsafe.Pointer) unsafe.Pointer

	ParallelNDimSimpleCalc2(fn ParallelCalc2, dimcount int, dim []int64, planecount int, mi0 *MatrixInfo, bp0 unsafe.Pointer, mi1 *MatrixInfo, bp1 unsafe.Pointer, flags0, flags1 int)
	ParallelNDimSimpleCalc3(fn ParallelCalc3, dimcount int, dim []int64, planecount int, mi0 *MatrixInfo, bp0 unsafe.Pointer, mi1 *MatrixInfo, bp1 unsafe.Pointer, mi2 *MatrixInfo, bp2 unsafe.Pointer, flags0, flags1, flags2 int)
}

// Runtime is everything the framework consumes from the host.
type Runtime interface {
	Console
	Allocator
	Symbols
	Classes
	Attributes
	Inlets
	Outlets
	DSP
	Notifier
	Buffers
	Clocks
	Threads
	Jitter
}
