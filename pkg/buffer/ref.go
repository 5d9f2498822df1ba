// Package buffer gives payloads access to named buffer~ sample storage.
package buffer

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/samber/oops"

	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/notify"
)

// Ref is a reference to a buffer~ by name. The buffer it resolves to can
// change at any time through host notifications, so every lookup runs under
// a spin guard.
type Ref struct {
	rt    max.Runtime
	owner unsafe.Pointer
	ref   max.BufferRef
	name  atomic.Pointer[max.Symbol]
	guard atomic.Bool
}

// New creates a reference owned by the host instance owner. An empty name
// leaves the reference unbound. The owner must answer notify messages and
// forward them to Apply.
func New(rt max.Runtime, owner unsafe.Pointer, name string) (*Ref, error) {
	r := Declare(name)
	if err := r.Bind(rt, owner); err != nil {
		return nil, err
	}
	return r, nil
}

// Declare describes a reference without creating it. Until Bind succeeds
// the reference behaves as one to a missing buffer~.
func Declare(name string) *Ref {
	r := &Ref{}
	r.name.Store(max.NewSymbol(name))
	return r
}

// Bind creates the host reference for owner.
func (r *Ref) Bind(rt max.Runtime, owner unsafe.Pointer) error {
	name := r.Name()
	sym := rt.Gensym(name)
	h := rt.BufferRefNew(owner, sym)
	if h == 0 {
		return oops.Code(max.CodeOutOfMemory).With("buffer", name).Errorf("host refused buffer reference")
	}
	r.lock()
	r.rt, r.owner, r.ref = rt, owner, h
	r.name.Store(sym)
	r.unlock()
	return nil
}

func (r *Ref) lock() {
	for !r.guard.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (r *Ref) unlock() { r.guard.Store(false) }

// Name returns the buffer~ name the reference is bound to.
func (r *Ref) Name() string { return r.name.Load().Name() }

// Set rebinds the reference to another buffer~ name.
func (r *Ref) Set(name string) {
	r.lock()
	defer r.unlock()
	if r.ref == 0 {
		r.name.Store(max.NewSymbol(name))
		return
	}
	sym := r.rt.Gensym(name)
	r.rt.BufferRefSet(r.ref, sym)
	r.name.Store(sym)
}

// Exists reports whether the named buffer~ currently exists.
func (r *Ref) Exists() bool {
	return r.buffer() != 0
}

func (r *Ref) buffer() max.Buffer {
	r.lock()
	defer r.unlock()
	if r.ref == 0 {
		return 0
	}
	return r.rt.BufferRefGetBuffer(r.ref)
}

// ChannelCount returns the channel count, if the buffer~ exists.
func (r *Ref) ChannelCount() (int, bool) {
	b := r.buffer()
	if b == 0 {
		return 0, false
	}
	return r.rt.BufferChannelCount(b), true
}

// FrameCount returns the frame count, if the buffer~ exists.
func (r *Ref) FrameCount() (int, bool) {
	b := r.buffer()
	if b == 0 {
		return 0, false
	}
	return r.rt.BufferFrameCount(b), true
}

// SampleRate returns the sample rate, if the buffer~ exists.
func (r *Ref) SampleRate() (float64, bool) {
	b := r.buffer()
	if b == 0 {
		return 0, false
	}
	return r.rt.BufferSampleRate(b), true
}

// TryLock locks the buffer~ samples. A missing buffer~ is reported as
// BUFFER_NOT_FOUND, which callers should treat as a normal outcome.
func (r *Ref) TryLock() (*Locked, error) {
	r.lock()
	var b max.Buffer
	if r.ref != 0 {
		b = r.rt.BufferRefGetBuffer(r.ref)
	}
	if b == 0 {
		r.unlock()
		return nil, oops.Code(max.CodeBufferNotFound).With("buffer", r.Name()).Errorf("buffer does not exist")
	}
	p := r.rt.BufferLockSamples(b)
	if p == nil {
		r.unlock()
		return nil, oops.Code(max.CodeBufferLock).With("buffer", r.Name()).Errorf("buffer has no sample data")
	}
	channels := r.rt.BufferChannelCount(b)
	frames := r.rt.BufferFrameCount(b)
	l := &Locked{
		ref:      r,
		buf:      b,
		samples:  unsafe.Slice((*float32)(p), channels*frames),
		channels: channels,
		frames:   frames,
		rate:     r.rt.BufferSampleRate(b),
	}
	r.unlock()
	return l, nil
}

// Applicable reports whether n is a buffer~ binding or modification message
// for the name this reference is bound to.
func (r *Ref) Applicable(n notify.Notification) bool {
	switch n.Message.Name() {
	case max.SymGlobalSymbolBinding, max.SymGlobalSymbolUnbinding, max.SymBufferModified:
	default:
		return false
	}
	return n.SenderName == nil || n.SenderName.Name() == r.Name()
}

// Apply forwards n to the host reference so it can rebind.
func (r *Ref) Apply(n notify.Notification) {
	r.lock()
	defer r.unlock()
	if r.ref != 0 {
		r.rt.BufferRefNotify(r.ref, n.SenderName, n.Message, n.Sender, n.Data)
	}
}

// Close releases the host reference.
func (r *Ref) Close() {
	r.lock()
	if r.ref != 0 {
		r.rt.BufferRefFree(r.ref)
		r.ref = 0
	}
	r.unlock()
}

var _ notify.Subscriber = (*Ref)(nil)
