package object

import (
	"sync/atomic"
	"unsafe"

	"github.com/samber/oops"

	"github.com/justyntemme/gomedian/pkg/max"
)

// State is the lifecycle tag of an instance.
type State int32

const (
	Uninitialized State = iota
	Live
	TornDown

	// initializing holds the slot while Init stores the payload.
	initializing State = -1
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Live:
		return "live"
	case TornDown:
		return "torn down"
	case initializing:
		return "initializing"
	default:
		return "unknown"
	}
}

// Instance tracks one host instance and the payload built for it.
type Instance[T any] struct {
	self   unsafe.Pointer
	handle uintptr
	state  atomic.Int32
	value  *T
}

// Self returns the host instance pointer.
func (i *Instance[T]) Self() unsafe.Pointer { return i.self }

// Handle returns the value stored in the instance's payload slot.
func (i *Instance[T]) Handle() uintptr { return i.handle }

// State returns the current lifecycle state.
func (i *Instance[T]) State() State { return State(i.state.Load()) }

// Init installs the payload and makes the instance live. It fails if the
// instance was already initialized or torn down.
func (i *Instance[T]) Init(v *T) error {
	if v == nil {
		return oops.Code(max.CodeInstanceNotLive).Errorf("nil payload")
	}
	if !i.state.CompareAndSwap(int32(Uninitialized), int32(initializing)) {
		return oops.Code(max.CodeInstanceNotLive).
			With("state", i.State().String()).
			Errorf("instance cannot be initialized twice")
	}
	i.value = v
	if !i.state.CompareAndSwap(int32(initializing), int32(Live)) {
		return oops.Code(max.CodeInstanceNotLive).
			With("state", i.State().String()).
			Errorf("instance was torn down during initialization")
	}
	return nil
}

// Borrow returns the payload. It fails unless the instance is live.
func (i *Instance[T]) Borrow() (*T, error) {
	if State(i.state.Load()) != Live {
		return nil, oops.Code(max.CodeInstanceNotLive).
			With("state", i.State().String()).
			Errorf("instance is not live")
	}
	return i.value, nil
}

// BeginTeardown moves a live or uninitialized instance to TornDown and
// returns the payload it held. Only the first call returns ok.
func (i *Instance[T]) BeginTeardown() (*T, bool) {
	for {
		s := i.state.Load()
		if State(s) == TornDown {
			return nil, false
		}
		if i.state.CompareAndSwap(s, int32(TornDown)) {
			return i.value, true
		}
	}
}
