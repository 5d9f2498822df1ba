package object

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/samber/oops"

	"github.com/justyntemme/gomedian/pkg/max"
)

// nextHandle is shared by every table so a handle read through the wrong
// class can never alias another instance.
var nextHandle atomic.Uintptr

// Table maps handles to instances of one class. Lookups load an immutable
// map snapshot without locking, so Recover is safe on the audio thread.
// Attach and Detach copy the map under a mutex.
type Table[T any] struct {
	layout  Layout
	mu      sync.Mutex
	entries atomic.Pointer[map[uintptr]*Instance[T]]
}

// NewTable creates an empty table for instances with the given layout.
func NewTable[T any](layout Layout) *Table[T] {
	t := &Table[T]{layout: layout}
	empty := make(map[uintptr]*Instance[T])
	t.entries.Store(&empty)
	return t
}

// Layout returns the instance layout.
func (t *Table[T]) Layout() Layout { return t.layout }

// Attach reserves a handle for a freshly allocated host instance and writes
// it into the payload slot. The instance starts Uninitialized.
func (t *Table[T]) Attach(self unsafe.Pointer) (*Instance[T], error) {
	if self == nil {
		return nil, oops.Code(max.CodeOutOfMemory).Errorf("host returned a nil instance")
	}
	slot := t.layout.slot(self)
	if *slot != 0 {
		return nil, oops.Code(max.CodeInstanceUnknown).Errorf("payload slot already in use")
	}
	inst := &Instance[T]{self: self, handle: nextHandle.Add(1)}

	t.mu.Lock()
	defer t.mu.Unlock()
	old := *t.entries.Load()
	next := make(map[uintptr]*Instance[T], len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[inst.handle] = inst
	t.entries.Store(&next)
	*slot = inst.handle
	return inst, nil
}

// Recover maps a host instance pointer back to its Instance.
func (t *Table[T]) Recover(self unsafe.Pointer) (*Instance[T], error) {
	if self == nil {
		return nil, oops.Code(max.CodeInstanceUnknown).Errorf("nil instance pointer")
	}
	handle := *t.layout.slot(self)
	inst, ok := (*t.entries.Load())[handle]
	if !ok || inst.self != self {
		return nil, oops.Code(max.CodeInstanceUnknown).
			With("handle", handle).
			Errorf("pointer does not belong to this class")
	}
	return inst, nil
}

// Borrow recovers the instance and borrows its payload.
func (t *Table[T]) Borrow(self unsafe.Pointer) (*T, error) {
	inst, err := t.Recover(self)
	if err != nil {
		return nil, err
	}
	return inst.Borrow()
}

// Detach forgets an instance and clears its payload slot. The host block
// itself still belongs to the host.
func (t *Table[T]) Detach(inst *Instance[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := *t.entries.Load()
	if _, ok := old[inst.handle]; !ok {
		return
	}
	next := make(map[uintptr]*Instance[T], len(old))
	for k, v := range old {
		if k != inst.handle {
			next[k] = v
		}
	}
	t.entries.Store(&next)
	*t.layout.slot(inst.self) = 0
}

// Len returns the number of attached instances.
func (t *Table[T]) Len() int {
	return len(*t.entries.Load())
}

// Each calls fn for every attached instance until fn returns false.
func (t *Table[T]) Each(fn func(*Instance[T]) bool) {
	for _, inst := range *t.entries.Load() {
		if !fn(inst) {
			return
		}
	}
}
