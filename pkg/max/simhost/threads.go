package simhost

import (
	"unsafe"

	"github.com/justyntemme/gomedian/pkg/max"
)

type deferred struct {
	obj  unsafe.Pointer
	fn   max.DeferMethod
	sel  *max.Symbol
	argv []max.Atom
	key  string
}

// IsMainThread reports whether the caller is on the simulated main thread.
func (h *Host) IsMainThread() bool {
	return h.CurrentThread() == ThreadMain
}

// Defer runs fn now when called on the main thread, otherwise queues it at
// the front of the main thread queue.
func (h *Host) Defer(obj unsafe.Pointer, fn max.DeferMethod, sel *max.Symbol, argv []max.Atom) {
	if h.IsMainThread() {
		fn(obj, sel, argv)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mainQueue = append([]deferred{{obj: obj, fn: fn, sel: sel, argv: argv}}, h.mainQueue...)
}

// DeferLow always queues fn at the back of the low priority queue.
func (h *Host) DeferLow(obj unsafe.Pointer, fn max.DeferMethod, sel *max.Symbol, argv []max.Atom) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lowQueue = append(h.lowQueue, deferred{obj: obj, fn: fn, sel: sel, argv: argv})
}

// deferKeyed queues fn on the low priority queue, replacing any pending call
// for the same object and key.
func (h *Host) deferKeyed(obj unsafe.Pointer, key string, fn max.DeferMethod, sel *max.Symbol, argv []max.Atom) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d := deferred{obj: obj, fn: fn, sel: sel, argv: argv, key: key}
	for i := range h.lowQueue {
		if h.lowQueue[i].obj == obj && h.lowQueue[i].key == key {
			h.lowQueue[i] = d
			return
		}
	}
	h.lowQueue = append(h.lowQueue, d)
}

// Pending counts queued main thread calls.
func (h *Host) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.mainQueue) + len(h.lowQueue)
}

// RunMainQueue drains the deferred queues on the main thread and returns the
// number of calls made. Calls queued while draining are run too.
func (h *Host) RunMainQueue() int {
	n := 0
	for {
		h.mu.Lock()
		var d deferred
		switch {
		case len(h.mainQueue) > 0:
			d = h.mainQueue[0]
			h.mainQueue = h.mainQueue[1:]
		case len(h.lowQueue) > 0:
			d = h.lowQueue[0]
			h.lowQueue = h.lowQueue[1:]
		default:
			h.mu.Unlock()
			return n
		}
		_, live := h.objects[d.obj]
		h.mu.Unlock()
		if d.obj != nil && !live {
			continue
		}
		h.onThread(ThreadMain, func() { d.fn(d.obj, d.sel, d.argv) })
		n++
	}
}

// OnThread runs fn as if the host had called it from thread t.
func (h *Host) OnThread(t Thread, fn func()) {
	h.onThread(t, fn)
}
