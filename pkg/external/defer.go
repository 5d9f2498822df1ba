package external

import (
	"unsafe"

	"go.uber.org/zap"

	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/object"
)

func deferred(log *zap.Logger, fn func()) max.DeferMethod {
	return func(unsafe.Pointer, *max.Symbol, []max.Atom) {
		defer object.Boundary(log, "defer")
		fn()
	}
}

// Defer runs fn on the main thread: immediately when the caller is already
// there, otherwise at the front of the main thread queue. The call is
// dropped if obj is freed first.
func Defer(rt max.Threads, obj unsafe.Pointer, fn func()) {
	rt.Defer(obj, deferred(nil, fn), nil, nil)
}

// DeferLow always queues fn at the back of the low priority main thread
// queue.
func DeferLow(rt max.Threads, obj unsafe.Pointer, fn func()) {
	rt.DeferLow(obj, deferred(nil, fn), nil, nil)
}

// Defer runs fn with the payload of self on the main thread. The payload is
// looked up when fn runs, so a call queued before the instance is freed is
// skipped.
func (w *Wrapper[T]) Defer(self unsafe.Pointer, fn func(*T)) {
	w.rt.Defer(self, w.deferred(fn), nil, nil)
}

// DeferLow is Defer on the low priority queue.
func (w *Wrapper[T]) DeferLow(self unsafe.Pointer, fn func(*T)) {
	w.rt.DeferLow(self, w.deferred(fn), nil, nil)
}

func (w *Wrapper[T]) deferred(fn func(*T)) max.DeferMethod {
	return func(self unsafe.Pointer, _ *max.Symbol, _ []max.Atom) {
		defer object.Boundary(w.log, "defer")
		t, err := w.Borrow(self)
		if err != nil {
			w.log.Debug("deferred call dropped", zap.Error(err))
			return
		}
		fn(t)
	}
}
