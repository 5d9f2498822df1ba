// Package clock schedules callbacks on the host scheduler thread.
package clock

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/object"
)

// Clock runs a callback after a delay on the scheduler thread. After Free
// returns the callback is never invoked again.
type Clock struct {
	fn      func()
	rt      max.Clocks
	mu      sync.Mutex
	handle  max.Clock
	dropped atomic.Bool
	// cb is held for reading while the callback runs.
	cb sync.RWMutex
}

// New creates a clock owned by the host instance owner.
func New(rt max.Runtime, owner unsafe.Pointer, log *zap.Logger, fn func()) (*Clock, error) {
	c := Declare(fn)
	if err := c.Bind(rt, owner, log); err != nil {
		return nil, err
	}
	return c, nil
}

// Declare describes a clock without creating it. Until Bind succeeds
// scheduling calls are ignored.
func Declare(fn func()) *Clock {
	return &Clock{fn: fn}
}

// Bind creates the host clock for owner.
func (c *Clock) Bind(rt max.Runtime, owner unsafe.Pointer, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	h := rt.ClockNew(owner, func(unsafe.Pointer) {
		defer object.Boundary(log, "clock")
		c.cb.RLock()
		defer c.cb.RUnlock()
		if c.dropped.Load() {
			return
		}
		c.fn()
	})
	if h == 0 {
		return oops.Code(max.CodeOutOfMemory).Errorf("host refused clock")
	}
	c.mu.Lock()
	c.rt, c.handle = rt, h
	c.mu.Unlock()
	return nil
}

// Now returns the scheduler's logical time in milliseconds.
func Now(rt max.Clocks) float64 { return rt.SchedulerTime() }

func (c *Clock) with(fn func(max.Clock)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != 0 {
		fn(c.handle)
	}
}

// Delay schedules the callback ms milliseconds from now, replacing any
// pending schedule.
func (c *Clock) Delay(ms int64) {
	c.with(func(h max.Clock) { c.rt.ClockDelay(h, ms) })
}

// FDelay is Delay with a fractional delay.
func (c *Clock) FDelay(ms float64) {
	c.with(func(h max.Clock) { c.rt.ClockFDelay(h, ms) })
}

// Trigger schedules the callback as soon as possible.
func (c *Clock) Trigger() { c.Delay(0) }

// Cancel removes a pending schedule. A callback already handed to the
// scheduler may still run.
func (c *Clock) Cancel() {
	c.with(func(h max.Clock) { c.rt.ClockUnset(h) })
}

// Free cancels the clock and releases it, waiting for a callback that is
// already running. Calling it from the clock's own callback never returns;
// defer such a release to the main thread.
func (c *Clock) Free() {
	if !c.dropped.CompareAndSwap(false, true) {
		return
	}
	// Wait out a callback that is already running.
	c.cb.Lock()
	c.cb.Unlock() //nolint:staticcheck // empty critical section

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == 0 {
		return
	}
	c.rt.ClockUnset(c.handle)
	c.rt.ClockFree(c.handle)
	c.handle = 0
}

// Freed reports whether Free has been called.
func (c *Clock) Freed() bool { return c.dropped.Load() }
