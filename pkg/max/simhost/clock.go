package simhost

import (
	"unsafe"

	"github.com/justyntemme/gomedian/pkg/max"
)

type clock struct {
	owner unsafe.Pointer
	fn    max.ClockMethod
	due   float64
	seq   uint64
	armed bool
}

// ClockNew creates an unarmed clock that calls fn(owner) when it fires.
func (h *Host) ClockNew(owner unsafe.Pointer, fn max.ClockMethod) max.Clock {
	if fn == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c := max.Clock(h.handle())
	h.clocks[c] = &clock{owner: owner, fn: fn}
	return c
}

func (h *Host) arm(c max.Clock, ms float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cl, ok := h.clocks[c]
	if !ok {
		return
	}
	if ms < 0 {
		ms = 0
	}
	h.seq++
	cl.due = h.now + ms
	cl.seq = h.seq
	cl.armed = true
}

// ClockDelay arms a clock ms milliseconds from now, replacing any earlier arming.
func (h *Host) ClockDelay(c max.Clock, ms int64) { h.arm(c, float64(ms)) }

// ClockFDelay is ClockDelay with fractional milliseconds.
func (h *Host) ClockFDelay(c max.Clock, ms float64) { h.arm(c, ms) }

// ClockUnset disarms a clock.
func (h *Host) ClockUnset(c max.Clock) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cl, ok := h.clocks[c]; ok {
		cl.armed = false
	}
}

// ClockFree destroys a clock. A freed clock never fires.
func (h *Host) ClockFree(c max.Clock) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clocks, c)
}

// LiveClocks counts clocks not yet freed.
func (h *Host) LiveClocks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clocks)
}

// SchedulerTime returns the current virtual time in milliseconds.
func (h *Host) SchedulerTime() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

// Advance moves virtual time forward by ms, firing due clocks in order on
// the scheduler thread. It returns how many clocks fired.
func (h *Host) Advance(ms float64) int {
	h.mu.Lock()
	target := h.now + ms
	h.mu.Unlock()

	fired := 0
	for {
		h.mu.Lock()
		var next *clock
		for _, cl := range h.clocks {
			if !cl.armed || cl.due > target {
				continue
			}
			if next == nil || cl.due < next.due || (cl.due == next.due && cl.seq < next.seq) {
				next = cl
			}
		}
		if next == nil {
			h.now = target
			h.mu.Unlock()
			return fired
		}
		next.armed = false
		h.now = next.due
		fn, owner := next.fn, next.owner
		h.mu.Unlock()

		h.onThread(ThreadScheduler, func() { fn(owner) })
		fired++
	}
}
