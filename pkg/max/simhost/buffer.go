package simhost

import (
	"unsafe"

	"github.com/justyntemme/gomedian/pkg/max"
)

type buffer struct {
	handle   max.Buffer
	name     string
	channels int
	frames   int
	sr       float64
	samples  []float32
	locks    int
	dirty    int
}

type bufferRef struct {
	owner    unsafe.Pointer
	name     string
	notified int
}

// CreateBuffer creates a named buffer~ with interleaved float32 samples and
// notifies references bound to the name.
func (h *Host) CreateBuffer(name string, channels, frames int, sampleRate float64) max.Buffer {
	h.mu.Lock()
	b := &buffer{
		handle:   max.Buffer(h.handle()),
		name:     name,
		channels: channels,
		frames:   frames,
		sr:       sampleRate,
		samples:  make([]float32, channels*frames),
	}
	if old, ok := h.buffers[name]; ok {
		delete(h.bufHandles, old.handle)
	}
	h.buffers[name] = b
	h.bufHandles[b.handle] = b
	owners := h.refOwnersLocked(name)
	h.mu.Unlock()

	h.notifyRefs(owners, name, max.SymGlobalSymbolBinding)
	return b.handle
}

// DeleteBuffer removes a named buffer~ and notifies bound references.
func (h *Host) DeleteBuffer(name string) {
	h.mu.Lock()
	b, ok := h.buffers[name]
	if ok {
		delete(h.buffers, name)
		delete(h.bufHandles, b.handle)
	}
	owners := h.refOwnersLocked(name)
	h.mu.Unlock()
	if ok {
		h.notifyRefs(owners, name, max.SymGlobalSymbolUnbinding)
	}
}

// BufferSamples exposes the interleaved samples of a named buffer~.
func (h *Host) BufferSamples(name string) []float32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.buffers[name]; ok {
		return b.samples
	}
	return nil
}

// BufferLocks reports the lock depth and dirty count of a named buffer~.
func (h *Host) BufferLocks(name string) (locks, dirty int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.buffers[name]; ok {
		return b.locks, b.dirty
	}
	return 0, 0
}

func (h *Host) refOwnersLocked(name string) []unsafe.Pointer {
	var owners []unsafe.Pointer
	for _, r := range h.bufRefs {
		if r.name == name {
			owners = append(owners, r.owner)
		}
	}
	return owners
}

func (h *Host) notifyRefs(owners []unsafe.Pointer, name, msg string) {
	for _, o := range owners {
		h.notifyClient(o, h.Gensym(name), h.Gensym(msg), nil, nil)
	}
}

// BufferRefNew creates a reference to the buffer~ called name.
func (h *Host) BufferRefNew(owner unsafe.Pointer, name *max.Symbol) max.BufferRef {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := max.BufferRef(h.handle())
	h.bufRefs[r] = &bufferRef{owner: owner, name: name.Name()}
	return r
}

// BufferRefSet rebinds a reference.
func (h *Host) BufferRefSet(r max.BufferRef, name *max.Symbol) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if br, ok := h.bufRefs[r]; ok {
		br.name = name.Name()
	}
}

// BufferRefExists reports whether the referenced buffer~ exists.
func (h *Host) BufferRefExists(r max.BufferRef) bool {
	return h.BufferRefGetBuffer(r) != 0
}

// BufferRefGetBuffer resolves a reference, returning 0 when the buffer~ is missing.
func (h *Host) BufferRefGetBuffer(r max.BufferRef) max.Buffer {
	h.mu.Lock()
	defer h.mu.Unlock()
	br, ok := h.bufRefs[r]
	if !ok {
		return 0
	}
	if b, ok := h.buffers[br.name]; ok {
		return b.handle
	}
	return 0
}

// BufferRefNotify lets a reference observe a notification.
func (h *Host) BufferRefNotify(r max.BufferRef, _, _ *max.Symbol, _, _ unsafe.Pointer) max.Err {
	h.mu.Lock()
	defer h.mu.Unlock()
	br, ok := h.bufRefs[r]
	if !ok {
		return max.ErrInvalidPtr
	}
	br.notified++
	return max.ErrNone
}

// BufferRefNotified counts notifications a reference has observed.
func (h *Host) BufferRefNotified(r max.BufferRef) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if br, ok := h.bufRefs[r]; ok {
		return br.notified
	}
	return 0
}

// BufferRefFree releases a reference.
func (h *Host) BufferRefFree(r max.BufferRef) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.bufRefs, r)
}

// LiveBufferRefs counts references not yet freed.
func (h *Host) LiveBufferRefs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.bufRefs)
}

func (h *Host) buffer(b max.Buffer) *buffer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bufHandles[b]
}

// BufferChannelCount returns the channel count, or 0 for a missing buffer~.
func (h *Host) BufferChannelCount(b max.Buffer) int {
	if buf := h.buffer(b); buf != nil {
		return buf.channels
	}
	return 0
}

// BufferFrameCount returns the frame count, or 0 for a missing buffer~.
func (h *Host) BufferFrameCount(b max.Buffer) int {
	if buf := h.buffer(b); buf != nil {
		return buf.frames
	}
	return 0
}

// BufferSampleRate returns the sample rate, or 0 for a missing buffer~.
func (h *Host) BufferSampleRate(b max.Buffer) float64 {
	if buf := h.buffer(b); buf != nil {
		return buf.sr
	}
	return 0
}

// BufferLockSamples locks a buffer~ and returns its interleaved samples.
func (h *Host) BufferLockSamples(b max.Buffer) unsafe.Pointer {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf, ok := h.bufHandles[b]
	if !ok || len(buf.samples) == 0 {
		return nil
	}
	buf.locks++
	return unsafe.Pointer(&buf.samples[0])
}

// BufferUnlockSamples undoes BufferLockSamples.
func (h *Host) BufferUnlockSamples(b max.Buffer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if buf, ok := h.bufHandles[b]; ok && buf.locks > 0 {
		buf.locks--
	}
}

// BufferSetDirty marks a buffer~ modified and notifies its references.
func (h *Host) BufferSetDirty(b max.Buffer) {
	h.mu.Lock()
	buf, ok := h.bufHandles[b]
	if !ok {
		h.mu.Unlock()
		return
	}
	buf.dirty++
	name := buf.name
	owners := h.refOwnersLocked(name)
	h.mu.Unlock()
	h.notifyRefs(owners, name, max.SymBufferModified)
}
