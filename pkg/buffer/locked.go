package buffer

import "github.com/justyntemme/gomedian/pkg/max"

// Locked is a locked buffer~. Samples are interleaved: frame i occupies
// Samples()[i*Channels() : (i+1)*Channels()]. The views are valid until Unlock.
type Locked struct {
	ref      *Ref
	buf      max.Buffer
	samples  []float32
	channels int
	frames   int
	rate     float64
	dirty    bool
	done     bool
}

func (l *Locked) Channels() int       { return l.channels }
func (l *Locked) Frames() int         { return l.frames }
func (l *Locked) SampleRate() float64 { return l.rate }

// Samples returns every sample, interleaved.
func (l *Locked) Samples() []float32 { return l.samples }

// Frame returns the samples of one frame, one per channel.
func (l *Locked) Frame(i int) []float32 {
	if i < 0 || i >= l.frames {
		return nil
	}
	return l.samples[i*l.channels : (i+1)*l.channels : (i+1)*l.channels]
}

// Sample reads one sample.
func (l *Locked) Sample(frame, channel int) float32 {
	return l.samples[frame*l.channels+channel]
}

// SetSample writes one sample and marks the buffer dirty.
func (l *Locked) SetSample(frame, channel int, v float32) {
	l.samples[frame*l.channels+channel] = v
	l.dirty = true
}

// ReadChannel copies one channel into dst and returns the number of frames copied.
func (l *Locked) ReadChannel(channel int, dst []float32) int {
	if channel < 0 || channel >= l.channels {
		return 0
	}
	n := min(len(dst), l.frames)
	for i := range n {
		dst[i] = l.samples[i*l.channels+channel]
	}
	return n
}

// WriteChannel copies src into one channel, marks the buffer dirty and
// returns the number of frames written.
func (l *Locked) WriteChannel(channel int, src []float32) int {
	if channel < 0 || channel >= l.channels {
		return 0
	}
	n := min(len(src), l.frames)
	for i := range n {
		l.samples[i*l.channels+channel] = src[i]
	}
	if n > 0 {
		l.dirty = true
	}
	return n
}

// Dirty marks the buffer modified. The host is told on Unlock.
func (l *Locked) Dirty() { l.dirty = true }

// Unlock releases the sample lock. If the buffer was modified the host is
// told after the reference guard is released, since that notification comes
// back through the owner's notify method.
func (l *Locked) Unlock() {
	if l.done {
		return
	}
	l.done = true
	rt := l.ref.rt
	l.ref.lock()
	rt.BufferUnlockSamples(l.buf)
	l.ref.unlock()
	l.samples = nil
	if l.dirty {
		rt.BufferSetDirty(l.buf)
	}
}
