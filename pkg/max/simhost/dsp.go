package simhost

import (
	"unsafe"

	"github.com/justyntemme/gomedian/pkg/max"
)

type performEntry struct {
	obj       unsafe.Pointer
	fn        max.PerformMethod
	flags     int
	userParam unsafe.Pointer
	dsp64     unsafe.Pointer
}

// dspChain is the object handed to dsp64 methods as the dsp64 argument.
type dspChain struct {
	entries []*performEntry
}

// DSPSetup gives an MSP instance its signal inlets. The default inlet becomes
// the first signal inlet.
func (h *Host) DSPSetup(obj unsafe.Pointer, signalInlets int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.objects[obj]
	if !ok {
		return
	}
	o.dspSetup = true
	o.signalInlets = signalInlets
	if signalInlets > 0 {
		o.inlets[0].kind = inletSignal
	}
	for i := 1; i < signalInlets; i++ {
		o.inlets = append(o.inlets, inletSlot{kind: inletSignal, index: i})
	}
}

// DSPFree detaches an instance from the audio chain.
func (h *Host) DSPFree(obj unsafe.Pointer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if o, ok := h.objects[obj]; ok {
		o.dspSetup = false
	}
	h.removeFromChainLocked(obj)
}

// DSPAdd64 appends a perform routine to the chain being compiled.
func (h *Host) DSPAdd64(dsp64 unsafe.Pointer, obj unsafe.Pointer, fn max.PerformMethod, flags int, userParam unsafe.Pointer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	chain := (*dspChain)(dsp64)
	entry := &performEntry{obj: obj, fn: fn, flags: flags, userParam: userParam, dsp64: dsp64}
	chain.entries = append(chain.entries, entry)
	h.chain = append(h.chain, entry)
}

func (h *Host) removeFromChainLocked(obj unsafe.Pointer) {
	kept := h.chain[:0]
	for _, e := range h.chain {
		if e.obj != obj {
			kept = append(kept, e)
		}
	}
	h.chain = kept
}

// DSPSetupDone reports whether dsp_setup has run for obj and not been undone
// by dsp_free.
func (h *Host) DSPSetupDone(obj unsafe.Pointer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.objects[obj]
	return ok && o.dspSetup
}

// StartDSP compiles the audio chain: every live MSP instance with a dsp64
// method is asked to add its perform routine.
func (h *Host) StartDSP(sampleRate float64, vectorSize int) error {
	h.mu.Lock()
	h.chain = nil
	type target struct {
		obj   unsafe.Pointer
		fn    max.DSP64Method
		count []int16
	}
	var targets []target
	for _, o := range h.objects {
		if o.freed || !o.class.dsp {
			continue
		}
		m := o.class.lookup(max.SymDSP64)
		if m == nil {
			continue
		}
		fn, ok := m.fn.(max.DSP64Method)
		if !ok {
			continue
		}
		count := make([]int16, len(o.inlets)+len(o.outlets))
		for i := range count {
			count[i] = 1
		}
		targets = append(targets, target{obj: o.ptr, fn: fn, count: count})
	}
	h.mu.Unlock()

	for _, t := range targets {
		chain := &dspChain{}
		h.onThread(ThreadMain, func() {
			t.fn(t.obj, unsafe.Pointer(chain), t.count, sampleRate, vectorSize, 0)
		})
	}
	return nil
}

// signalCounts returns the signal inlet and outlet counts of an instance.
func (h *Host) signalCounts(obj unsafe.Pointer) (ins, outs int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.objects[obj]
	if !ok {
		return 0, 0, errorf("no object at %p", obj)
	}
	for _, out := range o.outlets {
		if h.outlets[out].typ == max.SymSignal {
			outs++
		}
	}
	return o.signalInlets, outs, nil
}

// Process runs one audio block through the perform routine of obj. ins must
// hold one slice per signal inlet, each frames long. The returned slices hold
// the signal outlets.
func (h *Host) Process(obj unsafe.Pointer, ins [][]float64, frames int) ([][]float64, error) {
	if frames <= 0 {
		return nil, errorf("frame count must be positive, got %d", frames)
	}
	numIns, numOuts, err := h.signalCounts(obj)
	if err != nil {
		return nil, err
	}
	if len(ins) != numIns {
		return nil, errorf("expected %d input channels, got %d", numIns, len(ins))
	}

	h.mu.Lock()
	var entry *performEntry
	for _, e := range h.chain {
		if e.obj == obj {
			entry = e
			break
		}
	}
	h.mu.Unlock()
	if entry == nil {
		return nil, errorf("object %p is not in the dsp chain", obj)
	}

	inPtrs := make([]*float64, numIns+1)
	for i, ch := range ins {
		if len(ch) < frames {
			return nil, errorf("input channel %d shorter than %d frames", i, frames)
		}
		inPtrs[i] = &ch[0]
	}
	outs := make([][]float64, numOuts)
	outPtrs := make([]*float64, numOuts+1)
	for i := range outs {
		outs[i] = make([]float64, frames)
		outPtrs[i] = &outs[i][0]
	}

	h.onThread(ThreadAudio, func() {
		entry.fn(obj, entry.dsp64, unsafe.Pointer(&inPtrs[0]), numIns, unsafe.Pointer(&outPtrs[0]), numOuts, frames, entry.flags, entry.userParam)
	})
	return outs, nil
}
