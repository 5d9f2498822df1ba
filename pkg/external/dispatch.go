package external

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"

	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/notify"
	"github.com/justyntemme/gomedian/pkg/object"
)

// maxNumberInlet is the highest inlet the host routes through in1..in9 and
// ft1..ft9.
const maxNumberInlet = 9

func inletSelector(prefix string, n int) string {
	return fmt.Sprintf("%s%d", prefix, n)
}

// installInlets registers in1..in9 and ft1..ft9 once per class. Each routes
// to the callback the instance declared for that inlet, if any.
func (w *Wrapper[T]) installInlets() error {
	for n := 1; n <= maxNumberInlet; n++ {
		if err := w.class.AddRaw(inletSelector("in", n), w.intInlet(n), max.ALong); err != nil {
			return err
		}
		if err := w.class.AddRaw(inletSelector("ft", n), w.floatInlet(n), max.AFloat); err != nil {
			return err
		}
	}
	return nil
}

func (w *Wrapper[T]) intInlet(n int) max.TypedMethod {
	sel := inletSelector("in", n)
	return func(self unsafe.Pointer, args []max.Word) {
		defer object.Boundary(w.log, sel)
		c, err := w.table.Borrow(self)
		if err != nil {
			w.log.Warn("message dropped", zap.String("selector", sel), zap.Error(err))
			return
		}
		if fn := c.intIn[n]; fn != nil {
			w.class.Delivered(sel)
			fn(c.value, args[0].Long)
		}
	}
}

func (w *Wrapper[T]) floatInlet(n int) max.TypedMethod {
	sel := inletSelector("ft", n)
	return func(self unsafe.Pointer, args []max.Word) {
		defer object.Boundary(w.log, sel)
		c, err := w.table.Borrow(self)
		if err != nil {
			w.log.Warn("message dropped", zap.String("selector", sel), zap.Error(err))
			return
		}
		if fn := c.floatIn[n]; fn != nil {
			w.class.Delivered(sel)
			fn(c.value, args[0].Float)
		}
	}
}

// notify offers a host notification to the instance's subscribers, then to
// the payload itself.
func (w *Wrapper[T]) notify(self unsafe.Pointer, senderName, msg *max.Symbol, sender, data unsafe.Pointer) max.Err {
	defer object.Boundary(w.log, max.SymNotify)
	c, err := w.table.Borrow(self)
	if err != nil {
		return max.ToErr(err)
	}
	n := notify.Notification{SenderName: senderName, Message: msg, Sender: sender, Data: data}
	notify.Dispatch(n, c.subs)
	if nt, ok := any(c.value).(Notifier); ok {
		nt.Notify(n)
	}
	return max.ErrNone
}

func (w *Wrapper[T]) assist(self unsafe.Pointer, _ unsafe.Pointer, kind max.AssistKind, index int) string {
	defer object.Boundary(w.log, max.SymAssist)
	c, err := w.table.Borrow(self)
	if err != nil {
		return ""
	}
	if kind == max.AssistOutlet {
		return c.assistOut[index]
	}
	return c.assistIn[index]
}

func (w *Wrapper[T]) dsp64(self unsafe.Pointer, dsp64 unsafe.Pointer, _ []int16, sampleRate float64, maxVectorSize int, _ int) {
	defer object.Boundary(w.log, max.SymDSP64)
	c, err := w.table.Borrow(self)
	if err != nil {
		w.log.Warn("dsp request dropped", zap.Error(err))
		return
	}
	if p, ok := any(c.value).(DSPPreparer); ok {
		p.PrepareDSP(sampleRate, maxVectorSize)
	}
	c.block.SampleRate = sampleRate
	w.rt.DSPAdd64(dsp64, self, w.perform, 0, nil)
}

// perform runs on the audio thread. It must not allocate, block or log.
func (w *Wrapper[T]) perform(self, _ unsafe.Pointer, ins unsafe.Pointer, numIns int, outs unsafe.Pointer, numOuts int, frames int, _ int, _ unsafe.Pointer) {
	defer object.Boundary(w.log, "perform64")
	c, err := w.table.Borrow(self)
	if err != nil {
		return
	}
	blk := &c.block
	if numIns > len(blk.inputs) || numOuts > len(blk.outputs) {
		panic(fmt.Sprintf("host passed %d/%d channels to an object with %d/%d",
			numIns, numOuts, len(blk.inputs), len(blk.outputs)))
	}
	start := w.meter.Start()
	if numIns > 0 {
		for i, p := range unsafe.Slice((**float64)(ins), numIns) {
			blk.inputs[i] = unsafe.Slice(p, frames)
		}
	}
	if numOuts > 0 {
		for i, p := range unsafe.Slice((**float64)(outs), numOuts) {
			blk.outputs[i] = unsafe.Slice(p, frames)
		}
	}
	blk.Input = blk.inputs[:numIns]
	blk.Output = blk.outputs[:numOuts]
	blk.Frames = frames
	c.performer.Perform(blk)
	blk.release()
	w.meter.Stop(start)
}
