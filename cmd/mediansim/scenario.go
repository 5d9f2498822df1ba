package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"unsafe"

	"github.com/samber/oops"

	"github.com/justyntemme/gomedian/pkg/atom"
	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/max/simhost"
)

// runner plays scenario steps against a host and reports what the objects
// did.
type runner struct {
	host    *simhost.Host
	cfg     Config
	out     io.Writer
	objects map[string]unsafe.Pointer
	names   map[unsafe.Pointer]string
	jitter  map[string]bool
	console int
	dspOn   bool
}

func newRunner(h *simhost.Host, cfg Config, out io.Writer) *runner {
	r := &runner{
		host:    h,
		cfg:     cfg,
		out:     out,
		objects: make(map[string]unsafe.Pointer),
		names:   make(map[unsafe.Pointer]string),
		jitter:  make(map[string]bool),
	}
	for _, c := range h.Classes() {
		if c.Jitter {
			r.jitter[c.Name] = true
		}
	}
	return r
}

// Run executes every step in order and stops at the first failure. Objects
// still alive afterwards are freed.
func (r *runner) Run() error {
	defer r.freeAll()
	for i, s := range r.cfg.Steps {
		if err := r.step(s); err != nil {
			return oops.Code(max.CodeScenarioFailed).With("step", i).With("op", s.Op).Wrap(err)
		}
		r.flush()
	}
	return nil
}

func (r *runner) step(s Step) error {
	switch s.Op {
	case opNew:
		return r.create(s)
	case opSend:
		return r.send(s)
	case opAttr:
		return r.attr(s)
	case opConnect:
		return r.connect(s)
	case opDSP:
		return r.dsp(s)
	case opAdvance:
		fired := r.host.Advance(s.Ms)
		fmt.Fprintf(r.out, "advance %gms: %d clock(s) fired\n", s.Ms, fired)
		return nil
	case opMatrix:
		return r.matrix(s)
	case opBuffer:
		return r.buffer(s)
	case opFree:
		return r.free(s.ID)
	default:
		return oops.Errorf("unknown op %q", s.Op)
	}
}

func (r *runner) lookup(id string) (unsafe.Pointer, error) {
	obj, ok := r.objects[id]
	if !ok {
		return nil, oops.With("id", id).Errorf("no object with this id")
	}
	return obj, nil
}

func (r *runner) args(text string) []max.Atom {
	return atom.Parse(r.host, text)
}

func (r *runner) create(s Step) error {
	if _, dup := r.objects[s.ID]; dup {
		return oops.With("id", s.ID).Errorf("id already in use")
	}
	var (
		obj unsafe.Pointer
		err error
	)
	if r.jitter[s.Class] {
		obj, err = r.host.NewJitObject(s.Class)
	} else {
		obj, err = r.host.NewObject(s.Class, r.args(s.Args)...)
	}
	if err != nil {
		return err
	}
	r.objects[s.ID] = obj
	r.names[obj] = s.ID
	fmt.Fprintf(r.out, "new %s: %s\n", s.ID, s.Class)
	return nil
}

func (r *runner) send(s Step) error {
	obj, err := r.lookup(s.ID)
	if err != nil {
		return err
	}
	return r.host.Send(obj, s.Inlet, s.Selector, r.args(s.Args)...)
}

// attr sets the attribute when args are given and always prints its value
// afterwards. Deferred setters are flushed first.
func (r *runner) attr(s Step) error {
	obj, err := r.lookup(s.ID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(s.Args) != "" {
		if err := r.host.SetAttr(obj, s.Name, r.args(s.Args)...); err != nil {
			return err
		}
		r.host.RunMainQueue()
	}
	info, err := r.host.Attr(obj, s.Name)
	if err != nil {
		return err
	}
	if !info.HasGetter {
		fmt.Fprintf(r.out, "%s %s: set\n", s.ID, s.Name)
		return nil
	}
	argv, err := r.host.GetAttr(obj, s.Name)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s %s = %s\n", s.ID, s.Name, atom.Format(argv))
	return nil
}

func (r *runner) connect(s Step) error {
	from, err := r.lookup(s.ID)
	if err != nil {
		return err
	}
	to, err := r.lookup(s.To)
	if err != nil {
		return err
	}
	return r.host.Connect(from, s.Outlet, to, s.Inlet)
}

// dsp compiles the chain on first use and runs one block through the
// object, feeding every signal inlet the constant Value.
func (r *runner) dsp(s Step) error {
	obj, err := r.lookup(s.ID)
	if err != nil {
		return err
	}
	if !r.dspOn {
		if err := r.host.StartDSP(r.cfg.SampleRate, r.cfg.VectorSize); err != nil {
			return err
		}
		r.dspOn = true
	}
	frames := s.Frames
	if frames <= 0 {
		frames = r.cfg.VectorSize
	}
	var ins [][]float64
	for _, in := range r.host.Inlets(obj) {
		if in.Kind != "signal" {
			continue
		}
		ch := make([]float64, frames)
		for i := range ch {
			ch[i] = s.Value
		}
		ins = append(ins, ch)
	}
	outs, err := r.host.Process(obj, ins, frames)
	if err != nil {
		return err
	}
	for i, ch := range outs {
		fmt.Fprintf(r.out, "%s signal %d: first %g last %g\n", s.ID, i, ch[0], ch[len(ch)-1])
	}
	return nil
}

// matrix runs one calculation with an input filled with Value and an empty
// output, then prints the first cell of the output.
func (r *runner) matrix(s Step) error {
	obj, err := r.lookup(s.ID)
	if err != nil {
		return err
	}
	typ := s.Type
	if typ == "" {
		typ = max.SymChar
	}
	in := r.host.NewMatrix(typ, s.Planes, s.Dims...)
	out := r.host.NewMatrix(typ, 1, 1)
	defer r.host.FreeMatrix(in)
	defer r.host.FreeMatrix(out)
	if err := fill(r.host.MatrixBytes(in), typ, s.Value); err != nil {
		return err
	}

	code, err := r.host.CalcMatrix(obj, []unsafe.Pointer{in}, []unsafe.Pointer{out})
	if err != nil {
		return err
	}
	if code != max.JitErrNone {
		return oops.With("code", code).Errorf("matrix calculation failed")
	}
	fmt.Fprintf(r.out, "%s matrix: %s\n", s.ID, firstCell(r.host.MatrixBytes(out), typ, s.Planes))
	return nil
}

func fill(b []byte, typ string, v float64) error {
	switch typ {
	case max.SymChar:
		for i := range b {
			b[i] = byte(v)
		}
	case max.SymLong:
		for i := 0; i+4 <= len(b); i += 4 {
			binary.LittleEndian.PutUint32(b[i:], uint32(int32(v)))
		}
	case max.SymFloat32:
		for i := 0; i+4 <= len(b); i += 4 {
			binary.LittleEndian.PutUint32(b[i:], math.Float32bits(float32(v)))
		}
	case max.SymFloat64:
		for i := 0; i+8 <= len(b); i += 8 {
			binary.LittleEndian.PutUint64(b[i:], math.Float64bits(v))
		}
	default:
		return oops.Code(max.CodeMatrixTypeMismatch).With("type", typ).Errorf("unknown matrix type")
	}
	return nil
}

func firstCell(b []byte, typ string, planes int) string {
	vals := make([]string, 0, planes)
	for p := 0; p < planes; p++ {
		switch typ {
		case max.SymChar:
			if p < len(b) {
				vals = append(vals, fmt.Sprint(b[p]))
			}
		case max.SymLong:
			if o := p * 4; o+4 <= len(b) {
				vals = append(vals, fmt.Sprint(int32(binary.LittleEndian.Uint32(b[o:]))))
			}
		case max.SymFloat32:
			if o := p * 4; o+4 <= len(b) {
				vals = append(vals, fmt.Sprint(math.Float32frombits(binary.LittleEndian.Uint32(b[o:]))))
			}
		case max.SymFloat64:
			if o := p * 8; o+8 <= len(b) {
				vals = append(vals, fmt.Sprint(math.Float64frombits(binary.LittleEndian.Uint64(b[o:]))))
			}
		}
	}
	return strings.Join(vals, " ")
}

func (r *runner) buffer(s Step) error {
	rate := r.cfg.SampleRate
	r.host.CreateBuffer(s.Name, s.Channels, s.Frames, rate)
	samples := r.host.BufferSamples(s.Name)
	for i := range samples {
		samples[i] = float32(s.Value)
	}
	fmt.Fprintf(r.out, "buffer %s: %d x %d\n", s.Name, s.Channels, s.Frames)
	return nil
}

func (r *runner) free(id string) error {
	obj, err := r.lookup(id)
	if err != nil {
		return err
	}
	delete(r.objects, id)
	if err := r.host.FreeObject(obj); err != nil {
		return err
	}
	r.flush()
	delete(r.names, obj)
	fmt.Fprintf(r.out, "free %s\n", id)
	return nil
}

func (r *runner) freeAll() {
	ids := make([]string, 0, len(r.objects))
	for id := range r.objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		_ = r.free(id)
	}
}

// flush prints console lines and outlet traffic produced since the last
// call.
func (r *runner) flush() {
	lines := r.host.Console()
	for _, l := range lines[r.console:] {
		who := "max"
		if id, ok := r.names[l.Obj]; ok {
			who = id
		}
		prefix := ""
		if l.Error {
			prefix = "error: "
		}
		fmt.Fprintf(r.out, "[%s] %s%s\n", who, prefix, l.Text)
	}
	r.console = len(lines)

	ids := make([]string, 0, len(r.objects))
	for id := range r.objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, o := range r.host.Outputs(r.objects[id]) {
			text := o.Selector
			if len(o.Args) > 0 {
				text += " " + atom.Format(o.Args)
			}
			fmt.Fprintf(r.out, "%s out%d: %s\n", id, o.Outlet, strings.TrimSpace(text))
		}
	}
}
