package external

import (
	"reflect"
	"unsafe"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/justyntemme/gomedian/pkg/buffer"
	"github.com/justyntemme/gomedian/pkg/class"
	"github.com/justyntemme/gomedian/pkg/clock"
	"github.com/justyntemme/gomedian/pkg/debug"
	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/notify"
	"github.com/justyntemme/gomedian/pkg/object"
)

// Closer is implemented by payloads that release resources when their
// instance is freed. Close runs after the host state of the instance has
// been torn down.
type Closer interface {
	Close()
}

// Notifier is implemented by payloads that want notifications not consumed
// by a declared subscriber.
type Notifier interface {
	Notify(n notify.Notification)
}

// Performer renders audio blocks. Every MSP payload implements it.
type Performer interface {
	Perform(b *Block)
}

// DSPPreparer is told the sample rate and maximum vector size whenever the
// audio chain is compiled.
type DSPPreparer interface {
	PrepareDSP(sampleRate float64, maxVectorSize int)
}

// Definition describes a class.
type Definition[T any] struct {
	// Name is the class name typed into an object box.
	Name string
	// Namespace defaults to "box".
	Namespace string
	// New builds the payload of a new instance. Inlets, outlets, buffer
	// references and clocks declared on b are created after New returns.
	New func(b *Builder[T]) (*T, error)
	// Setup adds methods and attributes to the class.
	Setup func(c *class.Class[T]) error
}

// cell is what the instance table stores for each instance: the payload and
// everything the framework created for it.
type cell[T any] struct {
	value     *T
	intIn     [10]func(*T, int64)
	floatIn   [10]func(*T, float64)
	proxies   []max.Proxy
	buffers   []*buffer.Ref
	clocks    []*clock.Clock
	subs      []notify.Subscriber
	assistIn  map[int]string
	assistOut map[int]string
	performer Performer
	block     Block
}

// Wrapper is a registered class and the table of its live instances.
type Wrapper[T any] struct {
	mod    *Module
	rt     max.Runtime
	def    Definition[T]
	kind   max.HeaderKind
	table  *object.Table[cell[T]]
	class  *class.Class[T]
	handle max.Class
	log    *zap.Logger
	meter  debug.BlockMeter
}

// Register creates, or returns the already registered, Max class for T.
func Register[T any](m *Module, def Definition[T]) (*Wrapper[T], error) {
	return register(m, def, max.HeaderObject)
}

// RegisterDSP creates, or returns the already registered, MSP class for T.
// *T must implement Performer.
func RegisterDSP[T any](m *Module, def Definition[T]) (*Wrapper[T], error) {
	if _, ok := any((*T)(nil)).(Performer); !ok {
		return nil, oops.Code(max.CodeClassRegister).
			With("class", def.Name).
			Errorf("signal class payload must implement Perform")
	}
	return register(m, def, max.HeaderPxObject)
}

func typeKey[T any](kind max.HeaderKind) string {
	t := reflect.TypeFor[T]()
	return t.PkgPath() + "." + t.String() + "/" + kind.String()
}

func register[T any](m *Module, def Definition[T], kind max.HeaderKind) (*Wrapper[T], error) {
	if def.Name == "" {
		return nil, oops.Code(max.CodeClassRegister).Errorf("class name is empty")
	}
	if def.New == nil {
		return nil, oops.Code(max.CodeClassRegister).With("class", def.Name).Errorf("class has no constructor")
	}
	if def.Namespace == "" {
		def.Namespace = max.NamespaceBox
	}
	entry, err := m.reg.Register(class.Definition{
		Key:  typeKey[T](kind),
		Name: def.Name,
		Build: func() (max.Class, any, error) {
			w, err := newWrapper(m, def, kind)
			if err != nil {
				return 0, nil, err
			}
			return w.handle, w, nil
		},
		Publish: func(h max.Class) max.Err {
			e := m.rt.ClassRegister(m.rt.Gensym(def.Namespace), h)
			if e == max.ErrNone {
				m.prof.ClassRegistered()
			}
			return e
		},
	})
	if err != nil {
		return nil, err
	}
	w, ok := entry.State.(*Wrapper[T])
	if !ok {
		return nil, oops.Code(max.CodeClassRegister).With("class", def.Name).Errorf("registry entry holds another type")
	}
	return w, nil
}

func newWrapper[T any](m *Module, def Definition[T], kind max.HeaderKind) (*Wrapper[T], error) {
	layout := object.NewLayout(m.rt, kind)
	w := &Wrapper[T]{
		mod:   m,
		rt:    m.rt,
		def:   def,
		kind:  kind,
		table: object.NewTable[cell[T]](layout),
		log:   m.log.Named(def.Name),
	}
	w.handle = m.rt.ClassNew(def.Name, w.newInstance, w.freeInstance, layout.InstanceSize, max.AGimme)
	if w.handle == 0 {
		return nil, oops.Code(max.CodeClassRegister).With("class", def.Name).Errorf("host refused to create class")
	}
	w.class = class.New[T](m.rt, w.handle, false, w.Borrow, w.log)
	w.class.Observe(func(sel string) { m.prof.Message(def.Name, sel) })

	if err := w.installInlets(); err != nil {
		return nil, err
	}
	if err := w.class.AddRaw(max.SymNotify, max.NotifyMethod(w.notify)); err != nil {
		return nil, err
	}
	if err := w.class.AddRaw(max.SymAssist, max.AssistMethod(w.assist)); err != nil {
		return nil, err
	}
	if kind == max.HeaderPxObject {
		if err := w.class.AddRaw(max.SymDSP64, max.DSP64Method(w.dsp64)); err != nil {
			return nil, err
		}
		m.rt.ClassDSPInit(w.handle)
		w.meter = m.prof.Block(def.Name)
	}
	if def.Setup != nil {
		if err := def.Setup(w.class); err != nil {
			return nil, oops.Code(max.CodeClassRegister).With("class", def.Name).Wrap(err)
		}
	}
	return w, nil
}

// Name returns the class name.
func (w *Wrapper[T]) Name() string { return w.def.Name }

// Handle returns the host class handle.
func (w *Wrapper[T]) Handle() max.Class { return w.handle }

// Class returns the class setup handle.
func (w *Wrapper[T]) Class() *class.Class[T] { return w.class }

// Layout returns the instance layout.
func (w *Wrapper[T]) Layout() object.Layout { return w.table.Layout() }

// Instances returns the number of instances the wrapper tracks.
func (w *Wrapper[T]) Instances() int { return w.table.Len() }

// Borrow returns the payload of a live instance of this class.
func (w *Wrapper[T]) Borrow(self unsafe.Pointer) (*T, error) {
	c, err := w.table.Borrow(self)
	if err != nil {
		return nil, err
	}
	return c.value, nil
}

// State returns the lifecycle state of an instance.
func (w *Wrapper[T]) State(self unsafe.Pointer) (object.State, error) {
	inst, err := w.table.Recover(self)
	if err != nil {
		return 0, err
	}
	return inst.State(), nil
}

func (w *Wrapper[T]) newInstance(name *max.Symbol, argv []max.Atom) unsafe.Pointer {
	defer object.Boundary(w.log, "new")

	self := w.rt.ObjectAlloc(w.handle)
	inst, err := w.table.Attach(self)
	if err != nil {
		w.log.Error("instance allocation failed", zap.Error(err))
		if self != nil {
			w.rt.ObjectFree(self)
		}
		return nil
	}
	c, err := w.construct(self, name, argv)
	if err == nil {
		if err = inst.Init(c); err != nil {
			w.releaseHost(self, c)
		}
	}
	if err != nil {
		w.log.Error("instance construction failed",
			zap.String("code", max.ErrorCode(err)),
			zap.Error(err),
		)
		w.table.Detach(inst)
		w.rt.ObjectFree(self)
		return nil
	}
	w.mod.prof.InstanceCreated(w.def.Name)
	return self
}

func (w *Wrapper[T]) construct(self unsafe.Pointer, name *max.Symbol, argv []max.Atom) (*cell[T], error) {
	b := newBuilder(w, self, name, argv)
	v, err := w.def.New(b)
	if err == nil && v == nil {
		err = oops.Code(max.CodeOutOfMemory).Errorf("constructor returned no payload")
	}
	if err != nil {
		return nil, err
	}
	c, err := b.finalize(v)
	if err != nil {
		if closer, ok := any(v).(Closer); ok {
			closer.Close()
		}
		return nil, err
	}
	return c, nil
}

func (w *Wrapper[T]) freeInstance(self unsafe.Pointer) {
	defer object.Boundary(w.log, "free")

	inst, err := w.table.Recover(self)
	if err != nil {
		// Construction failed and the instance was already forgotten.
		return
	}
	c, ok := inst.BeginTeardown()
	if !ok {
		return
	}
	if c != nil {
		w.releaseHost(self, c)
		if closer, ok := any(c.value).(Closer); ok {
			closer.Close()
		}
		c.value = nil
	}
	w.table.Detach(inst)
	w.mod.prof.InstanceFreed(w.def.Name)
}

// releaseHost undoes everything finalize asked the host for, in reverse.
func (w *Wrapper[T]) releaseHost(self unsafe.Pointer, c *cell[T]) {
	if w.kind == max.HeaderPxObject {
		w.rt.DSPFree(self)
	}
	for _, ck := range c.clocks {
		ck.Free()
	}
	for _, r := range c.buffers {
		r.Close()
	}
	for _, p := range c.proxies {
		w.rt.ProxyFree(p)
	}
	c.clocks, c.buffers, c.proxies, c.subs = nil, nil, nil, nil
}
