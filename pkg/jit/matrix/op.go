package matrix

import (
	"reflect"
	"unsafe"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/justyntemme/gomedian/pkg/class"
	"github.com/justyntemme/gomedian/pkg/external"
	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/object"
)

// Variable is the matrix count of an operator taking any number of
// matrices on one side.
const Variable = -1

// IOCount is the number of input and output matrices of an operator.
type IOCount struct {
	Inputs  int
	Outputs int
}

func (c IOCount) capacity(n int) int {
	if n == Variable {
		return max.MatrixMaxPlaneCount
	}
	return n
}

// Calculator is implemented by every operator payload.
type Calculator interface {
	Calc(inputs, outputs []Matrix) error
}

// OpDefinition describes a Jitter matrix operator class.
type OpDefinition[T any] struct {
	Name  string
	IO    IOCount
	New   func() (*T, error)
	Setup func(c *class.Class[T]) error
}

type opCell[T any] struct {
	value   *T
	calc    Calculator
	inputs  []Matrix
	outputs []Matrix
}

// Op is a registered matrix operator class.
type Op[T any] struct {
	mod    *external.Module
	rt     max.Runtime
	def    OpDefinition[T]
	table  *object.Table[opCell[T]]
	class  *class.Class[T]
	handle max.Class
	log    *zap.Logger
}

// RegisterOp creates, or returns the already registered, Jitter class for
// T. *T must implement Calculator.
func RegisterOp[T any](m *external.Module, def OpDefinition[T]) (*Op[T], error) {
	if _, ok := any((*T)(nil)).(Calculator); !ok {
		return nil, oops.Code(max.CodeClassRegister).With("class", def.Name).Errorf("matrix operator must implement Calc")
	}
	if def.Name == "" || def.New == nil {
		return nil, oops.Code(max.CodeClassRegister).With("class", def.Name).Errorf("matrix operator needs a name and a constructor")
	}
	t := reflect.TypeFor[T]()
	entry, err := m.Registry().Register(class.Definition{
		Key:  t.PkgPath() + "." + t.String() + "/" + max.HeaderJitObject.String(),
		Name: def.Name,
		Build: func() (max.Class, any, error) {
			op, err := newOp(m, def)
			if err != nil {
				return 0, nil, err
			}
			return op.handle, op, nil
		},
		Publish: func(h max.Class) max.Err {
			e := m.Runtime().JitClassRegister(h)
			if e == max.ErrNone {
				m.Profiler().ClassRegistered()
			}
			return e
		},
	})
	if err != nil {
		return nil, err
	}
	op, ok := entry.State.(*Op[T])
	if !ok {
		return nil, oops.Code(max.CodeClassRegister).With("class", def.Name).Errorf("registry entry holds another type")
	}
	return op, nil
}

func newOp[T any](m *external.Module, def OpDefinition[T]) (*Op[T], error) {
	rt := m.Runtime()
	layout := object.NewLayout(rt, max.HeaderJitObject)
	op := &Op[T]{
		mod:   m,
		rt:    rt,
		def:   def,
		table: object.NewTable[opCell[T]](layout),
		log:   m.Logger().Named(def.Name),
	}
	op.handle = rt.JitClassNew(def.Name, op.newInstance, op.freeInstance, layout.InstanceSize)
	if op.handle == 0 {
		return nil, oops.Code(max.CodeClassRegister).With("class", def.Name).Errorf("host refused to create class")
	}
	mop := rt.JitMOPNew(def.IO.Inputs, def.IO.Outputs)
	if mop == 0 {
		return nil, oops.Code(max.CodeOutOfMemory).With("class", def.Name).Errorf("host refused matrix operator adornment")
	}
	if e := rt.JitClassAddAdornment(op.handle, mop); e != max.ErrNone {
		return nil, oops.Code(max.CodeClassRegister).With("class", def.Name).Wrap(e)
	}
	op.class = class.New[T](rt, op.handle, true, op.Borrow, op.log)
	op.class.Observe(func(sel string) { m.Profiler().Message(def.Name, sel) })
	if err := op.class.AddRaw(max.SymMatrixCalc, max.MatrixCalcMethod(op.matrixCalc), max.ACant); err != nil {
		return nil, err
	}
	if def.Setup != nil {
		if err := def.Setup(op.class); err != nil {
			return nil, oops.Code(max.CodeClassRegister).With("class", def.Name).Wrap(err)
		}
	}
	return op, nil
}

// Name returns the class name.
func (op *Op[T]) Name() string { return op.def.Name }

// Handle returns the host class handle.
func (op *Op[T]) Handle() max.Class { return op.handle }

// Class returns the class setup handle.
func (op *Op[T]) Class() *class.Class[T] { return op.class }

// Instances returns the number of instances the class tracks.
func (op *Op[T]) Instances() int { return op.table.Len() }

// Borrow returns the payload of a live instance.
func (op *Op[T]) Borrow(self unsafe.Pointer) (*T, error) {
	c, err := op.table.Borrow(self)
	if err != nil {
		return nil, err
	}
	return c.value, nil
}

func (op *Op[T]) newInstance() unsafe.Pointer {
	defer object.Boundary(op.log, "jit_new")

	self := op.rt.JitObjectAlloc(op.handle)
	inst, err := op.table.Attach(self)
	if err != nil {
		op.log.Error("instance allocation failed", zap.Error(err))
		if self != nil {
			op.rt.JitObjectFree(self)
		}
		return nil
	}
	v, err := op.def.New()
	if err == nil && v == nil {
		err = oops.Code(max.CodeOutOfMemory).Errorf("constructor returned no payload")
	}
	if err == nil {
		err = inst.Init(&opCell[T]{
			value:   v,
			calc:    any(v).(Calculator),
			inputs:  make([]Matrix, 0, op.def.IO.capacity(op.def.IO.Inputs)),
			outputs: make([]Matrix, 0, op.def.IO.capacity(op.def.IO.Outputs)),
		})
	}
	if err != nil {
		op.log.Error("instance construction failed", zap.Error(err))
		op.table.Detach(inst)
		op.rt.JitObjectFree(self)
		return nil
	}
	op.mod.Profiler().InstanceCreated(op.def.Name)
	return self
}

func (op *Op[T]) freeInstance(self unsafe.Pointer) {
	defer object.Boundary(op.log, "jit_free")

	inst, err := op.table.Recover(self)
	if err != nil {
		return
	}
	c, ok := inst.BeginTeardown()
	if !ok {
		return
	}
	if c != nil {
		if closer, ok := any(c.value).(external.Closer); ok {
			closer.Close()
		}
		c.value = nil
	}
	op.table.Detach(inst)
	op.mod.Profiler().InstanceFreed(op.def.Name)
}

// fill loads the matrices of a host matrix list into dst.
func (op *Op[T]) fill(list unsafe.Pointer, want int, dst []Matrix) ([]Matrix, error) {
	dst = dst[:0]
	n := op.rt.MatrixListSize(list)
	if n == 0 || (want != Variable && n < want) {
		return dst, oops.Code(max.CodeMatrixInvalidPtr).
			With("want", want).
			With("have", n).
			Errorf("missing matrix")
	}
	if want != Variable {
		n = want
	}
	for i := 0; i < n; i++ {
		p := op.rt.MatrixListIndex(list, i)
		if p == nil {
			return dst, oops.Code(max.CodeMatrixInvalidPtr).With("index", i).Errorf("missing matrix")
		}
		dst = append(dst, Wrap(op.rt, p))
	}
	return dst, nil
}

func (op *Op[T]) matrixCalc(self, inputs, outputs unsafe.Pointer) max.JitErr {
	defer object.Boundary(op.log, max.SymMatrixCalc)

	c, err := op.table.Borrow(self)
	if err != nil {
		return max.ToJitErr(err)
	}
	c.inputs, err = op.fill(inputs, op.def.IO.Inputs, c.inputs)
	if err == nil {
		c.outputs, err = op.fill(outputs, op.def.IO.Outputs, c.outputs)
	}
	if err == nil {
		op.class.Delivered(max.SymMatrixCalc)
		err = c.calc.Calc(c.inputs, c.outputs)
	}
	op.mod.Profiler().MatrixCalc(op.def.Name, err)
	if err != nil {
		op.log.Debug("matrix calc failed", zap.String("code", max.ErrorCode(err)), zap.Error(err))
	}
	return max.ToJitErr(err)
}
