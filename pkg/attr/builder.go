package attr

import (
	"unsafe"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/justyntemme/gomedian/pkg/atom"
	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/object"
)

// Builder collects an attribute description. It is consumed by Build.
type Builder[T any] struct {
	name      string
	kind      Kind
	get       func(*T) max.Atom
	set       func(*T, max.Atom) error
	offset    uintptr
	hasOffset bool
	clip      max.ClipTarget
	bounds    Bounds
	getVis    Visibility
	setVis    Visibility
	getSched  Schedule
	setSched  Schedule
}

// New starts an attribute with no accessors.
func New[T any](name string, kind Kind) *Builder[T] {
	return &Builder[T]{name: name, kind: kind}
}

// Accessors starts an attribute read and written through callbacks.
func Accessors[T any](name string, kind Kind, get func(*T) max.Atom, set func(*T, max.Atom) error) *Builder[T] {
	return New[T](name, kind).Getter(get).Setter(set)
}

// Field starts an attribute backed by a payload field. The kind follows
// from the field type.
func Field[T any, V atom.Value](name string, field func(*T) *V) *Builder[T] {
	return New[T](name, kindFor[V]()).
		Getter(func(t *T) max.Atom { return atom.From(*field(t)) }).
		Setter(func(t *T, a max.Atom) error {
			*field(t) = atom.To[V](&a)
			return nil
		})
}

// Float64Cell starts a float64 attribute backed by a cell the audio thread
// may read concurrently.
func Float64Cell[T any](name string, cell func(*T) *atom.Float64Cell) *Builder[T] {
	return New[T](name, Float64).
		Getter(func(t *T) max.Atom { return max.FloatAtom(cell(t).Get()) }).
		Setter(func(t *T, a max.Atom) error {
			cell(t).Set(a.Float())
			return nil
		})
}

// Int64Cell starts an int64 attribute backed by a cell.
func Int64Cell[T any](name string, cell func(*T) *atom.Int64Cell) *Builder[T] {
	return New[T](name, Int64).
		Getter(func(t *T) max.Atom { return max.LongAtom(cell(t).Get()) }).
		Setter(func(t *T, a max.Atom) error {
			cell(t).Set(a.Long())
			return nil
		})
}

func kindFor[V atom.Value]() Kind {
	var zero V
	switch any(zero).(type) {
	case float64:
		return Float64
	case float32:
		return Float32
	case *max.Symbol:
		return Symbol
	case unsafe.Pointer:
		return ObjectPtr
	default:
		return Int64
	}
}

// Name returns the attribute name.
func (b *Builder[T]) Name() string { return b.name }

// Kind returns the attribute value kind.
func (b *Builder[T]) Kind() Kind { return b.kind }

// Getter sets the read callback.
func (b *Builder[T]) Getter(fn func(*T) max.Atom) *Builder[T] {
	b.get = fn
	return b
}

// Setter sets the write callback.
func (b *Builder[T]) Setter(fn func(*T, max.Atom) error) *Builder[T] {
	b.set = fn
	return b
}

// Offset backs the attribute with host instance memory at off bytes from the
// start of the instance.
func (b *Builder[T]) Offset(off uintptr) *Builder[T] {
	b.offset = off
	b.hasOffset = true
	return b
}

// Clip installs a host clip filter on the given side.
func (b *Builder[T]) Clip(target max.ClipTarget, bounds Bounds) *Builder[T] {
	b.clip = target
	b.bounds = bounds
	return b
}

// Visibility sets get and set visibility.
func (b *Builder[T]) Visibility(get, set Visibility) *Builder[T] {
	b.getVis = get
	b.setVis = set
	return b
}

// Schedule sets the threads get and set run on.
func (b *Builder[T]) Schedule(get, set Schedule) *Builder[T] {
	b.getSched = get
	b.setSched = set
	return b
}

// Flags returns the host flag bits the attribute will be created with.
func (b *Builder[T]) Flags() max.AttrFlags {
	return flags(b.getVis, b.setVis, b.getSched, b.setSched)
}

// Build creates the host attribute object. Accessor trampolines recover the
// payload through borrow.
func (b *Builder[T]) Build(rt max.Runtime, borrow func(unsafe.Pointer) (*T, error), log *zap.Logger) (max.Attr, error) {
	if b.get == nil && b.set == nil && !b.hasOffset {
		return 0, oops.Code(max.CodeAttrInvalid).
			With("attribute", b.name).
			Errorf("you must have at least 1 of get, set or offset")
	}
	if b.name == "" {
		return 0, oops.Code(max.CodeAttrInvalid).Errorf("attribute has no name")
	}
	if log == nil {
		log = zap.NewNop()
	}

	var getter max.AttrGetter
	if b.get != nil {
		get, entry := b.get, "attr get "+b.name
		getter = func(self unsafe.Pointer, _ max.Attr, ac *int64, av **max.Atom) max.Err {
			defer object.Boundary(log, entry)
			t, err := borrow(self)
			if err != nil {
				log.Warn("attribute get dropped", zap.String("attribute", b.name), zap.Error(err))
				return max.ToErr(err)
			}
			return Get(rt, ac, av, func() max.Atom { return get(t) })
		}
	}
	var setter max.AttrSetter
	if b.set != nil {
		set, entry := b.set, "attr set "+b.name
		setter = func(self unsafe.Pointer, _ max.Attr, ac int64, av *max.Atom) max.Err {
			defer object.Boundary(log, entry)
			t, err := borrow(self)
			if err != nil {
				log.Warn("attribute set dropped", zap.String("attribute", b.name), zap.Error(err))
				return max.ToErr(err)
			}
			return Set(ac, av, func(a *max.Atom) error { return set(t, *a) })
		}
	}

	a := rt.AttrOffsetNew(b.name, rt.Gensym(b.kind.TypeName()), b.Flags(), getter, setter, b.offset)
	if a == 0 {
		return 0, oops.Code(max.CodeAttrRegister).With("attribute", b.name).Errorf("failed to create attribute")
	}
	if b.clip != 0 {
		bd := b.bounds
		if e := rt.AttrAddFilterClip(a, b.clip, bd.Min, bd.Max, bd.UseMin, bd.UseMax); e != max.ErrNone {
			return 0, oops.Code(max.CodeAttrRegister).With("attribute", b.name).Wrapf(e, "error setting clip")
		}
	}
	return a, nil
}
