package attr

import (
	"testing"
	"unsafe"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/gomedian/pkg/atom"
	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/max/simhost"
)

type knob struct {
	level atom.Float64Cell
	steps int64
	label *max.Symbol
}

// fixture is one registered host class with a single live instance.
type fixture struct {
	h     *simhost.Host
	class max.Class
	obj   unsafe.Pointer
	k     *knob
	dead  bool
}

func newFixture(t *testing.T, builders ...*Builder[knob]) *fixture {
	t.Helper()
	f := &fixture{h: simhost.New(), k: &knob{}}
	f.class = f.h.ClassNew("knob", func(*max.Symbol, []max.Atom) unsafe.Pointer {
		return f.h.ObjectAlloc(f.class)
	}, nil, 64)
	borrow := func(self unsafe.Pointer) (*knob, error) {
		if f.dead || self != f.obj {
			return nil, oops.Code(max.CodeInstanceNotLive).Errorf("not live")
		}
		return f.k, nil
	}
	for _, b := range builders {
		a, err := b.Build(f.h, borrow, nil)
		require.NoError(t, err)
		require.Equal(t, max.ErrNone, f.h.ClassAddAttr(f.class, a))
	}
	require.Equal(t, max.ErrNone, f.h.ClassRegister(f.h.Gensym(max.NamespaceBox), f.class))
	obj, err := f.h.NewObject("knob")
	require.NoError(t, err)
	f.obj = obj
	return f
}

func TestBuildNeedsAnAccessor(t *testing.T) {
	h := simhost.New()
	_, err := New[knob]("empty", Float64).Build(h, nil, nil)
	require.Error(t, err)
	assert.Equal(t, max.CodeAttrInvalid, max.ErrorCode(err))
	assert.Contains(t, err.Error(), "you must have at least 1 of get, set or offset")

	_, err = New[knob]("", Int64).Offset(48).Build(h, nil, nil)
	assert.Equal(t, max.CodeAttrInvalid, max.ErrorCode(err))
	assert.Zero(t, h.AttrCount())
}

func TestFlags(t *testing.T) {
	tests := []struct {
		name string
		b    *Builder[knob]
		want max.AttrFlags
	}{
		{"default", New[knob]("a", Int64), 0},
		{"user visible", New[knob]("a", Int64).Visibility(UserVisible, UserVisible),
			max.AttrGetOpaqueUser | max.AttrSetOpaqueUser},
		{"opaque", New[knob]("a", Int64).Visibility(Opaque, Opaque),
			max.AttrGetOpaque | max.AttrSetOpaque},
		{"deferred", New[knob]("a", Int64).Schedule(Deferred, DeferredLow),
			max.AttrGetDefer | max.AttrSetDeferLow},
		{"collapsing", New[knob]("a", Int64).Schedule(Collapsing, CollapsingLow),
			max.AttrGetUsurp | max.AttrSetUsurpLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.b.Flags())
		})
	}
}

func TestKindFollowsFieldType(t *testing.T) {
	assert.Equal(t, Int64, Field("n", func(k *knob) *int64 { return &k.steps }).Kind())
	assert.Equal(t, Symbol, Field("s", func(k *knob) **max.Symbol { return &k.label }).Kind())
	assert.Equal(t, max.SymFloat32, Float32.TypeName())
	assert.Equal(t, max.SymLong, Int64.String())
	assert.Equal(t, "atom", AtomPtr.TypeName())
	assert.Equal(t, max.SymAtomType, AtomPtr.String())
}

func TestCellAttributeRoundTrip(t *testing.T) {
	f := newFixture(t,
		Float64Cell("level", func(k *knob) *atom.Float64Cell { return &k.level }),
		Field("steps", func(k *knob) *int64 { return &k.steps }),
		Field("label", func(k *knob) **max.Symbol { return &k.label }),
	)

	require.NoError(t, f.h.SetAttr(f.obj, "level", max.FloatAtom(0.25)))
	require.NoError(t, f.h.SetAttr(f.obj, "steps", max.LongAtom(7)))
	require.NoError(t, f.h.SetAttr(f.obj, "label", max.SymAtom(f.h.Gensym("coarse"))))
	assert.Equal(t, 0.25, f.k.level.Get())
	assert.Equal(t, int64(7), f.k.steps)

	argv, err := f.h.GetAttr(f.obj, "label")
	require.NoError(t, err)
	require.Len(t, argv, 1)
	assert.Equal(t, "coarse", argv[0].Sym().Name())

	argv, err = f.h.GetAttr(f.obj, "level")
	require.NoError(t, err)
	assert.Equal(t, 0.25, argv[0].Float())
}

func TestClipOnSet(t *testing.T) {
	f := newFixture(t,
		Float64Cell("gain", func(k *knob) *atom.Float64Cell { return &k.level }).
			Clip(max.ClipSet, MinMax(0, 1)),
	)
	require.NoError(t, f.h.SetAttr(f.obj, "gain", max.FloatAtom(1.5)))
	assert.Equal(t, 1.0, f.k.level.Get())
	require.NoError(t, f.h.SetAttr(f.obj, "gain", max.FloatAtom(-3)))
	assert.Equal(t, 0.0, f.k.level.Get())

	info, err := f.h.Attr(f.obj, "gain")
	require.NoError(t, err)
	require.NotNil(t, info.SetClip)
	assert.Equal(t, [4]float64{0, 1, 1, 1}, *info.SetClip)
	assert.Nil(t, info.GetClip)
}

func TestOffsetOnlyAttribute(t *testing.T) {
	f := newFixture(t, New[knob]("raw", Int64).Offset(56))
	require.NoError(t, f.h.SetAttr(f.obj, "raw", max.LongAtom(-4)))
	assert.Equal(t, int64(-4), *(*int64)(unsafe.Add(f.obj, 56)))

	argv, err := f.h.GetAttr(f.obj, "raw")
	require.NoError(t, err)
	assert.Equal(t, int64(-4), argv[0].Long())

	info, err := f.h.Attr(f.obj, "raw")
	require.NoError(t, err)
	assert.False(t, info.HasGetter)
	assert.False(t, info.HasSetter)
	assert.Equal(t, uintptr(56), info.Offset)
}

func TestDeferredSetterRunsOnMainQueue(t *testing.T) {
	f := newFixture(t,
		Field("steps", func(k *knob) *int64 { return &k.steps }).Schedule(Immediate, CollapsingLow),
	)
	require.NoError(t, f.h.SetAttr(f.obj, "steps", max.LongAtom(1)))
	require.NoError(t, f.h.SetAttr(f.obj, "steps", max.LongAtom(2)))
	assert.Zero(t, f.k.steps)
	assert.Equal(t, 1, f.h.Pending())

	assert.Equal(t, 1, f.h.RunMainQueue())
	assert.Equal(t, int64(2), f.k.steps)
}

func TestAccessorsOnDeadInstance(t *testing.T) {
	f := newFixture(t, Field("steps", func(k *knob) *int64 { return &k.steps }))
	f.dead = true

	_, err := f.h.GetAttr(f.obj, "steps")
	assert.Error(t, err)
	assert.Error(t, f.h.SetAttr(f.obj, "steps", max.LongAtom(3)))
	assert.Zero(t, f.k.steps)
}

func TestGetAllocatesWhenHostPassesNoStorage(t *testing.T) {
	h := simhost.New()
	var ac int64
	var av *max.Atom
	require.Equal(t, max.ErrNone, Get(h, &ac, &av, func() max.Atom { return max.LongAtom(9) }))
	assert.Equal(t, int64(1), ac)
	require.NotNil(t, av)
	assert.Equal(t, int64(9), av.Long())
	h.SysmemFreePtr(unsafe.Pointer(av))

	ac, av = 0, nil
	h.FailAllocs(1)
	assert.Equal(t, max.ErrOutOfMem, Get(h, &ac, &av, func() max.Atom { return max.LongAtom(9) }))
	assert.Equal(t, max.ErrInvalidPtr, Get(h, nil, &av, nil))
}

func TestSetIgnoresEmptyRequests(t *testing.T) {
	called := false
	fn := func(*max.Atom) error {
		called = true
		return nil
	}
	assert.Equal(t, max.ErrNone, Set(0, nil, fn))
	assert.False(t, called)

	a := max.LongAtom(1)
	assert.Equal(t, max.ErrNone, Set(1, &a, fn))
	assert.True(t, called)
}
