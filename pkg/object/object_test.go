package object

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/max/simhost"
)

type payload struct{ n int }

func TestLayoutAlignsPayloadSlot(t *testing.T) {
	h := simhost.New()
	for _, kind := range []max.HeaderKind{max.HeaderObject, max.HeaderPxObject, max.HeaderJitObject} {
		t.Run(kind.String(), func(t *testing.T) {
			l := NewLayout(h, kind)
			assert.Equal(t, h.HeaderSize(kind), l.HeaderSize)
			assert.GreaterOrEqual(t, l.PayloadOffset, l.HeaderSize)
			assert.Zero(t, l.PayloadOffset%unsafe.Alignof(uintptr(0)))
			assert.Equal(t, l.PayloadOffset+unsafe.Sizeof(uintptr(0)), l.InstanceSize)
		})
	}
}

func newInstance(t *testing.T, h *simhost.Host, tbl *Table[payload]) *Instance[payload] {
	t.Helper()
	self := h.SysmemNewPtr(tbl.Layout().InstanceSize)
	require.NotNil(t, self)
	inst, err := tbl.Attach(self)
	require.NoError(t, err)
	return inst
}

func TestInstanceLifecycle(t *testing.T) {
	h := simhost.New()
	tbl := NewTable[payload](NewLayout(h, max.HeaderObject))
	inst := newInstance(t, h, tbl)

	_, err := tbl.Borrow(inst.Self())
	assert.Equal(t, max.CodeInstanceNotLive, max.ErrorCode(err))

	require.NoError(t, inst.Init(&payload{n: 7}))
	assert.Equal(t, Live, inst.State())
	p, err := tbl.Borrow(inst.Self())
	require.NoError(t, err)
	assert.Equal(t, 7, p.n)

	err = inst.Init(&payload{n: 9})
	assert.Equal(t, max.CodeInstanceNotLive, max.ErrorCode(err))
	p, err = tbl.Borrow(inst.Self())
	require.NoError(t, err)
	assert.Equal(t, 7, p.n)

	v, ok := inst.BeginTeardown()
	assert.True(t, ok)
	assert.Equal(t, 7, v.n)
	_, ok = inst.BeginTeardown()
	assert.False(t, ok)

	_, err = tbl.Borrow(inst.Self())
	assert.Equal(t, max.CodeInstanceNotLive, max.ErrorCode(err))

	tbl.Detach(inst)
	assert.Zero(t, tbl.Len())
	_, err = tbl.Recover(inst.Self())
	assert.Equal(t, max.CodeInstanceUnknown, max.ErrorCode(err))
}

func TestInitAfterTeardownFails(t *testing.T) {
	h := simhost.New()
	tbl := NewTable[payload](NewLayout(h, max.HeaderObject))
	inst := newInstance(t, h, tbl)

	v, ok := inst.BeginTeardown()
	require.True(t, ok)
	assert.Nil(t, v)

	err := inst.Init(&payload{n: 3})
	assert.Equal(t, max.CodeInstanceNotLive, max.ErrorCode(err))
	assert.Equal(t, TornDown, inst.State())
	_, err = tbl.Borrow(inst.Self())
	assert.Error(t, err)
}

func TestRecoverRejectsForeignPointers(t *testing.T) {
	h := simhost.New()
	layout := NewLayout(h, max.HeaderObject)
	a := NewTable[payload](layout)
	b := NewTable[payload](layout)

	inst := newInstance(t, h, a)
	_, err := b.Recover(inst.Self())
	assert.Equal(t, max.CodeInstanceUnknown, max.ErrorCode(err))

	_, err = a.Recover(nil)
	assert.Equal(t, max.CodeInstanceUnknown, max.ErrorCode(err))

	_, err = a.Attach(inst.Self())
	assert.Equal(t, max.CodeInstanceUnknown, max.ErrorCode(err), "slot already holds a handle")

	_, err = a.Attach(nil)
	assert.Equal(t, max.CodeOutOfMemory, max.ErrorCode(err))
}

func TestConcurrentRecover(t *testing.T) {
	h := simhost.New()
	tbl := NewTable[payload](NewLayout(h, max.HeaderObject))
	inst := newInstance(t, h, tbl)
	require.NoError(t, inst.Init(&payload{n: 1}))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				p, err := tbl.Borrow(inst.Self())
				if assert.NoError(t, err) {
					assert.Equal(t, 1, p.n)
				}
			}
		}()
	}
	for j := 0; j < 50; j++ {
		other := newInstance(t, h, tbl)
		tbl.Detach(other)
	}
	wg.Wait()
	assert.Equal(t, 1, tbl.Len())

	seen := 0
	tbl.Each(func(*Instance[payload]) bool { seen++; return true })
	assert.Equal(t, 1, seen)
}

func TestBoundaryExitsOnPanic(t *testing.T) {
	var code int
	restore := SetExitFunc(func(c int) { code = c })
	defer restore()

	func() {
		defer Boundary(zap.NewNop(), "test")
		panic("boom")
	}()
	assert.Equal(t, 1, code)
}

func TestObjHelpers(t *testing.T) {
	h := simhost.New()
	self := h.SysmemNewPtr(64)
	o := NewObj(h, self)
	o.Post("hello %d", 1)
	o.Error("bad %s", "thing")

	lines := h.Console()
	require.Len(t, lines, 2)
	assert.Equal(t, "hello 1", lines[0].Text)
	assert.True(t, lines[1].Error)
	assert.Equal(t, self, o.Ptr())
	assert.Same(t, h.Gensym("x"), o.Sym("x"))
}
