package buffer

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/max/simhost"
	"github.com/justyntemme/gomedian/pkg/notify"
)

// newOwner allocates an instance whose notify method forwards buffer~
// notifications to the reference returned through ref.
func newOwner(t *testing.T, h *simhost.Host, ref **Ref) unsafe.Pointer {
	t.Helper()
	c := h.ClassNew("owner", func(*max.Symbol, []max.Atom) unsafe.Pointer { return nil }, nil, 64)
	require.NotZero(t, c)
	fn := max.NotifyMethod(func(_ unsafe.Pointer, senderName, msg *max.Symbol, sender, data unsafe.Pointer) max.Err {
		n := notify.Notification{SenderName: senderName, Message: msg, Sender: sender, Data: data}
		if r := *ref; r != nil && r.Applicable(n) {
			r.Apply(n)
		}
		return max.ErrNone
	})
	require.Equal(t, max.ErrNone, h.ClassAddMethod(c, max.SymNotify, fn))
	obj := h.ObjectAlloc(c)
	require.NotNil(t, obj)
	return obj
}

func TestDeclaredRefIsMissing(t *testing.T) {
	r := Declare("table")
	assert.Equal(t, "table", r.Name())
	assert.False(t, r.Exists())
	_, ok := r.FrameCount()
	assert.False(t, ok)

	_, err := r.TryLock()
	require.Error(t, err)
	assert.Equal(t, max.CodeBufferNotFound, max.ErrorCode(err))

	r.Set("other")
	assert.Equal(t, "other", r.Name())
	r.Close()
}

func TestLockLifecycle(t *testing.T) {
	h := simhost.New()
	var r *Ref
	owner := newOwner(t, h, &r)
	r, err := New(h, owner, "table")
	require.NoError(t, err)
	defer r.Close()

	_, err = r.TryLock()
	assert.Equal(t, max.CodeBufferNotFound, max.ErrorCode(err))

	h.CreateBuffer("table", 2, 8, 48000)
	assert.True(t, r.Exists())
	assert.Equal(t, 1, h.BufferRefNotified(r.ref), "binding notification reaches the reference")

	n, ok := r.ChannelCount()
	assert.True(t, ok)
	assert.Equal(t, 2, n)
	sr, _ := r.SampleRate()
	assert.Equal(t, 48000.0, sr)

	l, err := r.TryLock()
	require.NoError(t, err)
	locks, _ := h.BufferLocks("table")
	assert.Equal(t, 1, locks)
	assert.Equal(t, 2, l.Channels())
	assert.Equal(t, 8, l.Frames())
	assert.Len(t, l.Samples(), 16)

	l.SetSample(3, 1, 0.5)
	assert.Equal(t, float32(0.5), l.Sample(3, 1))
	assert.Equal(t, []float32{0, 0.5}, l.Frame(3))
	assert.Nil(t, l.Frame(8))
	l.Unlock()
	l.Unlock()

	locks, dirty := h.BufferLocks("table")
	assert.Zero(t, locks)
	assert.Equal(t, 1, dirty)
	assert.Equal(t, float32(0.5), h.BufferSamples("table")[7])
	assert.Equal(t, 2, h.BufferRefNotified(r.ref), "modified notification reaches the reference")
}

func TestCleanUnlockLeavesBufferClean(t *testing.T) {
	h := simhost.New()
	var r *Ref
	owner := newOwner(t, h, &r)
	h.CreateBuffer("table", 1, 4, 44100)
	r, err := New(h, owner, "table")
	require.NoError(t, err)

	l, err := r.TryLock()
	require.NoError(t, err)
	dst := make([]float32, 10)
	assert.Equal(t, 4, l.ReadChannel(0, dst))
	assert.Zero(t, l.ReadChannel(1, dst))
	l.Unlock()

	_, dirty := h.BufferLocks("table")
	assert.Zero(t, dirty)
}

func TestChannelCopies(t *testing.T) {
	h := simhost.New()
	var r *Ref
	owner := newOwner(t, h, &r)
	h.CreateBuffer("stereo", 2, 3, 44100)
	r, err := New(h, owner, "stereo")
	require.NoError(t, err)

	l, err := r.TryLock()
	require.NoError(t, err)
	assert.Equal(t, 3, l.WriteChannel(1, []float32{1, 2, 3, 4}))
	assert.Zero(t, l.WriteChannel(-1, []float32{1}))
	got := make([]float32, 2)
	assert.Equal(t, 2, l.ReadChannel(1, got))
	assert.Equal(t, []float32{1, 2}, got)
	l.Unlock()

	assert.Equal(t, []float32{0, 1, 0, 2, 0, 3}, h.BufferSamples("stereo"))
}

func TestEmptyBufferFailsToLock(t *testing.T) {
	h := simhost.New()
	var r *Ref
	owner := newOwner(t, h, &r)
	h.CreateBuffer("empty", 1, 0, 44100)
	r, err := New(h, owner, "empty")
	require.NoError(t, err)

	_, err = r.TryLock()
	assert.Equal(t, max.CodeBufferLock, max.ErrorCode(err))
}

func TestSetRebinds(t *testing.T) {
	h := simhost.New()
	var r *Ref
	owner := newOwner(t, h, &r)
	h.CreateBuffer("a", 1, 2, 44100)
	h.CreateBuffer("b", 1, 5, 44100)
	r, err := New(h, owner, "a")
	require.NoError(t, err)

	frames, _ := r.FrameCount()
	assert.Equal(t, 2, frames)
	r.Set("b")
	frames, _ = r.FrameCount()
	assert.Equal(t, 5, frames)
	assert.Equal(t, "b", r.Name())

	h.DeleteBuffer("b")
	assert.False(t, r.Exists())
}

func TestApplicable(t *testing.T) {
	r := Declare("table")
	sym := max.NewSymbol
	assert.True(t, r.Applicable(notify.Notification{SenderName: sym("table"), Message: sym(max.SymBufferModified)}))
	assert.True(t, r.Applicable(notify.Notification{Message: sym(max.SymGlobalSymbolBinding)}))
	assert.False(t, r.Applicable(notify.Notification{SenderName: sym("other"), Message: sym(max.SymBufferModified)}))
	assert.False(t, r.Applicable(notify.Notification{SenderName: sym("table"), Message: sym(max.SymAttrModified)}))
}

func TestCloseReleasesReference(t *testing.T) {
	h := simhost.New()
	var r *Ref
	owner := newOwner(t, h, &r)
	h.CreateBuffer("table", 1, 4, 44100)
	r, err := New(h, owner, "table")
	require.NoError(t, err)
	require.Equal(t, 1, h.LiveBufferRefs())

	r.Close()
	r.Close()
	assert.Zero(t, h.LiveBufferRefs())
	_, err = r.TryLock()
	assert.Equal(t, max.CodeBufferNotFound, max.ErrorCode(err))
}

func TestConcurrentLockAndRebind(t *testing.T) {
	h := simhost.New()
	var r *Ref
	owner := newOwner(t, h, &r)
	h.CreateBuffer("a", 1, 16, 44100)
	h.CreateBuffer("b", 1, 16, 44100)
	r, err := New(h, owner, "a")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				l, err := r.TryLock()
				if err != nil {
					continue
				}
				_ = l.Sample(0, 0)
				l.Unlock()
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 200 {
			if i%2 == 0 {
				r.Set("b")
			} else {
				r.Set("a")
			}
		}
	}()
	wg.Wait()

	la, _ := h.BufferLocks("a")
	lb, _ := h.BufferLocks("b")
	assert.Zero(t, la+lb)
}
