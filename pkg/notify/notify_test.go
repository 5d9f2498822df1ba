package notify

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/max/simhost"
)

// inbox collects the notifications delivered to each listener instance.
type inbox map[unsafe.Pointer][]Notification

func newListeners(t *testing.T, h *simhost.Host, box inbox, n int) []unsafe.Pointer {
	t.Helper()
	c := h.ClassNew("listener", func(*max.Symbol, []max.Atom) unsafe.Pointer { return nil }, nil, 64)
	require.NotZero(t, c)
	fn := max.NotifyMethod(func(self unsafe.Pointer, senderName, msg *max.Symbol, sender, data unsafe.Pointer) max.Err {
		box[self] = append(box[self], Notification{SenderName: senderName, Message: msg, Sender: sender, Data: data})
		return max.ErrNone
	})
	require.Equal(t, max.ErrNone, h.ClassAddMethod(c, max.SymNotify, fn))
	objs := make([]unsafe.Pointer, n)
	for i := range objs {
		objs[i] = h.ObjectAlloc(c)
		require.NotNil(t, objs[i])
	}
	return objs
}

func messages(ns []Notification) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Message.Name()
	}
	return out
}

func TestNotificationAccessors(t *testing.T) {
	h := simhost.New()
	name := h.Gensym("gain")
	n := Notification{Message: h.Gensym(max.SymAttrModified), Data: unsafe.Pointer(name)}

	assert.True(t, n.Is(max.SymAttrModified))
	attr, ok := n.AttrName()
	assert.True(t, ok)
	assert.Equal(t, "gain", attr)

	other := Notification{Message: h.Gensym(max.SymBufferModified)}
	_, ok = other.AttrName()
	assert.False(t, ok)
	_, ok = Notification{Message: h.Gensym(max.SymAttrModified)}.AttrName()
	assert.False(t, ok)
}

type onlyFor struct {
	msg  string
	seen int
}

func (s *onlyFor) Applicable(n Notification) bool { return n.Is(s.msg) }
func (s *onlyFor) Apply(Notification)             { s.seen++ }

func TestDispatchOffersToEverySubscriber(t *testing.T) {
	h := simhost.New()
	a := &onlyFor{msg: "free"}
	b := &onlyFor{msg: max.SymBufferModified}
	c := &onlyFor{msg: max.SymBufferModified}
	subs := []Subscriber{a, b, c}

	assert.Equal(t, 2, Dispatch(Notification{Message: h.Gensym(max.SymBufferModified)}, subs))
	assert.Equal(t, 0, Dispatch(Notification{Message: h.Gensym("other")}, subs))
	assert.Equal(t, [3]int{0, 1, 1}, [3]int{a.seen, b.seen, c.seen})
}

func TestRegisterRejectsCollisions(t *testing.T) {
	h := simhost.New()
	objs := newListeners(t, h, inbox{}, 2)

	reg, err := Register(h, objs[0], "box", "shared")
	require.NoError(t, err)
	assert.Equal(t, objs[0], h.ObjectFindRegistered(h.Gensym("box"), h.Gensym("shared")))

	_, err = Register(h, objs[1], "box", "shared")
	require.Error(t, err)
	assert.Equal(t, max.CodeNameCollision, max.ErrorCode(err))

	again, err := Register(h, objs[0], "box", "shared")
	require.NoError(t, err)
	require.NoError(t, again.Close())
	assert.Nil(t, h.ObjectFindRegistered(h.Gensym("box"), h.Gensym("shared")))

	// Already withdrawn through the second handle.
	assert.Error(t, reg.Close())
	assert.NoError(t, reg.Close())
	assert.NoError(t, (*Registration)(nil).Close())
}

func TestAttachDeliversNotifications(t *testing.T) {
	h := simhost.New()
	box := inbox{}
	objs := newListeners(t, h, box, 2)
	source, client := objs[0], objs[1]

	_, err := Attach(h, client, "box", "source")
	require.Error(t, err)
	assert.Equal(t, max.CodeAttachFailed, max.ErrorCode(err))

	reg, err := Register(h, source, "box", "source")
	require.NoError(t, err)
	defer reg.Close()

	att, err := Attach(h, client, "box", "source")
	require.NoError(t, err)
	assert.Equal(t, source, att.Target())

	h.ObjectAttrTouch(source, h.Gensym("gain"))
	require.Len(t, box[client], 1)
	got := box[client][0]
	assert.Equal(t, "source", got.SenderName.Name())
	assert.Equal(t, source, got.Sender)
	name, ok := got.AttrName()
	assert.True(t, ok)
	assert.Equal(t, "gain", name)
	assert.Empty(t, box[source])

	require.NoError(t, att.Close())
	require.NoError(t, att.Close())
	h.ObjectNotify(source, h.Gensym("changed"), nil)
	assert.Len(t, box[client], 1)
}

func TestSubscribeWaitsForRegistration(t *testing.T) {
	h := simhost.New()
	box := inbox{}
	objs := newListeners(t, h, box, 2)
	source, client := objs[0], objs[1]

	sub := Subscribe(h, client, "box", "later", "")
	h.ObjectNotify(source, h.Gensym("early"), nil)
	assert.Empty(t, box[client])

	reg, err := Register(h, source, "box", "later")
	require.NoError(t, err)
	defer reg.Close()
	h.ObjectNotify(source, h.Gensym("hello"), nil)
	assert.Equal(t, []string{"hello"}, messages(box[client]))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	h.ObjectNotify(source, h.Gensym("bye"), nil)
	assert.Equal(t, []string{"hello"}, messages(box[client]))
}
