// Package notify wraps the host's object registration and notification
// service.
package notify

import (
	"unsafe"

	"github.com/samber/oops"

	"github.com/justyntemme/gomedian/pkg/max"
)

// Notification is one message delivered to an object's notify method.
type Notification struct {
	SenderName *max.Symbol
	Message    *max.Symbol
	Sender     unsafe.Pointer
	Data       unsafe.Pointer
}

// Is reports whether the notification carries msg.
func (n Notification) Is(msg string) bool {
	return n.Message.Name() == msg
}

// AttrName returns the attribute name of an attr_modified notification.
func (n Notification) AttrName() (string, bool) {
	if !n.Is(max.SymAttrModified) || n.Data == nil {
		return "", false
	}
	return (*max.Symbol)(n.Data).Name(), true
}

// Subscriber is implemented by values that react to some notifications.
type Subscriber interface {
	// Applicable reports whether n concerns the subscriber.
	Applicable(n Notification) bool
	// Apply handles n. It is only called when Applicable returned true.
	Apply(n Notification)
}

// Dispatch offers n to every subscriber and returns how many applied it.
func Dispatch(n Notification, subs []Subscriber) int {
	applied := 0
	for _, s := range subs {
		if s.Applicable(n) {
			s.Apply(n)
			applied++
		}
	}
	return applied
}

// Registration publishes an object under a name.
type Registration struct {
	rt  max.Notifier
	obj unsafe.Pointer
}

// Register publishes obj under ns/name. It fails if another object already
// holds the name.
func Register(rt max.Runtime, obj unsafe.Pointer, ns, name string) (*Registration, error) {
	nsSym, nameSym := rt.Gensym(ns), rt.Gensym(name)
	if other := rt.ObjectFindRegistered(nsSym, nameSym); other != nil && other != obj {
		return nil, oops.Code(max.CodeNameCollision).With("namespace", ns).With("name", name).
			Errorf("name already registered")
	}
	got := rt.ObjectRegister(nsSym, nameSym, obj)
	if got != obj {
		return nil, oops.Code(max.CodeNameCollision).With("namespace", ns).With("name", name).
			Errorf("host refused registration")
	}
	return &Registration{rt: rt, obj: obj}, nil
}

// Close withdraws the registration.
func (r *Registration) Close() error {
	if r == nil || r.obj == nil {
		return nil
	}
	obj := r.obj
	r.obj = nil
	if e := r.rt.ObjectUnregister(obj); e != max.ErrNone {
		return oops.Wrapf(e, "unregister")
	}
	return nil
}

// Attachment makes a client receive the notifications of a registered object.
type Attachment struct {
	rt       max.Notifier
	ns, name *max.Symbol
	client   unsafe.Pointer
	target   unsafe.Pointer
}

// Attach attaches client to the object registered under ns/name.
func Attach(rt max.Runtime, client unsafe.Pointer, ns, name string) (*Attachment, error) {
	nsSym, nameSym := rt.Gensym(ns), rt.Gensym(name)
	target := rt.ObjectAttach(nsSym, nameSym, client)
	if target == nil {
		return nil, oops.Code(max.CodeAttachFailed).With("namespace", ns).With("name", name).
			Errorf("nothing registered under name")
	}
	return &Attachment{rt: rt, ns: nsSym, name: nameSym, client: client, target: target}, nil
}

// Target returns the object attached to.
func (a *Attachment) Target() unsafe.Pointer { return a.target }

// Close detaches the client.
func (a *Attachment) Close() error {
	if a == nil || a.client == nil {
		return nil
	}
	client := a.client
	a.client = nil
	if e := a.rt.ObjectDetach(a.ns, a.name, client); e != max.ErrNone {
		return oops.Wrapf(e, "detach")
	}
	return nil
}

// Subscription attaches a client to a name whether or not it is registered
// yet. The host attaches it once something registers under the name.
type Subscription struct {
	rt                  max.Notifier
	ns, name, classname *max.Symbol
	client              unsafe.Pointer
}

// Subscribe subscribes client to ns/name. An empty classname matches any class.
func Subscribe(rt max.Runtime, client unsafe.Pointer, ns, name, classname string) *Subscription {
	s := &Subscription{
		rt:        rt,
		ns:        rt.Gensym(ns),
		name:      rt.Gensym(name),
		classname: rt.Gensym(classname),
		client:    client,
	}
	rt.ObjectSubscribe(s.ns, s.name, s.classname, client)
	return s
}

// Close ends the subscription.
func (s *Subscription) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	client := s.client
	s.client = nil
	if e := s.rt.ObjectUnsubscribe(s.ns, s.name, s.classname, client); e != max.ErrNone {
		return oops.Wrapf(e, "unsubscribe")
	}
	return nil
}
