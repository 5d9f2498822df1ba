package simhost

import (
	"unsafe"

	"github.com/justyntemme/gomedian/pkg/max"
)

type registration struct {
	ns, name string
	obj      unsafe.Pointer
	clients  []unsafe.Pointer
}

type subscription struct {
	ns, name, classname string
	client              unsafe.Pointer
}

func regKey(ns, name *max.Symbol) string {
	return ns.Name() + "/" + name.Name()
}

// ObjectRegister publishes obj under a name so other objects can attach to
// it. Pending subscriptions for that name are attached immediately.
func (h *Host) ObjectRegister(ns, name *max.Symbol, obj unsafe.Pointer) unsafe.Pointer {
	if obj == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	key := regKey(ns, name)
	if r, ok := h.registered[key]; ok && r.obj != obj {
		return r.obj
	}
	r := &registration{ns: ns.Name(), name: name.Name(), obj: obj}
	for _, s := range h.subs {
		if s.ns == r.ns && s.name == r.name {
			r.clients = append(r.clients, s.client)
		}
	}
	h.registered[key] = r
	return obj
}

// ObjectUnregister removes every registration of obj.
func (h *Host) ObjectUnregister(obj unsafe.Pointer) max.Err {
	h.mu.Lock()
	defer h.mu.Unlock()
	found := false
	for key, r := range h.registered {
		if r.obj == obj {
			delete(h.registered, key)
			found = true
		}
	}
	if !found {
		return max.ErrGeneric
	}
	return max.ErrNone
}

// ObjectFindRegistered returns the object registered under a name.
func (h *Host) ObjectFindRegistered(ns, name *max.Symbol) unsafe.Pointer {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.registered[regKey(ns, name)]; ok {
		return r.obj
	}
	return nil
}

// ObjectAttach makes client receive the notifications of a registered object.
func (h *Host) ObjectAttach(ns, name *max.Symbol, client unsafe.Pointer) unsafe.Pointer {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.registered[regKey(ns, name)]
	if !ok {
		return nil
	}
	for _, c := range r.clients {
		if c == client {
			return r.obj
		}
	}
	r.clients = append(r.clients, client)
	return r.obj
}

// ObjectDetach stops client receiving notifications.
func (h *Host) ObjectDetach(ns, name *max.Symbol, client unsafe.Pointer) max.Err {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.registered[regKey(ns, name)]
	if !ok {
		return max.ErrGeneric
	}
	for i, c := range r.clients {
		if c == client {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			return max.ErrNone
		}
	}
	return max.ErrGeneric
}

// ObjectSubscribe attaches client to a name whether or not it is registered
// yet.
func (h *Host) ObjectSubscribe(ns, name, classname *max.Symbol, client unsafe.Pointer) unsafe.Pointer {
	h.mu.Lock()
	h.subs = append(h.subs, &subscription{ns: ns.Name(), name: name.Name(), classname: classname.Name(), client: client})
	h.mu.Unlock()
	return h.ObjectAttach(ns, name, client)
}

// ObjectUnsubscribe undoes ObjectSubscribe.
func (h *Host) ObjectUnsubscribe(ns, name, classname *max.Symbol, client unsafe.Pointer) max.Err {
	h.mu.Lock()
	found := false
	kept := h.subs[:0]
	for _, s := range h.subs {
		if s.ns == ns.Name() && s.name == name.Name() && s.classname == classname.Name() && s.client == client {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	h.subs = kept
	h.mu.Unlock()
	if !found {
		return max.ErrGeneric
	}
	h.ObjectDetach(ns, name, client)
	return max.ErrNone
}

// ObjectNotify sends msg to every client attached to obj.
func (h *Host) ObjectNotify(obj unsafe.Pointer, msg *max.Symbol, data unsafe.Pointer) max.Err {
	h.mu.Lock()
	type delivery struct {
		client unsafe.Pointer
		name   string
	}
	var out []delivery
	for _, r := range h.registered {
		if r.obj != obj {
			continue
		}
		for _, c := range r.clients {
			out = append(out, delivery{client: c, name: r.name})
		}
	}
	h.mu.Unlock()
	for _, d := range out {
		h.notifyClient(d.client, h.Gensym(d.name), msg, obj, data)
	}
	return max.ErrNone
}

// notifyClient calls the notify method of client, if it has one.
func (h *Host) notifyClient(client unsafe.Pointer, senderName, msg *max.Symbol, sender, data unsafe.Pointer) max.Err {
	h.mu.Lock()
	o, ok := h.objects[client]
	var fn max.NotifyMethod
	if ok && !o.freed {
		if m := o.class.lookup(max.SymNotify); m != nil {
			fn, _ = m.fn.(max.NotifyMethod)
		}
	}
	h.mu.Unlock()
	if fn == nil {
		return max.ErrGeneric
	}
	return fn(client, senderName, msg, sender, data)
}

// Notify delivers a notification straight to an instance's notify method.
func (h *Host) Notify(obj unsafe.Pointer, senderName, msg string, sender, data unsafe.Pointer) max.Err {
	return h.notifyClient(obj, h.Gensym(senderName), h.Gensym(msg), sender, data)
}

func (h *Host) detachClientLocked(obj unsafe.Pointer) {
	for key, r := range h.registered {
		if r.obj == obj {
			delete(h.registered, key)
			continue
		}
		kept := r.clients[:0]
		for _, c := range r.clients {
			if c != obj {
				kept = append(kept, c)
			}
		}
		r.clients = kept
	}
	kept := h.subs[:0]
	for _, s := range h.subs {
		if s.client != obj {
			kept = append(kept, s)
		}
	}
	h.subs = kept
	for ref, br := range h.bufRefs {
		if br.owner == obj {
			delete(h.bufRefs, ref)
		}
	}
}
