// Package class registers plugin types with the host and builds their
// method tables.
package class

import (
	"sync"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/justyntemme/gomedian/pkg/max"
)

// Definition describes how to create the host class for one Go type.
type Definition struct {
	// Key identifies the Go type. Registering the same key twice returns
	// the first result.
	Key string
	// Name is the host class name, used for diagnostics.
	Name string
	// Build creates the class and installs its methods and attributes. The
	// returned state is kept with the entry for the wrapper's use.
	Build func() (max.Class, any, error)
	// Publish asks the host to finalize registration.
	Publish func(max.Class) max.Err
}

// Entry is a registered class.
type Entry struct {
	Key    string
	Name   string
	Handle max.Class
	State  any
}

// Registry maps Go type identities to registered host classes. It is created
// at module init, only grows afterwards, and is cleared by Close at module
// unload.
type Registry struct {
	mu      sync.Mutex
	log     *zap.Logger
	entries map[string]*Entry
	order   []string
	closed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		log:     log,
		entries: make(map[string]*Entry),
	}
}

// Register returns the entry for d.Key, building and publishing the class
// the first time the key is seen. The lock is held for the whole
// lookup-or-create sequence.
func (r *Registry) Register(d Definition) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, oops.Code(max.CodeClassRegister).With("class", d.Name).Errorf("registry is closed")
	}
	if e, ok := r.entries[d.Key]; ok {
		return e, nil
	}

	handle, state, err := d.Build()
	if err != nil {
		return nil, oops.Code(max.CodeClassRegister).With("class", d.Name).Wrap(err)
	}
	if handle == 0 {
		return nil, oops.Code(max.CodeClassRegister).With("class", d.Name).Errorf("host refused to create class")
	}
	if d.Publish != nil {
		switch e := d.Publish(handle); e {
		case max.ErrNone:
		case max.ErrDuplicate:
			return nil, oops.Code(max.CodeClassDuplicate).With("class", d.Name).Wrap(e)
		default:
			return nil, oops.Code(max.CodeClassRegister).With("class", d.Name).Wrap(e)
		}
	}

	e := &Entry{Key: d.Key, Name: d.Name, Handle: handle, State: state}
	r.entries[d.Key] = e
	r.order = append(r.order, d.Key)
	r.log.Debug("class registered", zap.String("class", d.Name), zap.String("key", d.Key))
	return e, nil
}

// Lookup returns the entry registered for key.
func (r *Registry) Lookup(key string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	return e, ok
}

// Entries returns every entry in registration order.
func (r *Registry) Entries() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Entry, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.entries[k])
	}
	return out
}

// Len returns the number of registered classes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close forgets every entry. Further registrations fail.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*Entry)
	r.order = nil
	r.closed = true
}
