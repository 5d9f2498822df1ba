package class

import (
	"sort"
	"unsafe"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/justyntemme/gomedian/pkg/attr"
	"github.com/justyntemme/gomedian/pkg/max"
)

// Borrower recovers the live payload of a host instance.
type Borrower[T any] func(self unsafe.Pointer) (*T, error)

// Class is the setup-time view of a host class whose instances carry a *T.
// Methods and attributes added here affect instances created afterwards.
type Class[T any] struct {
	rt      max.Runtime
	handle  max.Class
	jit     bool
	borrow  Borrower[T]
	log     *zap.Logger
	names   map[string]struct{}
	attrs   []string
	observe func(selector string)
}

// New wraps a class handle returned by the host.
func New[T any](rt max.Runtime, handle max.Class, jit bool, borrow Borrower[T], log *zap.Logger) *Class[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Class[T]{
		rt:     rt,
		handle: handle,
		jit:    jit,
		borrow: borrow,
		log:    log,
		names:  make(map[string]struct{}),
	}
}

// Handle returns the host class handle.
func (c *Class[T]) Handle() max.Class { return c.handle }

// Runtime returns the host.
func (c *Class[T]) Runtime() max.Runtime { return c.rt }

// Logger returns the class logger.
func (c *Class[T]) Logger() *zap.Logger { return c.log }

// Borrow recovers the live payload of an instance of this class.
func (c *Class[T]) Borrow(self unsafe.Pointer) (*T, error) { return c.borrow(self) }

// AddMethod validates a method descriptor and registers its trampoline.
func (c *Class[T]) AddMethod(m Method[T]) error {
	return m.install(c)
}

// AddRaw registers a raw host method. It is meant for entry points the
// framework generates itself.
func (c *Class[T]) AddRaw(name string, m max.Method, kinds ...max.AtomType) error {
	var e max.Err
	if c.jit {
		e = c.rt.JitClassAddMethod(c.handle, name, m, kinds...)
	} else {
		e = c.rt.ClassAddMethod(c.handle, name, m, kinds...)
	}
	if e != max.ErrNone {
		return oops.Code(max.CodeMethodInvalid).With("selector", name).Wrap(e)
	}
	c.names[name] = struct{}{}
	return nil
}

// AddAttribute builds an attribute and attaches it to the class.
func (c *Class[T]) AddAttribute(b *attr.Builder[T]) error {
	a, err := b.Build(c.rt, c.borrow, c.log)
	if err != nil {
		return err
	}
	var e max.Err
	if c.jit {
		e = c.rt.JitClassAddAttr(c.handle, a)
	} else {
		e = c.rt.ClassAddAttr(c.handle, a)
	}
	if e != max.ErrNone {
		return oops.Code(max.CodeAttrRegister).With("attribute", b.Name()).Wrap(e)
	}
	c.attrs = append(c.attrs, b.Name())
	return nil
}

// HasMethod reports whether a selector has been registered.
func (c *Class[T]) HasMethod(name string) bool {
	_, ok := c.names[name]
	return ok
}

// Methods lists registered selectors, sorted.
func (c *Class[T]) Methods() []string {
	out := make([]string, 0, len(c.names))
	for n := range c.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Attributes lists attribute names in registration order.
func (c *Class[T]) Attributes() []string {
	return append([]string(nil), c.attrs...)
}

// Observe installs a hook called for every message delivered to a live
// instance through a generated trampoline.
func (c *Class[T]) Observe(fn func(selector string)) { c.observe = fn }

// Delivered runs the observe hook for sel.
func (c *Class[T]) Delivered(sel string) {
	if c.observe != nil {
		c.observe(sel)
	}
}

// drop reports a message that reached an instance which is not live.
func (c *Class[T]) drop(sel string, err error) {
	c.log.Warn("message dropped", zap.String("selector", sel), zap.Error(err))
}
