// Package simhost is an in-memory implementation of max.Runtime.
//
// It models the parts of the host the framework relies on: a block allocator,
// an interning symbol table, class tables with typed message dispatch and
// default substitution, right-to-left inlet allocation, outlets with patch
// cords, the DSP chain, attribute filters, the notification registry,
// buffer~ objects, a virtual-time scheduler, defer queues, Jitter matrices
// and a goroutine worker pool for parallel matrix calculations.
//
// Host is safe for concurrent use. No internal lock is held while a callback
// registered by the framework runs.
package simhost

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/justyntemme/gomedian/pkg/max"
)

// Header sizes of the simulated host structs. The MSP header deliberately
// ends off an 8 byte boundary, as t_pxobject does on some targets.
const (
	objectHeaderSize    = 48
	pxObjectHeaderSize  = 70
	jitObjectHeaderSize = 52

	objectMagic = 1758379419
)

// Thread identifies which host thread a call is running on.
type Thread int32

const (
	ThreadMain Thread = iota
	ThreadScheduler
	ThreadAudio
	ThreadWorker
)

// ConsoleLine is one line printed to the host console.
type ConsoleLine struct {
	Error bool
	Obj   unsafe.Pointer
	Text  string
}

// Option configures a Host.
type Option func(*Host)

// WithLogger routes the host's own diagnostics to l.
func WithLogger(l *zap.Logger) Option {
	return func(h *Host) { h.log = l }
}

// WithWorkers sets the size of the parallel calculation pool.
func WithWorkers(n int) Option {
	return func(h *Host) {
		if n > 0 {
			h.workers = n
		}
	}
}

// WithStackLimit sets the outlet recursion depth at which sends fail.
func WithStackLimit(n int) Option {
	return func(h *Host) {
		if n > 0 {
			h.stackLimit = n
		}
	}
}

// Host is a simulated host runtime.
type Host struct {
	log        *zap.Logger
	workers    int
	stackLimit int

	thread atomic.Int32
	depth  atomic.Int32

	symMu   sync.Mutex
	symbols map[string]*max.Symbol

	mu         sync.Mutex
	nextHandle uintptr
	console    []ConsoleLine
	allocs     map[uintptr][]uint64
	failAllocs int

	classes   map[max.Class]*class
	byName    map[string]*class
	objects   map[unsafe.Pointer]*object
	attrs     map[max.Attr]*attribute
	outlets   map[max.Outlet]*outlet
	proxies   map[max.Proxy]*proxy
	inlets    map[max.Inlet]*inlet
	mops      map[max.MOP]*mop
	sent      []sentOutput
	chain     []*performEntry
	clocks    map[max.Clock]*clock
	now       float64
	seq       uint64
	mainQueue []deferred
	lowQueue  []deferred

	registered map[string]*registration
	subs       []*subscription

	buffers    map[string]*buffer
	bufHandles map[max.Buffer]*buffer
	bufRefs    map[max.BufferRef]*bufferRef

	matrices map[unsafe.Pointer]*matrix
	lists    map[unsafe.Pointer]*matrixList
}

var _ max.Runtime = (*Host)(nil)

// New creates an empty host.
func New(opts ...Option) *Host {
	h := &Host{
		log:        zap.NewNop(),
		workers:    4,
		stackLimit: 64,
		nextHandle: 1,
		symbols:    make(map[string]*max.Symbol),
		allocs:     make(map[uintptr][]uint64),
		classes:    make(map[max.Class]*class),
		byName:     make(map[string]*class),
		objects:    make(map[unsafe.Pointer]*object),
		attrs:      make(map[max.Attr]*attribute),
		outlets:    make(map[max.Outlet]*outlet),
		proxies:    make(map[max.Proxy]*proxy),
		inlets:     make(map[max.Inlet]*inlet),
		mops:       make(map[max.MOP]*mop),
		clocks:     make(map[max.Clock]*clock),
		registered: make(map[string]*registration),
		buffers:    make(map[string]*buffer),
		bufHandles: make(map[max.Buffer]*buffer),
		bufRefs:    make(map[max.BufferRef]*bufferRef),
		matrices:   make(map[unsafe.Pointer]*matrix),
		lists:      make(map[unsafe.Pointer]*matrixList),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// handle returns a fresh non-zero handle value. Callers hold h.mu.
func (h *Host) handle() uintptr {
	id := h.nextHandle
	h.nextHandle++
	return id
}

// onThread runs fn as if called from thread t.
func (h *Host) onThread(t Thread, fn func()) {
	prev := h.thread.Swap(int32(t))
	defer h.thread.Store(prev)
	fn()
}

// CurrentThread reports the thread the host believes is running.
func (h *Host) CurrentThread() Thread {
	return Thread(h.thread.Load())
}

// Gensym interns name.
func (h *Host) Gensym(name string) *max.Symbol {
	h.symMu.Lock()
	defer h.symMu.Unlock()
	if s, ok := h.symbols[name]; ok {
		return s
	}
	s := max.NewSymbol(name)
	h.symbols[name] = s
	return s
}

// Post prints to the console.
func (h *Host) Post(msg string) { h.print(false, nil, msg) }

// Error prints an error to the console.
func (h *Host) Error(msg string) { h.print(true, nil, msg) }

// ObjectPost prints to the console on behalf of obj.
func (h *Host) ObjectPost(obj unsafe.Pointer, msg string) { h.print(false, obj, msg) }

// ObjectError prints an error on behalf of obj.
func (h *Host) ObjectError(obj unsafe.Pointer, msg string) { h.print(true, obj, msg) }

func (h *Host) print(isErr bool, obj unsafe.Pointer, msg string) {
	h.mu.Lock()
	h.console = append(h.console, ConsoleLine{Error: isErr, Obj: obj, Text: msg})
	h.mu.Unlock()
	h.log.Debug("console", zap.Bool("error", isErr), zap.String("text", msg))
}

// Console returns a copy of everything printed so far.
func (h *Host) Console() []ConsoleLine {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ConsoleLine(nil), h.console...)
}

// FailAllocs makes the next n allocations fail.
func (h *Host) FailAllocs(n int) {
	h.mu.Lock()
	h.failAllocs = n
	h.mu.Unlock()
}

// SysmemNewPtr allocates zeroed, 8 byte aligned memory.
func (h *Host) SysmemNewPtr(size uintptr) unsafe.Pointer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allocLocked(size)
}

func (h *Host) allocLocked(size uintptr) unsafe.Pointer {
	if h.failAllocs > 0 {
		h.failAllocs--
		return nil
	}
	words := (size + 7) / 8
	if words == 0 {
		words = 1
	}
	// Blocks stand in for C memory and are not scanned for pointers. Atoms
	// written here reach only interned symbols and other blocks, which
	// h.symbols and h.allocs retain.
	block := make([]uint64, words)
	p := unsafe.Pointer(&block[0])
	h.allocs[uintptr(p)] = block
	return p
}

// SysmemFreePtr releases memory returned by SysmemNewPtr.
func (h *Host) SysmemFreePtr(p unsafe.Pointer) {
	if p == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.allocs, uintptr(p))
}

// LiveAllocations counts blocks that have not been freed.
func (h *Host) LiveAllocations() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.allocs)
}

// HeaderSize returns the size of the host struct heading an instance.
func (h *Host) HeaderSize(kind max.HeaderKind) uintptr {
	switch kind {
	case max.HeaderPxObject:
		return pxObjectHeaderSize
	case max.HeaderJitObject:
		return jitObjectHeaderSize
	default:
		return objectHeaderSize
	}
}

func errorf(format string, args ...any) error {
	return oops.In("simhost").Errorf(format, args...)
}
