package object

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

var (
	exitMu   sync.RWMutex
	exitFunc = os.Exit
)

// SetExitFunc replaces the function used to terminate the process when a
// panic reaches a host entry point, and returns a function restoring the
// previous one.
func SetExitFunc(fn func(code int)) (restore func()) {
	exitMu.Lock()
	prev := exitFunc
	exitFunc = fn
	exitMu.Unlock()
	return func() {
		exitMu.Lock()
		exitFunc = prev
		exitMu.Unlock()
	}
}

// Exit terminates the process through the configured exit function.
func Exit(code int) {
	exitMu.RLock()
	fn := exitFunc
	exitMu.RUnlock()
	fn(code)
}

// Boundary must be deferred directly by every function the host calls. A
// panic must never unwind into host code, so it is logged and the process
// exits.
func Boundary(log *zap.Logger, entry string) {
	if r := recover(); r != nil {
		if log == nil {
			log = zap.NewNop()
		}
		log.Error("panic at host entry point",
			zap.String("entry", entry),
			zap.Any("panic", r),
			zap.Stack("stack"),
		)
		Exit(1)
	}
}
