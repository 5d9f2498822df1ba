// Package bridge collects the setup functions of plugin modules and runs
// them the way the host's ext_main entry point does.
//
// Externals register themselves from init, so linking a package into a
// build is enough to make its classes available:
//
//	func init() {
//		bridge.Register("simp", Setup)
//	}
package bridge

import (
	"sync"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/justyntemme/gomedian/pkg/external"
	"github.com/justyntemme/gomedian/pkg/max"
)

// Setup registers the classes of one external.
type Setup func(m *external.Module) error

type entry struct {
	name  string
	setup Setup
}

var (
	mu      sync.Mutex
	entries []entry
)

// Register adds a setup under name. Registering a name twice panics, since
// it can only happen when two packages claim the same external.
func Register(name string, setup Setup) {
	mu.Lock()
	defer mu.Unlock()
	if name == "" || setup == nil {
		panic("bridge: Register needs a name and a setup function")
	}
	for _, e := range entries {
		if e.name == name {
			panic("bridge: external " + name + " registered twice")
		}
	}
	entries = append(entries, entry{name: name, setup: setup})
}

// Names lists registered externals in registration order.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}

func lookup(names []string) ([]entry, error) {
	mu.Lock()
	defer mu.Unlock()
	if len(names) == 0 {
		return append([]entry(nil), entries...), nil
	}
	out := make([]entry, 0, len(names))
	for _, n := range names {
		found := false
		for _, e := range entries {
			if e.name == n {
				out = append(out, e)
				found = true
				break
			}
		}
		if !found {
			return nil, oops.Code(max.CodeConfigInvalid).With("external", n).Errorf("unknown external")
		}
	}
	return out, nil
}

// Load creates a module on rt and runs the setups of the named externals,
// or of every registered external when names is empty. Unlike Main it
// returns setup errors to the caller.
func Load(rt max.Runtime, cfg external.Config, names ...string) (*external.Module, error) {
	selected, err := lookup(names)
	if err != nil {
		return nil, err
	}
	m := external.NewModule(rt, cfg)
	for _, e := range selected {
		if err := e.setup(m); err != nil {
			m.Close()
			return nil, oops.With("external", e.name).Wrap(err)
		}
		m.Logger().Debug("external loaded", zap.String("external", e.name))
	}
	return m, nil
}

// Main is the body of ext_main: it runs every registered setup on a new
// module and treats any failure as fatal.
func Main(rt max.Runtime, cfg external.Config) *external.Module {
	selected, _ := lookup(nil)
	m := external.NewModule(rt, cfg)
	m.Main(func(m *external.Module) error {
		for _, e := range selected {
			if err := e.setup(m); err != nil {
				return oops.With("external", e.name).Wrap(err)
			}
		}
		return nil
	})
	return m
}
