// Package external turns Go types into Max and MSP object classes.
//
// A Module is created once per loaded plugin module. Its Main method runs
// the module's setup function the way the host's ext_main expects, and
// Register or RegisterDSP turn a Go type into a host class whose instances
// each carry one *T built through a two-stage Builder.
package external

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/justyntemme/gomedian/pkg/class"
	"github.com/justyntemme/gomedian/pkg/debug"
	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/object"
)

// Config configures a Module.
type Config struct {
	// Logger receives framework diagnostics. Defaults to debug.Logger().
	Logger *zap.Logger
	// Registerer receives the profiler's collectors. Nil disables export
	// but the profiler still counts.
	Registerer prometheus.Registerer
	// Exit replaces the process exit used when a panic reaches a host
	// entry point or setup fails.
	Exit func(code int)
}

// Module is the per-plugin-module service: it owns the class registry, the
// logger and the profiler for every class the module defines.
type Module struct {
	rt          max.Runtime
	reg         *class.Registry
	log         *zap.Logger
	prof        *debug.Profiler
	restoreExit func()
}

// NewModule creates the module service for rt.
func NewModule(rt max.Runtime, cfg Config) *Module {
	log := cfg.Logger
	if log == nil {
		log = debug.Logger()
	}
	m := &Module{
		rt:   rt,
		reg:  class.NewRegistry(log),
		log:  log,
		prof: debug.NewProfiler(cfg.Registerer),
	}
	if cfg.Exit != nil {
		m.restoreExit = object.SetExitFunc(cfg.Exit)
	}
	return m
}

// Runtime returns the host.
func (m *Module) Runtime() max.Runtime { return m.rt }

// Logger returns the module logger.
func (m *Module) Logger() *zap.Logger { return m.log }

// Registry returns the class registry.
func (m *Module) Registry() *class.Registry { return m.reg }

// Profiler returns the module profiler.
func (m *Module) Profiler() *debug.Profiler { return m.prof }

// Main runs setup as the module's entry point. A setup error or a panic is
// fatal: it is logged and the process exits.
func (m *Module) Main(setup func(*Module) error) {
	defer object.Boundary(m.log, "ext_main")
	if err := setup(m); err != nil {
		m.log.Error("module setup failed",
			zap.String("code", max.ErrorCode(err)),
			zap.Error(err),
		)
		object.Exit(1)
	}
}

// Close forgets every registered class. It is called when the module is
// unloaded.
func (m *Module) Close() {
	m.reg.Close()
	if m.restoreExit != nil {
		m.restoreExit()
		m.restoreExit = nil
	}
}
