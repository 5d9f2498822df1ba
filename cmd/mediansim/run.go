package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justyntemme/gomedian/pkg/bridge"
	"github.com/justyntemme/gomedian/pkg/debug"
	"github.com/justyntemme/gomedian/pkg/external"
	"github.com/justyntemme/gomedian/pkg/max"
	"github.com/justyntemme/gomedian/pkg/max/simhost"
)

// newRunCmd creates the run subcommand.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario against the simulated host",
		Long: `Run loads the scenario named by --config, registers the selected
externals and executes each step in order, printing console output and
outlet traffic as it happens.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runScenario(cmd, cfg)
		},
	}
	addConfigFlags(cmd.Flags())
	return cmd
}

// session is a host with the requested externals loaded.
type session struct {
	host *simhost.Host
	mod  *external.Module
	reg  *prometheus.Registry
}

func openSession(cfg Config) (*session, error) {
	level, err := debug.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, oops.Code(max.CodeConfigInvalid).With("log-level", cfg.LogLevel).Wrap(err)
	}
	host := simhost.New(simhost.WithWorkers(cfg.Workers))
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	mod, err := bridge.Load(host, external.Config{
		Logger:     debug.NewConsoleLogger(host, level),
		Registerer: reg,
	}, cfg.Externals...)
	if err != nil {
		return nil, err
	}
	return &session{host: host, mod: mod, reg: reg}, nil
}

func (s *session) Close() {
	s.mod.Close()
}

func runScenario(cmd *cobra.Command, cfg Config) error {
	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if cfg.MetricsAddr != "" {
		stop, _, err := serveMetrics(cfg.MetricsAddr, s.reg, s.mod.Logger())
		if err != nil {
			return err
		}
		defer stop()
	}

	return newRunner(s.host, cfg, cmd.OutOrStdout()).Run()
}

// serveMetrics exposes reg on addr until the returned stop function runs.
// It also returns the address actually bound.
func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) (func(), string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", oops.Code(max.CodeConfigInvalid).With("metrics-addr", addr).Wrapf(err, "listen")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		<-done
	}, ln.Addr().String(), nil
}
