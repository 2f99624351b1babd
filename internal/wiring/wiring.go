// Package wiring assembles the server's handful of process-wide
// singletons in dependency order. It is a small, purpose-built stand-in
// for a general dependency-injection container: this server never needs
// named lookup, scopes, or request-scoped resolution, only "construct
// these five things in order, run the listener, flush the logger on the
// way out" — so instead of a Register/Resolve map it is a plain struct
// with an explicit Start/Stop.
package wiring

import (
	"context"

	"github.com/dexgs/user-sites/internal/config"
	"github.com/dexgs/user-sites/internal/dispatch"
	"github.com/dexgs/user-sites/internal/listener"
	"github.com/dexgs/user-sites/internal/log"
	"github.com/dexgs/user-sites/internal/metrics"
	"github.com/dexgs/user-sites/internal/state"
)

// Server owns every long-lived component, constructed once at startup.
type Server struct {
	Config     config.ServerConfig
	Logger     log.Logger
	Metrics    *metrics.Registry
	State      *state.SharedState
	Dispatcher *dispatch.Dispatcher
	Listener   *listener.Listener
}

// Build constructs every component in dependency order: logger first
// (everything else may want to log during its own construction),
// metrics, shared state (wired to the metrics gauges), the dispatcher,
// and finally the listener. Nothing is started yet.
func Build(cfg config.ServerConfig) *Server {
	logger := log.New(log.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	metricsRegistry := metrics.NewRegistry()

	sharedState := state.New()
	sharedState.Metrics = metricsRegistry
	if cfg.MaxConcurrentAccessors > 0 {
		sharedState.MaxConcurrentAccessors = cfg.MaxConcurrentAccessors
	}
	if cfg.MaxCacheFileBytes > 0 {
		sharedState.MaxCacheFileSize = cfg.MaxCacheFileBytes
	}
	if cfg.MaxCacheTotalBytes > 0 {
		sharedState.MaxCacheSize = cfg.MaxCacheTotalBytes
	}
	if cfg.HysteresisHold > 0 {
		sharedState.HysteresisHold = cfg.HysteresisHold
	}

	d := dispatch.New(sharedState, logger.Named("dispatch"), metricsRegistry, cfg.Upstream)

	l := listener.New(d, logger.Named("listener"), metricsRegistry)

	return &Server{
		Config:     cfg,
		Logger:     logger,
		Metrics:    metricsRegistry,
		State:      sharedState,
		Dispatcher: d,
		Listener:   l,
	}
}

// Start runs the listener's accept loop. It blocks until Serve returns
// an error (the listener never stops on its own otherwise), matching
// spec.md §4.6: the listener has no independent shutdown signal besides
// process exit.
func (s *Server) Start(ctx context.Context) error {
	s.Logger.Info("starting", log.Int("port", s.Config.Port))
	return s.Listener.Serve(s.Config.Port)
}

// Stop releases the logger's buffered output. There is nothing else to
// release: workers are independent goroutines with no shared shutdown
// signal (spec.md §5's "workers are terminated by their own completion
// or by process shutdown"). The sync error is deliberately swallowed —
// zap's Sync on a console/stderr sink routinely fails with "inappropriate
// ioctl" under terminals and test harnesses that aren't a real TTY, which
// is not a shutdown failure worth reporting.
func (s *Server) Stop(ctx context.Context) error {
	_ = s.Logger.Sync()
	return nil
}
