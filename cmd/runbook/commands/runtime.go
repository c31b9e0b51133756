package commands

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/runbook/runbook/pkg/engine"
	"github.com/runbook/runbook/pkg/gate"
	"github.com/runbook/runbook/pkg/history"
	"github.com/runbook/runbook/pkg/launcher"
	"github.com/runbook/runbook/pkg/logsink"
	"github.com/runbook/runbook/pkg/state"
	"github.com/runbook/runbook/pkg/telemetry"
)

// runtime bundles the wired collaborators behind the run and task commands.
type runtime struct {
	cfg     RuntimeConfig
	logger  zerolog.Logger
	runner  *engine.Runner
	store   *state.Store
	journal *history.Journal
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

// newRuntime loads config and wires the full engine: state store, log sink
// factory, launchers, admission gate, attempt journal, and telemetry.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := LoadRuntimeConfig(configPath)
	if err != nil {
		return nil, engine.NewConfigError("loading configuration", err)
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if jsonOutput {
		cfg.Telemetry.Logging.Format = "json"
	}

	logger, err := telemetry.NewLogger(cfg.Telemetry.Logging)
	if err != nil {
		return nil, engine.NewConfigError("configuring logging", err)
	}

	store, err := state.Open(cfg.StatePath(), logger)
	if err != nil {
		return nil, err
	}

	g, err := gate.Load(ctx, cfg.PolicyDir, logger)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: logger, store: store}

	if path := cfg.HistoryPath(); path != "" {
		journal, err := history.Open(ctx, path)
		if err != nil {
			// History is observability only; a broken journal must not block
			// the deployment itself.
			logger.Warn().Err(err).Str("path", path).Msg("attempt journal unavailable")
		} else {
			rt.journal = journal
		}
	}

	rt.metrics = telemetry.NewMetrics(cfg.Telemetry.Metrics)
	rt.tracer, err = telemetry.NewTracer(cfg.Telemetry.Tracing,
		cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion)
	if err != nil {
		logger.Warn().Err(err).Msg("tracing unavailable")
		rt.tracer = nil
	}

	opts := engine.Options{
		Metrics: rt.metrics,
		Tracer:  rt.tracer,
		Logger:  &logger,
	}
	if g != nil {
		opts.Gate = g
	}
	if rt.journal != nil {
		opts.Journal = rt.journal
	}

	sinks := logsink.NewFactory(cfg.LogPath())
	launchers := launcher.NewRegistry(cfg.Launcher)
	rt.runner = engine.NewRunner(store, sinks, launchers, opts)

	if cfg.Telemetry.Metrics.ListenAddress != "" {
		go func() {
			if err := rt.metrics.Serve(ctx); err != nil {
				logger.Warn().Err(err).Msg("metrics listener stopped")
			}
		}()
	}

	return rt, nil
}

// close tears down the collaborators that hold resources.
func (rt *runtime) close(ctx context.Context) {
	if rt.journal != nil {
		rt.journal.Close()
	}
	if rt.tracer != nil {
		if err := rt.tracer.Shutdown(ctx); err != nil {
			rt.logger.Warn().Err(err).Msg("tracer shutdown")
		}
	}
}
