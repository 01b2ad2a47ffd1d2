package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/config"
	"github.com/fyrsmithlabs/projectd/internal/events"
	"github.com/fyrsmithlabs/projectd/internal/kv"
	"github.com/fyrsmithlabs/projectd/internal/logging"
	"github.com/fyrsmithlabs/projectd/internal/project"
	"github.com/fyrsmithlabs/projectd/internal/telemetry"
)

// app holds the components shared by the server and admin commands.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	engine    kv.Engine
	store     *project.Store
	closers   []func(context.Context) error
}

// newLogger builds the service logger from cfg. provider may be nil.
func newLogger(cfg *config.Config, provider log.LoggerProvider) (*logging.Logger, error) {
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}

	lc := logging.NewDefaultConfig()
	lc.Level = level
	lc.Format = cfg.Logging.Format
	lc.Fields["service"] = cfg.Observability.ServiceName
	lc.Output.OTEL = cfg.Logging.OTEL && provider != nil
	return logging.NewLogger(lc, provider)
}

// newApp wires logging, telemetry, storage, and event publishing. withEvents
// is false for admin commands, which never publish.
func newApp(ctx context.Context, cfg *config.Config, withEvents bool) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	bootstrap, err := newLogger(cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	telCfg := telemetry.FromObservability(cfg.Observability, version, cfg.Logging.OTEL)
	tel, err := telemetry.New(ctx, telCfg, telemetry.WithLogger(bootstrap.Underlying()))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.telemetry = tel
	a.closers = append(a.closers, tel.Shutdown)

	a.logger = bootstrap
	if lp := tel.LoggerProvider(); lp != nil {
		if a.logger, err = newLogger(cfg, lp); err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	a.closers = append(a.closers, func(context.Context) error { return a.logger.Sync() })

	a.engine, err = kv.Open(kv.Options{Engine: cfg.Storage.Engine, Path: cfg.Storage.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return a.engine.Close() })

	metrics, err := project.NewMetrics(tel.Meter(project.InstrumentationName))
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	var publisher project.Publisher = events.Nop{}
	if withEvents && cfg.Events.URL != "" {
		nc, err := events.Connect(events.Options{
			URL:           cfg.Events.URL,
			SubjectPrefix: cfg.Events.SubjectPrefix,
			MaxReconnects: cfg.Events.MaxReconnects,
			ReconnectWait: cfg.Events.ReconnectWait.Duration(),
			Token:         cfg.Events.Token,
		}, a.logger.Underlying().Named("events"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return nc.Drain() })
		publisher = events.NewNATSPublisher(nc, cfg.Events.SubjectPrefix)
	}

	a.store, err = project.NewStore(a.engine,
		project.WithLogger(a.logger.Underlying().Named("project")),
		project.WithLimits(project.Limits{
			PageSize:        cfg.Projects.PageSize,
			MaxPageSize:     cfg.Projects.MaxPageSize,
			SearchLimit:     cfg.Projects.SearchLimit,
			LeaderboardSize: cfg.Projects.LeaderboardSize,
		}),
		project.WithMaxRetries(cfg.Projects.MaxRetries),
		project.WithMetrics(metrics),
		project.WithTracer(tel.Tracer(project.InstrumentationName)),
		project.WithPublisher(publisher),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	a.logger.Info(ctx, "projectd initialized",
		zap.String("version", version),
		zap.String("engine", cfg.Storage.Engine),
		zap.String("path", cfg.Storage.Path),
		zap.Bool("events", withEvents && cfg.Events.URL != ""),
		logging.Secret("events_token", cfg.Events.Token),
		zap.Bool("telemetry", tel.IsEnabled()))
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
