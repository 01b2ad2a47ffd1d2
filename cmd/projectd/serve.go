package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/config"
	httpserver "github.com/fyrsmithlabs/projectd/internal/http"
	"github.com/fyrsmithlabs/projectd/internal/kv"
	"github.com/fyrsmithlabs/projectd/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg)
}

// serve runs the server until ctx is cancelled. A graceful stop returns nil.
func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	logger := a.logger.Underlying()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if p, ok := a.engine.(*kv.Pebble); ok {
		registry.MustRegister(kv.NewPebbleCollector(p))
	}

	if cfg.Schedule.Enabled {
		sched, err := newScheduler(a, cfg.Schedule, logger)
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Schedule.Timeout.Duration())
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				logger.Warn("scheduler stop", zap.Error(err))
			}
		}()
	}

	srv, err := httpserver.NewServer(a.store, logger.Named("http"), &httpserver.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
		RateLimit: httpserver.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
	},
		httpserver.WithMetrics(httpserver.NewHTTPMetrics(a.telemetry.Meter(httpserver.InstrumentationName), logger)),
		httpserver.WithGatherer(registry),
		httpserver.WithVersion(version),
	)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("projectd stopped")
	return nil
}

func newScheduler(a *app, cfg config.ScheduleConfig, logger *zap.Logger) (*scheduler.Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule timezone %q: %w", cfg.Timezone, err)
	}
	sched, err := scheduler.New(a.store, cfg.ResetDownloads, logger.Named("scheduler"),
		scheduler.WithLocation(loc),
		scheduler.WithTimeout(cfg.Timeout.Duration()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return sched, nil
}
