// Package http provides the HTTP API for projectd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/logging"
	"github.com/fyrsmithlabs/projectd/internal/project"
)

// Server provides HTTP endpoints for the project directory.
type Server struct {
	echo     *echo.Echo
	store    *project.Store
	logger   *zap.Logger
	config   *Config
	metrics  *HTTPMetrics
	gatherer prometheus.Gatherer
	limiter  *clientLimiter
	version  string
}

// Config holds HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration

	// RateLimit throttles project creation per client IP. A zero
	// RequestsPerSecond disables throttling.
	RateLimit RateLimitConfig
}

// RateLimitConfig configures per-client create throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithMetrics records OTEL HTTP metrics for every request.
func WithMetrics(m *HTTPMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithGatherer serves g on GET /metrics. Defaults to the global registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithVersion sets the version reported by the status endpoint.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates a new HTTP server.
func NewServer(store *project.Store, logger *zap.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host:            "",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       RateLimitConfig{RequestsPerSecond: 1, Burst: 10},
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		store:    store,
		logger:   logger,
		config:   cfg,
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		s.limiter = newClientLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	e.HTTPErrorHandler = s.handleError

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(s.requestContext)
	if s.metrics != nil {
		e.Use(s.metrics.MetricsMiddleware())
	}
	e.Use(s.requestLogger)

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.POST("/projects", s.handleCreate, s.rateLimit)
	v1.GET("/projects", s.handleList)
	v1.GET("/projects/:id", s.handleInfo)
	v1.PATCH("/projects/:id/name", s.handleRename)
	v1.POST("/projects/:id/verify", s.handleVerify)
	v1.POST("/projects/:id/downloads", s.handleIncrement)
	v1.DELETE("/projects/:id", s.handleDelete)
	v1.GET("/owners/:ownerId/projects", s.handleListByOwner)
	v1.GET("/search", s.handleSearch)
	v1.GET("/leaderboard", s.handleLeaderboard)
	v1.GET("/bans", s.handleListBans)
	v1.PUT("/bans/:userId", s.handleBan)
	v1.DELETE("/bans/:userId", s.handleUnban)
	v1.POST("/admin/purge", s.handlePurge)

	// Legacy routes, kept for existing clients.
	s.echo.POST("/save", s.handleCreate, s.rateLimit)
	s.echo.GET("/projects", s.handleLegacyList)
	s.echo.DELETE("/delete", s.handleLegacyDelete)
	s.echo.GET("/increase", s.handleLegacyIncrease)
	s.echo.GET("/clean", s.handlePurge)
}

// requestContext copies the request ID into the request context so store
// logs and spans can be correlated with the access log.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		if logging.ValidID(id) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		}
		return next(c)
	}
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			// Resolve the status before logging; echo would otherwise do it after.
			c.Error(err)
		}
		duration := time.Since(start)

		fields := append([]zap.Field{
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", duration),
			zap.String("remote_ip", c.RealIP()),
		}, logging.ContextFields(c.Request().Context())...)

		if c.Response().Status >= http.StatusInternalServerError {
			s.logger.Error("http request", append(fields, zap.Error(err))...)
		} else {
			s.logger.Info("http request", fields...)
		}
		return nil
	}
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
//
// Returns http.ErrServerClosed on graceful shutdown, or any other
// error encountered during startup or shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	s.logger.Info("starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
