package http

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// InstrumentationName is the OTEL scope of the HTTP instruments.
const InstrumentationName = "github.com/fyrsmithlabs/projectd/internal/http"

// Latency buckets in seconds. Store operations are full scans at worst, so
// the upper buckets stay generous.
var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// HTTPMetrics records per-request OTEL metrics. Instruments that fail to
// register are left nil and skipped.
type HTTPMetrics struct {
	requests    metric.Int64Counter
	duration    metric.Float64Histogram
	bodyBytes   metric.Int64Histogram
	inFlight    metric.Int64UpDownCounter
	rateLimited metric.Int64Counter
}

// NewHTTPMetrics registers the HTTP instruments on meter, or on the global
// meter provider when meter is nil.
func NewHTTPMetrics(meter metric.Meter, logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	warn := func(name string, err error) {
		if err != nil {
			logger.Warn("failed to create http instrument", zap.String("instrument", name), zap.Error(err))
		}
	}

	var m HTTPMetrics
	var err error

	m.requests, err = meter.Int64Counter("projectd.http.requests_total",
		metric.WithDescription("HTTP requests by method, route, status and status class"),
		metric.WithUnit("{request}"))
	warn("requests_total", err)

	m.duration, err = meter.Float64Histogram("projectd.http.request_duration_seconds",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...))
	warn("request_duration_seconds", err)

	m.bodyBytes, err = meter.Int64Histogram("projectd.http.response_size_bytes",
		metric.WithDescription("HTTP response body size"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(100, 1000, 10000, 100000, 1000000))
	warn("response_size_bytes", err)

	m.inFlight, err = meter.Int64UpDownCounter("projectd.http.active_requests",
		metric.WithDescription("HTTP requests currently being served"),
		metric.WithUnit("{request}"))
	warn("active_requests", err)

	m.rateLimited, err = meter.Int64Counter("projectd.http.rate_limited_total",
		metric.WithDescription("Requests rejected by the per-client create limiter"),
		metric.WithUnit("{request}"))
	warn("rate_limited_total", err)

	return &m
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
// Register it inside the request logger so error statuses are resolved.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()

			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1)
				defer m.inFlight.Add(ctx, -1)
			}

			err := next(c)
			m.observe(ctx, c, time.Since(start))
			return err
		}
	}
}

func (m *HTTPMetrics) observe(ctx context.Context, c echo.Context, elapsed time.Duration) {
	status := c.Response().Status
	attrs := metric.WithAttributes(
		attribute.String("method", c.Request().Method),
		attribute.String("route", normalizePath(c.Path())),
		attribute.Int("status", status),
		attribute.String("status_class", statusClass(status)),
	)
	if m.requests != nil {
		m.requests.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
	if m.bodyBytes != nil {
		m.bodyBytes.Record(ctx, c.Response().Size, attrs)
	}
}

// limited counts one rate-limited request on route. Safe on a nil receiver.
func (m *HTTPMetrics) limited(ctx context.Context, route string) {
	if m == nil || m.rateLimited == nil {
		return
	}
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(attribute.String("route", normalizePath(route))))
}

// normalizePath labels requests by route template so project IDs in the URL
// do not become metric labels. Unmatched requests share one label.
func normalizePath(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}

// statusClass maps 404 to "4xx" and so on.
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
