package project

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/projectd/internal/project"

// Metrics provides OpenTelemetry metrics for the project store.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	created          metric.Int64Counter
	deleted          metric.Int64Counter
	downloads        metric.Int64Counter
	allocatorRetries metric.Int64Counter
	updateRetries    metric.Int64Counter
	rejected         metric.Int64Counter
}

// NewMetrics creates store metrics from meter.
// If meter is nil, uses the global meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &Metrics{}
	var err error

	m.created, err = meter.Int64Counter(
		"projectd.projects.created_total",
		metric.WithDescription("Total number of projects created"),
		metric.WithUnit("{project}"),
	)
	if err != nil {
		return nil, err
	}

	m.deleted, err = meter.Int64Counter(
		"projectd.projects.deleted_total",
		metric.WithDescription("Total number of projects deleted, including purges"),
		metric.WithUnit("{project}"),
	)
	if err != nil {
		return nil, err
	}

	m.downloads, err = meter.Int64Counter(
		"projectd.downloads_total",
		metric.WithDescription("Total number of recorded project downloads"),
		metric.WithUnit("{download}"),
	)
	if err != nil {
		return nil, err
	}

	m.allocatorRetries, err = meter.Int64Counter(
		"projectd.allocator.retries_total",
		metric.WithDescription("Compare-and-swap retries while allocating project IDs"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	m.updateRetries, err = meter.Int64Counter(
		"projectd.projects.update_retries_total",
		metric.WithDescription("Compare-and-swap retries while updating project records"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	m.rejected, err = meter.Int64Counter(
		"projectd.projects.rejected_total",
		metric.WithDescription("Operations rejected by ownership or ban checks, labeled by reason"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) projectCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.created.Add(ctx, 1)
}

func (m *Metrics) projectsDeleted(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.deleted.Add(ctx, int64(n))
}

func (m *Metrics) downloadRecorded(ctx context.Context) {
	if m == nil {
		return
	}
	m.downloads.Add(ctx, 1)
}

func (m *Metrics) allocatorRetry(ctx context.Context) {
	if m == nil {
		return
	}
	m.allocatorRetries.Add(ctx, 1)
}

func (m *Metrics) updateRetry(ctx context.Context) {
	if m == nil {
		return
	}
	m.updateRetries.Add(ctx, 1)
}

func (m *Metrics) rejection(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
