package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/jobhost/ext"
	"github.com/xraph/jobhost/job"
)

const meterName = "github.com/xraph/jobhost/observability"

// Compile-time interface checks.
var (
	_ ext.Extension     = (*MetricsExtension)(nil)
	_ ext.TickCompleted = (*MetricsExtension)(nil)
	_ ext.TickSkipped   = (*MetricsExtension)(nil)
	_ ext.JobCompleted  = (*MetricsExtension)(nil)
	_ ext.LeaseAcquired = (*MetricsExtension)(nil)
	_ ext.LeaseLost     = (*MetricsExtension)(nil)
)

// MetricsExtension records dispatcher lifecycle metrics as OTel counters.
// Register it as a jobhost extension to track tick outcomes, gate skips,
// job results and lease churn per domain.
type MetricsExtension struct {
	TickCompleted metric.Int64Counter
	TickDuration  metric.Float64Histogram
	TickSkipped   metric.Int64Counter
	JobCompleted  metric.Int64Counter
	LeaseAcquired metric.Int64Counter
	LeaseLost     metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension on the provided meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}
	var err error

	m.TickCompleted, err = meter.Int64Counter("jobhost.tick.completed",
		metric.WithDescription("Ticks that ran their job graph"),
		metric.WithUnit("{tick}"))
	_ = err // noop fallback guaranteed by OTel API contract

	m.TickDuration, err = meter.Float64Histogram("jobhost.tick.duration",
		metric.WithDescription("Duration of a tick in seconds"),
		metric.WithUnit("s"))
	_ = err

	m.TickSkipped, err = meter.Int64Counter("jobhost.tick.skipped",
		metric.WithDescription("Ticks skipped by a gate"),
		metric.WithUnit("{tick}"))
	_ = err

	m.JobCompleted, err = meter.Int64Counter("jobhost.job.completed",
		metric.WithDescription("Job results produced by ticks"),
		metric.WithUnit("{job}"))
	_ = err

	m.LeaseAcquired, err = meter.Int64Counter("jobhost.lease.acquired",
		metric.WithDescription("Domain leases taken by ticks"),
		metric.WithUnit("{lease}"))
	_ = err

	m.LeaseLost, err = meter.Int64Counter("jobhost.lease.lost",
		metric.WithDescription("Domain leases lost during a tick"),
		metric.WithUnit("{lease}"))
	_ = err

	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Tick lifecycle hooks ────────────────────────────

// OnTickCompleted implements ext.TickCompleted.
func (m *MetricsExtension) OnTickCompleted(ctx context.Context, domain string, status job.Status, elapsed time.Duration) error {
	attrs := metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("status", status.String()),
	)
	m.TickCompleted.Add(ctx, 1, attrs)
	m.TickDuration.Record(ctx, elapsed.Seconds(), attrs)
	return nil
}

// OnTickSkipped implements ext.TickSkipped.
func (m *MetricsExtension) OnTickSkipped(ctx context.Context, domain, reason string) error {
	m.TickSkipped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("reason", reason),
	))
	return nil
}

// ── Job lifecycle hooks ─────────────────────────────

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, domain string, r job.DependencyResult, _ time.Duration) error {
	m.JobCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("job_name", r.Descriptor.Name),
		attribute.String("status", r.Result.Status.String()),
	))
	return nil
}

// ── Lease hooks ─────────────────────────────────────

// OnLeaseAcquired implements ext.LeaseAcquired.
func (m *MetricsExtension) OnLeaseAcquired(ctx context.Context, domain, leaseName string) error {
	m.LeaseAcquired.Add(ctx, 1, metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("lease", leaseName),
	))
	return nil
}

// OnLeaseLost implements ext.LeaseLost.
func (m *MetricsExtension) OnLeaseLost(ctx context.Context, domain, leaseName string, _ error) error {
	m.LeaseLost.Add(ctx, 1, metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("lease", leaseName),
	))
	return nil
}
