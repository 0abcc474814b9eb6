package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/jobhost/job"
)

// meterName is the instrumentation scope name for jobhost metrics.
const meterName = "github.com/xraph/jobhost"

// Metrics returns middleware that records per-job execution metrics using
// the global OTel MeterProvider.
//
// Instruments:
//   - jobhost.job.duration (Float64Histogram): body time in seconds,
//     with attributes: domain, job_name, status
//   - jobhost.job.executions (Int64Counter): total executions,
//     with attributes: domain, job_name, status
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	duration, dErr := meter.Float64Histogram(
		"jobhost.job.duration",
		metric.WithDescription("Duration of job execution in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	executions, eErr := meter.Int64Counter(
		"jobhost.job.executions",
		metric.WithDescription("Total number of job executions"),
		metric.WithUnit("{execution}"),
	)
	_ = eErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, jc *job.Context, next Handler) (job.Result, error) {
		start := time.Now()
		res, err := next(ctx, jc)
		elapsed := time.Since(start).Seconds()

		attrs := metric.WithAttributes(
			attribute.String("domain", jc.Options.Domain),
			attribute.String("job_name", jc.Descriptor.Name),
			attribute.String("status", outcome(res, err).String()),
		)

		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return res, err
	}
}
