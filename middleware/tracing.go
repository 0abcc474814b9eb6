package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobhost/job"
)

// tracerName is the instrumentation scope name for jobhost tracing.
const tracerName = "github.com/xraph/jobhost"

// Tracing returns middleware that wraps the job body in an OpenTelemetry
// span named "jobs.<domain>.<job>.run", using the global TracerProvider.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
//
// Span attributes: jobhost.domain, jobhost.job.name, jobhost.job.type,
// jobhost.tick_id and, once the body returns, jobhost.job.status.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, jc *job.Context, next Handler) (job.Result, error) {
		ctx, span := tracer.Start(ctx, "jobs."+jc.Options.Domain+"."+jc.Descriptor.Name+".run",
			trace.WithAttributes(
				attribute.String("jobhost.domain", jc.Options.Domain),
				attribute.String("jobhost.job.name", jc.Descriptor.Name),
				attribute.String("jobhost.job.type", jc.Descriptor.Type),
				attribute.String("jobhost.tick_id", jc.TickID.String()),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		res, err := next(ctx, jc)
		span.SetAttributes(attribute.String("jobhost.job.status", outcome(res, err).String()))
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case res.Status == job.StatusFailure:
			span.SetStatus(codes.Error, res.Message)
		default:
			span.SetStatus(codes.Ok, "")
		}

		return res, err
	}
}
