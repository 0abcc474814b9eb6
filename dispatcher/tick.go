package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobhost/ext"
	"github.com/xraph/jobhost/id"
	"github.com/xraph/jobhost/job"
	"github.com/xraph/jobhost/lease"
)

// tick runs one tick of dom. It never panics: any panic or tick-level
// error is recorded on the tick span and reported as StatusFailure. It
// returns the tick status, when the tick finished and the tick-level error.
func (d *Dispatcher) tick(ctx context.Context, dom *domain) (status job.Status, finished time.Time, err error) {
	tickID := id.NewTickID()
	name := dom.opts.Domain
	logger := d.logger.With(slog.String("domain", name), slog.String("tick_id", tickID.String()))

	ctx, span := d.tracer.Start(ctx, "jobs."+name,
		trace.WithAttributes(
			attribute.String("jobhost.domain", name),
			attribute.String("jobhost.tick_id", tickID.String()),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	start := time.Now()
	var skip string
	dom.begin()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatcher: tick panicked: %v", r)
			status = job.StatusFailure
			skip = ""
		}
		finished = time.Now()
		elapsed := finished.Sub(start)
		dom.finish(status, finished, skip, err)

		next := dom.schedule.Next(finished)
		span.SetAttributes(
			attribute.String("jobhost.status", status.String()),
			attribute.String("jobhost.next_run", next.UTC().Format(time.RFC3339)),
		)
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error("tick failed",
				slog.String("error", err.Error()),
				slog.Duration("elapsed", elapsed),
			)
		case skip != "":
			span.SetStatus(codes.Ok, "")
		case status == job.StatusFailure:
			span.SetStatus(codes.Error, "one or more jobs failed")
		default:
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		if skip != "" {
			logger.Info("tick skipped", slog.String("reason", skip))
			d.extensions.EmitTickSkipped(ctx, name, skip)
			return
		}
		if err == nil {
			logger.Info("tick completed",
				slog.String("status", status.String()),
				slog.Duration("elapsed", elapsed),
			)
		}
		d.extensions.EmitTickCompleted(ctx, name, status, elapsed)
	}()

	// Flag gate.
	if flag := dom.opts.FeatureFlag; flag != "" {
		enabled, ferr := d.flags.IsEnabled(ctx, flag)
		span.SetAttributes(
			attribute.String("jobhost.feature_flag", flag),
			attribute.Bool("jobhost.feature_flag.enabled", enabled && ferr == nil),
		)
		if ferr != nil {
			return job.StatusFailure, time.Time{}, fmt.Errorf("dispatcher: feature flag %q: %w", flag, ferr)
		}
		if !enabled {
			skip = ext.ReasonFeatureDisabled
			return job.StatusCouldNotRun, time.Time{}, nil
		}
	}

	// Lease gate.
	var held *lease.Result
	runCtx := ctx
	if leaseName := dom.opts.Lease; leaseName != "" {
		span.SetAttributes(attribute.String("jobhost.lease", leaseName))
		res, lerr := d.lease.TryAcquireNonBlocking(ctx, leaseName)
		if lerr != nil {
			span.SetAttributes(attribute.Bool("jobhost.lease.held", false))
			return job.StatusFailure, time.Time{}, fmt.Errorf("dispatcher: acquire lease %q: %w", leaseName, lerr)
		}
		span.SetAttributes(attribute.Bool("jobhost.lease.held", res.HasLease()))
		if !res.HasLease() {
			skip = ext.ReasonLeaseUnavailable
			return job.StatusCouldNotRun, time.Time{}, nil
		}

		held = res
		held.StartRenewal()
		defer d.release(ctx, dom, held, logger)
		var stop context.CancelFunc
		runCtx, stop = held.Context(ctx)
		defer stop()

		dom.setLeaseHeld(true)
		span.AddEvent("lease acquired", trace.WithAttributes(attribute.String("jobhost.lease", leaseName)))
		d.extensions.EmitLeaseAcquired(ctx, name, leaseName)
	}

	status = d.runPass(runCtx, dom, tickID, held)
	return status, time.Time{}, nil
}

// release gives back the tick's lease on a context detached from the tick
// so a cancelled tick still releases. A lease lost during the tick is
// reported to extensions first.
func (d *Dispatcher) release(ctx context.Context, dom *domain, held *lease.Result, logger *slog.Logger) {
	if held.Lost() {
		lossErr := held.Err()
		logger.Warn("lease lost during tick",
			slog.String("lease", held.Name()),
			slog.String("error", lossErr.Error()),
		)
		trace.SpanFromContext(ctx).AddEvent("lease lost")
		d.extensions.EmitLeaseLost(ctx, dom.opts.Domain, held.Name(), lossErr)
	}

	rctx := context.WithoutCancel(ctx)
	if d.config.ReleaseTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(rctx, d.config.ReleaseTimeout)
		defer cancel()
	}
	if err := d.lease.Release(rctx, held); err != nil {
		logger.Warn("lease release failed",
			slog.String("lease", held.Name()),
			slog.String("error", err.Error()),
		)
	}
}
