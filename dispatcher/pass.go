package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/jobhost/graph"
	"github.com/xraph/jobhost/id"
	"github.com/xraph/jobhost/job"
	"github.com/xraph/jobhost/lease"
	mw "github.com/xraph/jobhost/middleware"
)

// runPass executes one pass of dom's graph with one goroutine per job and
// returns the aggregated status.
func (d *Dispatcher) runPass(ctx context.Context, dom *domain, tickID id.ID, held *lease.Result) job.Status {
	pass := dom.graph.NewPass()
	nodes := dom.graph.Nodes()
	results := make([]job.Result, len(nodes))

	var g errgroup.Group
	for i, n := range nodes {
		g.Go(func() error {
			results[i] = d.runNode(ctx, dom, pass, n, tickID, held)
			return nil
		})
	}
	_ = g.Wait() // nodes report through results

	return job.Aggregate(results)
}

// runNode waits for n's dependencies, decides whether n runs and publishes
// its result exactly once.
func (d *Dispatcher) runNode(ctx context.Context, dom *domain, pass *graph.Pass, n *graph.Node, tickID id.ID, held *lease.Result) (res job.Result) {
	domainName := dom.opts.Domain
	ctx, span := d.tracer.Start(ctx, "jobs."+domainName+"."+n.Name(),
		trace.WithAttributes(
			attribute.String("jobhost.domain", domainName),
			attribute.String("jobhost.job.name", n.Name()),
			attribute.String("jobhost.job.type", n.Descriptor.Type),
			attribute.String("jobhost.tick_id", tickID.String()),
			attribute.Bool("jobhost.job.run_always", n.Descriptor.RunAlways),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("job %q panicked: %v", n.Name(), r)
			d.logger.Error("job panicked",
				slog.String("domain", domainName),
				slog.String("job", n.Name()),
				slog.Any("panic", r),
			)
			res = job.Failure(perr)
		}
		pass.Publish(n, res)

		span.SetAttributes(attribute.String("jobhost.job.status", res.Status.String()))
		switch {
		case res.Status == job.StatusFailure:
			if res.Err != nil {
				span.RecordError(res.Err)
			}
			span.SetStatus(codes.Error, res.Message)
		default:
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		d.extensions.EmitJobCompleted(ctx, domainName, job.DependencyResult{Result: res, Descriptor: n.Descriptor}, time.Since(start))
	}()

	deps, err := pass.Wait(ctx, n)
	if err != nil {
		return job.Cancelled("cancelled while waiting for dependencies", context.Cause(ctx))
	}
	if ctx.Err() != nil {
		return job.Cancelled("cancelled before start", context.Cause(ctx))
	}

	if !n.Descriptor.RunAlways {
		if agg := aggregateDeps(deps); agg != job.StatusSuccess {
			span.AddEvent("dependencies did not succeed")
			return job.Result{
				Status:  agg,
				Message: "dependencies did not succeed: " + unsuccessful(deps),
			}
		}
	}

	return d.execute(ctx, dom, n, deps, tickID, held)
}

// execute resolves the job, asks CanRun and runs the body through the
// middleware chain.
func (d *Dispatcher) execute(ctx context.Context, dom *domain, n *graph.Node, deps []job.DependencyResult, tickID id.ID, held *lease.Result) job.Result {
	scope := d.services.NewScope()
	defer func() {
		if err := scope.Close(); err != nil {
			d.logger.Warn("closing job scope failed",
				slog.String("domain", dom.opts.Domain),
				slog.String("job", n.Name()),
				slog.String("error", err.Error()),
			)
		}
	}()

	j, err := d.registry.Resolve(n.Descriptor.Type, scope)
	if err != nil {
		return job.Failure(err)
	}

	jc := &job.Context{
		Options:    dom.opts,
		Descriptor: n.Descriptor,
		DependsOn:  deps,
		Lease:      d.lease,
		Held:       held,
		Services:   scope,
		TickID:     tickID,
	}

	ok, reason := d.canRun(ctx, j, jc)
	if !ok {
		return job.CouldNotRun(reason)
	}

	runJob := mw.Wrap(d.chain, func(ctx context.Context, jc *job.Context) (job.Result, error) {
		return j.Run(ctx, jc)
	})
	res, err := runJob(ctx, jc)
	switch {
	case err != nil && ctx.Err() != nil:
		return job.Cancelled("cancelled while running", context.Cause(ctx))
	case err != nil:
		return job.Failure(err)
	}
	return res
}

// canRun asks the job whether it should run in its own span. An error is
// treated as a refusal.
func (d *Dispatcher) canRun(ctx context.Context, j job.Job, jc *job.Context) (bool, string) {
	ctx, span := d.tracer.Start(ctx, "jobs."+jc.Options.Domain+"."+jc.Descriptor.Name+".can_run")
	defer span.End()

	ok, err := j.CanRun(ctx, jc)
	span.SetAttributes(attribute.Bool("jobhost.job.can_run", ok && err == nil))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, "can run check failed: " + err.Error()
	}
	if !ok {
		return false, "job declined to run"
	}
	return true, ""
}

func aggregateDeps(deps []job.DependencyResult) job.Status {
	out := job.StatusSuccess
	for _, dep := range deps {
		out = job.Max(out, dep.Result.Status)
	}
	return out
}

func unsuccessful(deps []job.DependencyResult) string {
	var names []string
	for _, dep := range deps {
		if dep.Result.Status != job.StatusSuccess {
			names = append(names, dep.Descriptor.Name+"="+dep.Result.Status.String())
		}
	}
	return strings.Join(names, ", ")
}
