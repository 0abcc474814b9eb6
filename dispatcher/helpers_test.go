package dispatcher_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/xraph/jobhost/backoff"
	"github.com/xraph/jobhost/dispatcher"
	"github.com/xraph/jobhost/job"
	"github.com/xraph/jobhost/lease"
	"github.com/xraph/jobhost/store/memory"
)

// ──────────────────────────────────────────────────
// Recording extension
// ──────────────────────────────────────────────────

type recorder struct {
	mu       sync.Mutex
	jobs     map[string]job.Result
	ticks    []job.Status
	skips    []string
	acquired []string
	lost     []string
	shutdown int
}

func newRecorder() *recorder {
	return &recorder{jobs: make(map[string]job.Result)}
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnTickCompleted(_ context.Context, _ string, status job.Status, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, status)
	return nil
}

func (r *recorder) OnTickSkipped(_ context.Context, _, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skips = append(r.skips, reason)
	return nil
}

func (r *recorder) OnJobCompleted(_ context.Context, domain string, res job.DependencyResult, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[domain+"/"+res.Descriptor.Name] = res.Result
	return nil
}

func (r *recorder) OnLeaseAcquired(_ context.Context, _, leaseName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acquired = append(r.acquired, leaseName)
	return nil
}

func (r *recorder) OnLeaseLost(_ context.Context, _, leaseName string, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lost = append(r.lost, leaseName)
	return nil
}

func (r *recorder) OnShutdown(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdown++
	return nil
}

func (r *recorder) result(t *testing.T, domain, name string) job.Result {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.jobs[domain+"/"+name]
	if !ok {
		t.Fatalf("no result recorded for %s/%s", domain, name)
	}
	return res
}

// panickingExt panics from every hook.
type panickingExt struct{}

func (panickingExt) Name() string { return "panicking" }

func (panickingExt) OnTickCompleted(context.Context, string, job.Status, time.Duration) error {
	panic("tick completed hook")
}

func (panickingExt) OnTickSkipped(context.Context, string, string) error {
	panic("tick skipped hook")
}

func (panickingExt) OnJobCompleted(context.Context, string, job.DependencyResult, time.Duration) error {
	panic("job completed hook")
}

func (panickingExt) OnLeaseAcquired(context.Context, string, string) error {
	panic("lease acquired hook")
}

func (panickingExt) OnLeaseLost(context.Context, string, string, error) error {
	panic("lease lost hook")
}

// ──────────────────────────────────────────────────
// Jobs
// ──────────────────────────────────────────────────

// calls counts job body invocations by job name.
type calls struct {
	mu sync.Mutex
	n  map[string]int
}

func newCalls() *calls { return &calls{n: make(map[string]int)} }

func (c *calls) inc(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n[name]++
}

func (c *calls) get(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[name]
}

// declining refuses to run.
type declining struct{ job.Base }

func (declining) CanRun(context.Context, *job.Context) (bool, error) { return false, nil }

func (declining) Run(context.Context, *job.Context) (job.Result, error) {
	panic("declining job must not run")
}

// testRegistry registers:
//   - ok: succeeds
//   - fail: returns an error
//   - decline: CanRun answers false
//   - block: waits until ctx is done and returns its error
func testRegistry(c *calls) *job.Registry {
	reg := job.NewRegistry()
	reg.RegisterJob("ok", job.Func(func(_ context.Context, jc *job.Context) (job.Result, error) {
		c.inc(jc.Descriptor.Name)
		return job.Success("done"), nil
	}))
	reg.RegisterJob("fail", job.Func(func(_ context.Context, jc *job.Context) (job.Result, error) {
		c.inc(jc.Descriptor.Name)
		return job.Result{}, errors.New("boom")
	}))
	reg.RegisterJob("decline", declining{})
	reg.RegisterJob("block", job.Func(func(ctx context.Context, jc *job.Context) (job.Result, error) {
		c.inc(jc.Descriptor.Name)
		<-ctx.Done()
		return job.Result{}, ctx.Err()
	}))
	return reg
}

func newTracer() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return sr, tp
}

func newLease(s *memory.Store) *lease.Manager {
	return lease.NewManager(s,
		lease.WithDuration(time.Second),
		lease.WithRenewInterval(10*time.Millisecond),
		lease.WithRetryPolicy(backoff.Policy{Strategy: backoff.NewConstant(time.Millisecond), MaxRetries: 1}),
	)
}

func newDispatcher(t *testing.T, opts ...dispatcher.Option) *dispatcher.Dispatcher {
	t.Helper()
	d, err := dispatcher.New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func mustRegister(t *testing.T, d *dispatcher.Dispatcher, opts job.Options) {
	t.Helper()
	if err := d.Register(opts); err != nil {
		t.Fatalf("Register(%s): %v", opts.Domain, err)
	}
}

func desc(name, typ string, deps ...string) job.Descriptor {
	return job.Descriptor{Name: name, Type: typ, DependsOn: deps}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
