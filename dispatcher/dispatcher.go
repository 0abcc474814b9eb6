package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobhost"
	"github.com/xraph/jobhost/ext"
	"github.com/xraph/jobhost/feature"
	"github.com/xraph/jobhost/graph"
	"github.com/xraph/jobhost/job"
	"github.com/xraph/jobhost/lease"
	mw "github.com/xraph/jobhost/middleware"
	"github.com/xraph/jobhost/observability"
	"github.com/xraph/jobhost/schedule"
)

// Dispatcher runs the recurring tick loop of every registered domain.
type Dispatcher struct {
	config     jobhost.Config
	logger     *slog.Logger
	flags      feature.Flags
	lease      lease.Lease
	registry   *job.Registry
	services   *job.Container
	extensions *ext.Registry
	pendingExt []ext.Extension
	mws        []mw.Middleware
	chain      mw.Middleware
	tracer     trace.Tracer

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	mu      sync.RWMutex
	domains map[string]*domain
	order   []*domain
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Dispatcher. Domains are added with Register before Start.
func New(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		config:   jobhost.DefaultConfig(),
		logger:   slog.Default(),
		registry: job.NewRegistry(),
		services: job.NewContainer(),
		domains:  make(map[string]*domain),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	d.extensions = ext.NewRegistry(d.logger)

	tp := d.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	d.tracer = tp.Tracer(d.config.TracerName)

	// Register the observability metrics extension.
	var metricsMw mw.Middleware
	if d.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(d.meterProvider.Meter("github.com/xraph/jobhost"))
		d.extensions.Register(observability.NewMetricsExtensionWithMeter(
			d.meterProvider.Meter("github.com/xraph/jobhost/observability")))
	} else {
		metricsMw = mw.Metrics()
		d.extensions.Register(observability.NewMetricsExtension())
	}
	for _, e := range d.pendingExt {
		d.extensions.Register(e)
	}
	d.pendingExt = nil

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	all := []mw.Middleware{
		mw.Recover(d.logger),
		mw.TracingWithTracer(d.tracer),
		metricsMw,
		mw.Logging(d.logger),
		mw.Timeout(d.logger),
	}
	all = append(all, d.mws...)
	d.chain = mw.Chain(all...)

	return d, nil
}

// Register validates a domain and prepares it to run: the job graph is
// built once, the schedule is resolved and every job type must be known to
// the registry.
func (d *Dispatcher) Register(opts job.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	g, err := graph.Build(opts.Jobs)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.Domain, err)
	}
	sched, err := schedule.For(opts.Interval, opts.Schedule)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", jobhost.ErrInvalidDomain, opts.Domain, err)
	}
	for _, desc := range opts.Jobs {
		if !d.registry.Has(desc.Type) {
			return fmt.Errorf("%w: %s: job %q has type %q", jobhost.ErrUnknownJobType, opts.Domain, desc.Name, desc.Type)
		}
	}
	if opts.FeatureFlag != "" && d.flags == nil {
		return fmt.Errorf("%w: %s: feature flag %q set but no flag source configured",
			jobhost.ErrInvalidDomain, opts.Domain, opts.FeatureFlag)
	}
	if opts.Lease != "" && d.lease == nil {
		return fmt.Errorf("%w: %s: lease %q set but no lease service configured",
			jobhost.ErrInvalidDomain, opts.Domain, opts.Lease)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return jobhost.ErrAlreadyStarted
	}
	if _, dup := d.domains[opts.Domain]; dup {
		return fmt.Errorf("%w: %s", jobhost.ErrDuplicateDomain, opts.Domain)
	}
	dom := newDomain(opts, g, sched)
	d.domains[opts.Domain] = dom
	d.order = append(d.order, dom)

	d.logger.Info("domain registered",
		slog.String("domain", opts.Domain),
		slog.Int("jobs", g.Len()),
		slog.Any("order", g.Order()),
	)
	return nil
}

// Start launches one loop per registered domain and returns immediately.
// The loops run until Stop is called or ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return jobhost.ErrAlreadyStarted
	}
	d.running = true

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.logger.Info("dispatcher starting", slog.Int("domains", len(d.order)))
	for _, dom := range d.order {
		d.wg.Add(1)
		go d.loop(runCtx, dom)
	}
	return nil
}

// Stop cancels every domain loop and waits for running ticks to finish,
// bounded by ctx and the configured shutdown timeout. Extensions are then
// notified of the shutdown.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return jobhost.ErrNotStarted
	}
	d.running = false
	cancel := d.cancel
	d.mu.Unlock()

	d.logger.Info("dispatcher stopping")
	cancel()

	if d.config.ShutdownTimeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, d.config.ShutdownTimeout)
		defer stop()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		d.logger.Info("dispatcher stopped gracefully")
	case <-ctx.Done():
		d.logger.Warn("dispatcher shutdown timed out")
		err = ctx.Err()
	}

	d.extensions.EmitShutdown(context.WithoutCancel(ctx))
	return err
}

// RunOnce runs a single tick of the named domain synchronously. It returns
// ErrTickInProgress when the domain is already mid-tick. The returned error
// reports a tick-level failure such as a flag or lease error; job failures
// are reported through the status only.
func (d *Dispatcher) RunOnce(ctx context.Context, name string) (job.Status, error) {
	dom, err := d.domain(name)
	if err != nil {
		return job.StatusFailure, err
	}
	if !dom.tickMu.TryLock() {
		return job.StatusCouldNotRun, fmt.Errorf("%w: %s", jobhost.ErrTickInProgress, name)
	}
	defer dom.tickMu.Unlock()

	status, _, err := d.tick(ctx, dom)
	return status, err
}

// Status returns a snapshot of every domain in registration order.
func (d *Dispatcher) Status() []DomainStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]DomainStatus, 0, len(d.order))
	for _, dom := range d.order {
		out = append(out, dom.snapshot())
	}
	return out
}

// DomainStatus returns a snapshot of the named domain.
func (d *Dispatcher) DomainStatus(name string) (DomainStatus, error) {
	dom, err := d.domain(name)
	if err != nil {
		return DomainStatus{}, err
	}
	return dom.snapshot(), nil
}

// Extensions returns the extension registry.
func (d *Dispatcher) Extensions() *ext.Registry { return d.extensions }

// Registry returns the job type registry.
func (d *Dispatcher) Registry() *job.Registry { return d.registry }

func (d *Dispatcher) domain(name string) (*domain, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dom, ok := d.domains[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", jobhost.ErrDomainNotFound, name)
	}
	return dom, nil
}

// loop is run by each domain goroutine.
func (d *Dispatcher) loop(ctx context.Context, dom *domain) {
	defer d.wg.Done()

	logger := d.logger.With(slog.String("domain", dom.opts.Domain))
	logger.Debug("domain loop started")
	defer logger.Debug("domain loop stopped")

	// Cron domains wait for their first activation; interval domains tick
	// straight away.
	last := time.Now()
	if dom.opts.Schedule != "" {
		dom.setNext(dom.schedule.Next(last))
		if _, ok := schedule.Wait(ctx, dom.schedule, last); !ok {
			return
		}
	}

	for ctx.Err() == nil {
		dom.tickMu.Lock()
		_, finished, _ := d.tick(ctx, dom)
		dom.tickMu.Unlock()

		if _, ok := schedule.Wait(ctx, dom.schedule, finished); !ok {
			return
		}
	}
}
