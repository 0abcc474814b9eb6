package ext

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/jobhost/job"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time.
type tickCompletedEntry struct {
	name string
	hook TickCompleted
}

type tickSkippedEntry struct {
	name string
	hook TickSkipped
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type leaseAcquiredEntry struct {
	name string
	hook LeaseAcquired
}

type leaseLostEntry struct {
	name string
	hook LeaseLost
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Emit methods are called from concurrent domain goroutines; Register
// should complete before the dispatcher starts.
type Registry struct {
	mu         sync.RWMutex
	extensions []Extension
	logger     *slog.Logger

	tickCompleted []tickCompletedEntry
	tickSkipped   []tickSkippedEntry
	jobCompleted  []jobCompletedEntry
	leaseAcquired []leaseAcquiredEntry
	leaseLost     []leaseLostEntry
	shutdown      []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(TickCompleted); ok {
		r.tickCompleted = append(r.tickCompleted, tickCompletedEntry{name, h})
	}
	if h, ok := e.(TickSkipped); ok {
		r.tickSkipped = append(r.tickSkipped, tickSkippedEntry{name, h})
	}
	if h, ok := e.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, h})
	}
	if h, ok := e.(LeaseAcquired); ok {
		r.leaseAcquired = append(r.leaseAcquired, leaseAcquiredEntry{name, h})
	}
	if h, ok := e.(LeaseLost); ok {
		r.leaseLost = append(r.leaseLost, leaseLostEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Extension(nil), r.extensions...)
}

// ──────────────────────────────────────────────────
// Event emitters
// ──────────────────────────────────────────────────

// EmitTickCompleted notifies all extensions that implement TickCompleted.
func (r *Registry) EmitTickCompleted(ctx context.Context, domain string, status job.Status, elapsed time.Duration) {
	r.mu.RLock()
	entries := r.tickCompleted
	r.mu.RUnlock()
	for _, e := range entries {
		r.call("OnTickCompleted", e.name, func() error { return e.hook.OnTickCompleted(ctx, domain, status, elapsed) })
	}
}

// EmitTickSkipped notifies all extensions that implement TickSkipped.
func (r *Registry) EmitTickSkipped(ctx context.Context, domain, reason string) {
	r.mu.RLock()
	entries := r.tickSkipped
	r.mu.RUnlock()
	for _, e := range entries {
		r.call("OnTickSkipped", e.name, func() error { return e.hook.OnTickSkipped(ctx, domain, reason) })
	}
}

// EmitJobCompleted notifies all extensions that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, domain string, res job.DependencyResult, elapsed time.Duration) {
	r.mu.RLock()
	entries := r.jobCompleted
	r.mu.RUnlock()
	for _, e := range entries {
		r.call("OnJobCompleted", e.name, func() error { return e.hook.OnJobCompleted(ctx, domain, res, elapsed) })
	}
}

// EmitLeaseAcquired notifies all extensions that implement LeaseAcquired.
func (r *Registry) EmitLeaseAcquired(ctx context.Context, domain, leaseName string) {
	r.mu.RLock()
	entries := r.leaseAcquired
	r.mu.RUnlock()
	for _, e := range entries {
		r.call("OnLeaseAcquired", e.name, func() error { return e.hook.OnLeaseAcquired(ctx, domain, leaseName) })
	}
}

// EmitLeaseLost notifies all extensions that implement LeaseLost.
func (r *Registry) EmitLeaseLost(ctx context.Context, domain, leaseName string, lossErr error) {
	r.mu.RLock()
	entries := r.leaseLost
	r.mu.RUnlock()
	for _, e := range entries {
		r.call("OnLeaseLost", e.name, func() error { return e.hook.OnLeaseLost(ctx, domain, leaseName, lossErr) })
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	entries := r.shutdown
	r.mu.RUnlock()
	for _, e := range entries {
		r.call("OnShutdown", e.name, func() error { return e.hook.OnShutdown(ctx) })
	}
}

// call runs one hook. A returned error or a panic is logged and never
// reaches the caller.
func (r *Registry) call(hook, extName string, fn func() error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("extension hook panicked",
				slog.String("hook", hook),
				slog.String("extension", extName),
				slog.Any("panic", p),
			)
		}
	}()
	if err := fn(); err != nil {
		r.logHookError(hook, extName, err)
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
