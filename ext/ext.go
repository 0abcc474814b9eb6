package ext

import (
	"context"
	"time"

	"github.com/xraph/jobhost/job"
)

// Reasons reported to TickSkipped.
const (
	ReasonFeatureDisabled  = "feature_disabled"
	ReasonLeaseUnavailable = "lease_unavailable"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Tick lifecycle hooks
// ──────────────────────────────────────────────────

// TickCompleted is called after a tick ran its job graph, or failed
// trying to.
type TickCompleted interface {
	OnTickCompleted(ctx context.Context, domain string, status job.Status, elapsed time.Duration) error
}

// TickSkipped is called when a gate prevented a tick from running.
type TickSkipped interface {
	OnTickSkipped(ctx context.Context, domain, reason string) error
}

// JobCompleted is called once per job per tick with the job's result,
// whether it ran, declined, was short-circuited or failed.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, domain string, r job.DependencyResult, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Lease hooks
// ──────────────────────────────────────────────────

// LeaseAcquired is called when a tick takes its domain lease.
type LeaseAcquired interface {
	OnLeaseAcquired(ctx context.Context, domain, leaseName string) error
}

// LeaseLost is called when a domain lease was lost during a tick.
type LeaseLost interface {
	OnLeaseLost(ctx context.Context, domain, leaseName string, err error) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
