// Package builtin provides utility job types for smoke-testing a
// deployment: noop, sleep, fail and lease-probe.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/jobhost/job"
)

// Job types registered by Register.
const (
	TypeNoop       = "noop"
	TypeSleep      = "sleep"
	TypeFail       = "fail"
	TypeLeaseProbe = "lease-probe"
)

// Register adds every builtin job type to reg.
func Register(reg *job.Registry) {
	reg.RegisterJob(TypeNoop, Noop{})
	reg.RegisterJob(TypeSleep, Sleep{})
	reg.RegisterJob(TypeFail, Fail{})
	reg.RegisterJob(TypeLeaseProbe, LeaseProbe{})
}

// Noop succeeds immediately.
type Noop struct{ job.Base }

// Run implements job.Job.
func (Noop) Run(context.Context, *job.Context) (job.Result, error) {
	return job.Success("noop"), nil
}

// Sleep waits for params.duration (default 1s) and honours cancellation.
type Sleep struct{ job.Base }

// Run implements job.Job.
func (Sleep) Run(ctx context.Context, jc *job.Context) (job.Result, error) {
	d, err := time.ParseDuration(jc.Descriptor.Param("duration", "1s"))
	if err != nil {
		return job.Result{}, fmt.Errorf("sleep: invalid duration: %w", err)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return job.Result{}, ctx.Err()
	case <-timer.C:
		return job.Success("slept " + d.String()), nil
	}
}

// Fail always fails with params.message.
type Fail struct{ job.Base }

// Run implements job.Job.
func (Fail) Run(_ context.Context, jc *job.Context) (job.Result, error) {
	return job.Failure(errors.New(jc.Descriptor.Param("message", "fail job failed"))), nil
}

// Heartbeat is the payload written by LeaseProbe.
type Heartbeat struct {
	Domain string    `json:"domain"`
	Job    string    `json:"job"`
	TickID string    `json:"tick_id"`
	At     time.Time `json:"at"`
}

// LeaseProbe takes the lease named by params.lease, writes a Heartbeat
// through a conditional put, reads it back and releases the lease. Without
// params.lease it probes the tick's own lease and leaves it held.
type LeaseProbe struct{ job.Base }

// CanRun implements job.Job. The probe needs a lease service.
func (LeaseProbe) CanRun(_ context.Context, jc *job.Context) (bool, error) {
	return jc.Lease != nil, nil
}

// Run implements job.Job.
func (LeaseProbe) Run(ctx context.Context, jc *job.Context) (job.Result, error) {
	held := jc.Held
	if name := jc.Descriptor.Param("lease", ""); name != "" {
		res, err := jc.Lease.TryAcquireNonBlocking(ctx, name)
		if err != nil {
			return job.Result{}, err
		}
		if !res.HasLease() {
			return job.CouldNotRun("lease " + name + " is held elsewhere"), nil
		}
		defer func() { _ = jc.Lease.Release(context.WithoutCancel(ctx), res) }()
		held = res
	}
	if held == nil {
		return job.CouldNotRun("no lease to probe"), nil
	}

	hb := Heartbeat{
		Domain: jc.Options.Domain,
		Job:    jc.Descriptor.Name,
		TickID: jc.TickID.String(),
		At:     time.Now().UTC(),
	}
	if err := jc.Lease.Put(ctx, held, hb); err != nil {
		return job.Result{}, err
	}
	var got Heartbeat
	if err := jc.Lease.Get(ctx, held, &got); err != nil {
		return job.Result{}, err
	}
	if got.TickID != hb.TickID {
		return job.Result{}, fmt.Errorf("lease-probe: read back tick %q, wrote %q", got.TickID, hb.TickID)
	}
	return job.Success("heartbeat written to " + held.Name()).WithData(got), nil
}
