package lease

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Result is the outcome of an acquire attempt and, when held, the handle
// used to renew, write and release the lease.
type Result struct {
	name  string
	owner *Manager

	// mu serialises store calls that use the token so a renewal cannot race
	// a release or a conditional write.
	mu         sync.Mutex
	token      string
	held       bool
	acquiredAt time.Time
	renewedAt  time.Time

	// life is cancelled when the lease is lost or released.
	life   context.Context
	finish context.CancelCauseFunc

	renewMu   sync.Mutex
	stopRenew chan struct{}
	renewDone chan struct{}
}

func newResult(owner *Manager, name, token string, at time.Time) *Result {
	life, finish := context.WithCancelCause(context.Background())
	return &Result{
		name:       name,
		owner:      owner,
		token:      token,
		held:       true,
		acquiredAt: at,
		renewedAt:  at,
		life:       life,
		finish:     finish,
	}
}

func notHeld(owner *Manager, name string) *Result {
	life, finish := context.WithCancelCause(context.Background())
	finish(ErrNotHeld)
	return &Result{name: name, owner: owner, life: life, finish: finish}
}

// Name returns the lease name.
func (r *Result) Name() string { return r.name }

// HasLease reports whether the lease is currently held.
func (r *Result) HasLease() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held
}

// Token returns the lock token, or "" when the lease was never held.
func (r *Result) Token() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.token
}

// AcquiredAt returns when the lock was acquired.
func (r *Result) AcquiredAt() time.Time { return r.acquiredAt }

// RenewedAt returns when the lock was last acquired or renewed.
func (r *Result) RenewedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renewedAt
}

// Done is closed when the lease is lost or released. It is already closed
// for a result that never held the lease.
func (r *Result) Done() <-chan struct{} { return r.life.Done() }

// Err returns why Done is closed: an error wrapping ErrLost, ErrReleased or
// ErrNotHeld. It returns nil while the lease is held.
func (r *Result) Err() error {
	if r.life.Err() == nil {
		return nil
	}
	return context.Cause(r.life)
}

// Lost reports whether the lease was lost rather than released.
func (r *Result) Lost() bool { return errors.Is(r.Err(), ErrLost) }

// Context derives a context from parent that is also cancelled, with the
// loss as its cause, when the lease ends. The returned cancel must be
// called to release resources.
func (r *Result) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	stop := context.AfterFunc(r.life, func() { cancel(context.Cause(r.life)) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// StartRenewal starts renewing the lock in the background at the owner's
// renewal interval. It is a no-op when the lease is not held or renewal is
// already running.
func (r *Result) StartRenewal() {
	r.renewMu.Lock()
	defer r.renewMu.Unlock()
	if r.stopRenew != nil || !r.HasLease() {
		return
	}
	r.stopRenew = make(chan struct{})
	r.renewDone = make(chan struct{})
	go r.owner.renewLoop(r, r.stopRenew, r.renewDone)
}

// stopRenewal signals the renewal loop and waits for it to exit, bounded by
// ctx and by the owner's join timeout.
func (r *Result) stopRenewal(ctx context.Context) {
	r.renewMu.Lock()
	stop, done := r.stopRenew, r.renewDone
	if stop != nil {
		select {
		case <-stop:
		default:
			close(stop)
		}
	}
	r.renewMu.Unlock()
	if done == nil {
		return
	}

	timer := time.NewTimer(r.owner.joinTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Close stops renewal and releases the lease. It is safe to call more than
// once and on results that never held the lease.
func (r *Result) Close(ctx context.Context) error {
	if r == nil || r.owner == nil {
		return nil
	}
	return r.owner.Release(ctx, r)
}

// markLostLocked ends the lease with cause. r.mu must be held.
func (r *Result) markLostLocked(cause error) {
	r.held = false
	if !errors.Is(cause, ErrLost) {
		cause = errors.Join(ErrLost, cause)
	}
	r.finish(cause)
}
