package lease

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/jobhost/backoff"
)

// Defaults for a Manager.
const (
	DefaultDuration    = 60 * time.Second
	DefaultJoinTimeout = 5 * time.Second
)

// placeholder is the payload of a newly created lease object.
var placeholder = []byte("{}")

// Option configures a Manager.
type Option func(*Manager)

// WithDuration sets how long an acquired lock stays valid without renewal.
// A non-positive duration falls back to DefaultDuration.
func WithDuration(d time.Duration) Option {
	return func(m *Manager) { m.duration = d }
}

// WithRenewInterval sets the background renewal cadence. It defaults to
// half the lease duration, which is also used when d is not shorter than
// the duration.
func WithRenewInterval(d time.Duration) Option {
	return func(m *Manager) { m.renewEvery = d }
}

// WithRetryPolicy sets the retry policy for transient store errors.
func WithRetryPolicy(p backoff.Policy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithJoinTimeout bounds how long Release waits for the renewal loop.
func WithJoinTimeout(d time.Duration) Option {
	return func(m *Manager) { m.joinTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMeterProvider sets the meter provider used for lease metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(m *Manager) { m.meterProvider = mp }
}

// Manager implements Lease over a Store.
type Manager struct {
	store         Store
	duration      time.Duration
	renewEvery    time.Duration
	joinTimeout   time.Duration
	policy        backoff.Policy
	logger        *slog.Logger
	meterProvider metric.MeterProvider
	tel           *telemetry
}

// NewManager creates a Manager backed by store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		duration:    DefaultDuration,
		joinTimeout: DefaultJoinTimeout,
		policy:      backoff.DefaultPolicy(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.duration <= 0 {
		m.logger.Warn("lease duration must be positive, using default",
			slog.Duration("duration", m.duration),
			slog.Duration("default", DefaultDuration),
		)
		m.duration = DefaultDuration
	}
	// Renewal must land before the lock times out.
	if m.renewEvery >= m.duration {
		m.logger.Warn("lease renew interval must be shorter than the duration, using half",
			slog.Duration("renew_interval", m.renewEvery),
			slog.Duration("duration", m.duration),
		)
		m.renewEvery = 0
	}
	if m.renewEvery <= 0 {
		m.renewEvery = m.duration / 2
	}
	if m.policy.Retryable == nil {
		m.policy.Retryable = transient
	}
	mp := m.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m.tel = newTelemetry(mp.Meter(meterName), m.logger)
	return m
}

// Duration returns the lock duration used for acquires and renewals.
func (m *Manager) Duration() time.Duration { return m.duration }

// RenewInterval returns the background renewal cadence.
func (m *Manager) RenewInterval() time.Duration { return m.renewEvery }

// TryAcquireNonBlocking implements Lease. It creates the lease object with
// an empty payload when missing, then attempts the lock once (retrying only
// transient store errors).
func (m *Manager) TryAcquireNonBlocking(ctx context.Context, name string) (*Result, error) {
	start := time.Now()

	if err := m.retry(ctx, func(ctx context.Context) error { return m.ensureObject(ctx, name) }); err != nil {
		m.tel.acquire(ctx, name, outcomeFailed, start, err)
		return nil, fmt.Errorf("lease: acquire %q: %w", name, err)
	}

	var token string
	err := m.retry(ctx, func(ctx context.Context) error {
		t, err := m.store.AcquireLock(ctx, name, m.duration)
		token = t
		return err
	})
	switch {
	case errors.Is(err, ErrAlreadyHeld):
		m.tel.acquire(ctx, name, outcomePresent, start, nil)
		return notHeld(m, name), nil
	case err != nil:
		m.tel.acquire(ctx, name, outcomeFailed, start, err)
		return nil, fmt.Errorf("lease: acquire %q: %w", name, err)
	}

	m.tel.acquire(ctx, name, outcomeSuccess, start, nil)
	return newResult(m, name, token, time.Now()), nil
}

func (m *Manager) ensureObject(ctx context.Context, name string) error {
	exists, err := m.store.Exists(ctx, name)
	if err != nil || exists {
		return err
	}
	// A concurrent creator may win; CreateIfAbsent tolerates that.
	return m.store.CreateIfAbsent(ctx, name, placeholder)
}

// Refresh implements Lease.
func (m *Manager) Refresh(ctx context.Context, r *Result) error {
	if r == nil {
		return ErrNotHeld
	}
	start := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.held {
		return ErrNotHeld
	}

	err := m.retry(ctx, func(ctx context.Context) error {
		return m.store.RenewLock(ctx, r.name, r.token, m.duration)
	})
	if err != nil {
		outcome := outcomeFailed
		if errors.Is(err, ErrLost) {
			outcome = outcomeLost
		}
		m.tel.refresh(ctx, r.name, outcome, start, err)
		r.markLostLocked(err)
		return fmt.Errorf("lease: refresh %q: %w", r.name, err)
	}

	r.renewedAt = time.Now()
	m.tel.refresh(ctx, r.name, outcomeSuccess, start, nil)
	return nil
}

// Release implements Lease. It stops background renewal first, then drops
// the lock. A lock that is already gone is treated as released.
func (m *Manager) Release(ctx context.Context, r *Result) error {
	if r == nil {
		return nil
	}
	r.stopRenewal(ctx)
	start := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.held {
		return nil
	}
	r.held = false
	defer r.finish(ErrReleased)

	err := m.retry(ctx, func(ctx context.Context) error {
		return m.store.ReleaseLock(ctx, r.name, r.token)
	})
	switch {
	case err == nil:
		m.tel.release(ctx, r.name, outcomeSuccess, start, r.acquiredAt, nil)
		return nil
	case errors.Is(err, ErrLost), errors.Is(err, ErrNotPresent), errors.Is(err, ErrTokenMissing):
		m.tel.release(ctx, r.name, outcomeLost, start, r.acquiredAt, err)
		return nil
	default:
		m.tel.release(ctx, r.name, outcomeFailed, start, r.acquiredAt, err)
		return fmt.Errorf("lease: release %q: %w", r.name, err)
	}
}

// Get implements Lease. An empty payload leaves v untouched.
func (m *Manager) Get(ctx context.Context, r *Result, v any) error {
	if r == nil {
		return ErrNotHeld
	}
	start := time.Now()

	var data []byte
	err := m.retry(ctx, func(ctx context.Context) error {
		d, err := m.store.Download(ctx, r.name)
		data = d
		return err
	})
	if err == nil && len(data) > 0 {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		m.tel.get(ctx, r.name, outcomeFailed, start, err)
		return fmt.Errorf("lease: get %q: %w", r.name, err)
	}
	m.tel.get(ctx, r.name, outcomeSuccess, start, nil)
	return nil
}

// Put implements Lease. A rejected write marks the result lost.
func (m *Manager) Put(ctx context.Context, r *Result, v any) error {
	if r == nil {
		return ErrNotHeld
	}
	start := time.Now()

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("lease: put %q: encode: %w", r.name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.held {
		return ErrNotHeld
	}

	err = m.retry(ctx, func(ctx context.Context) error {
		return m.store.UploadIf(ctx, r.name, payload, r.token)
	})
	switch {
	case err == nil:
		m.tel.update(ctx, r.name, outcomeSuccess, start, nil)
		return nil
	case errors.Is(err, ErrLost), errors.Is(err, ErrAlreadyHeld):
		m.tel.update(ctx, r.name, outcomeLost, start, err)
		r.markLostLocked(err)
		return fmt.Errorf("lease: put %q: %w", r.name, ErrLost)
	default:
		m.tel.update(ctx, r.name, outcomeFailed, start, err)
		return fmt.Errorf("lease: put %q: %w", r.name, err)
	}
}

// renewLoop renews r every renewEvery until stop is closed or the lease
// ends. The first failed renewal (after retries) ends the loop; Refresh has
// already marked the result lost.
func (m *Manager) renewLoop(r *Result, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.renewEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-r.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.renewEvery)
			err := m.Refresh(ctx, r)
			cancel()
			if errors.Is(err, ErrNotHeld) {
				return
			}
			if err != nil {
				m.logger.Warn("lease renewal failed, lease lost",
					slog.String("lease", r.name),
					slog.String("error", err.Error()),
				)
				return
			}
		}
	}
}

func (m *Manager) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	return backoff.Retry(ctx, m.policy, fn)
}

// transient reports whether err may succeed on retry. Lease protocol
// outcomes and context errors are final.
func transient(err error) bool {
	switch {
	case errors.Is(err, ErrAlreadyHeld),
		errors.Is(err, ErrLost),
		errors.Is(err, ErrNotPresent),
		errors.Is(err, ErrTokenMissing),
		errors.Is(err, ErrObjectNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
