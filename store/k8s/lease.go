package k8s

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"time"

	coordinationv1 "k8s.io/api/coordination/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	coordinationclient "k8s.io/client-go/kubernetes/typed/coordination/v1"
	"k8s.io/client-go/util/retry"

	"github.com/xraph/jobhost/id"
	"github.com/xraph/jobhost/lease"
)

func (s *Store) leases() coordinationclient.LeaseInterface {
	return s.client.CoordinationV1().Leases(s.namespace)
}

// leaseSeconds converts a lock duration to whole Lease seconds.
func leaseSeconds(d time.Duration) int32 {
	return int32(max(1, math.Ceil(d.Seconds())))
}

// holder returns the Lease's holder identity, or "".
func holder(l *coordinationv1.Lease) string {
	if l.Spec.HolderIdentity == nil {
		return ""
	}
	return *l.Spec.HolderIdentity
}

// validLock reports whether l carries a lock that has not expired at now.
func validLock(l *coordinationv1.Lease, now time.Time) bool {
	if holder(l) == "" || l.Spec.RenewTime == nil || l.Spec.LeaseDurationSeconds == nil {
		return false
	}
	dur := time.Duration(*l.Spec.LeaseDurationSeconds) * time.Second
	return now.Before(l.Spec.RenewTime.Add(dur))
}

// Exists implements lease.Store.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.get(ctx, name)
	if errors.Is(err, lease.ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateIfAbsent implements lease.Store.
func (s *Store) CreateIfAbsent(ctx context.Context, name string, payload []byte) error {
	l := &coordinationv1.Lease{
		ObjectMeta: metav1.ObjectMeta{
			Name:        objectName(name),
			Namespace:   s.namespace,
			Labels:      maps.Clone(s.labels),
			Annotations: map[string]string{s.payloadKey(): base64.StdEncoding.EncodeToString(payload)},
		},
	}
	_, err := s.leases().Create(ctx, l, metav1.CreateOptions{})
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("jobhost/k8s: create lease: %w", err)
	}
	return nil
}

// AcquireLock implements lease.Store. A lost race on the resourceVersion is
// reported as ErrAlreadyHeld.
func (s *Store) AcquireLock(ctx context.Context, name string, d time.Duration) (string, error) {
	token := id.NewLeaseToken().String()
	secs := leaseSeconds(d)
	err := s.update(ctx, name, "acquire", lease.ErrAlreadyHeld, func(l *coordinationv1.Lease, now metav1.MicroTime) error {
		if validLock(l, now.Time) {
			return lease.ErrAlreadyHeld
		}
		if holder(l) != "" {
			transitions := int32(1)
			if l.Spec.LeaseTransitions != nil {
				transitions = *l.Spec.LeaseTransitions + 1
			}
			l.Spec.LeaseTransitions = &transitions
		}
		l.Spec.HolderIdentity = &token
		l.Spec.LeaseDurationSeconds = &secs
		l.Spec.AcquireTime = &now
		l.Spec.RenewTime = &now
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// RenewLock implements lease.Store.
func (s *Store) RenewLock(ctx context.Context, name, token string, d time.Duration) error {
	if token == "" {
		return lease.ErrTokenMissing
	}
	secs := leaseSeconds(d)
	return s.update(ctx, name, "renew", lease.ErrLost, func(l *coordinationv1.Lease, now metav1.MicroTime) error {
		if holder(l) != token || !validLock(l, now.Time) {
			return lease.ErrLost
		}
		l.Spec.LeaseDurationSeconds = &secs
		l.Spec.RenewTime = &now
		return nil
	})
}

// ReleaseLock implements lease.Store.
func (s *Store) ReleaseLock(ctx context.Context, name, token string) error {
	if token == "" {
		return lease.ErrTokenMissing
	}
	return s.update(ctx, name, "release", lease.ErrLost, func(l *coordinationv1.Lease, now metav1.MicroTime) error {
		switch {
		case !validLock(l, now.Time):
			return lease.ErrNotPresent
		case holder(l) != token:
			return lease.ErrLost
		}
		l.Spec.HolderIdentity = nil
		l.Spec.AcquireTime = nil
		l.Spec.RenewTime = nil
		return nil
	})
}

// Download implements lease.Store.
func (s *Store) Download(ctx context.Context, name string) ([]byte, error) {
	l, err := s.get(ctx, name)
	if err != nil {
		return nil, err
	}
	payload, err := base64.StdEncoding.DecodeString(l.Annotations[s.payloadKey()])
	if err != nil {
		return nil, fmt.Errorf("jobhost/k8s: decode payload: %w", err)
	}
	return payload, nil
}

// UploadIf implements lease.Store.
func (s *Store) UploadIf(ctx context.Context, name string, payload []byte, token string) error {
	if token == "" {
		return lease.ErrTokenMissing
	}
	encoded := base64.StdEncoding.EncodeToString(payload)
	return s.update(ctx, name, "upload", lease.ErrLost, func(l *coordinationv1.Lease, now metav1.MicroTime) error {
		if holder(l) != token || !validLock(l, now.Time) {
			return lease.ErrLost
		}
		if l.Annotations == nil {
			l.Annotations = make(map[string]string)
		}
		l.Annotations[s.payloadKey()] = encoded
		return nil
	})
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (s *Store) get(ctx context.Context, name string) (*coordinationv1.Lease, error) {
	l, err := s.leases().Get(ctx, objectName(name), metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, lease.ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobhost/k8s: get lease: %w", err)
	}
	return l, nil
}

// update reads the Lease, applies mutate and writes it back guarded by the
// read resourceVersion. Conflicts are retried with a fresh read; once the
// retries are spent the result is onConflict. An error from mutate aborts
// without writing.
func (s *Store) update(
	ctx context.Context,
	name, op string,
	onConflict error,
	mutate func(l *coordinationv1.Lease, now metav1.MicroTime) error,
) error {
	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		l, err := s.get(ctx, name)
		if err != nil {
			return err
		}
		if err := mutate(l, metav1.NewMicroTime(time.Now())); err != nil {
			return err
		}
		_, err = s.leases().Update(ctx, l, metav1.UpdateOptions{})
		return err
	})
	switch {
	case err == nil:
		return nil
	case apierrors.IsConflict(err):
		s.logger.Debug("lease update conflicts exhausted",
			slog.String("lease", name),
			slog.String("op", op),
		)
		return onConflict
	case errors.Is(err, lease.ErrObjectNotFound), errors.Is(err, lease.ErrAlreadyHeld),
		errors.Is(err, lease.ErrLost), errors.Is(err, lease.ErrNotPresent):
		return err
	case apierrors.IsNotFound(err):
		return lease.ErrObjectNotFound
	default:
		return fmt.Errorf("jobhost/k8s: %s: %w", op, err)
	}
}
