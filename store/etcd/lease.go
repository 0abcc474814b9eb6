package etcd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/xraph/jobhost/id"
	"github.com/xraph/jobhost/lease"
)

// ttlSeconds converts a lock duration to an etcd lease TTL.
func ttlSeconds(d time.Duration) int64 {
	return max(1, int64(math.Ceil(d.Seconds())))
}

// Exists implements lease.Store.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	resp, err := s.client.Get(ctx, s.objectKey(name), clientv3.WithCountOnly())
	if err != nil {
		return false, fmt.Errorf("jobhost/etcd: exists: %w", err)
	}
	return resp.Count > 0, nil
}

// CreateIfAbsent implements lease.Store.
func (s *Store) CreateIfAbsent(ctx context.Context, name string, payload []byte) error {
	key := s.objectKey(name)
	_, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(payload))).
		Commit()
	if err != nil {
		return fmt.Errorf("jobhost/etcd: create: %w", err)
	}
	return nil
}

// AcquireLock implements lease.Store. The lock key is created only if the
// object exists and no lock key is present.
func (s *Store) AcquireLock(ctx context.Context, name string, d time.Duration) (string, error) {
	grant, err := s.client.Grant(ctx, ttlSeconds(d))
	if err != nil {
		return "", fmt.Errorf("jobhost/etcd: grant: %w", err)
	}

	token := id.NewLeaseToken().String()
	obj, lock := s.objectKey(name), s.lockKey(name)
	resp, err := s.client.Txn(ctx).
		If(
			clientv3.Compare(clientv3.CreateRevision(obj), ">", 0),
			clientv3.Compare(clientv3.CreateRevision(lock), "=", 0),
		).
		Then(clientv3.OpPut(lock, token, clientv3.WithLease(grant.ID))).
		Commit()
	if err != nil {
		s.revoke(grant.ID)
		return "", fmt.Errorf("jobhost/etcd: acquire: %w", err)
	}
	if resp.Succeeded {
		return token, nil
	}

	s.revoke(grant.ID)
	if err := s.mustExist(ctx, name); err != nil {
		return "", err
	}
	return "", lease.ErrAlreadyHeld
}

// RenewLock implements lease.Store. The bound etcd lease is refreshed to
// its granted TTL, which AcquireLock derived from the same duration.
func (s *Store) RenewLock(ctx context.Context, name, token string, _ time.Duration) error {
	if token == "" {
		return lease.ErrTokenMissing
	}
	leaseID, err := s.currentLock(ctx, name, token)
	if err != nil {
		return err
	}
	if _, err := s.client.KeepAliveOnce(ctx, leaseID); err != nil {
		if errors.Is(err, rpctypes.ErrLeaseNotFound) {
			return lease.ErrLost
		}
		return fmt.Errorf("jobhost/etcd: renew: %w", err)
	}
	return nil
}

// ReleaseLock implements lease.Store.
func (s *Store) ReleaseLock(ctx context.Context, name, token string) error {
	if token == "" {
		return lease.ErrTokenMissing
	}
	leaseID, err := s.currentLock(ctx, name, token)
	if err != nil {
		return err
	}

	lock := s.lockKey(name)
	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.Value(lock), "=", token)).
		Then(clientv3.OpDelete(lock)).
		Commit()
	if err != nil {
		return fmt.Errorf("jobhost/etcd: release: %w", err)
	}
	if !resp.Succeeded {
		return lease.ErrLost
	}
	s.revoke(leaseID)
	return nil
}

// Download implements lease.Store.
func (s *Store) Download(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.client.Get(ctx, s.objectKey(name))
	if err != nil {
		return nil, fmt.Errorf("jobhost/etcd: download: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, lease.ErrObjectNotFound
	}
	return resp.Kvs[0].Value, nil
}

// UploadIf implements lease.Store.
func (s *Store) UploadIf(ctx context.Context, name string, payload []byte, token string) error {
	if token == "" {
		return lease.ErrTokenMissing
	}
	obj, lock := s.objectKey(name), s.lockKey(name)
	resp, err := s.client.Txn(ctx).
		If(
			clientv3.Compare(clientv3.CreateRevision(obj), ">", 0),
			clientv3.Compare(clientv3.Value(lock), "=", token),
		).
		Then(clientv3.OpPut(obj, string(payload))).
		Commit()
	if err != nil {
		return fmt.Errorf("jobhost/etcd: upload: %w", err)
	}
	if resp.Succeeded {
		return nil
	}
	if err := s.mustExist(ctx, name); err != nil {
		return err
	}
	return lease.ErrLost
}

// currentLock returns the etcd lease bound to name's lock when token holds
// it. It reports ErrNotPresent for a missing lock and ErrLost for a lock
// held under another token.
func (s *Store) currentLock(ctx context.Context, name, token string) (clientv3.LeaseID, error) {
	resp, err := s.client.Get(ctx, s.lockKey(name))
	if err != nil {
		return 0, fmt.Errorf("jobhost/etcd: get lock: %w", err)
	}
	if len(resp.Kvs) == 0 {
		if err := s.mustExist(ctx, name); err != nil {
			return 0, err
		}
		return 0, lease.ErrNotPresent
	}
	kv := resp.Kvs[0]
	if string(kv.Value) != token {
		return 0, lease.ErrLost
	}
	return clientv3.LeaseID(kv.Lease), nil
}

// revoke drops an etcd lease on a detached context. Failures only leave
// the lease to expire on its own.
func (s *Store) revoke(leaseID clientv3.LeaseID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.client.Revoke(ctx, leaseID); err != nil && !errors.Is(err, rpctypes.ErrLeaseNotFound) {
		s.logger.Warn("etcd lease revoke failed",
			slog.Int64("lease_id", int64(leaseID)),
			slog.String("error", err.Error()),
		)
	}
}

// mustExist returns ErrObjectNotFound when the lease object is missing.
func (s *Store) mustExist(ctx context.Context, name string) error {
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return lease.ErrObjectNotFound
	}
	return nil
}
