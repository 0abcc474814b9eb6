package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/jobhost/id"
	"github.com/xraph/jobhost/lease"
)

// Exists implements lease.Store.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM jobhost_leases WHERE name = $1)`, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("jobhost/postgres: exists: %w", err)
	}
	return exists, nil
}

// CreateIfAbsent implements lease.Store.
func (s *Store) CreateIfAbsent(ctx context.Context, name string, payload []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobhost_leases (name, payload) VALUES ($1, $2)
		 ON CONFLICT (name) DO NOTHING`,
		name, payload,
	)
	if err != nil {
		return fmt.Errorf("jobhost/postgres: create: %w", err)
	}
	return nil
}

// AcquireLock implements lease.Store.
func (s *Store) AcquireLock(ctx context.Context, name string, d time.Duration) (string, error) {
	token := id.NewLeaseToken().String()
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobhost_leases
		SET token = $2,
		    locked_until = NOW() + make_interval(secs => $3),
		    updated_at = NOW()
		WHERE name = $1
		  AND (token IS NULL OR locked_until IS NULL OR locked_until <= NOW())`,
		name, token, d.Seconds(),
	)
	if err != nil {
		return "", fmt.Errorf("jobhost/postgres: acquire: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return token, nil
	}
	if err := s.mustExist(ctx, name); err != nil {
		return "", err
	}
	return "", lease.ErrAlreadyHeld
}

// RenewLock implements lease.Store.
func (s *Store) RenewLock(ctx context.Context, name, token string, d time.Duration) error {
	if token == "" {
		return lease.ErrTokenMissing
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobhost_leases
		SET locked_until = NOW() + make_interval(secs => $3),
		    updated_at = NOW()
		WHERE name = $1 AND token = $2 AND locked_until > NOW()`,
		name, token, d.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("jobhost/postgres: renew: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if err := s.mustExist(ctx, name); err != nil {
		return err
	}
	return lease.ErrLost
}

// ReleaseLock implements lease.Store.
func (s *Store) ReleaseLock(ctx context.Context, name, token string) error {
	if token == "" {
		return lease.ErrTokenMissing
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobhost_leases
		SET token = NULL, locked_until = NULL, updated_at = NOW()
		WHERE name = $1 AND token = $2 AND locked_until > NOW()`,
		name, token,
	)
	if err != nil {
		return fmt.Errorf("jobhost/postgres: release: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var locked bool
	err = s.pool.QueryRow(ctx, `
		SELECT token IS NOT NULL AND locked_until > NOW()
		FROM jobhost_leases WHERE name = $1`, name,
	).Scan(&locked)
	switch {
	case isNoRows(err):
		return lease.ErrObjectNotFound
	case err != nil:
		return fmt.Errorf("jobhost/postgres: release check: %w", err)
	case !locked:
		return lease.ErrNotPresent
	default:
		return lease.ErrLost
	}
}

// Download implements lease.Store.
func (s *Store) Download(ctx context.Context, name string) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM jobhost_leases WHERE name = $1`, name,
	).Scan(&payload)
	if isNoRows(err) {
		return nil, lease.ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobhost/postgres: download: %w", err)
	}
	return payload, nil
}

// UploadIf implements lease.Store.
func (s *Store) UploadIf(ctx context.Context, name string, payload []byte, token string) error {
	if token == "" {
		return lease.ErrTokenMissing
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobhost_leases
		SET payload = $3, updated_at = NOW()
		WHERE name = $1 AND token = $2 AND locked_until > NOW()`,
		name, token, payload,
	)
	if err != nil {
		return fmt.Errorf("jobhost/postgres: upload: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if err := s.mustExist(ctx, name); err != nil {
		return err
	}
	return lease.ErrLost
}

// mustExist returns ErrObjectNotFound when the lease row is missing.
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
