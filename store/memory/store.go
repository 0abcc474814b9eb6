// Package memory provides an in-process lease store for development and
// tests.
package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/xraph/jobhost/id"
	"github.com/xraph/jobhost/lease"
	"github.com/xraph/jobhost/store"
)

var _ store.Store = (*Store)(nil)

type object struct {
	payload     []byte
	token       string
	lockedUntil time.Time
}

// Store is an in-memory implementation of store.Store.
// Safe for concurrent access.
type Store struct {
	mu      sync.Mutex
	objects map[string]*object
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the time source used for lock expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		objects: make(map[string]*object),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// lease.Store
// ──────────────────────────────────────────────────

// Exists implements lease.Store.
func (s *Store) Exists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[name]
	return ok, nil
}

// CreateIfAbsent implements lease.Store.
func (s *Store) CreateIfAbsent(_ context.Context, name string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[name]; !ok {
		s.objects[name] = &object{payload: bytes.Clone(payload)}
	}
	return nil
}

// AcquireLock implements lease.Store.
func (s *Store) AcquireLock(_ context.Context, name string, d time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[name]
	if !ok {
		return "", lease.ErrObjectNotFound
	}
	now := s.now()
	if o.validLock(now) {
		return "", lease.ErrAlreadyHeld
	}
	o.token = id.NewLeaseToken().String()
	o.lockedUntil = now.Add(d)
	return o.token, nil
}

// RenewLock implements lease.Store.
func (s *Store) RenewLock(_ context.Context, name, token string, d time.Duration) error {
	if token == "" {
		return lease.ErrTokenMissing
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[name]
	if !ok {
		return lease.ErrObjectNotFound
	}
	now := s.now()
	if o.token != token || !o.validLock(now) {
		return lease.ErrLost
	}
	o.lockedUntil = now.Add(d)
	return nil
}

// ReleaseLock implements lease.Store.
func (s *Store) ReleaseLock(_ context.Context, name, token string) error {
	if token == "" {
		return lease.ErrTokenMissing
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[name]
	if !ok {
		return lease.ErrObjectNotFound
	}
	now := s.now()
	switch {
	case !o.validLock(now):
		return lease.ErrNotPresent
	case o.token != token:
		return lease.ErrLost
	}
	o.token = ""
	o.lockedUntil = time.Time{}
	return nil
}

// Download implements lease.Store.
func (s *Store) Download(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[name]
	if !ok {
		return nil, lease.ErrObjectNotFound
	}
	return bytes.Clone(o.payload), nil
}

// UploadIf implements lease.Store.
func (s *Store) UploadIf(_ context.Context, name string, payload []byte, token string) error {
	if token == "" {
		return lease.ErrTokenMissing
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[name]
	if !ok {
		return lease.ErrObjectNotFound
	}
	if o.token != token || !o.validLock(s.now()) {
		return lease.ErrLost
	}
	o.payload = bytes.Clone(payload)
	return nil
}

// ──────────────────────────────────────────────────
// Test helpers
// ──────────────────────────────────────────────────

// Revoke drops any lock on name, as if it had expired or been broken by an
// operator. The next renewal by the former holder fails.
func (s *Store) Revoke(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.objects[name]; ok {
		o.token = ""
		o.lockedUntil = time.Time{}
	}
}

// Holder returns the current valid lock token for name, or "".
func (s *Store) Holder(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[name]
	if !ok || !o.validLock(s.now()) {
		return ""
	}
	return o.token
}

func (o *object) validLock(now time.Time) bool {
	return o.token != "" && now.Before(o.lockedUntil)
}
