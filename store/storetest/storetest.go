// Package storetest is a conformance suite for lease.Store implementations.
//
//	func TestConformance(t *testing.T) {
//	    storetest.Run(t, func(t *testing.T) lease.Store { return memory.New() }, storetest.Config{})
//	}
package storetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/jobhost/lease"
)

// Config tunes the suite to a backend's time granularity.
type Config struct {
	// LockDuration is used for every acquire. Backends with second
	// resolution need at least 2s. Defaults to 300ms.
	LockDuration time.Duration
}

var seq atomic.Int64

// Name returns a lease name that is unique within the process and valid for
// every backend.
func Name() string {
	return fmt.Sprintf("storetest-%d-%d", time.Now().UnixNano(), seq.Add(1))
}

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore func(t *testing.T) lease.Store, cfg Config) {
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = 300 * time.Millisecond
	}
	d := cfg.LockDuration

	t.Run("CreateIfAbsentIsIdempotent", func(t *testing.T) {
		s, ctx, name := newStore(t), context.Background(), Name()

		exists, err := s.Exists(ctx, name)
		if err != nil || exists {
			t.Fatalf("Exists before create = %v, %v", exists, err)
		}
		if err := s.CreateIfAbsent(ctx, name, []byte(`{"v":1}`)); err != nil {
			t.Fatalf("CreateIfAbsent: %v", err)
		}
		if err := s.CreateIfAbsent(ctx, name, []byte(`{"v":2}`)); err != nil {
			t.Fatalf("second CreateIfAbsent: %v", err)
		}
		exists, err = s.Exists(ctx, name)
		if err != nil || !exists {
			t.Fatalf("Exists after create = %v, %v", exists, err)
		}
		got, err := s.Download(ctx, name)
		if err != nil {
			t.Fatalf("Download: %v", err)
		}
		if !bytes.Equal(got, []byte(`{"v":1}`)) {
			t.Errorf("payload = %s, want the first payload", got)
		}
	})

	t.Run("DownloadMissing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Download(context.Background(), Name()); !errors.Is(err, lease.ErrObjectNotFound) {
			t.Fatalf("expected ErrObjectNotFound, got %v", err)
		}
	})

	t.Run("AcquireIsExclusive", func(t *testing.T) {
		s, ctx, name := newStore(t), context.Background(), Name()
		mustCreate(t, s, name)

		token, err := s.AcquireLock(ctx, name, d)
		if err != nil || token == "" {
			t.Fatalf("AcquireLock = %q, %v", token, err)
		}
		if _, err := s.AcquireLock(ctx, name, d); !errors.Is(err, lease.ErrAlreadyHeld) {
			t.Fatalf("second AcquireLock: expected ErrAlreadyHeld, got %v", err)
		}
		if err := s.ReleaseLock(ctx, name, token); err != nil {
			t.Fatalf("ReleaseLock: %v", err)
		}
		again, err := s.AcquireLock(ctx, name, d)
		if err != nil {
			t.Fatalf("AcquireLock after release: %v", err)
		}
		if again == token {
			t.Error("a new acquire should issue a new token")
		}
	})

	t.Run("ConcurrentAcquireSingleWinner", func(t *testing.T) {
		s, ctx, name := newStore(t), context.Background(), Name()
		mustCreate(t, s, name)

		const contenders = 8
		var wg sync.WaitGroup
		var winners, held atomic.Int32
		for i := 0; i < contenders; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.AcquireLock(ctx, name, d)
				switch {
				case err == nil:
					winners.Add(1)
				case errors.Is(err, lease.ErrAlreadyHeld):
					held.Add(1)
				default:
					t.Errorf("AcquireLock: %v", err)
				}
			}()
		}
		wg.Wait()
		if winners.Load() != 1 || held.Load() != contenders-1 {
			t.Fatalf("winners=%d held=%d", winners.Load(), held.Load())
		}
	})

	t.Run("RenewRequiresToken", func(t *testing.T) {
		s, ctx, name := newStore(t), context.Background(), Name()
		mustCreate(t, s, name)

		token, err := s.AcquireLock(ctx, name, d)
		if err != nil {
			t.Fatalf("AcquireLock: %v", err)
		}
		if err := s.RenewLock(ctx, name, token, d); err != nil {
			t.Fatalf("RenewLock: %v", err)
		}
		if err := s.RenewLock(ctx, name, "lease_bogus", d); !errors.Is(err, lease.ErrLost) {
			t.Fatalf("RenewLock with wrong token: expected ErrLost, got %v", err)
		}
		if err := s.RenewLock(ctx, name, "", d); !errors.Is(err, lease.ErrTokenMissing) {
			t.Fatalf("RenewLock without token: expected ErrTokenMissing, got %v", err)
		}
	})

	t.Run("ExpiredLockCanBeTaken", func(t *testing.T) {
		s, ctx, name := newStore(t), context.Background(), Name()
		mustCreate(t, s, name)

		first, err := s.AcquireLock(ctx, name, d)
		if err != nil {
			t.Fatalf("AcquireLock: %v", err)
		}
		time.Sleep(d + d/2 + 500*time.Millisecond)

		second, err := s.AcquireLock(ctx, name, d)
		if err != nil {
			t.Fatalf("AcquireLock after expiry: %v", err)
		}
		if err := s.RenewLock(ctx, name, first, d); !errors.Is(err, lease.ErrLost) {
			t.Errorf("stale renew: expected ErrLost, got %v", err)
		}
		if err := s.UploadIf(ctx, name, []byte(`{}`), first); !errors.Is(err, lease.ErrLost) {
			t.Errorf("stale upload: expected ErrLost, got %v", err)
		}
		if err := s.RenewLock(ctx, name, second, d); err != nil {
			t.Errorf("current renew: %v", err)
		}
	})

	t.Run("ReleaseSemantics", func(t *testing.T) {
		s, ctx, name := newStore(t), context.Background(), Name()
		mustCreate(t, s, name)

		token, err := s.AcquireLock(ctx, name, d)
		if err != nil {
			t.Fatalf("AcquireLock: %v", err)
		}
		if err := s.ReleaseLock(ctx, name, "lease_bogus"); !errors.Is(err, lease.ErrLost) {
			t.Fatalf("release with wrong token: expected ErrLost, got %v", err)
		}
		if err := s.ReleaseLock(ctx, name, token); err != nil {
			t.Fatalf("ReleaseLock: %v", err)
		}
		if err := s.ReleaseLock(ctx, name, token); !errors.Is(err, lease.ErrNotPresent) {
			t.Fatalf("second release: expected ErrNotPresent, got %v", err)
		}
		if err := s.ReleaseLock(ctx, name, ""); !errors.Is(err, lease.ErrTokenMissing) {
			t.Fatalf("release without token: expected ErrTokenMissing, got %v", err)
		}
	})

	t.Run("UploadIfConditional", func(t *testing.T) {
		s, ctx, name := newStore(t), context.Background(), Name()
		mustCreate(t, s, name)

		token, err := s.AcquireLock(ctx, name, d)
		if err != nil {
			t.Fatalf("AcquireLock: %v", err)
		}
		if err := s.UploadIf(ctx, name, []byte(`{"cursor":"p2"}`), token); err != nil {
			t.Fatalf("UploadIf: %v", err)
		}
		got, err := s.Download(ctx, name)
		if err != nil || !bytes.Equal(got, []byte(`{"cursor":"p2"}`)) {
			t.Fatalf("Download = %s, %v", got, err)
		}

		if err := s.UploadIf(ctx, name, []byte(`{"cursor":"p3"}`), "lease_bogus"); !errors.Is(err, lease.ErrLost) {
			t.Fatalf("UploadIf with wrong token: expected ErrLost, got %v", err)
		}
		if err := s.ReleaseLock(ctx, name, token); err != nil {
			t.Fatalf("ReleaseLock: %v", err)
		}
		if err := s.UploadIf(ctx, name, []byte(`{"cursor":"p4"}`), token); !errors.Is(err, lease.ErrLost) {
			t.Fatalf("UploadIf after release: expected ErrLost, got %v", err)
		}
		got, _ = s.Download(ctx, name)
		if !bytes.Equal(got, []byte(`{"cursor":"p2"}`)) {
			t.Errorf("rejected writes must not change the payload, got %s", got)
		}
	})
}

func mustCreate(t *testing.T, s lease.Store, name string) {
	t.Helper()
	if err := s.CreateIfAbsent(context.Background(), name, []byte(`{}`)); err != nil {
		t.Fatalf("CreateIfAbsent: %v", err)
	}
}
