package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/xraph/jobhost/lease"
	"github.com/xraph/jobhost/store/postgres"
	"github.com/xraph/jobhost/store/storetest"
)

// newStore connects to JOBHOST_TEST_POSTGRES_DSN and migrates, or skips.
func newStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := os.Getenv("JOBHOST_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("JOBHOST_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := postgres.New(ctx, dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestConformance(t *testing.T) {
	s := newStore(t)
	storetest.Run(t, func(*testing.T) lease.Store { return s }, storetest.Config{})
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
