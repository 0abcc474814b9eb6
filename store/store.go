// Package store defines the backend interface shared by every lease
// backend and the constructors that select one.
package store

import (
	"context"

	"github.com/xraph/jobhost/lease"
)

// Store is the full backend interface: the lease lock/object contract plus
// lifecycle operations.
type Store interface {
	lease.Store

	// Migrate prepares the backend (tables, indexes). It is safe to call
	// repeatedly.
	Migrate(ctx context.Context) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend's connections.
	Close() error
}
