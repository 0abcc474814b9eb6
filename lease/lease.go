package lease

import "context"

// Lease is the lease service handed to the dispatcher and to jobs.
type Lease interface {
	// TryAcquireNonBlocking attempts to take the named lease once. A lease
	// held elsewhere is reported through Result.HasLease, not as an error.
	TryAcquireNonBlocking(ctx context.Context, name string) (*Result, error)

	// Refresh renews a held lease. A failure marks the result lost.
	Refresh(ctx context.Context, r *Result) error

	// Release gives the lease back. Releasing a lease that is no longer
	// held is not an error.
	Release(ctx context.Context, r *Result) error

	// Get decodes the lease payload into v.
	Get(ctx context.Context, r *Result, v any) error

	// Put encodes v as the lease payload, only while r holds the lease.
	Put(ctx context.Context, r *Result, v any) error
}

var _ Lease = (*Manager)(nil)
