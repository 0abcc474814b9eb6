package lease

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAlreadyHeld is returned by AcquireLock when another holder has a
	// valid lock.
	ErrAlreadyHeld = errors.New("lease: already present")

	// ErrLost is returned when a token no longer identifies a valid lock.
	ErrLost = errors.New("lease: lost")

	// ErrNotPresent is returned by ReleaseLock when no lock is held.
	ErrNotPresent = errors.New("lease: not present")

	// ErrTokenMissing is returned when an operation requires a token and
	// none was supplied.
	ErrTokenMissing = errors.New("lease: token missing")

	// ErrObjectNotFound is returned when the lease object does not exist.
	ErrObjectNotFound = errors.New("lease: object not found")

	// ErrNotHeld is returned by Manager operations that need a held lease.
	ErrNotHeld = errors.New("lease: not held")

	// ErrReleased is the cancellation cause of a result that was released.
	ErrReleased = errors.New("lease: released")
)

// Store is the lock/object backend behind a Manager.
//
// A lease object is addressed by name and holds an opaque payload. A lock
// on the object is valid while its token matches and its expiry has not
// passed. Implementations must make AcquireLock, RenewLock, ReleaseLock and
// UploadIf atomic with respect to each other across every process sharing
// the backend.
type Store interface {
	// Exists reports whether the named object exists.
	Exists(ctx context.Context, name string) (bool, error)

	// CreateIfAbsent creates the object with payload. It is not an error if
	// the object already exists; the existing payload is left untouched.
	CreateIfAbsent(ctx context.Context, name string, payload []byte) error

	// AcquireLock takes the lock for d and returns its token, or
	// ErrAlreadyHeld if a valid lock exists.
	AcquireLock(ctx context.Context, name string, d time.Duration) (string, error)

	// RenewLock extends the lock identified by token by d from now.
	// It returns ErrLost if token is not the current valid lock.
	RenewLock(ctx context.Context, name, token string, d time.Duration) error

	// ReleaseLock drops the lock identified by token. It returns
	// ErrNotPresent when no lock is held and ErrLost when a different lock
	// is held.
	ReleaseLock(ctx context.Context, name, token string) error

	// Download returns the object's payload.
	Download(ctx context.Context, name string) ([]byte, error)

	// UploadIf replaces the payload only while token is the valid lock.
	// It returns ErrLost otherwise.
	UploadIf(ctx context.Context, name string, payload []byte, token string) error
}
