package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/jobhost/id"
	"github.com/xraph/jobhost/lease"
)

// Script results shared by the lock scripts.
const (
	resNotFound = -1
	resMismatch = 0
	resOK       = 1
	resNoLock   = 2
)

// KEYS[1] object, KEYS[2] lock; ARGV[1] token, ARGV[2] ttl ms.
var acquireScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then return -1 end
if redis.call("SET", KEYS[2], ARGV[1], "NX", "PX", ARGV[2]) then return 1 end
return 0
`)

// KEYS[1] object, KEYS[2] lock; ARGV[1] token, ARGV[2] ttl ms.
var renewScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then return -1 end
if redis.call("GET", KEYS[2]) == ARGV[1] then
  redis.call("PEXPIRE", KEYS[2], ARGV[2])
  return 1
end
return 0
`)

// KEYS[1] object, KEYS[2] lock; ARGV[1] token.
var releaseScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then return -1 end
local current = redis.call("GET", KEYS[2])
if not current then return 2 end
if current == ARGV[1] then
  redis.call("DEL", KEYS[2])
  return 1
end
return 0
`)

// KEYS[1] object, KEYS[2] lock; ARGV[1] token, ARGV[2] payload.
var uploadScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then return -1 end
if redis.call("GET", KEYS[2]) == ARGV[1] then
  redis.call("SET", KEYS[1], ARGV[2])
  return 1
end
return 0
`)

// Exists implements lease.Store.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	n, err := s.client.Exists(ctx, objectKey(name)).Result()
	if err != nil {
		return false, fmt.Errorf("jobhost/redis: exists: %w", err)
	}
	return n == 1, nil
}

// CreateIfAbsent implements lease.Store.
func (s *Store) CreateIfAbsent(ctx context.Context, name string, payload []byte) error {
	if err := s.client.SetNX(ctx, objectKey(name), payload, 0).Err(); err != nil {
		return fmt.Errorf("jobhost/redis: create: %w", err)
	}
	return nil
}

// AcquireLock implements lease.Store.
func (s *Store) AcquireLock(ctx context.Context, name string, d time.Duration) (string, error) {
	token := id.NewLeaseToken().String()
	res, err := s.run(ctx, acquireScript, name, token, d.Milliseconds())
	if err != nil {
		return "", fmt.Errorf("jobhost/redis: acquire: %w", err)
	}
	switch res {
	case resOK:
		return token, nil
	case resNotFound:
		return "", lease.ErrObjectNotFound
	default:
		return "", lease.ErrAlreadyHeld
	}
}

// RenewLock implements lease.Store.
func (s *Store) RenewLock(ctx context.Context, name, token string, d time.Duration) error {
	if token == "" {
		return lease.ErrTokenMissing
	}
	res, err := s.run(ctx, renewScript, name, token, d.Milliseconds())
	if err != nil {
		return fmt.Errorf("jobhost/redis: renew: %w", err)
	}
	switch res {
	case resOK:
		return nil
	case resNotFound:
		return lease.ErrObjectNotFound
	default:
		return lease.ErrLost
	}
}

// ReleaseLock implements lease.Store.
func (s *Store) ReleaseLock(ctx context.Context, name, token string) error {
	if token == "" {
		return lease.ErrTokenMissing
	}
	res, err := s.run(ctx, releaseScript, name, token)
	if err != nil {
		return fmt.Errorf("jobhost/redis: release: %w", err)
	}
	switch res {
	case resOK:
		return nil
	case resNotFound:
		return lease.ErrObjectNotFound
	case resNoLock:
		return lease.ErrNotPresent
	default:
		return lease.ErrLost
	}
}

// Download implements lease.Store.
func (s *Store) Download(ctx context.Context, name string) ([]byte, error) {
	b, err := s.client.Get(ctx, objectKey(name)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, lease.ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobhost/redis: download: %w", err)
	}
	return b, nil
}

// UploadIf implements lease.Store.
func (s *Store) UploadIf(ctx context.Context, name string, payload []byte, token string) error {
	if token == "" {
		return lease.ErrTokenMissing
	}
	res, err := s.run(ctx, uploadScript, name, token, payload)
	if err != nil {
		return fmt.Errorf("jobhost/redis: upload: %w", err)
	}
	switch res {
	case resOK:
		return nil
	case resNotFound:
		return lease.ErrObjectNotFound
	default:
		return lease.ErrLost
	}
}

func (s *Store) run(ctx context.Context, script *goredis.Script, name string, args ...any) (int64, error) {
	return script.Run(ctx, s.client, []string{objectKey(name), lockKey(name)}, args...).Int64()
}
