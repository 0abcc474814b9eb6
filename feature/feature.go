// Package feature provides the feature-flag gate consulted before each
// domain tick.
package feature

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Flags answers whether a named flag is enabled.
type Flags interface {
	IsEnabled(ctx context.Context, name string) (bool, error)
}

// Static is a fixed set of flags. Unknown flags are disabled.
type Static map[string]bool

// IsEnabled implements Flags.
func (s Static) IsEnabled(_ context.Context, name string) (bool, error) {
	return s[name], nil
}

// Func adapts a function to Flags.
type Func func(ctx context.Context, name string) (bool, error)

// IsEnabled implements Flags.
func (f Func) IsEnabled(ctx context.Context, name string) (bool, error) { return f(ctx, name) }

// All enables every flag.
var All Flags = Func(func(context.Context, string) (bool, error) { return true, nil })

// Toggles is a mutable in-process flag set, safe for concurrent use.
type Toggles struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewToggles creates a Toggles seeded with initial.
func NewToggles(initial map[string]bool) *Toggles {
	t := &Toggles{flags: make(map[string]bool, len(initial))}
	for k, v := range initial {
		t.flags[k] = v
	}
	return t
}

// Set changes a flag.
func (t *Toggles) Set(name string, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flags[name] = enabled
}

// IsEnabled implements Flags.
func (t *Toggles) IsEnabled(_ context.Context, name string) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.flags[name], nil
}

// DefaultRedisKey is the hash holding flag values in Redis.
const DefaultRedisKey = "jobhost:feature_flags"

// Redis reads flags from a Redis hash. A field of "1", "true" or "on"
// (case-insensitive) is enabled; anything else, or a missing field, is
// disabled.
type Redis struct {
	client redis.UniversalClient
	key    string
}

// NewRedis creates a Redis flag source. An empty key selects DefaultRedisKey.
func NewRedis(client redis.UniversalClient, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

// IsEnabled implements Flags.
func (r *Redis) IsEnabled(ctx context.Context, name string) (bool, error) {
	v, err := r.client.HGet(ctx, r.key, name).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("feature/redis: hget %s: %w", name, err)
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on":
		return true, nil
	}
	return false, nil
}
