// Package redis implements store.Store on Redis.
//
// Each lease is two keys: the object key holds the payload and has no
// expiry, and the lock key holds the current token with a millisecond TTL
// set by SET NX PX. Renewal, release and the conditional payload write are
// Lua scripts that compare the token and act in one round trip, so they are
// atomic across every process sharing the Redis instance.
//
// The caller owns the client lifecycle:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
