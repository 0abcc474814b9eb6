// Package etcd implements store.Store on etcd v3.
//
// A lease's payload lives at /jobhost/leases/{name} and its lock at
// /jobhost/leases/{name}/lock. The lock key is bound to an etcd lease whose
// TTL is the lock duration rounded up to whole seconds, so an abandoned lock
// disappears when the etcd lease expires. Acquire and the conditional
// payload write are transactions; renewal is a single keep-alive of the
// bound etcd lease and release revokes it.
package etcd
