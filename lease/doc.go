// Package lease provides a distributed, renewable, exclusive lease over a
// pluggable lock/object store.
//
// A lease is a named object in a [Store] with an optional JSON payload and a
// time-bounded exclusive lock. [Manager.TryAcquireNonBlocking] never waits:
// if another holder has the lock it returns a [Result] whose HasLease is
// false. A held result keeps the lock alive with [Result.StartRenewal],
// which renews at half the lease duration; if a renewal fails the result is
// marked lost and every context derived with [Result.Context] is cancelled.
//
//	res, err := mgr.TryAcquireNonBlocking(ctx, "register_sync")
//	if err != nil || !res.HasLease() {
//	    return
//	}
//	defer res.Close(context.WithoutCancel(ctx))
//	res.StartRenewal()
//	ctx, cancel := res.Context(ctx)
//	defer cancel()
//
// The payload is read with [Manager.Get] and written with [Manager.Put].
// Writes are conditioned on the caller still holding the lock.
package lease
