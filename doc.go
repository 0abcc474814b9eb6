// Package jobhost runs recurring, dependency-ordered job passes per domain
// across a fleet of instances.
//
// Each domain is configured with a set of named jobs that may depend on one
// another, a tick interval or cron schedule, an optional feature flag and an
// optional distributed lease. On every tick the dispatcher checks the flag,
// tries to take the lease without blocking, and, when both gates pass,
// executes the job graph once. Only one instance in the fleet holds a
// domain's lease at a time; the holder renews it in the background and
// cancels the pass when it is lost.
//
// # Quick Start
//
//	mgr := lease.NewManager(memory.New())
//	d, err := dispatcher.New(
//	    dispatcher.WithLease(mgr),
//	    dispatcher.WithFlags(feature.Static{"register-sync": true}),
//	    dispatcher.WithRegistry(reg),
//	)
//	err = d.Register(job.Options{
//	    Domain:      "register",
//	    Interval:    2 * time.Minute,
//	    Lease:       "register_sync",
//	    FeatureFlag: "register-sync",
//	    Jobs: []job.Descriptor{
//	        {Name: "parties", Type: "sync-parties"},
//	        {Name: "roles", Type: "sync-roles", DependsOn: []string{"parties"}},
//	    },
//	})
//	err = d.Start(ctx)
//
// # Architecture
//
// The graph package validates a domain's jobs once and hands out
// per-tick passes that fan results in and out over channels. The lease
// package wraps a pluggable lock/object store (memory, redis, postgres,
// mongo, etcd or kubernetes) with acquire, renew, release and conditional
// payload writes. Lock tokens and tick identifiers are prefix-qualified
// UUIDv7 strings from the id package.
package jobhost
