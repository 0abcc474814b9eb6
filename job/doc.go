// Package job defines the job contract, descriptors, results and the
// per-invocation service scope used by the dispatcher.
//
// # Jobs
//
// A [Job] is resolved from a [Registry] by its descriptor's Type each time it
// is dispatched. The dispatcher first asks [Job.CanRun]; a false answer (or an
// error) yields [StatusCouldNotRun] without invoking the body. Otherwise
// [Job.Run] is called and its [Result] is recorded; an error from Run yields
// [StatusFailure].
//
//	reg := job.NewRegistry()
//	reg.Register("sync-parties", func(s job.Services) (job.Job, error) {
//	    client, err := job.Resolve[*Client](s, "register-client")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &syncParties{client: client}, nil
//	})
//
// # Statuses
//
// [Status] values are ordered by severity:
//
//	success < could_not_run < cancelled < failure
//
// A dependent job only runs when the worst status among its dependencies is
// success, unless its descriptor sets RunAlways.
package job
