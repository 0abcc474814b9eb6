// Package middleware provides composable middleware around a job's body.
//
// Middleware wrap the call to [job.Job.Run] only; the CanRun check and the
// dependency protocol are handled by the dispatcher. They are applied
// right-to-left: the first middleware in the slice is the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging]: logs job name, domain, duration and outcome
//   - [Recover]: catches panics and converts them to errors
//   - [Timeout]: applies the descriptor's Timeout to the body's context
//   - [Tracing]: wraps the body in a "jobs.<domain>.<job>.run" span
//   - [Metrics]: records per-job duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, jc *job.Context, next middleware.Handler) (job.Result, error) {
//	        // pre-processing
//	        res, err := next(ctx, jc)
//	        // post-processing
//	        return res, err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
