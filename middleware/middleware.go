package middleware

import (
	"context"

	"github.com/xraph/jobhost/job"
)

// Handler is the terminal function that runs the job body.
type Handler func(ctx context.Context, jc *job.Context) (job.Result, error)

// Middleware wraps a Handler with cross-cutting logic.
type Middleware func(ctx context.Context, jc *job.Context, next Handler) (job.Result, error)

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, jc *job.Context, next Handler) (job.Result, error) {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context, jc *job.Context) (job.Result, error) {
				return mw(ctx, jc, prev)
			}
		}
		return h(ctx, jc)
	}
}

// Wrap returns a Handler that runs h through mw.
func Wrap(mw Middleware, h Handler) Handler {
	if mw == nil {
		return h
	}
	return func(ctx context.Context, jc *job.Context) (job.Result, error) {
		return mw(ctx, jc, h)
	}
}

// outcome names the status a body produced, treating an error as failure.
func outcome(res job.Result, err error) job.Status {
	if err != nil {
		return job.StatusFailure
	}
	return res.Status
}
