package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/jobhost/job"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, jc *job.Context, next Handler) (res job.Result, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("job handler panicked",
					slog.String("domain", jc.Options.Domain),
					slog.String("job_name", jc.Descriptor.Name),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				res = job.Result{}
				retErr = fmt.Errorf("panic in job %s: %v", jc.Descriptor.Name, r)
			}
		}()
		return next(ctx, jc)
	}
}
