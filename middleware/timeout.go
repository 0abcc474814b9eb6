package middleware

import (
	"context"
	"log/slog"

	"github.com/xraph/jobhost/job"
)

// Timeout returns middleware that enforces the descriptor's Timeout.
// When the deadline is exceeded the context is cancelled and the body
// should return context.DeadlineExceeded.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, jc *job.Context, next Handler) (job.Result, error) {
		if jc.Descriptor.Timeout > 0 {
			logger.Debug("job timeout set",
				slog.String("job_name", jc.Descriptor.Name),
				slog.Duration("timeout", jc.Descriptor.Timeout),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, jc.Descriptor.Timeout)
			defer cancel()
		}
		return next(ctx, jc)
	}
}
