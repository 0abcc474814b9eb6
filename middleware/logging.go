package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/jobhost/job"
)

// Logging returns middleware that logs job start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, jc *job.Context, next Handler) (job.Result, error) {
		logger.Info("job started",
			slog.String("domain", jc.Options.Domain),
			slog.String("job_name", jc.Descriptor.Name),
			slog.String("tick_id", jc.TickID.String()),
		)

		start := time.Now()
		res, err := next(ctx, jc)
		elapsed := time.Since(start)

		switch {
		case err != nil:
			logger.Error("job failed",
				slog.String("domain", jc.Options.Domain),
				slog.String("job_name", jc.Descriptor.Name),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		case res.Status != job.StatusSuccess:
			logger.Warn("job finished",
				slog.String("domain", jc.Options.Domain),
				slog.String("job_name", jc.Descriptor.Name),
				slog.Duration("elapsed", elapsed),
				slog.String("status", res.Status.String()),
				slog.String("message", res.Message),
			)
		default:
			logger.Info("job completed",
				slog.String("domain", jc.Options.Domain),
				slog.String("job_name", jc.Descriptor.Name),
				slog.Duration("elapsed", elapsed),
			)
		}

		return res, err
	}
}
