package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/pagewatch/pagewatch/job"
)

// Recover returns middleware that recovers from panics during an attempt.
// Panics are converted to errors and logged with a stack trace, so a
// faulting attempt never takes down its worker or the pool.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, r *job.Run, next Handler) (retErr error) {
		defer func() {
			if rec := recover(); rec != nil {
				stack := string(debug.Stack())
				logger.Error("render attempt panicked",
					slog.String("job_name", r.JobName),
					slog.String("run_id", r.ID.String()),
					slog.Any("panic", rec),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in attempt for job %s: %v", r.JobName, rec)
			}
		}()
		return next(ctx)
	}
}
