package stageexec

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"certissuer/internal/logging"
	"certissuer/internal/services"
	"certissuer/internal/stage"
)

// Options controls a single stage execution.
type Options struct {
	Logger  *slog.Logger
	Handler stage.Handler
	Job     *stage.Job
}

// Run executes one stage: it moves the job into the stage's state, runs the
// handler, and logs the transition. On failure the job is left in
// stage.StateFailed and the handler error is returned unchanged so callers
// can classify it.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable")
	}
	if opts.Job == nil {
		return fmt.Errorf("stage job is required")
	}

	name := opts.Handler.Name()
	stageCtx := logging.WithStage(ctx, name)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	if aware, ok := opts.Handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	from := opts.Job.State
	opts.Job.State = opts.Handler.State()
	stageLogger.Debug(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("from_state", string(from)),
		logging.String("state", string(opts.Job.State)),
	)

	started := time.Now()
	if err := ctx.Err(); err != nil {
		return fail(stageLogger, opts.Job, err)
	}
	if err := opts.Handler.Execute(stageCtx, opts.Job); err != nil {
		return fail(stageLogger, opts.Job, err)
	}

	stageLogger.Debug(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("duration", time.Since(started)),
	)
	return nil
}

func fail(logger *slog.Logger, job *stage.Job, stageErr error) error {
	failedIn := job.State
	job.FailedIn = failedIn
	job.State = stage.StateFailed
	details := services.Details(stageErr)
	logger.Debug(
		"stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("failed_state", string(failedIn)),
		logging.String(logging.FieldErrorKind, details.Kind),
		logging.Error(stageErr),
	)
	return stageErr
}
