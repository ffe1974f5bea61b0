package stage

import (
	"context"
	"log/slog"
)

// Handler is one step of the certificate pipeline.
type Handler interface {
	Name() string
	// State is the job state while the handler runs.
	State() State
	Execute(context.Context, *Job) error
	HealthCheck(context.Context) Health
}

// LoggerAware handlers receive the stage-scoped logger before Execute.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
