package services

import "context"

type contextKey string

const (
	studentIDKey contextKey = "student_id"
	courseIDKey  contextKey = "course_id"
	stageKey     contextKey = "stage"
	runIDKey     contextKey = "run_id"
	requestIDKey contextKey = "request_id"
)

// WithCandidate annotates context with the student/course pair being processed.
func WithCandidate(ctx context.Context, studentID, courseID int64) context.Context {
	ctx = context.WithValue(ctx, studentIDKey, studentID)
	return context.WithValue(ctx, courseIDKey, courseID)
}

// CandidateFromContext extracts the student/course pair if present.
func CandidateFromContext(ctx context.Context) (studentID, courseID int64, ok bool) {
	s, sok := ctx.Value(studentIDKey).(int64)
	c, cok := ctx.Value(courseIDKey).(int64)
	if !sok || !cok {
		return 0, 0, false
	}
	return s, c, true
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRunID annotates context with the batch run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the batch run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
