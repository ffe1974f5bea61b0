package stageexec_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"certissuer/internal/candidate"
	"certissuer/internal/logging"
	"certissuer/internal/services"
	"certissuer/internal/stage"
	"certissuer/internal/stageexec"
)

type fakeHandler struct {
	state     stage.State
	err       error
	seenState stage.State
	logger    *slog.Logger
}

func (h *fakeHandler) Name() string             { return "fake" }
func (h *fakeHandler) State() stage.State       { return h.state }
func (h *fakeHandler) SetLogger(l *slog.Logger) { h.logger = l }
func (h *fakeHandler) Execute(_ context.Context, job *stage.Job) error {
	h.seenState = job.State
	return h.err
}
func (h *fakeHandler) HealthCheck(context.Context) stage.Health { return stage.Healthy("fake") }

func TestRunAdvancesState(t *testing.T) {
	job := stage.NewJob(candidate.Record{StudentID: 1, CourseID: 2}, "c", t.TempDir())
	h := &fakeHandler{state: stage.StateRendering}

	if err := stageexec.Run(context.Background(), stageexec.Options{Logger: logging.NewNop(), Handler: h, Job: job}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.seenState != stage.StateRendering || job.State != stage.StateRendering {
		t.Fatalf("expected rendering state, handler saw %q job has %q", h.seenState, job.State)
	}
	if h.logger == nil {
		t.Fatal("expected stage logger to be injected")
	}
}

func TestRunFailureMarksJobFailed(t *testing.T) {
	job := stage.NewJob(candidate.Record{StudentID: 1, CourseID: 2}, "c", t.TempDir())
	cause := services.Wrap(services.ErrUpload, "uploading", "upload file", "", errors.New("503"))
	h := &fakeHandler{state: stage.StateUploading, err: cause}

	err := stageexec.Run(context.Background(), stageexec.Options{Logger: logging.NewNop(), Handler: h, Job: job})
	if !errors.Is(err, services.ErrUpload) {
		t.Fatalf("expected upload error passthrough, got %v", err)
	}
	if job.State != stage.StateFailed || job.FailedIn != stage.StateUploading {
		t.Fatalf("expected failure in uploading, got %q/%q", job.State, job.FailedIn)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job := stage.NewJob(candidate.Record{StudentID: 1, CourseID: 2}, "c", t.TempDir())
	h := &fakeHandler{state: stage.StateAssembling}

	err := stageexec.Run(ctx, stageexec.Options{Handler: h, Job: job})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if h.seenState != "" {
		t.Fatal("handler should not run after cancellation")
	}
}
