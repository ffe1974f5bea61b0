package pipeline

import (
	"time"

	"certissuer/internal/candidate"
	"certissuer/internal/stage"
)

// Outcome is the per-candidate result of a batch.
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeFailed           Outcome = "failed"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeSkippedCompleted Outcome = "skipped_completed"
	OutcomeSkippedExhausted Outcome = "skipped_exhausted"
	OutcomeSkippedBusy      Outcome = "skipped_busy"
	// OutcomeInterrupted marks a candidate cut short by batch cancellation.
	// Its claim is released and its attempt counter is left alone.
	OutcomeInterrupted Outcome = "interrupted"
)

// Skipped reports whether the candidate was not attempted.
func (o Outcome) Skipped() bool {
	switch o {
	case OutcomeDuplicate, OutcomeSkippedCompleted, OutcomeSkippedExhausted, OutcomeSkippedBusy, OutcomeInterrupted:
		return true
	}
	return false
}

// CandidateResult describes what happened to one candidate.
type CandidateResult struct {
	StudentID  int64         `json:"student_id"`
	CourseID   int64         `json:"course_id"`
	Course     string        `json:"course"`
	Outcome    Outcome       `json:"outcome"`
	State      stage.State   `json:"state"`
	Code       string        `json:"code,omitempty"`
	ArchiveURL string        `json:"archive_url,omitempty"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Key returns the candidate identity.
func (r CandidateResult) Key() candidate.Key {
	return candidate.Key{StudentID: r.StudentID, CourseID: r.CourseID}
}

// BatchResult summarizes one batch.
type BatchResult struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Candidates []CandidateResult `json:"candidates"`
	Completed  int               `json:"completed"`
	Failed     int               `json:"failed"`
	Skipped    int               `json:"skipped"`
	// Truncated counts candidates dropped by the batch limit.
	Truncated int `json:"truncated,omitempty"`
	// Filtered counts feed rows passed over while collecting the batch
	// because they were already issued or out of attempts.
	Filtered int  `json:"filtered,omitempty"`
	Canceled bool `json:"canceled,omitempty"`
}

func (b *BatchResult) add(r CandidateResult) {
	b.Candidates = append(b.Candidates, r)
	switch {
	case r.Outcome == OutcomeCompleted:
		b.Completed++
	case r.Outcome == OutcomeFailed:
		b.Failed++
	case r.Outcome.Skipped():
		b.Skipped++
	}
}

// Duration is the wall time of the batch.
func (b BatchResult) Duration() time.Duration {
	if b.FinishedAt.IsZero() {
		return 0
	}
	return b.FinishedAt.Sub(b.StartedAt)
}
