package api

import (
	"time"

	"certissuer/internal/pipeline"
	"certissuer/internal/records"
	"certissuer/internal/stage"
	"certissuer/internal/staging"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// FromBatchResult converts a pipeline batch result to its API representation.
func FromBatchResult(res pipeline.BatchResult) BatchSummary {
	out := BatchSummary{
		RunID:      res.RunID,
		StartedAt:  formatTime(res.StartedAt),
		FinishedAt: formatTime(res.FinishedAt),
		Completed:  res.Completed,
		Failed:     res.Failed,
		Skipped:    res.Skipped,
		Truncated:  res.Truncated,
		Filtered:   res.Filtered,
		Canceled:   res.Canceled,
		DurationMS: res.Duration().Milliseconds(),
		Candidates: make([]CandidateOutcome, 0, len(res.Candidates)),
	}
	for _, c := range res.Candidates {
		out.Candidates = append(out.Candidates, CandidateOutcome{
			StudentID:  c.StudentID,
			CourseID:   c.CourseID,
			Course:     c.Course,
			Outcome:    string(c.Outcome),
			State:      string(c.State),
			Code:       c.Code,
			ArchiveURL: c.ArchiveURL,
			ErrorKind:  c.ErrorKind,
			Error:      c.Error,
			DurationMS: c.Duration.Milliseconds(),
		})
	}
	return out
}

// FromCertificate converts a record row.
func FromCertificate(c records.Certificate) Certificate {
	return Certificate{
		StudentID:    c.StudentID,
		StudentName:  c.StudentName,
		NationalID:   c.NationalID,
		CourseID:     c.CourseID,
		CourseName:   c.CourseName,
		Score:        c.Score,
		Code:         c.Code,
		Status:       string(c.Status),
		Issuer:       c.Issuer,
		ArchiveURL:   c.ArchiveURL,
		IssuedAt:     formatTimePtr(c.IssuedAt),
		ErrorMessage: c.ErrorMessage,
		Attempts:     c.Attempts,
		LastAttempt:  formatTimePtr(c.LastAttempt),
		UpdatedAt:    formatTime(c.UpdatedAt),
	}
}

// FromCertificates converts a slice of record rows. The result is never nil so
// it encodes as an empty JSON array.
func FromCertificates(rows []records.Certificate) []Certificate {
	out := make([]Certificate, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromCertificate(row))
	}
	return out
}

// FromStatusCounts converts store statistics keyed by status.
func FromStatusCounts(counts map[records.Status]int) map[string]int {
	if len(counts) == 0 {
		return nil
	}
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	return out
}

// FromStageHealth converts stage health in the given order.
func FromStageHealth(health []stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromStagingDirs converts staging directory listings.
func FromStagingDirs(dirs []staging.DirInfo) []StagingDir {
	out := make([]StagingDir, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, StagingDir{Name: d.Name, ModTime: formatTime(d.ModTime), SizeBytes: d.Size})
	}
	return out
}
