package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"certissuer/internal/pipeline"
	"certissuer/internal/records"
	"certissuer/internal/stage"
)

func TestFromBatchResultCopiesOutcomes(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("PET", -5*3600))
	res := pipeline.BatchResult{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Completed:  1,
		Failed:     1,
		Candidates: []pipeline.CandidateResult{
			{StudentID: 1, CourseID: 7, Outcome: pipeline.OutcomeCompleted, State: stage.StateDone, Code: "abc"},
			{StudentID: 2, CourseID: 7, Outcome: pipeline.OutcomeFailed, State: stage.StateFailed, ErrorKind: "config_error", Duration: 20 * time.Millisecond},
		},
	}
	got := FromBatchResult(res)
	if got.StartedAt != "2024-03-01T15:00:00.000Z" {
		t.Fatalf("expected UTC timestamp, got %q", got.StartedAt)
	}
	if got.DurationMS != 1500 {
		t.Fatalf("unexpected duration %d", got.DurationMS)
	}
	if len(got.Candidates) != 2 || got.Candidates[1].ErrorKind != "config_error" || got.Candidates[1].DurationMS != 20 {
		t.Fatalf("unexpected candidates %+v", got.Candidates)
	}
	if got.Candidates[0].State != "done" {
		t.Fatalf("unexpected state %q", got.Candidates[0].State)
	}
}

func TestFromCertificatesEncodesEmptyArray(t *testing.T) {
	data, err := json.Marshal(CertificateListResponse{Items: FromCertificates(nil)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"items":[]`) {
		t.Fatalf("expected empty array, got %s", data)
	}
}

func TestFromCertificateOmitsMissingTimes(t *testing.T) {
	got := FromCertificate(records.Certificate{StudentID: 4, Status: records.StatusFailed, Attempts: 2})
	if got.IssuedAt != "" || got.LastAttempt != "" || got.UpdatedAt != "" {
		t.Fatalf("expected empty timestamps, got %+v", got)
	}
	if got.Status != "failed" || got.Attempts != 2 {
		t.Fatalf("unexpected row %+v", got)
	}
}
