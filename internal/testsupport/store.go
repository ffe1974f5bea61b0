package testsupport

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"certissuer/internal/candidate"
	"certissuer/internal/config"
	"certissuer/internal/records"
)

// MustOpenStore opens the SQLite record store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.SQLiteStore {
	t.Helper()

	store, err := records.OpenSQLite(context.Background(), cfg.Records.SQLitePath)
	if err != nil {
		t.Fatalf("records.OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Candidate returns a passing candidate for the given pair and course name.
func Candidate(studentID, courseID int64, courseName string) candidate.Record {
	return candidate.Record{
		StudentID:   studentID,
		DisplayName: "Ana Pérez",
		CourseID:    courseID,
		CourseName:  courseName,
		Score:       18,
		AssessedAt:  time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
	}
}

// WriteCandidates replaces the file feed at cfg.Feed.FilePath with recs.
func WriteCandidates(t testing.TB, cfg *config.Config, recs ...candidate.Record) {
	t.Helper()
	if recs == nil {
		recs = []candidate.Record{}
	}
	data, err := json.Marshal(recs)
	if err != nil {
		t.Fatalf("marshal candidates: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Feed.FilePath), 0o755); err != nil {
		t.Fatalf("mkdir feed dir: %v", err)
	}
	if err := os.WriteFile(cfg.Feed.FilePath, data, 0o644); err != nil {
		t.Fatalf("write candidates: %v", err)
	}
}
