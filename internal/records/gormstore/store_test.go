package gormstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"certissuer/internal/candidate"
	"certissuer/internal/logging"
	"certissuer/internal/records"
	"certissuer/internal/records/gormstore"
	"certissuer/internal/services"
)

func openStore(t *testing.T) *gormstore.Store {
	t.Helper()
	store, err := gormstore.Open(context.Background(), gormstore.Options{
		Dialect: gormstore.DialectSQLite,
		DSN:     filepath.Join(t.TempDir(), "records.db"),
		Logger:  logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func rec(student, course int64) candidate.Record {
	id := "70123456"
	return candidate.Record{
		StudentID:   student,
		DisplayName: "Ana Pérez",
		NationalID:  &id,
		CourseID:    course,
		CourseName:  "Primeros Auxilios",
		Score:       18.5,
		AssessedAt:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func done(code string) records.Completion {
	return records.Completion{
		Code:       code,
		ArchiveURL: "https://example.org/" + code,
		ObjectID:   code,
		IssuedAt:   time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		Issuer:     "Example Academy",
	}
}

func TestOpenRejectsUnknownDialect(t *testing.T) {
	if _, err := gormstore.Open(context.Background(), gormstore.Options{Dialect: "oracle"}); err == nil {
		t.Fatal("expected error for unknown dialect")
	}
}

func TestCompletedLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	r := rec(1, 7)

	ok, err := store.Claim(ctx, r, time.Hour)
	if err != nil || !ok {
		t.Fatalf("expected claim, got ok=%v err=%v", ok, err)
	}
	if ok, _ := store.Claim(ctx, r, time.Hour); ok {
		t.Fatal("expected second claim to be refused")
	}
	if err := store.InsertCompleted(ctx, r, done("code-1")); err != nil {
		t.Fatalf("InsertCompleted: %v", err)
	}
	exists, err := store.Exists(ctx, r.Key())
	if err != nil || !exists {
		t.Fatalf("expected completed row, got %v %v", exists, err)
	}
	cert, err := store.Get(ctx, r.Key())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cert.Code != "code-1" || cert.NationalID != "70123456" || cert.Score != 18.5 {
		t.Fatalf("unexpected row: %#v", cert)
	}
	if cert.IssuedAt == nil || cert.IssuedAt.Format("2006-01-02") != "2024-03-02" {
		t.Fatalf("unexpected issuance date: %v", cert.IssuedAt)
	}

	if err := store.InsertCompleted(ctx, r, done("code-2")); !errors.Is(err, services.ErrUniqueViolation) {
		t.Fatalf("expected unique violation for completed pair, got %v", err)
	}
	if err := store.InsertCompleted(ctx, rec(2, 7), done("code-1")); !errors.Is(err, services.ErrUniqueViolation) {
		t.Fatalf("expected unique violation for duplicate code, got %v", err)
	}
	if err := store.MarkFailed(ctx, r, "late"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if cert, _ := store.Get(ctx, r.Key()); cert.Status != records.StatusCompleted {
		t.Fatalf("completed row downgraded to %s", cert.Status)
	}
}

func TestMarkFailedAndReset(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	r := rec(3, 8)
	for i := 0; i < 3; i++ {
		if err := store.MarkFailed(ctx, r, "upload_error: timeout"); err != nil {
			t.Fatalf("MarkFailed: %v", err)
		}
	}
	if err := store.MarkFailed(ctx, rec(4, 8), "data_error: bad"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	attempts, err := store.Attempts(ctx, r.Key())
	if err != nil || attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d (err=%v)", attempts, err)
	}

	failed, err := store.List(ctx, records.Filter{Statuses: []records.Status{records.StatusFailed}})
	if err != nil || len(failed) != 2 {
		t.Fatalf("expected 2 failed rows, got %d (err=%v)", len(failed), err)
	}

	n, err := store.ResetFailed(ctx, r.Key())
	if err != nil || n != 1 {
		t.Fatalf("expected 1 reset, got %d (err=%v)", n, err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[records.StatusPending] != 1 || stats[records.StatusFailed] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
	if attempts, _ := store.Attempts(ctx, r.Key()); attempts != 0 {
		t.Fatalf("expected attempts reset, got %d", attempts)
	}
	if _, err := store.Get(ctx, candidate.Key{StudentID: 99, CourseID: 99}); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReleaseKeepsAttempts(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	r := rec(5, 8)
	if err := store.MarkFailed(ctx, r, "upload_error: timeout"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if ok, err := store.Claim(ctx, r, time.Hour); err != nil || !ok {
		t.Fatalf("Claim: ok=%v err=%v", ok, err)
	}
	if err := store.Release(ctx, r.Key()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	cert, err := store.Get(ctx, r.Key())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cert.Status != records.StatusPending || cert.Attempts != 1 {
		t.Fatalf("expected pending row keeping one attempt, got %+v", cert)
	}
}
