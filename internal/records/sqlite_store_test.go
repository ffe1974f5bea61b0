package records_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"certissuer/internal/candidate"
	"certissuer/internal/records"
	"certissuer/internal/services"
)

func openStore(t *testing.T) *records.SQLiteStore {
	t.Helper()
	store, err := records.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "certificates.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRecord(student, course int64) candidate.Record {
	return candidate.Record{
		StudentID:   student,
		DisplayName: "Ana Pérez",
		CourseID:    course,
		CourseName:  "Primeros Auxilios",
		Score:       18,
		AssessedAt:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func completion(code string) records.Completion {
	return records.Completion{
		Code:       code,
		ArchiveURL: "https://drive.google.com/uc?export=download&id=" + code,
		ObjectID:   code,
		IssuedAt:   time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC),
		Issuer:     "Example Academy",
	}
}

func TestInsertCompletedThenExists(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	rec := sampleRecord(1, 10)

	exists, err := store.Exists(ctx, rec.Key())
	if err != nil || exists {
		t.Fatalf("expected no certificate yet, got exists=%v err=%v", exists, err)
	}
	if err := store.InsertCompleted(ctx, rec, completion("code-1")); err != nil {
		t.Fatalf("InsertCompleted: %v", err)
	}
	exists, err = store.Exists(ctx, rec.Key())
	if err != nil || !exists {
		t.Fatalf("expected certificate to exist, got exists=%v err=%v", exists, err)
	}

	cert, err := store.Get(ctx, rec.Key())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cert.Status != records.StatusCompleted || cert.Code != "code-1" || cert.Issuer != "Example Academy" {
		t.Fatalf("unexpected row: %#v", cert)
	}
	if cert.IssuedAt == nil || !cert.IssuedAt.Equal(completion("x").IssuedAt) {
		t.Fatalf("unexpected issued at: %v", cert.IssuedAt)
	}
	if cert.NationalID != "" {
		t.Fatalf("expected empty national id, got %q", cert.NationalID)
	}
}

func TestInsertCompletedRejectsDuplicates(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	rec := sampleRecord(1, 10)
	if err := store.InsertCompleted(ctx, rec, completion("code-1")); err != nil {
		t.Fatalf("InsertCompleted: %v", err)
	}

	err := store.InsertCompleted(ctx, rec, completion("code-2"))
	if !errors.Is(err, services.ErrUniqueViolation) {
		t.Fatalf("expected unique violation for completed pair, got %v", err)
	}

	err = store.InsertCompleted(ctx, sampleRecord(2, 10), completion("code-1"))
	if !errors.Is(err, services.ErrUniqueViolation) {
		t.Fatalf("expected unique violation for duplicate code, got %v", err)
	}
	if services.Kind(err) != "unique_constraint_violation" {
		t.Fatalf("unexpected kind %q", services.Kind(err))
	}

	cert, err := store.Get(ctx, rec.Key())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cert.Code != "code-1" {
		t.Fatalf("expected original code kept, got %q", cert.Code)
	}
}

func TestMarkFailedUpsertsAndIncrements(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	rec := sampleRecord(3, 11)

	for i := 0; i < 2; i++ {
		if err := store.MarkFailed(ctx, rec, "upload_error: timeout"); err != nil {
			t.Fatalf("MarkFailed: %v", err)
		}
	}
	attempts, err := store.Attempts(ctx, rec.Key())
	if err != nil {
		t.Fatalf("Attempts: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	cert, err := store.Get(ctx, rec.Key())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cert.Status != records.StatusFailed || cert.ErrorMessage != "upload_error: timeout" || cert.LastAttempt == nil {
		t.Fatalf("unexpected failed row: %#v", cert)
	}
	if cert.Code != "" {
		t.Fatalf("failed rows carry no code, got %q", cert.Code)
	}

	// A later success converts the failed row.
	if err := store.InsertCompleted(ctx, rec, completion("code-3")); err != nil {
		t.Fatalf("InsertCompleted after failure: %v", err)
	}
	if err := store.MarkFailed(ctx, rec, "late failure"); err != nil {
		t.Fatalf("MarkFailed on completed: %v", err)
	}
	cert, err = store.Get(ctx, rec.Key())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cert.Status != records.StatusCompleted || cert.ErrorMessage != "" {
		t.Fatalf("completed row must not be downgraded: %#v", cert)
	}
}

func TestMultipleFailedRowsWithoutCode(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		if err := store.MarkFailed(ctx, sampleRecord(i, 20), "data_error: bad"); err != nil {
			t.Fatalf("MarkFailed %d: %v", i, err)
		}
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[records.StatusFailed] != 3 {
		t.Fatalf("expected 3 failed rows, got %v", stats)
	}
}

func TestClaimSemantics(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	rec := sampleRecord(4, 12)

	ok, err := store.Claim(ctx, rec, time.Hour)
	if err != nil || !ok {
		t.Fatalf("expected first claim to succeed, got ok=%v err=%v", ok, err)
	}
	ok, err = store.Claim(ctx, rec, time.Hour)
	if err != nil || ok {
		t.Fatalf("expected fresh claim to block, got ok=%v err=%v", ok, err)
	}
	ok, err = store.Claim(ctx, rec, -time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected stale claim to be taken over, got ok=%v err=%v", ok, err)
	}

	if err := store.InsertCompleted(ctx, rec, completion("code-4")); err != nil {
		t.Fatalf("InsertCompleted: %v", err)
	}
	ok, err = store.Claim(ctx, rec, -time.Minute)
	if err != nil || ok {
		t.Fatalf("completed pair must not be claimable, got ok=%v err=%v", ok, err)
	}

	failed := sampleRecord(5, 12)
	if err := store.MarkFailed(ctx, failed, "signing_error: bad key"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	ok, err = store.Claim(ctx, failed, time.Hour)
	if err != nil || !ok {
		t.Fatalf("failed pair must be claimable, got ok=%v err=%v", ok, err)
	}
	attempts, _ := store.Attempts(ctx, failed.Key())
	if attempts != 1 {
		t.Fatalf("claim must keep attempt counter, got %d", attempts)
	}
}

func TestReleaseReturnsClaimToPending(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	rec := sampleRecord(6, 12)

	if ok, err := store.Claim(ctx, rec, time.Hour); err != nil || !ok {
		t.Fatalf("Claim: ok=%v err=%v", ok, err)
	}
	if err := store.Release(ctx, rec.Key()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	row, err := store.Get(ctx, rec.Key())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if row.Status != records.StatusPending || row.Attempts != 0 {
		t.Fatalf("expected pending row with no attempts, got %+v", row)
	}
	if ok, err := store.Claim(ctx, rec, time.Hour); err != nil || !ok {
		t.Fatalf("released pair must be claimable at once, got ok=%v err=%v", ok, err)
	}

	if err := store.InsertCompleted(ctx, rec, completion("code-6")); err != nil {
		t.Fatalf("InsertCompleted: %v", err)
	}
	if err := store.Release(ctx, rec.Key()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if row, _ := store.Get(ctx, rec.Key()); row.Status != records.StatusCompleted {
		t.Fatalf("release must not touch completed rows, got %s", row.Status)
	}
}

func TestListAndResetFailed(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	if err := store.InsertCompleted(ctx, sampleRecord(1, 1), completion("c1")); err != nil {
		t.Fatalf("InsertCompleted: %v", err)
	}
	for _, rec := range []candidate.Record{sampleRecord(2, 1), sampleRecord(3, 1)} {
		if err := store.MarkFailed(ctx, rec, "upload_error: boom"); err != nil {
			t.Fatalf("MarkFailed: %v", err)
		}
	}

	failed, err := store.List(ctx, records.Filter{Statuses: []records.Status{records.StatusFailed}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(failed) != 2 {
		t.Fatalf("expected 2 failed rows, got %d", len(failed))
	}
	all, err := store.List(ctx, records.Filter{Limit: 10})
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 rows, got %d (err=%v)", len(all), err)
	}

	n, err := store.ResetFailed(ctx, candidate.Key{StudentID: 2, CourseID: 1})
	if err != nil || n != 1 {
		t.Fatalf("expected one row reset, got %d (err=%v)", n, err)
	}
	if attempts, _ := store.Attempts(ctx, candidate.Key{StudentID: 2, CourseID: 1}); attempts != 0 {
		t.Fatalf("expected attempts reset, got %d", attempts)
	}
	n, err = store.ResetFailed(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected remaining failed row reset, got %d (err=%v)", n, err)
	}
	stats, _ := store.Stats(ctx)
	if stats[records.StatusPending] != 2 || stats[records.StatusCompleted] != 1 {
		t.Fatalf("unexpected stats after reset: %v", stats)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := openStore(t)
	if _, err := store.Get(context.Background(), candidate.Key{StudentID: 9, CourseID: 9}); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "certificates.db")
	ctx := context.Background()
	store, err := records.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := store.InsertCompleted(ctx, sampleRecord(1, 1), completion("c1")); err != nil {
		t.Fatalf("InsertCompleted: %v", err)
	}
	_ = store.Close()

	reopened, err := records.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if ok, _ := reopened.Exists(ctx, candidate.Key{StudentID: 1, CourseID: 1}); !ok {
		t.Fatal("expected row to survive reopen")
	}
}
