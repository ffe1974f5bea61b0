package recordsaccess_test

import (
	"context"
	"path/filepath"
	"testing"

	"certissuer/internal/candidate"
	"certissuer/internal/config"
	"certissuer/internal/logging"
	"certissuer/internal/recordsaccess"
)

func TestOpenSQLiteBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Records.Backend = config.RecordsSQLite
	cfg.Records.SQLitePath = filepath.Join(t.TempDir(), "nested", "certificates.db")

	session, err := recordsaccess.Open(context.Background(), &cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer session.Close()

	if session.Backend != config.RecordsSQLite {
		t.Fatalf("unexpected backend %q", session.Backend)
	}
	exists, err := session.Store.Exists(context.Background(), candidate.Key{StudentID: 1, CourseID: 1})
	if err != nil || exists {
		t.Fatalf("expected empty store, got exists=%v err=%v", exists, err)
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Records.Backend = "dynamo"
	if _, err := recordsaccess.Open(context.Background(), &cfg, logging.NewNop()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
