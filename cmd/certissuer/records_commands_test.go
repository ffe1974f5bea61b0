package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"certissuer/internal/api"
	"certissuer/internal/records"
	"certissuer/internal/report"
	"certissuer/internal/testsupport"
)

func seedRecords(t *testing.T, env *cliTestEnv) {
	t.Helper()
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, env.cfg)

	failed := testsupport.Candidate(42, 7, "Primeros Auxilios")
	if err := store.MarkFailed(ctx, failed, "upload_error: quota exceeded"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	done := testsupport.Candidate(43, 7, "Primeros Auxilios")
	done.DisplayName = "Luis Soto"
	if err := store.InsertCompleted(ctx, done, records.Completion{
		Code:       "6f1c2d3e-0000-4000-8000-000000000001",
		ArchiveURL: "https://drive.example/file/1",
		Issuer:     "Example Academy",
	}); err != nil {
		t.Fatalf("InsertCompleted: %v", err)
	}
}

func TestRecordsListFiltersByStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	seedRecords(t, env)

	out, _, err := runCLI(t, []string{"records", "list", "--status", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("records list: %v", err)
	}
	requireContains(t, out, "Ana Pérez")
	requireContains(t, out, "upload_error: quota exceeded")

	out, _, err = runCLI(t, []string{"--json", "records", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("records list --json: %v", err)
	}
	var rows []api.Certificate
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	if _, _, err := runCLI(t, []string{"records", "list", "--status", "lost"}, env.configPath); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestRecordsRetryResetsFailedRow(t *testing.T) {
	env := setupCLITestEnv(t)
	seedRecords(t, env)

	if _, _, err := runCLI(t, []string{"records", "retry"}, env.configPath); err == nil {
		t.Fatal("expected retry without pairs to fail")
	}
	if _, _, err := runCLI(t, []string{"records", "retry", "42-7"}, env.configPath); err == nil {
		t.Fatal("expected malformed pair to fail")
	}

	out, _, err := runCLI(t, []string{"records", "retry", "42:7"}, env.configPath)
	if err != nil {
		t.Fatalf("records retry: %v", err)
	}
	requireContains(t, out, "Reset 1 failed")

	out, _, err = runCLI(t, []string{"records", "retry", "--all"}, env.configPath)
	if err != nil {
		t.Fatalf("records retry --all: %v", err)
	}
	requireContains(t, out, "Reset 0 failed")
}

func TestRecordsExportWritesWorkbook(t *testing.T) {
	env := setupCLITestEnv(t)
	seedRecords(t, env)
	target := filepath.Join(t.TempDir(), "certificados.xlsx")

	out, _, err := runCLI(t, []string{"records", "export", "--output", target}, env.configPath)
	if err != nil {
		t.Fatalf("records export: %v", err)
	}
	requireContains(t, out, "Exported 1 certificate(s)")

	f, err := excelize.OpenFile(target)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(report.SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	// Title, header, one completed row.
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
}
