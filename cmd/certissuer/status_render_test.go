package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"certissuer/internal/api"
	"certissuer/internal/apiclient"
	"certissuer/internal/pipeline"
	"certissuer/internal/records"
	"certissuer/internal/runlock"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Result", statusError, "1 failed", false)
	want := fmt.Sprintf("  %-*s %s", statusLabelWidth, "Result:", "[ERROR] 1 failed")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestOutcomeAndRecordKinds(t *testing.T) {
	outcomes := map[pipeline.Outcome]statusKind{
		pipeline.OutcomeCompleted:        statusOK,
		pipeline.OutcomeFailed:           statusError,
		pipeline.OutcomeInterrupted:      statusWarn,
		pipeline.OutcomeDuplicate:        statusWarn,
		pipeline.OutcomeSkippedCompleted: statusInfo,
	}
	for outcome, want := range outcomes {
		if got := outcomeKind(string(outcome)); got != want {
			t.Errorf("outcomeKind(%s) = %s, want %s", outcome, got.label(), want.label())
		}
	}
	if recordKind(records.StatusFailed) != statusError || recordKind(records.StatusPending) != statusInfo {
		t.Fatal("unexpected record status severity")
	}
	if batchKind(api.BatchSummary{Canceled: true}) != statusWarn || batchKind(api.BatchSummary{Failed: 1, Canceled: true}) != statusError {
		t.Fatal("unexpected batch severity")
	}
}

func TestRecordRowsShowErrorForFailedRows(t *testing.T) {
	rows := recordRows([]records.Certificate{
		{StudentID: 4, StudentName: "Ana Pérez", CourseName: "Primeros Auxilios", Status: records.StatusCompleted, Code: "abc"},
		{StudentID: 5, StudentName: "Eva Soto", CourseName: "Primeros Auxilios", Status: records.StatusFailed, Attempts: 2, Code: "stale", ErrorMessage: "upload_error: quota exceeded"},
	}, false)
	if rows[0][5] != "abc" || rows[1][5] != "upload_error: quota exceeded" || rows[1][4] != "2" {
		t.Fatalf("unexpected rows %v", rows)
	}
	out := renderTable(recordColumns, rows)
	for _, want := range []string{"Attempts", "Ana Pérez", "failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected table to contain %q:\n%s", want, out)
		}
	}
}

func TestWriteJSONKeepsArchiveLinks(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	if err := writeJSON(cmd, map[string]string{"url": "https://drive.google.com/uc?export=download&id=x"}); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	if !strings.Contains(buf.String(), "export=download&id=x") {
		t.Fatalf("expected literal ampersand, got %s", buf.String())
	}
}

func TestExitCodes(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"local lock": {fmt.Errorf("%w; try again", runlock.ErrBatchInProgress), exitBatchBusy},
		"daemon":     {fmt.Errorf("daemon: %w", apiclient.ErrBatchInProgress), exitBatchBusy},
		"failures":   {&batchFailedError{failed: 2}, exitBatchHadFails},
		"other":      {errors.New("boom"), exitFailure},
	}
	for name, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Errorf("%s: exitCode = %d, want %d", name, got, tc.want)
		}
	}
}
