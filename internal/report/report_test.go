package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"certissuer/internal/records"
	"certissuer/internal/report"
)

func TestWriteProducesHeaderAndRows(t *testing.T) {
	issued := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	rows := []records.Certificate{
		{NationalID: "70123456", Code: "c-1", StudentName: "Ana Pérez", CourseName: "Primeros Auxilios", Score: 18, IssuedAt: &issued, ArchiveURL: "https://files.example/1", Status: records.StatusCompleted},
		{StudentName: "Luis Gómez", CourseName: "Cocina", Status: records.StatusFailed, Attempts: 3, ErrorMessage: "config_error: course not mapped"},
	}
	var buf bytes.Buffer
	if err := report.Write(&buf, rows, issued); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != report.SheetName {
		t.Fatalf("unexpected sheets %v", sheets)
	}
	got, err := f.GetRows(report.SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected title, header and two rows, got %d", len(got))
	}
	if got[1][0] != "DNI" || got[1][1] != "Código" {
		t.Fatalf("unexpected header %v", got[1])
	}
	if got[2][0] != "70123456" || got[2][5] != "01/03/2024 10:30" || got[2][8] != "completed" {
		t.Fatalf("unexpected first row %v", got[2])
	}
	if got[3][8] != "failed" || got[3][9] != "3" {
		t.Fatalf("unexpected second row %v", got[3])
	}
	if ok, link, err := f.GetCellHyperLink(report.SheetName, "H3"); err != nil || !ok || link != "https://files.example/1" {
		t.Fatalf("expected archive hyperlink, got %v %q %v", ok, link, err)
	}
}

func TestWriteEmptyRows(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Write(&buf, nil, time.Now()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected a workbook even without rows")
	}
}
