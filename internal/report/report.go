// Package report exports certificate records to an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"certissuer/internal/records"
)

// SheetName is the worksheet holding the certificate rows.
const SheetName = "Certificados"

var columns = []struct {
	title string
	width float64
}{
	{"DNI", 14},
	{"Código", 38},
	{"Estudiante", 30},
	{"Curso", 28},
	{"Nota", 8},
	{"Fecha de emisión", 20},
	{"Emisor", 22},
	{"Enlace", 50},
	{"Estado", 12},
	{"Intentos", 10},
	{"Error", 50},
}

// Write renders rows as a workbook to w. generatedAt appears in the title row.
func Write(w io.Writer, rows []records.Certificate, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	for i, col := range columns {
		name := colName(i)
		if err := f.SetColWidth(SheetName, name, name, col.width); err != nil {
			return err
		}
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 13},
	})
	if err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}

	_ = f.SetCellValue(SheetName, "A1", fmt.Sprintf("Certificados emitidos (generado %s)", generatedAt.Format("02/01/2006 15:04")))
	_ = f.MergeCell(SheetName, "A1", cell(colName(len(columns)-1), 1))
	_ = f.SetCellStyle(SheetName, "A1", "A1", titleStyle)

	for i, col := range columns {
		_ = f.SetCellValue(SheetName, cell(colName(i), 2), col.title)
	}
	_ = f.SetCellStyle(SheetName, "A2", cell(colName(len(columns)-1), 2), headerStyle)

	row := 3
	for _, rec := range rows {
		issued := ""
		if rec.IssuedAt != nil {
			issued = rec.IssuedAt.Format("02/01/2006 15:04")
		}
		values := []any{
			rec.NationalID,
			rec.Code,
			rec.StudentName,
			rec.CourseName,
			rec.Score,
			issued,
			rec.Issuer,
			rec.ArchiveURL,
			string(rec.Status),
			rec.Attempts,
			rec.ErrorMessage,
		}
		if err := f.SetSheetRow(SheetName, cell("A", row), &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		if rec.ArchiveURL != "" {
			_ = f.SetCellHyperLink(SheetName, cell(colName(7), row), rec.ArchiveURL, "External")
		}
		row++
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 2, TopLeftCell: "A3", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
