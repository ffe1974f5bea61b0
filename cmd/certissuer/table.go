package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"certissuer/internal/api"
	"certissuer/internal/records"
)

// detailWidth wraps the code/error column; failure messages can be long.
const detailWidth = 48

type column struct {
	header   string
	align    text.Align
	maxWidth int
}

var (
	batchColumns = []column{
		{header: "Student", align: text.AlignRight},
		{header: "Course ID", align: text.AlignRight},
		{header: "Course"},
		{header: "Outcome"},
		{header: "State"},
		{header: "Code / Error", maxWidth: detailWidth},
	}
	recordColumns = []column{
		{header: "Student", align: text.AlignRight},
		{header: "Name"},
		{header: "Course"},
		{header: "Status"},
		{header: "Attempts", align: text.AlignRight},
		{header: "Code / Error", maxWidth: detailWidth},
	}
	stagingColumns = []column{
		{header: "Directory"},
		{header: "Modified"},
		{header: "Bytes", align: text.AlignRight},
	}
)

func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		header[i] = col.header
		align := col.align
		if align == text.AlignDefault {
			align = text.AlignLeft
		}
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    col.maxWidth,
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

// batchRows shows the issued code for completed candidates and the failure
// message otherwise.
func batchRows(candidates []api.CandidateOutcome, colorize bool) [][]string {
	rows := make([][]string, 0, len(candidates))
	for _, c := range candidates {
		detail := c.Code
		if c.Error != "" {
			detail = c.Error
		}
		rows = append(rows, []string{
			strconv.FormatInt(c.StudentID, 10),
			strconv.FormatInt(c.CourseID, 10),
			c.Course,
			paint(c.Outcome, outcomeKind(c.Outcome), colorize),
			c.State,
			detail,
		})
	}
	return rows
}

func recordRows(certs []records.Certificate, colorize bool) [][]string {
	rows := make([][]string, 0, len(certs))
	for _, cert := range certs {
		detail := cert.Code
		if cert.Status == records.StatusFailed {
			detail = cert.ErrorMessage
		}
		rows = append(rows, []string{
			strconv.FormatInt(cert.StudentID, 10),
			cert.StudentName,
			cert.CourseName,
			paint(string(cert.Status), recordKind(cert.Status), colorize),
			strconv.Itoa(cert.Attempts),
			detail,
		})
	}
	return rows
}

func stagingRows(dirs []api.StagingDir) [][]string {
	rows := make([][]string, 0, len(dirs))
	for _, d := range dirs {
		rows = append(rows, []string{d.Name, d.ModTime, strconv.FormatInt(d.SizeBytes, 10)})
	}
	return rows
}
