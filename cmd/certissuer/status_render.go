package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"certissuer/internal/api"
	"certissuer/internal/pipeline"
	"certissuer/internal/records"
)

// statusKind is the severity used to color labels, outcomes, and row states.
type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const statusLabelWidth = 16

var statusColors = map[statusKind]text.Colors{
	statusInfo:  {text.FgBlue},
	statusOK:    {text.FgGreen},
	statusWarn:  {text.FgYellow},
	statusError: {text.FgRed},
}

func (k statusKind) label() string {
	switch k {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// paint colors s for kind when colorize is set.
func paint(s string, kind statusKind, colorize bool) string {
	if !colorize || s == "" {
		return s
	}
	return statusColors[kind].Sprint(s)
}

// outcomeKind maps a candidate outcome from a batch summary to a severity.
func outcomeKind(outcome string) statusKind {
	switch pipeline.Outcome(outcome) {
	case pipeline.OutcomeCompleted:
		return statusOK
	case pipeline.OutcomeFailed:
		return statusError
	case pipeline.OutcomeDuplicate, pipeline.OutcomeSkippedExhausted, pipeline.OutcomeInterrupted:
		return statusWarn
	default:
		return statusInfo
	}
}

// recordKind maps a stored certificate status to a severity.
func recordKind(status records.Status) statusKind {
	switch status {
	case records.StatusCompleted:
		return statusOK
	case records.StatusFailed:
		return statusError
	case records.StatusProcessing:
		return statusWarn
	default:
		return statusInfo
	}
}

// batchKind is the overall severity of a batch: any failure is an error, a
// canceled batch is a warning.
func batchKind(summary api.BatchSummary) statusKind {
	switch {
	case summary.Failed > 0:
		return statusError
	case summary.Canceled:
		return statusWarn
	default:
		return statusOK
	}
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	status := "[" + kind.label() + "]"
	if message != "" {
		status += " " + message
	}
	return paint(fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", status), kind, colorize)
}

func printSection(out io.Writer, title string, colorize bool) {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	fmt.Fprintln(out, paint(line, statusInfo, colorize))
	fmt.Fprintln(out, paint(strings.Repeat("-", len(line)), statusInfo, colorize))
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
