package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"certissuer/internal/api"
)

func renderBatchSummary(out io.Writer, summary api.BatchSummary, colorize bool) {
	printSection(out, "Batch "+summary.RunID, colorize)
	if len(summary.Candidates) > 0 {
		fmt.Fprintln(out, renderTable(batchColumns, batchRows(summary.Candidates, colorize)))
	} else {
		fmt.Fprintln(out, "No eligible candidates.")
	}

	parts := []string{
		fmt.Sprintf("%d completed", summary.Completed),
		fmt.Sprintf("%d failed", summary.Failed),
		fmt.Sprintf("%d skipped", summary.Skipped),
	}
	if summary.Truncated > 0 {
		parts = append(parts, fmt.Sprintf("%d deferred by batch limit", summary.Truncated))
	}
	if summary.Filtered > 0 {
		parts = append(parts, fmt.Sprintf("%d already handled", summary.Filtered))
	}
	fmt.Fprintln(out, renderStatusLine("Result", batchKind(summary), strings.Join(parts, ", "), colorize))
	fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, (time.Duration(summary.DurationMS)*time.Millisecond).String(), colorize))
	if summary.Canceled {
		fmt.Fprintln(out, renderStatusLine("Canceled", statusWarn, "batch stopped before all candidates ran", colorize))
	}
}
