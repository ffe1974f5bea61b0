package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"certissuer/internal/apiclient"
	"certissuer/internal/runlock"
)

// Exit codes let cron wrappers tell a busy run lock from real failures.
const (
	exitFailure       = 1
	exitBatchBusy     = 2
	exitBatchHadFails = 3
)

// batchFailedError reports a batch that ran but left failed candidates.
type batchFailedError struct {
	failed int
}

func (e *batchFailedError) Error() string {
	return fmt.Sprintf("%d candidate(s) failed", e.failed)
}

func exitCode(err error) int {
	var failed *batchFailedError
	switch {
	case errors.Is(err, runlock.ErrBatchInProgress), errors.Is(err, apiclient.ErrBatchInProgress):
		return exitBatchBusy
	case errors.As(err, &failed):
		return exitBatchHadFails
	default:
		return exitFailure
	}
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}
