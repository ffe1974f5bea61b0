package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"certissuer/internal/api"
	"certissuer/internal/config"
	"certissuer/internal/daemonrun"
	"certissuer/internal/runlock"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var feedFile string
	var limit int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one batch in this process and exit",
		Long: `Run one batch in this process and exit.

The batch takes the same run lock as the daemon, so it refuses to start
while a scheduled or manual batch is in progress.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if path := strings.TrimSpace(feedFile); path != "" {
				expanded, err := config.ExpandPath(path)
				if err != nil {
					return fmt.Errorf("resolve feed file: %w", err)
				}
				cfg.Feed.Source = config.FeedFile
				cfg.Feed.FilePath = expanded
			}
			if limit != 0 {
				if limit < 1 || limit > config.MaxBatchLimit {
					return fmt.Errorf("--limit must be between 1 and %d", config.MaxBatchLimit)
				}
				cfg.Pipeline.BatchLimit = limit
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			logger, err := ctx.logger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			rt, err := daemonrun.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.Pipeline.RunOnce(cmd.Context())
			if err != nil {
				if errors.Is(err, runlock.ErrBatchInProgress) {
					return fmt.Errorf("%w; try again when it finishes", err)
				}
				return err
			}
			summary := api.FromBatchResult(res)
			if err := emit(cmd, ctx, summary, func(out io.Writer, colorize bool) {
				renderBatchSummary(out, summary, colorize)
			}); err != nil {
				return err
			}
			if summary.Failed > 0 {
				return &batchFailedError{failed: summary.Failed}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&feedFile, "feed-file", "", "Read candidates from this JSON file instead of the configured feed")
	cmd.Flags().IntVar(&limit, "limit", 0, "Override pipeline.batch_limit for this run")
	return cmd
}
