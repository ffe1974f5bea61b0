package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"certissuer/internal/api"
	"certissuer/internal/candidate"
	"certissuer/internal/config"
	"certissuer/internal/logging"
	"certissuer/internal/records"
	"certissuer/internal/recordsaccess"
	"certissuer/internal/report"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"certificates"},
		Short:   "Inspect and maintain the certificate record store",
	}
	cmd.AddCommand(newRecordsListCommand(ctx))
	cmd.AddCommand(newRecordsExportCommand(ctx))
	cmd.AddCommand(newRecordsRetryCommand(ctx))
	return cmd
}

// withStore opens the configured record store for the duration of fn.
func withStore(cmdCtx context.Context, ctx *commandContext, fn func(*config.Config, records.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	session, err := recordsaccess.Open(cmdCtx, cfg, logging.NewNop())
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(cfg, session.Store)
}

func parseStatuses(values []string) ([]records.Status, error) {
	var out []records.Status
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			status, ok := records.ParseStatus(part)
			if !ok {
				return nil, fmt.Errorf("unknown status %q", part)
			}
			out = append(out, status)
		}
	}
	return out, nil
}

func newRecordsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var studentID, courseID int64
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List certificate rows, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseStatuses(statuses)
			if err != nil {
				return err
			}
			filter := records.Filter{Statuses: parsed, StudentID: studentID, CourseID: courseID, Limit: limit}
			return withStore(cmd.Context(), ctx, func(_ *config.Config, store records.Store) error {
				rows, err := store.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				return emit(cmd, ctx, api.FromCertificates(rows), func(out io.Writer, colorize bool) {
					if len(rows) == 0 {
						fmt.Fprintln(out, "No certificate records match.")
						return
					}
					fmt.Fprintln(out, renderTable(recordColumns, recordRows(rows, colorize)))
				})
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (pending, processing, completed, failed)")
	cmd.Flags().Int64Var(&studentID, "student", 0, "Filter by student id")
	cmd.Flags().Int64Var(&courseID, "course", 0, "Filter by course id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum rows to show")
	return cmd
}

func newRecordsExportCommand(ctx *commandContext) *cobra.Command {
	var output string
	var statuses []string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export certificate rows to an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(output)
			if target == "" {
				return fmt.Errorf("--output is required")
			}
			expanded, err := config.ExpandPath(target)
			if err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}
			parsed, err := parseStatuses(statuses)
			if err != nil {
				return err
			}
			if len(parsed) == 0 {
				parsed = []records.Status{records.StatusCompleted}
			}
			return withStore(cmd.Context(), ctx, func(_ *config.Config, store records.Store) error {
				rows, err := store.List(cmd.Context(), records.Filter{Statuses: parsed})
				if err != nil {
					return err
				}
				f, err := os.Create(expanded)
				if err != nil {
					return fmt.Errorf("create %s: %w", expanded, err)
				}
				if err := report.Write(f, rows, time.Now()); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("close %s: %w", expanded, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d certificate(s) to %s\n", len(rows), expanded)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination .xlsx file")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Statuses to include (default completed)")
	return cmd
}

func newRecordsRetryCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "retry [student:course...]",
		Short: "Reset failed rows so the next batch attempts them again",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return fmt.Errorf("name at least one student:course pair or pass --all")
			}
			if len(args) > 0 && all {
				return fmt.Errorf("--all cannot be combined with explicit pairs")
			}
			keys := make([]candidate.Key, 0, len(args))
			for _, arg := range args {
				key, err := candidate.ParseKey(arg)
				if err != nil {
					return err
				}
				keys = append(keys, key)
			}
			return withStore(cmd.Context(), ctx, func(_ *config.Config, store records.Store) error {
				n, err := store.ResetFailed(cmd.Context(), keys...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d failed certificate(s)\n", n)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Reset every failed row")
	return cmd
}
