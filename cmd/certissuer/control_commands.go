package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"certissuer/internal/api"
	"certissuer/internal/apiclient"
	"certissuer/internal/scheduler"
)

// triggerTimeout bounds how long `trigger` waits for the batch it started.
const triggerTimeout = 2 * time.Hour

func newTriggerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Ask the running daemon to run a batch now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient(triggerTimeout)
			if err != nil {
				return wrapAPIError(err, cfg.Daemon.APIBind)
			}
			summary, err := client.TriggerBatch(cmd.Context())
			if err != nil {
				if errors.Is(err, apiclient.ErrBatchInProgress) {
					return fmt.Errorf("daemon: %w", err)
				}
				return wrapAPIError(err, cfg.Daemon.APIBind)
			}
			return emit(cmd, ctx, summary, func(out io.Writer, colorize bool) {
				renderBatchSummary(out, summary, colorize)
			})
		},
	}
}

func newNextRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "next-run",
		Short: "Show when the next scheduled batch fires",
		Long: `Show when the next scheduled batch fires.

The running daemon is asked first. When it is not reachable the time is
computed from the configured schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			resp, err := fetchSchedule(cmd.Context(), ctx)
			reached := err == nil
			if err != nil {
				if !apiclient.IsAPIUnavailable(err) {
					return wrapAPIError(err, cfg.Daemon.APIBind)
				}
				next, calcErr := scheduler.NextAfter(cfg.Schedule.Spec, cfg.Schedule.Timezone, time.Now())
				if calcErr != nil {
					return calcErr
				}
				resp = api.ScheduleResponse{
					Spec:     cfg.Schedule.Spec,
					Timezone: cfg.Schedule.Timezone,
					NextRun:  next.Format(time.RFC3339),
				}
			}
			return emit(cmd, ctx, resp, func(out io.Writer, colorize bool) {
				renderSchedule(out, resp, reached, colorize)
			})
		},
	}
}

func renderSchedule(out io.Writer, resp api.ScheduleResponse, reached, colorize bool) {
	daemonKind, daemonMsg := statusWarn, "not running; computed from config"
	if reached {
		daemonKind, daemonMsg = statusOK, "reachable"
		if resp.Running {
			daemonMsg = "batch in progress"
		}
	}
	fmt.Fprintln(out, renderStatusLine("Daemon", daemonKind, daemonMsg, colorize))
	fmt.Fprintln(out, renderStatusLine("Schedule", statusInfo, resp.Spec, colorize))
	fmt.Fprintln(out, renderStatusLine("Next run", statusInfo, resp.NextRun, colorize))
	if last := resp.LastRun; last != nil {
		msg := fmt.Sprintf("%s (%d completed, %d failed, %d skipped)", last.FinishedAt, last.Completed, last.Failed, last.Skipped)
		fmt.Fprintln(out, renderStatusLine("Last run", batchKind(*last), msg, colorize))
	}
}

func fetchSchedule(cmdCtx context.Context, ctx *commandContext) (api.ScheduleResponse, error) {
	client, err := ctx.apiClient(apiTimeout)
	if err != nil {
		return api.ScheduleResponse{}, err
	}
	return client.Schedule(cmdCtx)
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and stage readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient(apiTimeout)
			if err != nil {
				return wrapAPIError(err, cfg.Daemon.APIBind)
			}
			health, err := client.Health(cmd.Context())
			if err != nil {
				return wrapAPIError(err, cfg.Daemon.APIBind)
			}
			if err := emit(cmd, ctx, health, func(out io.Writer, colorize bool) {
				renderHealth(out, health, colorize)
			}); err != nil {
				return err
			}
			if !health.Ready {
				return fmt.Errorf("one or more stages are not ready")
			}
			return nil
		},
	}
}

func renderHealth(out io.Writer, health api.HealthResponse, colorize bool) {
	printSection(out, "Daemon", colorize)
	fmt.Fprintln(out, renderStatusLine("PID", statusInfo, fmt.Sprintf("%d", health.PID), colorize))
	fmt.Fprintln(out)
	printSection(out, "Stages", colorize)
	for _, s := range health.Stages {
		kind, msg := statusOK, "ready"
		if !s.Ready {
			kind, msg = statusError, s.Detail
		}
		fmt.Fprintln(out, renderStatusLine(s.Name, kind, msg, colorize))
	}
	if len(health.Staging) == 0 {
		return
	}
	fmt.Fprintln(out)
	printSection(out, "Staging leftovers", colorize)
	fmt.Fprintln(out, renderTable(stagingColumns, stagingRows(health.Staging)))
}
