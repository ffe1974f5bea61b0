// Package daemonrun assembles the certissuer runtime from configuration and
// runs the daemon process loop.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"certissuer/internal/archive"
	"certissuer/internal/config"
	"certissuer/internal/daemon"
	"certissuer/internal/feed"
	"certissuer/internal/logging"
	"certissuer/internal/pipeline"
	"certissuer/internal/recordsaccess"
	"certissuer/internal/runlock"
)

// Runtime is a configured pipeline plus the record store session it uses.
type Runtime struct {
	Pipeline *pipeline.Pipeline
	Records  recordsaccess.Session
}

// Close releases the pipeline and the record store.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Pipeline != nil {
		errs = append(errs, r.Pipeline.Close())
	}
	errs = append(errs, r.Records.Close())
	return errors.Join(errs...)
}

// Open validates cfg for batch work and wires the record store, archive
// uploader, candidate feed, and run lock into a pipeline.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.ValidateForBatch(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	session, err := recordsaccess.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Records: session}

	uploader, err := archive.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("open archive: %w", err)
	}
	source, err := feed.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("open candidate feed: %w", err)
	}
	locker, err := runlock.NewFromConfig(cfg)
	if err != nil {
		_ = source.Close()
		_ = rt.Close()
		return nil, fmt.Errorf("open run lock: %w", err)
	}

	p, err := pipeline.New(cfg, pipeline.Deps{
		Store:    session.Store,
		Uploader: uploader,
		Source:   source,
		Locker:   locker,
		Logger:   logger,
	})
	if err != nil {
		_ = source.Close()
		_ = rt.Close()
		return nil, err
	}
	rt.Pipeline = p
	return rt, nil
}

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the certissuer daemon and blocks until SIGINT/SIGTERM or cmdCtx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("certissuer-%s.log", stamp))
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "certissuer-*.log", Exclude: []string{logPath}},
	)
	pidPath := filepath.Join(cfg.Paths.LogDir, "certissuer.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	rt, err := Open(signalCtx, cfg, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "cannot assemble pipeline", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'certissuer config validate' and check credentials"),
		)
		return err
	}
	defer rt.Close()

	d, err := daemon.New(cfg, rt.Pipeline, rt.Records.Store, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	logStartupSnapshot(logger, cfg, rt)

	<-signalCtx.Done()
	logger.Info("certissuer daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// ensureCurrentLogPointer points <log_dir>/certissuer.log at the current run's log.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logStartupSnapshot(logger *slog.Logger, cfg *config.Config, rt *Runtime) {
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("records_backend", rt.Records.Backend),
		logging.String("archive_backend", cfg.Archive.Backend),
		logging.String("feed_source", cfg.Feed.Source),
		logging.String("lock_backend", cfg.Lock.Backend),
		logging.Int("batch_limit", cfg.Pipeline.BatchLimit),
		logging.Int("max_attempts", cfg.Pipeline.MaxAttempts),
		logging.Int("courses", len(cfg.Courses)),
		logging.Bool("signing_passphrase_present", strings.TrimSpace(cfg.Signature.Passphrase) != ""),
		logging.Bool("api_token_present", strings.TrimSpace(cfg.Daemon.APIToken) != ""),
	)
	for _, h := range rt.Pipeline.Health(context.Background()) {
		if !h.Ready {
			logging.WarnWithContext(logger, "stage not ready", "stage_unhealthy",
				logging.String("stage_name", h.Name),
				logging.String("detail", h.Detail),
				logging.String(logging.FieldImpact, "candidates fail at this stage until fixed"),
			)
		}
	}
}
