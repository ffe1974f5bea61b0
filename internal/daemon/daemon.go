package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"certissuer/internal/config"
	"certissuer/internal/logging"
	"certissuer/internal/pipeline"
	"certissuer/internal/records"
	"certissuer/internal/scheduler"
	"certissuer/internal/stage"
	"certissuer/internal/staging"
)

// Batcher is the pipeline surface the daemon drives.
type Batcher interface {
	RunOnce(ctx context.Context) (pipeline.BatchResult, error)
	Health(ctx context.Context) []stage.Health
	LastResult() (pipeline.BatchResult, bool)
}

// Daemon owns the scheduler, the control API, and the single-instance lock.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	batcher Batcher
	store   records.Store
	sched   *scheduler.Scheduler
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	// batching counts RunOnce calls in flight, including ones the run lock refuses.
	batching atomic.Int32

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	BatchRunning bool
	PID          int
	LockFilePath string
	Schedule     string
	NextRun      time.Time
	LastRun      *pipeline.BatchResult
}

// New constructs a daemon. The record store stays owned by the caller.
func New(cfg *config.Config, batcher Batcher, store records.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || batcher == nil || store == nil {
		return nil, errors.New("daemon requires config, pipeline, and record store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.DaemonLockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		batcher:  batcher,
		store:    store,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	sched, err := scheduler.New(cfg.Schedule, d, logger)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	d.sched = sched
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, starts the scheduler, and opens the control API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(d.cfg.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("ensure log directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another certissuer daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if err := d.sched.Start(runCtx); err != nil {
		d.api.stop()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start scheduler: %w", err)
	}

	d.mu.Lock()
	d.ctx, d.cancel = runCtx, cancel
	d.mu.Unlock()
	d.running.Store(true)
	d.logger.Info("certissuer daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("api_bind", d.api.address()),
		logging.Time("next_run", d.sched.NextRun()),
	)
	return nil
}

// Stop cancels in-flight work, stops the scheduler and API, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx, d.cancel = nil, nil
	d.mu.Unlock()

	d.sched.Stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_lock_release_failed"),
		)
	}
	d.running.Store(false)
	d.logger.Info("certissuer daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close stops the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// RunOnce runs one batch through the pipeline. The scheduler calls it on
// every activation and the control API on manual triggers.
func (d *Daemon) RunOnce(ctx context.Context) (pipeline.BatchResult, error) {
	d.batching.Add(1)
	defer d.batching.Add(-1)
	return d.batcher.RunOnce(ctx)
}

// TriggerBatch runs a batch now. The batch is bound to the daemon's lifetime
// rather than to the caller's request.
func (d *Daemon) TriggerBatch() (pipeline.BatchResult, error) {
	d.logger.Info("manual batch triggered", logging.String(logging.FieldEventType, "batch_triggered"))
	return d.RunOnce(d.runContext())
}

func (d *Daemon) runContext() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx != nil {
		return d.ctx
	}
	return context.Background()
}

// NextRun reports the next scheduled batch.
func (d *Daemon) NextRun() time.Time {
	return d.sched.NextRun()
}

// ListCertificates returns record rows matching filter along with per-status counts.
func (d *Daemon) ListCertificates(ctx context.Context, filter records.Filter) ([]records.Certificate, map[records.Status]int, error) {
	rows, err := d.store.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	counts, err := d.store.Stats(ctx)
	if err != nil {
		return nil, nil, err
	}
	return rows, counts, nil
}

// Health reports stage readiness and leftover staging directories.
func (d *Daemon) Health(ctx context.Context) ([]stage.Health, []staging.DirInfo) {
	health := d.batcher.Health(ctx)
	dirs, err := staging.ListDirectories(d.cfg.Paths.StagingDir)
	if err != nil {
		d.logger.Warn("failed to list staging directories",
			logging.Error(err),
			logging.String(logging.FieldEventType, "staging_list_failed"),
		)
	}
	return health, dirs
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	st := Status{
		Running:      d.running.Load(),
		BatchRunning: d.batching.Load() > 0,
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		Schedule:     d.sched.Spec(),
		NextRun:      d.sched.NextRun(),
	}
	if last, ok := d.batcher.LastResult(); ok {
		st.LastRun = &last
	}
	return st
}
