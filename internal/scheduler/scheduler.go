// Package scheduler fires certificate batches on a cron schedule and reports
// when the next batch is due.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"certissuer/internal/config"
	"certissuer/internal/logging"
	"certissuer/internal/pipeline"
	"certissuer/internal/runlock"
)

// Runner runs one batch.
type Runner interface {
	RunOnce(ctx context.Context) (pipeline.BatchResult, error)
}

// Scheduler triggers Runner on a cron schedule.
type Scheduler struct {
	runner   Runner
	logger   *slog.Logger
	cron     *cron.Cron
	schedule cron.Schedule
	loc      *time.Location
	spec     string
	onStart  bool

	mu      sync.Mutex
	entry   cron.EntryID
	started bool
	cancel  context.CancelFunc
	now     func() time.Time

	// startup tracks the run_on_start batch, which runs outside cron.
	startup sync.WaitGroup
}

// ParseSpec parses a standard five-field cron expression or a descriptor such
// as "@every 4h" in the given timezone ("" means local time).
func ParseSpec(spec, timezone string) (cron.Schedule, *time.Location, error) {
	loc := time.Local
	if tz := strings.TrimSpace(timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, nil, fmt.Errorf("schedule timezone: %w", err)
		}
		loc = l
	}
	sched, err := cron.ParseStandard(strings.TrimSpace(spec))
	if err != nil {
		return nil, nil, fmt.Errorf("schedule spec %q: %w", spec, err)
	}
	return sched, loc, nil
}

// NextAfter returns the first activation of spec after t.
func NextAfter(spec, timezone string, t time.Time) (time.Time, error) {
	sched, loc, err := ParseSpec(spec, timezone)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(t.In(loc)), nil
}

// New builds a scheduler for cfg. It does not start firing until Start.
func New(cfg config.Schedule, runner Runner, logger *slog.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler: runner is required")
	}
	sched, loc, err := ParseSpec(cfg.Spec, cfg.Timezone)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "scheduler")
	return &Scheduler{
		runner:   runner,
		logger:   logger,
		schedule: sched,
		loc:      loc,
		spec:     cfg.Spec,
		onStart:  cfg.RunOnStart,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger{logger}),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger})),
		),
		now: time.Now,
	}, nil
}

// Start registers the batch job and starts the cron loop. Batches run with a
// context derived from ctx, so canceling ctx aborts an in-flight batch between
// candidates.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = s.cron.Schedule(s.schedule, cron.FuncJob(func() { s.fire(runCtx, "schedule") }))
	s.cancel = cancel
	s.started = true
	s.cron.Start()

	s.logger.Info("scheduler started",
		logging.String(logging.FieldEventType, "scheduler_start"),
		logging.String("spec", s.spec),
		logging.String("timezone", s.loc.String()),
		logging.Time("next_run", s.nextLocked()),
	)
	if s.onStart {
		s.startup.Add(1)
		go func() {
			defer s.startup.Done()
			s.fire(runCtx, "startup")
		}()
	}
	return nil
}

// Stop halts the cron loop, cancels an in-flight batch and waits for it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.cron.Stop().Done()
	s.startup.Wait()
	s.logger.Info("scheduler stopped", logging.String(logging.FieldEventType, "scheduler_stop"))
}

// NextRun returns the next scheduled activation. Before Start it is computed
// from the current time.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked()
}

func (s *Scheduler) nextLocked() time.Time {
	if s.started {
		if next := s.cron.Entry(s.entry).Next; !next.IsZero() {
			return next
		}
	}
	return s.schedule.Next(s.now().In(s.loc))
}

// Spec returns the configured schedule expression.
func (s *Scheduler) Spec() string { return s.spec }

func (s *Scheduler) fire(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Info("scheduled batch triggered",
		logging.String(logging.FieldEventType, "batch_triggered"),
		logging.String("reason", reason),
	)
	res, err := s.runner.RunOnce(ctx)
	switch {
	case errors.Is(err, runlock.ErrBatchInProgress):
		s.logger.Info("previous batch still running; trigger skipped",
			logging.String(logging.FieldEventType, "batch_skipped"),
		)
	case err != nil:
		logging.ErrorWithContext(s.logger, "scheduled batch failed", "batch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the candidate feed and record store connections"),
			logging.Time("next_run", s.NextRun()),
		)
	default:
		s.logger.Info("scheduled batch finished",
			logging.String(logging.FieldEventType, "batch_finished"),
			logging.String(logging.FieldRunID, res.RunID),
			logging.Int("completed", res.Completed),
			logging.Int("failed", res.Failed),
			logging.Int("skipped", res.Skipped),
			logging.Time("next_run", s.NextRun()),
		)
	}
}

// cronLogger routes cron's internal messages into slog at debug level.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{logging.Error(err)}, keysAndValues...)...)
}
