package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"certissuer/internal/candidate"
	"certissuer/internal/config"
	"certissuer/internal/document"
	"certissuer/internal/feed"
	"certissuer/internal/logging"
	"certissuer/internal/records"
	"certissuer/internal/render"
	"certissuer/internal/runlock"
	"certissuer/internal/services"
	"certissuer/internal/stage"
	"certissuer/internal/stageexec"
	"certissuer/internal/staging"
)

// bookkeepingTimeout bounds MarkFailed after the batch context is gone.
const bookkeepingTimeout = 10 * time.Second

// Deps are the collaborators of a Pipeline. Renderer and Assembler default to
// the config-driven implementations when nil.
type Deps struct {
	Store     records.Store
	Uploader  Uploader
	Source    feed.Source
	Locker    runlock.Locker
	Renderer  Renderer
	Assembler Assembler
	Logger    *slog.Logger
}

// Pipeline runs batches of candidates.
type Pipeline struct {
	cfg      *config.Config
	store    records.Store
	source   feed.Source
	locker   runlock.Locker
	handlers []stage.Handler
	logger   *slog.Logger
	closers  []io.Closer

	newCode  func() string
	newRunID func() string
	now      func() time.Time

	mu   sync.Mutex
	last *BatchResult
}

// New wires a pipeline from cfg and deps.
func New(cfg *config.Config, deps Deps) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config is required")
	}
	if deps.Store == nil {
		return nil, errors.New("pipeline: record store is required")
	}
	if deps.Uploader == nil {
		return nil, errors.New("pipeline: uploader is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "pipeline")

	p := &Pipeline{
		cfg:      cfg,
		store:    deps.Store,
		source:   deps.Source,
		locker:   deps.Locker,
		logger:   logger,
		newCode:  uuid.NewString,
		newRunID: uuid.NewString,
		now:      time.Now,
	}

	bundle := render.BundleFromConfig(cfg)
	renderer := deps.Renderer
	if renderer == nil {
		r := render.NewRenderer(bundle)
		p.closers = append(p.closers, r)
		renderer = r
	}
	material := document.Material{
		CertificatePath: cfg.Signature.Certificate,
		KeyPath:         cfg.Signature.PrivateKey,
		Passphrase:      cfg.Signature.Passphrase,
	}
	assembler := deps.Assembler
	if assembler == nil {
		assembler = document.NewAssembler(material, document.Info{
			Name:        cfg.Signature.Name,
			Location:    cfg.Signature.Location,
			Reason:      cfg.Signature.Reason,
			ContactInfo: cfg.Signature.ContactInfo,
		})
	}

	p.handlers = []stage.Handler{
		&renderStage{renderer: renderer, bundle: bundle, baseURL: cfg.Verification.BaseURL},
		&assembleStage{assembler: assembler, material: material},
		&uploadStage{uploader: deps.Uploader},
		&recordStage{store: deps.Store, issuer: cfg.Issuer.Name, now: func() time.Time { return p.now() }},
	}
	return p, nil
}

// Close releases resources the pipeline created or was handed: the renderer
// cache, the feed source, and a closable locker. The record store belongs to
// the caller.
func (p *Pipeline) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	if p.source != nil {
		errs = append(errs, p.source.Close())
	}
	if c, ok := p.locker.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Health reports the readiness of every stage.
func (p *Pipeline) Health(ctx context.Context) []stage.Health {
	out := make([]stage.Health, 0, len(p.handlers))
	for _, h := range p.handlers {
		out = append(out, h.HealthCheck(ctx))
	}
	return out
}

// LastResult returns the most recent batch summary.
func (p *Pipeline) LastResult() (BatchResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return BatchResult{}, false
	}
	return *p.last, true
}

func (p *Pipeline) batchLimit() int {
	limit := p.cfg.Pipeline.BatchLimit
	if limit <= 0 || limit > config.MaxBatchLimit {
		limit = config.MaxBatchLimit
	}
	return limit
}

// RunBatch processes candidates sequentially, at most the batch limit. A
// failing candidate never stops the batch; cancellation stops it between
// candidates.
func (p *Pipeline) RunBatch(ctx context.Context, cands []candidate.Record) BatchResult {
	return p.runBatch(ctx, cands, 0)
}

func (p *Pipeline) runBatch(ctx context.Context, cands []candidate.Record, filtered int) (result BatchResult) {
	runID := p.newRunID()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, p.logger)

	result = BatchResult{RunID: runID, StartedAt: p.now(), Filtered: filtered}
	defer func() {
		result.FinishedAt = p.now()
		p.mu.Lock()
		last := result
		p.last = &last
		p.mu.Unlock()
	}()

	if limit := p.batchLimit(); len(cands) > limit {
		result.Truncated = len(cands) - limit
		logging.WarnWithContext(logger, "batch truncated to limit", "batch_truncated",
			logging.Int("limit", limit),
			logging.Int("dropped", result.Truncated),
			logging.String(logging.FieldImpact, "remaining candidates wait for the next run"),
		)
		cands = cands[:limit]
	}

	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("candidates", len(cands)),
	)

	staging.CleanStale(ctx, p.cfg.Paths.StagingDir, p.cfg.StaleWorkspaceAge(), map[string]struct{}{runID: {}}, logger)
	run, err := staging.NewRun(p.cfg.Paths.StagingDir, runID)
	if err != nil {
		logging.ErrorWithContext(logger, "cannot create batch workspace", "batch_workspace_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.staging_dir permissions and free space"),
		)
		for _, rec := range cands {
			result.add(CandidateResult{
				StudentID: rec.StudentID,
				CourseID:  rec.CourseID,
				Course:    rec.CourseName,
				Outcome:   OutcomeFailed,
				State:     stage.StateFailed,
				ErrorKind: services.KindAsset,
				Error:     err.Error(),
			})
		}
		return result
	}
	defer func() {
		if err := run.Remove(); err != nil {
			logger.Warn("failed to remove batch workspace",
				logging.String("path", run.Path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "staging_cleanup_failed"),
			)
		}
	}()

	seen := make(map[candidate.Key]struct{}, len(cands))
	for i, rec := range cands {
		if ctx.Err() != nil {
			result.Canceled = true
			logging.WarnWithContext(logger, "batch canceled", "batch_canceled",
				logging.Int("unprocessed", len(cands)-i),
				logging.String(logging.FieldImpact, "unprocessed candidates wait for the next run"),
			)
			break
		}
		if _, dup := seen[rec.Key()]; dup {
			logger.Debug("duplicate candidate in batch ignored", logging.String("candidate", rec.Key().String()))
			continue
		}
		seen[rec.Key()] = struct{}{}
		result.add(p.processCandidate(ctx, run, rec))
	}

	logger.Info("batch complete",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("completed", result.Completed),
		logging.Int("failed", result.Failed),
		logging.Int("skipped", result.Skipped),
		logging.Duration("duration", p.now().Sub(result.StartedAt)),
	)
	return result
}

func (p *Pipeline) processCandidate(ctx context.Context, run *staging.Run, rec candidate.Record) (res CandidateResult) {
	started := time.Now()
	key := rec.Key()
	ctx = services.WithCandidate(ctx, key.StudentID, key.CourseID)
	logger := logging.WithContext(ctx, p.logger)

	res = CandidateResult{
		StudentID: key.StudentID,
		CourseID:  key.CourseID,
		Course:    rec.CourseName,
		State:     stage.StateReceived,
	}
	defer func() { res.Duration = time.Since(started) }()

	if err := rec.Validate(p.cfg.Pipeline.MinPassingScore); err != nil {
		return p.fail(ctx, logger, rec, nil, res, err)
	}

	outcome, err := p.precheck(ctx, logger, rec)
	if err != nil {
		return p.fail(ctx, logger, rec, nil, res, err)
	}
	if outcome != "" {
		res.Outcome = outcome
		return res
	}

	code := p.newCode()
	workspace, err := run.Workspace(key, code)
	if err != nil {
		return p.fail(ctx, logger, rec, nil, res, services.Wrap(services.ErrAsset, string(stage.StateReceived), "create workspace", "", err))
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			logger.Warn("failed to remove candidate workspace",
				logging.String("path", workspace),
				logging.Error(err),
				logging.String(logging.FieldEventType, "staging_cleanup_failed"),
			)
		}
	}()

	job := stage.NewJob(rec, code, workspace)
	for _, h := range p.handlers {
		if err := stageexec.Run(ctx, stageexec.Options{Logger: p.logger, Handler: h, Job: job}); err != nil {
			return p.fail(ctx, logger, rec, job, res, err)
		}
	}
	job.State = stage.StateDone

	res.Outcome = OutcomeCompleted
	res.State = stage.StateDone
	res.Code = code
	res.ArchiveURL = job.ArchiveURL
	logger.Info("certificate issued",
		logging.String(logging.FieldEventType, "candidate_complete"),
		logging.String("code", code),
		logging.String("object_id", job.ObjectID),
		logging.String("archive_url", job.ArchiveURL),
	)
	return res
}

// precheck returns a skip outcome, or "" when the candidate should be
// processed. On "" the candidate's row is claimed by this run.
func (p *Pipeline) precheck(ctx context.Context, logger *slog.Logger, rec candidate.Record) (Outcome, error) {
	key := rec.Key()
	exists, err := p.store.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if exists {
		logger.Info("certificate already issued; skipping",
			logging.String(logging.FieldEventType, "candidate_skipped"),
			logging.String("reason", string(OutcomeSkippedCompleted)),
		)
		return OutcomeSkippedCompleted, nil
	}

	attempts, err := p.store.Attempts(ctx, key)
	if err != nil {
		return "", err
	}
	if maxAttempts := p.cfg.Pipeline.MaxAttempts; maxAttempts > 0 && attempts >= maxAttempts {
		logging.WarnWithContext(logger, "candidate exhausted its attempts; skipping", "candidate_exhausted",
			logging.Int("attempts", attempts),
			logging.Int("max_attempts", maxAttempts),
			logging.String(logging.FieldErrorHint, "fix the cause, then run 'certissuer records retry'"),
			logging.String(logging.FieldImpact, "no certificate is issued until attempts are reset"),
		)
		return OutcomeSkippedExhausted, nil
	}

	claimed, err := p.store.Claim(ctx, rec, p.cfg.ClaimTimeout())
	if err != nil {
		return "", err
	}
	if !claimed {
		logger.Info("candidate claimed by another run; skipping",
			logging.String(logging.FieldEventType, "candidate_skipped"),
			logging.String("reason", string(OutcomeSkippedBusy)),
		)
		return OutcomeSkippedBusy, nil
	}
	return "", nil
}

func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, rec candidate.Record, job *stage.Job, res CandidateResult, cause error) CandidateResult {
	details := services.Details(cause)
	res.ErrorKind = details.Kind
	res.Error = details.Message
	res.State = stage.StateFailed
	failedIn := stage.StateReceived
	if job != nil && job.FailedIn != "" {
		failedIn = job.FailedIn
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldErrorKind, details.Kind),
		logging.String("failed_state", string(failedIn)),
		logging.Error(cause),
	}
	orphaned := job != nil && job.Archived()
	if orphaned {
		attrs = append(attrs,
			logging.String("object_id", job.ObjectID),
			logging.String("archive_url", job.ArchiveURL),
		)
	}

	if errors.Is(cause, services.ErrUniqueViolation) {
		res.Outcome = OutcomeDuplicate
		logging.WarnWithContext(logger, "certificate already recorded; skipping", "candidate_duplicate",
			append(attrs,
				logging.String(logging.FieldErrorHint, "another run recorded this pair; remove the duplicate archive object if one was logged"),
				logging.String(logging.FieldImpact, "no new certificate recorded"),
			)...,
		)
		return res
	}

	if errors.Is(cause, context.Canceled) {
		res.Outcome = OutcomeInterrupted
		logging.WarnWithContext(logger, "candidate interrupted by cancellation", "candidate_interrupted",
			append(attrs, logging.String(logging.FieldImpact, "the candidate is retried on the next run without spending an attempt"))...,
		)
		if orphaned {
			logging.ErrorWithContext(logger, "certificate archived but not recorded", "orphaned_object",
				append(attrs, logging.String(logging.FieldErrorHint, "delete the archived object or record it manually"))...,
			)
		}
		if rec.StudentID <= 0 || rec.CourseID <= 0 {
			return res
		}
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
		defer cancel()
		if err := p.store.Release(bctx, rec.Key()); err != nil {
			logging.WarnWithContext(logger, "failed to release candidate claim", "release_claim_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "the candidate waits for its claim to go stale"),
			)
		}
		return res
	}

	res.Outcome = OutcomeFailed
	if orphaned {
		logging.ErrorWithContext(logger, "certificate archived but not recorded", "orphaned_object",
			append(attrs, logging.String(logging.FieldErrorHint, "delete the archived object or record it manually"))...,
		)
	} else {
		logging.ErrorWithContext(logger, "candidate failed", "candidate_failed",
			append(attrs, logging.String(logging.FieldErrorHint, hintFor(details.Kind)))...,
		)
	}

	if rec.StudentID <= 0 || rec.CourseID <= 0 {
		return res
	}
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()
	if err := p.store.MarkFailed(bctx, rec, services.FailureMessage(cause)); err != nil {
		logging.ErrorWithContext(logger, "failed to record candidate failure", "mark_failed_error",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the record store; the attempt counter was not advanced"),
		)
	}
	return res
}

func hintFor(kind string) string {
	switch kind {
	case services.KindConfiguration:
		return "add the course to [courses] or fix the referenced setting"
	case services.KindAsset:
		return "check template, font, and logo files under paths.assets_dir"
	case services.KindSigningAsset:
		return "check signature.certificate and signature.private_key paths"
	case services.KindSigning:
		return "check the signing key passphrase and that the key matches the certificate"
	case services.KindUpload:
		return "check archive credentials and connectivity"
	case services.KindData:
		return "fix the candidate data in the LMS"
	case services.KindPersistence:
		return "check the record store connection"
	default:
		return "check logs for details"
	}
}

// RunOnce takes the run lock, collects up to the batch limit of actionable
// candidates from the feed, and runs them. It returns
// runlock.ErrBatchInProgress when another run holds the lock.
func (p *Pipeline) RunOnce(ctx context.Context) (BatchResult, error) {
	if p.source == nil {
		return BatchResult{}, errors.New("pipeline: no candidate source configured")
	}
	if p.locker != nil {
		release, err := runlock.Acquire(ctx, p.locker)
		if err != nil {
			if errors.Is(err, runlock.ErrBatchInProgress) {
				p.logger.Info("batch already in progress; skipping trigger",
					logging.String(logging.FieldEventType, "batch_skipped"),
				)
			}
			return BatchResult{}, err
		}
		defer release()
	}

	cands, filtered, err := p.collect(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	return p.runBatch(ctx, cands, filtered), nil
}

// collect pages through the feed, passing over rows that are already issued
// or out of attempts so they never occupy batch slots.
func (p *Pipeline) collect(ctx context.Context) ([]candidate.Record, int, error) {
	limit := p.batchLimit()
	var (
		out      []candidate.Record
		filtered int
		offset   int
	)
	seen := make(map[candidate.Key]struct{})
	for len(out) < limit {
		page, err := p.source.Pending(ctx, offset, limit)
		if err != nil {
			return nil, 0, fmt.Errorf("fetch candidates: %w", err)
		}
		offset += len(page)
		for _, rec := range page {
			if len(out) == limit {
				break
			}
			if _, dup := seen[rec.Key()]; dup {
				continue
			}
			seen[rec.Key()] = struct{}{}
			skip, err := p.passOver(ctx, rec)
			if err != nil {
				return nil, 0, err
			}
			if skip {
				filtered++
				continue
			}
			out = append(out, rec)
		}
		if len(page) < limit {
			break
		}
	}
	if filtered > 0 {
		p.logger.Debug("feed rows passed over",
			logging.Int("filtered", filtered),
			logging.Int("scanned", offset),
		)
	}
	return out, filtered, nil
}

func (p *Pipeline) passOver(ctx context.Context, rec candidate.Record) (bool, error) {
	key := rec.Key()
	exists, err := p.store.Exists(ctx, key)
	if err != nil || exists {
		return exists, err
	}
	attempts, err := p.store.Attempts(ctx, key)
	if err != nil {
		return false, err
	}
	maxAttempts := p.cfg.Pipeline.MaxAttempts
	if maxAttempts <= 0 || attempts < maxAttempts {
		return false, nil
	}
	p.logger.Info("candidate exhausted its attempts; not queued",
		logging.String(logging.FieldEventType, "candidate_exhausted"),
		logging.Int64(logging.FieldStudentID, key.StudentID),
		logging.Int64(logging.FieldCourseID, key.CourseID),
		logging.Int("attempts", attempts),
	)
	return true, nil
}
