package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"certissuer/internal/candidate"
	"certissuer/internal/records"
	"certissuer/internal/services"
)

const pairClause = "student_id = ? AND course_id = ?"

func (s *Store) rowExists(ctx context.Context, key candidate.Key) (bool, error) {
	var count int64
	err := s.scoped(ctx).Where(pairClause, key.StudentID, key.CourseID).Count(&count).Error
	return count > 0, err
}

// Exists reports whether a completed row exists for the pair.
func (s *Store) Exists(ctx context.Context, key candidate.Key) (bool, error) {
	var count int64
	err := s.scoped(ctx).
		Where(pairClause+" AND status = ?", key.StudentID, key.CourseID, string(records.StatusCompleted)).
		Count(&count).Error
	if err != nil {
		return false, persistenceErr("check existing certificate", err)
	}
	return count > 0, nil
}

// Claim moves the pair to processing unless it is completed or freshly claimed.
func (s *Store) Claim(ctx context.Context, rec candidate.Record, staleAfter time.Duration) (bool, error) {
	now := s.now().UTC()
	cutoff := now.Add(-staleAfter)
	res := s.scoped(ctx).
		Where(pairClause, rec.StudentID, rec.CourseID).
		Where("status <> ?", string(records.StatusCompleted)).
		Where("NOT (status = ? AND last_attempt IS NOT NULL AND last_attempt > ?)", string(records.StatusProcessing), cutoff).
		Updates(map[string]any{
			"status":       string(records.StatusProcessing),
			"nombre":       rec.DisplayName,
			"curso":        rec.CourseName,
			"nota":         rec.Score,
			"last_attempt": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, persistenceErr("claim candidate", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	exists, err := s.rowExists(ctx, rec.Key())
	if err != nil {
		return false, persistenceErr("claim candidate", err)
	}
	if exists {
		return false, nil
	}
	row := newRow(rec, records.StatusProcessing, now)
	row.LastAttempt = &now
	res = s.scoped(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, persistenceErr("claim candidate", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// InsertCompleted records a successful issuance for the pair.
func (s *Store) InsertCompleted(ctx context.Context, rec candidate.Record, done records.Completion) error {
	if strings.TrimSpace(done.Code) == "" {
		return services.Wrap(services.ErrPersistence, "recording", "insert completed", "certificate code is empty", nil)
	}
	now := s.now().UTC()
	issued := done.IssuedAt
	if issued.IsZero() {
		issued = now
	}
	issuedOn := datatypes.Date(issued)

	res := s.scoped(ctx).
		Where(pairClause, rec.StudentID, rec.CourseID).
		Where("status <> ?", string(records.StatusCompleted)).
		Updates(map[string]any{
			"codigo_unico":      done.Code,
			"nombre":            rec.DisplayName,
			"curso":             rec.CourseName,
			"nota":              rec.Score,
			"fecha_emision":     issuedOn,
			"emisor":            optional(done.Issuer),
			"enlace_drive":      optional(done.ArchiveURL),
			"archive_object_id": optional(done.ObjectID),
			"status":            string(records.StatusCompleted),
			"error_message":     nil,
			"updated_at":        now,
		})
	if res.Error != nil {
		return s.classifyInsertErr(done.Code, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	exists, err := s.rowExists(ctx, rec.Key())
	if err != nil {
		return persistenceErr("insert completed", err)
	}
	if exists {
		return services.Wrap(services.ErrUniqueViolation, "recording", "insert completed",
			fmt.Sprintf("%s already has a completed certificate", rec.Key()), nil)
	}

	row := newRow(rec, records.StatusCompleted, now)
	row.Code = optional(done.Code)
	row.IssuedOn = &issuedOn
	row.Issuer = optional(done.Issuer)
	row.ArchiveURL = optional(done.ArchiveURL)
	row.ObjectID = optional(done.ObjectID)
	if err := s.scoped(ctx).Create(&row).Error; err != nil {
		return s.classifyInsertErr(done.Code, err)
	}
	return nil
}

func (s *Store) classifyInsertErr(code string, err error) error {
	if isDuplicate(err) {
		return services.Wrap(services.ErrUniqueViolation, "recording", "insert completed",
			fmt.Sprintf("certificate code %s or pair already recorded", code), err)
	}
	return persistenceErr("insert completed", err)
}

// MarkFailed increments attempts and records message; completed rows are kept.
func (s *Store) MarkFailed(ctx context.Context, rec candidate.Record, message string) error {
	for attempt := 0; attempt < 2; attempt++ {
		now := s.now().UTC()
		res := s.scoped(ctx).
			Where(pairClause, rec.StudentID, rec.CourseID).
			Where("status <> ?", string(records.StatusCompleted)).
			Updates(map[string]any{
				"status":        string(records.StatusFailed),
				"error_message": message,
				"attempts":      gorm.Expr("attempts + 1"),
				"last_attempt":  now,
				"updated_at":    now,
			})
		if res.Error != nil {
			return persistenceErr("mark failed", res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}
		exists, err := s.rowExists(ctx, rec.Key())
		if err != nil {
			return persistenceErr("mark failed", err)
		}
		if exists {
			// Completed rows are never downgraded.
			return nil
		}
		row := newRow(rec, records.StatusFailed, now)
		row.ErrorMessage = optional(message)
		row.Attempts = 1
		row.LastAttempt = &now
		err = s.scoped(ctx).Create(&row).Error
		if err == nil {
			return nil
		}
		if !isDuplicate(err) {
			return persistenceErr("mark failed", err)
		}
		// Lost an insert race; the second pass updates the new row.
	}
	return services.Wrap(services.ErrPersistence, "recording", "mark failed", "row changed concurrently", nil)
}

// Attempts returns the failure counter for the pair.
func (s *Store) Attempts(ctx context.Context, key candidate.Key) (int, error) {
	var row certificateRow
	err := s.scoped(ctx).Select("attempts").Where(pairClause, key.StudentID, key.CourseID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, persistenceErr("read attempts", err)
	}
	return row.Attempts, nil
}

// Get returns the row for the pair or records.ErrNotFound.
func (s *Store) Get(ctx context.Context, key candidate.Key) (*records.Certificate, error) {
	var row certificateRow
	err := s.scoped(ctx).Where(pairClause, key.StudentID, key.CourseID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, records.ErrNotFound
	}
	if err != nil {
		return nil, persistenceErr("get certificate", err)
	}
	cert := row.toCertificate()
	return &cert, nil
}

// List returns rows matching filter, most recently updated first.
func (s *Store) List(ctx context.Context, filter records.Filter) ([]records.Certificate, error) {
	q := s.scoped(ctx)
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		q = q.Where("status IN ?", statuses)
	}
	if filter.StudentID > 0 {
		q = q.Where("student_id = ?", filter.StudentID)
	}
	if filter.CourseID > 0 {
		q = q.Where("course_id = ?", filter.CourseID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var rows []certificateRow
	if err := q.Order("updated_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, persistenceErr("list certificates", err)
	}
	out := make([]records.Certificate, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toCertificate())
	}
	return out, nil
}

// Stats returns a count of rows grouped by status.
func (s *Store) Stats(ctx context.Context) (map[records.Status]int, error) {
	var rows []struct {
		Status string
		Total  int
	}
	err := s.scoped(ctx).Select("status, COUNT(*) AS total").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, persistenceErr("certificate stats", err)
	}
	stats := make(map[records.Status]int, len(rows))
	for _, row := range rows {
		stats[records.Status(row.Status)] = row.Total
	}
	return stats, nil
}

// Release hands a claimed pair back to pending.
func (s *Store) Release(ctx context.Context, key candidate.Key) error {
	res := s.scoped(ctx).
		Where(pairClause, key.StudentID, key.CourseID).
		Where("status = ?", string(records.StatusProcessing)).
		Updates(map[string]any{
			"status":     string(records.StatusPending),
			"updated_at": s.now().UTC(),
		})
	if res.Error != nil {
		return persistenceErr("release claim", res.Error)
	}
	return nil
}

// ResetFailed returns failed rows to pending with a zero attempt counter.
func (s *Store) ResetFailed(ctx context.Context, keys ...candidate.Key) (int64, error) {
	q := s.scoped(ctx).Where("status = ?", string(records.StatusFailed))
	if len(keys) > 0 {
		pairs := s.db.Where(pairClause, keys[0].StudentID, keys[0].CourseID)
		for _, key := range keys[1:] {
			pairs = pairs.Or(pairClause, key.StudentID, key.CourseID)
		}
		q = q.Where(pairs)
	}
	res := q.Updates(map[string]any{
		"status":     string(records.StatusPending),
		"attempts":   0,
		"updated_at": s.now().UTC(),
	})
	if res.Error != nil {
		return 0, persistenceErr("reset failed", res.Error)
	}
	return res.RowsAffected, nil
}
