package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"certissuer/internal/candidate"
	"certissuer/internal/services"
)

var _ Store = (*SQLiteStore)(nil)

func persistenceErr(op string, err error) error {
	return services.Wrap(services.ErrPersistence, "recording", op, "", err)
}

// Exists reports whether a completed row exists for the pair.
func (s *SQLiteStore) Exists(ctx context.Context, key candidate.Key) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM certificados_generados WHERE student_id = ? AND course_id = ? AND status = ?`,
		key.StudentID, key.CourseID, StatusCompleted,
	).Scan(&count)
	if err != nil {
		return false, persistenceErr("check existing certificate", err)
	}
	return count > 0, nil
}

// Claim moves the pair to processing unless it is completed or freshly claimed.
func (s *SQLiteStore) Claim(ctx context.Context, rec candidate.Record, staleAfter time.Duration) (bool, error) {
	now := s.now().UTC()
	cutoff := formatTime(now.Add(-staleAfter))
	ts := formatTime(now)
	res, err := s.execWithRetry(ctx, `
INSERT INTO certificados_generados
    (dni, student_id, nombre, curso, course_id, nota, status, last_attempt, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, 'processing', ?, ?, ?)
ON CONFLICT(student_id, course_id) DO UPDATE SET
    dni = excluded.dni,
    nombre = excluded.nombre,
    curso = excluded.curso,
    nota = excluded.nota,
    status = 'processing',
    last_attempt = excluded.last_attempt,
    updated_at = excluded.updated_at
WHERE certificados_generados.status <> 'completed'
  AND NOT (certificados_generados.status = 'processing'
           AND certificados_generados.last_attempt IS NOT NULL
           AND certificados_generados.last_attempt > ?)`,
		nullableStringPtr(rec.NationalID), rec.StudentID, rec.DisplayName, rec.CourseName, rec.CourseID, rec.Score,
		ts, ts, ts, cutoff,
	)
	if err != nil {
		return false, persistenceErr("claim candidate", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, persistenceErr("claim candidate", err)
	}
	return affected > 0, nil
}

// InsertCompleted records a successful issuance for the pair.
func (s *SQLiteStore) InsertCompleted(ctx context.Context, rec candidate.Record, done Completion) error {
	if strings.TrimSpace(done.Code) == "" {
		return services.Wrap(services.ErrPersistence, "recording", "insert completed", "certificate code is empty", nil)
	}
	ts := formatTime(s.now())
	issued := done.IssuedAt
	if issued.IsZero() {
		issued = s.now()
	}
	res, err := s.execWithRetry(ctx, `
INSERT INTO certificados_generados
    (dni, codigo_unico, student_id, nombre, curso, course_id, nota, fecha_emision, emisor,
     enlace_drive, archive_object_id, status, error_message, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'completed', NULL, ?, ?)
ON CONFLICT(student_id, course_id) DO UPDATE SET
    dni = excluded.dni,
    codigo_unico = excluded.codigo_unico,
    nombre = excluded.nombre,
    curso = excluded.curso,
    nota = excluded.nota,
    fecha_emision = excluded.fecha_emision,
    emisor = excluded.emisor,
    enlace_drive = excluded.enlace_drive,
    archive_object_id = excluded.archive_object_id,
    status = 'completed',
    error_message = NULL,
    updated_at = excluded.updated_at
WHERE certificados_generados.status <> 'completed'`,
		nullableStringPtr(rec.NationalID), done.Code, rec.StudentID, rec.DisplayName, rec.CourseName, rec.CourseID,
		rec.Score, formatTime(issued), nullableString(done.Issuer), nullableString(done.ArchiveURL),
		nullableString(done.ObjectID), ts, ts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return services.Wrap(services.ErrUniqueViolation, "recording", "insert completed",
				fmt.Sprintf("certificate code %s already recorded", done.Code), err)
		}
		return persistenceErr("insert completed", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return persistenceErr("insert completed", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrUniqueViolation, "recording", "insert completed",
			fmt.Sprintf("%s already has a completed certificate", rec.Key()), nil)
	}
	return nil
}

// MarkFailed increments attempts and records message; completed rows are kept.
func (s *SQLiteStore) MarkFailed(ctx context.Context, rec candidate.Record, message string) error {
	ts := formatTime(s.now())
	_, err := s.execWithRetry(ctx, `
INSERT INTO certificados_generados
    (dni, student_id, nombre, curso, course_id, nota, status, error_message, attempts, last_attempt, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, 'failed', ?, 1, ?, ?, ?)
ON CONFLICT(student_id, course_id) DO UPDATE SET
    status = 'failed',
    error_message = excluded.error_message,
    attempts = certificados_generados.attempts + 1,
    last_attempt = excluded.last_attempt,
    updated_at = excluded.updated_at
WHERE certificados_generados.status <> 'completed'`,
		nullableStringPtr(rec.NationalID), rec.StudentID, rec.DisplayName, rec.CourseName, rec.CourseID, rec.Score,
		message, ts, ts, ts,
	)
	if err != nil {
		return persistenceErr("mark failed", err)
	}
	return nil
}

// Release hands a claimed pair back to pending.
func (s *SQLiteStore) Release(ctx context.Context, key candidate.Key) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE certificados_generados SET status = 'pending', updated_at = ? WHERE student_id = ? AND course_id = ? AND status = 'processing'`,
		formatTime(s.now()), key.StudentID, key.CourseID,
	)
	if err != nil {
		return persistenceErr("release claim", err)
	}
	return nil
}

// Attempts returns the failure counter for the pair.
func (s *SQLiteStore) Attempts(ctx context.Context, key candidate.Key) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT attempts FROM certificados_generados WHERE student_id = ? AND course_id = ?`,
		key.StudentID, key.CourseID,
	).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, persistenceErr("read attempts", err)
	}
	return attempts, nil
}

// Get returns the row for the pair or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, key candidate.Key) (*Certificate, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+certificateColumns+` FROM certificados_generados WHERE student_id = ? AND course_id = ?`,
		key.StudentID, key.CourseID,
	)
	cert, err := scanCertificate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistenceErr("get certificate", err)
	}
	return cert, nil
}

// List returns rows matching filter, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Certificate, error) {
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	if filter.StudentID > 0 {
		clauses = append(clauses, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.CourseID > 0 {
		clauses = append(clauses, "course_id = ?")
		args = append(args, filter.CourseID)
	}
	query := `SELECT ` + certificateColumns + ` FROM certificados_generados`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY updated_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, persistenceErr("list certificates", err)
	}
	defer rows.Close()

	var out []Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, persistenceErr("scan certificate", err)
		}
		out = append(out, *cert)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("list certificates", err)
	}
	return out, nil
}

// Stats returns a count of rows grouped by status.
func (s *SQLiteStore) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT status, COUNT(1) FROM certificados_generados GROUP BY status`)
	if err != nil {
		return nil, persistenceErr("certificate stats", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, persistenceErr("certificate stats", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// ResetFailed returns failed rows to pending with a zero attempt counter.
func (s *SQLiteStore) ResetFailed(ctx context.Context, keys ...candidate.Key) (int64, error) {
	query := `UPDATE certificados_generados SET status = 'pending', attempts = 0, updated_at = ? WHERE status = 'failed'`
	args := []any{formatTime(s.now())}
	if len(keys) > 0 {
		pairs := make([]string, 0, len(keys))
		for _, key := range keys {
			pairs = append(pairs, "(student_id = ? AND course_id = ?)")
			args = append(args, key.StudentID, key.CourseID)
		}
		query += " AND (" + strings.Join(pairs, " OR ") + ")"
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, persistenceErr("reset failed", err)
	}
	return res.RowsAffected()
}
