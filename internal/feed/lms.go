package feed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"certissuer/internal/candidate"
	"certissuer/internal/logging"
	"certissuer/internal/records"
)

var prefixPattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

// LMSOptions configures the Tutor LMS source.
type LMSOptions struct {
	DSN             string
	TablePrefix     string
	NationalIDKey   string
	MinPassingScore float64
	// ExcludeIssued filters pairs with a completed row in the prefixed
	// certificate table, which must live in the same database.
	ExcludeIssued bool
	Logger        *slog.Logger
}

// LMSSource queries the WordPress/Tutor LMS tables.
type LMSSource struct {
	db     *gorm.DB
	query  string
	opts   LMSOptions
	logger *slog.Logger
	owned  bool
}

type lmsRow struct {
	StudentID   int64          `gorm:"column:student_id"`
	DisplayName string         `gorm:"column:nombre_completo"`
	NationalID  sql.NullString `gorm:"column:dni"`
	CourseName  string         `gorm:"column:course_name"`
	AssessedAt  time.Time      `gorm:"column:ultima_fecha"`
	Score       float64        `gorm:"column:nota"`
	CourseID    int64          `gorm:"column:course_id"`
}

// OpenLMS connects to the LMS MySQL database.
func OpenLMS(ctx context.Context, opts LMSOptions) (*LMSSource, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	db, err := gorm.Open(mysql.Open(withParseTime(opts.DSN)), &gorm.Config{
		Logger: gormlogger.New(gormLogWriter{logger: logger}, gormlogger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("connect lms database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(2)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping lms database: %w", err)
	}
	src, err := NewLMSSource(db, opts)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	src.owned = true
	return src, nil
}

// NewLMSSource wraps an existing connection. The caller keeps ownership of db.
func NewLMSSource(db *gorm.DB, opts LMSOptions) (*LMSSource, error) {
	if !prefixPattern.MatchString(opts.TablePrefix) {
		return nil, fmt.Errorf("feed: invalid table prefix %q", opts.TablePrefix)
	}
	if strings.TrimSpace(opts.NationalIDKey) == "" {
		opts.NationalIDKey = "dni"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LMSSource{
		db:     db,
		query:  buildPendingQuery(opts.TablePrefix, opts.ExcludeIssued),
		opts:   opts,
		logger: logger,
	}, nil
}

func buildPendingQuery(prefix string, excludeIssued bool) string {
	attempts := prefix + "tutor_quiz_attempts"
	var b strings.Builder
	fmt.Fprintf(&b, `SELECT
	u.ID AS student_id,
	u.display_name AS nombre_completo,
	um.meta_value AS dni,
	p.post_title AS course_name,
	q.attempt_started_at AS ultima_fecha,
	q.earned_marks AS nota,
	q.course_id AS course_id
FROM %[1]s q
JOIN %[2]susers u ON q.user_id = u.ID
LEFT JOIN %[2]susermeta um ON u.ID = um.user_id AND um.meta_key = ?
JOIN %[2]sposts p ON q.course_id = p.ID
WHERE q.earned_marks >= ?
	AND q.attempt_started_at = (
		SELECT MAX(inner_q.attempt_started_at)
		FROM %[1]s inner_q
		WHERE inner_q.user_id = q.user_id
			AND inner_q.course_id = q.course_id
			AND inner_q.earned_marks >= ?
			AND inner_q.earned_marks = (
				SELECT MAX(best.earned_marks)
				FROM %[1]s best
				WHERE best.user_id = q.user_id
					AND best.course_id = q.course_id
					AND best.earned_marks >= ?
			)
	)
`, attempts, prefix)
	if excludeIssued {
		fmt.Fprintf(&b, `	AND NOT EXISTS (
		SELECT 1 FROM %s%s c
		WHERE c.student_id = u.ID AND c.course_id = q.course_id AND c.status = '%s'
	)
`, prefix, records.TableName, records.StatusCompleted)
	}
	b.WriteString("ORDER BY q.attempt_started_at, u.ID, q.course_id\nLIMIT ? OFFSET ?")
	return b.String()
}

func (s *LMSSource) Pending(ctx context.Context, offset, limit int) ([]candidate.Record, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 50
	}
	threshold := s.opts.MinPassingScore
	var rows []lmsRow
	err := s.db.WithContext(ctx).
		Raw(s.query, s.opts.NationalIDKey, threshold, threshold, threshold, limit, offset).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query pending candidates: %w", err)
	}

	recs := make([]candidate.Record, 0, len(rows))
	for _, r := range rows {
		rec := candidate.Record{
			StudentID:   r.StudentID,
			DisplayName: r.DisplayName,
			CourseID:    r.CourseID,
			CourseName:  r.CourseName,
			Score:       r.Score,
			AssessedAt:  r.AssessedAt,
		}
		if r.NationalID.Valid {
			id := r.NationalID.String
			rec.NationalID = &id
		}
		recs = append(recs, rec)
	}
	s.logger.Debug("lms candidates fetched",
		logging.Int("offset", offset),
		logging.Int("limit", limit),
		logging.Int("rows", len(recs)),
	)
	return recs, nil
}

// Close releases the connection when OpenLMS created it.
func (s *LMSSource) Close() error {
	if !s.owned || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// withParseTime makes the MySQL driver return DATETIME columns as time.Time.
func withParseTime(dsn string) string {
	if dsn == "" || strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

type gormLogWriter struct {
	logger *slog.Logger
}

func (w gormLogWriter) Printf(format string, args ...any) {
	w.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), logging.String("component", "lms-feed"))
}
