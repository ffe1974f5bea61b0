package feed_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"certissuer/internal/feed"
)

func openLMSFixture(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "lms.db")), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	ddl := []string{
		`CREATE TABLE wp_users (ID INTEGER PRIMARY KEY, display_name TEXT)`,
		`CREATE TABLE wp_usermeta (umeta_id INTEGER PRIMARY KEY, user_id INTEGER, meta_key TEXT, meta_value TEXT)`,
		`CREATE TABLE wp_posts (ID INTEGER PRIMARY KEY, post_title TEXT)`,
		`CREATE TABLE wp_tutor_quiz_attempts (attempt_id INTEGER PRIMARY KEY, user_id INTEGER, course_id INTEGER, earned_marks REAL, attempt_started_at DATETIME)`,
		`CREATE TABLE wp_certificados_generados (id INTEGER PRIMARY KEY, student_id INTEGER, course_id INTEGER, status TEXT)`,
	}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create fixture: %v", err)
		}
	}
	return db
}

func mustExec(t *testing.T, db *gorm.DB, sql string, args ...any) {
	t.Helper()
	if err := db.Exec(sql, args...).Error; err != nil {
		t.Fatalf("exec %q: %v", sql, err)
	}
}

func seedLMS(t *testing.T, db *gorm.DB) {
	t.Helper()
	mustExec(t, db, `INSERT INTO wp_users (ID, display_name) VALUES (1, 'Ana Pérez'), (2, 'Luis Rojas'), (3, 'Eva Soto')`)
	mustExec(t, db, `INSERT INTO wp_usermeta (user_id, meta_key, meta_value) VALUES (1, 'dni', '70123456'), (2, 'phone', '999')`)
	mustExec(t, db, `INSERT INTO wp_posts (ID, post_title) VALUES (7, 'Primeros Auxilios'), (8, 'Excel Avanzado')`)

	day := func(d int) time.Time { return time.Date(2024, 3, d, 9, 0, 0, 0, time.UTC) }
	attempts := []struct {
		user, course int
		marks        float64
		at           time.Time
	}{
		{1, 7, 16, day(1)},
		{1, 7, 19, day(2)},
		{1, 7, 19, day(5)},
		{1, 7, 12, day(9)},
		{2, 7, 17, day(3)},
		{2, 8, 14, day(4)},
		{3, 8, 15, day(6)},
	}
	for _, a := range attempts {
		mustExec(t, db, `INSERT INTO wp_tutor_quiz_attempts (user_id, course_id, earned_marks, attempt_started_at) VALUES (?, ?, ?, ?)`,
			a.user, a.course, a.marks, a.at)
	}
}

func TestLMSSourceSelectsBestLatestAttempt(t *testing.T) {
	db := openLMSFixture(t)
	seedLMS(t, db)

	src, err := feed.NewLMSSource(db, feed.LMSOptions{TablePrefix: "wp_", MinPassingScore: 15})
	if err != nil {
		t.Fatalf("NewLMSSource: %v", err)
	}
	recs, err := src.Pending(context.Background(), 0, 50)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %+v", len(recs), recs)
	}

	// ordered by assessment date
	if recs[0].StudentID != 2 || recs[1].StudentID != 1 || recs[2].StudentID != 3 {
		t.Fatalf("unexpected order: %+v", recs)
	}
	ana := recs[1]
	if ana.Score != 19 || ana.AssessedAt.Day() != 5 {
		t.Fatalf("expected latest best attempt for Ana, got %+v", ana)
	}
	if ana.NationalID == nil || *ana.NationalID != "70123456" {
		t.Fatalf("expected dni meta value, got %v", ana.NationalID)
	}
	if recs[0].NationalID != nil {
		t.Fatal("expected no national id when the meta key is absent")
	}
	if recs[2].CourseName != "Excel Avanzado" {
		t.Fatalf("unexpected course name %q", recs[2].CourseName)
	}
}

func TestLMSSourcePagesAndExcludesIssued(t *testing.T) {
	db := openLMSFixture(t)
	seedLMS(t, db)
	mustExec(t, db, `INSERT INTO wp_certificados_generados (student_id, course_id, status) VALUES (1, 7, 'completed'), (3, 8, 'failed')`)

	src, err := feed.NewLMSSource(db, feed.LMSOptions{TablePrefix: "wp_", MinPassingScore: 15, ExcludeIssued: true})
	if err != nil {
		t.Fatalf("NewLMSSource: %v", err)
	}
	page1, err := src.Pending(context.Background(), 0, 1)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	page2, err := src.Pending(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(page1) != 1 || page1[0].StudentID != 2 {
		t.Fatalf("unexpected first page %+v", page1)
	}
	if len(page2) != 1 || page2[0].StudentID != 3 {
		t.Fatalf("failed rows stay eligible, got %+v", page2)
	}
}

func TestLMSSourceRejectsUnsafePrefix(t *testing.T) {
	if _, err := feed.NewLMSSource(nil, feed.LMSOptions{TablePrefix: "wp_; DROP"}); err == nil {
		t.Fatal("expected invalid prefix error")
	}
}
