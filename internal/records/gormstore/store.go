package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"certissuer/internal/records"
	"certissuer/internal/services"
)

// Dialects accepted by Open.
const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Options configures Open.
type Options struct {
	Dialect string
	DSN     string
	// TablePrefix applies to MySQL only, where the table shares the LMS schema.
	TablePrefix string
	Logger      *slog.Logger
}

// Store implements records.Store on gorm.
type Store struct {
	db    *gorm.DB
	table string
	now   func() time.Time
}

var _ records.Store = (*Store)(nil)

// Open connects, applies the schema, and returns a ready store.
func Open(ctx context.Context, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(logWriter{logger: logger}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	var (
		dialector gorm.Dialector
		table     = records.TableName
	)
	switch opts.Dialect {
	case DialectMySQL:
		dialector = mysql.Open(opts.DSN)
		table = opts.TablePrefix + records.TableName
	case DialectPostgres:
		dialector = postgres.Open(opts.DSN)
	case DialectSQLite:
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported records dialect %q", opts.Dialect)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connect %s records database: %w", opts.Dialect, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s records database: %w", opts.Dialect, err)
	}

	if opts.Dialect == DialectPostgres {
		err = runPostgresMigrations(sqlDB, logger)
	} else {
		err = db.WithContext(ctx).Table(table).AutoMigrate(&certificateRow{})
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply records schema: %w", err)
	}

	return &Store{db: db, table: table, now: time.Now}, nil
}

// Table returns the physical table name, including any prefix.
func (s *Store) Table() string {
	return s.table
}

func (s *Store) scoped(ctx context.Context) *gorm.DB {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.db.WithContext(ctx).Table(s.table)
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func persistenceErr(op string, err error) error {
	return services.Wrap(services.ErrPersistence, "recording", op, "", err)
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "duplicate") || strings.Contains(low, "unique constraint")
}

type logWriter struct {
	logger *slog.Logger
}

func (w logWriter) Printf(format string, args ...any) {
	w.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "gorm"))
}
