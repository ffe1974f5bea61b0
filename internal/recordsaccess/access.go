// Package recordsaccess opens the certificate record store selected by
// configuration and hands back a session that owns its lifetime.
package recordsaccess

import (
	"context"
	"fmt"
	"log/slog"

	"certissuer/internal/config"
	"certissuer/internal/records"
	"certissuer/internal/records/gormstore"
)

// Session represents a record store handle and its cleanup function.
type Session struct {
	Store   records.Store
	Backend string
	close   func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open connects to the backend named by cfg.Records.Backend.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Session, error) {
	if cfg == nil {
		return Session{}, fmt.Errorf("open record store: config is nil")
	}
	switch cfg.Records.Backend {
	case config.RecordsSQLite:
		store, err := records.OpenSQLite(ctx, cfg.Records.SQLitePath)
		if err != nil {
			return Session{}, fmt.Errorf("open record store: %w", err)
		}
		return Session{Store: store, Backend: cfg.Records.Backend, close: store.Close}, nil
	case config.RecordsMySQL, config.RecordsPostgres:
		opts := gormstore.Options{
			Dialect: gormstore.DialectPostgres,
			DSN:     cfg.Records.DSN,
			Logger:  logger,
		}
		if cfg.Records.Backend == config.RecordsMySQL {
			opts.Dialect = gormstore.DialectMySQL
			opts.TablePrefix = cfg.Feed.TablePrefix
		}
		store, err := gormstore.Open(ctx, opts)
		if err != nil {
			return Session{}, fmt.Errorf("open record store: %w", err)
		}
		return Session{Store: store, Backend: cfg.Records.Backend, close: store.Close}, nil
	default:
		return Session{}, fmt.Errorf("open record store: unsupported backend %q", cfg.Records.Backend)
	}
}
