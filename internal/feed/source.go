package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"certissuer/internal/candidate"
	"certissuer/internal/config"
)

// Source yields pending candidates in a stable order.
type Source interface {
	Pending(ctx context.Context, offset, limit int) ([]candidate.Record, error)
	Close() error
}

// NewFromConfig opens the configured candidate source.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("feed: config is nil")
	}
	switch cfg.Feed.Source {
	case config.FeedFile:
		return NewFileSource(cfg.Feed.FilePath), nil
	case config.FeedLMS, "":
		return OpenLMS(ctx, LMSOptions{
			DSN:             cfg.Feed.DSN,
			TablePrefix:     cfg.Feed.TablePrefix,
			NationalIDKey:   cfg.Feed.NationalIDKey,
			MinPassingScore: cfg.Pipeline.MinPassingScore,
			ExcludeIssued:   cfg.Feed.ExcludeIssued,
			Logger:          logger,
		})
	default:
		return nil, fmt.Errorf("feed: unsupported source %q", cfg.Feed.Source)
	}
}

func sortRecords(recs []candidate.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.AssessedAt.Equal(b.AssessedAt) {
			return a.AssessedAt.Before(b.AssessedAt)
		}
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		return a.CourseID < b.CourseID
	})
}

func page(recs []candidate.Record, offset, limit int) []candidate.Record {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(recs) {
		return nil
	}
	end := len(recs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]candidate.Record, end-offset)
	copy(out, recs[offset:end])
	return out
}
