// Package runlock provides run-level mutual exclusion for batch invocations.
// The flock implementation guards a single host; the Redis implementation
// guards every host sharing the Redis instance.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"certissuer/internal/config"
)

// ErrBatchInProgress reports that another invocation holds the run lock.
var ErrBatchInProgress = errors.New("batch already in progress")

// Locker grants exclusive batch runs. TryLock never blocks: ok is false when
// another holder has the lock. release must be called exactly once after a
// successful acquisition.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// Acquire wraps TryLock and turns contention into ErrBatchInProgress.
func Acquire(ctx context.Context, l Locker) (func(), error) {
	release, ok, err := l.TryLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrBatchInProgress
	}
	return release, nil
}

// NewFromConfig builds the configured locker.
func NewFromConfig(cfg *config.Config) (Locker, error) {
	if cfg == nil {
		return nil, errors.New("runlock: config is nil")
	}
	switch cfg.Lock.Backend {
	case config.LockRedis:
		return NewRedis(RedisOptions{
			Addr:     cfg.Lock.RedisAddr,
			Password: cfg.Lock.RedisPassword,
			DB:       cfg.Lock.RedisDB,
			Key:      cfg.Lock.RedisKey,
			TTL:      time.Duration(cfg.Lock.TTLMinutes) * time.Minute,
		}), nil
	case config.LockFlock, "":
		return NewFile(cfg.LockFilePath()), nil
	default:
		return nil, fmt.Errorf("runlock: unsupported backend %q", cfg.Lock.Backend)
	}
}
