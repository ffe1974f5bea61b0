package runlock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// FileLock is an advisory file lock. The kernel drops it when the process
// exits, so a crashed run never leaves the lock held.
type FileLock struct {
	path string
	mu   sync.Mutex
	held bool
}

// NewFile returns a lock on path.
func NewFile(path string) *FileLock {
	return &FileLock{path: path}
}

// Path returns the lock file location.
func (l *FileLock) Path() string { return l.path }

func (l *FileLock) TryLock(_ context.Context) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// flock locks are per open file description, so a second TryLock in the
	// same process would succeed without this guard.
	if l.held {
		return nil, false, nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, false, fmt.Errorf("create lock directory: %w", err)
	}
	fl := flock.New(l.path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	l.held = true
	var once sync.Once
	release := func() {
		once.Do(func() {
			_ = fl.Unlock()
			l.mu.Lock()
			l.held = false
			l.mu.Unlock()
		})
	}
	return release, true, nil
}
