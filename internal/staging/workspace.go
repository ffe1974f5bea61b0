package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"certissuer/internal/candidate"
	"certissuer/internal/textutil"
)

// Run is the directory holding every candidate workspace of one batch.
type Run struct {
	ID   string
	Path string
}

// NewRun creates <stagingDir>/<runID>.
func NewRun(stagingDir, runID string) (*Run, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, fmt.Errorf("staging directory not configured")
	}
	id := textutil.SanitizeToken(runID)
	path := filepath.Join(stagingDir, id)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	return &Run{ID: id, Path: path}, nil
}

// Workspace creates a fresh directory for one candidate attempt.
func (r *Run) Workspace(key candidate.Key, code string) (string, error) {
	name := fmt.Sprintf("%d-%d-%s", key.StudentID, key.CourseID, textutil.SanitizeToken(code))
	path := filepath.Join(r.Path, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	return path, nil
}

// Remove deletes the run directory and anything left in it.
func (r *Run) Remove() error {
	if r == nil || r.Path == "" {
		return nil
	}
	return os.RemoveAll(r.Path)
}
