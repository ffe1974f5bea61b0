package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"certissuer/internal/config"
)

// StagingLeftover creates <staging_dir>/<run>/certificado.pdf holding size
// bytes, as a crashed run would leave it, and backdates the run directory by
// age. It returns the run directory.
func StagingLeftover(t testing.TB, cfg *config.Config, run string, size int, age time.Duration) string {
	t.Helper()

	dir := filepath.Join(cfg.Paths.StagingDir, run)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if size < 1 {
		size = 1
	}
	data := append([]byte("%PDF-"), bytes.Repeat([]byte{'x'}, size)...)[:size]
	if err := os.WriteFile(filepath.Join(dir, "certificado.pdf"), data, 0o644); err != nil {
		t.Fatalf("write leftover: %v", err)
	}
	if age > 0 {
		old := time.Now().Add(-age)
		if err := os.Chtimes(dir, old, old); err != nil {
			t.Fatalf("backdate %s: %v", dir, err)
		}
	}
	return dir
}
