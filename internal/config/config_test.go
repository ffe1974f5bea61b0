package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"certissuer/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "certissuer", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	wantSlide := filepath.Join(tempHome, ".local", "share", "certissuer", "assets", "Diapositiva1.png")
	if cfg.Assets.Slide1 != wantSlide {
		t.Fatalf("unexpected slide1 path: %q", cfg.Assets.Slide1)
	}
	if cfg.Records.SQLitePath != filepath.Join(cfg.Paths.LogDir, "certificates.db") {
		t.Fatalf("unexpected sqlite path: %q", cfg.Records.SQLitePath)
	}
	if cfg.Pipeline.BatchLimit != config.MaxBatchLimit {
		t.Fatalf("expected batch limit %d, got %d", config.MaxBatchLimit, cfg.Pipeline.BatchLimit)
	}
	if cfg.Pipeline.MaxAttempts != 5 {
		t.Fatalf("unexpected max attempts: %d", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Schedule.Spec != "@every 4h" {
		t.Fatalf("unexpected schedule: %q", cfg.Schedule.Spec)
	}
	if key := cfg.Courses["Primeros Auxilios"]; key != "syllabus_primeros_auxilios" {
		t.Fatalf("expected default course mapping, got %q", key)
	}
}

func TestLoadCustomConfigReplacesCourseTable(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(tempHome, "config.toml")
	payload := map[string]any{
		"paths": map[string]any{"assets_dir": filepath.Join(tempHome, "assets")},
		"assets": map[string]any{
			"syllabi": map[string]string{"excel": "excel.png"},
		},
		"courses": map[string]string{"Excel Avanzado": "excel"},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if len(cfg.Courses) != 1 {
		t.Fatalf("expected only the declared course, got %v", cfg.Courses)
	}
	if got := cfg.Assets.Syllabi["excel"]; got != filepath.Join(tempHome, "assets", "excel.png") {
		t.Fatalf("unexpected syllabus path: %q", got)
	}
}

func TestValidateRejectsCourseWithoutSyllabus(t *testing.T) {
	cfg := config.Default()
	cfg.Courses = map[string]string{"Excel": "missing"}
	cfg.Assets.Syllabi = map[string]string{"other": "other.png"}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "not declared in assets.syllabi") {
		t.Fatalf("expected syllabus mapping error, got %v", err)
	}
}

func TestValidateBatchLimitBounds(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.BatchLimit = config.MaxBatchLimit + 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for batch limit above cap")
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Archive.Backend = "s3"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "archive.backend") {
		t.Fatalf("expected archive backend error, got %v", err)
	}
}

func TestValidateForBatchRequiresCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Verification.BaseURL = "https://example.org/verify"
	cfg.Issuer.Name = "Academy"
	cfg.Feed.DSN = "user:pass@tcp(localhost:3306)/lms"
	err := cfg.ValidateForBatch()
	if err == nil || !strings.Contains(err.Error(), "credentials_file") {
		t.Fatalf("expected drive credentials error, got %v", err)
	}

	cfg.Archive.Drive.CredentialsFile = "/tmp/sa.json"
	cfg.Archive.Drive.RootFolderID = "root"
	if err := cfg.ValidateForBatch(); err != nil {
		t.Fatalf("expected batch config valid, got %v", err)
	}

	cfg.Verification.BaseURL = "not a url"
	if err := cfg.ValidateForBatch(); err == nil {
		t.Fatal("expected error for relative verification url")
	}
}

func TestEnvFileSuppliesSecrets(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CERTISSUER_SIGNING_PASSPHRASE", "")
	os.Unsetenv("CERTISSUER_SIGNING_PASSPHRASE")

	dir := filepath.Join(tempHome, "cfg")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CERTISSUER_SIGNING_PASSPHRASE=s3cret\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[issuer]\nname = \"Academy\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("CERTISSUER_SIGNING_PASSPHRASE") })

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Signature.Passphrase != "s3cret" {
		t.Fatalf("expected passphrase from .env, got %q", cfg.Signature.Passphrase)
	}
	if cfg.Signature.Name != "Academy" {
		t.Fatalf("expected signer name to default to issuer, got %q", cfg.Signature.Name)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	path := filepath.Join(tempHome, "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Courses["Excel Avanzado"] != "syllabus_excel" {
		t.Fatalf("unexpected sample courses: %v", cfg.Courses)
	}
}

func TestValidateRejectsBadScheduleSpec(t *testing.T) {
	cfg := config.Default()
	cfg.Schedule.Spec = "every four hours"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "schedule.spec") {
		t.Fatalf("expected schedule spec error, got %v", err)
	}
}
