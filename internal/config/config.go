package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	AssetsDir  string `toml:"assets_dir"`
	EnvFile    string `toml:"env_file"`
}

// Assets names the template images. Relative paths resolve against paths.assets_dir.
type Assets struct {
	Slide1  string            `toml:"slide1"`
	Slide2  string            `toml:"slide2"`
	Logo    string            `toml:"logo"`
	Syllabi map[string]string `toml:"syllabi"`
}

// Fonts names the TrueType faces used by the layout table.
type Fonts struct {
	Nunito  string `toml:"nunito"`
	Arimo   string `toml:"arimo"`
	DMSerif string `toml:"dm_serif"`
}

// Signature contains the PDF signing material and signer metadata.
type Signature struct {
	Certificate string `toml:"certificate"`
	PrivateKey  string `toml:"private_key"`
	Passphrase  string `toml:"passphrase"`
	Name        string `toml:"name"`
	Location    string `toml:"location"`
	Reason      string `toml:"reason"`
	ContactInfo string `toml:"contact_info"`
}

// Verification configures the public verification page encoded in the QR.
type Verification struct {
	BaseURL string `toml:"base_url"`
}

// Issuer identifies the organization recorded as certificate issuer.
type Issuer struct {
	Name string `toml:"name"`
}

// Drive configures the Google Drive archive backend.
type Drive struct {
	CredentialsFile string `toml:"credentials_file"`
	RootFolderID    string `toml:"root_folder_id"`
}

// OSS configures the Alibaba Cloud OSS archive backend.
type OSS struct {
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	AccessKeySecret string `toml:"access_key_secret"`
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix"`
	PublicBaseURL   string `toml:"public_base_url"`
}

// Archive selects and configures the remote store for signed PDFs.
type Archive struct {
	Backend        string `toml:"backend"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Drive          Drive  `toml:"drive"`
	OSS            OSS    `toml:"oss"`
}

// Records selects the certificate record store.
type Records struct {
	Backend    string `toml:"backend"`
	SQLitePath string `toml:"sqlite_path"`
	DSN        string `toml:"dsn"`
}

// Feed selects where eligible candidates come from.
type Feed struct {
	Source        string `toml:"source"`
	DSN           string `toml:"dsn"`
	TablePrefix   string `toml:"table_prefix"`
	NationalIDKey string `toml:"national_id_meta_key"`
	ExcludeIssued bool   `toml:"exclude_issued"`
	FilePath      string `toml:"file_path"`
}

// Pipeline contains batch and retry policy.
type Pipeline struct {
	BatchLimit            int     `toml:"batch_limit"`
	MaxAttempts           int     `toml:"max_attempts"`
	MinPassingScore       float64 `toml:"min_passing_score"`
	ClaimTimeoutMinutes   int     `toml:"claim_timeout_minutes"`
	StaleWorkspaceMinutes int     `toml:"stale_workspace_minutes"`
}

// Lock configures run-level mutual exclusion.
type Lock struct {
	Backend       string `toml:"backend"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	RedisKey      string `toml:"redis_key"`
	TTLMinutes    int    `toml:"ttl_minutes"`
}

// Schedule configures the periodic trigger.
type Schedule struct {
	Spec       string `toml:"spec"`
	Timezone   string `toml:"timezone"`
	RunOnStart bool   `toml:"run_on_start"`
}

// Daemon contains the control API settings.
type Daemon struct {
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for certissuer.
//
// Configuration sections by subsystem:
//   - Paths: staging, logs, assets, and the optional .env secrets file
//   - Assets/Fonts/Courses: template images, faces, and the course to syllabus table
//   - Signature/Verification/Issuer: document signing and QR payload
//   - Archive: Drive or OSS storage for signed PDFs
//   - Records/Feed: certificate record store and candidate source
//   - Pipeline/Lock/Schedule/Daemon: batch policy and triggers
//   - Logging: log format, level, and retention
type Config struct {
	Paths        Paths             `toml:"paths"`
	Assets       Assets            `toml:"assets"`
	Fonts        Fonts             `toml:"fonts"`
	Courses      map[string]string `toml:"courses"`
	Signature    Signature         `toml:"signature"`
	Verification Verification      `toml:"verification"`
	Issuer       Issuer            `toml:"issuer"`
	Archive      Archive           `toml:"archive"`
	Records      Records           `toml:"records"`
	Feed         Feed              `toml:"feed"`
	Pipeline     Pipeline          `toml:"pipeline"`
	Lock         Lock              `toml:"lock"`
	Schedule     Schedule          `toml:"schedule"`
	Daemon       Daemon            `toml:"daemon"`
	Logging      Logging           `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("certissuer.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for batch and daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StagingDir, c.Paths.LogDir}
	if c.Records.Backend == RecordsSQLite && c.Records.SQLitePath != "" {
		dirs = append(dirs, filepath.Dir(c.Records.SQLitePath))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// AssetPath resolves an asset reference against paths.assets_dir.
func (c *Config) AssetPath(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || filepath.IsAbs(ref) || c.Paths.AssetsDir == "" {
		return ref
	}
	return filepath.Join(c.Paths.AssetsDir, ref)
}

// LockFilePath is the flock path guarding batch runs.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.LogDir, "batch.lock")
}

// DaemonLockPath is the flock path guarding the single daemon instance.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.LogDir, "certissuerd.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
