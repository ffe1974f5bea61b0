package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

func (c *Config) normalize(configDir string) error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.loadEnvFile(configDir); err != nil {
		return err
	}
	if err := c.normalizeAssets(); err != nil {
		return err
	}
	c.normalizeSignature()
	c.normalizeArchive()
	if err := c.normalizeRecords(); err != nil {
		return err
	}
	if err := c.normalizeFeed(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeLock()
	c.normalizeDaemon()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.AssetsDir, err = expandPath(c.Paths.AssetsDir); err != nil {
		return fmt.Errorf("paths.assets_dir: %w", err)
	}
	return nil
}

// loadEnvFile reads KEY=VALUE secrets without overriding variables already
// present in the environment. A missing default file is not an error.
func (c *Config) loadEnvFile(configDir string) error {
	path := strings.TrimSpace(c.Paths.EnvFile)
	explicit := path != ""
	if !explicit {
		if configDir == "" {
			return nil
		}
		path = filepath.Join(configDir, ".env")
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("paths.env_file: %w", err)
	}
	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("paths.env_file: %w", err)
	}
	if err := godotenv.Load(expanded); err != nil {
		return fmt.Errorf("load env file %s: %w", expanded, err)
	}
	c.Paths.EnvFile = expanded
	return nil
}

func (c *Config) normalizeAssets() error {
	c.Assets.Slide1 = c.AssetPath(c.Assets.Slide1)
	c.Assets.Slide2 = c.AssetPath(c.Assets.Slide2)
	c.Assets.Logo = c.AssetPath(c.Assets.Logo)
	if len(c.Courses) == 0 && len(c.Assets.Syllabi) == 0 {
		c.Courses, c.Assets.Syllabi = defaultCourses()
	}
	syllabi := make(map[string]string, len(c.Assets.Syllabi))
	for key, ref := range c.Assets.Syllabi {
		key = strings.TrimSpace(key)
		if key == "" {
			return errors.New("assets.syllabi: empty key")
		}
		syllabi[key] = c.AssetPath(ref)
	}
	c.Assets.Syllabi = syllabi
	courses := make(map[string]string, len(c.Courses))
	for name, key := range c.Courses {
		courses[strings.TrimSpace(name)] = strings.TrimSpace(key)
	}
	c.Courses = courses
	c.Fonts.Nunito = c.AssetPath(c.Fonts.Nunito)
	c.Fonts.Arimo = c.AssetPath(c.Fonts.Arimo)
	c.Fonts.DMSerif = c.AssetPath(c.Fonts.DMSerif)
	return nil
}

func (c *Config) normalizeSignature() {
	c.Signature.Certificate = c.AssetPath(c.Signature.Certificate)
	c.Signature.PrivateKey = c.AssetPath(c.Signature.PrivateKey)
	if c.Signature.Passphrase == "" {
		if value, ok := os.LookupEnv("CERTISSUER_SIGNING_PASSPHRASE"); ok {
			c.Signature.Passphrase = value
		}
	}
	c.Signature.Name = strings.TrimSpace(c.Signature.Name)
	if c.Signature.Name == "" {
		c.Signature.Name = strings.TrimSpace(c.Issuer.Name)
	}
	c.Signature.Reason = strings.TrimSpace(c.Signature.Reason)
	if c.Signature.Reason == "" {
		c.Signature.Reason = defaultSignatureReason
	}
	c.Verification.BaseURL = strings.TrimSpace(c.Verification.BaseURL)
	c.Issuer.Name = strings.TrimSpace(c.Issuer.Name)
}

func (c *Config) normalizeArchive() {
	c.Archive.Backend = strings.ToLower(strings.TrimSpace(c.Archive.Backend))
	if c.Archive.Backend == "" {
		c.Archive.Backend = ArchiveDrive
	}
	if c.Archive.TimeoutSeconds <= 0 {
		c.Archive.TimeoutSeconds = defaultArchiveTimeoutSeconds
	}
	c.Archive.Drive.CredentialsFile = strings.TrimSpace(c.Archive.Drive.CredentialsFile)
	if c.Archive.Drive.CredentialsFile == "" {
		if value, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS"); ok {
			c.Archive.Drive.CredentialsFile = strings.TrimSpace(value)
		}
	}
	if c.Archive.Drive.CredentialsFile != "" {
		if expanded, err := expandPath(c.Archive.Drive.CredentialsFile); err == nil {
			c.Archive.Drive.CredentialsFile = expanded
		}
	}
	c.Archive.Drive.RootFolderID = strings.TrimSpace(c.Archive.Drive.RootFolderID)

	oss := &c.Archive.OSS
	oss.Endpoint = strings.TrimSpace(oss.Endpoint)
	oss.Bucket = strings.TrimSpace(oss.Bucket)
	oss.Prefix = strings.Trim(strings.TrimSpace(oss.Prefix), "/")
	oss.PublicBaseURL = strings.TrimRight(strings.TrimSpace(oss.PublicBaseURL), "/")
	if oss.AccessKeyID == "" {
		oss.AccessKeyID = strings.TrimSpace(os.Getenv("ALI_OSS_ACCESS_KEY"))
	}
	if oss.AccessKeySecret == "" {
		oss.AccessKeySecret = strings.TrimSpace(os.Getenv("ALI_OSS_SECRET_KEY"))
	}
}

func (c *Config) normalizeRecords() error {
	c.Records.Backend = strings.ToLower(strings.TrimSpace(c.Records.Backend))
	if c.Records.Backend == "" {
		c.Records.Backend = RecordsSQLite
	}
	if c.Records.DSN == "" {
		c.Records.DSN = strings.TrimSpace(os.Getenv("CERTISSUER_RECORDS_DSN"))
	}
	if strings.TrimSpace(c.Records.SQLitePath) == "" {
		c.Records.SQLitePath = filepath.Join(c.Paths.LogDir, defaultSQLiteName)
	}
	var err error
	if c.Records.SQLitePath, err = expandPath(c.Records.SQLitePath); err != nil {
		return fmt.Errorf("records.sqlite_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeFeed() error {
	c.Feed.Source = strings.ToLower(strings.TrimSpace(c.Feed.Source))
	if c.Feed.Source == "" {
		c.Feed.Source = FeedLMS
	}
	if c.Feed.DSN == "" {
		c.Feed.DSN = strings.TrimSpace(os.Getenv("CERTISSUER_LMS_DSN"))
	}
	c.Feed.TablePrefix = strings.TrimSpace(c.Feed.TablePrefix)
	c.Feed.NationalIDKey = strings.TrimSpace(c.Feed.NationalIDKey)
	if c.Feed.NationalIDKey == "" {
		c.Feed.NationalIDKey = defaultNationalIDMetaKey
	}
	if c.Feed.FilePath != "" {
		var err error
		if c.Feed.FilePath, err = expandPath(c.Feed.FilePath); err != nil {
			return fmt.Errorf("feed.file_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.BatchLimit <= 0 {
		c.Pipeline.BatchLimit = MaxBatchLimit
	}
	if c.Pipeline.MaxAttempts <= 0 {
		c.Pipeline.MaxAttempts = defaultMaxAttempts
	}
	if c.Pipeline.ClaimTimeoutMinutes <= 0 {
		c.Pipeline.ClaimTimeoutMinutes = defaultClaimTimeoutMinutes
	}
	if c.Pipeline.StaleWorkspaceMinutes <= 0 {
		c.Pipeline.StaleWorkspaceMinutes = defaultStaleWorkspaceMinutes
	}
}

func (c *Config) normalizeLock() {
	c.Lock.Backend = strings.ToLower(strings.TrimSpace(c.Lock.Backend))
	if c.Lock.Backend == "" {
		c.Lock.Backend = LockFlock
	}
	c.Lock.RedisAddr = strings.TrimSpace(c.Lock.RedisAddr)
	if c.Lock.RedisPassword == "" {
		c.Lock.RedisPassword = os.Getenv("CERTISSUER_REDIS_PASSWORD")
	}
	if strings.TrimSpace(c.Lock.RedisKey) == "" {
		c.Lock.RedisKey = defaultRedisKey
	}
	if c.Lock.TTLMinutes <= 0 {
		c.Lock.TTLMinutes = defaultLockTTLMinutes
	}
	c.Schedule.Spec = strings.TrimSpace(c.Schedule.Spec)
	if c.Schedule.Spec == "" {
		c.Schedule.Spec = defaultScheduleSpec
	}
	c.Schedule.Timezone = strings.TrimSpace(c.Schedule.Timezone)
}

func (c *Config) normalizeDaemon() {
	c.Daemon.APIBind = strings.TrimSpace(c.Daemon.APIBind)
	if c.Daemon.APIBind == "" {
		c.Daemon.APIBind = defaultAPIBind
	}
	if c.Daemon.APIToken == "" {
		c.Daemon.APIToken = strings.TrimSpace(os.Getenv("CERTISSUER_API_TOKEN"))
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
