package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is structurally usable. Credentials and
// signing material are checked separately by ValidateForBatch so read-only
// commands work on hosts that never issue certificates.
func (c *Config) Validate() error {
	if err := c.validateCourses(); err != nil {
		return err
	}
	if err := c.validateBackends(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateForBatch checks everything a batch run needs beyond Validate.
func (c *Config) ValidateForBatch() error {
	if c.Verification.BaseURL == "" {
		return errors.New("verification.base_url must be set")
	}
	u, err := url.Parse(c.Verification.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("verification.base_url %q must be an absolute URL", c.Verification.BaseURL)
	}
	if c.Issuer.Name == "" {
		return errors.New("issuer.name must be set")
	}
	if strings.TrimSpace(c.Signature.Certificate) == "" || strings.TrimSpace(c.Signature.PrivateKey) == "" {
		return errors.New("signature.certificate and signature.private_key must be set")
	}
	switch c.Archive.Backend {
	case ArchiveDrive:
		if c.Archive.Drive.CredentialsFile == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = defaultConfigPath
			}
			return fmt.Errorf("archive.drive.credentials_file is required. Set GOOGLE_APPLICATION_CREDENTIALS or edit %s (create with 'certissuer config init')", defaultPath)
		}
		if c.Archive.Drive.RootFolderID == "" {
			return errors.New("archive.drive.root_folder_id must be set")
		}
	case ArchiveOSS:
		oss := c.Archive.OSS
		if oss.Endpoint == "" || oss.Bucket == "" {
			return errors.New("archive.oss.endpoint and archive.oss.bucket must be set")
		}
		if oss.AccessKeyID == "" || oss.AccessKeySecret == "" {
			return errors.New("archive.oss credentials missing (set ALI_OSS_ACCESS_KEY/ALI_OSS_SECRET_KEY)")
		}
	}
	if c.Records.Backend != RecordsSQLite && c.Records.DSN == "" {
		return fmt.Errorf("records.dsn must be set for backend %q (or export CERTISSUER_RECORDS_DSN)", c.Records.Backend)
	}
	switch c.Feed.Source {
	case FeedLMS:
		if c.Feed.DSN == "" {
			return errors.New("feed.dsn must be set for the lms source (or export CERTISSUER_LMS_DSN)")
		}
	case FeedFile:
		if c.Feed.FilePath == "" {
			return errors.New("feed.file_path must be set for the file source")
		}
	}
	if c.Lock.Backend == LockRedis && c.Lock.RedisAddr == "" {
		return errors.New("lock.redis_addr must be set when lock.backend is redis")
	}
	return nil
}

func (c *Config) validateCourses() error {
	names := make([]string, 0, len(c.Courses))
	for name := range c.Courses {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == "" {
			return errors.New("courses: empty course name")
		}
		key := c.Courses[name]
		if _, ok := c.Assets.Syllabi[key]; !ok {
			return fmt.Errorf("courses: %q maps to syllabus %q which is not declared in assets.syllabi", name, key)
		}
	}
	return nil
}

func (c *Config) validateBackends() error {
	if err := oneOf("archive.backend", c.Archive.Backend, ArchiveDrive, ArchiveOSS); err != nil {
		return err
	}
	if err := oneOf("records.backend", c.Records.Backend, RecordsSQLite, RecordsMySQL, RecordsPostgres); err != nil {
		return err
	}
	if err := oneOf("feed.source", c.Feed.Source, FeedLMS, FeedFile); err != nil {
		return err
	}
	if err := oneOf("lock.backend", c.Lock.Backend, LockFlock, LockRedis); err != nil {
		return err
	}
	if c.Feed.ExcludeIssued && c.Records.Backend != RecordsMySQL {
		return errors.New("feed.exclude_issued requires records.backend = \"mysql\" in the LMS database")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.BatchLimit < 1 || c.Pipeline.BatchLimit > MaxBatchLimit {
		return fmt.Errorf("pipeline.batch_limit must be between 1 and %d", MaxBatchLimit)
	}
	if c.Pipeline.MaxAttempts < 1 {
		return errors.New("pipeline.max_attempts must be positive")
	}
	if c.Pipeline.MinPassingScore < 0 {
		return errors.New("pipeline.min_passing_score must not be negative")
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if _, err := cron.ParseStandard(c.Schedule.Spec); err != nil {
		return fmt.Errorf("schedule.spec: %w", err)
	}
	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("schedule.timezone: %w", err)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	if err := oneOf("logging.format", c.Logging.Format, "console", "json"); err != nil {
		return err
	}
	return oneOf("logging.level", c.Logging.Level, "debug", "info", "warn", "error")
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s (got %q)", field, strings.Join(allowed, ", "), value)
}

// ClaimTimeout is how long a processing claim stays valid before another run may take it.
func (c *Config) ClaimTimeout() time.Duration {
	return time.Duration(c.Pipeline.ClaimTimeoutMinutes) * time.Minute
}

// StaleWorkspaceAge is the age after which leftover staging directories are swept.
func (c *Config) StaleWorkspaceAge() time.Duration {
	return time.Duration(c.Pipeline.StaleWorkspaceMinutes) * time.Minute
}
