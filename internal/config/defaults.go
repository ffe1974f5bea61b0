package config

// Backend names accepted by the archive, records, feed, and lock sections.
const (
	ArchiveDrive = "drive"
	ArchiveOSS   = "oss"

	RecordsSQLite   = "sqlite"
	RecordsMySQL    = "mysql"
	RecordsPostgres = "postgres"

	FeedLMS  = "lms"
	FeedFile = "file"

	LockFlock = "flock"
	LockRedis = "redis"
)

// MaxBatchLimit caps how many candidates one invocation may process.
const MaxBatchLimit = 50

const (
	defaultConfigPath            = "~/.config/certissuer/config.toml"
	defaultStagingDir            = "~/.local/share/certissuer/staging"
	defaultLogDir                = "~/.local/share/certissuer/logs"
	defaultAssetsDir             = "~/.local/share/certissuer/assets"
	defaultSQLiteName            = "certificates.db"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 60
	defaultAPIBind               = "127.0.0.1:7488"
	defaultScheduleSpec          = "@every 4h"
	defaultMaxAttempts           = 5
	defaultMinPassingScore       = 15
	defaultClaimTimeoutMinutes   = 30
	defaultStaleWorkspaceMinutes = 120
	defaultArchiveTimeoutSeconds = 120
	defaultLockTTLMinutes        = 60
	defaultRedisKey              = "certissuer:batch-lock"
	defaultTablePrefix           = "wp_"
	defaultNationalIDMetaKey     = "dni"
	defaultSignatureReason       = "Certificate issuance"
)

// defaultCourses applies when the config file declares neither [courses] nor
// [assets.syllabi]; maps are not seeded in Default so decoded tables replace
// rather than merge.
func defaultCourses() (courses, syllabi map[string]string) {
	return map[string]string{"Primeros Auxilios": "syllabus_primeros_auxilios"},
		map[string]string{"syllabus_primeros_auxilios": "syllabus_primeros_auxilios.png"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			AssetsDir:  defaultAssetsDir,
		},
		Assets: Assets{
			Slide1: "Diapositiva1.png",
			Slide2: "Diapositiva2.png",
			Logo:   "logo.png",
		},
		Fonts: Fonts{
			Nunito:  "fonts/Nunito-Italic-VariableFont_wght.ttf",
			Arimo:   "fonts/Arimo-Italic-VariableFont_wght.ttf",
			DMSerif: "fonts/DMSerifText-Regular.ttf",
		},
		Signature: Signature{
			Certificate: "signature/public.crt",
			PrivateKey:  "signature/private.key",
			Reason:      defaultSignatureReason,
		},
		Archive: Archive{
			Backend:        ArchiveDrive,
			TimeoutSeconds: defaultArchiveTimeoutSeconds,
		},
		Records: Records{
			Backend: RecordsSQLite,
		},
		Feed: Feed{
			Source:        FeedLMS,
			TablePrefix:   defaultTablePrefix,
			NationalIDKey: defaultNationalIDMetaKey,
		},
		Pipeline: Pipeline{
			BatchLimit:            MaxBatchLimit,
			MaxAttempts:           defaultMaxAttempts,
			MinPassingScore:       defaultMinPassingScore,
			ClaimTimeoutMinutes:   defaultClaimTimeoutMinutes,
			StaleWorkspaceMinutes: defaultStaleWorkspaceMinutes,
		},
		Lock: Lock{
			Backend:    LockFlock,
			RedisKey:   defaultRedisKey,
			TTLMinutes: defaultLockTTLMinutes,
		},
		Schedule: Schedule{
			Spec: defaultScheduleSpec,
		},
		Daemon: Daemon{
			APIBind: defaultAPIBind,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
