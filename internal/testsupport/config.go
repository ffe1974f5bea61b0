package testsupport

import (
	"path/filepath"
	"testing"

	"certissuer/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Asset and signing paths point inside the temp tree but are only populated
// by WithAssets and WithSigningMaterial.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.AssetsDir = filepath.Join(base, "assets")
	cfgVal.Records.SQLitePath = filepath.Join(base, "logs", "certificates.db")
	cfgVal.Daemon.APIBind = "127.0.0.1:0"
	cfgVal.Verification.BaseURL = "https://academy.example/verificar-certificado/"
	cfgVal.Issuer.Name = "Example Academy"
	cfgVal.Signature.Name = "Example Academy"
	cfgVal.Feed.Source = config.FeedFile
	cfgVal.Feed.FilePath = filepath.Join(base, "candidates.json")

	assets := cfgVal.Paths.AssetsDir
	cfgVal.Assets.Slide1 = filepath.Join(assets, "Diapositiva1.png")
	cfgVal.Assets.Slide2 = filepath.Join(assets, "Diapositiva2.png")
	cfgVal.Assets.Logo = filepath.Join(assets, "logo.png")
	cfgVal.Assets.Syllabi = map[string]string{
		"syllabus_primeros_auxilios": filepath.Join(assets, "syllabus_primeros_auxilios.png"),
		"syllabus_excel":             filepath.Join(assets, "Diapositiva3.png"),
	}
	cfgVal.Courses = map[string]string{
		"Primeros Auxilios": "syllabus_primeros_auxilios",
		"Excel Avanzado":    "syllabus_excel",
	}
	cfgVal.Fonts.Nunito = filepath.Join(assets, "fonts", "nunito.ttf")
	cfgVal.Fonts.Arimo = filepath.Join(assets, "fonts", "arimo.ttf")
	cfgVal.Fonts.DMSerif = filepath.Join(assets, "fonts", "dm_serif.ttf")
	cfgVal.Signature.Certificate = filepath.Join(base, "signature", "public.crt")
	cfgVal.Signature.PrivateKey = filepath.Join(base, "signature", "private.key")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCourse adds a course mapped to a syllabus key; the key is declared when absent.
func WithCourse(name, syllabusKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Courses[name] = syllabusKey
		if _, ok := b.cfg.Assets.Syllabi[syllabusKey]; !ok {
			b.cfg.Assets.Syllabi[syllabusKey] = filepath.Join(b.cfg.Paths.AssetsDir, syllabusKey+".png")
		}
	}
}

// WithMaxAttempts overrides the retry policy.
func WithMaxAttempts(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.MaxAttempts = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
