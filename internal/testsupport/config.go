package testsupport

import (
	"path/filepath"
	"testing"

	"vsub/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LedgerPath = filepath.Join(base, "state", "ledger.db")
	cfgVal.Logging.Level = "debug"

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

// WithoutLedger disables the run history database.
func WithoutLedger() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.LedgerPath = ""
	}
}

// WithWorkers sets the transcription worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcription.Workers = n
	}
}

// WithCacheKey sets the workspace keying mode.
func WithCacheKey(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Key = mode
	}
}

// WithSubtitleEncoding sets the output encoding.
func WithSubtitleEncoding(label string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Subtitles.Encoding = label
	}
}

// BaseDir returns the temp directory backing a config built by NewConfig.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
