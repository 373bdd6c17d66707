package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"twitchrec/internal/config"
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
	cfgVal.Streamer = "test_streamer"
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.History.Path = filepath.Join(base, "history.db")
	cfgVal.Developer.Log = filepath.Join(base, "debug.log")
	cfgVal.Recorder.OutputTemplate = filepath.Join(base, "recordings", ":streamer -- :title")
	cfgVal.Recorder.FFmpegBinary = "ffmpeg"
	cfgVal.API.Bind = ""

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

// WithStreamer sets the watched login on the test config.
func WithStreamer(login string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Streamer = login
	}
}

// WithHistory enables the sqlite ledger inside the test directory.
func WithHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = true
	}
}

// WithFFmpegScript writes script as an executable named ffmpeg and points the
// recorder at it.
func WithFFmpegScript(script string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Recorder.FFmpegBinary = WriteScript(b.t, filepath.Join(b.baseDir, "bin"), "ffmpeg", script)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteScript(b.t, binDir, name, FFmpegExitImmediately)
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
