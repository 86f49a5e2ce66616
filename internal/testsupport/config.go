package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"librarian/internal/config"
)

// ConfigOption adjusts a config built by NewConfig.
type ConfigOption func(t testing.TB, cfg *config.Config)

// NewConfig returns defaults rooted in a fresh temp directory: library,
// data, log and work dirs all live under it and the library exists. AI and
// API layers start disabled; tests enable what they exercise.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Pipeline.EnableAIVerification = false
	cfg.Pipeline.EnableAPILookups = false
	cfg.Metrics.Bind = "127.0.0.1:0"
	mkdir(t, cfg.Paths.LibraryDir)
	for _, opt := range opts {
		opt(t, &cfg)
	}
	return &cfg
}

// BaseDir returns the temp directory NewConfig rooted cfg in.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// WithConfig applies fn to the config.
func WithConfig(fn func(*config.Config)) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) { fn(cfg) }
}

// WithAutoFix sets safety.auto_fix.
func WithAutoFix(enabled bool) ConfigOption {
	return WithConfig(func(cfg *config.Config) { cfg.Safety.AutoFix = enabled })
}

// WithWatchFolder enables watching <base>/incoming.
func WithWatchFolder() ConfigOption {
	return func(t testing.TB, cfg *config.Config) {
		cfg.Watch.Enabled = true
		cfg.Watch.Folder = filepath.Join(BaseDir(cfg), "incoming")
		mkdir(t, cfg.Watch.Folder)
	}
}

// WithStubbedBinaries puts do-nothing executables named names (ffprobe and
// ffmpeg when empty) first on PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, cfg *config.Config) {
		if len(names) == 0 {
			names = []string{"ffprobe", "ffmpeg"}
		}
		bin := filepath.Join(BaseDir(cfg), "bin")
		mkdir(t, bin)
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

func mkdir(t testing.TB, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}
