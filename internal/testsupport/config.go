package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"filmroom/internal/config"
)

// ConfigOption adjusts the config built by NewConfig.
type ConfigOption func(testing.TB, *config.Config)

// NewConfig returns a validated default config rooted in a fresh temp dir:
// runs/ for output, logs/ for logs, and corpus/vectors.db for the sqlite
// store. The API key is "test" unless overridden.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Gemini.APIKey = "test"
	cfg.Paths.OutputDir = filepath.Join(base, "runs")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.VectorStore.Path = filepath.Join(base, "corpus", "vectors.db")

	for _, opt := range opts {
		opt(t, &cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// BaseDir returns the temp directory NewConfig rooted cfg in.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}

func WithAPIKey(key string) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) { cfg.Gemini.APIKey = key }
}

// WithMotion sets the motion calibration.
func WithMotion(ratio float64, pixelDiff, blurKernel int) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) {
		cfg.Motion.RatioThreshold = ratio
		cfg.Motion.PixelDiffThreshold = pixelDiff
		cfg.Motion.BlurKernelSize = blurKernel
	}
}

func WithTopK(k int) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) { cfg.VectorStore.TopK = k }
}

// WithStubbedBinaries installs no-op executables (default ffmpeg and
// ffprobe) in <base>/bin and puts that directory first on PATH for the
// duration of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	if len(names) == 0 {
		names = []string{"ffmpeg", "ffprobe"}
	}
	return func(t testing.TB, cfg *config.Config) {
		binDir := filepath.Join(BaseDir(cfg), "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
