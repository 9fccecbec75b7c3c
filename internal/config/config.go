package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"filmroom/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains output and log directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Clip controls the analysis window and frame sampling.
type Clip struct {
	StartSeconds    float64   `toml:"start_seconds"`
	DurationSeconds float64   `toml:"duration_seconds"`
	SampleOffsets   []float64 `toml:"sample_offsets"`
	FFmpegBinary    string    `toml:"ffmpeg_binary"`
	FFprobeBinary   string    `toml:"ffprobe_binary"`
	ReencodeCRF     int       `toml:"reencode_crf"`
	ReencodePreset  string    `toml:"reencode_preset"`
}

// Motion holds the frame differencing calibration parameters.
type Motion struct {
	// RatioThreshold is the fraction of changed pixels above which a frame
	// pair counts as motion. Empirically tuned; recalibrate per camera.
	RatioThreshold float64 `toml:"ratio_threshold"`
	// PixelDiffThreshold is the 0-255 intensity delta a pixel must exceed to
	// count as changed.
	PixelDiffThreshold int `toml:"pixel_diff_threshold"`
	// BlurKernelSize is the odd Gaussian kernel edge applied before differencing.
	BlurKernelSize int `toml:"blur_kernel_size"`
}

// Gemini contains generative model connection settings.
type Gemini struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	ClassifyModel  string `toml:"classify_model"`
	FinalModel     string `toml:"final_model"`
	EmbedModel     string `toml:"embed_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Retry configures transient-failure backoff and structured-output parse retries.
type Retry struct {
	MaxAttempts    int     `toml:"max_attempts"`
	BackoffBaseMS  int     `toml:"backoff_base_ms"`
	BackoffMaxMS   int     `toml:"backoff_max_ms"`
	Multiplier     float64 `toml:"multiplier"`
	JitterFraction float64 `toml:"jitter_fraction"`
	ParseAttempts  int     `toml:"parse_attempts"`
}

// Upload configures the uploaded-file readiness poll.
type Upload struct {
	PollIntervalMS int `toml:"poll_interval_ms"`
	MaxWaitSeconds int `toml:"max_wait_seconds"`
	Concurrency    int `toml:"concurrency"`
}

// VectorStore selects and configures the similarity corpus backend.
type VectorStore struct {
	Backend    string `toml:"backend"`
	Path       string `toml:"path"`
	DSN        string `toml:"dsn"`
	Collection string `toml:"collection"`
	TopK       int    `toml:"top_k"`
	Distance   string `toml:"distance"`
}

// Candidates configures play candidate extraction.
type Candidates struct {
	Defaults []string `toml:"defaults"`
}

// Run bounds a single analysis run.
type Run struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for filmroom.
//
// Configuration sections by subsystem:
//   - Paths: run output and log directories
//   - Clip: analysis window, sample offsets, ffmpeg tooling
//   - Motion: frame differencing calibration
//   - Gemini: model identifiers and credentials
//   - Retry: transient backoff and parse retry limits
//   - Upload: readiness polling
//   - VectorStore: similarity corpus backend
//   - Candidates: fallback play labels
//   - Run: enclosing deadline
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Clip        Clip        `toml:"clip"`
	Motion      Motion      `toml:"motion"`
	Gemini      Gemini      `toml:"gemini"`
	Retry       Retry       `toml:"retry"`
	Upload      Upload      `toml:"upload"`
	VectorStore VectorStore `toml:"vector_store"`
	Candidates  Candidates  `toml:"candidates"`
	Run         Run         `toml:"run"`
	Logging     Logging     `toml:"logging"`
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

	if err := cfg.normalize(); err != nil {
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

	projectPath, err := filepath.Abs("filmroom.toml")
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

// EnsureDirectories creates the output and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.VectorStore.Backend == BackendSQLite {
		if err := os.MkdirAll(filepath.Dir(c.VectorStore.Path), 0o755); err != nil {
			return fmt.Errorf("create vector store directory: %w", err)
		}
	}
	return nil
}

// RequireGemini reports a configuration error when no model credential is available.
func (c *Config) RequireGemini() error {
	if strings.TrimSpace(c.Gemini.APIKey) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("gemini.api_key is required. Set GEMINI_API_KEY env var or edit %s (create with 'filmroom config init')", defaultPath)
}

// RunTimeout returns the enclosing deadline for one analysis run.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Run.TimeoutSeconds) * time.Second
}

// GeminiTimeout returns the per-request HTTP timeout for model calls.
func (c *Config) GeminiTimeout() time.Duration {
	return time.Duration(c.Gemini.TimeoutSeconds) * time.Second
}

// PollInterval returns the readiness poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Upload.PollIntervalMS) * time.Millisecond
}

// PollCeiling returns the wall-clock ceiling for readiness polling.
func (c *Config) PollCeiling() time.Duration {
	return time.Duration(c.Upload.MaxWaitSeconds) * time.Second
}

// BackoffBase returns the initial transient retry delay.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.Retry.BackoffBaseMS) * time.Millisecond
}

// BackoffMax returns the transient retry delay cap.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.Retry.BackoffMaxMS) * time.Millisecond
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

// ErrConfigExists is returned by CreateSample when the target exists and
// overwrite is false.
var ErrConfigExists = errors.New("config file already exists")

// CreateSample writes the embedded sample configuration to path, creating
// parent directories. An existing file is only replaced when overwrite is set.
func CreateSample(path string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if overwrite {
		return fileutil.WriteFileAtomic(path, []byte(sampleConfig), 0o644)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	if err != nil {
		return fmt.Errorf("create sample config: %w", err)
	}
	if _, err := f.WriteString(sampleConfig); err != nil {
		_ = f.Close()
		return fmt.Errorf("write sample config: %w", err)
	}
	return f.Close()
}
