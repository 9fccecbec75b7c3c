package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateClip(); err != nil {
		return err
	}
	if err := c.validateMotion(); err != nil {
		return err
	}
	if err := c.validateGemini(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateVectorStore(); err != nil {
		return err
	}
	if len(c.Candidates.Defaults) == 0 {
		return errors.New("candidates.defaults must contain at least one label")
	}
	if c.Run.TimeoutSeconds <= 0 {
		return errors.New("run.timeout_seconds must be positive")
	}
	return c.validateLogging()
}

func (c *Config) validateClip() error {
	if c.Clip.StartSeconds < 0 {
		return errors.New("clip.start_seconds must be >= 0")
	}
	if c.Clip.DurationSeconds <= 0 {
		return errors.New("clip.duration_seconds must be positive")
	}
	if len(c.Clip.SampleOffsets) < 3 {
		return errors.New("clip.sample_offsets must list at least 3 timestamps")
	}
	prev := -1.0
	for i, offset := range c.Clip.SampleOffsets {
		if offset < 0 || offset >= c.Clip.DurationSeconds {
			return fmt.Errorf("clip.sample_offsets[%d] must fall within [0, duration_seconds)", i)
		}
		if offset <= prev {
			return errors.New("clip.sample_offsets must be strictly increasing")
		}
		prev = offset
	}
	if c.Clip.ReencodeCRF < 0 || c.Clip.ReencodeCRF > 51 {
		return errors.New("clip.reencode_crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validateMotion() error {
	if c.Motion.RatioThreshold <= 0 || c.Motion.RatioThreshold >= 1 {
		return errors.New("motion.ratio_threshold must be between 0 and 1")
	}
	if c.Motion.PixelDiffThreshold < 0 || c.Motion.PixelDiffThreshold > 254 {
		return errors.New("motion.pixel_diff_threshold must be between 0 and 254")
	}
	if c.Motion.BlurKernelSize < 1 || c.Motion.BlurKernelSize%2 == 0 {
		return errors.New("motion.blur_kernel_size must be a positive odd number")
	}
	return nil
}

func (c *Config) validateGemini() error {
	if c.Gemini.TimeoutSeconds <= 0 {
		return errors.New("gemini.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	if c.Retry.ParseAttempts < 1 {
		return errors.New("retry.parse_attempts must be at least 1")
	}
	if c.Retry.BackoffBaseMS < 0 || c.Retry.BackoffMaxMS < 0 {
		return errors.New("retry backoff values must be non-negative")
	}
	if c.Retry.BackoffMaxMS > 0 && c.Retry.BackoffMaxMS < c.Retry.BackoffBaseMS {
		return errors.New("retry.backoff_max_ms must be >= retry.backoff_base_ms")
	}
	if c.Retry.Multiplier < 1 {
		return errors.New("retry.multiplier must be >= 1")
	}
	if c.Retry.JitterFraction < 0 || c.Retry.JitterFraction > 1 {
		return errors.New("retry.jitter_fraction must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.PollIntervalMS <= 0 {
		return errors.New("upload.poll_interval_ms must be positive")
	}
	if c.Upload.MaxWaitSeconds <= 0 {
		return errors.New("upload.max_wait_seconds must be positive")
	}
	if c.Upload.Concurrency < 1 {
		return errors.New("upload.concurrency must be at least 1")
	}
	return nil
}

func (c *Config) validateVectorStore() error {
	switch c.VectorStore.Backend {
	case BackendSQLite:
		if strings.TrimSpace(c.VectorStore.Path) == "" {
			return errors.New("vector_store.path must be set for the sqlite backend")
		}
	case BackendPGVector:
		if c.VectorStore.DSN == "" {
			return errors.New("vector_store.dsn is required for the pgvector backend. Set FILMROOM_PG_DSN or edit the config")
		}
	default:
		return fmt.Errorf("vector_store.backend %q is not supported (use %q or %q)", c.VectorStore.Backend, BackendSQLite, BackendPGVector)
	}
	switch c.VectorStore.Distance {
	case DistanceL2, DistanceCosine:
	default:
		return fmt.Errorf("vector_store.distance %q is not supported (use %q or %q)", c.VectorStore.Distance, DistanceL2, DistanceCosine)
	}
	if c.VectorStore.TopK < 1 {
		return errors.New("vector_store.top_k must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	return nil
}
