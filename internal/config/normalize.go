package config

import (
	"fmt"
	"os"
	"strings"

	"filmroom/internal/textutil"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeClip()
	c.normalizeGemini()
	if err := c.normalizeVectorStore(); err != nil {
		return err
	}
	c.normalizeCandidates()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeClip() {
	c.Clip.FFmpegBinary = strings.TrimSpace(c.Clip.FFmpegBinary)
	if c.Clip.FFmpegBinary == "" {
		c.Clip.FFmpegBinary = defaultFFmpegBinary
	}
	c.Clip.FFprobeBinary = strings.TrimSpace(c.Clip.FFprobeBinary)
	if c.Clip.FFprobeBinary == "" {
		c.Clip.FFprobeBinary = defaultFFprobeBinary
	}
	c.Clip.ReencodePreset = strings.TrimSpace(c.Clip.ReencodePreset)
	if c.Clip.ReencodePreset == "" {
		c.Clip.ReencodePreset = defaultReencodePreset
	}
	if len(c.Clip.SampleOffsets) == 0 {
		c.Clip.SampleOffsets = defaultSampleOffsets()
	}
}

func (c *Config) normalizeGemini() {
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	if c.Gemini.APIKey == "" {
		for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
			if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
				c.Gemini.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}
	c.Gemini.BaseURL = strings.TrimSpace(c.Gemini.BaseURL)
	c.Gemini.ClassifyModel = strings.TrimSpace(c.Gemini.ClassifyModel)
	if c.Gemini.ClassifyModel == "" {
		c.Gemini.ClassifyModel = defaultClassifyModel
	}
	c.Gemini.FinalModel = strings.TrimSpace(c.Gemini.FinalModel)
	if c.Gemini.FinalModel == "" {
		c.Gemini.FinalModel = defaultFinalModel
	}
	c.Gemini.EmbedModel = strings.TrimSpace(c.Gemini.EmbedModel)
	if c.Gemini.EmbedModel == "" {
		c.Gemini.EmbedModel = defaultEmbedModel
	}
}

func (c *Config) normalizeVectorStore() error {
	c.VectorStore.Backend = strings.ToLower(strings.TrimSpace(c.VectorStore.Backend))
	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = BackendSQLite
	}
	c.VectorStore.Distance = strings.ToLower(strings.TrimSpace(c.VectorStore.Distance))
	if c.VectorStore.Distance == "" {
		c.VectorStore.Distance = DistanceL2
	}
	c.VectorStore.Collection = strings.TrimSpace(c.VectorStore.Collection)
	if c.VectorStore.Collection == "" {
		c.VectorStore.Collection = defaultCollection
	}
	if strings.TrimSpace(c.VectorStore.Path) == "" {
		c.VectorStore.Path = defaultVectorStorePath
	}
	var err error
	if c.VectorStore.Path, err = expandPath(c.VectorStore.Path); err != nil {
		return fmt.Errorf("vector_store.path: %w", err)
	}
	c.VectorStore.DSN = strings.TrimSpace(c.VectorStore.DSN)
	if c.VectorStore.DSN == "" {
		if value, ok := os.LookupEnv("FILMROOM_PG_DSN"); ok {
			c.VectorStore.DSN = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeCandidates() {
	c.Candidates.Defaults = textutil.UniqueLabels(c.Candidates.Defaults)
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
}
