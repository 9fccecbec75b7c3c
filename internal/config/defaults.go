package config

const (
	defaultConfigPath           = "~/.config/filmroom/config.toml"
	defaultOutputDir            = "~/.local/share/filmroom/runs"
	defaultLogDir               = "~/.local/share/filmroom/logs"
	defaultClipStartSeconds     = 0
	defaultClipDurationSeconds  = 6
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultReencodeCRF          = 23
	defaultReencodePreset       = "veryfast"
	defaultMotionRatioThreshold = 0.012
	defaultPixelDiffThreshold   = 25
	defaultBlurKernelSize       = 7
	defaultClassifyModel        = "gemini-2.5-flash-lite"
	defaultFinalModel           = "gemini-3-flash-preview"
	defaultEmbedModel           = "text-embedding-004"
	defaultGeminiTimeoutSeconds = 120
	defaultRetryMaxAttempts     = 5
	defaultBackoffBaseMS        = 600
	defaultBackoffMaxMS         = 8000
	defaultBackoffMultiplier    = 1.7
	defaultJitterFraction       = 0.35
	defaultParseAttempts        = 2
	defaultPollIntervalMS       = 1000
	defaultPollMaxWaitSeconds   = 90
	defaultUploadConcurrency    = 3
	defaultVectorStorePath      = "~/.local/share/filmroom/vectors.db"
	defaultCollection           = "nfl_clips"
	defaultTopK                 = 4
	defaultRunTimeoutSeconds    = 600
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Vector store backends.
const (
	BackendSQLite   = "sqlite"
	BackendPGVector = "pgvector"
)

// Distance metrics understood by the sqlite backend.
const (
	DistanceL2     = "l2"
	DistanceCosine = "cosine"
)

func defaultSampleOffsets() []float64 {
	return []float64{0, 2, 4}
}

// DefaultCandidates is the fallback play concept list used when retrieval yields
// no extractable labels.
func DefaultCandidates() []string {
	return []string{
		"inside zone",
		"outside zone",
		"power",
		"play-action boot",
		"quick game",
		"screen",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Clip: Clip{
			StartSeconds:    defaultClipStartSeconds,
			DurationSeconds: defaultClipDurationSeconds,
			SampleOffsets:   defaultSampleOffsets(),
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			ReencodeCRF:     defaultReencodeCRF,
			ReencodePreset:  defaultReencodePreset,
		},
		Motion: Motion{
			RatioThreshold:     defaultMotionRatioThreshold,
			PixelDiffThreshold: defaultPixelDiffThreshold,
			BlurKernelSize:     defaultBlurKernelSize,
		},
		Gemini: Gemini{
			ClassifyModel:  defaultClassifyModel,
			FinalModel:     defaultFinalModel,
			EmbedModel:     defaultEmbedModel,
			TimeoutSeconds: defaultGeminiTimeoutSeconds,
		},
		Retry: Retry{
			MaxAttempts:    defaultRetryMaxAttempts,
			BackoffBaseMS:  defaultBackoffBaseMS,
			BackoffMaxMS:   defaultBackoffMaxMS,
			Multiplier:     defaultBackoffMultiplier,
			JitterFraction: defaultJitterFraction,
			ParseAttempts:  defaultParseAttempts,
		},
		Upload: Upload{
			PollIntervalMS: defaultPollIntervalMS,
			MaxWaitSeconds: defaultPollMaxWaitSeconds,
			Concurrency:    defaultUploadConcurrency,
		},
		VectorStore: VectorStore{
			Backend:    BackendSQLite,
			Path:       defaultVectorStorePath,
			Collection: defaultCollection,
			TopK:       defaultTopK,
			Distance:   DistanceL2,
		},
		Candidates: Candidates{
			Defaults: DefaultCandidates(),
		},
		Run: Run{
			TimeoutSeconds: defaultRunTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
