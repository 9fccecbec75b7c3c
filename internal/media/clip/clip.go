package clip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"filmroom/internal/config"
	"filmroom/internal/logging"
	"filmroom/internal/media/ffprobe"
	"filmroom/internal/services"
)

var commandContext = exec.CommandContext

// Trim methods recorded on Result.
const (
	MethodCopy     = "copy"
	MethodReencode = "reencode"
)

// Window is the immutable description of the analysed span of a source video.
// SampleOffsets are relative to Start.
type Window struct {
	Source        string    `json:"source"`
	Start         float64   `json:"start_seconds"`
	Duration      float64   `json:"duration_seconds"`
	SampleOffsets []float64 `json:"sample_offsets"`
}

// WindowFrom builds the configured window for source.
func WindowFrom(cfg *config.Config, source string) Window {
	return Window{
		Source:        source,
		Start:         cfg.Clip.StartSeconds,
		Duration:      cfg.Clip.DurationSeconds,
		SampleOffsets: append([]float64(nil), cfg.Clip.SampleOffsets...),
	}
}

// Result describes a trimmed clip on disk.
type Result struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

// Frame is one sampled still image.
type Frame struct {
	Offset float64 `json:"offset_seconds"`
	Path   string  `json:"path"`
}

// Options configures the external tools.
type Options struct {
	FFmpegBinary   string
	FFprobeBinary  string
	ReencodeCRF    int
	ReencodePreset string
}

// OptionsFrom derives extractor options from configuration.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		FFmpegBinary:   cfg.Clip.FFmpegBinary,
		FFprobeBinary:  cfg.Clip.FFprobeBinary,
		ReencodeCRF:    cfg.Clip.ReencodeCRF,
		ReencodePreset: cfg.Clip.ReencodePreset,
	}
}

// Extractor wraps ffmpeg/ffprobe invocations.
type Extractor struct {
	opts   Options
	logger *slog.Logger
	probe  func(ctx context.Context, path string) (ffprobe.Result, error)
}

// NewExtractor constructs an Extractor.
func NewExtractor(opts Options, logger *slog.Logger) *Extractor {
	if strings.TrimSpace(opts.FFmpegBinary) == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(opts.FFprobeBinary) == "" {
		opts.FFprobeBinary = "ffprobe"
	}
	if strings.TrimSpace(opts.ReencodePreset) == "" {
		opts.ReencodePreset = "veryfast"
	}
	e := &Extractor{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "clip"),
	}
	e.probe = func(ctx context.Context, path string) (ffprobe.Result, error) {
		return ffprobe.Inspect(ctx, e.opts.FFprobeBinary, path)
	}
	return e
}

// Extract writes the window of window.Source to dest. A stream copy is tried
// first; the re-encode fallback runs when the copy fails or its output is
// missing, empty, or carries no video stream.
func (e *Extractor) Extract(ctx context.Context, window Window, dest string) (Result, error) {
	stage := services.StageName(ctx)
	if _, err := os.Stat(window.Source); err != nil {
		return Result{}, services.Wrap(services.ErrInput, stage, "extract", "source video unavailable", err)
	}
	if window.Duration <= 0 {
		return Result{}, services.Wrap(services.ErrInput, stage, "extract",
			fmt.Sprintf("clip duration must be positive, got %s", formatSeconds(window.Duration)), nil)
	}
	logger := logging.WithContext(ctx, e.logger).With(logging.String("source", window.Source))

	copyArgs := []string{
		"-y", "-ss", formatSeconds(window.Start), "-t", formatSeconds(window.Duration),
		"-i", window.Source, "-c", "copy", dest,
	}
	copyErr := e.run(ctx, copyArgs)
	if copyErr == nil {
		copyErr = e.validate(ctx, dest)
	}
	if copyErr == nil {
		logger.Debug("clip trimmed", logging.String("method", MethodCopy), logging.String("path", dest))
		return Result{Path: dest, Method: MethodCopy}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, contextError(ctx, "extract")
	}
	logger.Info("stream copy unusable; re-encoding clip",
		logging.String(logging.FieldEventType, "clip_reencode"),
		logging.Error(copyErr),
	)

	reencodeArgs := []string{
		"-y", "-ss", formatSeconds(window.Start), "-t", formatSeconds(window.Duration),
		"-i", window.Source,
		"-c:v", "libx264", "-preset", e.opts.ReencodePreset, "-crf", strconv.Itoa(e.opts.ReencodeCRF),
		"-c:a", "aac", "-b:a", "128k",
		dest,
	}
	err := e.run(ctx, reencodeArgs)
	if err == nil {
		err = e.validate(ctx, dest)
	}
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, contextError(ctx, "extract")
		}
		return Result{}, services.Wrap(services.ErrExternalTool, stage, "extract", "re-encode failed", err)
	}
	logger.Debug("clip trimmed", logging.String("method", MethodReencode), logging.String("path", dest))
	return Result{Path: dest, Method: MethodReencode}, nil
}

// SampleFrames extracts one JPEG per offset from clipPath into dir, in offset
// order. Any failure aborts the whole set.
func (e *Extractor) SampleFrames(ctx context.Context, clipPath, dir string, offsets []float64) ([]Frame, error) {
	stage := services.StageName(ctx)
	if len(offsets) == 0 {
		return nil, services.Wrap(services.ErrInput, stage, "sample_frames", "no sample offsets", nil)
	}
	frames := make([]Frame, 0, len(offsets))
	for _, offset := range offsets {
		path := filepath.Join(dir, FrameName(offset))
		args := []string{"-y", "-ss", formatSeconds(offset), "-i", clipPath, "-frames:v", "1", "-q:v", "2", path}
		err := e.run(ctx, args)
		if err == nil {
			err = nonEmpty(path)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, contextError(ctx, "sample_frames")
			}
			return nil, services.Wrap(services.ErrExternalTool, stage, "sample_frames",
				"frame at t="+formatSeconds(offset), err)
		}
		frames = append(frames, Frame{Offset: offset, Path: path})
	}
	return frames, nil
}

// FrameName returns the file name used for the still at offset.
func FrameName(offset float64) string {
	return "frame_t" + formatSeconds(offset) + ".jpg"
}

func (e *Extractor) run(ctx context.Context, args []string) error {
	cmd := commandContext(ctx, e.opts.FFmpegBinary, append([]string{"-hide_banner", "-loglevel", "error"}, args...)...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", filepath.Base(e.opts.FFmpegBinary), err, tail(string(output)))
	}
	return nil
}

func (e *Extractor) validate(ctx context.Context, path string) error {
	if err := nonEmpty(path); err != nil {
		return err
	}
	probe, err := e.probe(ctx, path)
	if err != nil {
		return err
	}
	if !probe.HasVideo() {
		return errors.New("output has no video stream")
	}
	if seconds, ok := probe.Duration(); ok {
		logging.WithContext(ctx, e.logger).Debug("clip probed",
			logging.String("path", path),
			logging.String("duration", formatSeconds(seconds)),
			logging.String("container", probe.Format.FormatName),
		)
	}
	return nil
}

func nonEmpty(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("output %s is empty", filepath.Base(path))
	}
	return nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func tail(output string) string {
	output = strings.TrimSpace(output)
	const limit = 400
	if len(output) > limit {
		output = "..." + output[len(output)-limit:]
	}
	return output
}

func contextError(ctx context.Context, op string) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, services.StageName(ctx), op, "run deadline exceeded", err)
	}
	return err
}
