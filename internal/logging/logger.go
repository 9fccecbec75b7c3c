package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"filmroom/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	Development bool
	// NoColor forces plain console output even when writing to a terminal.
	NoColor bool
}

// CloseFunc releases the log files a logger writes to.
type CloseFunc func() error

// New constructs a slog logger using the provided options. The returned
// CloseFunc closes any log files opened for it and is never nil.
func New(opts Options) (*slog.Logger, CloseFunc, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	if format != "json" && format != "console" {
		return nil, nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	outputWriter, colorable, closeFn, err := openWriters(defaultSlice(opts.OutputPaths, []string{"stderr"}))
	if err != nil {
		return nil, nil, err
	}

	addSource := opts.Development || level <= slog.LevelDebug

	var handler slog.Handler
	switch format {
	case "json":
		handler = newJSONHandler(outputWriter, levelVar, addSource)
	case "console":
		handler = tint.NewHandler(outputWriter, &tint.Options{
			Level:      levelVar,
			AddSource:  addSource,
			TimeFormat: time.TimeOnly,
			NoColor:    opts.NoColor || !colorable,
		})
	}

	return slog.New(handler), closeFn, nil
}

// NewFromConfig creates a logger using application config defaults. Console
// output goes to stderr so stdout stays free for command results; when a log
// directory is configured the same records are appended to filmroom.log.
func NewFromConfig(cfg *config.Config) (*slog.Logger, CloseFunc, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}

	outputPaths := []string{"stderr"}
	if cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("ensure log directory: %w", err)
		}
		outputPaths = append(outputPaths, filepath.Join(cfg.Paths.LogDir, "filmroom.log"))
	}

	return New(Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputPaths,
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultSlice(value []string, fallback []string) []string {
	if len(value) == 0 {
		return append([]string(nil), fallback...)
	}
	return append([]string(nil), value...)
}

// openWriters resolves output targets. Colour is only worthwhile when every
// target is a terminal; a log file mixed in would otherwise collect escape codes.
func openWriters(paths []string) (io.Writer, bool, CloseFunc, error) {
	seen := map[string]struct{}{}
	var writers []io.Writer
	var files []*os.File
	colorable := true
	closeFiles := func() error {
		var errs []error
		for _, file := range files {
			errs = append(errs, file.Close())
		}
		files = nil
		return errors.Join(errs...)
	}

	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}

		switch trimmed {
		case "stdout":
			writers = append(writers, os.Stdout)
			colorable = colorable && isatty.IsTerminal(os.Stdout.Fd())
		case "stderr":
			writers = append(writers, os.Stderr)
			colorable = colorable && isatty.IsTerminal(os.Stderr.Fd())
		default:
			if err := ensureLogDir(trimmed); err != nil {
				_ = closeFiles()
				return nil, false, nil, err
			}
			file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				_ = closeFiles()
				return nil, false, nil, fmt.Errorf("open log file %s: %w", trimmed, err)
			}
			files = append(files, file)
			writers = append(writers, file)
			colorable = false
		}
	}

	switch len(writers) {
	case 0:
		return os.Stderr, isatty.IsTerminal(os.Stderr.Fd()), closeFiles, nil
	case 1:
		return writers[0], colorable, closeFiles, nil
	default:
		return io.MultiWriter(writers...), colorable, closeFiles, nil
	}
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	opts := slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
				}
			case slog.LevelKey:
				attr.Key = "level"
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			case slog.MessageKey:
				attr.Key = "msg"
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return attr
		},
	}

	return slog.NewJSONHandler(w, &opts)
}
