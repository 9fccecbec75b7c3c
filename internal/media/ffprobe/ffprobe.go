package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// entries limits ffprobe output to the fields read below.
const entries = "stream=codec_name,codec_type,width,height:format=duration,format_name"

// Result is the decoded subset of an ffprobe report.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream is one elementary stream of the container.
type Stream struct {
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Format carries container metadata. Duration is ffprobe's decimal string.
type Format struct {
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// Inspect runs binary (default "ffprobe") against path.
func Inspect(ctx context.Context, binary, path string) (Result, error) {
	if binary = strings.TrimSpace(binary); binary == "" {
		binary = "ffprobe"
	}
	if path = strings.TrimSpace(path); path == "" {
		return Result{}, errors.New("ffprobe: empty path")
	}

	cmd := commandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_entries", entries, "-of", "json", "--", path) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe %s: decode report: %w", path, err)
	}
	return result, nil
}

// HasVideo reports whether any stream is video with non-zero dimensions.
func (r Result) HasVideo() bool {
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, "video") && s.Width > 0 && s.Height > 0 {
			return true
		}
	}
	return false
}

// Duration returns the container duration in seconds. ok is false when the
// field is absent, unparsable or not positive.
func (r Result) Duration() (seconds float64, ok bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(r.Format.Duration), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}
