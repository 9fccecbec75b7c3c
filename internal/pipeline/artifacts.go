package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filmroom/internal/config"
	"filmroom/internal/fileutil"
	"filmroom/internal/services"
	"filmroom/internal/textutil"
)

// Artifact file names inside a run directory.
const (
	MotionFile         = "motion.json"
	ClassificationFile = "classification.json"
	RetrievalFile      = "retrieval.json"
	CandidatesFile     = "candidates.json"
	NarrativeFile      = "narrative.txt"
	CombinedFile       = "combined.json"
	KeptClipFile       = "clip.mp4"
)

const (
	runTimestampLayout = "20060102_150405"
	maxRunDirAttempts  = 100
)

// RunID names a run after the video stem and the start time.
func RunID(videoPath string, started time.Time) string {
	stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	return textutil.SanitizeToken(stem) + "__" + started.Format(runTimestampLayout)
}

func writeJSONArtifact(dir, name, stage string, v any) error {
	if err := fileutil.WriteJSONAtomic(filepath.Join(dir, name), v); err != nil {
		return services.Wrap(services.ErrInternal, stage, "write_artifact", name, err)
	}
	return nil
}

func writeTextArtifact(dir, name, stage, text string) error {
	if err := fileutil.WriteFileAtomic(filepath.Join(dir, name), []byte(text+"\n"), 0o644); err != nil {
		return services.Wrap(services.ErrInternal, stage, "write_artifact", name, err)
	}
	return nil
}

// storeLocation returns where the corpus lives without leaking credentials.
func storeLocation(cfg config.VectorStore) string {
	if cfg.Backend != config.BackendPGVector {
		return cfg.Path
	}
	u, err := url.Parse(cfg.DSN)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Redacted()
}

// createRunDir creates a fresh directory for runID under root and returns it
// with the id actually used. An existing directory is never reused: later runs
// in the same second get a numeric suffix (<id>_2, <id>_3, ...).
func createRunDir(root, runID string) (string, string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", "", fmt.Errorf("create output directory: %w", err)
	}
	id := runID
	for attempt := 1; attempt <= maxRunDirAttempts; attempt++ {
		if attempt > 1 {
			id = fmt.Sprintf("%s_%d", runID, attempt)
		}
		dir := filepath.Join(root, id)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, id, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", fmt.Errorf("create run directory: %w", err)
		}
	}
	return "", "", fmt.Errorf("create run directory: %d directories named %s already exist", maxRunDirAttempts, runID)
}
