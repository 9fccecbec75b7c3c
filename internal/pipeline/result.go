package pipeline

import (
	"time"

	"filmroom/internal/classify"
	"filmroom/internal/media/clip"
	"filmroom/internal/motion"
	"filmroom/internal/retrieval"
	"filmroom/internal/services"
)

// RunResult is the combined artifact of one completed run.
type RunResult struct {
	Meta                  Meta                   `json:"meta"`
	Clip                  ClipInfo               `json:"clip"`
	Motion                motion.Report          `json:"motion"`
	Classification        classify.Result        `json:"classification"`
	ClassificationFailure *services.Detail       `json:"classification_failure,omitempty"`
	Retrieval             retrieval.Result       `json:"retrieval"`
	Candidates            retrieval.CandidateSet `json:"candidates"`
	Narrative             string                 `json:"narrative"`

	// RunDir is where the artifacts were written.
	RunDir string `json:"-"`
}

// Meta describes how a run was produced.
type Meta struct {
	RunID         string          `json:"run_id"`
	CorrelationID string          `json:"correlation_id"`
	InputVideo    string          `json:"input_video"`
	VideoName     string          `json:"video_name"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	Models        Models          `json:"models"`
	VectorStore   VectorStoreMeta `json:"vector_store"`
	Stages        []StageRecord   `json:"stages"`
}

// Models lists the model identifiers used by the run.
type Models struct {
	Classify string `json:"classify"`
	Final    string `json:"final"`
	Embed    string `json:"embed"`
}

// VectorStoreMeta records the corpus the run retrieved from.
type VectorStoreMeta struct {
	Backend    string `json:"backend"`
	Collection string `json:"collection"`
	TopK       int    `json:"top_k"`
	Distance   string `json:"distance"`
	Location   string `json:"location,omitempty"`
}

// StageRecord is the timing and status of one stage.
type StageRecord struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// ClipInfo describes the analysed window and the media derived from it.
type ClipInfo struct {
	Window clip.Window `json:"window"`
	Method string      `json:"method"`
	// FrameOffsets are the sampled offsets, relative to the window start.
	FrameOffsets []float64 `json:"frame_offsets"`
	// KeptPath is set when the trimmed clip was copied into the run directory.
	KeptPath string `json:"kept_path,omitempty"`
}
