package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"filmroom/internal/classify"
	"filmroom/internal/config"
	"filmroom/internal/fileutil"
	"filmroom/internal/logging"
	"filmroom/internal/media/clip"
	"filmroom/internal/motion"
	"filmroom/internal/retrieval"
	"filmroom/internal/services"
	"filmroom/internal/services/gemini"
	"filmroom/internal/stageexec"
	"filmroom/internal/textutil"
)

// Stage names as they appear in logs, errors and run metadata.
const (
	StageInput        = "input"
	StageExtractClip  = "extract_clip"
	StageSampleFrames = "sample_frames"
	StageMotion       = "motion"
	StageUpload       = "upload"
	StageClassify     = "classify"
	StageRetrieve     = "retrieve"
	StageNarrative    = "narrative"
	StageFinalize     = "finalize"
)

// ClipExtractor trims the analysis window and samples frames from it.
type ClipExtractor interface {
	Extract(ctx context.Context, window clip.Window, dest string) (clip.Result, error)
	SampleFrames(ctx context.Context, clipPath, dir string, offsets []float64) ([]clip.Frame, error)
}

// ModelGateway uploads media and runs free-form generation.
type ModelGateway interface {
	UploadAll(ctx context.Context, paths []string) ([]gemini.File, error)
	Generate(ctx context.Context, model string, parts []gemini.Part) (string, error)
}

// Classifier assigns offense and defense from one frame.
type Classifier interface {
	Classify(ctx context.Context, frame gemini.File) (classify.Result, error)
	Model() string
}

// Retriever finds similar plays for a classified clip.
type Retriever interface {
	Retrieve(ctx context.Context, c classify.Result, report motion.Report) (retrieval.Result, error)
	TopK() int
}

// Dependencies are the collaborators an Orchestrator drives.
type Dependencies struct {
	Clips      ClipExtractor
	Gateway    ModelGateway
	Classifier Classifier
	Retriever  Retriever
}

// Orchestrator sequences the stages of one analysis run.
type Orchestrator struct {
	cfg      *config.Config
	deps     Dependencies
	logger   *slog.Logger
	now      func() time.Time
	keepClip bool
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the clock used for run ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithKeepClip copies the trimmed clip into the run directory.
func WithKeepClip(keep bool) Option {
	return func(o *Orchestrator) {
		o.keepClip = keep
	}
}

// New constructs an Orchestrator.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("pipeline requires configuration")
	}
	switch {
	case deps.Clips == nil:
		return nil, errors.New("pipeline requires a clip extractor")
	case deps.Gateway == nil:
		return nil, errors.New("pipeline requires a model gateway")
	case deps.Classifier == nil:
		return nil, errors.New("pipeline requires a classifier")
	case deps.Retriever == nil:
		return nil, errors.New("pipeline requires a retriever")
	}
	o := &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run analyses videoPath. On success every artifact, combined.json included,
// is in the returned result's RunDir. On failure the error names the stage
// that failed and combined.json is not written.
func (o *Orchestrator) Run(ctx context.Context, videoPath string) (*RunResult, error) {
	absPath, err := validateInput(videoPath)
	if err != nil {
		return nil, err
	}

	started := o.now()
	runDir, runID, err := createRunDir(o.cfg.Paths.OutputDir, RunID(absPath, started))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, StageInput, "create_run_dir", o.cfg.Paths.OutputDir, err)
	}
	correlationID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	ctx = services.WithRequestID(ctx, correlationID)
	if timeout := o.cfg.RunTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	logger := logging.WithContext(ctx, o.logger)

	workDir, err := os.MkdirTemp("", "filmroom-"+runID+"-")
	if err != nil {
		return nil, services.Wrap(services.ErrInternal, StageInput, "create_work_dir", "", err)
	}
	defer func() {
		if removeErr := os.RemoveAll(workDir); removeErr != nil {
			logger.Warn("temporary media cleanup failed", logging.String("dir", workDir), logging.Error(removeErr))
		}
	}()

	logger.Info("analysis started",
		logging.String("video", absPath),
		logging.String("run_dir", runDir),
	)

	r := &run{
		o:       o,
		logger:  logger,
		runDir:  runDir,
		workDir: workDir,
		result: &RunResult{
			Meta: Meta{
				RunID:         runID,
				CorrelationID: correlationID,
				InputVideo:    absPath,
				VideoName:     filepath.Base(absPath),
				StartedAt:     started.UTC(),
				Models: Models{
					Classify: o.deps.Classifier.Model(),
					Final:    o.cfg.Gemini.FinalModel,
					Embed:    o.cfg.Gemini.EmbedModel,
				},
				VectorStore: VectorStoreMeta{
					Backend:    o.cfg.VectorStore.Backend,
					Collection: o.cfg.VectorStore.Collection,
					TopK:       o.deps.Retriever.TopK(),
					Distance:   o.cfg.VectorStore.Distance,
					Location:   storeLocation(o.cfg.VectorStore),
				},
			},
			RunDir: runDir,
		},
	}
	if err := r.execute(ctx, clip.WindowFrom(o.cfg, absPath)); err != nil {
		detail := services.Details(err)
		logging.ErrorWithContext(logger, "analysis failed", "run_failed",
			logging.String("failed_stage", detail.Stage),
			logging.String("error_kind", detail.Kind),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(detail.Kind)),
		)
		return nil, err
	}
	logger.Info("analysis complete",
		logging.String("run_dir", runDir),
		logging.Bool("motion_detected", r.result.Motion.MotionDetected),
		logging.String("candidate_source", r.result.Candidates.Source),
		logging.Bool("classification_degraded", r.result.ClassificationFailure != nil),
	)
	return r.result, nil
}

func validateInput(videoPath string) (string, error) {
	if strings.TrimSpace(videoPath) == "" {
		return "", services.Wrap(services.ErrInput, StageInput, "validate", "video path is empty", nil)
	}
	absPath, err := filepath.Abs(videoPath)
	if err != nil {
		return "", services.Wrap(services.ErrInput, StageInput, "validate", videoPath, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", services.Wrap(services.ErrInput, StageInput, "validate", "video not found: "+absPath, err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrInput, StageInput, "validate", "video path is a directory: "+absPath, nil)
	}
	return absPath, nil
}

// run carries the state of one in-flight analysis.
type run struct {
	o       *Orchestrator
	logger  *slog.Logger
	runDir  string
	workDir string
	result  *RunResult
}

func (r *run) record(name, status string, elapsed time.Duration) {
	r.result.Meta.Stages = append(r.result.Meta.Stages, StageRecord{
		Name:      name,
		Status:    status,
		ElapsedMS: elapsed.Milliseconds(),
	})
}

func (r *run) execute(ctx context.Context, window clip.Window) error {
	deps := r.o.deps
	r.result.Clip.Window = window

	clipOut, err := stageexec.Run(ctx, r.logger, stageexec.Stage[clip.Result]{
		Name: StageExtractClip,
		Execute: func(ctx context.Context) (clip.Result, error) {
			return deps.Clips.Extract(ctx, window, filepath.Join(r.workDir, "clip.mp4"))
		},
	})
	r.record(StageExtractClip, clipOut.Status, clipOut.Elapsed)
	if err != nil {
		return err
	}
	clipResult := clipOut.Value
	r.result.Clip.Method = clipResult.Method

	framesOut, err := stageexec.Run(ctx, r.logger, stageexec.Stage[[]clip.Frame]{
		Name: StageSampleFrames,
		Execute: func(ctx context.Context) ([]clip.Frame, error) {
			frames, err := deps.Clips.SampleFrames(ctx, clipResult.Path, r.workDir, window.SampleOffsets)
			if err != nil {
				return nil, err
			}
			if len(frames) != len(window.SampleOffsets) {
				return nil, services.Wrap(services.ErrExternalTool, StageSampleFrames, "sample_frames",
					fmt.Sprintf("expected %d frames, got %d", len(window.SampleOffsets), len(frames)), nil)
			}
			return frames, nil
		},
	})
	r.record(StageSampleFrames, framesOut.Status, framesOut.Elapsed)
	if err != nil {
		return err
	}
	frames := framesOut.Value
	framePaths := make([]string, len(frames))
	offsets := make([]float64, len(frames))
	for i, frame := range frames {
		framePaths[i] = frame.Path
		offsets[i] = frame.Offset
	}
	r.result.Clip.FrameOffsets = offsets

	motionOut, err := stageexec.Run(ctx, r.logger, stageexec.Stage[motion.Report]{
		Name: StageMotion,
		Execute: func(ctx context.Context) (motion.Report, error) {
			report, err := motion.DetectFiles(framePaths, offsets, r.motionOptions())
			if err != nil {
				return motion.Report{}, services.Wrap(services.ErrInternal, StageMotion, "detect", "", err)
			}
			return report, writeJSONArtifact(r.runDir, MotionFile, StageMotion, report)
		},
	})
	r.record(StageMotion, motionOut.Status, motionOut.Elapsed)
	if err != nil {
		return err
	}
	r.result.Motion = motionOut.Value

	uploadOut, err := stageexec.Run(ctx, r.logger, stageexec.Stage[[]gemini.File]{
		Name: StageUpload,
		Execute: func(ctx context.Context) ([]gemini.File, error) {
			paths := append(append([]string(nil), framePaths...), clipResult.Path)
			return deps.Gateway.UploadAll(ctx, paths)
		},
	})
	r.record(StageUpload, uploadOut.Status, uploadOut.Elapsed)
	if err != nil {
		return err
	}
	uploaded := uploadOut.Value
	if len(uploaded) != len(framePaths)+1 {
		return services.Wrap(services.ErrInternal, StageUpload, "upload_all",
			fmt.Sprintf("expected %d handles, got %d", len(framePaths)+1, len(uploaded)), nil)
	}
	frameFiles, clipFile := uploaded[:len(framePaths)], uploaded[len(framePaths)]

	classOut, err := stageexec.Run(ctx, r.logger, stageexec.Stage[classify.Result]{
		Name:   StageClassify,
		Policy: stageexec.SoftFail,
		Execute: func(ctx context.Context) (classify.Result, error) {
			return deps.Classifier.Classify(ctx, frameFiles[0])
		},
		Fallback: classify.Fallback,
	})
	r.record(StageClassify, classOut.Status, classOut.Elapsed)
	if err != nil {
		return err
	}
	r.result.Classification = classOut.Value
	if classOut.Degraded() {
		detail := services.Details(classOut.Failure)
		r.result.ClassificationFailure = &detail
	}
	if err := writeJSONArtifact(r.runDir, ClassificationFile, StageClassify, r.result.Classification); err != nil {
		return err
	}

	retrieveOut, err := stageexec.Run(ctx, r.logger, stageexec.Stage[retrieval.Result]{
		Name: StageRetrieve,
		Execute: func(ctx context.Context) (retrieval.Result, error) {
			result, err := deps.Retriever.Retrieve(ctx, r.result.Classification, r.result.Motion)
			if err != nil {
				return retrieval.Result{}, err
			}
			if err := writeJSONArtifact(r.runDir, RetrievalFile, StageRetrieve, result); err != nil {
				return retrieval.Result{}, err
			}
			return result, writeJSONArtifact(r.runDir, CandidatesFile, StageRetrieve, result.Candidates)
		},
	})
	r.record(StageRetrieve, retrieveOut.Status, retrieveOut.Elapsed)
	if err != nil {
		return err
	}
	r.result.Retrieval = retrieveOut.Value
	r.result.Candidates = retrieveOut.Value.Candidates

	narrativeOut, err := stageexec.Run(ctx, r.logger, stageexec.Stage[string]{
		Name: StageNarrative,
		Execute: func(ctx context.Context) (string, error) {
			parts, err := FinalParts(clipFile, r.result.Classification, r.result.Motion, r.result.Retrieval.Examples, r.result.Candidates)
			if err != nil {
				return "", services.Wrap(services.ErrInternal, StageNarrative, "build_prompt", "", err)
			}
			raw, err := deps.Gateway.Generate(ctx, r.o.cfg.Gemini.FinalModel, parts)
			if err != nil {
				return "", err
			}
			paragraph := textutil.CollapseWhitespace(raw)
			if paragraph == "" {
				return "", services.Wrap(services.ErrMalformedResponse, StageNarrative, "generate", "empty narrative", nil)
			}
			return paragraph, writeTextArtifact(r.runDir, NarrativeFile, StageNarrative, paragraph)
		},
	})
	r.record(StageNarrative, narrativeOut.Status, narrativeOut.Elapsed)
	if err != nil {
		return err
	}
	r.result.Narrative = narrativeOut.Value

	return r.finalize(ctx, clipResult.Path)
}

func (r *run) finalize(ctx context.Context, clipPath string) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, StageFinalize, "", "run deadline exceeded", err)
		}
		return services.Wrap(services.ErrInternal, StageFinalize, "", "run canceled", err)
	}
	if r.o.keepClip {
		dest := filepath.Join(r.runDir, KeptClipFile)
		if err := fileutil.CopyFile(clipPath, dest); err != nil {
			return services.Wrap(services.ErrInternal, StageFinalize, "keep_clip", "", err)
		}
		r.result.Clip.KeptPath = dest
	}
	r.result.Meta.FinishedAt = r.o.now().UTC()
	return writeJSONArtifact(r.runDir, CombinedFile, StageFinalize, r.result)
}

func (r *run) motionOptions() motion.Options {
	return motion.Options{
		RatioThreshold:     r.o.cfg.Motion.RatioThreshold,
		PixelDiffThreshold: r.o.cfg.Motion.PixelDiffThreshold,
		BlurKernelSize:     r.o.cfg.Motion.BlurKernelSize,
	}
}

func hintFor(kind string) string {
	switch kind {
	case "input":
		return "check the video path and ffmpeg/ffprobe installation ('filmroom deps')"
	case "configuration":
		return "run 'filmroom config validate'"
	case "upload_readiness":
		return "the model service did not finish processing the upload; retry later"
	case "timeout":
		return "raise run.timeout_seconds or check service latency"
	case "transient":
		return "the model service stayed unavailable through every retry; try again later"
	case "rejected":
		return "check gemini credentials, quota and model names"
	case "malformed_response":
		return "the model reply could not be used; rerun or switch gemini.final_model"
	case "external_tool":
		return "check ffmpeg output and the vector store connection"
	default:
		return "check logs for details"
	}
}
