package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"filmroom/internal/classify"
	"filmroom/internal/config"
	"filmroom/internal/deps"
	"filmroom/internal/media/clip"
	"filmroom/internal/pipeline"
	"filmroom/internal/retrieval"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var timeout time.Duration
	var jsonOutput bool
	var keepClip bool

	cmd := &cobra.Command{
		Use:   "analyze <video>",
		Short: "Analyze the pre-snap formation in a video clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg := *base
			if strings.TrimSpace(outputDir) != "" {
				expanded, err := config.ExpandPath(outputDir)
				if err != nil {
					return fmt.Errorf("resolve output directory: %w", err)
				}
				cfg.Paths.OutputDir = expanded
			}
			if timeout > 0 {
				cfg.Run.TimeoutSeconds = int(timeout.Round(time.Second) / time.Second)
				if cfg.Run.TimeoutSeconds < 1 {
					cfg.Run.TimeoutSeconds = 1
				}
			}

			if err := deps.RequireAvailable(deps.Check(deps.MediaRequirements(&cfg))); err != nil {
				return err
			}

			logger, closeLog, err := ctx.logger(&cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()
			runCtx := cmd.Context()
			gateway, err := ctx.openGateway(runCtx, &cfg, logger)
			if err != nil {
				return err
			}
			store, err := ctx.openStore(runCtx, &cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			orchestrator, err := pipeline.New(&cfg, pipeline.Dependencies{
				Clips:      clip.NewExtractor(clip.OptionsFrom(&cfg), logger),
				Gateway:    gateway,
				Classifier: classify.New(gateway, cfg.Gemini.ClassifyModel),
				Retriever:  retrieval.New(gateway, store, retrieval.OptionsFrom(&cfg), logger),
			}, logger, pipeline.WithKeepClip(keepClip))
			if err != nil {
				return err
			}

			result, err := orchestrator.Run(runCtx, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, result)
			}
			printRunSummary(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for run artifacts (overrides paths.output_dir)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Deadline for the whole run (overrides run.timeout_seconds)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the combined result as JSON")
	cmd.Flags().BoolVar(&keepClip, "keep-clip", false, "Copy the trimmed clip into the run directory")
	return cmd
}

func printRunSummary(out io.Writer, result *pipeline.RunResult) {
	c := result.Classification
	fmt.Fprintf(out, "Run:        %s\n", result.Meta.RunID)
	fmt.Fprintf(out, "Artifacts:  %s\n", result.RunDir)
	fmt.Fprintf(out, "Motion:     %s\n", motionSummary(result))
	fmt.Fprintf(out, "Offense:    %s\n", unitSummary(c.OffenseTeam, c.OffenseJerseyColor, c.OffenseSide))
	fmt.Fprintf(out, "Defense:    %s\n", unitSummary(c.DefenseTeam, c.DefenseJerseyColor, c.DefenseSide))
	if result.ClassificationFailure != nil {
		fmt.Fprintf(out, "Degraded:   classification fell back (%s)\n", result.ClassificationFailure.Kind)
	}
	fmt.Fprintf(out, "Candidates: %s (%s)\n", strings.Join(result.Candidates.Labels, ", "), result.Candidates.Source)
	fmt.Fprintln(out)
	fmt.Fprintln(out, result.Narrative)
}

func motionSummary(result *pipeline.RunResult) string {
	if !result.Motion.MotionDetected {
		return "none detected"
	}
	return "detected (" + result.Motion.Timing + ")"
}

func unitSummary(team, color, side string) string {
	return fmt.Sprintf("%s in %s, %s side", team, color, side)
}
