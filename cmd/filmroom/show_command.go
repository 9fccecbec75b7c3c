package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"filmroom/internal/pipeline"
)

func newShowCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "show <run-dir|combined.json>",
		Short:       "Render the combined artifact of a finished run",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{skipConfigLoad: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := loadRunResult(args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderRunOverview(result))
			fmt.Fprintln(out, renderStages(result))
			fmt.Fprintln(out, renderMotion(result))
			fmt.Fprintln(out, renderAssignment(result))
			fmt.Fprintln(out, renderNeighbours(result))
			fmt.Fprintln(out)
			fmt.Fprintln(out, result.Narrative)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the combined artifact as JSON")
	return cmd
}

func loadRunResult(target string) (*pipeline.RunResult, error) {
	path := strings.TrimSpace(target)
	if path == "" {
		return nil, fmt.Errorf("run directory is required")
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, pipeline.CombinedFile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read combined artifact: %w", err)
	}
	var result pipeline.RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	result.RunDir = filepath.Dir(path)
	return &result, nil
}

func renderRunOverview(result *pipeline.RunResult) string {
	meta := result.Meta
	rows := [][]string{
		{"Run", meta.RunID},
		{"Video", meta.InputVideo},
		{"Window", fmt.Sprintf("%ss + %ss (%s)", formatSeconds(result.Clip.Window.Start), formatSeconds(result.Clip.Window.Duration), result.Clip.Method)},
		{"Started", meta.StartedAt.Format("2006-01-02 15:04:05Z07:00")},
		{"Finished", meta.FinishedAt.Format("2006-01-02 15:04:05Z07:00")},
		{"Models", fmt.Sprintf("classify=%s final=%s embed=%s", meta.Models.Classify, meta.Models.Final, meta.Models.Embed)},
		{"Corpus", fmt.Sprintf("%s/%s top_k=%d distance=%s", meta.VectorStore.Backend, meta.VectorStore.Collection, meta.VectorStore.TopK, meta.VectorStore.Distance)},
	}
	return renderTable([]string{"Field", "Value"}, rows)
}

func renderStages(result *pipeline.RunResult) string {
	rows := make([][]string, 0, len(result.Meta.Stages))
	for _, stage := range result.Meta.Stages {
		rows = append(rows, []string{stage.Name, stage.Status, strconv.FormatInt(stage.ElapsedMS, 10)})
	}
	return renderTable([]string{"Stage", "Status", "Elapsed ms"}, rows, 2)
}

func renderMotion(result *pipeline.RunResult) string {
	rows := make([][]string, 0, len(result.Motion.Transitions)+1)
	for _, t := range result.Motion.Transitions {
		rows = append(rows, []string{t.Key, t.Label, strconv.FormatFloat(t.Ratio, 'f', 6, 64)})
	}
	rows = append(rows, []string{"verdict", result.Motion.Timing, yesNo(result.Motion.MotionDetected)})
	return renderTable([]string{"Transition", "Label", "Ratio"}, rows, 2)
}

func renderAssignment(result *pipeline.RunResult) string {
	c := result.Classification
	rows := [][]string{
		{"offense", c.OffenseSide, c.OffenseTeam, c.OffenseJerseyColor},
		{"defense", c.DefenseSide, c.DefenseTeam, c.DefenseJerseyColor},
	}
	table := renderTable([]string{"Unit", "Side", "Team", "Jersey"}, rows)
	if c.IsFallback() {
		table += "\nclassification fallback: " + c.FallbackReason
	} else {
		table += "\nconfidence: " + c.Confidence
	}
	return table
}

func renderNeighbours(result *pipeline.RunResult) string {
	labelsByID := make(map[string][]string, len(result.Candidates.PerExample))
	for _, example := range result.Candidates.PerExample {
		labelsByID[example.ID] = example.Labels
	}
	rows := make([][]string, 0, len(result.Retrieval.Examples))
	for _, example := range result.Retrieval.Examples {
		rows = append(rows, []string{
			example.ID,
			strconv.FormatFloat(example.Distance, 'f', 4, 64),
			strings.Join(labelsByID[example.ID], ", "),
		})
	}
	table := renderTable([]string{"Example", "Distance", "Labels"}, rows, 1)
	return table + fmt.Sprintf("\ncandidates (%s): %s", result.Candidates.Source, strings.Join(result.Candidates.Labels, ", "))
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
