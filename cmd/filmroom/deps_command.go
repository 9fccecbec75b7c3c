package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"filmroom/internal/deps"
)

type depsReport struct {
	Tools       []deps.Status    `json:"tools"`
	Directories []deps.DirStatus `json:"directories"`
}

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check the external media tools and working directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := depsReport{
				Tools:       deps.Describe(cmd.Context(), deps.MediaRequirements(cfg)),
				Directories: deps.CheckDirectories(deps.WorkingDirectories(cfg)),
			}
			problems := errors.Join(deps.RequireAvailable(report.Tools), deps.RequireWritable(report.Directories))
			if jsonOutput {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
				return problems
			}

			out := cmd.OutOrStdout()
			toolRows := make([][]string, 0, len(report.Tools))
			for _, status := range report.Tools {
				location := status.Path
				if location == "" {
					location = status.Command
				}
				toolRows = append(toolRows, []string{status.Name, location, yesNo(status.Available), status.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Tool", "Path", "Available", "Detail"}, toolRows))

			dirRows := make([][]string, 0, len(report.Directories))
			for _, status := range report.Directories {
				dirRows = append(dirRows, []string{status.Name, status.Path, yesNo(status.Writable), status.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Directory", "Path", "Writable", "Detail"}, dirRows))
			return problems
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print dependency status as JSON")
	return cmd
}
