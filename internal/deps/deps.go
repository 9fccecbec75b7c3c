package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"filmroom/internal/config"
	"filmroom/internal/services"
)

// Requirement names an external binary an analysis run shells out to.
type Requirement struct {
	Name    string `json:"name"`
	Command string `json:"command"`
	Purpose string `json:"purpose"`
}

// Status is the outcome of resolving one Requirement on PATH.
type Status struct {
	Requirement
	Path      string `json:"path,omitempty"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// MediaRequirements lists the configured ffmpeg and ffprobe binaries.
func MediaRequirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.Clip.FFmpegBinary, Purpose: "trims the analysis window and samples frames"},
		{Name: "FFprobe", Command: cfg.Clip.FFprobeBinary, Purpose: "confirms trimmed clips carry video"},
	}
}

// Check resolves every requirement with exec.LookPath.
func Check(requirements []Requirement) []Status {
	statuses := make([]Status, len(requirements))
	for i, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		statuses[i] = resolve(req)
	}
	return statuses
}

func resolve(req Requirement) Status {
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Path = path
	status.Available = true
	return status
}

// RequireAvailable returns an input error naming every unavailable binary.
func RequireAvailable(statuses []Status) error {
	var missing []string
	for _, status := range statuses {
		if !status.Available {
			missing = append(missing, fmt.Sprintf("%s (%s)", status.Name, status.Detail))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return services.Wrap(services.ErrInput, "input", "check_dependencies",
		"missing "+strings.Join(missing, ", ")+"; run 'filmroom deps'", nil)
}
