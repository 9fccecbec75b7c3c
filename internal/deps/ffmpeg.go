package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// ProbeVersion runs "<binary> -version" and returns the first line of its
// output, e.g. "ffmpeg version 7.1 Copyright (c) 2000-2024 the FFmpeg developers".
func ProbeVersion(ctx context.Context, binary string) (string, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return "", fmt.Errorf("probe version: command not configured")
	}
	out, err := commandContext(ctx, binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("probe version of %s: %w", binary, err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("probe version of %s: empty output", binary)
}

// Describe runs Check and records the version line of each available binary
// in Detail. A failed version probe leaves the binary available.
func Describe(ctx context.Context, requirements []Requirement) []Status {
	statuses := Check(requirements)
	for i := range statuses {
		if !statuses[i].Available {
			continue
		}
		version, err := ProbeVersion(ctx, statuses[i].Command)
		if err != nil {
			statuses[i].Detail = err.Error()
			continue
		}
		statuses[i].Detail = version
	}
	return statuses
}
