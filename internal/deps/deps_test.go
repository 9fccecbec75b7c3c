package deps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"filmroom/internal/config"
	"filmroom/internal/services"
)

func TestCheck(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  "},
	}

	results := Check(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" || results[0].Path != present {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected status for unset command: %#v", results[2])
	}
}

func TestMediaRequirementsUseConfiguredBinaries(t *testing.T) {
	cfg := config.Default()
	cfg.Clip.FFmpegBinary = "/opt/ffmpeg/bin/ffmpeg"
	cfg.Clip.FFprobeBinary = "/opt/ffmpeg/bin/ffprobe"
	reqs := MediaRequirements(&cfg)
	if len(reqs) != 2 || reqs[0].Command != cfg.Clip.FFmpegBinary || reqs[1].Command != cfg.Clip.FFprobeBinary {
		t.Fatalf("unexpected requirements %+v", reqs)
	}
}

func TestRequireAvailable(t *testing.T) {
	ok := []Status{{Requirement: Requirement{Name: "FFmpeg"}, Available: true}}
	if err := RequireAvailable(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	missing := []Status{
		{Requirement: Requirement{Name: "FFmpeg"}, Available: true},
		{Requirement: Requirement{Name: "FFprobe"}, Detail: `binary "ffprobe" not found`},
	}
	err := RequireAvailable(missing)
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
	if !strings.Contains(err.Error(), "FFprobe") || strings.Contains(err.Error(), "FFmpeg (") {
		t.Fatalf("error should name only missing tools: %v", err)
	}
}

func stubCommand(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "DEPS_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() { commandContext = original })
}

func TestProbeVersionReturnsFirstLine(t *testing.T) {
	stubCommand(t, "version")
	got, err := ProbeVersion(context.Background(), "ffmpeg")
	if err != nil {
		t.Fatalf("ProbeVersion: %v", err)
	}
	if got != "ffmpeg version 7.1 Copyright (c) 2000-2024 the FFmpeg developers" {
		t.Fatalf("unexpected version %q", got)
	}
}

func TestProbeVersionFailure(t *testing.T) {
	stubCommand(t, "fail")
	if _, err := ProbeVersion(context.Background(), "ffmpeg"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := ProbeVersion(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestDescribeKeepsAvailabilityOnProbeFailure(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "ffmpeg")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	stubCommand(t, "fail")
	statuses := Describe(context.Background(), []Requirement{{Name: "FFmpeg", Command: present}})
	if !statuses[0].Available || !strings.Contains(statuses[0].Detail, "probe version") {
		t.Fatalf("unexpected status %+v", statuses[0])
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("DEPS_HELPER_MODE") {
	case "version":
		fmt.Fprintln(os.Stdout, "")
		fmt.Fprintln(os.Stdout, "ffmpeg version 7.1 Copyright (c) 2000-2024 the FFmpeg developers")
		fmt.Fprintln(os.Stdout, "built with gcc 14")
		os.Exit(0)
	default:
		fmt.Fprintln(os.Stderr, "boom")
		os.Exit(1)
	}
}
