package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"filmroom/internal/classify"
	"filmroom/internal/config"
	"filmroom/internal/fileutil"
	"filmroom/internal/media/clip"
	"filmroom/internal/motion"
	"filmroom/internal/pipeline"
	"filmroom/internal/retrieval"
	"filmroom/internal/services"
	"filmroom/internal/testsupport"
	"filmroom/internal/vectorstore"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	embedCalls int
}

// setupCLITestEnv writes a config whose model endpoint is a local server that
// answers embedContent calls with a fixed vector.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	env := &cliTestEnv{baseDir: base}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "mbedContent") {
			http.Error(w, `{"error":{"code":404,"message":"not found","status":"NOT_FOUND"}}`, http.StatusNotFound)
			return
		}
		env.embedCalls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[0.5,0.25,1]}]}`))
	}))
	t.Cleanup(server.Close)

	opts = append([]testsupport.ConfigOption{testsupport.WithStubbedBinaries(), testsupport.WithAPIKey("test-key")}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Gemini.BaseURL = server.URL
	env.cfg = cfg
	env.configPath = filepath.Join(homeDir, ".config", "filmroom", "config.toml")
	writeTestConfig(t, env.configPath, cfg)
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestConfigValidateRejectsBadCalibration(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Motion.BlurKernelSize = 4
	writeTestConfig(t, env.configPath, env.cfg)

	_, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "blur_kernel_size") {
		t.Fatalf("expected calibration error, got %v", err)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, redacted)
	requireContains(t, out, "ratio_threshold")
	if strings.Contains(out, "test-key") {
		t.Fatalf("api key leaked:\n%s", out)
	}
}

func TestShowRendersCombinedArtifact(t *testing.T) {
	runDir := filepath.Join(t.TempDir(), "bills_at_chiefs__20261019_120000")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		t.Fatal(err)
	}
	started := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	result := pipeline.RunResult{
		Meta: pipeline.Meta{
			RunID:      "bills_at_chiefs__20261019_120000",
			InputVideo: "/clips/Bills at Chiefs.mp4",
			StartedAt:  started,
			FinishedAt: started.Add(42 * time.Second),
			Models:     pipeline.Models{Classify: "gemini-2.5-flash-lite", Final: "gemini-3-flash-preview", Embed: "text-embedding-004"},
			Stages:     []pipeline.StageRecord{{Name: pipeline.StageMotion, Status: "ok", ElapsedMS: 12}},
		},
		Clip: pipeline.ClipInfo{Window: clip.Window{Start: 0, Duration: 6, SampleOffsets: []float64{0, 2, 4}}, Method: clip.MethodCopy},
		Motion: motion.Report{
			Transitions: []motion.Transition{
				{Key: "t0_to_t2", Label: motion.TimingEarlyToMid, Ratio: 0.02},
				{Key: "t2_to_t4", Label: motion.TimingMidToLate, Ratio: 0.005},
			},
			MotionDetected: true,
			Timing:         motion.TimingEarlyToMid,
		},
		Classification: classify.Fallback(services.ErrMalformedResponse),
		Retrieval: retrieval.Result{
			Examples: []vectorstore.Example{{ID: "week_3_kc", Distance: 0.25}},
		},
		Candidates: retrieval.CandidateSet{
			Labels:     []string{"mesh", "stick"},
			Source:     retrieval.SourceRetrieval,
			PerExample: []retrieval.ExampleLabels{{ID: "week_3_kc", Labels: []string{"mesh", "stick"}}},
		},
		Narrative: "Buffalo in white aligns in trips right.",
	}
	if err := fileutil.WriteJSONAtomic(filepath.Join(runDir, pipeline.CombinedFile), result); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"show", runDir}, "")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"bills_at_chiefs__20261019_120000", "t0_to_t2", "0.020000", "week_3_kc", "mesh, stick", "classification fallback", "Buffalo in white aligns in trips right."} {
		requireContains(t, out, want)
	}

	out, _, err = runCLI(t, []string{"show", "--json", filepath.Join(runDir, pipeline.CombinedFile)}, "")
	if err != nil {
		t.Fatalf("show --json: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode show --json: %v", err)
	}
	if decoded["narrative"] != result.Narrative {
		t.Fatalf("unexpected narrative %v", decoded["narrative"])
	}
}

func TestShowMissingRun(t *testing.T) {
	if _, _, err := runCLI(t, []string{"show", filepath.Join(t.TempDir(), "absent")}, ""); err == nil {
		t.Fatal("expected error for missing run")
	}
}

func TestCorpusAddSearchAndCount(t *testing.T) {
	env := setupCLITestEnv(t)
	docs := filepath.Join(env.baseDir, "docs")
	testsupport.WriteJSON(t, filepath.Join(docs, "week3.json"), map[string]any{
		"id":        "week_3_kc",
		"top_plays": []string{"Mesh", "Stick"},
	})
	testsupport.WriteJSON(t, filepath.Join(docs, "bills.json"), map[string]any{
		"meta":       map[string]any{"run_id": "bills_vs_kc__20261019_120000"},
		"prediction": map[string]any{"play": "Inside Zone"},
	})

	out, _, err := runCLI(t, []string{"corpus", "add", filepath.Join(docs, "week3.json"), filepath.Join(docs, "bills.json")}, env.configPath)
	if err != nil {
		t.Fatalf("corpus add: %v", err)
	}
	requireContains(t, out, "Stored 2 document(s) in nfl_clips")
	requireContains(t, out, "week_3_kc")
	if env.embedCalls != 2 {
		t.Fatalf("expected 2 embed calls, got %d", env.embedCalls)
	}

	out, _, err = runCLI(t, []string{"corpus", "search", "trips", "right"}, env.configPath)
	if err != nil {
		t.Fatalf("corpus search: %v", err)
	}
	requireContains(t, out, "bills_vs_kc__20261019_120000")
	requireContains(t, out, "mesh, stick")
	requireContains(t, out, "inside zone")

	out, _, err = runCLI(t, []string{"corpus", "count"}, env.configPath)
	if err != nil {
		t.Fatalf("corpus count: %v", err)
	}
	requireContains(t, out, "nfl_clips: 2 document(s)")
}

func TestCorpusSearchEmptyCollection(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"corpus", "search", "--top-k", "2", "empty"}, env.configPath)
	if err != nil {
		t.Fatalf("corpus search: %v", err)
	}
	requireContains(t, out, "No documents in nfl_clips")
}

func TestDepsReportsStubbedTools(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"deps"}, env.configPath)
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "FFprobe")
}

func TestDepsFailsWhenToolMissing(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Clip.FFprobeBinary = "clearly-not-present-ffprobe"
	writeTestConfig(t, env.configPath, env.cfg)

	_, _, err := runCLI(t, []string{"deps"}, env.configPath)
	if err == nil || services.Kind(err) != "input" {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestAnalyzeMissingVideoReportsStage(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"analyze", filepath.Join(env.baseDir, "missing.mp4")}, env.configPath)
	if err == nil {
		t.Fatal("expected error for missing video")
	}
	requireContains(t, describeError(err), "input failed [input]")
}

func TestAnalyzeRequiresAPIKey(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPIKey(""))
	video := filepath.Join(env.baseDir, "clip.mp4")
	testsupport.WriteFile(t, video, 1024)

	_, _, err := runCLI(t, []string{"analyze", video}, env.configPath)
	if err == nil || services.Kind(err) != "input" {
		t.Fatalf("expected input error, got %v", err)
	}
	requireContains(t, err.Error(), "gemini.api_key is required")
}

func TestDescribeErrorWithoutStage(t *testing.T) {
	if got := describeError(os.ErrNotExist); got != os.ErrNotExist.Error() {
		t.Fatalf("unexpected description %q", got)
	}
}
