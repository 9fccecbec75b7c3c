package motion

import (
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

var defaultOpts = Options{RatioThreshold: 0.012, PixelDiffThreshold: 25, BlurKernelSize: 7}

func uniformFrame(w, h int, value uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	return img
}

func withBlock(base *image.Gray, x0, y0, size int, value uint8) *image.Gray {
	img := image.NewGray(base.Rect)
	copy(img.Pix, base.Pix)
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			img.SetGray(x, y, color.Gray{Y: value})
		}
	}
	return img
}

func TestClassifyScenarios(t *testing.T) {
	tests := []struct {
		name       string
		ratios     []float64
		wantMotion bool
		wantTiming string
	}{
		{"early exceeds", []float64{0.02, 0.005}, true, TimingEarlyToMid},
		{"late exceeds", []float64{0.005, 0.02}, true, TimingMidToLate},
		{"both exceed late larger", []float64{0.03, 0.05}, true, TimingMidToLate},
		{"exact tie", []float64{0.03, 0.03}, true, TimingEarlyToMid},
		{"all below", []float64{0.011, 0.012}, false, TimingNone},
		{"interior pair", []float64{0.001, 0.2, 0.05}, true, TimingMid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			motion, timing := Classify(tt.ratios, 0.012)
			if motion != tt.wantMotion || timing != tt.wantTiming {
				t.Fatalf("Classify(%v) = (%v, %q), want (%v, %q)", tt.ratios, motion, timing, tt.wantMotion, tt.wantTiming)
			}
		})
	}
}

func TestAnalyzeDetectsEarlyMotion(t *testing.T) {
	still := uniformFrame(100, 100, 60)
	moved := withBlock(still, 40, 40, 20, 200)

	report, err := Analyze([]image.Image{still, moved, moved}, []float64{0, 2, 4}, defaultOpts)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !report.MotionDetected || report.Timing != TimingEarlyToMid {
		t.Fatalf("unexpected verdict: %+v", report)
	}
	ratios := report.Ratios()
	if ratios[0] <= 0.012 {
		t.Fatalf("expected first ratio above threshold, got %v", ratios[0])
	}
	if ratios[1] != 0 {
		t.Fatalf("expected identical frames to yield zero ratio, got %v", ratios[1])
	}
	if report.Transitions[0].Key != "t0_to_t2" || report.Transitions[1].Key != "t2_to_t4" {
		t.Fatalf("unexpected transition keys: %+v", report.Transitions)
	}
	if report.Thresholds.PixelDiff != 25 || report.Thresholds.MotionRatio != 0.012 {
		t.Fatalf("thresholds not recorded: %+v", report.Thresholds)
	}
}

func TestAnalyzeStillFramesReportNone(t *testing.T) {
	still := uniformFrame(32, 24, 128)
	report, err := Analyze([]image.Image{still, still, still}, []float64{0, 2, 4}, defaultOpts)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.MotionDetected || report.Timing != TimingNone {
		t.Fatalf("expected no motion, got %+v", report)
	}
}

func TestBlurSuppressesIsolatedNoise(t *testing.T) {
	still := uniformFrame(64, 64, 100)
	noisy := image.NewGray(still.Rect)
	copy(noisy.Pix, still.Pix)
	noisy.SetGray(10, 10, color.Gray{Y: 255})
	noisy.SetGray(50, 30, color.Gray{Y: 0})

	report, err := Analyze([]image.Image{still, noisy, still}, []float64{0, 2, 4}, defaultOpts)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	for _, ratio := range report.Ratios() {
		if ratio != 0 {
			t.Fatalf("expected single-pixel noise to be smoothed away, got ratios %v", report.Ratios())
		}
	}
}

func TestPixelThresholdIsStrict(t *testing.T) {
	a := uniformFrame(8, 8, 100)
	b := uniformFrame(8, 8, 125)
	opts := Options{RatioThreshold: 0.5, PixelDiffThreshold: 25, BlurKernelSize: 1}
	report, err := Analyze([]image.Image{a, b, b}, []float64{0, 1, 2}, opts)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.Ratios()[0] != 0 {
		t.Fatalf("delta equal to threshold must not count, got %v", report.Ratios()[0])
	}
	opts.PixelDiffThreshold = 24
	report, err = Analyze([]image.Image{a, b, b}, []float64{0, 1, 2}, opts)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.Ratios()[0] != 1 {
		t.Fatalf("expected every pixel to count, got %v", report.Ratios()[0])
	}
}

func TestAnalyzeValidation(t *testing.T) {
	frame := uniformFrame(4, 4, 0)
	if _, err := Analyze([]image.Image{frame, frame}, []float64{0, 2}, defaultOpts); !errors.Is(err, ErrTooFewFrames) {
		t.Fatalf("expected ErrTooFewFrames, got %v", err)
	}
	if _, err := Analyze([]image.Image{frame, frame, uniformFrame(5, 4, 0)}, []float64{0, 2, 4}, defaultOpts); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if _, err := Analyze([]image.Image{frame, frame, frame}, []float64{0, 2}, defaultOpts); err == nil {
		t.Fatal("expected timestamp count error")
	}
	bad := defaultOpts
	bad.BlurKernelSize = 4
	if _, err := Analyze([]image.Image{frame, frame, frame}, []float64{0, 2, 4}, bad); err == nil {
		t.Fatal("expected even kernel error")
	}
}

func TestLumaFromRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 255, G: 0, B: 0, A: 255})
	if got := luma(img).pix[0]; got != 76 {
		t.Fatalf("luma(red) = %d, want 76", got)
	}
}

func TestGaussianKernelSumsToOne(t *testing.T) {
	for _, size := range []int{1, 3, 5, 7, 9, 15} {
		var sum float64
		for _, w := range gaussianKernel(size) {
			sum += w
		}
		if sum < 0.999999 || sum > 1.000001 {
			t.Fatalf("kernel %d sums to %v", size, sum)
		}
	}
}

func TestDetectFilesMatchesInMemory(t *testing.T) {
	dir := t.TempDir()
	still := uniformFrame(40, 40, 30)
	moved := withBlock(still, 5, 5, 15, 220)
	frames := []image.Image{still, moved, still}
	paths := make([]string, len(frames))
	for i, frame := range frames {
		paths[i] = filepath.Join(dir, "frame_"+string(rune('0'+i))+".png")
		f, err := os.Create(paths[i])
		if err != nil {
			t.Fatalf("create frame: %v", err)
		}
		if err := png.Encode(f, frame); err != nil {
			t.Fatalf("encode frame: %v", err)
		}
		f.Close()
	}

	fromFiles, err := DetectFiles(paths, []float64{0, 2, 4}, defaultOpts)
	if err != nil {
		t.Fatalf("DetectFiles: %v", err)
	}
	inMemory, err := Analyze(frames, []float64{0, 2, 4}, defaultOpts)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	a, _ := json.Marshal(fromFiles)
	b, _ := json.Marshal(inMemory)
	if string(a) != string(b) {
		t.Fatalf("file and in-memory reports differ:\n%s\n%s", a, b)
	}
}

func TestDetectFilesMissingFrame(t *testing.T) {
	if _, err := DetectFiles([]string{"/nonexistent/a.jpg", "b", "c"}, []float64{0, 2, 4}, defaultOpts); err == nil {
		t.Fatal("expected error for missing frame")
	}
}
