package motion

import (
	"errors"
	"fmt"
	"image"
	"strconv"
)

// Timing labels.
const (
	TimingNone       = "none"
	TimingEarlyToMid = "early_to_mid"
	TimingMid        = "mid"
	TimingMidToLate  = "mid_to_late"
)

// Method identifies the detection algorithm in reports.
const Method = "luma_absdiff_threshold"

// ErrTooFewFrames is returned when fewer than three frames are supplied.
var ErrTooFewFrames = errors.New("motion analysis requires at least 3 frames")

// Options carries the calibration parameters.
type Options struct {
	RatioThreshold     float64
	PixelDiffThreshold int
	BlurKernelSize     int
}

// Thresholds records the calibration a report was computed with.
type Thresholds struct {
	MotionRatio float64 `json:"motion_ratio_threshold"`
	PixelDiff   int     `json:"diff_threshold"`
	BlurKernel  int     `json:"blur_kernel_size"`
}

// Transition is one consecutive frame pair.
type Transition struct {
	Key   string  `json:"key"`
	Label string  `json:"label"`
	From  float64 `json:"from_sec"`
	To    float64 `json:"to_sec"`
	Ratio float64 `json:"ratio"`
}

// Report is the deterministic motion verdict for one frame sequence.
type Report struct {
	Method         string       `json:"method"`
	FrameTimes     []float64    `json:"frame_times_sec"`
	Thresholds     Thresholds   `json:"thresholds"`
	Transitions    []Transition `json:"transitions"`
	MotionDetected bool         `json:"motion_detected"`
	Timing         string       `json:"timing"`
}

// Ratios returns the pairwise ratios in transition order.
func (r Report) Ratios() []float64 {
	out := make([]float64, len(r.Transitions))
	for i, t := range r.Transitions {
		out[i] = t.Ratio
	}
	return out
}

// Analyze computes the motion report for frames sampled at the given
// timestamps. Timestamps label the transitions and must match frames in length.
func Analyze(frames []image.Image, timestamps []float64, opts Options) (Report, error) {
	if len(frames) < 3 {
		return Report{}, ErrTooFewFrames
	}
	if len(timestamps) != len(frames) {
		return Report{}, fmt.Errorf("motion: %d timestamps for %d frames", len(timestamps), len(frames))
	}
	if opts.BlurKernelSize < 1 || opts.BlurKernelSize%2 == 0 {
		return Report{}, fmt.Errorf("motion: blur kernel size %d must be a positive odd number", opts.BlurKernelSize)
	}

	bounds := frames[0].Bounds()
	planes := make([]*plane, len(frames))
	for i, frame := range frames {
		if frame == nil {
			return Report{}, fmt.Errorf("motion: frame %d is nil", i)
		}
		if frame.Bounds().Dx() != bounds.Dx() || frame.Bounds().Dy() != bounds.Dy() {
			return Report{}, fmt.Errorf("motion: frame %d is %dx%d, want %dx%d", i, frame.Bounds().Dx(), frame.Bounds().Dy(), bounds.Dx(), bounds.Dy())
		}
		planes[i] = gaussianBlur(luma(frame), opts.BlurKernelSize)
	}

	ratios := make([]float64, len(planes)-1)
	for i := range ratios {
		ratios[i] = diffRatio(planes[i], planes[i+1], opts.PixelDiffThreshold)
	}

	detected, timing := Classify(ratios, opts.RatioThreshold)
	transitions := make([]Transition, len(ratios))
	for i, ratio := range ratios {
		transitions[i] = Transition{
			Key:   transitionKey(timestamps[i], timestamps[i+1]),
			Label: transitionLabel(i, len(ratios)),
			From:  timestamps[i],
			To:    timestamps[i+1],
			Ratio: ratio,
		}
	}

	return Report{
		Method:     Method,
		FrameTimes: append([]float64(nil), timestamps...),
		Thresholds: Thresholds{
			MotionRatio: opts.RatioThreshold,
			PixelDiff:   opts.PixelDiffThreshold,
			BlurKernel:  opts.BlurKernelSize,
		},
		Transitions:    transitions,
		MotionDetected: detected,
		Timing:         timing,
	}, nil
}

// Classify reports whether any ratio exceeds threshold and, if so, the label of
// the transition with the largest ratio. The earlier transition wins exact ties.
func Classify(ratios []float64, threshold float64) (bool, string) {
	best := -1
	for i, ratio := range ratios {
		if ratio <= threshold {
			continue
		}
		if best < 0 || ratio > ratios[best] {
			best = i
		}
	}
	if best < 0 {
		return false, TimingNone
	}
	return true, transitionLabel(best, len(ratios))
}

func transitionLabel(index, count int) string {
	switch {
	case index == 0:
		return TimingEarlyToMid
	case index == count-1:
		return TimingMidToLate
	default:
		return TimingMid
	}
}

func transitionKey(from, to float64) string {
	return "t" + strconv.FormatFloat(from, 'f', -1, 64) + "_to_t" + strconv.FormatFloat(to, 'f', -1, 64)
}
