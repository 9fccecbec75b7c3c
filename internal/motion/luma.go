package motion

import (
	"image"
	"math"
)

// plane is a single-channel 8-bit intensity image.
type plane struct {
	w, h int
	pix  []uint8
}

// luma converts img to BT.601 intensity (0.299R + 0.587G + 0.114B). JPEG
// frames decode to YCbCr whose Y plane already holds that value.
func luma(img image.Image) *plane {
	b := img.Bounds()
	p := &plane{w: b.Dx(), h: b.Dy(), pix: make([]uint8, b.Dx()*b.Dy())}
	switch src := img.(type) {
	case *image.YCbCr:
		for y := 0; y < p.h; y++ {
			for x := 0; x < p.w; x++ {
				p.pix[y*p.w+x] = src.Y[src.YOffset(b.Min.X+x, b.Min.Y+y)]
			}
		}
	case *image.Gray:
		for y := 0; y < p.h; y++ {
			copy(p.pix[y*p.w:(y+1)*p.w], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
	default:
		for y := 0; y < p.h; y++ {
			for x := 0; x < p.w; x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				v := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
				p.pix[y*p.w+x] = clampByte(v)
			}
		}
	}
	return p
}

// smallKernels are the fixed binomial kernels used for sizes up to 7 when no
// explicit sigma is given, matching the common OpenCV behaviour.
var smallKernels = map[int][]float64{
	1: {1},
	3: {0.25, 0.5, 0.25},
	5: {0.0625, 0.25, 0.375, 0.25, 0.0625},
	7: {0.03125, 0.109375, 0.21875, 0.28125, 0.21875, 0.109375, 0.03125},
}

func gaussianKernel(size int) []float64 {
	if k, ok := smallKernels[size]; ok {
		return k
	}
	sigma := 0.3*(float64(size-1)*0.5-1) + 0.8
	kernel := make([]float64, size)
	center := float64(size-1) / 2
	var sum float64
	for i := range kernel {
		d := float64(i) - center
		kernel[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// gaussianBlur applies a separable blur with reflect-101 borders.
func gaussianBlur(src *plane, size int) *plane {
	if size <= 1 {
		return src
	}
	kernel := gaussianKernel(size)
	radius := size / 2
	tmp := make([]float64, len(src.pix))
	for y := 0; y < src.h; y++ {
		row := src.pix[y*src.w : (y+1)*src.w]
		for x := 0; x < src.w; x++ {
			var acc float64
			for k, weight := range kernel {
				acc += weight * float64(row[reflect101(x+k-radius, src.w)])
			}
			tmp[y*src.w+x] = acc
		}
	}
	out := &plane{w: src.w, h: src.h, pix: make([]uint8, len(src.pix))}
	for y := 0; y < src.h; y++ {
		for x := 0; x < src.w; x++ {
			var acc float64
			for k, weight := range kernel {
				acc += weight * tmp[reflect101(y+k-radius, src.h)*src.w+x]
			}
			out.pix[y*src.w+x] = clampByte(acc)
		}
	}
	return out
}

// diffRatio is the fraction of pixels whose absolute difference exceeds threshold.
func diffRatio(a, b *plane, threshold int) float64 {
	if len(a.pix) == 0 {
		return 0
	}
	changed := 0
	for i := range a.pix {
		d := int(a.pix[i]) - int(b.pix[i])
		if d < 0 {
			d = -d
		}
		if d > threshold {
			changed++
		}
	}
	return float64(changed) / float64(len(a.pix))
}

func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}
