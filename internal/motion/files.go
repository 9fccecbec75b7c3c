package motion

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// DetectFiles decodes the frame images at paths and analyzes them.
func DetectFiles(paths []string, timestamps []float64, opts Options) (Report, error) {
	frames := make([]image.Image, len(paths))
	for i, path := range paths {
		img, err := decodeFrame(path)
		if err != nil {
			return Report{}, err
		}
		frames[i] = img
	}
	return Analyze(frames, timestamps, opts)
}

func decodeFrame(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", path, err)
	}
	return img, nil
}
