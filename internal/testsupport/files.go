package testsupport

import (
	"bytes"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes size filler bytes (at least one) to path, creating parent
// directories. Tests use it as a stand-in source video.
func WriteFile(t testing.TB, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, max(size, 1)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// GrayFrame returns a w x h black frame whose first lit pixels, in row-major
// order, are set to full intensity.
func GrayFrame(w, h, lit int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := 0; i < lit && i < len(img.Pix); i++ {
		img.Pix[i] = 0xff
	}
	return img
}

// WriteJSON encodes v to path.
func WriteJSON(t testing.TB, path string, v any) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
