package storage

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestProbeImage(t *testing.T) {
	data := encodePNG(t, 800, 600)

	meta, err := ProbeImage(data)
	if err != nil {
		t.Fatalf("ProbeImage failed: %v", err)
	}
	if meta.Width != 800 || meta.Height != 600 {
		t.Errorf("dimensions = %dx%d, want 800x600", meta.Width, meta.Height)
	}
	if meta.Format != "png" {
		t.Errorf("Format = %q, want png", meta.Format)
	}
}

func TestProbeImageRejectsGarbage(t *testing.T) {
	if _, err := ProbeImage([]byte("not an image")); err == nil {
		t.Error("expected error for non-image data")
	}
}

func TestMakeThumbnail(t *testing.T) {
	testCases := []struct {
		name       string
		width      int
		height     int
		wantWidth  int
		wantHeight int
	}{
		{name: "landscape scales to max edge", width: 1600, height: 800, wantWidth: 400, wantHeight: 200},
		{name: "portrait scales to max edge", width: 600, height: 1200, wantWidth: 200, wantHeight: 400},
		{name: "small image keeps its size", width: 200, height: 100, wantWidth: 200, wantHeight: 100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			thumb, err := MakeThumbnail(encodePNG(t, tc.width, tc.height))
			if err != nil {
				t.Fatalf("MakeThumbnail failed: %v", err)
			}

			img, err := jpeg.Decode(bytes.NewReader(thumb))
			if err != nil {
				t.Fatalf("thumbnail is not a decodable JPEG: %v", err)
			}

			bounds := img.Bounds()
			if bounds.Dx() != tc.wantWidth || bounds.Dy() != tc.wantHeight {
				t.Errorf("thumbnail = %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), tc.wantWidth, tc.wantHeight)
			}
		})
	}
}
