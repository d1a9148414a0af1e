package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// maxThumbnailEdge caps the longest edge of generated thumbnails.
const maxThumbnailEdge = 400

// ImageMeta describes a decoded image.
type ImageMeta struct {
	Width  int
	Height int
	Format string
}

// ProbeImage decodes the image header and returns its dimensions and format.
func ProbeImage(data []byte) (*ImageMeta, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return &ImageMeta{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// MakeThumbnail scales the image down so its longest edge is at most 400px
// and encodes the result as JPEG. Images already within the limit are
// re-encoded without scaling.
func MakeThumbnail(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	tw, th := thumbnailSize(w, h)
	var thumb image.Image
	if tw == w && th == h {
		thumb = src
	} else {
		dst := image.NewRGBA(image.Rect(0, 0, tw, th))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		thumb = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func thumbnailSize(w, h int) (int, int) {
	if w <= maxThumbnailEdge && h <= maxThumbnailEdge {
		return w, h
	}
	if w >= h {
		return maxThumbnailEdge, max(1, h*maxThumbnailEdge/w)
	}
	return max(1, w*maxThumbnailEdge/h), maxThumbnailEdge
}
