package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"golang.org/x/image/draw"
)

// Normalizer decodes raw JPEG frames and rescales them to the session resolution.
type Normalizer struct {
	width   int
	height  int
	quality int
}

func NewNormalizer(width, height, quality int) *Normalizer {
	if quality <= 0 {
		quality = 80
	}
	return &Normalizer{width: width, height: height, quality: quality}
}

func (n *Normalizer) Normalize(data []byte, capturedAt time.Time) (*Frame, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty frame data")
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %w", err)
	}

	b := img.Bounds()
	if n.width > 0 && n.height > 0 && (b.Dx() != n.width || b.Dy() != n.height) {
		dst := image.NewRGBA(image.Rect(0, 0, n.width, n.height))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		img = dst

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: n.quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		data = buf.Bytes()
	}

	return &Frame{
		Timestamp: capturedAt.UnixMilli(),
		Data:      data,
		Image:     img,
		Width:     img.Bounds().Dx(),
		Height:    img.Bounds().Dy(),
	}, nil
}
