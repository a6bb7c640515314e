package detection

import (
	"image"
	"math"
)

// MeanColor averages the pixels of img inside box, clamped to the image bounds.
func MeanColor(img image.Image, box Box) RGB {
	if img == nil {
		return RGB{}
	}
	bounds := img.Bounds()
	rect := image.Rect(
		int(math.Floor(box.X1)), int(math.Floor(box.Y1)),
		int(math.Ceil(box.X2)), int(math.Ceil(box.Y2)),
	).Intersect(bounds)
	if rect.Empty() {
		return RGB{}
	}

	var r, g, b float64
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			r += float64(cr >> 8)
			g += float64(cg >> 8)
			b += float64(cb >> 8)
		}
	}
	n := float64(rect.Dx() * rect.Dy())
	return RGB{R: r / n, G: g / n, B: b / n}
}

// Enrich fills MeanColor for every detection from the decoded frame.
func Enrich(dets []Detection, img image.Image) []Detection {
	for i := range dets {
		dets[i].MeanColor = MeanColor(img, dets[i].Box)
	}
	return dets
}
