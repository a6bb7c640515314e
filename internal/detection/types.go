package detection

import (
	"context"
	"time"
)

type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b Box) Width() float64  { return b.X2 - b.X1 }
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

func (b Box) Center() (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Detection is one object instance reported by the detector for a single frame.
// It is never mutated after Enrich and carries no identity across frames.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	MeanColor  RGB     `json:"mean_color"`
}

type FrameDescriptor struct {
	Width         int
	Height        int
	HorizontalFOV float64
}

func (f FrameDescriptor) VerticalFOV() float64 {
	if f.Width == 0 {
		return 0
	}
	return f.HorizontalFOV * float64(f.Height) / float64(f.Width)
}

// Evidence is the output of one detector call together with the frame it ran on.
type Evidence struct {
	Detections []Detection
	Frame      FrameDescriptor
	Image      []byte
	CapturedAt time.Time
}

type Detector interface {
	Detect(ctx context.Context, jpeg []byte) ([]Detection, error)
}
