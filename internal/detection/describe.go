package detection

import (
	"fmt"
	"strings"
)

const (
	smallAreaRatio  = 0.05
	mediumAreaRatio = 0.2
)

type ObjectDescription struct {
	Label           string
	Size            string
	Region          string
	Color           string
	HorizontalAngle float64
	VerticalAngle   float64
	Confidence      float64
}

func (d ObjectDescription) Text() string {
	return fmt.Sprintf("I see a %s %s at the %s. The color of the object is %s. "+
		"It is positioned at an angle of %.2f degrees horizontally and %.2f degrees vertically.",
		d.Size, d.Label, d.Region, d.Color, d.HorizontalAngle, d.VerticalAngle)
}

// SizeClass buckets the box area relative to the frame. Ratios sitting exactly
// on a threshold fall into the larger class.
func SizeClass(width, height float64, frame FrameDescriptor) string {
	frameArea := float64(frame.Width) * float64(frame.Height)
	if frameArea <= 0 {
		return "small"
	}
	ratio := (width * height) / frameArea
	switch {
	case ratio < smallAreaRatio:
		return "small"
	case ratio < mediumAreaRatio:
		return "medium"
	default:
		return "large"
	}
}

// DescribePosition returns "<vertical> <horizontal>". A center lying exactly on
// a third line counts as center.
func DescribePosition(cx, cy float64, frame FrameDescriptor) string {
	w, h := float64(frame.Width), float64(frame.Height)

	horizontal := "center"
	if cx < w/3 {
		horizontal = "left"
	} else if cx > 2*w/3 {
		horizontal = "right"
	}

	vertical := "center"
	if cy < h/3 {
		vertical = "top"
	} else if cy > 2*h/3 {
		vertical = "bottom"
	}

	return vertical + " " + horizontal
}

func ColorLabel(c RGB) string {
	below := func(limit float64) bool {
		return c.R < limit && c.G < limit && c.B < limit
	}
	switch {
	case below(50):
		return "very dark"
	case below(100):
		return "dark"
	case below(150):
		return "medium"
	case below(200):
		return "light"
	default:
		return "very light"
	}
}

// Angle maps a pixel coordinate to degrees off the optical axis.
func Angle(position, fov float64, size int) float64 {
	center := float64(size) / 2
	if center == 0 {
		return 0
	}
	return (position - center) / center * (fov / 2)
}

func Describe(d Detection, frame FrameDescriptor) ObjectDescription {
	cx, cy := d.Box.Center()
	return ObjectDescription{
		Label:           d.Label,
		Size:            SizeClass(d.Box.Width(), d.Box.Height(), frame),
		Region:          DescribePosition(cx, cy, frame),
		Color:           ColorLabel(d.MeanColor),
		HorizontalAngle: Angle(cx, frame.HorizontalFOV, frame.Width),
		VerticalAngle:   Angle(cy, frame.VerticalFOV(), frame.Height),
		Confidence:      d.Confidence,
	}
}

func DescribeAll(dets []Detection, frame FrameDescriptor) []ObjectDescription {
	out := make([]ObjectDescription, 0, len(dets))
	for _, d := range dets {
		out = append(out, Describe(d, frame))
	}
	return out
}

// SceneSummary counts detections per label in first-seen order.
func SceneSummary(dets []Detection) string {
	if len(dets) == 0 {
		return ""
	}
	counts := make(map[string]int)
	var order []string
	for _, d := range dets {
		if _, ok := counts[d.Label]; !ok {
			order = append(order, d.Label)
		}
		counts[d.Label]++
	}

	parts := make([]string, 0, len(order))
	for _, label := range order {
		parts = append(parts, fmt.Sprintf("%d %s(s)", counts[label], label))
	}
	return strings.Join(parts, ", ")
}
