package search

import (
	"context"
	"time"

	"github.com/eleven-am/scene-narrator/internal/detection"
	"github.com/eleven-am/scene-narrator/internal/vision"
)

type Status string

const (
	StatusIdle        Status = "idle"
	StatusNormalizing Status = "normalizing"
	StatusScanning    Status = "scanning"
	StatusFound       Status = "found"
	StatusTimedOut    Status = "timed_out"
	StatusAborted     Status = "aborted"
)

func (s Status) Terminal() bool {
	return s == StatusFound || s == StatusTimedOut || s == StatusAborted
}

const (
	MessageCannotFind = "I do not have the ability to find that object."
	MessagePan        = "Please slowly pan the camera so I can scan your environment."
	MessageFound      = "Object found, please remain still."
	MessageNoGuidance = "Sorry, I could not work out how to guide you there."
	MessageNormalize  = "Sorry, I could not understand which object to look for."
)

// Session is the record of one search, returned when the task ends.
type Session struct {
	ID        string
	Requested string
	Target    string
	Status    Status
	StartedAt time.Time
	EndedAt   time.Time
	Frames    int
	Region    string
	Guidance  string
	Match     *detection.Detection
}

func (s Session) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

type Narrator interface {
	Speak(ctx context.Context, text string) error
}

type Config struct {
	Timeout       time.Duration
	MaxFrames     int
	HorizontalFOV float64
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxFrames <= 0 {
		c.MaxFrames = 300
	}
	if c.HorizontalFOV <= 0 {
		c.HorizontalFOV = 70
	}
	return c
}

// FrameHook observes every frame consumed while scanning.
type FrameHook func(frame *vision.Frame, dets []detection.Detection)
