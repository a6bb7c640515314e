package vision

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"strings"
	"time"
)

// ErrCameraRead marks a failed camera read; it ends the session.
var ErrCameraRead = errors.New("camera read failed")

type Frame struct {
	SessionID string
	Timestamp int64
	Data      []byte
	Image     image.Image
	Width     int
	Height    int
}

func (f *Frame) Time() time.Time {
	return time.UnixMilli(f.Timestamp)
}

// Source is the exclusively owned camera device.
type Source interface {
	Next(ctx context.Context) (*Frame, error)
	Close() error
}

type Config struct {
	Source     string
	FFmpegPath string
	Width      int
	Height     int
	FrameRate  int
	Quality    int
	Timeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Width <= 0 {
		c.Width = 1280
	}
	if c.Height <= 0 {
		c.Height = 720
	}
	if c.FrameRate <= 0 {
		c.FrameRate = 10
	}
	if c.Quality <= 0 {
		c.Quality = 80
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

// NewSource picks the snapshot poller for http(s) URLs and ffmpeg otherwise.
func NewSource(cfg Config, logger *slog.Logger) Source {
	if strings.HasPrefix(cfg.Source, "http://") || strings.HasPrefix(cfg.Source, "https://") {
		return NewHTTPSource(cfg, logger)
	}
	if cfg.Source == "" {
		cfg.Source = "/dev/video0"
	}
	return NewFFmpegSource(cfg, logger)
}
