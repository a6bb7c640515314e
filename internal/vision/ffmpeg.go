package vision

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

const maxJPEGSize = 16 * 1024 * 1024

// FFmpegSource reads an MJPEG stream that ffmpeg produces from a capture device.
// A reader goroutine owns the pipe and keeps only the newest frame, so Next
// never blocks on the pipe itself and always returns a fresh image.
type FFmpegSource struct {
	cfg        Config
	normalizer *Normalizer
	logger     *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	frames  chan []byte
	done    chan struct{}
	readErr error
	closed  bool
}

func NewFFmpegSource(cfg Config, logger *slog.Logger) *FFmpegSource {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &FFmpegSource{
		cfg:        cfg,
		normalizer: NewNormalizer(cfg.Width, cfg.Height, cfg.Quality),
		logger:     logger.With("component", "ffmpeg-source", "device", cfg.Source),
	}
}

func (s *FFmpegSource) args() []string {
	size := strconv.Itoa(s.cfg.Width) + "x" + strconv.Itoa(s.cfg.Height)
	return []string{
		"-loglevel", "error",
		"-f", "v4l2",
		"-video_size", size,
		"-framerate", strconv.Itoa(s.cfg.FrameRate),
		"-i", s.cfg.Source,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"-",
	}
}

// start must be called with s.mu held.
func (s *FFmpegSource) start() error {
	cmd := exec.Command(s.cfg.FFmpegPath, s.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	s.cmd = cmd
	s.frames = make(chan []byte, 1)
	s.done = make(chan struct{})
	go s.read(cmd, stdout, s.frames, s.done)

	s.logger.Info("camera opened", "width", s.cfg.Width, "height", s.cfg.Height)
	return nil
}

func (s *FFmpegSource) read(cmd *exec.Cmd, stdout io.Reader, frames chan []byte, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 512*1024), maxJPEGSize)
	scanner.Split(splitJPEG)

	for scanner.Scan() {
		raw := make([]byte, len(scanner.Bytes()))
		copy(raw, scanner.Bytes())
		select {
		case frames <- raw:
		default:
			// drop the stale frame nobody picked up
			select {
			case <-frames:
			default:
			}
			frames <- raw
		}
	}

	err := scanner.Err()
	if werr := cmd.Wait(); err == nil {
		err = werr
	}
	if err == nil {
		err = io.EOF
	}

	s.mu.Lock()
	s.readErr = err
	s.mu.Unlock()
	close(frames)
}

// Next waits for the next frame or for ctx. A cancelled wait leaves the
// stream running for the following call.
func (s *FFmpegSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: source closed", ErrCameraRead)
	}
	if s.frames == nil {
		if err := s.start(); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %v", ErrCameraRead, err)
		}
	}
	frames := s.frames
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case raw, ok := <-frames:
		if !ok {
			s.mu.Lock()
			err := s.readErr
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %v", ErrCameraRead, err)
		}
		frame, err := s.normalizer.Normalize(raw, time.Now())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCameraRead, err)
		}
		return frame, nil
	}
}

func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cmd, done := s.cmd, s.done
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	_ = cmd.Process.Kill()
	<-done
	s.logger.Info("camera released")
	return nil
}

// splitJPEG is a bufio.SplitFunc yielding one complete JPEG image per token.
func splitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		if len(data) > 0 {
			// keep a trailing 0xFF in case it starts the next marker
			return len(data) - 1, nil, nil
		}
		return 0, nil, nil
	}

	end := bytes.Index(data[start+2:], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	stop := start + 2 + end + 2
	return stop, data[start:stop], nil
}
