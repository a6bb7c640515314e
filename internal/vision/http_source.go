package vision

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPSource polls a snapshot endpoint (IP cameras, phone webcam apps).
type HTTPSource struct {
	httpClient *http.Client
	url        string
	interval   time.Duration
	normalizer *Normalizer
	logger     *slog.Logger

	last time.Time
}

func NewHTTPSource(cfg Config, logger *slog.Logger) *HTTPSource {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &HTTPSource{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		url:        cfg.Source,
		interval:   time.Second / time.Duration(cfg.FrameRate),
		normalizer: NewNormalizer(cfg.Width, cfg.Height, cfg.Quality),
		logger:     logger.With("component", "http-source"),
	}
}

func (s *HTTPSource) Next(ctx context.Context) (*Frame, error) {
	if wait := s.interval - time.Since(s.last); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.last = time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCameraRead, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrCameraRead, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: snapshot returned status %d", ErrCameraRead, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxJPEGSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCameraRead, err)
	}

	frame, err := s.normalizer.Normalize(data, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCameraRead, err)
	}
	return frame, nil
}

func (s *HTTPSource) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}
