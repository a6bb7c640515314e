package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/eleven-am/scene-narrator/internal/shared"
	"github.com/eleven-am/scene-narrator/internal/vision"
	"github.com/labstack/echo/v4"
)

const boundary = "frame"

const (
	defaultTrailWindow = 10 * time.Second
	maxTrailFrames     = 50
)

// FrameStore is the subset of the redis frame store the handler reads from.
type FrameStore interface {
	GetLatestFrame(ctx context.Context, sessionID string) (*vision.Frame, error)
	Trail(ctx context.Context, sessionID string, from, to time.Time, limit int) ([]*vision.Frame, error)
}

// TrailFrame is one stored frame; JPEG is base64 in JSON.
type TrailFrame struct {
	Timestamp int64  `json:"timestamp"`
	JPEG      []byte `json:"jpeg"`
}

type TrailResponse struct {
	SessionID string       `json:"session_id"`
	Frames    []TrailFrame `json:"frames"`
}

type Handler struct {
	broadcaster *Broadcaster
	captions    *Captions
	store       FrameStore
	sessionID   func() string
	logger      *slog.Logger
}

// NewHandler wires the viewer endpoints. store may be nil, in which case
// snapshots come from the broadcaster.
func NewHandler(broadcaster *Broadcaster, captions *Captions, store FrameStore, sessionID func() string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		broadcaster: broadcaster,
		captions:    captions,
		store:       store,
		sessionID:   sessionID,
		logger:      logger.With("component", "stream"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/video_feed", h.VideoFeed)
	e.GET("/api/v1/snapshot", h.Snapshot)
	e.GET("/api/v1/frames", h.Trail)
	e.GET("/ws/captions", h.captions.HandleWebSocket)
}

// VideoFeed serves the frames as multipart/x-mixed-replace until the client
// goes away.
func (h *Handler) VideoFeed(c echo.Context) error {
	frames, cancel := h.broadcaster.Subscribe()
	defer cancel()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "multipart/x-mixed-replace; boundary="+boundary)
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set("Connection", "close")
	res.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-frames:
			if err := writePart(res, frame); err != nil {
				h.logger.Debug("viewer disconnected", "error", err)
				return nil
			}
			res.Flush()
		}
	}
}

func writePart(w http.ResponseWriter, frame []byte) error {
	header := fmt.Sprintf("--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %s\r\n\r\n", boundary, strconv.Itoa(len(frame)))
	if _, err := w.Write([]byte(header)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}

func (h *Handler) Snapshot(c echo.Context) error {
	if h.store != nil && h.sessionID != nil {
		frame, err := h.store.GetLatestFrame(c.Request().Context(), h.sessionID())
		if err != nil {
			h.logger.Warn("frame store read failed", "error", err)
		} else if frame != nil {
			return c.Blob(http.StatusOK, "image/jpeg", frame.Data)
		}
	}

	if latest := h.broadcaster.Latest(); latest != nil {
		return c.Blob(http.StatusOK, "image/jpeg", latest)
	}
	return shared.NotFound("no_frame", "no frame has been captured yet")
}

// Trail lists the stored frames of the last ?seconds= (default 10), capped at
// 50 frames.
func (h *Handler) Trail(c echo.Context) error {
	if h.store == nil || h.sessionID == nil {
		return shared.ServiceUnavailable("frame_store_disabled", "frame store is not configured")
	}

	window := defaultTrailWindow
	if raw := c.QueryParam("seconds"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return shared.BadRequest("invalid_seconds", "seconds must be a positive integer")
		}
		window = time.Duration(secs) * time.Second
	}

	sessionID := h.sessionID()
	to := time.Now()
	frames, err := h.store.Trail(c.Request().Context(), sessionID, to.Add(-window), to, maxTrailFrames)
	if err != nil {
		h.logger.Warn("frame store read failed", "error", err)
		return shared.ServiceUnavailable("frame_store_failed", "frame store is unavailable")
	}

	resp := TrailResponse{SessionID: sessionID, Frames: make([]TrailFrame, 0, len(frames))}
	for _, f := range frames {
		resp.Frames = append(resp.Frames, TrailFrame{Timestamp: f.Timestamp, JPEG: f.Data})
	}
	return c.JSON(http.StatusOK, resp)
}
