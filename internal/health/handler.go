package health

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eleven-am/scene-narrator/internal/control"
	"github.com/labstack/echo/v4"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	// StatusDisabled marks an optional component that was not configured.
	StatusDisabled Status = "disabled"
)

type ComponentStatus struct {
	Status    Status `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type RuntimeStats struct {
	Goroutines         int    `json:"goroutines"`
	MemoryAllocMB      uint64 `json:"memory_alloc_mb"`
	MemoryTotalAllocMB uint64 `json:"memory_total_alloc_mb"`
	MemorySysMB        uint64 `json:"memory_sys_mb"`
	NumGC              uint32 `json:"num_gc"`
}

type StreamStats struct {
	VideoSubscribers int    `json:"video_subscribers"`
	CaptionClients   int    `json:"caption_clients"`
	FramesPublished  uint64 `json:"frames_published"`
}

type RequestStats struct {
	TotalRequests     uint64 `json:"total_requests"`
	ActiveConnections int64  `json:"active_connections"`
}

type Stats struct {
	Loop     control.Stats `json:"loop"`
	Stream   StreamStats   `json:"stream"`
	Requests RequestStats  `json:"requests"`
	Runtime  RuntimeStats  `json:"runtime"`
}

type HealthResponse struct {
	Status        Status                     `json:"status"`
	Timestamp     time.Time                  `json:"timestamp"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Stats         Stats                      `json:"stats"`
	Components    map[string]ComponentStatus `json:"components"`
}

type LoopStats interface {
	Stats() control.Stats
}

type Availability interface {
	IsAvailable(ctx context.Context) bool
}

type StreamCounters interface {
	Subscribers() int
	Published() uint64
}

type ClientCounter interface {
	Clients() int
}

// Components lists what readiness checks. Database, Redis and Qdrant are
// optional; the loop and the detector are critical.
type Components struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Qdrant   *qdrant.Client
	LLM      Availability
	Detector Availability
	Loop     LoopStats
	Stream   StreamCounters
	Captions ClientCounter
	// StallAfter is how long the loop may go without a tick while observing.
	StallAfter time.Duration
}

type Handler struct {
	c         Components
	version   string
	startTime time.Time
	now       func() time.Time

	totalRequests     uint64
	activeConnections int64
}

func NewHandler(c Components, version string) *Handler {
	if c.StallAfter <= 0 {
		c.StallAfter = 30 * time.Second
	}
	return &Handler{
		c:         c,
		version:   version,
		startTime: time.Now(),
		now:       time.Now,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Liveness)
	e.GET("/health/ready", h.Readiness)
}

func (h *Handler) IncrementRequests() {
	atomic.AddUint64(&h.totalRequests, 1)
}

func (h *Handler) IncrementConnections() {
	atomic.AddInt64(&h.activeConnections, 1)
}

func (h *Handler) DecrementConnections() {
	atomic.AddInt64(&h.activeConnections, -1)
}

func (h *Handler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *Handler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	components := make(map[string]ComponentStatus)
	var mu sync.Mutex
	var wg sync.WaitGroup

	checks := []struct {
		name  string
		check func(context.Context) ComponentStatus
	}{
		{"database", h.checkDatabase},
		{"redis", h.checkRedis},
		{"qdrant", h.checkQdrant},
		{"llm", h.checkLLM},
		{"detector", h.checkDetector},
		{"loop", h.checkLoop},
	}

	wg.Add(len(checks))
	for _, check := range checks {
		go func(name string, fn func(context.Context) ComponentStatus) {
			defer wg.Done()
			status := fn(ctx)
			mu.Lock()
			components[name] = status
			mu.Unlock()
		}(check.name, check.check)
	}
	wg.Wait()

	overallStatus := h.computeOverallStatus(components)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := Stats{
		Requests: RequestStats{
			TotalRequests:     atomic.LoadUint64(&h.totalRequests),
			ActiveConnections: atomic.LoadInt64(&h.activeConnections),
		},
		Runtime: RuntimeStats{
			Goroutines:         runtime.NumGoroutine(),
			MemoryAllocMB:      memStats.Alloc / 1024 / 1024,
			MemoryTotalAllocMB: memStats.TotalAlloc / 1024 / 1024,
			MemorySysMB:        memStats.Sys / 1024 / 1024,
			NumGC:              memStats.NumGC,
		},
	}
	if h.c.Loop != nil {
		stats.Loop = h.c.Loop.Stats()
	}
	if h.c.Stream != nil {
		stats.Stream.VideoSubscribers = h.c.Stream.Subscribers()
		stats.Stream.FramesPublished = h.c.Stream.Published()
	}
	if h.c.Captions != nil {
		stats.Stream.CaptionClients = h.c.Captions.Clients()
	}

	resp := HealthResponse{
		Status:        overallStatus,
		Timestamp:     h.now().UTC(),
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Stats:         stats,
		Components:    components,
	}

	statusCode := http.StatusOK
	if overallStatus == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, resp)
}

func (h *Handler) checkDatabase(ctx context.Context) ComponentStatus {
	start := time.Now()
	if h.c.DB == nil {
		return ComponentStatus{Status: StatusDisabled, Error: "database not configured"}
	}

	sqlDB, err := h.c.DB.DB()
	if err != nil {
		return ComponentStatus{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "failed to get underlying db",
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return ComponentStatus{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "ping failed",
		}
	}

	return ComponentStatus{
		Status:    h.evaluateDBStats(sqlDB.Stats()),
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func (h *Handler) evaluateDBStats(stats sql.DBStats) Status {
	if stats.OpenConnections >= stats.MaxOpenConnections && stats.MaxOpenConnections > 0 {
		return StatusDegraded
	}
	return StatusHealthy
}

func (h *Handler) checkRedis(ctx context.Context) ComponentStatus {
	start := time.Now()
	if h.c.Redis == nil {
		return ComponentStatus{Status: StatusDisabled, Error: "redis not configured"}
	}

	if err := h.c.Redis.Ping(ctx).Err(); err != nil {
		return ComponentStatus{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "ping failed",
		}
	}

	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func (h *Handler) checkQdrant(ctx context.Context) ComponentStatus {
	start := time.Now()
	if h.c.Qdrant == nil {
		return ComponentStatus{Status: StatusDisabled, Error: "qdrant not configured"}
	}

	if _, err := h.c.Qdrant.ListCollections(ctx); err != nil {
		return ComponentStatus{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "list collections failed",
		}
	}

	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func (h *Handler) checkLLM(ctx context.Context) ComponentStatus {
	return checkAvailability(ctx, h.c.LLM, "llm")
}

func (h *Handler) checkDetector(ctx context.Context) ComponentStatus {
	return checkAvailability(ctx, h.c.Detector, "detector")
}

func checkAvailability(ctx context.Context, a Availability, name string) ComponentStatus {
	start := time.Now()
	if a == nil {
		return ComponentStatus{Status: StatusUnhealthy, Error: name + " not configured"}
	}
	if !a.IsAvailable(ctx) {
		return ComponentStatus{
			Status:    StatusUnhealthy,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     name + " unreachable",
		}
	}
	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func (h *Handler) checkLoop(ctx context.Context) ComponentStatus {
	if h.c.Loop == nil {
		return ComponentStatus{Status: StatusUnhealthy, Error: "loop not configured"}
	}

	stats := h.c.Loop.Stats()
	switch {
	case !stats.Running:
		msg := "loop not running"
		if stats.LastError != "" {
			msg = stats.LastError
		}
		return ComponentStatus{Status: StatusUnhealthy, Error: msg}
	case stats.Phase != control.PhaseObserving:
		// handlers and searches block the tick on purpose
		return ComponentStatus{Status: StatusHealthy}
	case stats.LastTick.IsZero():
		return ComponentStatus{Status: StatusDegraded, Error: "no frames yet"}
	case h.now().Sub(stats.LastTick) > h.c.StallAfter:
		return ComponentStatus{Status: StatusUnhealthy, Error: "loop stalled"}
	}
	return ComponentStatus{Status: StatusHealthy}
}

func (h *Handler) computeOverallStatus(components map[string]ComponentStatus) Status {
	criticalComponents := []string{"loop", "detector"}

	for _, name := range criticalComponents {
		if status, ok := components[name]; ok && status.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
	}

	hasUnhealthy := false
	hasDegraded := false
	for _, status := range components {
		if status.Status == StatusUnhealthy {
			hasUnhealthy = true
		}
		if status.Status == StatusDegraded {
			hasDegraded = true
		}
	}

	if hasUnhealthy || hasDegraded {
		return StatusDegraded
	}

	return StatusHealthy
}
