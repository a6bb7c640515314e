package bootstrap

import (
	"github.com/eleven-am/scene-narrator/internal/control"
	"github.com/eleven-am/scene-narrator/internal/detection"
	"github.com/eleven-am/scene-narrator/internal/health"
	"github.com/eleven-am/scene-narrator/internal/llm"
	"github.com/eleven-am/scene-narrator/internal/stream"
	"github.com/labstack/echo/v4"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const version = "1.0.0"

func ProvideHealthHandler(
	db *gorm.DB,
	redisClient *redis.Client,
	qdrantClient *qdrant.Client,
	llmClient llm.Client,
	detector *detection.Client,
	loop *control.Loop,
	broadcaster *stream.Broadcaster,
	captions *stream.Captions,
) *health.Handler {
	return health.NewHandler(health.Components{
		DB:       db,
		Redis:    redisClient,
		Qdrant:   qdrantClient,
		LLM:      llmClient,
		Detector: detector,
		Loop:     loop,
		Stream:   broadcaster,
		Captions: captions,
	}, version)
}

func metricsMiddleware(h *health.Handler) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h.IncrementRequests()
			h.IncrementConnections()
			defer h.DecrementConnections()
			return next(c)
		}
	}
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	e.Use(metricsMiddleware(h))
	h.RegisterRoutes(e)
}

var HealthModule = fx.Options(
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
