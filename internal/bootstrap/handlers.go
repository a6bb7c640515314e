package bootstrap

import (
	"log/slog"
	"os"

	"github.com/eleven-am/scene-narrator/internal/control"
	"github.com/eleven-am/scene-narrator/internal/journal"
	"github.com/eleven-am/scene-narrator/internal/stream"
	"github.com/eleven-am/scene-narrator/internal/vision"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	return logger
}

func ProvideStreamHandler(broadcaster *stream.Broadcaster, captions *stream.Captions, frames *vision.Store, loop *control.Loop, logger *slog.Logger) *stream.Handler {
	var store stream.FrameStore
	if frames != nil {
		store = frames
	}
	return stream.NewHandler(broadcaster, captions, store, loop.SessionID, logger)
}

func ProvideJournalHandler(store *journal.Store, memory *journal.Memory, logger *slog.Logger) *journal.Handler {
	return journal.NewHandler(store, memory, logger)
}

type HandlerParams struct {
	fx.In

	StreamHandler  *stream.Handler
	JournalHandler *journal.Handler
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	params.StreamHandler.RegisterRoutes(e)
	params.JournalHandler.RegisterRoutes(e)
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideStreamHandler,
		ProvideJournalHandler,
	),
	fx.Invoke(RegisterRoutes),
)
