package bootstrap

import (
	"log/slog"

	"github.com/eleven-am/scene-narrator/internal/journal"
	"github.com/eleven-am/scene-narrator/internal/llm"
	"github.com/eleven-am/scene-narrator/internal/vision"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideJournalStore(db *gorm.DB) *journal.Store {
	if db == nil {
		return nil
	}
	return journal.NewStore(db)
}

func ProvideFrameStore(redisClient *redis.Client, cfg *Config) *vision.Store {
	if redisClient == nil {
		return nil
	}
	return vision.NewStore(redisClient, cfg.FrameTTL)
}

func ProvideMemory(client *qdrant.Client, llmClient llm.Client, cfg *Config, logger *slog.Logger) *journal.Memory {
	if client == nil {
		return nil
	}
	return journal.NewMemory(client, llmClient, cfg.QdrantCollection, logger)
}

func RunMigrations(store *journal.Store) error {
	if store == nil {
		return nil
	}
	return store.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideJournalStore,
		ProvideFrameStore,
		ProvideMemory,
	),
	fx.Invoke(RunMigrations),
)
