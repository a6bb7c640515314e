package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/scene-narrator/internal/llm"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const DefaultCollection = "scene_summaries"

var ErrMemoryDisabled = errors.New("scene memory not configured")

type pointsClient interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

type Recollection struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	At        time.Time `json:"at"`
	Score     float32   `json:"score"`
}

// Memory keeps embeddings of past summaries so questions can draw on what was
// seen earlier.
type Memory struct {
	client     pointsClient
	embedder   llm.Embedder
	collection string
	logger     *slog.Logger

	mu    sync.Mutex
	ready bool
}

func NewMemory(client *qdrant.Client, embedder llm.Embedder, collection string, logger *slog.Logger) *Memory {
	if client == nil {
		return newMemory(nil, embedder, collection, logger)
	}
	return newMemory(client, embedder, collection, logger)
}

func newMemory(client pointsClient, embedder llm.Embedder, collection string, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &Memory{
		client:     client,
		embedder:   embedder,
		collection: collection,
		logger:     logger.With("component", "memory", "collection", collection),
	}
}

func (m *Memory) ensureCollection(ctx context.Context, dim int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return nil
	}

	exists, err := m.client.CollectionExists(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		err := m.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: m.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		m.logger.Info("collection created", "dim", dim)
	}
	m.ready = true
	return nil
}

func (m *Memory) Remember(ctx context.Context, sessionID, text string, at time.Time) error {
	if m == nil || m.client == nil || m.embedder == nil {
		return ErrMemoryDisabled
	}

	vector, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed summary: %w", err)
	}
	if err := m.ensureCollection(ctx, len(vector)); err != nil {
		return err
	}

	_, err = m.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: m.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(uuid.NewString()),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"session_id": sessionID,
					"text":       text,
					"at":         at.Unix(),
				}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

func (m *Memory) Recall(ctx context.Context, query string, limit int) ([]Recollection, error) {
	if m == nil || m.client == nil || m.embedder == nil {
		return nil, ErrMemoryDisabled
	}
	if limit <= 0 {
		limit = 3
	}

	vector, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := m.ensureCollection(ctx, len(vector)); err != nil {
		return nil, err
	}

	results, err := m.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: m.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query memory: %w", err)
	}

	out := make([]Recollection, 0, len(results))
	for _, r := range results {
		rec := Recollection{Score: r.GetScore()}
		if r.Id != nil {
			rec.ID = r.Id.GetUuid()
		}
		payload := r.GetPayload()
		if v, ok := payload["text"]; ok {
			rec.Text = v.GetStringValue()
		}
		if v, ok := payload["session_id"]; ok {
			rec.SessionID = v.GetStringValue()
		}
		if v, ok := payload["at"]; ok {
			rec.At = time.Unix(v.GetIntegerValue(), 0).UTC()
		}
		if rec.Text != "" {
			out = append(out, rec)
		}
	}
	return out, nil
}
