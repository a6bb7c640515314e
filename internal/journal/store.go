package journal

import (
	"context"
	"errors"

	"github.com/eleven-am/scene-narrator/internal/shared"
	"gorm.io/gorm"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Store persists what happened during narration sessions.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&SummaryRecord{}, &IntentRecord{}, &SearchRecord{}, &AlertRecord{})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) RecordSummary(ctx context.Context, r *SummaryRecord) error {
	if r.ID == "" {
		r.ID = shared.NewID("sum_")
	}
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *Store) RecordIntent(ctx context.Context, r *IntentRecord) error {
	if r.ID == "" {
		r.ID = shared.NewID("int_")
	}
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *Store) RecordSearch(ctx context.Context, r *SearchRecord) error {
	if r.ID == "" {
		r.ID = shared.NewID("srch_")
	}
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *Store) RecordAlert(ctx context.Context, r *AlertRecord) error {
	if r.ID == "" {
		r.ID = shared.NewID("alrt_")
	}
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *Store) GetSummary(ctx context.Context, id string) (*SummaryRecord, error) {
	var r SummaryRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &r, err
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// list returns the newest rows first, optionally narrowed to one session.
func list[T any](ctx context.Context, db *gorm.DB, sessionID string, limit int) ([]*T, error) {
	q := db.WithContext(ctx)
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	var out []*T
	err := q.Order("created_at DESC").Limit(clampLimit(limit)).Find(&out).Error
	return out, err
}

func (s *Store) ListSummaries(ctx context.Context, sessionID string, limit int) ([]*SummaryRecord, error) {
	return list[SummaryRecord](ctx, s.db, sessionID, limit)
}

func (s *Store) ListIntents(ctx context.Context, sessionID string, limit int) ([]*IntentRecord, error) {
	return list[IntentRecord](ctx, s.db, sessionID, limit)
}

func (s *Store) ListSearches(ctx context.Context, sessionID string, limit int) ([]*SearchRecord, error) {
	return list[SearchRecord](ctx, s.db, sessionID, limit)
}

func (s *Store) ListAlerts(ctx context.Context, sessionID string, limit int) ([]*AlertRecord, error) {
	return list[AlertRecord](ctx, s.db, sessionID, limit)
}
