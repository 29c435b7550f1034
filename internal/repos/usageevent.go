package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bgai/bgai-backend/internal/logger"
	"github.com/bgai/bgai-backend/internal/types"
)

type UsageEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, event *types.UsageEvent) (*types.UsageEvent, error)
	// CountSince counts events in [since, now). A nil gameID counts across
	// all games.
	CountSince(ctx context.Context, tx *gorm.DB, userID uuid.UUID, eventType, environment string, gameID *uuid.UUID, since time.Time) (int64, error)
	GetByUserSince(ctx context.Context, tx *gorm.DB, userID uuid.UUID, environment string, since time.Time) ([]*types.UsageEvent, error)
}

type usageEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUsageEventRepo(db *gorm.DB, baseLog *logger.Logger) UsageEventRepo {
	repoLog := baseLog.With("repo", "UsageEventRepo")
	return &usageEventRepo{db: db, log: repoLog}
}

func (r *usageEventRepo) Create(ctx context.Context, tx *gorm.DB, event *types.UsageEvent) (*types.UsageEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (r *usageEventRepo) CountSince(ctx context.Context, tx *gorm.DB, userID uuid.UUID, eventType, environment string, gameID *uuid.UUID, since time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	query := transaction.WithContext(ctx).
		Model(&types.UsageEvent{}).
		Where("user_id = ? AND event_type = ? AND environment = ? AND occurred_at >= ?", userID, eventType, environment, since)
	if gameID != nil {
		query = query.Where("game_id = ?", *gameID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *usageEventRepo) GetByUserSince(ctx context.Context, tx *gorm.DB, userID uuid.UUID, environment string, since time.Time) ([]*types.UsageEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.UsageEvent
	if userID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND environment = ? AND occurred_at >= ?", userID, environment, since).
		Order("occurred_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
