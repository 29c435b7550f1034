package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bgai/bgai-backend/internal/logger"
	"github.com/bgai/bgai-backend/internal/types"
)

type GameRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Game, error)
	ListByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, statuses []string) ([]*types.Game, error)
	ListAllIDs(ctx context.Context, tx *gorm.DB) ([]uuid.UUID, error)
}

type gameRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGameRepo(db *gorm.DB, baseLog *logger.Logger) GameRepo {
	repoLog := baseLog.With("repo", "GameRepo")
	return &gameRepo{db: db, log: repoLog}
}

func (r *gameRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Game, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var game types.Game
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *gameRepo) ListByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, statuses []string) ([]*types.Game, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Game
	if len(ids) == 0 {
		return results, nil
	}

	query := transaction.WithContext(ctx).Where("id IN ?", ids)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if err := query.Order("name_base ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *gameRepo) ListAllIDs(ctx context.Context, tx *gorm.DB) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.Game{}).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
