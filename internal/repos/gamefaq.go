package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bgai/bgai-backend/internal/logger"
	"github.com/bgai/bgai-backend/internal/types"
)

type GameFAQRepo interface {
	VisibleByGameAndLanguage(ctx context.Context, tx *gorm.DB, gameID uuid.UUID, language string) ([]*types.GameFAQ, error)
}

type gameFAQRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGameFAQRepo(db *gorm.DB, baseLog *logger.Logger) GameFAQRepo {
	repoLog := baseLog.With("repo", "GameFAQRepo")
	return &gameFAQRepo{db: db, log: repoLog}
}

func (r *gameFAQRepo) VisibleByGameAndLanguage(ctx context.Context, tx *gorm.DB, gameID uuid.UUID, language string) ([]*types.GameFAQ, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.GameFAQ
	if gameID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("game_id = ? AND language = ? AND visible = ?", gameID, language, true).
		Order("display_order ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
