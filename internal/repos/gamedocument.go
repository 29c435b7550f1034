package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bgai/bgai-backend/internal/logger"
	"github.com/bgai/bgai-backend/internal/types"
)

type GameDocumentRepo interface {
	// FirstReady returns any ready document with a vector store id for the
	// game and language; (nil, nil) when none exists. All ready documents of
	// one game+language share a single store, so one row is enough.
	FirstReady(ctx context.Context, tx *gorm.DB, gameID uuid.UUID, language string) (*types.GameDocument, error)
}

type gameDocumentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGameDocumentRepo(db *gorm.DB, baseLog *logger.Logger) GameDocumentRepo {
	repoLog := baseLog.With("repo", "GameDocumentRepo")
	return &gameDocumentRepo{db: db, log: repoLog}
}

func (r *gameDocumentRepo) FirstReady(ctx context.Context, tx *gorm.DB, gameID uuid.UUID, language string) (*types.GameDocument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var doc types.GameDocument
	err := transaction.WithContext(ctx).
		Where("game_id = ? AND language = ? AND status = ? AND vector_store_id <> ''", gameID, language, types.DocumentStatusReady).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
