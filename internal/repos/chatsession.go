package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bgai/bgai-backend/internal/logger"
	"github.com/bgai/bgai-backend/internal/types"
)

type ChatSessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, session *types.ChatSession) (*types.ChatSession, error)
	// GetActiveOwned returns the active session only when it belongs to the
	// given user; a missing row is (nil, nil), not an error.
	GetActiveOwned(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (*types.ChatSession, error)
	TouchActivity(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error
	IncrementStats(ctx context.Context, tx *gorm.DB, id uuid.UUID, messageDelta, tokenDelta int, at time.Time) error
	Close(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error
}

type chatSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatSessionRepo(db *gorm.DB, baseLog *logger.Logger) ChatSessionRepo {
	repoLog := baseLog.With("repo", "ChatSessionRepo")
	return &chatSessionRepo{db: db, log: repoLog}
}

func (r *chatSessionRepo) Create(ctx context.Context, tx *gorm.DB, session *types.ChatSession) (*types.ChatSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *chatSessionRepo) GetActiveOwned(ctx context.Context, tx *gorm.DB, id, userID uuid.UUID) (*types.ChatSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var session types.ChatSession
	err := transaction.WithContext(ctx).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, types.SessionStatusActive).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *chatSessionRepo) TouchActivity(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.ChatSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_activity_at": at,
			"updated_at":       at,
		}).Error
}

func (r *chatSessionRepo) IncrementStats(ctx context.Context, tx *gorm.DB, id uuid.UUID, messageDelta, tokenDelta int, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.ChatSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_messages":       gorm.Expr("total_messages + ?", messageDelta),
			"total_token_estimate": gorm.Expr("total_token_estimate + ?", tokenDelta),
			"last_activity_at":     at,
			"updated_at":           at,
		}).Error
}

func (r *chatSessionRepo) Close(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.ChatSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     types.SessionStatusClosed,
			"closed_at":  at,
			"updated_at": at,
		}).Error
}
