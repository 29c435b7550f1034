package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/bgai/bgai-backend/internal/apierr"
	"github.com/bgai/bgai-backend/internal/logger"
	"github.com/bgai/bgai-backend/internal/repos"
	"github.com/bgai/bgai-backend/internal/types"
)

type ChatSessionService interface {
	// GetOrCreate resolves the conversation for one (user, game) turn. A
	// supplied session id is reused only when the session is active and
	// belongs to the same user and game; any mismatch falls through to a
	// fresh session so one user can never continue another user's thread.
	GetOrCreate(ctx context.Context, userID, gameID uuid.UUID, language, modelProvider, modelName string, sessionID *uuid.UUID) (*types.ChatSession, error)
	AppendMessage(ctx context.Context, sessionID uuid.UUID, sender, content string, metadata map[string]any) (*types.ChatMessage, error)
	// History returns the most recent limit messages in chronological order.
	History(ctx context.Context, sessionID uuid.UUID, limit int) ([]*types.ChatMessage, error)
	// UpdateStats increments the session counters. Failures are logged and
	// swallowed: stats must never fail a user-facing response.
	UpdateStats(ctx context.Context, sessionID uuid.UUID, messageDelta, tokenDelta int)
	// Close transitions the session to closed; sessions are never erased.
	Close(ctx context.Context, userID, sessionID uuid.UUID) error
}

type chatSessionService struct {
	db          *gorm.DB
	log         *logger.Logger
	sessionRepo repos.ChatSessionRepo
	messageRepo repos.ChatMessageRepo
}

func NewChatSessionService(db *gorm.DB, baseLog *logger.Logger, sessionRepo repos.ChatSessionRepo, messageRepo repos.ChatMessageRepo) ChatSessionService {
	return &chatSessionService{
		db:          db,
		log:         baseLog.With("service", "ChatSessionService"),
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
	}
}

func (s *chatSessionService) GetOrCreate(ctx context.Context, userID, gameID uuid.UUID, language, modelProvider, modelName string, sessionID *uuid.UUID) (*types.ChatSession, error) {
	now := time.Now().UTC()

	if sessionID != nil && *sessionID != uuid.Nil {
		session, err := s.sessionRepo.GetActiveOwned(ctx, nil, *sessionID, userID)
		if err != nil {
			s.log.Warn("session lookup failed, creating a new session", "session_id", sessionID.String(), "error", err)
		} else if session != nil && session.GameID == gameID {
			if err := s.sessionRepo.TouchActivity(ctx, nil, session.ID, now); err != nil {
				s.log.Warn("session activity touch failed", "session_id", session.ID.String(), "error", err)
			}
			session.LastActivityAt = now
			return session, nil
		}
	}

	session := &types.ChatSession{
		ID:             uuid.New(),
		UserID:         userID,
		GameID:         gameID,
		Language:       language,
		ModelProvider:  modelProvider,
		ModelName:      modelName,
		Status:         types.SessionStatusActive,
		StartedAt:      now,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	created, err := s.sessionRepo.Create(ctx, nil, session)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}
	return created, nil
}

func (s *chatSessionService) AppendMessage(ctx context.Context, sessionID uuid.UUID, sender, content string, metadata map[string]any) (*types.ChatMessage, error) {
	var metaJSON datatypes.JSON
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode message metadata: %w", err)
		}
		metaJSON = datatypes.JSON(raw)
	}

	message := &types.ChatMessage{
		ID:        uuid.New(),
		SessionID: sessionID,
		Sender:    sender,
		Content:   content,
		Metadata:  metaJSON,
		CreatedAt: time.Now().UTC(),
	}
	created, err := s.messageRepo.Create(ctx, nil, message)
	if err != nil {
		return nil, fmt.Errorf("failed to add chat message: %w", err)
	}
	return created, nil
}

func (s *chatSessionService) History(ctx context.Context, sessionID uuid.UUID, limit int) ([]*types.ChatMessage, error) {
	recent, err := s.messageRepo.RecentBySession(ctx, nil, sessionID, limit)
	if err != nil {
		return nil, err
	}
	// Repo returns newest first; flip to oldest first.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}

func (s *chatSessionService) UpdateStats(ctx context.Context, sessionID uuid.UUID, messageDelta, tokenDelta int) {
	if err := s.sessionRepo.IncrementStats(ctx, nil, sessionID, messageDelta, tokenDelta, time.Now().UTC()); err != nil {
		s.log.Warn("session stats update failed", "session_id", sessionID.String(), "error", err)
	}
}

func (s *chatSessionService) Close(ctx context.Context, userID, sessionID uuid.UUID) error {
	session, err := s.sessionRepo.GetActiveOwned(ctx, nil, sessionID, userID)
	if err != nil {
		return err
	}
	if session == nil {
		return apierr.New(404, "session_not_found", fmt.Errorf("no active session with this id for this user"))
	}
	if err := s.sessionRepo.Close(ctx, nil, session.ID, time.Now().UTC()); err != nil {
		s.log.Warn("session close failed", "session_id", sessionID.String(), "error", err)
	}
	return nil
}
