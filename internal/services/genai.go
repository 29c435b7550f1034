package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bgai/bgai-backend/internal/apierr"
	"github.com/bgai/bgai-backend/internal/logger"
	"github.com/bgai/bgai-backend/internal/types"
)

// historyLimit caps the conversation context sent to the provider.
const historyLimit = 10

type ChatQueryInput struct {
	GameID    uuid.UUID
	Question  string
	Language  string
	SessionID *uuid.UUID
}

type ChatUsageLimits struct {
	DailyLimit *int      `json:"daily_limit,omitempty"`
	DailyUsed  int       `json:"daily_used"`
	Remaining  *int      `json:"remaining,omitempty"`
	ResetAt    time.Time `json:"reset_at"`
}

type ChatQueryResponse struct {
	SessionID        uuid.UUID        `json:"session_id"`
	Answer           string           `json:"answer"`
	Citations        []Citation       `json:"citations"`
	ModelInfo        ModelInfo        `json:"model_info"`
	Limits           *ChatUsageLimits `json:"limits,omitempty"`
	LanguageFallback bool             `json:"language_fallback,omitempty"`
}

// GenAIService is the per-question entry point. It is stateless between
// invocations; all state lives in the session store and the usage ledger.
type GenAIService interface {
	Query(ctx context.Context, userID uuid.UUID, role string, input ChatQueryInput) (*ChatQueryResponse, error)
	// Flush blocks until all deferred persistence of previous turns has
	// completed. Used by tests and on shutdown.
	Flush()
}

type genAIService struct {
	log      *logger.Logger
	games    GamesService
	access   FeatureAccessService
	usage    UsageService
	sessions ChatSessionService
	know     KnowledgeService
	provider GeminiClient
	guard    QuotaGuard // nil unless strict quota enforcement is configured

	turns sync.WaitGroup
}

func NewGenAIService(baseLog *logger.Logger, games GamesService, access FeatureAccessService, usage UsageService, sessions ChatSessionService, know KnowledgeService, provider GeminiClient, guard QuotaGuard) GenAIService {
	return &genAIService{
		log:      baseLog.With("service", "GenAIService"),
		games:    games,
		access:   access,
		usage:    usage,
		sessions: sessions,
		know:     know,
		provider: provider,
		guard:    guard,
	}
}

func (s *genAIService) Query(ctx context.Context, userID uuid.UUID, role string, input ChatQueryInput) (*ChatQueryResponse, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, apierr.New(400, "invalid_request", fmt.Errorf("question must not be empty"))
	}

	// Step 1: catalog access. A game outside the caller's set is a 404.
	game, err := s.games.GetByID(ctx, userID, role, input.GameID)
	if err != nil {
		return nil, err
	}

	// Step 2: chat feature flag; the daily limit rides in its metadata.
	chatAccess, err := s.access.CheckChatAccess(ctx, userID, role, input.GameID)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("chat access check failed: %w", err))
	}
	if !chatAccess.HasAccess {
		return nil, apierr.ChatDisabled(fmt.Errorf("chat not enabled for your role (%s)", chatAccess.Reason))
	}
	dailyLimit := chatAccess.ChatMetadata().DailyLimit

	// Step 3: quota. Advisory check first; the optional strict guard
	// reserves a unit atomically on top of it.
	var check *LimitCheck
	if dailyLimit != nil {
		check, err = s.usage.CheckDailyLimit(ctx, userID, types.EventChatQuestion, &input.GameID, dailyLimit)
		if err != nil {
			return nil, apierr.Internal(fmt.Errorf("quota check failed: %w", err))
		}
		if !check.HasQuota {
			return nil, apierr.QuotaExceededAt(
				fmt.Errorf("daily limit reached (%d questions per day)", *dailyLimit),
				check.ResetAt,
			)
		}
		if s.guard != nil {
			reserved, gerr := s.guard.Reserve(ctx, userID, input.GameID, *dailyLimit)
			if gerr != nil {
				s.log.Warn("quota guard unavailable, falling back to advisory check", "error", gerr)
			} else if !reserved {
				return nil, apierr.QuotaExceededAt(
					fmt.Errorf("daily limit reached (%d questions per day)", *dailyLimit),
					check.ResetAt,
				)
			}
		}
	}

	// Step 4: session, with ownership validated inside the store.
	session, err := s.sessions.GetOrCreate(ctx, userID, input.GameID, input.Language, s.provider.Provider(), s.provider.ModelName(), input.SessionID)
	if err != nil {
		s.releaseReservation(userID, input.GameID, dailyLimit)
		return nil, apierr.Internal(fmt.Errorf("failed to create or retrieve session: %w", err))
	}

	// Step 5: knowledge index for the requested language.
	index, err := s.know.Resolve(ctx, input.GameID, input.Language)
	if err != nil {
		s.releaseReservation(userID, input.GameID, dailyLimit)
		return nil, err
	}

	// Step 6: conversation context, assistant translated to the provider's
	// "model" role at this boundary.
	messages, err := s.sessions.History(ctx, session.ID, historyLimit)
	if err != nil {
		s.log.Warn("history fetch failed, continuing without context", "session_id", session.ID.String(), "error", err)
		messages = nil
	}
	history := make([]ChatTurn, 0, len(messages))
	for _, msg := range messages {
		turnRole := msg.Sender
		if turnRole == types.SenderAssistant {
			turnRole = "model"
		}
		history = append(history, ChatTurn{Role: turnRole, Text: msg.Content})
	}

	// Step 7: the provider call. Detached from the caller's cancellation so
	// a client disconnect cannot strand a charged call unlogged; the client
	// enforces its own timeout.
	callCtx := context.WithoutCancel(ctx)
	result, err := s.provider.Answer(callCtx, ChatQuery{
		Question:      question,
		VectorStoreID: index.VectorStoreID,
		Language:      input.Language,
		History:       history,
		GameName:      game.NameBase,
		GameSummary:   game.Description,
	})
	if err != nil {
		s.releaseReservation(userID, input.GameID, dailyLimit)
		return nil, apierr.Provider(fmt.Errorf("AI provider error: %w", err))
	}

	// Step 8: deferred persistence. Does not block the response, but the
	// handler can wait for it via Flush.
	tokenEstimate := 0
	if result.ModelInfo.TotalTokens != nil {
		tokenEstimate = *result.ModelInfo.TotalTokens
	}
	s.turns.Add(1)
	go s.persistTurn(callCtx, userID, input, session.ID, question, result, tokenEstimate)

	// Step 9: response, with limits reflecting the question just spent.
	var limits *ChatUsageLimits
	if check != nil {
		used := check.DailyUsed + 1
		remaining := 0
		if check.DailyLimit != nil && *check.DailyLimit > used {
			remaining = *check.DailyLimit - used
		}
		limits = &ChatUsageLimits{
			DailyLimit: check.DailyLimit,
			DailyUsed:  used,
			Remaining:  &remaining,
			ResetAt:    check.ResetAt,
		}
	}

	citations := result.Citations
	if citations == nil {
		citations = []Citation{}
	}

	return &ChatQueryResponse{
		SessionID:        session.ID,
		Answer:           result.Answer,
		Citations:        citations,
		ModelInfo:        result.ModelInfo,
		Limits:           limits,
		LanguageFallback: index.Fallback,
	}, nil
}

// persistTurn writes the message log, session stats and ledger events for a
// completed turn. Every write is a soft failure: logged, never surfaced. A
// crash here loses only this turn's log, not the session.
func (s *genAIService) persistTurn(ctx context.Context, userID uuid.UUID, input ChatQueryInput, sessionID uuid.UUID, question string, result *ChatResult, tokenEstimate int) {
	defer s.turns.Done()

	if _, err := s.sessions.AppendMessage(ctx, sessionID, types.SenderUser, question, nil); err != nil {
		s.log.Warn("user message write failed", "session_id", sessionID.String(), "error", err)
	}
	if _, err := s.sessions.AppendMessage(ctx, sessionID, types.SenderAssistant, result.Answer, map[string]any{
		"citations":  result.Citations,
		"model_info": result.ModelInfo,
	}); err != nil {
		s.log.Warn("assistant message write failed", "session_id", sessionID.String(), "error", err)
	}

	s.sessions.UpdateStats(ctx, sessionID, 2, tokenEstimate)

	s.usage.Record(ctx, userID, types.EventChatQuestion, &input.GameID, types.FeatureChat, map[string]any{
		"session_id":      sessionID.String(),
		"language":        input.Language,
		"question_length": len(question),
	})
	s.usage.Record(ctx, userID, types.EventChatAnswer, &input.GameID, types.FeatureChat, map[string]any{
		"session_id":      sessionID.String(),
		"answer_length":   len(result.Answer),
		"citations_count": len(result.Citations),
		"tokens_used":     tokenEstimate,
	})
}

func (s *genAIService) releaseReservation(userID, gameID uuid.UUID, dailyLimit *int) {
	if s.guard == nil || dailyLimit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.guard.Release(ctx, userID, gameID)
}

func (s *genAIService) Flush() {
	s.turns.Wait()
}
