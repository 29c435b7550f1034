package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/bgai/bgai-backend/internal/logger"
	"github.com/bgai/bgai-backend/internal/repos"
	"github.com/bgai/bgai-backend/internal/types"
)

// LimitCheck is the result of a daily quota check. A nil DailyLimit means
// unlimited; Remaining is nil in that case.
type LimitCheck struct {
	HasQuota   bool      `json:"has_quota"`
	DailyUsed  int       `json:"daily_used"`
	DailyLimit *int      `json:"daily_limit,omitempty"`
	Remaining  *int      `json:"remaining,omitempty"`
	ResetAt    time.Time `json:"reset_at"`
}

// UserStats aggregates a user's events over a trailing window.
type UserStats struct {
	UserID      uuid.UUID      `json:"user_id"`
	Days        int            `json:"days"`
	TotalEvents int            `json:"total_events"`
	EventCounts map[string]int `json:"event_counts"`
	GameCounts  map[string]int `json:"game_counts"`
	PeriodStart time.Time      `json:"period_start"`
	PeriodEnd   time.Time      `json:"period_end"`
}

type UsageService interface {
	// Record appends a usage event. It never fails the caller: errors are
	// logged and swallowed.
	Record(ctx context.Context, userID uuid.UUID, eventType string, gameID *uuid.UUID, featureKey string, extra map[string]any)
	CountToday(ctx context.Context, userID uuid.UUID, eventType string, gameID *uuid.UUID) (int, error)
	// CheckDailyLimit is advisory: it reads the count and compares, with no
	// atomic guard, so a burst of concurrent requests can each observe
	// remaining quota and overshoot the limit by a small margin. The ledger
	// favors availability over strict enforcement; see QuotaGuard for the
	// opt-in strict counter.
	CheckDailyLimit(ctx context.Context, userID uuid.UUID, eventType string, gameID *uuid.UUID, dailyLimit *int) (*LimitCheck, error)
	Stats(ctx context.Context, userID uuid.UUID, days int) (*UserStats, error)
}

type usageService struct {
	db          *gorm.DB
	log         *logger.Logger
	repo        repos.UsageEventRepo
	environment string
}

func NewUsageService(db *gorm.DB, baseLog *logger.Logger, repo repos.UsageEventRepo, environment string) UsageService {
	return &usageService{
		db:          db,
		log:         baseLog.With("service", "UsageService"),
		repo:        repo,
		environment: environment,
	}
}

// startOfTodayUTC returns midnight UTC of the current day. The quota window
// is always UTC, with no per-user timezone adjustment.
func startOfTodayUTC(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func nextMidnightUTC(now time.Time) time.Time {
	return startOfTodayUTC(now).AddDate(0, 0, 1)
}

func (s *usageService) Record(ctx context.Context, userID uuid.UUID, eventType string, gameID *uuid.UUID, featureKey string, extra map[string]any) {
	var extraJSON datatypes.JSON
	if len(extra) > 0 {
		if raw, err := json.Marshal(extra); err == nil {
			extraJSON = datatypes.JSON(raw)
		}
	}

	event := &types.UsageEvent{
		ID:          uuid.New(),
		UserID:      userID,
		EventType:   eventType,
		GameID:      gameID,
		FeatureKey:  featureKey,
		Environment: s.environment,
		ExtraInfo:   extraJSON,
		OccurredAt:  time.Now().UTC(),
	}
	if _, err := s.repo.Create(ctx, nil, event); err != nil {
		s.log.Warn("usage event write failed", "event_type", eventType, "user_id", userID.String(), "error", err)
	}
}

func (s *usageService) CountToday(ctx context.Context, userID uuid.UUID, eventType string, gameID *uuid.UUID) (int, error) {
	count, err := s.repo.CountSince(ctx, nil, userID, eventType, s.environment, gameID, startOfTodayUTC(time.Now()))
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *usageService) CheckDailyLimit(ctx context.Context, userID uuid.UUID, eventType string, gameID *uuid.UUID, dailyLimit *int) (*LimitCheck, error) {
	now := time.Now().UTC()
	if dailyLimit == nil {
		return &LimitCheck{HasQuota: true, ResetAt: nextMidnightUTC(now)}, nil
	}

	used, err := s.CountToday(ctx, userID, eventType, gameID)
	if err != nil {
		return nil, err
	}

	remaining := *dailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return &LimitCheck{
		HasQuota:   remaining > 0,
		DailyUsed:  used,
		DailyLimit: dailyLimit,
		Remaining:  &remaining,
		ResetAt:    nextMidnightUTC(now),
	}, nil
}

func (s *usageService) Stats(ctx context.Context, userID uuid.UUID, days int) (*UserStats, error) {
	if days <= 0 {
		days = 7
	}
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -days)

	events, err := s.repo.GetByUserSince(ctx, nil, userID, s.environment, start)
	if err != nil {
		return nil, err
	}

	stats := &UserStats{
		UserID:      userID,
		Days:        days,
		TotalEvents: len(events),
		EventCounts: map[string]int{},
		GameCounts:  map[string]int{},
		PeriodStart: start,
		PeriodEnd:   now,
	}
	for _, event := range events {
		stats.EventCounts[event.EventType]++
		if event.GameID != nil {
			stats.GameCounts[event.GameID.String()]++
		}
	}
	return stats, nil
}
