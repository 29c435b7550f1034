package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/bgai/bgai-backend/internal/apierr"
	"github.com/bgai/bgai-backend/internal/logger"
	"github.com/bgai/bgai-backend/internal/repos"
	"github.com/bgai/bgai-backend/internal/types"
)

// GameFeatureMap is the per-game feature availability summary returned with
// game detail responses.
type GameFeatureMap struct {
	HasFAQAccess  bool `json:"has_faq_access"`
	HasChatAccess bool `json:"has_chat_access"`
}

type GamesService interface {
	List(ctx context.Context, userID uuid.UUID, role, statusFilter string) ([]*types.Game, error)
	// GetByID enforces catalog access: a game outside the caller's
	// accessible set is game_not_found, indistinguishable from a missing
	// row.
	GetByID(ctx context.Context, userID uuid.UUID, role string, gameID uuid.UUID) (*types.Game, error)
	FeatureMap(ctx context.Context, userID uuid.UUID, role string, gameID uuid.UUID) (*GameFeatureMap, error)
}

type gamesService struct {
	db       *gorm.DB
	log      *logger.Logger
	gameRepo repos.GameRepo
	access   FeatureAccessService
}

func NewGamesService(db *gorm.DB, baseLog *logger.Logger, gameRepo repos.GameRepo, access FeatureAccessService) GamesService {
	return &gamesService{
		db:       db,
		log:      baseLog.With("service", "GamesService"),
		gameRepo: gameRepo,
		access:   access,
	}
}

// visibleStatuses maps role to the game statuses it may see: beta games are
// visible only to tester/admin/developer, hidden games to nobody.
func visibleStatuses(role string) []string {
	switch role {
	case RoleTester, RoleAdmin, RoleDeveloper:
		return []string{types.GameStatusActive, types.GameStatusBeta}
	default:
		return []string{types.GameStatusActive}
	}
}

func (s *gamesService) List(ctx context.Context, userID uuid.UUID, role, statusFilter string) ([]*types.Game, error) {
	ids, err := s.access.AccessibleGameIDs(ctx, userID, role)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("accessible games lookup failed: %w", err))
	}
	if len(ids) == 0 {
		return []*types.Game{}, nil
	}

	statuses := visibleStatuses(role)
	if statusFilter != "" {
		statuses = []string{statusFilter}
	}

	games, err := s.gameRepo.ListByIDs(ctx, nil, ids, statuses)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("games list failed: %w", err))
	}
	return games, nil
}

func (s *gamesService) GetByID(ctx context.Context, userID uuid.UUID, role string, gameID uuid.UUID) (*types.Game, error) {
	ids, err := s.access.AccessibleGameIDs(ctx, userID, role)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("accessible games lookup failed: %w", err))
	}

	accessible := false
	for _, id := range ids {
		if id == gameID {
			accessible = true
			break
		}
	}
	if !accessible {
		return nil, apierr.GameNotFound(fmt.Errorf("game %s not found or you don't have access to it", gameID))
	}

	game, err := s.gameRepo.GetByID(ctx, nil, gameID)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("game lookup failed: %w", err))
	}
	if game == nil {
		return nil, apierr.GameNotFound(fmt.Errorf("game %s not found", gameID))
	}
	return game, nil
}

func (s *gamesService) FeatureMap(ctx context.Context, userID uuid.UUID, role string, gameID uuid.UUID) (*GameFeatureMap, error) {
	var faqAccess, chatAccess *FeatureAccess

	// FAQ and chat checks are independent reads; run them concurrently.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		faqAccess, err = s.access.CheckFAQAccess(groupCtx, userID, role, gameID)
		return err
	})
	group.Go(func() error {
		var err error
		chatAccess, err = s.access.CheckChatAccess(groupCtx, userID, role, gameID)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, apierr.Internal(fmt.Errorf("feature access lookup failed: %w", err))
	}

	return &GameFeatureMap{
		HasFAQAccess:  faqAccess.HasAccess,
		HasChatAccess: chatAccess.HasAccess,
	}, nil
}
