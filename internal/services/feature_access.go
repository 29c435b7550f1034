package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bgai/bgai-backend/internal/logger"
	"github.com/bgai/bgai-backend/internal/repos"
	"github.com/bgai/bgai-backend/internal/types"
)

const (
	RoleAdmin     = "admin"
	RoleDeveloper = "developer"
	RoleTester    = "tester"
	RolePremium   = "premium"
	RoleBasic     = "basic"
)

// FeatureAccess is the decision for one (user, role, feature, scope) tuple.
// It is consumed immediately; callers must not cache it across requests
// because flags are edited concurrently by the authoring tool.
type FeatureAccess struct {
	HasAccess  bool           `json:"has_access"`
	FeatureKey string         `json:"feature_key"`
	Reason     string         `json:"reason"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ChatFlagMetadata is the typed view of a chat flag's metadata blob.
type ChatFlagMetadata struct {
	DailyLimit *int `json:"daily_limit,omitempty"`
}

// ChatMetadata parses the chat-specific fields out of the decision metadata.
func (fa *FeatureAccess) ChatMetadata() ChatFlagMetadata {
	var meta ChatFlagMetadata
	if fa == nil || fa.Metadata == nil {
		return meta
	}
	raw, err := json.Marshal(fa.Metadata)
	if err != nil {
		return meta
	}
	_ = json.Unmarshal(raw, &meta)
	return meta
}

type FeatureAccessService interface {
	CheckFeatureAccess(ctx context.Context, userID uuid.UUID, role, featureKey, scopeType string, scopeID *uuid.UUID) (*FeatureAccess, error)
	CheckGameAccess(ctx context.Context, userID uuid.UUID, role string, gameID uuid.UUID) (*FeatureAccess, error)
	CheckFAQAccess(ctx context.Context, userID uuid.UUID, role string, gameID uuid.UUID) (*FeatureAccess, error)
	CheckChatAccess(ctx context.Context, userID uuid.UUID, role string, gameID uuid.UUID) (*FeatureAccess, error)
	AccessibleGameIDs(ctx context.Context, userID uuid.UUID, role string) ([]uuid.UUID, error)
}

type featureAccessService struct {
	db          *gorm.DB
	log         *logger.Logger
	flagRepo    repos.FeatureFlagRepo
	gameRepo    repos.GameRepo
	environment string
}

func NewFeatureAccessService(db *gorm.DB, baseLog *logger.Logger, flagRepo repos.FeatureFlagRepo, gameRepo repos.GameRepo, environment string) FeatureAccessService {
	return &featureAccessService{
		db:          db,
		log:         baseLog.With("service", "FeatureAccessService"),
		flagRepo:    flagRepo,
		gameRepo:    gameRepo,
		environment: environment,
	}
}

func (s *featureAccessService) isDevelopment() bool {
	return s.environment == "dev"
}

// probe is one step of the specificity scan.
type probe struct {
	scopeType string
	scopeID   *uuid.UUID
	role      *string
}

func (s *featureAccessService) CheckFeatureAccess(ctx context.Context, userID uuid.UUID, role, featureKey, scopeType string, scopeID *uuid.UUID) (*FeatureAccess, error) {
	// Admin, developer and tester roles see everything in the dev
	// environment (beta/experimental content included).
	if s.isDevelopment() && (role == RoleAdmin || role == RoleDeveloper || role == RoleTester) {
		return &FeatureAccess{
			HasAccess:  true,
			FeatureKey: featureKey,
			Reason:     fmt.Sprintf("%s role has full access in dev environment", role),
		}, nil
	}

	// Admin always has access in any environment.
	if role == RoleAdmin {
		return &FeatureAccess{
			HasAccess:  true,
			FeatureKey: featureKey,
			Reason:     "admin role has full access",
		}, nil
	}

	// Most specific first; within each level a role-exact flag beats a
	// role-agnostic one.
	probes := make([]probe, 0, 6)
	probes = append(probes,
		probe{types.ScopeUser, &userID, &role},
		probe{types.ScopeUser, &userID, nil},
	)
	if (scopeType == types.ScopeGame || scopeType == types.ScopeSection) && scopeID != nil {
		probes = append(probes,
			probe{scopeType, scopeID, &role},
			probe{scopeType, scopeID, nil},
		)
	}
	probes = append(probes,
		probe{types.ScopeGlobal, nil, &role},
		probe{types.ScopeGlobal, nil, nil},
	)

	probeErrors := 0
	for _, p := range probes {
		flags, err := s.flagRepo.FindMatches(ctx, nil, featureKey, s.environment, p.scopeType, p.scopeID, p.role)
		if err != nil {
			// A failed probe falls through to the next, less specific one.
			s.log.Warn("feature flag probe failed", "feature_key", featureKey, "scope_type", p.scopeType, "error", err)
			probeErrors++
			continue
		}
		if len(flags) == 0 {
			continue
		}

		flag := flags[0]
		reason := fmt.Sprintf("%s by %s flag", enabledWord(flag.Enabled), p.scopeType)
		if p.role != nil {
			reason += fmt.Sprintf(" for role %s", *p.role)
		}
		return &FeatureAccess{
			HasAccess:  flag.Enabled,
			FeatureKey: featureKey,
			Reason:     reason,
			Metadata:   decodeMetadata(flag.Metadata),
		}, nil
	}

	// When every probe errored the store is down; that must surface as a
	// transient failure, never as a grant.
	if probeErrors == len(probes) {
		return nil, fmt.Errorf("feature flag lookup unavailable for %s", featureKey)
	}

	// No matching flag found: deny.
	return &FeatureAccess{
		HasAccess:  false,
		FeatureKey: featureKey,
		Reason:     fmt.Sprintf("no feature flag found for %s in %s scope", featureKey, scopeType),
	}, nil
}

func (s *featureAccessService) CheckGameAccess(ctx context.Context, userID uuid.UUID, role string, gameID uuid.UUID) (*FeatureAccess, error) {
	return s.CheckFeatureAccess(ctx, userID, role, types.FeatureGameAccess, types.ScopeGame, &gameID)
}

func (s *featureAccessService) CheckFAQAccess(ctx context.Context, userID uuid.UUID, role string, gameID uuid.UUID) (*FeatureAccess, error) {
	return s.CheckFeatureAccess(ctx, userID, role, types.FeatureFAQ, types.ScopeGame, &gameID)
}

func (s *featureAccessService) CheckChatAccess(ctx context.Context, userID uuid.UUID, role string, gameID uuid.UUID) (*FeatureAccess, error) {
	return s.CheckFeatureAccess(ctx, userID, role, types.FeatureChat, types.ScopeGame, &gameID)
}

func (s *featureAccessService) AccessibleGameIDs(ctx context.Context, userID uuid.UUID, role string) ([]uuid.UUID, error) {
	if s.isDevelopment() && (role == RoleAdmin || role == RoleDeveloper || role == RoleTester) {
		return s.gameRepo.ListAllIDs(ctx, nil)
	}
	if role == RoleAdmin {
		return s.gameRepo.ListAllIDs(ctx, nil)
	}

	globalFlags, err := s.flagRepo.FindByScopeType(ctx, nil, types.FeatureGameAccess, s.environment, types.ScopeGlobal, &role)
	if err != nil {
		return nil, err
	}
	for _, flag := range globalFlags {
		if flag.Enabled {
			return s.gameRepo.ListAllIDs(ctx, nil)
		}
	}

	gameFlags, err := s.flagRepo.FindByScopeType(ctx, nil, types.FeatureGameAccess, s.environment, types.ScopeGame, &role)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(gameFlags))
	for _, flag := range gameFlags {
		if flag.Enabled && flag.ScopeID != nil {
			ids = append(ids, *flag.ScopeID)
		}
	}
	return ids, nil
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func decodeMetadata(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
