package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/bgai/bgai-backend/internal/types"
)

type fakeFlagRepo struct {
	flags   []*types.FeatureFlag
	failAll bool
}

func (f *fakeFlagRepo) FindMatches(ctx context.Context, tx *gorm.DB, featureKey, environment, scopeType string, scopeID *uuid.UUID, role *string) ([]*types.FeatureFlag, error) {
	if f.failAll {
		return nil, fmt.Errorf("store down")
	}
	var out []*types.FeatureFlag
	for _, fl := range f.flags {
		if fl.FeatureKey != featureKey || fl.Environment != environment || fl.ScopeType != scopeType {
			continue
		}
		if (fl.ScopeID == nil) != (scopeID == nil) {
			continue
		}
		if scopeID != nil && *fl.ScopeID != *scopeID {
			continue
		}
		if (fl.Role == nil) != (role == nil) {
			continue
		}
		if role != nil && *fl.Role != *role {
			continue
		}
		out = append(out, fl)
	}
	return out, nil
}

func (f *fakeFlagRepo) FindByScopeType(ctx context.Context, tx *gorm.DB, featureKey, environment, scopeType string, role *string) ([]*types.FeatureFlag, error) {
	if f.failAll {
		return nil, fmt.Errorf("store down")
	}
	var out []*types.FeatureFlag
	for _, fl := range f.flags {
		if fl.FeatureKey != featureKey || fl.Environment != environment || fl.ScopeType != scopeType {
			continue
		}
		if role != nil && (fl.Role == nil || *fl.Role != *role) {
			continue
		}
		out = append(out, fl)
	}
	return out, nil
}

type fakeGameRepo struct {
	games []*types.Game
}

func (f *fakeGameRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Game, error) {
	for _, g := range f.games {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, nil
}

func (f *fakeGameRepo) ListByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, statuses []string) ([]*types.Game, error) {
	var out []*types.Game
	for _, g := range f.games {
		for _, id := range ids {
			if g.ID != id {
				continue
			}
			if len(statuses) == 0 {
				out = append(out, g)
				continue
			}
			for _, st := range statuses {
				if g.Status == st {
					out = append(out, g)
					break
				}
			}
		}
	}
	return out, nil
}

func (f *fakeGameRepo) ListAllIDs(ctx context.Context, tx *gorm.DB) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(f.games))
	for _, g := range f.games {
		ids = append(ids, g.ID)
	}
	return ids, nil
}

func gameFlag(gameID uuid.UUID, role *string, enabled bool, metadata string) *types.FeatureFlag {
	fl := &types.FeatureFlag{
		ID:          uuid.New(),
		ScopeType:   types.ScopeGame,
		ScopeID:     &gameID,
		FeatureKey:  types.FeatureChat,
		Role:        role,
		Environment: "prod",
		Enabled:     enabled,
	}
	if metadata != "" {
		fl.Metadata = datatypes.JSON([]byte(metadata))
	}
	return fl
}

func userFlag(userID uuid.UUID, role *string, enabled bool) *types.FeatureFlag {
	return &types.FeatureFlag{
		ID:          uuid.New(),
		ScopeType:   types.ScopeUser,
		ScopeID:     &userID,
		FeatureKey:  types.FeatureChat,
		Role:        role,
		Environment: "prod",
		Enabled:     enabled,
	}
}

func globalFlag(role *string, enabled bool) *types.FeatureFlag {
	return &types.FeatureFlag{
		ID:          uuid.New(),
		ScopeType:   types.ScopeGlobal,
		FeatureKey:  types.FeatureChat,
		Role:        role,
		Environment: "prod",
		Enabled:     enabled,
	}
}

func TestCheckFeatureAccess_NoFlagsDenies(t *testing.T) {
	svc := NewFeatureAccessService(nil, testLogger(), &fakeFlagRepo{}, &fakeGameRepo{}, "prod")
	userID := uuid.New()
	gameID := uuid.New()

	decision, err := svc.CheckChatAccess(context.Background(), userID, RoleBasic, gameID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.HasAccess {
		t.Fatalf("expected deny when no flag matches")
	}
	if !strings.Contains(decision.Reason, "no feature flag found") {
		t.Fatalf("unexpected reason: %q", decision.Reason)
	}
}

func TestCheckFeatureAccess_UserFlagBeatsGameFlag(t *testing.T) {
	userID := uuid.New()
	gameID := uuid.New()
	repo := &fakeFlagRepo{flags: []*types.FeatureFlag{
		gameFlag(gameID, nil, true, ""),
		userFlag(userID, nil, false),
	}}
	svc := NewFeatureAccessService(nil, testLogger(), repo, &fakeGameRepo{}, "prod")

	decision, err := svc.CheckChatAccess(context.Background(), userID, RolePremium, gameID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.HasAccess {
		t.Fatalf("user-scope deny must override game-scope allow")
	}
}

func TestCheckFeatureAccess_RoleFlagBeatsRoleAgnosticAtSameScope(t *testing.T) {
	userID := uuid.New()
	gameID := uuid.New()
	repo := &fakeFlagRepo{flags: []*types.FeatureFlag{
		gameFlag(gameID, nil, false, ""),
		gameFlag(gameID, strPtr(RolePremium), true, `{"daily_limit": 20}`),
	}}
	svc := NewFeatureAccessService(nil, testLogger(), repo, &fakeGameRepo{}, "prod")

	decision, err := svc.CheckChatAccess(context.Background(), userID, RolePremium, gameID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.HasAccess {
		t.Fatalf("role-exact allow must win over role-agnostic deny, reason=%q", decision.Reason)
	}
	limit := decision.ChatMetadata().DailyLimit
	if limit == nil || *limit != 20 {
		t.Fatalf("expected daily_limit=20 from flag metadata, got %v", limit)
	}
}

func TestCheckFeatureAccess_GameFlagBeatsGlobalFlag(t *testing.T) {
	userID := uuid.New()
	gameID := uuid.New()
	repo := &fakeFlagRepo{flags: []*types.FeatureFlag{
		globalFlag(nil, true),
		gameFlag(gameID, nil, false, ""),
	}}
	svc := NewFeatureAccessService(nil, testLogger(), repo, &fakeGameRepo{}, "prod")

	decision, err := svc.CheckChatAccess(context.Background(), userID, RoleBasic, gameID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.HasAccess {
		t.Fatalf("game-scope deny must override global allow")
	}
}

func TestCheckFeatureAccess_GlobalFallback(t *testing.T) {
	repo := &fakeFlagRepo{flags: []*types.FeatureFlag{
		globalFlag(nil, true),
	}}
	svc := NewFeatureAccessService(nil, testLogger(), repo, &fakeGameRepo{}, "prod")

	decision, err := svc.CheckChatAccess(context.Background(), uuid.New(), RoleBasic, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.HasAccess {
		t.Fatalf("expected global allow to apply, reason=%q", decision.Reason)
	}
}

func TestCheckFeatureAccess_AdminBypassesFlags(t *testing.T) {
	repo := &fakeFlagRepo{flags: []*types.FeatureFlag{
		globalFlag(nil, false),
	}}
	svc := NewFeatureAccessService(nil, testLogger(), repo, &fakeGameRepo{}, "prod")

	decision, err := svc.CheckChatAccess(context.Background(), uuid.New(), RoleAdmin, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.HasAccess {
		t.Fatalf("admin must have access regardless of flags")
	}
}

func TestCheckFeatureAccess_TesterFullAccessOnlyInDev(t *testing.T) {
	repo := &fakeFlagRepo{}

	dev := NewFeatureAccessService(nil, testLogger(), repo, &fakeGameRepo{}, "dev")
	decision, err := dev.CheckChatAccess(context.Background(), uuid.New(), RoleTester, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.HasAccess {
		t.Fatalf("tester must have full access in dev")
	}

	prod := NewFeatureAccessService(nil, testLogger(), repo, &fakeGameRepo{}, "prod")
	decision, err = prod.CheckChatAccess(context.Background(), uuid.New(), RoleTester, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.HasAccess {
		t.Fatalf("tester without flags must be denied outside dev")
	}
}

func TestCheckFeatureAccess_FlagsMatchConfiguredEnvironmentOnly(t *testing.T) {
	role := RoleBasic
	flag := globalFlag(&role, true)
	repo := &fakeFlagRepo{flags: []*types.FeatureFlag{flag}}

	prod := NewFeatureAccessService(nil, testLogger(), repo, &fakeGameRepo{}, "prod")
	decision, err := prod.CheckChatAccess(context.Background(), uuid.New(), RoleBasic, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.HasAccess {
		t.Fatalf("flag authored for prod must grant under a prod service: %s", decision.Reason)
	}

	dev := NewFeatureAccessService(nil, testLogger(), repo, &fakeGameRepo{}, "dev")
	decision, err = dev.CheckChatAccess(context.Background(), uuid.New(), RoleBasic, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.HasAccess {
		t.Fatalf("flag authored for prod must not match a dev service")
	}
}

func TestCheckFeatureAccess_StoreDownSurfacesError(t *testing.T) {
	svc := NewFeatureAccessService(nil, testLogger(), &fakeFlagRepo{failAll: true}, &fakeGameRepo{}, "prod")

	_, err := svc.CheckChatAccess(context.Background(), uuid.New(), RoleBasic, uuid.New())
	if err == nil {
		t.Fatalf("expected error when every lookup fails, not a silent deny")
	}
}

func TestAccessibleGameIDs_GameScopedFlagsOnly(t *testing.T) {
	g1 := &types.Game{ID: uuid.New(), NameBase: "Alpha", Status: types.GameStatusActive}
	g2 := &types.Game{ID: uuid.New(), NameBase: "Beta", Status: types.GameStatusActive}
	role := RoleBasic
	flag := gameFlag(g1.ID, &role, true, "")
	flag.FeatureKey = types.FeatureGameAccess
	repo := &fakeFlagRepo{flags: []*types.FeatureFlag{flag}}
	svc := NewFeatureAccessService(nil, testLogger(), repo, &fakeGameRepo{games: []*types.Game{g1, g2}}, "prod")

	ids, err := svc.AccessibleGameIDs(context.Background(), uuid.New(), RoleBasic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != g1.ID {
		t.Fatalf("expected only the flagged game, got %v", ids)
	}
}

func TestAccessibleGameIDs_GlobalFlagGrantsAll(t *testing.T) {
	g1 := &types.Game{ID: uuid.New(), NameBase: "Alpha", Status: types.GameStatusActive}
	g2 := &types.Game{ID: uuid.New(), NameBase: "Beta", Status: types.GameStatusActive}
	role := RolePremium
	flag := globalFlag(&role, true)
	flag.FeatureKey = types.FeatureGameAccess
	repo := &fakeFlagRepo{flags: []*types.FeatureFlag{flag}}
	svc := NewFeatureAccessService(nil, testLogger(), repo, &fakeGameRepo{games: []*types.Game{g1, g2}}, "prod")

	ids, err := svc.AccessibleGameIDs(context.Background(), uuid.New(), RolePremium)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected all games for a global allow, got %v", ids)
	}
}
