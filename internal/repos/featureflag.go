package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bgai/bgai-backend/internal/logger"
	"github.com/bgai/bgai-backend/internal/types"
)

type FeatureFlagRepo interface {
	// FindMatches returns flags for one probe of the specificity scan. A nil
	// role matches only role-agnostic flags; a nil scopeID matches only rows
	// without a scope id (global scope).
	FindMatches(ctx context.Context, tx *gorm.DB, featureKey, environment, scopeType string, scopeID *uuid.UUID, role *string) ([]*types.FeatureFlag, error)
	// FindByScopeType returns every flag for a feature at one scope level,
	// optionally filtered by role. Used to enumerate accessible games.
	FindByScopeType(ctx context.Context, tx *gorm.DB, featureKey, environment, scopeType string, role *string) ([]*types.FeatureFlag, error)
}

type featureFlagRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFeatureFlagRepo(db *gorm.DB, baseLog *logger.Logger) FeatureFlagRepo {
	repoLog := baseLog.With("repo", "FeatureFlagRepo")
	return &featureFlagRepo{db: db, log: repoLog}
}

func (r *featureFlagRepo) FindMatches(ctx context.Context, tx *gorm.DB, featureKey, environment, scopeType string, scopeID *uuid.UUID, role *string) ([]*types.FeatureFlag, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	query := transaction.WithContext(ctx).
		Where("feature_key = ? AND environment = ? AND scope_type = ?", featureKey, environment, scopeType)
	if scopeID != nil {
		query = query.Where("scope_id = ?", *scopeID)
	} else {
		query = query.Where("scope_id IS NULL")
	}
	if role != nil {
		query = query.Where("role = ?", *role)
	} else {
		query = query.Where("role IS NULL")
	}

	var results []*types.FeatureFlag
	if err := query.Order("created_at ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *featureFlagRepo) FindByScopeType(ctx context.Context, tx *gorm.DB, featureKey, environment, scopeType string, role *string) ([]*types.FeatureFlag, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	query := transaction.WithContext(ctx).
		Where("feature_key = ? AND environment = ? AND scope_type = ?", featureKey, environment, scopeType)
	if role != nil {
		query = query.Where("role = ?", *role)
	}

	var results []*types.FeatureFlag
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
