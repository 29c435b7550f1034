package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ScopeGlobal  = "global"
	ScopeSection = "section"
	ScopeGame    = "game"
	ScopeUser    = "user"
)

const (
	FeatureGameAccess = "game_access"
	FeatureFAQ        = "faq"
	FeatureChat       = "chat"
)

// FeatureFlag rows are authored elsewhere; this service only reads them.
// A nil Role matches any role at that scope level.
type FeatureFlag struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ScopeType   string         `gorm:"not null;index:idx_feature_flag_lookup" json:"scope_type"`
	ScopeID     *uuid.UUID     `gorm:"type:uuid;index:idx_feature_flag_lookup" json:"scope_id,omitempty"`
	FeatureKey  string         `gorm:"not null;index:idx_feature_flag_lookup" json:"feature_key"`
	Role        *string        `gorm:"index:idx_feature_flag_lookup" json:"role,omitempty"`
	Environment string         `gorm:"not null;index:idx_feature_flag_lookup" json:"environment"`
	Enabled     bool           `gorm:"not null;default:false" json:"enabled"`
	Metadata    datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (FeatureFlag) TableName() string { return "feature_flags" }
