package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	EventChatQuestion = "chat_question"
	EventChatAnswer   = "chat_answer"
	EventGameOpen     = "game_open"
	EventFAQView      = "faq_view"
)

// UsageEvent is append-only: rows are never updated or deleted.
type UsageEvent struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_usage_event_daily" json:"user_id"`
	EventType   string         `gorm:"not null;index:idx_usage_event_daily" json:"event_type"`
	GameID      *uuid.UUID     `gorm:"type:uuid;index:idx_usage_event_daily" json:"game_id,omitempty"`
	FeatureKey  string         `gorm:"column:feature_key" json:"feature_key,omitempty"`
	Environment string         `gorm:"not null;index" json:"environment"`
	ExtraInfo   datatypes.JSON `gorm:"type:jsonb;column:extra_info" json:"extra_info,omitempty"`
	OccurredAt  time.Time      `gorm:"not null;index:idx_usage_event_daily" json:"occurred_at"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (UsageEvent) TableName() string { return "usage_events" }
