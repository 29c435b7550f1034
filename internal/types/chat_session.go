package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	SessionStatusActive = "active"
	SessionStatusClosed = "closed"
)

type ChatSession struct {
	ID                 uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID             uuid.UUID  `gorm:"type:uuid;not null;index:idx_chat_session_owner" json:"user_id"`
	GameID             uuid.UUID  `gorm:"type:uuid;not null;index:idx_chat_session_owner" json:"game_id"`
	Game               *Game      `gorm:"constraint:OnDelete:CASCADE;foreignKey:GameID;references:ID" json:"game,omitempty"`
	Language           string     `gorm:"not null" json:"language"`
	ModelProvider      string     `gorm:"column:model_provider" json:"model_provider"`
	ModelName          string     `gorm:"column:model_name" json:"model_name"`
	Status             string     `gorm:"not null;default:active;index" json:"status"`
	TotalMessages      int        `gorm:"not null;default:0" json:"total_messages"`
	TotalTokenEstimate int        `gorm:"not null;default:0" json:"total_token_estimate"`
	StartedAt          time.Time  `gorm:"not null;default:now()" json:"started_at"`
	LastActivityAt     time.Time  `gorm:"not null;default:now()" json:"last_activity_at"`
	ClosedAt           *time.Time `gorm:"column:closed_at" json:"closed_at,omitempty"`
	CreatedAt          time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (ChatSession) TableName() string { return "chat_sessions" }
