package types

import (
	"time"

	"github.com/google/uuid"
)

type GameFAQ struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	GameID       uuid.UUID `gorm:"type:uuid;not null;index:idx_game_faq_lookup" json:"game_id"`
	Game         *Game     `gorm:"constraint:OnDelete:CASCADE;foreignKey:GameID;references:ID" json:"game,omitempty"`
	Language     string    `gorm:"not null;index:idx_game_faq_lookup" json:"language"`
	Question     string    `gorm:"not null;type:text" json:"question"`
	Answer       string    `gorm:"not null;type:text" json:"answer"`
	Visible      bool      `gorm:"not null;default:true;index:idx_game_faq_lookup" json:"visible"`
	DisplayOrder int       `gorm:"not null;default:0" json:"display_order"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (GameFAQ) TableName() string { return "game_faqs" }
