package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	GameStatusActive = "active"
	GameStatusBeta   = "beta"
	GameStatusHidden = "hidden"
)

type Game struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	NameBase     string    `gorm:"not null;column:name_base;index" json:"name_base"`
	Description  string    `gorm:"column:description" json:"description,omitempty"`
	BGGID        *int      `gorm:"column:bgg_id" json:"bgg_id,omitempty"`
	ThumbnailURL string    `gorm:"column:thumbnail_url" json:"thumbnail_url,omitempty"`
	ImageURL     string    `gorm:"column:image_url" json:"image_url,omitempty"`
	MinPlayers   *int      `gorm:"column:min_players" json:"min_players,omitempty"`
	MaxPlayers   *int      `gorm:"column:max_players" json:"max_players,omitempty"`
	PlayingTime  *int      `gorm:"column:playing_time" json:"playing_time,omitempty"`
	Rating       *float64  `gorm:"column:rating" json:"rating,omitempty"`
	Status       string    `gorm:"not null;default:active;index" json:"status"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Game) TableName() string { return "games" }
