package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	DocumentStatusUploaded = "uploaded"
	DocumentStatusReady    = "ready"
	DocumentStatusError    = "error"
)

// GameDocument rows are written by the ingestion pipeline; only ready rows
// with a vector store id are eligible for search.
type GameDocument struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	GameID        uuid.UUID `gorm:"type:uuid;not null;index:idx_game_document_lookup" json:"game_id"`
	Game          *Game     `gorm:"constraint:OnDelete:CASCADE;foreignKey:GameID;references:ID" json:"game,omitempty"`
	Language      string    `gorm:"not null;index:idx_game_document_lookup" json:"language"`
	Title         string    `gorm:"column:title" json:"title,omitempty"`
	FilePath      string    `gorm:"column:file_path" json:"file_path,omitempty"`
	Status        string    `gorm:"not null;default:uploaded;index:idx_game_document_lookup" json:"status"`
	VectorStoreID string    `gorm:"column:vector_store_id" json:"vector_store_id,omitempty"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (GameDocument) TableName() string { return "game_documents" }
