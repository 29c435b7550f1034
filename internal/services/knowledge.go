package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bgai/bgai-backend/internal/apierr"
	"github.com/bgai/bgai-backend/internal/logger"
	"github.com/bgai/bgai-backend/internal/repos"
)

// FallbackLanguage is substituted when the requested language has no ready
// knowledge index. Fixed to English.
const FallbackLanguage = "en"

// KnowledgeIndex identifies the externally hosted search index resolved for
// one query. Fallback is true when the index language differs from the request.
type KnowledgeIndex struct {
	VectorStoreID string
	Language      string
	Fallback      bool
}

type KnowledgeService interface {
	// Resolve returns the ready index for the game, falling back to English
	// when the requested language has none. No index in either language is a
	// knowledge_unavailable error, never a silent generic answer.
	Resolve(ctx context.Context, gameID uuid.UUID, language string) (*KnowledgeIndex, error)
}

type knowledgeService struct {
	db      *gorm.DB
	log     *logger.Logger
	docRepo repos.GameDocumentRepo
}

func NewKnowledgeService(db *gorm.DB, baseLog *logger.Logger, docRepo repos.GameDocumentRepo) KnowledgeService {
	return &knowledgeService{
		db:      db,
		log:     baseLog.With("service", "KnowledgeService"),
		docRepo: docRepo,
	}
}

func (s *knowledgeService) Resolve(ctx context.Context, gameID uuid.UUID, language string) (*KnowledgeIndex, error) {
	doc, err := s.docRepo.FirstReady(ctx, nil, gameID, language)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("knowledge index lookup failed: %w", err))
	}
	if doc != nil {
		return &KnowledgeIndex{VectorStoreID: doc.VectorStoreID, Language: language}, nil
	}

	if language != FallbackLanguage {
		doc, err = s.docRepo.FirstReady(ctx, nil, gameID, FallbackLanguage)
		if err != nil {
			return nil, apierr.Internal(fmt.Errorf("knowledge index fallback lookup failed: %w", err))
		}
		if doc != nil {
			return &KnowledgeIndex{VectorStoreID: doc.VectorStoreID, Language: FallbackLanguage, Fallback: true}, nil
		}
	}

	return nil, apierr.KnowledgeUnavailable(fmt.Errorf("no knowledge base found for game %s in language %s", gameID, language))
}
