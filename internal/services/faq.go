package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bgai/bgai-backend/internal/apierr"
	"github.com/bgai/bgai-backend/internal/logger"
	"github.com/bgai/bgai-backend/internal/repos"
	"github.com/bgai/bgai-backend/internal/types"
)

type FAQService interface {
	// List returns the visible FAQs for a game in the requested language,
	// falling back to English when the requested language has none. The
	// second return value is the language actually served.
	List(ctx context.Context, userID uuid.UUID, role string, gameID uuid.UUID, language string) ([]*types.GameFAQ, string, error)
}

type faqService struct {
	db      *gorm.DB
	log     *logger.Logger
	faqRepo repos.GameFAQRepo
	access  FeatureAccessService
}

func NewFAQService(db *gorm.DB, baseLog *logger.Logger, faqRepo repos.GameFAQRepo, access FeatureAccessService) FAQService {
	return &faqService{
		db:      db,
		log:     baseLog.With("service", "FAQService"),
		faqRepo: faqRepo,
		access:  access,
	}
}

func (s *faqService) List(ctx context.Context, userID uuid.UUID, role string, gameID uuid.UUID, language string) ([]*types.GameFAQ, string, error) {
	decision, err := s.access.CheckFAQAccess(ctx, userID, role, gameID)
	if err != nil {
		return nil, "", apierr.Internal(fmt.Errorf("faq access check failed: %w", err))
	}
	if !decision.HasAccess {
		return nil, "", apierr.AccessDenied(fmt.Errorf("you don't have access to FAQs for this game. Reason: %s", decision.Reason))
	}

	faqs, err := s.faqRepo.VisibleByGameAndLanguage(ctx, nil, gameID, language)
	if err != nil {
		return nil, "", apierr.Internal(fmt.Errorf("faq lookup failed: %w", err))
	}
	if len(faqs) > 0 {
		return faqs, language, nil
	}

	if language != FallbackLanguage {
		faqs, err = s.faqRepo.VisibleByGameAndLanguage(ctx, nil, gameID, FallbackLanguage)
		if err != nil {
			return nil, "", apierr.Internal(fmt.Errorf("faq fallback lookup failed: %w", err))
		}
		if len(faqs) > 0 {
			return faqs, FallbackLanguage, nil
		}
	}

	return []*types.GameFAQ{}, language, nil
}
