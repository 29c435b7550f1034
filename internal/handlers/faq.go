package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bgai/bgai-backend/internal/apierr"
	"github.com/bgai/bgai-backend/internal/requestdata"
	"github.com/bgai/bgai-backend/internal/services"
)

type FAQHandler struct {
	faqService services.FAQService
}

func NewFAQHandler(faqService services.FAQService) *FAQHandler {
	return &FAQHandler{faqService: faqService}
}

func (fh *FAQHandler) ListByGame(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, fmt.Errorf("missing identity"))
		return
	}
	gameID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid game id"))
		return
	}
	language := c.DefaultQuery("language", "en")
	faqs, languageUsed, err := fh.faqService.List(c.Request.Context(), rd.UserID, rd.Role, gameID, language)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"faqs": faqs, "language_used": languageUsed, "count": len(faqs)})
}
