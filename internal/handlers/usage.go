package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bgai/bgai-backend/internal/apierr"
	"github.com/bgai/bgai-backend/internal/requestdata"
	"github.com/bgai/bgai-backend/internal/services"
)

type UsageHandler struct {
	usageService services.UsageService
}

func NewUsageHandler(usageService services.UsageService) *UsageHandler {
	return &UsageHandler{usageService: usageService}
}

func (uh *UsageHandler) Stats(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, fmt.Errorf("missing identity"))
		return
	}
	days := 7
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 90 {
			RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("days must be between 1 and 90"))
			return
		}
		days = parsed
	}
	stats, err := uh.usageService.Stats(c.Request.Context(), rd.UserID, days)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"stats": stats})
}
