package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bgai/bgai-backend/internal/apierr"
	"github.com/bgai/bgai-backend/internal/requestdata"
	"github.com/bgai/bgai-backend/internal/services"
)

// maxQuestionLength keeps a single question well inside the provider's
// prompt window.
const maxQuestionLength = 2000

type GenAIHandler struct {
	genaiService   services.GenAIService
	sessionService services.ChatSessionService
}

func NewGenAIHandler(genaiService services.GenAIService, sessionService services.ChatSessionService) *GenAIHandler {
	return &GenAIHandler{genaiService: genaiService, sessionService: sessionService}
}

type queryRequest struct {
	GameID    string  `json:"game_id" binding:"required"`
	Question  string  `json:"question" binding:"required"`
	Language  string  `json:"language"`
	SessionID *string `json:"session_id"`
}

func (gh *GenAIHandler) Query(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, fmt.Errorf("missing identity"))
		return
	}
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid request body: %w", err))
		return
	}
	gameID, err := uuid.Parse(req.GameID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid game_id"))
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("question must not be empty"))
		return
	}
	if len(question) > maxQuestionLength {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("question exceeds %d characters", maxQuestionLength))
		return
	}
	language := req.Language
	if language == "" {
		language = "en"
	}
	var sessionID *uuid.UUID
	if req.SessionID != nil && *req.SessionID != "" {
		parsed, perr := uuid.Parse(*req.SessionID)
		if perr != nil {
			RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid session_id"))
			return
		}
		sessionID = &parsed
	}

	resp, err := gh.genaiService.Query(c.Request.Context(), rd.UserID, rd.Role, services.ChatQueryInput{
		GameID:    gameID,
		Question:  question,
		Language:  language,
		SessionID: sessionID,
	})
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, resp)
}

func (gh *GenAIHandler) CloseSession(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, fmt.Errorf("missing identity"))
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid session id"))
		return
	}
	if err := gh.sessionService.Close(c.Request.Context(), rd.UserID, sessionID); err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "closed", "session_id": sessionID})
}
