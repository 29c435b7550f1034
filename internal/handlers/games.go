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

type GamesHandler struct {
	gamesService services.GamesService
}

func NewGamesHandler(gamesService services.GamesService) *GamesHandler {
	return &GamesHandler{gamesService: gamesService}
}

func (gh *GamesHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthenticated, fmt.Errorf("missing identity"))
		return
	}
	games, err := gh.gamesService.List(c.Request.Context(), rd.UserID, rd.Role, c.Query("status"))
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"games": games, "count": len(games)})
}

func (gh *GamesHandler) GetByID(c *gin.Context) {
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
	game, err := gh.gamesService.GetByID(c.Request.Context(), rd.UserID, rd.Role, gameID)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	features, err := gh.gamesService.FeatureMap(c.Request.Context(), rd.UserID, rd.Role, gameID)
	if err != nil {
		RespondAPIError(c, err)
		return
	}
	RespondOK(c, gin.H{"game": game, "features": features})
}
