package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bgai/bgai-backend/internal/db"
)

func HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

type ReadyHandler struct {
	pg *db.PostgresService
}

func NewReadyHandler(pg *db.PostgresService) *ReadyHandler {
	return &ReadyHandler{pg: pg}
}

// Ready reports 503 until the database answers, so load balancers hold
// traffic during startup.
func (rh *ReadyHandler) Ready(c *gin.Context) {
	if err := rh.pg.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
