package server

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/bgai/bgai-backend/internal/handlers"
	"github.com/bgai/bgai-backend/internal/middleware"
	"github.com/bgai/bgai-backend/internal/utils"
)

type RouterConfig struct {
	Environment         string
	AuthMiddleware      *middleware.AuthMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware
	ReadyHandler        *handlers.ReadyHandler
	GamesHandler        *handlers.GamesHandler
	FAQHandler          *handlers.FAQHandler
	GenAIHandler        *handlers.GenAIHandler
	UsageHandler        *handlers.UsageHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Cors
	origins := strings.Split(utils.GetEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173", nil), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.GET("/health/ready", cfg.ReadyHandler.Ready)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())
	api.Use(cfg.RateLimitMiddleware.Limit())
	// Games
	api.GET("/games", cfg.GamesHandler.List)
	api.GET("/games/:id", cfg.GamesHandler.GetByID)
	api.GET("/games/:id/faqs", cfg.FAQHandler.ListByGame)
	// GenAI
	api.POST("/genai/query", cfg.GenAIHandler.Query)
	api.POST("/genai/sessions/:id/close", cfg.GenAIHandler.CloseSession)
	// Usage
	api.GET("/usage/stats", cfg.UsageHandler.Stats)

	return router
}
