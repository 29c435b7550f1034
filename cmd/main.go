package main

import (
	"fmt"
	"os"

	"github.com/bgai/bgai-backend/internal/db"
	"github.com/bgai/bgai-backend/internal/handlers"
	"github.com/bgai/bgai-backend/internal/logger"
	"github.com/bgai/bgai-backend/internal/middleware"
	"github.com/bgai/bgai-backend/internal/repos"
	"github.com/bgai/bgai-backend/internal/server"
	"github.com/bgai/bgai-backend/internal/services"
	"github.com/bgai/bgai-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	environment := utils.GetEnv("ENVIRONMENT", "dev", log)
	port := utils.GetEnv("PORT", "8080", log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	gameRepo := repos.NewGameRepo(thePG, log)
	featureFlagRepo := repos.NewFeatureFlagRepo(thePG, log)
	usageEventRepo := repos.NewUsageEventRepo(thePG, log)
	chatSessionRepo := repos.NewChatSessionRepo(thePG, log)
	chatMessageRepo := repos.NewChatMessageRepo(thePG, log)
	gameDocumentRepo := repos.NewGameDocumentRepo(thePG, log)
	gameFAQRepo := repos.NewGameFAQRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	geminiClient, err := services.NewGeminiClient(log)
	if err != nil {
		log.Error("Could not init GeminiClient", "error", err)
		os.Exit(1)
	}
	featureAccessService := services.NewFeatureAccessService(thePG, log, featureFlagRepo, gameRepo, environment)
	usageService := services.NewUsageService(thePG, log, usageEventRepo, environment)
	chatSessionService := services.NewChatSessionService(thePG, log, chatSessionRepo, chatMessageRepo)
	knowledgeService := services.NewKnowledgeService(thePG, log, gameDocumentRepo)
	gamesService := services.NewGamesService(thePG, log, gameRepo, featureAccessService)
	faqService := services.NewFAQService(thePG, log, gameFAQRepo, featureAccessService)

	// Quota guard is optional. Without Redis the daily limit is enforced
	// by the advisory database check alone.
	quotaGuard, err := services.NewQuotaGuard(log)
	if err != nil {
		log.Warn("Quota guard disabled", "error", err)
		quotaGuard = nil
	} else {
		defer quotaGuard.Close()
	}

	genaiService := services.NewGenAIService(log, gamesService, featureAccessService, usageService, chatSessionService, knowledgeService, geminiClient, quotaGuard)
	defer genaiService.Flush()

	// Middleware
	authMiddleware, err := middleware.NewAuthMiddleware(log)
	if err != nil {
		log.Error("Could not init AuthMiddleware", "error", err)
		os.Exit(1)
	}
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(log)

	// Handlers
	log.Info("Setting up Handlers from main...")
	readyHandler := handlers.NewReadyHandler(postgresService)
	gamesHandler := handlers.NewGamesHandler(gamesService)
	faqHandler := handlers.NewFAQHandler(faqService)
	genaiHandler := handlers.NewGenAIHandler(genaiService, chatSessionService)
	usageHandler := handlers.NewUsageHandler(usageService)

	// Router
	router := server.NewRouter(server.RouterConfig{
		Environment:         environment,
		AuthMiddleware:      authMiddleware,
		RateLimitMiddleware: rateLimitMiddleware,
		ReadyHandler:        readyHandler,
		GamesHandler:        gamesHandler,
		FAQHandler:          faqHandler,
		GenAIHandler:        genaiHandler,
		UsageHandler:        usageHandler,
	})

	log.Info("Starting server", "port", port, "environment", environment)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
