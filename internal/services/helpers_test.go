package services

import (
	"go.uber.org/zap"

	"github.com/bgai/bgai-backend/internal/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
