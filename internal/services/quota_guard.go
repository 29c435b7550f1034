package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/bgai/bgai-backend/internal/logger"
)

// QuotaGuard is the opt-in strict counterpart to UsageService's advisory
// quota check: a Redis counter incremented atomically per question, keyed by
// user, game and UTC day, expiring at the next UTC midnight. When no Redis
// address is configured the system runs without it and keeps the documented
// best-effort behavior.
type QuotaGuard interface {
	// Reserve claims one unit of today's quota. It returns false when the
	// daily limit is already spent.
	Reserve(ctx context.Context, userID, gameID uuid.UUID, dailyLimit int) (bool, error)
	// Release returns a reserved unit, used when the provider call fails
	// after a successful reservation.
	Release(ctx context.Context, userID, gameID uuid.UUID)
	Close() error
}

type quotaGuard struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewQuotaGuard(log *logger.Logger) (QuotaGuard, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &quotaGuard{
		log: log.With("service", "QuotaGuard"),
		rdb: rdb,
	}, nil
}

func quotaKey(userID, gameID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("quota:chat:%s:%s:%s", userID.String(), gameID.String(), day.Format("2006-01-02"))
}

func (g *quotaGuard) Reserve(ctx context.Context, userID, gameID uuid.UUID, dailyLimit int) (bool, error) {
	now := time.Now().UTC()
	key := quotaKey(userID, gameID, now)

	count, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("quota incr: %w", err)
	}
	if count == 1 {
		// First event of the day owns the key's expiry.
		if err := g.rdb.ExpireAt(ctx, key, nextMidnightUTC(now)).Err(); err != nil {
			g.log.Warn("quota key expiry failed", "error", err)
		}
	}
	if count > int64(dailyLimit) {
		// Undo so the counter stays equal to granted reservations.
		if err := g.rdb.Decr(ctx, key).Err(); err != nil {
			g.log.Warn("quota decr failed", "error", err)
		}
		return false, nil
	}
	return true, nil
}

func (g *quotaGuard) Release(ctx context.Context, userID, gameID uuid.UUID) {
	key := quotaKey(userID, gameID, time.Now().UTC())
	if err := g.rdb.Decr(ctx, key).Err(); err != nil {
		g.log.Warn("quota release failed", "error", err)
	}
}

func (g *quotaGuard) Close() error {
	return g.rdb.Close()
}
