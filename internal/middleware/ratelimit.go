package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bgai/bgai-backend/internal/logger"
	"github.com/bgai/bgai-backend/internal/requestdata"
	"github.com/bgai/bgai-backend/internal/utils"
)

// RateLimitMiddleware applies a per-user token bucket on top of the daily
// chat quota. It protects the API from bursts; the quota protects spend.
type RateLimitMiddleware struct {
	log     *logger.Logger
	enabled bool
	rps     rate.Limit
	burst   int

	mu       sync.Mutex
	limiters map[uuid.UUID]*userLimiter
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimitMiddleware(log *logger.Logger) *RateLimitMiddleware {
	mlog := log.With("middleware", "RateLimitMiddleware")
	rl := &RateLimitMiddleware{
		log:      mlog,
		enabled:  utils.GetEnvAsBool("RATE_LIMIT_ENABLED", true, mlog),
		rps:      rate.Limit(utils.GetEnvAsInt("RATE_LIMIT_RPS", 5, mlog)),
		burst:    utils.GetEnvAsInt("RATE_LIMIT_BURST", 10, mlog),
		limiters: make(map[uuid.UUID]*userLimiter),
	}
	if rl.enabled {
		go rl.evictLoop()
	}
	return rl
}

func (rl *RateLimitMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.enabled {
			c.Next()
			return
		}
		rd := requestdata.GetRequestData(c.Request.Context())
		if rd == nil {
			// Unauthenticated routes are not per-user limited.
			c.Next()
			return
		}
		if !rl.limiterFor(rd.UserID).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"code": "rate_limited", "message": "too many requests, slow down"},
			})
			return
		}
		c.Next()
	}
}

func (rl *RateLimitMiddleware) limiterFor(userID uuid.UUID) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	ul, ok := rl.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[userID] = ul
	}
	ul.lastSeen = time.Now()
	return ul.limiter
}

// evictLoop drops limiters idle for more than ten minutes so the map does
// not grow with every user ever seen.
func (rl *RateLimitMiddleware) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		rl.mu.Lock()
		for id, ul := range rl.limiters {
			if ul.lastSeen.Before(cutoff) {
				delete(rl.limiters, id)
			}
		}
		rl.mu.Unlock()
	}
}
