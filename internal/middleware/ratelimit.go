package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "talkbridge-backend/pkg/errors"
	"talkbridge-backend/pkg/logger"
	"talkbridge-backend/pkg/metrics"
	"talkbridge-backend/pkg/response"
)

// RateLimiter implements a Redis fixed-window rate limit per user or client IP
type RateLimiter struct {
	redisClient *redis.Client
	requests    int
	window      time.Duration
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewRateLimiter creates a new rate limiter
// requests: maximum number of requests allowed
// window: time window for the rate limit (e.g., 1 minute)
func NewRateLimiter(redisClient *redis.Client, requests int, window time.Duration, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		requests:    requests,
		window:      window,
		metrics:     m,
		now:         time.Now,
	}
}

// Middleware returns a Gin middleware for rate limiting. Identity comes from
// UserIdentifier when set, so it can run before authentication in the gateway.
func (rl *RateLimiter) Middleware(userIdentifier func(c *gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := ""
		if userIdentifier != nil {
			identifier = userIdentifier(c)
		}
		scope := "user"
		if identifier == "" {
			identifier = "ip:" + c.ClientIP()
			scope = "ip"
		} else {
			identifier = "user:" + identifier
		}

		allowed, remaining, resetAt, err := rl.checkRateLimit(c.Request.Context(), identifier)
		if err != nil {
			// Fail open while Redis is unavailable
			logger.FromContext(c.Request.Context()).Warn("Rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if !allowed {
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitBlocked(scope)
			}
			c.Header("Retry-After", strconv.FormatInt(max(resetAt-rl.now().Unix(), 1), 10))
			response.FromError(c, apperrors.RateLimitExceededError())
			c.Abort()
			return
		}

		c.Next()
	}
}

// checkRateLimit counts the request in the current window with a single INCR
func (rl *RateLimiter) checkRateLimit(ctx context.Context, identifier string) (bool, int, int64, error) {
	windowSeconds := int64(rl.window.Seconds())
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	windowStart := rl.now().Unix() / windowSeconds * windowSeconds
	key := fmt.Sprintf("ratelimit:%s:%d", identifier, windowStart)

	pipe := rl.redisClient.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, 0, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	count := int(incr.Val())
	remaining := rl.requests - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.requests, remaining, windowStart + windowSeconds, nil
}
