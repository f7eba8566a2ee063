package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"talkbridge-backend/pkg/logger"
)

// TokenBlacklist reports access tokens revoked by logout
type TokenBlacklist interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// isRevoked fails open: a blacklist outage must not lock every user out,
// and the token already passed signature and expiry checks.
func isRevoked(c *gin.Context, blacklist TokenBlacklist, jti string) bool {
	if blacklist == nil || jti == "" {
		return false
	}

	revoked, err := blacklist.IsRevoked(c.Request.Context(), jti)
	if err != nil {
		logger.FromContext(c.Request.Context()).Warn("Token blacklist unavailable, allowing request",
			zap.Error(err))
		return false
	}
	return revoked
}
