package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"talkbridge-backend/internal/domain"
	"talkbridge-backend/pkg/jwt"
	"talkbridge-backend/pkg/logger"
	"talkbridge-backend/pkg/response"
)

// Gin context keys set by AuthMiddleware
const (
	ContextAuthUser       = "auth_user"
	ContextUserID         = "user_id"
	ContextEmail          = "email"
	ContextRole           = "role"
	ContextTokenID        = "token_jti"
	ContextTokenExpiresAt = "token_expires_at"
)

// AuthMiddleware validates the Bearer access token and stores the caller's identity
func AuthMiddleware(jwtManager *jwt.JWTManager, blacklist TokenBlacklist) gin.HandlerFunc {
	return authenticate(jwtManager, blacklist, false)
}

// WebSocketAuthMiddleware also accepts the token as a "token" query parameter,
// since browsers cannot set headers on a WebSocket upgrade
func WebSocketAuthMiddleware(jwtManager *jwt.JWTManager, blacklist TokenBlacklist) gin.HandlerFunc {
	return authenticate(jwtManager, blacklist, true)
}

func authenticate(jwtManager *jwt.JWTManager, blacklist TokenBlacklist, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok && allowQuery {
			tokenString = c.Query("token")
			ok = tokenString != ""
		}
		if !ok {
			response.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		// Refresh tokens are rejected here
		claims, err := jwtManager.ValidateAccessToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		if isRevoked(c, blacklist, claims.ID) {
			response.Unauthorized(c, "Token revoked")
			c.Abort()
			return
		}

		user := domain.AuthenticatedUser{
			UserID:   claims.UserID,
			Email:    claims.Email,
			FullName: claims.FullName,
			Role:     claims.Role,
		}
		c.Set(ContextAuthUser, user)
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextTokenID, claims.ID)
		if claims.ExpiresAt != nil {
			c.Set(ContextTokenExpiresAt, claims.ExpiresAt.Time)
		}
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), claims.UserID.String()))

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// CurrentUser returns the identity stored by AuthMiddleware
func CurrentUser(c *gin.Context) (domain.AuthenticatedUser, bool) {
	v, ok := c.Get(ContextAuthUser)
	if !ok {
		return domain.AuthenticatedUser{}, false
	}
	user, ok := v.(domain.AuthenticatedUser)
	return user, ok
}

// CurrentToken returns the jti and expiry of the access token used for the request
func CurrentToken(c *gin.Context) (string, time.Time) {
	return c.GetString(ContextTokenID), c.GetTime(ContextTokenExpiresAt)
}

// TokenSubject returns the user id of a valid access token on the request, or "".
// It never rejects the request.
func TokenSubject(jwtManager *jwt.JWTManager) func(c *gin.Context) string {
	return func(c *gin.Context) string {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return ""
		}
		claims, err := jwtManager.ValidateAccessToken(tokenString)
		if err != nil {
			return ""
		}
		return claims.UserID.String()
	}
}
