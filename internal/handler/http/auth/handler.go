package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"talkbridge-backend/internal/domain"
	"talkbridge-backend/internal/middleware"
	"talkbridge-backend/internal/service/auth"
	"talkbridge-backend/pkg/audit"
	"talkbridge-backend/pkg/constants"
	apperrors "talkbridge-backend/pkg/errors"
	"talkbridge-backend/pkg/logger"
	"talkbridge-backend/pkg/response"
)

// AuthService is the subset of the auth service used by the handler
type AuthService interface {
	GoogleLogin(ctx context.Context, idToken string) (*auth.LoginOutput, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.AuthenticationResponse, error)
	Logout(ctx context.Context, user domain.AuthenticatedUser, accessJTI string, accessExpiresAt time.Time) error
}

// Auditor records session events
type Auditor interface {
	Log(ctx context.Context, event *audit.Event) error
}

// Handler handles HTTP requests for authentication
type Handler struct {
	authService  AuthService
	auditor      Auditor
	secureCookie bool
}

// NewHandler creates a new auth handler. secureCookie marks the refresh cookie HTTPS-only.
func NewHandler(authService AuthService, auditor Auditor, secureCookie bool) *Handler {
	return &Handler{
		authService:  authService,
		auditor:      auditor,
		secureCookie: secureCookie,
	}
}

// GoogleLoginRequest represents the Google sign-in request body
type GoogleLoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// GoogleLogin exchanges a Google ID token for an access token and a refresh cookie
// POST /v1/auth/google
func (h *Handler) GoogleLogin(c *gin.Context) {
	var req GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "id_token is required")
		return
	}

	output, err := h.authService.GoogleLogin(c.Request.Context(), req.IDToken)
	if err != nil {
		h.record(c, audit.EventLoginFailed, nil, err)
		response.FromError(c, err)
		return
	}
	h.record(c, audit.EventLoginSuccess, &output.Auth.UserID, nil)

	h.setRefreshCookie(c, output.RefreshToken, int(time.Until(output.RefreshExpiresAt).Seconds()))
	response.Success(c, http.StatusOK, output.Auth)
}

// Refresh issues a new access token from the refresh cookie
// POST /v1/auth/refresh
func (h *Handler) Refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(constants.RefreshTokenCookie)
	if err != nil {
		response.Unauthorized(c, "Refresh token cookie is missing")
		return
	}

	resp, err := h.authService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		// The cookie is dead either way
		h.setRefreshCookie(c, "", -1)
		h.record(c, audit.EventRefreshRejected, nil, err)
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp)
}

// Logout revokes the session and clears the refresh cookie
// POST /v1/auth/logout
func (h *Handler) Logout(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}
	jti, expiresAt := middleware.CurrentToken(c)

	if err := h.authService.Logout(c.Request.Context(), user, jti, expiresAt); err != nil {
		response.FromError(c, err)
		return
	}

	h.record(c, audit.EventLogout, &user.UserID, nil)
	h.setRefreshCookie(c, "", -1)
	response.Success(c, http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}

func (h *Handler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(constants.RefreshTokenCookie, value, maxAge, "/", "", h.secureCookie, true)
}

// record never fails the request; a lost audit entry is only logged
func (h *Handler) record(c *gin.Context, eventType audit.EventType, userID *uuid.UUID, cause error) {
	if h.auditor == nil {
		return
	}
	event := &audit.Event{
		UserID:    userID,
		EventType: eventType,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Success:   cause == nil,
	}
	if cause != nil {
		event.ErrorCode = string(apperrors.GetAppError(cause).Code)
	}
	if err := h.auditor.Log(c.Request.Context(), event); err != nil {
		logger.FromContext(c.Request.Context()).Warn("Failed to record audit event",
			zap.String("event", string(eventType)),
			zap.Error(err))
	}
}
