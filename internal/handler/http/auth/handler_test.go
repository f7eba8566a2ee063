package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"talkbridge-backend/internal/domain"
	"talkbridge-backend/internal/middleware"
	"talkbridge-backend/internal/service/auth"
	"talkbridge-backend/pkg/audit"
	"talkbridge-backend/pkg/constants"
	apperrors "talkbridge-backend/pkg/errors"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) GoogleLogin(ctx context.Context, idToken string) (*auth.LoginOutput, error) {
	args := m.Called(ctx, idToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.LoginOutput), args.Error(1)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*domain.AuthenticationResponse, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AuthenticationResponse), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, user domain.AuthenticatedUser, accessJTI string, accessExpiresAt time.Time) error {
	return m.Called(ctx, user, accessJTI, accessExpiresAt).Error(0)
}

type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) Log(ctx context.Context, event *audit.Event) error {
	return m.Called(ctx, event).Error(0)
}

func eventOfType(eventType audit.EventType) interface{} {
	return mock.MatchedBy(func(e *audit.Event) bool { return e.EventType == eventType })
}

func setupRouter(svc *MockAuthService, auditor *MockAuditor, user *domain.AuthenticatedUser) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc, auditor, true)

	r := gin.New()
	r.POST("/v1/auth/google", h.GoogleLogin)
	r.POST("/v1/auth/refresh", h.Refresh)
	r.POST("/v1/auth/logout", func(c *gin.Context) {
		if user != nil {
			c.Set(middleware.ContextAuthUser, *user)
			c.Set(middleware.ContextTokenID, "jti-1")
			c.Set(middleware.ContextTokenExpiresAt, time.Unix(1700000000, 0))
		}
		c.Next()
	}, h.Logout)
	return r
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == constants.RefreshTokenCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie set", constants.RefreshTokenCookie)
	return nil
}

func TestGoogleLogin_SetsRefreshCookie(t *testing.T) {
	svc := new(MockAuthService)
	auditor := new(MockAuditor)
	userID := uuid.New()

	svc.On("GoogleLogin", mock.Anything, "google-token").Return(&auth.LoginOutput{
		Auth:             &domain.AuthenticationResponse{UserID: userID, AccessToken: "access"},
		RefreshToken:     "refresh",
		RefreshExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil)
	auditor.On("Log", mock.Anything, mock.MatchedBy(func(e *audit.Event) bool {
		return e.EventType == audit.EventLoginSuccess && e.UserID != nil && *e.UserID == userID && e.Success
	})).Return(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/google", strings.NewReader(`{"id_token":"google-token"}`))
	req.Header.Set("Content-Type", "application/json")
	setupRouter(svc, auditor, nil).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"access_token":"access"`)

	cookie := refreshCookie(t, w)
	assert.Equal(t, "refresh", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Greater(t, cookie.MaxAge, 0)
	auditor.AssertExpectations(t)
}

func TestGoogleLogin_MissingToken(t *testing.T) {
	svc := new(MockAuthService)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/google", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	setupRouter(svc, new(MockAuditor), nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "GoogleLogin", mock.Anything, mock.Anything)
}

func TestGoogleLogin_InvalidTokenIsAudited(t *testing.T) {
	svc := new(MockAuthService)
	auditor := new(MockAuditor)

	svc.On("GoogleLogin", mock.Anything, "bad").Return(nil, apperrors.InvalidTokenError("Invalid Google ID token"))
	auditor.On("Log", mock.Anything, mock.MatchedBy(func(e *audit.Event) bool {
		return e.EventType == audit.EventLoginFailed && !e.Success && e.ErrorCode == string(apperrors.ErrCodeInvalidToken)
	})).Return(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/google", strings.NewReader(`{"id_token":"bad"}`))
	req.Header.Set("Content-Type", "application/json")
	setupRouter(svc, auditor, nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	auditor.AssertExpectations(t)
}

func TestRefresh_MissingCookie(t *testing.T) {
	svc := new(MockAuthService)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", nil)
	setupRouter(svc, new(MockAuditor), nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	svc.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestRefresh_RejectedClearsCookie(t *testing.T) {
	svc := new(MockAuthService)
	auditor := new(MockAuditor)

	svc.On("Refresh", mock.Anything, "stale").Return(nil, apperrors.UnauthorizedError("Invalid refresh token"))
	auditor.On("Log", mock.Anything, eventOfType(audit.EventRefreshRejected)).Return(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: constants.RefreshTokenCookie, Value: "stale"})
	setupRouter(svc, auditor, nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	cookie := refreshCookie(t, w)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestRefresh_Success(t *testing.T) {
	svc := new(MockAuthService)
	svc.On("Refresh", mock.Anything, "good").Return(&domain.AuthenticationResponse{AccessToken: "new-access"}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: constants.RefreshTokenCookie, Value: "good"})
	setupRouter(svc, new(MockAuditor), nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "new-access")
}

func TestLogout_AuditFailureDoesNotFailRequest(t *testing.T) {
	svc := new(MockAuthService)
	auditor := new(MockAuditor)
	user := domain.AuthenticatedUser{UserID: uuid.New(), Email: "alice@example.com"}

	svc.On("Logout", mock.Anything, user, "jti-1", time.Unix(1700000000, 0)).Return(nil)
	auditor.On("Log", mock.Anything, eventOfType(audit.EventLogout)).Return(errors.New("redis down"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
	setupRouter(svc, auditor, &user).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	cookie := refreshCookie(t, w)
	assert.Less(t, cookie.MaxAge, 0)
	svc.AssertExpectations(t)
}

func TestLogout_Unauthenticated(t *testing.T) {
	svc := new(MockAuthService)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
	setupRouter(svc, new(MockAuditor), nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
