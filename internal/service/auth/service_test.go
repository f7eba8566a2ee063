package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"talkbridge-backend/internal/domain"
	apperrors "talkbridge-backend/pkg/errors"
	"talkbridge-backend/pkg/jwt"
)

// Mocks
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, idToken string) (*domain.ExternalIdentity, error) {
	args := m.Called(ctx, idToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExternalIdentity), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) UpsertGoogleUser(ctx context.Context, identity *domain.ExternalIdentity) (*domain.User, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type MockRefreshTokenRepository struct {
	mock.Mock
}

func (m *MockRefreshTokenRepository) Save(ctx context.Context, token *domain.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *MockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockTokenBlacklist struct {
	mock.Mock
}

func (m *MockTokenBlacklist) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	args := m.Called(ctx, jti, expiresAt)
	return args.Error(0)
}

type fixture struct {
	verifier  *MockVerifier
	users     *MockUserRepository
	refresh   *MockRefreshTokenRepository
	blacklist *MockTokenBlacklist
	jwt       *jwt.JWTManager
	svc       *Service
}

func newFixture() *fixture {
	f := &fixture{
		verifier:  new(MockVerifier),
		users:     new(MockUserRepository),
		refresh:   new(MockRefreshTokenRepository),
		blacklist: new(MockTokenBlacklist),
		jwt:       jwt.NewJWTManager("test-secret-key-at-least-32-bytes!!", 15*time.Minute, 24*time.Hour),
	}
	f.svc = NewService(f.verifier, f.users, f.refresh, f.blacklist, f.jwt)
	return f
}

func testUser() *domain.User {
	return &domain.User{
		UserID:   uuid.New(),
		Email:    "alice@example.com",
		FullName: "Alice",
		Role:     domain.RoleUser,
		Enabled:  true,
	}
}

func TestGoogleLogin_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := testUser()
	identity := &domain.ExternalIdentity{Subject: "g-123", Email: " Alice@Example.com ", Name: "Alice"}

	f.verifier.On("Verify", ctx, "id-token").Return(identity, nil)
	f.users.On("UpsertGoogleUser", ctx, mock.MatchedBy(func(id *domain.ExternalIdentity) bool {
		return id.Email == "alice@example.com" && id.Subject == "g-123"
	})).Return(user, nil)
	f.refresh.On("RevokeAllForUser", ctx, user.UserID).Return(nil)

	var saved *domain.RefreshToken
	f.refresh.On("Save", ctx, mock.AnythingOfType("*domain.RefreshToken")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.RefreshToken) }).
		Return(nil)

	out, err := f.svc.GoogleLogin(ctx, "id-token")
	require.NoError(t, err)
	assert.Equal(t, user.UserID, out.Auth.UserID)
	assert.False(t, out.Auth.IsAccountCompleted)
	assert.NotEmpty(t, out.Auth.AccessToken)
	assert.NotEmpty(t, out.RefreshToken)

	require.NotNil(t, saved)
	assert.Equal(t, HashToken(out.RefreshToken), saved.TokenHash)
	assert.NotEqual(t, out.RefreshToken, saved.TokenHash)
	assert.Equal(t, out.RefreshExpiresAt, saved.ExpiresAt)

	claims, err := f.jwt.ValidateAccessToken(out.Auth.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.Email, claims.Email)

	f.refresh.AssertExpectations(t)
}

func TestGoogleLogin_InvalidToken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.verifier.On("Verify", ctx, "bad").Return(nil, ErrInvalidIdentity)

	_, err := f.svc.GoogleLogin(ctx, "bad")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidToken))
	f.users.AssertNotCalled(t, "UpsertGoogleUser", mock.Anything, mock.Anything)
}

func TestGoogleLogin_DisabledAccount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := testUser()
	user.Enabled = false

	f.verifier.On("Verify", ctx, "id-token").Return(&domain.ExternalIdentity{Subject: "g", Email: user.Email}, nil)
	f.users.On("UpsertGoogleUser", ctx, mock.Anything).Return(user, nil)

	_, err := f.svc.GoogleLogin(ctx, "id-token")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
	f.refresh.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRefresh_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := testUser()

	token, expiresAt, err := f.jwt.GenerateRefreshToken(user.UserID, user.Email)
	require.NoError(t, err)

	f.refresh.On("GetByHash", ctx, HashToken(token)).Return(&domain.RefreshToken{
		TokenID: uuid.New(), UserID: user.UserID, TokenHash: HashToken(token), ExpiresAt: expiresAt,
	}, nil)
	f.users.On("GetByID", ctx, user.UserID).Return(user, nil)

	resp, err := f.svc.Refresh(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.UserID, resp.UserID)
	assert.NotEmpty(t, resp.AccessToken)
	f.refresh.AssertNotCalled(t, "RevokeAllForUser", mock.Anything, mock.Anything)
}

func TestRefresh_UnknownToken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.refresh.On("GetByHash", ctx, HashToken("nope")).Return(nil, domain.ErrNotFound)

	_, err := f.svc.Refresh(ctx, "nope")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
}

func TestRefresh_MissingToken(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Refresh(context.Background(), "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
	f.refresh.AssertNotCalled(t, "GetByHash", mock.Anything, mock.Anything)
}

func TestRefresh_RevokedTokenRevokesAll(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := testUser()

	token, expiresAt, err := f.jwt.GenerateRefreshToken(user.UserID, user.Email)
	require.NoError(t, err)

	f.refresh.On("GetByHash", ctx, HashToken(token)).Return(&domain.RefreshToken{
		UserID: user.UserID, Revoked: true, ExpiresAt: expiresAt,
	}, nil)
	f.refresh.On("RevokeAllForUser", ctx, user.UserID).Return(nil)

	_, err = f.svc.Refresh(ctx, token)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
	f.refresh.AssertCalled(t, "RevokeAllForUser", ctx, user.UserID)
	f.users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestRefresh_StoredTokenPastExpiry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := testUser()

	token, _, err := f.jwt.GenerateRefreshToken(user.UserID, user.Email)
	require.NoError(t, err)

	f.refresh.On("GetByHash", ctx, HashToken(token)).Return(&domain.RefreshToken{
		UserID: user.UserID, ExpiresAt: time.Now().Add(-time.Minute),
	}, nil)
	f.refresh.On("RevokeAllForUser", ctx, user.UserID).Return(nil)

	_, err = f.svc.Refresh(ctx, token)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
	f.refresh.AssertExpectations(t)
}

func TestRefresh_AccessTokenPresented(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := testUser()

	access, err := f.jwt.GenerateAccessToken(user.UserID, user.Email, user.FullName, user.Role)
	require.NoError(t, err)

	f.refresh.On("GetByHash", ctx, HashToken(access)).Return(nil, domain.ErrNotFound)

	_, err = f.svc.Refresh(ctx, access)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
}

func TestLogout(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := testUser()
	authUser := domain.AuthenticatedUser{UserID: user.UserID, Email: user.Email}
	exp := time.Now().Add(10 * time.Minute)

	f.refresh.On("RevokeAllForUser", ctx, user.UserID).Return(nil)
	f.blacklist.On("Add", ctx, "jti-1", exp).Return(nil)

	require.NoError(t, f.svc.Logout(ctx, authUser, "jti-1", exp))
	f.blacklist.AssertExpectations(t)
}

func TestLogout_BlacklistUnavailable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := testUser()
	exp := time.Now().Add(10 * time.Minute)

	f.refresh.On("RevokeAllForUser", ctx, user.UserID).Return(nil)
	f.blacklist.On("Add", ctx, "jti-1", exp).Return(errors.New("redis down"))

	err := f.svc.Logout(ctx, domain.AuthenticatedUser{UserID: user.UserID}, "jti-1", exp)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeServiceUnavail))
}

func TestHashToken(t *testing.T) {
	h := HashToken("abc")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken("abc"))
	assert.NotEqual(t, h, HashToken("abd"))
}
