package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"talkbridge-backend/internal/domain"
	apperrors "talkbridge-backend/pkg/errors"
	"talkbridge-backend/pkg/jwt"
	"talkbridge-backend/pkg/logger"
	"talkbridge-backend/pkg/metrics"
	"talkbridge-backend/pkg/sanitize"
)

// ErrInvalidIdentity is returned by an IdentityVerifier for any token it does not accept
var ErrInvalidIdentity = errors.New("invalid identity token")

// IdentityVerifier checks an external identity provider token
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*domain.ExternalIdentity, error)
}

// UserRepository interface
type UserRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	UpsertGoogleUser(ctx context.Context, identity *domain.ExternalIdentity) (*domain.User, error)
}

// RefreshTokenRepository interface
type RefreshTokenRepository interface {
	Save(ctx context.Context, token *domain.RefreshToken) error
	GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

// TokenBlacklist interface
type TokenBlacklist interface {
	Add(ctx context.Context, jti string, expiresAt time.Time) error
}

// Service handles authentication business logic
type Service struct {
	verifier    IdentityVerifier
	userRepo    UserRepository
	refreshRepo RefreshTokenRepository
	blacklist   TokenBlacklist
	jwtManager  *jwt.JWTManager
	now         func() time.Time
}

// NewService creates a new auth service
func NewService(
	verifier IdentityVerifier,
	userRepo UserRepository,
	refreshRepo RefreshTokenRepository,
	blacklist TokenBlacklist,
	jwtManager *jwt.JWTManager,
) *Service {
	return &Service{
		verifier:    verifier,
		userRepo:    userRepo,
		refreshRepo: refreshRepo,
		blacklist:   blacklist,
		jwtManager:  jwtManager,
		now:         time.Now,
	}
}

// LoginOutput contains the response body and the refresh credential for the cookie
type LoginOutput struct {
	Auth             *domain.AuthenticationResponse
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// HashToken returns the storage key of a refresh token (BLAKE2b-256, hex)
func HashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GoogleLogin signs a user in with a Google ID token, creating the account on first use
func (s *Service) GoogleLogin(ctx context.Context, idToken string) (*LoginOutput, error) {
	identity, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		metrics.AuthGoogleLoginTotal.WithLabelValues("invalid_token").Inc()
		logger.FromContext(ctx).Info("Rejected Google ID token", zap.Error(err))
		return nil, apperrors.InvalidTokenError("Invalid Google ID token")
	}
	identity.Email = sanitize.SanitizeEmail(identity.Email)

	user, err := s.userRepo.UpsertGoogleUser(ctx, identity)
	if err != nil {
		metrics.AuthGoogleLoginTotal.WithLabelValues("error").Inc()
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, apperrors.ConflictError("Email is already linked to another account")
		}
		return nil, apperrors.DatabaseError(err)
	}
	if !user.Enabled {
		metrics.AuthGoogleLoginTotal.WithLabelValues("disabled").Inc()
		return nil, apperrors.UnauthorizedError("Account is disabled")
	}

	// One live refresh token per user
	if err := s.refreshRepo.RevokeAllForUser(ctx, user.UserID); err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	accessToken, err := s.jwtManager.GenerateAccessToken(user.UserID, user.Email, user.FullName, user.Role)
	if err != nil {
		return nil, apperrors.InternalError("Failed to issue access token")
	}
	refreshToken, expiresAt, err := s.jwtManager.GenerateRefreshToken(user.UserID, user.Email)
	if err != nil {
		return nil, apperrors.InternalError("Failed to issue refresh token")
	}

	err = s.refreshRepo.Save(ctx, &domain.RefreshToken{
		TokenID:   uuid.New(),
		UserID:    user.UserID,
		TokenHash: HashToken(refreshToken),
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	metrics.AuthGoogleLoginTotal.WithLabelValues("success").Inc()
	logger.FromContext(ctx).Info("User signed in with Google", zap.String("user_id", user.UserID.String()))

	return &LoginOutput{
		Auth:             authResponse(user, accessToken),
		RefreshToken:     refreshToken,
		RefreshExpiresAt: expiresAt,
	}, nil
}

// Refresh issues a new access token for a valid refresh token. The refresh token is not rotated.
// A token that is known but no longer acceptable revokes every token of its user.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*domain.AuthenticationResponse, error) {
	if refreshToken == "" {
		return nil, apperrors.UnauthorizedError("Refresh token is required")
	}

	stored, err := s.refreshRepo.GetByHash(ctx, HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.AuthRefreshTokenTotal.WithLabelValues("unknown").Inc()
			return nil, apperrors.UnauthorizedError("Invalid refresh token")
		}
		return nil, apperrors.DatabaseError(err)
	}

	claims, verr := s.jwtManager.ValidateRefreshToken(refreshToken)
	if verr != nil || !stored.Usable(s.now()) || claims.UserID != stored.UserID {
		metrics.AuthRefreshTokenTotal.WithLabelValues("misuse").Inc()
		metrics.AuthRefreshTokenFamilyRevokedTotal.Inc()
		logger.FromContext(ctx).Warn("Refresh token misuse, revoking all tokens of user",
			zap.String("user_id", stored.UserID.String()),
			zap.Bool("revoked", stored.Revoked),
			zap.Bool("expired", stored.Expired))

		if err := s.refreshRepo.RevokeAllForUser(ctx, stored.UserID); err != nil {
			return nil, apperrors.DatabaseError(err)
		}
		return nil, apperrors.UnauthorizedError("Invalid refresh token")
	}

	user, err := s.userRepo.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperrors.UnauthorizedError("Invalid refresh token")
		}
		return nil, apperrors.DatabaseError(err)
	}
	if !user.Enabled {
		return nil, apperrors.UnauthorizedError("Account is disabled")
	}

	accessToken, err := s.jwtManager.GenerateAccessToken(user.UserID, user.Email, user.FullName, user.Role)
	if err != nil {
		return nil, apperrors.InternalError("Failed to issue access token")
	}

	metrics.AuthRefreshTokenTotal.WithLabelValues("success").Inc()
	return authResponse(user, accessToken), nil
}

// Logout revokes the user's refresh tokens and blacklists the presented access token
func (s *Service) Logout(ctx context.Context, user domain.AuthenticatedUser, accessJTI string, accessExpiresAt time.Time) error {
	if err := s.refreshRepo.RevokeAllForUser(ctx, user.UserID); err != nil {
		return apperrors.DatabaseError(err)
	}
	if err := s.blacklist.Add(ctx, accessJTI, accessExpiresAt); err != nil {
		return apperrors.ServiceUnavailableError("Failed to revoke access token")
	}
	metrics.AuthTokenBlacklistedTotal.Inc()

	metrics.AuthLogoutTotal.Inc()
	return nil
}

func authResponse(user *domain.User, accessToken string) *domain.AuthenticationResponse {
	return &domain.AuthenticationResponse{
		UserID:             user.UserID,
		FullName:           user.FullName,
		Email:              user.Email,
		IsAccountCompleted: user.AccountCompleted,
		AccessToken:        accessToken,
		ProfileURL:         user.ProfileURL(),
	}
}
