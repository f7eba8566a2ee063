package cockroach

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"talkbridge-backend/internal/domain"
)

// RefreshTokenRepository stores hashed refresh credentials
type RefreshTokenRepository struct {
	pool *pgxpool.Pool
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository
func NewRefreshTokenRepository(pool *pgxpool.Pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

// Save inserts a refresh token
func (r *RefreshTokenRepository) Save(ctx context.Context, token *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token_id, user_id, token_hash, revoked, expired, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		token.TokenID,
		token.UserID,
		token.TokenHash,
		token.Revoked,
		token.Expired,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// GetByHash retrieves a refresh token by the hash of its token string
func (r *RefreshTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	query := `
		SELECT token_id, user_id, token_hash, revoked, expired, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	t := &domain.RefreshToken{}
	err := r.pool.QueryRow(ctx, query, hash).Scan(
		&t.TokenID,
		&t.UserID,
		&t.TokenHash,
		&t.Revoked,
		&t.Expired,
		&t.ExpiresAt,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "refresh token")
	}
	return t, nil
}

// RevokeAllForUser marks every refresh token of userID revoked and expired
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = true, expired = true
		WHERE user_id = $1 AND (NOT revoked OR NOT expired)
	`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}
