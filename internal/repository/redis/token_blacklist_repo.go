package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklistRepository stores revoked access token ids until they would expire anyway
type TokenBlacklistRepository struct {
	client *redis.Client
}

// NewTokenBlacklistRepository creates a new TokenBlacklistRepository
func NewTokenBlacklistRepository(client *redis.Client) *TokenBlacklistRepository {
	return &TokenBlacklistRepository{client: client}
}

func blacklistKey(jti string) string { return fmt.Sprintf("blacklist:%s", jti) }

// Add blacklists jti until expiresAt. Already-expired tokens are ignored.
func (r *TokenBlacklistRepository) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if jti == "" || ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, blacklistKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti has been blacklisted
func (r *TokenBlacklistRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	exists, err := r.client.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists > 0, nil
}
