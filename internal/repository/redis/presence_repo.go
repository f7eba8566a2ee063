package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PresenceRepository tracks which users hold a live gateway connection.
// A user may have several sockets, so connections are counted and the
// online marker expires unless refreshed.
type PresenceRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPresenceRepository creates a new PresenceRepository
func NewPresenceRepository(client *redis.Client, ttl time.Duration) *PresenceRepository {
	return &PresenceRepository{client: client, ttl: ttl}
}

func presenceKey(userID uuid.UUID) string    { return fmt.Sprintf("presence:%s", userID) }
func connectionsKey(userID uuid.UUID) string { return fmt.Sprintf("presence:conns:%s", userID) }

// Connect registers one more connection for userID and marks them online
func (r *PresenceRepository) Connect(ctx context.Context, userID uuid.UUID) error {
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, connectionsKey(userID))
	pipe.Expire(ctx, connectionsKey(userID), r.ttl)
	pipe.Set(ctx, presenceKey(userID), "online", r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set user online: %w", err)
	}
	return nil
}

// Refresh extends the online marker (heartbeat)
func (r *PresenceRepository) Refresh(ctx context.Context, userID uuid.UUID) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, presenceKey(userID), "online", r.ttl)
	pipe.Expire(ctx, connectionsKey(userID), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}
	return nil
}

// Disconnect drops one connection and clears the marker when none remain
func (r *PresenceRepository) Disconnect(ctx context.Context, userID uuid.UUID) error {
	remaining, err := r.client.Decr(ctx, connectionsKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to decrement connections: %w", err)
	}
	if remaining > 0 {
		return nil
	}

	if err := r.client.Del(ctx, presenceKey(userID), connectionsKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to set user offline: %w", err)
	}
	return nil
}

// IsOnline checks if user is currently online
func (r *PresenceRepository) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	exists, err := r.client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check presence: %w", err)
	}
	return exists > 0, nil
}
