package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a persisted refresh credential.
// Only a hash of the token string is stored.
type RefreshToken struct {
	TokenID   uuid.UUID `json:"token_id"`
	UserID    uuid.UUID `json:"user_id"`
	TokenHash string    `json:"-"`
	Revoked   bool      `json:"revoked"`
	Expired   bool      `json:"expired"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Usable reports whether the token has not been invalidated and is not past its expiry
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && !t.Expired && now.Before(t.ExpiresAt)
}

// AuthenticationResponse is returned by login and refresh
type AuthenticationResponse struct {
	UserID             uuid.UUID `json:"user_id"`
	FullName           string    `json:"full_name"`
	Email              string    `json:"email"`
	IsAccountCompleted bool      `json:"is_account_completed"`
	AccessToken        string    `json:"access_token"`
	ProfileURL         string    `json:"profile_url"`
}
