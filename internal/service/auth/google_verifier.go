package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"

	"talkbridge-backend/internal/domain"
)

// GoogleVerifier checks Google ID tokens issued to the configured OAuth client
type GoogleVerifier struct {
	validator *idtoken.Validator
	clientID  string
}

// NewGoogleVerifier creates a verifier that fetches Google's signing keys over HTTP
func NewGoogleVerifier(ctx context.Context, clientID string) (*GoogleVerifier, error) {
	validator, err := idtoken.NewValidator(ctx, option.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google token validator: %w", err)
	}
	return &GoogleVerifier{validator: validator, clientID: clientID}, nil
}

// Verify validates the token signature, audience and expiry and extracts the identity
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*domain.ExternalIdentity, error) {
	payload, err := v.validator.Validate(ctx, idToken, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("%w: token carries no email", ErrInvalidIdentity)
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return nil, fmt.Errorf("%w: email is not verified", ErrInvalidIdentity)
	}

	name, _ := payload.Claims["name"].(string)
	picture, _ := payload.Claims["picture"].(string)

	return &domain.ExternalIdentity{
		Subject:    payload.Subject,
		Email:      email,
		Name:       name,
		PictureURL: picture,
	}, nil
}
