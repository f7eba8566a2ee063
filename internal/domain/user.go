package domain

import (
	"time"

	"github.com/google/uuid"
)

// Roles
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// ProfileImage references an uploaded profile picture
type ProfileImage struct {
	PublicID string `json:"public_id"` // object key in the profile bucket
	URL      string `json:"url"`
}

// User represents a user entity in the system
// Maps to CockroachDB users table
type User struct {
	UserID           uuid.UUID     `json:"user_id" db:"user_id"`
	Email            string        `json:"email" db:"email"`
	FullName         string        `json:"full_name" db:"full_name"`
	Phone            *string       `json:"phone,omitempty" db:"phone"`
	BirthDate        *time.Time    `json:"birth_date,omitempty" db:"birth_date"`
	GoogleID         string        `json:"-" db:"google_id"`
	Role             string        `json:"role" db:"role"`
	Enabled          bool          `json:"enabled" db:"enabled"`
	InCall           bool          `json:"in_call" db:"in_call"` // presence flag, owned by call transitions
	ProfileImage     *ProfileImage `json:"profile_image,omitempty"`
	AccountCompleted bool          `json:"account_completed" db:"account_completed"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// ExternalIdentity is what a verified identity provider token yields
type ExternalIdentity struct {
	Subject    string
	Email      string
	Name       string
	PictureURL string
}

// UserResponse is the public profile shape sent to other users
type UserResponse struct {
	UserID     uuid.UUID  `json:"user_id"`
	FullName   string     `json:"full_name"`
	Email      string     `json:"email"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	ProfileURL string     `json:"profile_url"`
}

// UserProfile is the owner's view of their own account
type UserProfile struct {
	UserResponse
	Phone            *string `json:"phone,omitempty"`
	Role             string  `json:"role"`
	AccountCompleted bool    `json:"account_completed"`
	Online           bool    `json:"online"`
}

// ProfileURL returns the image URL or "" when the user has none
func (u *User) ProfileURL() string {
	if u.ProfileImage == nil {
		return ""
	}
	return u.ProfileImage.URL
}

// ToResponse converts User to UserResponse (removes private data)
func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		UserID:     u.UserID,
		FullName:   u.FullName,
		Email:      u.Email,
		BirthDate:  u.BirthDate,
		ProfileURL: u.ProfileURL(),
	}
}

// ToProfile converts User to the owner's profile view
func (u *User) ToProfile(online bool) *UserProfile {
	return &UserProfile{
		UserResponse:     *u.ToResponse(),
		Phone:            u.Phone,
		Role:             u.Role,
		AccountCompleted: u.AccountCompleted,
		Online:           online,
	}
}

// ToResponses maps a user list to public profiles
func ToResponses(users []*User) []*UserResponse {
	out := make([]*UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToResponse())
	}
	return out
}

// AuthenticatedUser is the identity resolved from a request credential.
// It is passed explicitly into every service operation.
type AuthenticatedUser struct {
	UserID   uuid.UUID
	Email    string
	FullName string
	Role     string
}
