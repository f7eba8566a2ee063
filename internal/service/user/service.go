package user

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"talkbridge-backend/internal/domain"
	"talkbridge-backend/internal/service/storage"
	"talkbridge-backend/pkg/constants"
	apperrors "talkbridge-backend/pkg/errors"
	"talkbridge-backend/pkg/logger"
	"talkbridge-backend/pkg/sanitize"
)

// UserRepository interface
type UserRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
	Search(ctx context.Context, excludeID uuid.UUID, pattern string, limit int) ([]*domain.User, error)
	Random(ctx context.Context, excludeID uuid.UUID, limit int) ([]*domain.User, error)
	CallPartners(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.User, error)
}

// PresenceRepository reports live gateway connections
type PresenceRepository interface {
	IsOnline(ctx context.Context, userID uuid.UUID) (bool, error)
}

// ProfileStore stores profile images
type ProfileStore interface {
	UploadProfileImage(ctx context.Context, userID uuid.UUID, reader io.ReadSeeker, size int64, contentType string) (*domain.ProfileImage, error)
	DeleteProfileImage(ctx context.Context, image *domain.ProfileImage)
}

// Service handles user directory business logic
type Service struct {
	userRepo     UserRepository
	presenceRepo PresenceRepository
	profileStore ProfileStore
	now          func() time.Time
}

// NewService creates a new user service
func NewService(userRepo UserRepository, presenceRepo PresenceRepository, profileStore ProfileStore) *Service {
	return &Service{
		userRepo:     userRepo,
		presenceRepo: presenceRepo,
		profileStore: profileStore,
		now:          time.Now,
	}
}

// ImageUpload is a profile image received from the client
type ImageUpload struct {
	Reader      io.ReadSeeker
	Size        int64
	ContentType string
}

// CompleteAccountInput contains the account completion form
type CompleteAccountInput struct {
	FullName  string
	BirthDate string // YYYY-MM-DD
	Phone     *string
	Image     *ImageUpload
}

// Me returns the caller's own profile with live online status
func (s *Service) Me(ctx context.Context, user domain.AuthenticatedUser) (*domain.UserProfile, error) {
	u, err := s.getUser(ctx, user.UserID)
	if err != nil {
		return nil, err
	}

	return s.profile(ctx, u), nil
}

// profile reports offline when presence cannot be read
func (s *Service) profile(ctx context.Context, u *domain.User) *domain.UserProfile {
	online, err := s.presenceRepo.IsOnline(ctx, u.UserID)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to read presence", zap.Error(err))
		online = false
	}
	return u.ToProfile(online)
}

// CompleteAccount fills in the profile after first sign-in
func (s *Service) CompleteAccount(ctx context.Context, user domain.AuthenticatedUser, input *CompleteAccountInput) (*domain.UserProfile, error) {
	fullName, ok := sanitize.CleanText(input.FullName, constants.MaxFullNameLength)
	if !ok || fullName == "" {
		return nil, apperrors.ValidationError("Full name is required and must be at most 100 characters")
	}

	birthDate, err := time.Parse("2006-01-02", strings.TrimSpace(input.BirthDate))
	if err != nil {
		return nil, apperrors.ValidationError("Birth date must be formatted as YYYY-MM-DD")
	}
	if birthDate.After(s.now()) {
		return nil, apperrors.ValidationError("Birth date cannot be in the future")
	}

	var phone *string
	if input.Phone != nil {
		if p := sanitize.SanitizePhoneNumber(*input.Phone); p != "" {
			phone = &p
		}
	}

	if img := input.Image; img != nil {
		if !storage.IsSupportedImage(img.ContentType) {
			return nil, apperrors.ValidationError("Profile image must be a JPEG, PNG or WebP file")
		}
		if img.Size <= 0 || img.Size > constants.MaxProfileImageSize {
			return nil, apperrors.ValidationError("Profile image must be at most 5MB")
		}
	}

	u, err := s.getUser(ctx, user.UserID)
	if err != nil {
		return nil, err
	}

	previous := u.ProfileImage
	if img := input.Image; img != nil {
		uploaded, err := s.profileStore.UploadProfileImage(ctx, u.UserID, img.Reader, img.Size, img.ContentType)
		if err != nil {
			return nil, apperrors.StorageError(err)
		}
		u.ProfileImage = uploaded
	}

	u.FullName = fullName
	u.BirthDate = &birthDate
	u.Phone = phone
	u.AccountCompleted = true

	if err := s.userRepo.UpdateProfile(ctx, u); err != nil {
		if input.Image != nil {
			s.profileStore.DeleteProfileImage(ctx, u.ProfileImage)
		}
		return nil, mapUserError(err)
	}

	if input.Image != nil && previous != nil {
		s.profileStore.DeleteProfileImage(ctx, previous)
	}

	logger.FromContext(ctx).Info("Account completed", zap.String("user_id", u.UserID.String()))
	return s.profile(ctx, u), nil
}

// Search finds users by name, phone or email. The caller is never part of the result.
func (s *Service) Search(ctx context.Context, user domain.AuthenticatedUser, query string, size int) ([]*domain.UserResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*domain.UserResponse{}, nil
	}

	users, err := s.userRepo.Search(ctx, user.UserID, sanitize.EscapeLike(query),
		clampSize(size, constants.DefaultSearchSize, constants.MaxSearchSize))
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return domain.ToResponses(users), nil
}

// Suggested returns the caller's most recent call partners
func (s *Service) Suggested(ctx context.Context, user domain.AuthenticatedUser, size int) ([]*domain.UserResponse, error) {
	users, err := s.userRepo.CallPartners(ctx, user.UserID,
		clampSize(size, constants.DefaultSuggestedSize, constants.MaxSuggestedSize))
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return domain.ToResponses(users), nil
}

// Random returns a random sample of other users
func (s *Service) Random(ctx context.Context, user domain.AuthenticatedUser, size int) ([]*domain.UserResponse, error) {
	users, err := s.userRepo.Random(ctx, user.UserID,
		clampSize(size, constants.DefaultSuggestedSize, constants.MaxSuggestedSize))
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return domain.ToResponses(users), nil
}

// GetByID returns another user's public profile
func (s *Service) GetByID(ctx context.Context, user domain.AuthenticatedUser, userID uuid.UUID) (*domain.UserResponse, error) {
	if userID == user.UserID {
		return nil, apperrors.ForbiddenError("Use /users/me to read your own profile")
	}

	u, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.ToResponse(), nil
}

// GetByEmail returns the public profile registered under email
func (s *Service) GetByEmail(ctx context.Context, email string) (*domain.UserResponse, error) {
	email = sanitize.SanitizeEmail(email)
	if !sanitize.ValidateEmailFormat(email) {
		return nil, apperrors.ValidationError("Invalid email address")
	}

	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, mapUserError(err)
	}
	return u.ToResponse(), nil
}

func (s *Service) getUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserError(err)
	}
	return u, nil
}

func mapUserError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return apperrors.UserNotFoundError()
	}
	return apperrors.DatabaseError(err)
}

func clampSize(size, def, max int) int {
	if size <= 0 {
		return def
	}
	if size > max {
		return max
	}
	return size
}
