package user

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"talkbridge-backend/internal/domain"
	apperrors "talkbridge-backend/pkg/errors"
)

// Mocks
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

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Search(ctx context.Context, excludeID uuid.UUID, pattern string, limit int) ([]*domain.User, error) {
	args := m.Called(ctx, excludeID, pattern, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserRepository) Random(ctx context.Context, excludeID uuid.UUID, limit int) ([]*domain.User, error) {
	args := m.Called(ctx, excludeID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserRepository) CallPartners(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.User, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

type MockPresenceRepository struct {
	mock.Mock
}

func (m *MockPresenceRepository) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) UploadProfileImage(ctx context.Context, userID uuid.UUID, reader io.ReadSeeker, size int64, contentType string) (*domain.ProfileImage, error) {
	args := m.Called(ctx, userID, reader, size, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProfileImage), args.Error(1)
}

func (m *MockProfileStore) DeleteProfileImage(ctx context.Context, image *domain.ProfileImage) {
	m.Called(ctx, image)
}

type fixture struct {
	users    *MockUserRepository
	presence *MockPresenceRepository
	store    *MockProfileStore
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		users:    new(MockUserRepository),
		presence: new(MockPresenceRepository),
		store:    new(MockProfileStore),
	}
	f.svc = NewService(f.users, f.presence, f.store)
	f.svc.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return f
}

func newUser(email string) *domain.User {
	return &domain.User{UserID: uuid.New(), Email: email, FullName: "Test", Role: domain.RoleUser, Enabled: true}
}

func authOf(u *domain.User) domain.AuthenticatedUser {
	return domain.AuthenticatedUser{UserID: u.UserID, Email: u.Email, FullName: u.FullName, Role: u.Role}
}

func TestMe_ReportsPresence(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := newUser("alice@example.com")

	f.users.On("GetByID", ctx, alice.UserID).Return(alice, nil)
	f.presence.On("IsOnline", ctx, alice.UserID).Return(true, nil)

	profile, err := f.svc.Me(ctx, authOf(alice))
	require.NoError(t, err)
	assert.True(t, profile.Online)
	assert.Equal(t, alice.Email, profile.Email)
}

func TestMe_PresenceFailureReportsOffline(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := newUser("alice@example.com")

	f.users.On("GetByID", ctx, alice.UserID).Return(alice, nil)
	f.presence.On("IsOnline", ctx, alice.UserID).Return(false, errors.New("redis down"))

	profile, err := f.svc.Me(ctx, authOf(alice))
	require.NoError(t, err)
	assert.False(t, profile.Online)
}

func TestCompleteAccount_ReplacesImage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := newUser("alice@example.com")
	old := &domain.ProfileImage{PublicID: "profiles/old.jpg", URL: "http://cdn/old.jpg"}
	alice.ProfileImage = old
	uploaded := &domain.ProfileImage{PublicID: "profiles/new.png", URL: "http://cdn/new.png"}
	body := bytes.NewReader([]byte("img"))
	phone := " +1 (555) 000-1111 "

	f.users.On("GetByID", ctx, alice.UserID).Return(alice, nil)
	f.store.On("UploadProfileImage", ctx, alice.UserID, body, int64(3), "image/png").Return(uploaded, nil)
	f.users.On("UpdateProfile", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.FullName == "Alice Liddell" && u.AccountCompleted && u.ProfileImage == uploaded &&
			u.Phone != nil && *u.Phone == "+15550001111"
	})).Return(nil)
	f.store.On("DeleteProfileImage", ctx, old).Return()
	f.presence.On("IsOnline", ctx, alice.UserID).Return(true, nil)

	profile, err := f.svc.CompleteAccount(ctx, authOf(alice), &CompleteAccountInput{
		FullName:  "  Alice Liddell ",
		BirthDate: "1990-04-02",
		Phone:     &phone,
		Image:     &ImageUpload{Reader: body, Size: 3, ContentType: "image/png"},
	})
	require.NoError(t, err)
	assert.True(t, profile.AccountCompleted)
	assert.Equal(t, "http://cdn/new.png", profile.ProfileURL)
	f.store.AssertExpectations(t)
}

func TestCompleteAccount_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := newUser("alice@example.com")

	tests := []struct {
		name  string
		input *CompleteAccountInput
	}{
		{"empty name", &CompleteAccountInput{FullName: "  ", BirthDate: "1990-01-01"}},
		{"bad date", &CompleteAccountInput{FullName: "Alice", BirthDate: "01/02/1990"}},
		{"future date", &CompleteAccountInput{FullName: "Alice", BirthDate: "2030-01-01"}},
		{"gif image", &CompleteAccountInput{FullName: "Alice", BirthDate: "1990-01-01",
			Image: &ImageUpload{Reader: bytes.NewReader(nil), Size: 10, ContentType: "image/gif"}}},
		{"oversized image", &CompleteAccountInput{FullName: "Alice", BirthDate: "1990-01-01",
			Image: &ImageUpload{Reader: bytes.NewReader(nil), Size: 6 << 20, ContentType: "image/jpeg"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CompleteAccount(ctx, authOf(alice), tt.input)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
		})
	}
	f.users.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything)
}

func TestCompleteAccount_UpdateFailureDropsUpload(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := newUser("alice@example.com")
	uploaded := &domain.ProfileImage{PublicID: "profiles/new.png"}
	body := bytes.NewReader([]byte("img"))

	f.users.On("GetByID", ctx, alice.UserID).Return(alice, nil)
	f.store.On("UploadProfileImage", ctx, alice.UserID, body, int64(3), "image/png").Return(uploaded, nil)
	f.users.On("UpdateProfile", ctx, mock.Anything).Return(errors.New("db down"))
	f.store.On("DeleteProfileImage", ctx, uploaded).Return()

	_, err := f.svc.CompleteAccount(ctx, authOf(alice), &CompleteAccountInput{
		FullName: "Alice", BirthDate: "1990-01-01",
		Image: &ImageUpload{Reader: body, Size: 3, ContentType: "image/png"},
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabase))
	f.store.AssertCalled(t, "DeleteProfileImage", ctx, uploaded)
}

func TestSearch_EscapesAndClamps(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := newUser("alice@example.com")
	bob := newUser("bob@example.com")

	f.users.On("Search", ctx, alice.UserID, `50\%`, 20).Return([]*domain.User{bob}, nil)

	got, err := f.svc.Search(ctx, authOf(alice), " 50% ", 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, bob.UserID, got[0].UserID)
}

func TestSearch_EmptyQuery(t *testing.T) {
	f := newFixture()
	alice := newUser("alice@example.com")

	got, err := f.svc.Search(context.Background(), authOf(alice), "   ", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	f.users.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSuggestedAndRandom_DefaultSize(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := newUser("alice@example.com")

	f.users.On("CallPartners", ctx, alice.UserID, 9).Return([]*domain.User{}, nil)
	f.users.On("Random", ctx, alice.UserID, 9).Return([]*domain.User{newUser("c@example.com")}, nil)

	suggested, err := f.svc.Suggested(ctx, authOf(alice), 0)
	require.NoError(t, err)
	assert.Empty(t, suggested)

	random, err := f.svc.Random(ctx, authOf(alice), -1)
	require.NoError(t, err)
	assert.Len(t, random, 1)
}

func TestGetByID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice := newUser("alice@example.com")
	missing := uuid.New()

	_, err := f.svc.GetByID(ctx, authOf(alice), alice.UserID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

	f.users.On("GetByID", ctx, missing).Return(nil, domain.ErrNotFound)
	_, err = f.svc.GetByID(ctx, authOf(alice), missing)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUserNotFound))
}

func TestGetByEmail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	bob := newUser("bob@example.com")

	f.users.On("GetByEmail", ctx, "bob@example.com").Return(bob, nil)
	f.users.On("GetByEmail", ctx, "ghost@example.com").Return(nil, domain.ErrNotFound)

	got, err := f.svc.GetByEmail(ctx, " Bob@Example.com")
	require.NoError(t, err)
	assert.Equal(t, bob.UserID, got.UserID)

	_, err = f.svc.GetByEmail(ctx, "ghost@example.com")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUserNotFound))

	_, err = f.svc.GetByEmail(ctx, "not-an-email")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}
