package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"talkbridge-backend/internal/domain"
	"talkbridge-backend/pkg/logger"
)

// ObjectStore is the subset of object storage used for profile images
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.ReadSeeker, size int64, contentType string) error
	RemoveObject(ctx context.Context, bucketName, objectName string) error
}

// Extensions by accepted profile image content type
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// IsSupportedImage reports whether contentType can be stored as a profile image
func IsSupportedImage(contentType string) bool {
	_, ok := imageExtensions[normalizeContentType(contentType)]
	return ok
}

func normalizeContentType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// Service stores profile images
type Service struct {
	store      ObjectStore
	bucketName string
	publicURL  string
}

// NewService creates a new storage service. publicURL is the externally reachable MinIO base.
func NewService(store ObjectStore, bucketName, publicURL string) *Service {
	return &Service{
		store:      store,
		bucketName: bucketName,
		publicURL:  strings.TrimRight(publicURL, "/"),
	}
}

// UploadProfileImage stores a new image for userID and returns its reference
func (s *Service) UploadProfileImage(ctx context.Context, userID uuid.UUID, reader io.ReadSeeker, size int64, contentType string) (*domain.ProfileImage, error) {
	contentType = normalizeContentType(contentType)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}

	objectKey := fmt.Sprintf("profiles/%s/%s%s", userID, uuid.New(), ext)
	if err := s.store.PutObject(ctx, s.bucketName, objectKey, reader, size, contentType); err != nil {
		return nil, fmt.Errorf("failed to upload profile image: %w", err)
	}

	return &domain.ProfileImage{
		PublicID: objectKey,
		URL:      s.objectURL(objectKey),
	}, nil
}

// DeleteProfileImage removes a previous image. Failures are logged only.
func (s *Service) DeleteProfileImage(ctx context.Context, image *domain.ProfileImage) {
	if image == nil || image.PublicID == "" {
		return
	}
	if err := s.store.RemoveObject(ctx, s.bucketName, image.PublicID); err != nil {
		logger.FromContext(ctx).Warn("Failed to delete old profile image",
			zap.String("object", image.PublicID),
			zap.Error(err))
	}
}

func (s *Service) objectURL(objectKey string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucketName, objectKey)
}
