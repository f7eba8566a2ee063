package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"talkbridge-backend/pkg/config"
	"talkbridge-backend/pkg/logger"
	"talkbridge-backend/pkg/resilience"
)

// MinioClient wraps the MinIO client with retry, timeout and a circuit breaker
type MinioClient struct {
	client  *minio.Client
	breaker *resilience.Breaker
}

// NewMinioClient creates a new MinIO client with resilience features
func NewMinioClient(cfg config.MinIOConfig) (*MinioClient, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinioClient{
		client:  minioClient,
		breaker: resilience.NewBreaker("minio", resilience.Options{FailureThreshold: 5}),
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet
func (c *MinioClient) EnsureBucket(ctx context.Context, bucketName string) error {
	exists, err := c.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	logger.Info("Created MinIO bucket", zap.String("bucket", bucketName))
	return nil
}

// PutObject uploads reader under objectName. The reader is rewound before every attempt.
func (c *MinioClient) PutObject(ctx context.Context, bucketName, objectName string, reader io.ReadSeeker, size int64, contentType string) error {
	return c.breaker.Execute(ctx, "put_object", func(ctx context.Context) error {
		if _, err := reader.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err := c.client.PutObject(ctx, bucketName, objectName, reader, size, minio.PutObjectOptions{
			ContentType: contentType,
		})
		return err
	})
}

// RemoveObject deletes objectName from the bucket
func (c *MinioClient) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	return c.breaker.Execute(ctx, "remove_object", func(ctx context.Context) error {
		return c.client.RemoveObject(ctx, bucketName, objectName, minio.RemoveObjectOptions{})
	})
}
