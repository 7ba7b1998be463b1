// Package minio implements attachment content storage in a MinIO (S3) bucket.
package minio

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/piecework/piecework/attachment/storage"
)

// Config connects to a MinIO server.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIO stores attachment content as objects in a bucket.
type MinIO struct {
	client *minio.Client
	bucket string
}

// New creates a new MinIO content store.
// The bucket is created if it does not exist.
func New(ctx context.Context, cfg Config) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("making bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinIO{client: client, bucket: cfg.Bucket}, nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// StoreContent implements the storage interface method.
func (m *MinIO) StoreContent(ctx context.Context, location string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, location, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// RetrieveContent implements the storage interface method.
func (m *MinIO) RetrieveContent(ctx context.Context, location string) (io.ReadCloser, error) {
	object, err := m.client.GetObject(ctx, m.bucket, location, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	// errors from GetObject only surface on first access
	if _, err = object.Stat(); isNotFound(err) {
		object.Close()
		return nil, fmt.Errorf("%w: %s", storage.ErrContentNotFound, location)
	} else if err != nil {
		object.Close()
		return nil, fmt.Errorf("stat object: %w", err)
	}
	return object, nil
}

// DeleteContent implements the storage interface method.
func (m *MinIO) DeleteContent(ctx context.Context, location string) error {
	err := m.client.RemoveObject(ctx, m.bucket, location, minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

var _ storage.ContentStorage = (*MinIO)(nil)
