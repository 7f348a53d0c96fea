package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"audiowave/config"
	"audiowave/core/backend"
	"audiowave/logger"
	"audiowave/model"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage serves remote tracks from an object store. Track URIs for
// remote sources use the form minio://<bucket>/<object>.
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage connects to the object store and ensures the default
// bucket exists.
func NewMinioStorage(cfg *config.Config) (*MinioStorage, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("[Storage] created bucket", logger.String("bucket", cfg.MinioBucket))
	}

	logger.Info("[Storage] minio connection established",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))
	return &MinioStorage{client: client, bucket: cfg.MinioBucket}, nil
}

// Open fetches a remote object as a seekable stream for the decoder.
func (s *MinioStorage) Open(ctx context.Context, track model.Track) (backend.ReadSeekCloser, error) {
	bucket, object, err := s.splitURI(track.URI)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open object %s/%s: %w", bucket, object, err)
	}
	// GetObject is lazy, so surface missing objects before the decoder does.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to stat object %s/%s: %w", bucket, object, err)
	}
	return obj, nil
}

// PresignedURL generates a temporary download URL for a remote track.
func (s *MinioStorage) PresignedURL(ctx context.Context, uri string, expiry time.Duration) (string, error) {
	bucket, object, err := s.splitURI(uri)
	if err != nil {
		return "", err
	}
	u, err := s.client.PresignedGetObject(ctx, bucket, object, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign object %s/%s: %w", bucket, object, err)
	}
	return u.String(), nil
}

func (s *MinioStorage) splitURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "minio://")
	if !ok {
		return "", "", fmt.Errorf("not a minio URI: %s", uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("malformed minio URI: %s", uri)
	}
	return bucket, object, nil
}
