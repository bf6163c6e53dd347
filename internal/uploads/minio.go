package uploads

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ciata/ciata-cms/internal/config"
)

// MinIOStorage stores uploads in an object-storage bucket.
type MinIOStorage struct {
	client *minio.Client
	bucket string
	public string
}

// NewMinIOStorage creates a MinIO-backed storage and ensures the bucket
// exists (idempotent).
func NewMinIOStorage(cfg config.UploadsConfig) (*MinIOStorage, error) {
	if cfg.MinIOEndpoint == "" {
		return nil, fmt.Errorf("minio endpoint missing")
	}
	mc, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	scheme := "http"
	if cfg.MinIOUseSSL {
		scheme = "https"
	}
	s := &MinIOStorage{
		client: mc,
		bucket: cfg.MinIOBucket,
		public: fmt.Sprintf("%s://%s/%s", scheme, cfg.MinIOEndpoint, cfg.MinIOBucket),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

func (s *MinIOStorage) Save(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	key := objectKey(filename)
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("minio put: %w", err)
	}
	return s.public + "/" + key, nil
}
