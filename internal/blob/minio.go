package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/zoft-projects/OBbackend-sub002/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	signedURLExpiry   = 15 * time.Minute
	partUploadExpiry  = 30 * time.Minute
	maxMultipartParts = 1000
)

type MinioStore struct {
	core   *minio.Core
	bucket string
}

func NewMinioStore(cfg *config.Config) (BlobStore, error) {
	core, err := minio.NewCore(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStore{core: core, bucket: cfg.MinioBucket}, nil
}

// EnsureBucket creates the attachment bucket if it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.core.Client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.core.Client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
}

func (s *MinioStore) PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.core.Client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (s *MinioStore) GetSignedURL(ctx context.Context, key string) (string, error) {
	u, err := s.core.Client.PresignedGetObject(ctx, s.bucket, key, signedURLExpiry, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (s *MinioStore) InitiateMultipartUpload(ctx context.Context, key string, partCount int) (*MultipartUpload, error) {
	if partCount < 1 || partCount > maxMultipartParts {
		return nil, fmt.Errorf("part count %d out of range", partCount)
	}

	uploadID, err := s.core.NewMultipartUpload(ctx, s.bucket, key, minio.PutObjectOptions{})
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, partCount)
	for part := 1; part <= partCount; part++ {
		params := url.Values{}
		params.Set("uploadId", uploadID)
		params.Set("partNumber", fmt.Sprintf("%d", part))
		u, err := s.core.Client.Presign(ctx, "PUT", s.bucket, key, partUploadExpiry, params)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u.String())
	}

	return &MultipartUpload{UploadID: uploadID, Key: key, PartUploadURL: urls}, nil
}

func (s *MinioStore) CompleteMultipartUpload(ctx context.Context, uploadID, key string, parts []CompletedPart) (string, error) {
	completed := make([]minio.CompletePart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, minio.CompletePart{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	if _, err := s.core.CompleteMultipartUpload(ctx, s.bucket, key, uploadID, completed, minio.PutObjectOptions{}); err != nil {
		return "", err
	}

	return s.GetSignedURL(ctx, key)
}
