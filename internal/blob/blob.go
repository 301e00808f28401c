package blob

import (
	"context"
	"io"
)

type MultipartUpload struct {
	UploadID      string   `json:"upload_id"`
	Key           string   `json:"key"`
	PartUploadURL []string `json:"part_upload_urls"`
}

type CompletedPart struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag"`
}

// BlobStore abstracts the object storage used for group images and message
// attachments.
type BlobStore interface {
	PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	GetSignedURL(ctx context.Context, key string) (string, error)
	InitiateMultipartUpload(ctx context.Context, key string, partCount int) (*MultipartUpload, error)
	CompleteMultipartUpload(ctx context.Context, uploadID, key string, parts []CompletedPart) (string, error)
}
