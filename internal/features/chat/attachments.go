package chat

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/zoft-projects/OBbackend-sub002/internal/blob"
	"github.com/zoft-projects/OBbackend-sub002/pkg/apperrors"

	"github.com/google/uuid"
)

// AttachmentService handles group images and message attachments. Objects
// are keyed under the group so a hard group delete can locate its blobs.
type AttachmentService interface {
	UploadGroupImage(ctx context.Context, groupID string, r io.Reader, size int64, contentType string) (*GroupImage, error)
	AttachmentURL(ctx context.Context, groupID, attachmentID string) (string, error)
	StartAttachmentUpload(ctx context.Context, groupID, fileName string, partCount int) (*blob.MultipartUpload, error)
	FinishAttachmentUpload(ctx context.Context, groupID, uploadID, key string, parts []blob.CompletedPart) (string, error)
}

type AttachmentServiceImpl struct {
	store  ChatGroupStore
	blobs  blob.BlobStore
	bucket string
}

func NewAttachmentService(store ChatGroupStore, blobs blob.BlobStore, bucket string) AttachmentService {
	return &AttachmentServiceImpl{store: store, blobs: blobs, bucket: bucket}
}

func (s *AttachmentServiceImpl) UploadGroupImage(ctx context.Context, groupID string, r io.Reader, size int64, contentType string) (*GroupImage, error) {
	group, err := s.store.FindGroupByID(ctx, groupID, "")
	if err != nil {
		return nil, err
	}
	if !group.AccessControl.AttachmentsAllowed {
		return nil, apperrors.InvalidArg("attachments are disabled for this group")
	}

	key := path.Join("chat-groups", groupID, "image")
	if err := s.blobs.PutObject(ctx, key, r, size, contentType); err != nil {
		return nil, err
	}

	image := &GroupImage{Bucket: s.bucket, URI: key}
	if _, err := s.store.UpsertGroup(ctx, &GroupPatch{GroupID: groupID, Image: image}); err != nil {
		return nil, err
	}
	return image, nil
}

func (s *AttachmentServiceImpl) AttachmentURL(ctx context.Context, groupID, attachmentID string) (string, error) {
	key := path.Join("chat-groups", groupID, "attachments", attachmentID)
	return s.blobs.GetSignedURL(ctx, key)
}

func (s *AttachmentServiceImpl) StartAttachmentUpload(ctx context.Context, groupID, fileName string, partCount int) (*blob.MultipartUpload, error) {
	group, err := s.store.FindGroupByID(ctx, groupID, "")
	if err != nil {
		return nil, err
	}
	if !group.AccessControl.AttachmentsAllowed {
		return nil, apperrors.InvalidArg("attachments are disabled for this group")
	}
	if partCount < 1 {
		return nil, apperrors.InvalidArg("part count must be at least 1")
	}

	key := path.Join("chat-groups", groupID, "attachments",
		fmt.Sprintf("%s-%s", uuid.NewString(), path.Base(fileName)))
	return s.blobs.InitiateMultipartUpload(ctx, key, partCount)
}

func (s *AttachmentServiceImpl) FinishAttachmentUpload(ctx context.Context, groupID, uploadID, key string, parts []blob.CompletedPart) (string, error) {
	if len(parts) == 0 {
		return "", apperrors.InvalidArg("no completed parts supplied")
	}
	return s.blobs.CompleteMultipartUpload(ctx, uploadID, key, parts)
}
