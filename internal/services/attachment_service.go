package services

import (
	"context"
	"fmt"
	"path"
	"strings"

	shopdesk_errors "shopdesk-realtime/pkg/errors"

	"github.com/google/uuid"
)

const maxAttachmentBytes = 25 << 20

// Presigner is implemented by storage.Client.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, sizeBytes int64) (string, map[string]string, error)
}

type AttachmentService struct {
	presigner Presigner
}

// NewAttachmentService accepts a nil presigner; uploads then report
// ErrUnavailable.
func NewAttachmentService(presigner Presigner) *AttachmentService {
	return &AttachmentService{presigner: presigner}
}

type PresignInput struct {
	UploaderID  uuid.UUID
	FileName    string
	ContentType string
	FileSize    int64
}

type PresignResult struct {
	UploadURL string
	ObjectKey string
	Headers   map[string]string
}

// Presign returns an upload URL. The object key is what the client later
// sends as an attachment's file path.
func (s *AttachmentService) Presign(ctx context.Context, in PresignInput) (PresignResult, error) {
	if s.presigner == nil {
		return PresignResult{}, shopdesk_errors.ErrUnavailable
	}
	if in.UploaderID == uuid.Nil || in.FileName == "" || in.ContentType == "" {
		return PresignResult{}, shopdesk_errors.ErrInvalidInput
	}
	if in.FileSize <= 0 || in.FileSize > maxAttachmentBytes {
		return PresignResult{}, shopdesk_errors.ErrInvalidInput
	}

	key := objectKey(in.UploaderID, in.FileName)
	url, headers, err := s.presigner.PresignPut(ctx, key, in.ContentType, in.FileSize)
	if err != nil {
		return PresignResult{}, fmt.Errorf("presign %s: %w", key, err)
	}
	return PresignResult{UploadURL: url, ObjectKey: key, Headers: headers}, nil
}

func objectKey(uploaderID uuid.UUID, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return fmt.Sprintf("attachments/%s/%s%s", uploaderID, uuid.NewString(), ext)
}
