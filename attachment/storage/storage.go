// Package storage defines interfaces for attachment metadata and content storage.
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/piecework/piecework/model"
)

var (
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrContentNotFound    = errors.New("attachment content not found")
)

// MetadataStorage stores attachment metadata by form request.
type MetadataStorage interface {
	StoreAttachment(ctx context.Context, a *model.Attachment) error

	// RetrieveAttachment returns ErrAttachmentNotFound if requestID has no attachment id.
	RetrieveAttachment(ctx context.Context, requestID, id string) (*model.Attachment, error)

	// RetrieveAttachments returns the attachments of requestID ordered by upload date.
	RetrieveAttachments(ctx context.Context, requestID string) ([]*model.Attachment, error)

	// DeleteAttachment returns ErrAttachmentNotFound if requestID has no attachment id.
	DeleteAttachment(ctx context.Context, requestID, id string) error
}

// ContentStorage stores attachment bytes by location.
type ContentStorage interface {
	StoreContent(ctx context.Context, location string, r io.Reader, size int64, contentType string) error

	// RetrieveContent returns ErrContentNotFound for unknown locations.
	RetrieveContent(ctx context.Context, location string) (io.ReadCloser, error)

	DeleteContent(ctx context.Context, location string) error
}
