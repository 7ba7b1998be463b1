// Package attachment manages files uploaded against form requests.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/piecework/piecework/attachment/storage"
	"github.com/piecework/piecework/log/logkeys"
	"github.com/piecework/piecework/model"
	"github.com/piecework/piecework/utils/uuid"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

var (
	ErrEmptyName      = errors.New("attachment name is empty")
	ErrTooManyUploads = errors.New("too many attachments")
)

// Upload is a file to attach.
type Upload struct {
	FieldName   string
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Service stores attachment metadata and content.
type Service struct {
	meta    storage.MetadataStorage
	content storage.ContentStorage
	logger  log.Logger
	ider    uuid.IDer
	now     func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithIDer sets the attachment ID generator.
func WithIDer(ider uuid.IDer) Option {
	return func(s *Service) {
		s.ider = ider
	}
}

// New creates a new attachment service.
func New(meta storage.MetadataStorage, content storage.ContentStorage, opts ...Option) *Service {
	s := &Service{
		meta:    meta,
		content: content,
		logger:  log.NopLogger,
		ider:    uuid.NewCompact(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func location(requestID, id string) string {
	return requestID + "." + id
}

// Attach stores u for the form request req.
// A max greater than zero limits the number of attachments of the request.
func (s *Service) Attach(ctx context.Context, req *model.FormRequest, user *model.User, u *Upload, max int) (*model.Attachment, error) {
	if u == nil || u.Name == "" {
		return nil, ErrEmptyName
	}
	if max > 0 {
		existing, err := s.meta.RetrieveAttachments(ctx, req.RequestID)
		if err != nil {
			return nil, fmt.Errorf("retrieving attachments: %w", err)
		}
		if len(existing) >= max {
			return nil, fmt.Errorf("%w: limit %d", ErrTooManyUploads, max)
		}
	}
	a := &model.Attachment{
		ID:                   s.ider.ID(),
		RequestID:            req.RequestID,
		ProcessDefinitionKey: req.ProcessDefinitionKey,
		FieldName:            u.FieldName,
		Name:                 u.Name,
		ContentType:          u.ContentType,
		Size:                 u.Size,
		Uploader:             user.UserID(),
		UploadDate:           s.now(),
	}
	a.Location = location(a.RequestID, a.ID)
	if a.ContentType == "" {
		a.ContentType = "application/octet-stream"
	}
	if err := s.content.StoreContent(ctx, a.Location, u.Content, u.Size, a.ContentType); err != nil {
		return nil, fmt.Errorf("storing content: %w", err)
	}
	if err := s.meta.StoreAttachment(ctx, a); err != nil {
		return nil, fmt.Errorf("storing attachment: %w", err)
	}
	ctxlog.Logger(ctx, s.logger).Debug(
		logkeys.Message, "stored attachment",
		logkeys.RequestID, a.RequestID,
		logkeys.AttachmentID, a.ID,
		"size", a.Size,
	)
	return a, nil
}

// Remove deletes the attachment id of requestID and its content.
func (s *Service) Remove(ctx context.Context, requestID, id string) error {
	a, err := s.meta.RetrieveAttachment(ctx, requestID, id)
	if err != nil {
		return err
	}
	if err = s.meta.DeleteAttachment(ctx, requestID, id); err != nil {
		return fmt.Errorf("deleting attachment: %w", err)
	}
	// copies share the content of the request that uploaded it
	if a.Location != location(requestID, id) {
		return nil
	}
	if err = s.content.DeleteContent(ctx, a.Location); err != nil {
		return fmt.Errorf("deleting content: %w", err)
	}
	ctxlog.Logger(ctx, s.logger).Debug(
		logkeys.Message, "removed attachment",
		logkeys.RequestID, requestID,
		logkeys.AttachmentID, id,
	)
	return nil
}

// List returns the attachments of requestID.
func (s *Service) List(ctx context.Context, requestID string) ([]*model.Attachment, error) {
	return s.meta.RetrieveAttachments(ctx, requestID)
}

// Copy attaches the attachments of fromRequestID to toRequestID.
// Content is shared by location and not duplicated.
func (s *Service) Copy(ctx context.Context, fromRequestID, toRequestID string) error {
	list, err := s.meta.RetrieveAttachments(ctx, fromRequestID)
	if err != nil {
		return err
	}
	for _, a := range list {
		c := *a
		c.RequestID = toRequestID
		if err = s.meta.StoreAttachment(ctx, &c); err != nil {
			return fmt.Errorf("copying attachment %s: %w", a.ID, err)
		}
	}
	return nil
}

// Open returns the attachment id of requestID and a reader of its content.
// The caller must close the reader.
func (s *Service) Open(ctx context.Context, requestID, id string) (*model.Attachment, io.ReadCloser, error) {
	a, err := s.meta.RetrieveAttachment(ctx, requestID, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.content.RetrieveContent(ctx, a.Location)
	if err != nil {
		return a, nil, err
	}
	return a, rc, nil
}
