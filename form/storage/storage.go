// Package storage defines interfaces for form request, submission, and validation storage backends.
package storage

import (
	"context"
	"errors"

	"github.com/piecework/piecework/model"
)

var (
	ErrRequestNotFound    = errors.New("form request not found")
	ErrRequestExists      = errors.New("form request already exists")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrValidationNotFound = errors.New("validation not found")
)

// RequestStorage creates and reads form requests.
// Requests are immutable: implementations must refuse to overwrite an
// existing request ID with ErrRequestExists.
type RequestStorage interface {
	StoreRequest(ctx context.Context, r *model.FormRequest) error

	// RetrieveRequest returns ErrRequestNotFound if requestID does not exist.
	RetrieveRequest(ctx context.Context, requestID string) (*model.FormRequest, error)
}

// SubmissionStorage stores user submissions.
type SubmissionStorage interface {
	StoreSubmission(ctx context.Context, s *model.Submission) error

	// RetrieveSubmission returns ErrSubmissionNotFound if id does not exist.
	RetrieveSubmission(ctx context.Context, id string) (*model.Submission, error)

	// RetrieveTerminalSubmission returns the complete or reject submission made
	// against requestID. A nil submission and nil error are returned when the
	// request has not yet been completed or rejected.
	RetrieveTerminalSubmission(ctx context.Context, requestID string) (*model.Submission, error)
}

// ValidationStorage stores validation results so they can be re-rendered.
type ValidationStorage interface {
	StoreValidation(ctx context.Context, v *model.Validation) error

	// RetrieveValidation returns ErrValidationNotFound if id does not exist.
	RetrieveValidation(ctx context.Context, id string) (*model.Validation, error)
}

// Storage is the primary interface for form storage backends.
type Storage interface {
	RequestStorage
	SubmissionStorage
	ValidationStorage
}
