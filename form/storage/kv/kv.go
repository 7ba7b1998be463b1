// Package kv implements a form storage backend using JSON with key-value storage.
package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/piecework/piecework/form/storage"
	"github.com/piecework/piecework/model"
	"github.com/piecework/piecework/utils/kv"
)

const (
	keyPfxSubmission = "sub."
	keyPfxTerminal   = "term."
)

// KV is a form storage backend using JSON with key-value storage.
type KV struct {
	mu          sync.RWMutex
	requests    kv.Bucket
	submissions kv.Bucket
	validations kv.Bucket
}

// New creates a new key-value form storage backend.
func New(requests, submissions, validations kv.Bucket) *KV {
	return &KV{
		requests:    requests,
		submissions: submissions,
		validations: validations,
	}
}

// StoreRequest marshals r into JSON and stores it by its request ID.
func (s *KV) StoreRequest(ctx context.Context, r *model.FormRequest) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	found, err := s.requests.Has(ctx, r.RequestID)
	if err != nil {
		return fmt.Errorf("checking request %s: %w", r.RequestID, err)
	} else if found {
		return fmt.Errorf("%w: %s", storage.ErrRequestExists, r.RequestID)
	}
	return kv.SetJSON(ctx, s.requests, r.RequestID, r)
}

// RetrieveRequest unmarshals the JSON stored for requestID.
func (s *KV) RetrieveRequest(ctx context.Context, requestID string) (*model.FormRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := new(model.FormRequest)
	if err := kv.GetJSON(ctx, s.requests, requestID, r); errors.Is(err, kv.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrRequestNotFound, requestID)
	} else if err != nil {
		return nil, err
	}
	return r, nil
}

// StoreSubmission stores sub and indexes terminal (complete or reject) submissions by request ID.
func (s *KV) StoreSubmission(ctx context.Context, sub *model.Submission) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := kv.SetJSON(ctx, s.submissions, keyPfxSubmission+sub.ID, sub); err != nil {
		return err
	}
	if sub.Action.Terminal() {
		return s.submissions.Set(ctx, keyPfxTerminal+sub.RequestID, []byte(sub.ID))
	}
	return nil
}

// RetrieveSubmission unmarshals the JSON stored for id.
func (s *KV) RetrieveSubmission(ctx context.Context, id string) (*model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retrieveSubmission(ctx, id)
}

func (s *KV) retrieveSubmission(ctx context.Context, id string) (*model.Submission, error) {
	sub := new(model.Submission)
	if err := kv.GetJSON(ctx, s.submissions, keyPfxSubmission+id, sub); errors.Is(err, kv.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrSubmissionNotFound, id)
	} else if err != nil {
		return nil, err
	}
	return sub, nil
}

// RetrieveTerminalSubmission looks up the terminal submission index for requestID.
func (s *KV) RetrieveTerminalSubmission(ctx context.Context, requestID string) (*model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found, err := s.submissions.Has(ctx, keyPfxTerminal+requestID)
	if err != nil {
		return nil, err
	} else if !found {
		return nil, nil
	}
	id, err := s.submissions.Get(ctx, keyPfxTerminal+requestID)
	if err != nil {
		return nil, err
	}
	return s.retrieveSubmission(ctx, string(id))
}

// StoreValidation marshals v into JSON and stores it by its ID.
func (s *KV) StoreValidation(ctx context.Context, v *model.Validation) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return kv.SetJSON(ctx, s.validations, v.ID, v)
}

// RetrieveValidation unmarshals the JSON stored for id.
func (s *KV) RetrieveValidation(ctx context.Context, id string) (*model.Validation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := new(model.Validation)
	if err := kv.GetJSON(ctx, s.validations, id, v); errors.Is(err, kv.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrValidationNotFound, id)
	} else if err != nil {
		return nil, err
	}
	return v, nil
}
