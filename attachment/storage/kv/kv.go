// Package kv implements attachment metadata and content storage using key-value storage.
package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/piecework/piecework/attachment/storage"
	"github.com/piecework/piecework/model"
	"github.com/piecework/piecework/utils/kv"
)

// KV stores attachment metadata as JSON in a key-value bucket.
type KV struct {
	mu sync.RWMutex
	b  kv.TraversingBucket
}

func New(b kv.TraversingBucket) *KV {
	return &KV{b: b}
}

func key(requestID, id string) string {
	return requestID + "." + id
}

// StoreAttachment implements the storage interface method.
func (s *KV) StoreAttachment(ctx context.Context, a *model.Attachment) error {
	if a == nil || a.ID == "" || a.RequestID == "" {
		return errors.New("attachment missing id or request id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return kv.SetJSON(ctx, s.b, key(a.RequestID, a.ID), a)
}

func (s *KV) retrieveAttachment(ctx context.Context, k string) (*model.Attachment, error) {
	a := new(model.Attachment)
	if err := kv.GetJSON(ctx, s.b, k, a); errors.Is(err, kv.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrAttachmentNotFound, k)
	} else if err != nil {
		return nil, err
	}
	return a, nil
}

// RetrieveAttachment implements the storage interface method.
func (s *KV) RetrieveAttachment(ctx context.Context, requestID, id string) (*model.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retrieveAttachment(ctx, key(requestID, id))
}

// RetrieveAttachments implements the storage interface method.
func (s *KV) RetrieveAttachments(ctx context.Context, requestID string) ([]*model.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ret []*model.Attachment
	for _, id := range kv.KeysPrefix(ctx, s.b, requestID+".") {
		a, err := s.retrieveAttachment(ctx, key(requestID, id))
		if err != nil {
			return nil, err
		}
		ret = append(ret, a)
	}
	sort.SliceStable(ret, func(i, j int) bool {
		if ret[i].UploadDate.Equal(ret[j].UploadDate) {
			return ret[i].ID < ret[j].ID
		}
		return ret[i].UploadDate.Before(ret[j].UploadDate)
	})
	return ret, nil
}

// DeleteAttachment implements the storage interface method.
func (s *KV) DeleteAttachment(ctx context.Context, requestID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(requestID, id)
	if ok, err := s.b.Has(ctx, k); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", storage.ErrAttachmentNotFound, k)
	}
	return s.b.Delete(ctx, k)
}

// Content stores attachment bytes in a key-value bucket.
type Content struct {
	b kv.Bucket
}

func NewContent(b kv.Bucket) *Content {
	return &Content{b: b}
}

// StoreContent implements the storage interface method.
// The whole content is buffered in memory.
func (c *Content) StoreContent(ctx context.Context, location string, r io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading content: %w", err)
	}
	return c.b.Set(ctx, location, b)
}

// RetrieveContent implements the storage interface method.
func (c *Content) RetrieveContent(ctx context.Context, location string) (io.ReadCloser, error) {
	b, err := c.b.Get(ctx, location)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrContentNotFound, location)
	} else if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

// DeleteContent implements the storage interface method.
func (c *Content) DeleteContent(ctx context.Context, location string) error {
	return c.b.Delete(ctx, location)
}
