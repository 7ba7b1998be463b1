// Package test provides conformance tests for attachment storage backends.
package test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/piecework/piecework/attachment/storage"
	"github.com/piecework/piecework/model"
)

// TestMetadataStorage tests attachment metadata storage.
func TestMetadataStorage(t *testing.T, s storage.MetadataStorage) {
	ctx := context.Background()

	if _, err := s.RetrieveAttachment(ctx, "req-1", "a-1"); !errors.Is(err, storage.ErrAttachmentNotFound) {
		t.Fatalf("expected ErrAttachmentNotFound, have: %v", err)
	}
	if err := s.StoreAttachment(ctx, &model.Attachment{ID: "a-0"}); err == nil {
		t.Error("expected error storing attachment without request id")
	}

	now := time.Now().UTC()
	for i, a := range []*model.Attachment{
		{ID: "a-2", RequestID: "req-1", Name: "second.txt", UploadDate: now.Add(time.Second)},
		{ID: "a-1", RequestID: "req-1", Name: "first.txt", UploadDate: now},
		{ID: "a-3", RequestID: "req-2", Name: "other.txt", UploadDate: now},
	} {
		if err := s.StoreAttachment(ctx, a); err != nil {
			t.Fatalf("storing %d: %v", i, err)
		}
	}

	a, err := s.RetrieveAttachment(ctx, "req-1", "a-1")
	if err != nil {
		t.Fatal(err)
	}
	if want, have := "first.txt", a.Name; want != have {
		t.Errorf("name: want: %s, have: %s", want, have)
	}

	list, err := s.RetrieveAttachments(ctx, "req-1")
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 2, len(list); want != have {
		t.Fatalf("attachments: want: %d, have: %d", want, have)
	}
	if want, have := "a-1", list[0].ID; want != have {
		t.Errorf("order: want: %s, have: %s", want, have)
	}

	if err = s.DeleteAttachment(ctx, "req-1", "a-1"); err != nil {
		t.Fatal(err)
	}
	if err = s.DeleteAttachment(ctx, "req-1", "a-1"); !errors.Is(err, storage.ErrAttachmentNotFound) {
		t.Errorf("expected ErrAttachmentNotFound, have: %v", err)
	}
	list, err = s.RetrieveAttachments(ctx, "req-1")
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 1, len(list); want != have {
		t.Errorf("attachments: want: %d, have: %d", want, have)
	}
}

// TestContentStorage tests attachment content storage.
func TestContentStorage(t *testing.T, s storage.ContentStorage) {
	ctx := context.Background()

	if _, err := s.RetrieveContent(ctx, "req-1.missing"); !errors.Is(err, storage.ErrContentNotFound) {
		t.Fatalf("expected ErrContentNotFound, have: %v", err)
	}

	content := []byte("hello, world")
	if err := s.StoreContent(ctx, "req-1.a-1", bytes.NewReader(content), int64(len(content)), "text/plain"); err != nil {
		t.Fatal(err)
	}

	rc, err := s.RetrieveContent(ctx, "req-1.a-1")
	if err != nil {
		t.Fatal(err)
	}
	have, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(content, have) {
		t.Errorf("content: want: %q, have: %q", content, have)
	}

	if err = s.DeleteContent(ctx, "req-1.a-1"); err != nil {
		t.Fatal(err)
	}
	if _, err = s.RetrieveContent(ctx, "req-1.a-1"); !errors.Is(err, storage.ErrContentNotFound) {
		t.Errorf("expected ErrContentNotFound after delete, have: %v", err)
	}
}
