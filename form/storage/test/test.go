// Package test provides a conformance test for form storage backends.
package test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/piecework/piecework/form/storage"
	"github.com/piecework/piecework/model"
)

// TestFormStorage runs the form storage tests against a new backend.
func TestFormStorage(t *testing.T, newStorage func() (storage.Storage, error)) {
	s, err := newStorage()
	if err != nil {
		t.Fatal(err)
	}

	t.Run("requests", func(t *testing.T) {
		testRequests(t, s)
	})

	t.Run("submissions", func(t *testing.T) {
		testSubmissions(t, s)
	})

	t.Run("validations", func(t *testing.T) {
		testValidations(t, s)
	})
}

func testRequests(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	_, err := s.RetrieveRequest(ctx, "nope")
	if !errors.Is(err, storage.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, have: %v", err)
	}

	if err = s.StoreRequest(ctx, &model.FormRequest{}); err == nil {
		t.Error("expected error storing invalid request")
	}

	r := &model.FormRequest{
		RequestID:            "aaa111",
		ProcessDefinitionKey: "demo",
		ActivityKey:          "start",
		Action:               model.ActionCreate,
		Anonymous:            true,
		Explanation:          &model.Explanation{Message: "hello"},
		RemoteAddr:           "127.0.0.1",
		RequestDate:          time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err = s.StoreRequest(ctx, r); err != nil {
		t.Fatal(err)
	}

	r2, err := s.RetrieveRequest(ctx, r.RequestID)
	if err != nil {
		t.Fatal(err)
	}
	if !r.RequestDate.Equal(r2.RequestDate) {
		t.Errorf("request date: want: %v, have: %v", r.RequestDate, r2.RequestDate)
	}
	r2.RequestDate = r.RequestDate
	if !reflect.DeepEqual(r, r2) {
		t.Errorf("request not equal: want: %+v, have: %+v", r, r2)
	}

	// requests are immutable
	r3 := *r
	r3.Action = model.ActionComplete
	if err = s.StoreRequest(ctx, &r3); !errors.Is(err, storage.ErrRequestExists) {
		t.Errorf("expected ErrRequestExists, have: %v", err)
	}
}

func testSubmissions(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	_, err := s.RetrieveSubmission(ctx, "nope")
	if !errors.Is(err, storage.ErrSubmissionNotFound) {
		t.Fatalf("expected ErrSubmissionNotFound, have: %v", err)
	}

	sub := &model.Submission{
		ID:                   "sub1",
		RequestID:            "req1",
		ProcessDefinitionKey: "demo",
		Action:               model.ActionAttach,
		Data:                 map[string][]string{"name": {"Ada"}},
		RestrictedData:       map[string][]string{"ssn": {"123"}},
		Attachments:          []*model.Attachment{{ID: "att1", Name: "a.txt", Size: 3}},
	}
	if err = s.StoreSubmission(ctx, sub); err != nil {
		t.Fatal(err)
	}

	sub2, err := s.RetrieveSubmission(ctx, "sub1")
	if err != nil {
		t.Fatal(err)
	}
	sub2.SubmissionDate = sub.SubmissionDate
	sub2.Attachments[0].UploadDate = sub.Attachments[0].UploadDate
	if !reflect.DeepEqual(sub, sub2) {
		t.Errorf("submission not equal: want: %+v, have: %+v", sub, sub2)
	}

	// a non-terminal submission does not complete the request
	term, err := s.RetrieveTerminalSubmission(ctx, "req1")
	if err != nil {
		t.Fatal(err)
	}
	if term != nil {
		t.Error("expected no terminal submission")
	}

	sub.ID = "sub2"
	sub.Action = model.ActionComplete
	if err = s.StoreSubmission(ctx, sub); err != nil {
		t.Fatal(err)
	}

	term, err = s.RetrieveTerminalSubmission(ctx, "req1")
	if err != nil {
		t.Fatal(err)
	}
	if term == nil {
		t.Fatal("expected terminal submission")
	}
	if want, have := "sub2", term.ID; want != have {
		t.Errorf("want: %s, have: %s", want, have)
	}
}

func testValidations(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	_, err := s.RetrieveValidation(ctx, "nope")
	if !errors.Is(err, storage.ErrValidationNotFound) {
		t.Fatalf("expected ErrValidationNotFound, have: %v", err)
	}

	if err = s.StoreValidation(ctx, &model.Validation{ID: "v0"}); !errors.Is(err, model.ErrMissingSubmissionID) {
		t.Errorf("expected ErrMissingSubmissionID, have: %v", err)
	}

	v := &model.Validation{
		ID:                   "v1",
		SubmissionID:         "sub1",
		RequestID:            "req1",
		ProcessDefinitionKey: "demo",
		Action:               model.ActionComplete,
		Data:                 map[string][]string{"name": {""}},
	}
	v.Add("name", model.MessageError, "Field is required")
	if err = s.StoreValidation(ctx, v); err != nil {
		t.Fatal(err)
	}

	v2, err := s.RetrieveValidation(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v, v2) {
		t.Errorf("validation not equal: want: %+v, have: %+v", v, v2)
	}
	if v2.Valid() {
		t.Error("expected invalid validation")
	}
}
