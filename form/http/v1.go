package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/piecework/piecework/form/storage"
	"github.com/piecework/piecework/http/api"
	"github.com/piecework/piecework/log/logkeys"
	"github.com/piecework/piecework/model"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

var ErrNoID = errors.New("no id provided")

// RecordReader reads stored form records.
type RecordReader interface {
	RetrieveRequest(ctx context.Context, requestID string) (*model.FormRequest, error)
	RetrieveSubmission(ctx context.Context, id string) (*model.Submission, error)
	RetrieveValidation(ctx context.Context, id string) (*model.Validation, error)
}

func recordStatusCode(err error) int {
	switch {
	case errors.Is(err, storage.ErrRequestNotFound),
		errors.Is(err, storage.ErrSubmissionNotFound),
		errors.Is(err, storage.ErrValidationNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// recordHandler returns a handler that encodes the record retrieved by id as JSON.
func recordHandler[T any](name string, retrieve func(ctx context.Context, id string) (T, error), logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		id := flow.Param(r.Context(), "id")
		if id == "" {
			logger.Info(logkeys.Message, "id parameter", logkeys.Error, ErrNoID)
			api.JSONError(w, ErrNoID, http.StatusBadRequest)
			return
		}
		logger = logger.With("id", id)
		v, err := retrieve(r.Context(), id)
		if err != nil {
			logger.Info(logkeys.Message, "retrieving "+name, logkeys.Error, err)
			api.JSONError(w, err, recordStatusCode(err))
			return
		}
		if err = api.JSON(w, v, 0); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// GetRequestHandler returns an HTTP handler that fetches a form request.
func GetRequestHandler(store RecordReader, logger log.Logger) http.HandlerFunc {
	return recordHandler("request", store.RetrieveRequest, logger)
}

// GetSubmissionHandler returns an HTTP handler that fetches a submission.
// Restricted values are included.
func GetSubmissionHandler(store RecordReader, logger log.Logger) http.HandlerFunc {
	return recordHandler("submission", store.RetrieveSubmission, logger)
}

// GetValidationHandler returns an HTTP handler that fetches a validation.
func GetValidationHandler(store RecordReader, logger log.Logger) http.HandlerFunc {
	return recordHandler("validation", store.RetrieveValidation, logger)
}

// HandleAPIv1 registers the form record API handlers into mux.
// API endpoint paths are prepended with prefix.
// Authentication or any other layered handlers are not present.
// The logger is adorned with a "handler" key of the endpoint name.
func HandleAPIv1(prefix string, mux Mux, logger log.Logger, store RecordReader) {
	mux.Handle(
		prefix+"/request/:id",
		GetRequestHandler(store, logger.With("handler", "get request")),
		"GET",
	)
	mux.Handle(
		prefix+"/submission/:id",
		GetSubmissionHandler(store, logger.With("handler", "get submission")),
		"GET",
	)
	mux.Handle(
		prefix+"/validation/:id",
		GetValidationHandler(store, logger.With("handler", "get validation")),
		"GET",
	)
}
