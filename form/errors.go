package form

import (
	"errors"
	"net/http"

	"github.com/piecework/piecework/model"
)

// StatusCodeError is an error with an HTTP status code.
type StatusCodeError interface {
	error
	StatusCode() int
}

func message(msg string, err error, fallback string) string {
	switch {
	case msg != "" && err != nil:
		return msg + ": " + err.Error()
	case msg != "":
		return msg
	case err != nil:
		return err.Error()
	}
	return fallback
}

// NotFoundError is returned for unknown requests, tasks, and validations.
type NotFoundError struct {
	Message string
	Err     error
}

func (e *NotFoundError) Error() string   { return message(e.Message, e.Err, "not found") }
func (e *NotFoundError) Unwrap() error   { return e.Err }
func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

// ForbiddenError is returned when a principal may not take an action.
type ForbiddenError struct {
	Message string
	Err     error
}

func (e *ForbiddenError) Error() string   { return message(e.Message, e.Err, "forbidden") }
func (e *ForbiddenError) Unwrap() error   { return e.Err }
func (e *ForbiddenError) StatusCode() int { return http.StatusForbidden }

// BadRequestError is returned for invalid submissions.
// Validation carries the field messages when the submission failed validation.
type BadRequestError struct {
	Message    string
	Validation *model.Validation
}

func (e *BadRequestError) Error() string   { return message(e.Message, nil, "invalid submission") }
func (e *BadRequestError) StatusCode() int { return http.StatusBadRequest }

// ConflictError is returned when a request was already superseded.
type ConflictError struct {
	Message string
	Err     error
}

func (e *ConflictError) Error() string   { return message(e.Message, e.Err, "conflict") }
func (e *ConflictError) Unwrap() error   { return e.Err }
func (e *ConflictError) StatusCode() int { return http.StatusConflict }

// InternalServerError is returned for storage failures and misconfigured processes.
type InternalServerError struct {
	Message string
	Err     error
}

func (e *InternalServerError) Error() string   { return message(e.Message, e.Err, "internal server error") }
func (e *InternalServerError) Unwrap() error   { return e.Err }
func (e *InternalServerError) StatusCode() int { return http.StatusInternalServerError }

// GoneError is returned when the process was deleted.
type GoneError struct {
	Message string
	Err     error
}

func (e *GoneError) Error() string   { return message(e.Message, e.Err, "gone") }
func (e *GoneError) Unwrap() error   { return e.Err }
func (e *GoneError) StatusCode() int { return http.StatusGone }

// StatusCode returns the status code of err.
// Errors without a status code are 500 Internal Server Error.
func StatusCode(err error) int {
	var sce StatusCodeError
	if errors.As(err, &sce) {
		return sce.StatusCode()
	}
	return http.StatusInternalServerError
}

// ValidationOf returns the validation carried by a BadRequestError in err.
func ValidationOf(err error) *model.Validation {
	var bre *BadRequestError
	if errors.As(err, &bre) {
		return bre.Validation
	}
	return nil
}
