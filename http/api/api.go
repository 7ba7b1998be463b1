// Package api writes JSON API responses and errors.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// StatusCoder is an error that knows its HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// StatusCode returns the HTTP status code carried by err, if any.
// Zero is returned for errors that do not carry a status code.
func StatusCode(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

// JSONError encodes err as JSON to w.
// A statusCode less than one uses the status code carried by err
// and falls back to 500 Internal Server Error.
func JSONError(w http.ResponseWriter, err error, statusCode int) {
	jsonErr := &struct {
		Err string `json:"error"`
	}{Err: err.Error()}
	writeError(w, statusCode, err, jsonErr)
}

// JSONErrorDetail is like JSONError but includes detail in the body.
// Used for e.g. returning field-level validation messages.
func JSONErrorDetail(w http.ResponseWriter, err error, statusCode int, detail interface{}) {
	jsonErr := &struct {
		Err    string      `json:"error"`
		Detail interface{} `json:"detail,omitempty"`
	}{Err: err.Error(), Detail: detail}
	writeError(w, statusCode, err, jsonErr)
}

func writeError(w http.ResponseWriter, statusCode int, err error, body interface{}) {
	if statusCode < 1 {
		statusCode = StatusCode(err)
	}
	if statusCode < 1 {
		statusCode = http.StatusInternalServerError
	}
	w.Header().Set("Content-type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// JSON encodes v as JSON to w with statusCode.
func JSON(w http.ResponseWriter, v interface{}, statusCode int) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode > 0 {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(v)
}
