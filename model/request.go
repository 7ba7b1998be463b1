package model

import (
	"errors"
	"time"
)

var (
	ErrEmptyRequest     = errors.New("empty form request")
	ErrMissingRequestID = errors.New("missing request id")
)

// FormRequest identifies one pending form transaction.
// A request is never changed after it is stored. Progress is made by
// issuing a new request that points back at its predecessor.
type FormRequest struct {
	RequestID            string       `json:"request_id"`
	ProcessDefinitionKey string       `json:"process_definition_key"`
	DeploymentID         string       `json:"deployment_id,omitempty"`
	ActivityKey          string       `json:"activity_key,omitempty"`
	ProcessInstanceID    string       `json:"process_instance_id,omitempty"`
	TaskID               string       `json:"task_id,omitempty"`
	Action               ActionType   `json:"action,omitempty"`
	Principal            string       `json:"principal,omitempty"`
	Anonymous            bool         `json:"anonymous,omitempty"`
	ValidationID         string       `json:"validation_id,omitempty"`
	PreviousRequestID    string       `json:"previous_request_id,omitempty"`
	Explanation          *Explanation `json:"explanation,omitempty"`
	RemoteAddr           string       `json:"remote_addr,omitempty"`
	RemoteHost           string       `json:"remote_host,omitempty"`
	UserAgent            string       `json:"user_agent,omitempty"`
	Referrer             string       `json:"referrer,omitempty"`
	RequestDate          time.Time    `json:"request_date"`
}

// Validate checks r for missing values.
func (r *FormRequest) Validate() error {
	if r == nil {
		return ErrEmptyRequest
	}
	if r.RequestID == "" {
		return ErrMissingRequestID
	}
	if r.ProcessDefinitionKey == "" {
		return ErrMissingProcessKey
	}
	return nil
}

// RequestDetails is client metadata captured from the HTTP request.
type RequestDetails struct {
	RemoteAddr string
	RemoteHost string
	UserAgent  string
	Referrer   string
}

// Explanation is a user-facing description of a failure.
type Explanation struct {
	Message       string `json:"message"`
	MessageDetail string `json:"message_detail,omitempty"`
}
