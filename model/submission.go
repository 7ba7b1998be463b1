package model

import (
	"errors"
	"time"
)

var (
	ErrEmptySubmission     = errors.New("empty submission")
	ErrMissingSubmissionID = errors.New("missing submission id")
)

// Submission is user-supplied data for a form request.
// Restricted (sensitive) values are kept apart from regular values and are
// never echoed back into rendered forms.
type Submission struct {
	ID                   string              `json:"id"`
	RequestID            string              `json:"request_id"`
	ProcessDefinitionKey string              `json:"process_definition_key"`
	ProcessInstanceID    string              `json:"process_instance_id,omitempty"`
	TaskID               string              `json:"task_id,omitempty"`
	Action               ActionType          `json:"action"`
	Submitter            string              `json:"submitter,omitempty"`
	Anonymous            bool                `json:"anonymous,omitempty"`
	SubmissionDate       time.Time           `json:"submission_date"`
	Data                 map[string][]string `json:"data,omitempty"`
	RestrictedData       map[string][]string `json:"restricted_data,omitempty"`
	Attachments          []*Attachment       `json:"attachments,omitempty"`
}

// Validate checks s for missing values.
// A submission always references exactly one form request.
func (s *Submission) Validate() error {
	if s == nil {
		return ErrEmptySubmission
	}
	if s.ID == "" {
		return ErrMissingSubmissionID
	}
	if s.RequestID == "" {
		return ErrMissingRequestID
	}
	return nil
}

// Value returns the first regular or restricted value for name.
func (s *Submission) Value(name string) string {
	if s == nil {
		return ""
	}
	if v := s.Data[name]; len(v) > 0 {
		return v[0]
	}
	if v := s.RestrictedData[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Values returns every submitted value, regular and restricted, by field name.
func (s *Submission) Values() map[string][]string {
	r := make(map[string][]string)
	if s == nil {
		return r
	}
	for k, v := range s.Data {
		r[k] = v
	}
	for k, v := range s.RestrictedData {
		r[k] = v
	}
	return r
}

// Attachment is a file uploaded against a form request.
type Attachment struct {
	ID                   string    `json:"id"`
	RequestID            string    `json:"request_id"`
	ProcessDefinitionKey string    `json:"process_definition_key"`
	FieldName            string    `json:"field_name,omitempty"`
	Name                 string    `json:"name"`
	ContentType          string    `json:"content_type,omitempty"`
	Size                 int64     `json:"size"`
	Location             string    `json:"location,omitempty"`
	Uploader             string    `json:"uploader,omitempty"`
	UploadDate           time.Time `json:"upload_date"`
}
