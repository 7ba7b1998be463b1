package model

import "errors"

var (
	ErrEmptyValidation     = errors.New("empty validation")
	ErrMissingValidationID = errors.New("missing validation id")
)

// MessageType is the severity of a validation message.
type MessageType string

const (
	MessageError   MessageType = "error"
	MessageWarning MessageType = "warning"
)

// Message is a field-level validation message.
type Message struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// Validation is the computed result of validating a submission.
// It is stored so a later request can re-render the same validation state.
type Validation struct {
	ID                   string               `json:"id"`
	SubmissionID         string               `json:"submission_id"`
	RequestID            string               `json:"request_id"`
	ProcessDefinitionKey string               `json:"process_definition_key"`
	TaskID               string               `json:"task_id,omitempty"`
	ActivityKey          string               `json:"activity_key,omitempty"`
	Action               ActionType           `json:"action,omitempty"`
	Results              map[string][]Message `json:"results,omitempty"`

	// Data are the regular (non-restricted) submitted values.
	Data map[string][]string `json:"data,omitempty"`
}

// Validate checks v for missing values.
// A validation always references exactly one submission.
func (v *Validation) Validate() error {
	if v == nil {
		return ErrEmptyValidation
	}
	if v.ID == "" {
		return ErrMissingValidationID
	}
	if v.SubmissionID == "" {
		return ErrMissingSubmissionID
	}
	return nil
}

// Valid reports whether v contains no error messages.
func (v *Validation) Valid() bool {
	if v == nil {
		return true
	}
	for _, msgs := range v.Results {
		for _, m := range msgs {
			if m.Type == MessageError {
				return false
			}
		}
	}
	return true
}

// Add appends a message for field name.
func (v *Validation) Add(name string, t MessageType, text string) {
	if v.Results == nil {
		v.Results = make(map[string][]Message)
	}
	v.Results[name] = append(v.Results[name], Message{Type: t, Text: text})
}
