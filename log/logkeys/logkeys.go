// Package logkeys defines some static logging keys for consistent structured logging output.
// Mostly exists as a mental aid when drafting log messages.
package logkeys

const (
	Message = "msg"
	Error   = "err"

	// the principal (user ID) acting on a form. empty for anonymous.
	Principal = "principal"
	Anonymous = "anonymous"

	RequestID         = "request_id"
	PreviousRequestID = "previous_request_id"
	ProcessKey        = "process_key"
	DeploymentID      = "deployment_id"
	ActivityKey       = "activity_key"
	InstanceID        = "instance_id"
	TaskID            = "task_id"
	SubmissionID      = "submission_id"
	ValidationID      = "validation_id"
	AttachmentID      = "attachment_id"
	Action            = "action"
	Disposition       = "disposition"
	StatusCode        = "status_code"

	// severity of an access alarm
	Alarm = "alarm"

	// a context-dependent numerical count/length of something
	GenericCount = "count"
)
