// Package form resolves form requests into forms and orchestrates the
// validation and submission of form data.
//
// Every form transaction is a stored FormRequest. Requests are never
// changed: submitting a request either re-renders it (validate, attach,
// remove), or issues a next request that replaces it (complete, reject,
// subcreate). Failed submissions are recovered into a new create request
// that carries the validation or an explanation.
package form

import (
	"context"
	"io"

	"github.com/piecework/piecework/attachment"
	enginestorage "github.com/piecework/piecework/engine/storage"
	"github.com/piecework/piecework/model"
)

// AlarmUrgent is the severity of alarms raised for anonymous misuse.
const AlarmUrgent = "urgent"

// ProcessDeploymentProvider resolves processes and their deployments.
type ProcessDeploymentProvider interface {
	Process(ctx context.Context, key string) (*model.Process, error)
	Deployment(ctx context.Context, key, deploymentID string) (*model.ProcessDeployment, error)
}

// ProcessEngine runs process instances and their tasks.
type ProcessEngine interface {
	StartInstance(ctx context.Context, p *model.Process, d *model.ProcessDeployment, initiator *model.User, data map[string][]string) (*model.ProcessInstance, *model.Task, error)
	CompleteTask(ctx context.Context, d *model.ProcessDeployment, taskID string, action model.ActionType, data map[string][]string) (*model.Task, error)
	CreateSubtask(ctx context.Context, d *model.ProcessDeployment, parentTaskID string, u *model.User) (*model.Task, error)
	RetrieveTask(ctx context.Context, id string) (*model.Task, error)
	RetrieveInstance(ctx context.Context, id string) (*model.ProcessInstance, error)
	SearchTasks(ctx context.Context, c *enginestorage.TaskCriteria) ([]*model.Task, error)
}

// AttachmentService stores files uploaded against form requests.
type AttachmentService interface {
	Attach(ctx context.Context, req *model.FormRequest, user *model.User, u *attachment.Upload, max int) (*model.Attachment, error)
	Remove(ctx context.Context, requestID, id string) error
	List(ctx context.Context, requestID string) ([]*model.Attachment, error)
	Copy(ctx context.Context, fromRequestID, toRequestID string) error
	Open(ctx context.Context, requestID, id string) (*model.Attachment, io.ReadCloser, error)
}

// AccessTracker records form access and raises alarms.
type AccessTracker interface {
	Track(ctx context.Context, r *model.FormRequest, u *model.User)
	Alarm(ctx context.Context, severity, message string, u *model.User)
}

// Target is everything a form request resolves to.
type Target struct {
	Process    *model.Process
	Deployment *model.ProcessDeployment
	Activity   *model.Activity
	Request    *model.FormRequest
	Task       *model.Task
	User       *model.User
}

// SubmissionCommandResponse is the result of a submission.
// NextRequest replaces the submitted request. It is the submitted request
// itself for actions that do not progress (validate, attach, remove).
type SubmissionCommandResponse struct {
	Submission  *model.Submission
	Validation  *model.Validation
	NextRequest *model.FormRequest
	Instance    *model.ProcessInstance
	Task        *model.Task
}

// CommandFactory validates and submits form data.
type CommandFactory interface {
	// Validation validates every field of the target's form.
	Validation(ctx context.Context, t *Target, sub *model.Submission) (*model.Validation, error)

	// SubmissionValidation validates a submission for its action.
	// Rejections skip required checks.
	SubmissionValidation(ctx context.Context, t *Target, sub *model.Submission) (*model.Validation, error)

	// SubmitForm moves the process along and builds the next request.
	SubmitForm(ctx context.Context, t *Target, sub *model.Submission) (*SubmissionCommandResponse, error)
}

// Input is data submitted against a form request.
type Input struct {
	Action model.ActionType
	Data   map[string][]string

	// Uploads are attached for the attach action.
	Uploads []*attachment.Upload

	// AttachmentID is removed for the remove action.
	AttachmentID string

	Details *model.RequestDetails
}
