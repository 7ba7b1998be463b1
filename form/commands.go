package form

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/piecework/piecework/engine"
	"github.com/piecework/piecework/model"
	"github.com/piecework/piecework/utils/uuid"
	"github.com/piecework/piecework/validation"
)

// chain returns a new request that follows prev with action.
// Client metadata and principal carry over; the process position is
// updated by the caller.
func chain(prev *model.FormRequest, id string, at time.Time, action model.ActionType) *model.FormRequest {
	return &model.FormRequest{
		RequestID:            id,
		ProcessDefinitionKey: prev.ProcessDefinitionKey,
		DeploymentID:         prev.DeploymentID,
		ActivityKey:          prev.ActivityKey,
		ProcessInstanceID:    prev.ProcessInstanceID,
		TaskID:               prev.TaskID,
		Action:               action,
		Principal:            prev.Principal,
		Anonymous:            prev.Anonymous,
		PreviousRequestID:    prev.RequestID,
		RemoteAddr:           prev.RemoteAddr,
		RemoteHost:           prev.RemoteHost,
		UserAgent:            prev.UserAgent,
		Referrer:             prev.Referrer,
		RequestDate:          at,
	}
}

// Commands is the default CommandFactory.
// It validates with a validation.Validator and moves processes along with a ProcessEngine.
type Commands struct {
	validator *validation.Validator
	engine    ProcessEngine
	ider      uuid.IDer
	now       func() time.Time
}

// NewCommands creates the default command factory.
func NewCommands(v *validation.Validator, e ProcessEngine, ider uuid.IDer) *Commands {
	if v == nil {
		v = validation.New()
	}
	if ider == nil {
		ider = uuid.NewCompact()
	}
	return &Commands{validator: v, engine: e, ider: ider, now: time.Now}
}

func (c *Commands) validate(t *Target, sub *model.Submission, lenient bool) *model.Validation {
	values := sub.Values()
	for _, a := range sub.Attachments {
		if a.FieldName != "" {
			values[a.FieldName] = append(values[a.FieldName], a.Name)
		}
	}
	var container *model.Container
	if action := t.Activity.Action(t.Request.Action); action != nil {
		container = action.Container
	}
	return &model.Validation{
		ID:                   c.ider.ID(),
		SubmissionID:         sub.ID,
		RequestID:            sub.RequestID,
		ProcessDefinitionKey: sub.ProcessDefinitionKey,
		TaskID:               sub.TaskID,
		ActivityKey:          t.Request.ActivityKey,
		Action:               sub.Action,
		Results:              c.validator.Validate(container, values, lenient),
		Data:                 sub.Data,
	}
}

// Validation implements CommandFactory.
func (c *Commands) Validation(_ context.Context, t *Target, sub *model.Submission) (*model.Validation, error) {
	return c.validate(t, sub, false), nil
}

// SubmissionValidation implements CommandFactory.
func (c *Commands) SubmissionValidation(_ context.Context, t *Target, sub *model.Submission) (*model.Validation, error) {
	return c.validate(t, sub, sub.Action == model.ActionReject), nil
}

func engineError(err error, msg string) error {
	if errors.Is(err, engine.ErrTaskNotOpen) {
		return &ConflictError{Message: msg, Err: err}
	}
	return &InternalServerError{Message: msg, Err: err}
}

// next returns the request that follows a finished submission.
// The user continues straight to the next task when they may act on it;
// otherwise they get a confirmation request for the finished action.
func (c *Commands) next(t *Target, action model.ActionType, instanceID string, task *model.Task) *model.FormRequest {
	if task != nil && task.Actionable(t.User) {
		r := chain(t.Request, c.ider.ID(), c.now(), model.ActionCreate)
		r.ActivityKey = task.ActivityKey
		r.TaskID = task.ID
		r.ProcessInstanceID = task.ProcessInstanceID
		return r
	}
	r := chain(t.Request, c.ider.ID(), c.now(), action)
	if instanceID != "" {
		r.ProcessInstanceID = instanceID
	}
	return r
}

// SubmitForm implements CommandFactory.
func (c *Commands) SubmitForm(ctx context.Context, t *Target, sub *model.Submission) (*SubmissionCommandResponse, error) {
	resp := &SubmissionCommandResponse{Submission: sub}
	switch sub.Action {
	case model.ActionComplete, model.ActionReject:
		var err error
		if t.Request.TaskID == "" {
			if sub.Action == model.ActionReject {
				// nothing to start
				resp.NextRequest = c.next(t, sub.Action, "", nil)
				return resp, nil
			}
			resp.Instance, resp.Task, err = c.engine.StartInstance(ctx, t.Process, t.Deployment, t.User, sub.Data)
			if err != nil {
				return nil, engineError(err, "starting process instance")
			}
			sub.ProcessInstanceID = resp.Instance.ID
		} else {
			resp.Task, err = c.engine.CompleteTask(ctx, t.Deployment, t.Request.TaskID, sub.Action, sub.Data)
			if err != nil {
				return nil, engineError(err, "completing task")
			}
		}
		resp.NextRequest = c.next(t, sub.Action, sub.ProcessInstanceID, resp.Task)
	case model.ActionSubCreate:
		if t.Request.TaskID == "" {
			return nil, &BadRequestError{Message: "subtasks can only be created from a task"}
		}
		task, err := c.engine.CreateSubtask(ctx, t.Deployment, t.Request.TaskID, t.User)
		if err != nil {
			return nil, engineError(err, "creating subtask")
		}
		resp.Task = task
		resp.NextRequest = c.next(t, model.ActionCreate, "", task)
		resp.NextRequest.Action = model.ActionCreate
	default:
		return nil, &BadRequestError{Message: fmt.Sprintf("%s is not a submitting action", sub.Action)}
	}
	return resp, nil
}
