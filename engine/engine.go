// Package engine implements the Piecework sequential task engine.
// Each activity of a deployment opens at most one task at a time per
// instance; an action's transition names the next activity.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/piecework/piecework/engine/storage"
	"github.com/piecework/piecework/log/logkeys"
	"github.com/piecework/piecework/model"
	"github.com/piecework/piecework/utils/uuid"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

// AssigneeInitiator is replaced with the instance initiator when a task is opened.
const AssigneeInitiator = "${initiator}"

var (
	ErrNoSuchActivity = errors.New("no such activity")
	ErrTaskNotOpen    = errors.New("task is not open")
	ErrNotFinishing   = errors.New("action does not finish a task")
)

func NewErrNoSuchActivity(key string) error {
	return fmt.Errorf("%w: %s", ErrNoSuchActivity, key)
}

// Engine starts process instances and moves their tasks along activity transitions.
type Engine struct {
	storage storage.Storage
	logger  log.Logger
	ider    uuid.IDer
	now     func() time.Time
}

// Options configure the engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger log.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithIDer sets the generator of instance and task IDs.
func WithIDer(ider uuid.IDer) Option {
	return func(e *Engine) {
		e.ider = ider
	}
}

// WithClock sets the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates a new engine with default configurations.
func New(storage storage.Storage, opts ...Option) *Engine {
	engine := &Engine{
		storage: storage,
		logger:  log.NopLogger,
		ider:    uuid.NewUUID(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// openTask stores a new open task for activity key of instance i.
func (e *Engine) openTask(ctx context.Context, d *model.ProcessDeployment, i *model.ProcessInstance, key, parentTaskID string) (*model.Task, error) {
	a := d.Activity(key)
	if a == nil {
		return nil, NewErrNoSuchActivity(key)
	}
	t := &model.Task{
		ID:                   e.ider.ID(),
		ProcessInstanceID:    i.ID,
		ProcessDefinitionKey: i.ProcessDefinitionKey,
		DeploymentID:         i.DeploymentID,
		ActivityKey:          a.Key,
		Name:                 a.Name,
		Assignee:             a.Assignee,
		CandidateGroups:      a.CandidateGroups,
		ParentTaskID:         parentTaskID,
		Status:               model.StatusOpen,
		StartTime:            e.now(),
	}
	if t.ActivityKey == "" {
		t.ActivityKey = key
	}
	if t.Assignee == AssigneeInitiator {
		t.Assignee = i.Initiator
	}
	if err := e.storage.StoreTask(ctx, t); err != nil {
		return nil, fmt.Errorf("storing task: %w", err)
	}
	ctxlog.Logger(ctx, e.logger).Debug(
		logkeys.Message, "opened task",
		logkeys.InstanceID, i.ID,
		logkeys.TaskID, t.ID,
		logkeys.ActivityKey, t.ActivityKey,
	)
	return t, nil
}

func mergeData(dst map[string][]string, src map[string][]string) map[string][]string {
	if dst == nil {
		dst = make(map[string][]string)
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// StartInstance starts an instance of deployment d for the completed start form.
// The task for the start activity's complete transition is opened and
// returned. A nil task means the instance finished immediately.
func (e *Engine) StartInstance(ctx context.Context, p *model.Process, d *model.ProcessDeployment, initiator *model.User, data map[string][]string) (*model.ProcessInstance, *model.Task, error) {
	if err := d.Validate(); err != nil {
		return nil, nil, err
	}
	i := &model.ProcessInstance{
		ID:                   e.ider.ID(),
		ProcessDefinitionKey: p.Key,
		DeploymentID:         d.ID,
		Initiator:            initiator.UserID(),
		Status:               model.StatusOpen,
		Data:                 mergeData(nil, data),
		StartTime:            e.now(),
	}
	logger := ctxlog.Logger(ctx, e.logger).With(
		logkeys.ProcessKey, p.Key,
		logkeys.InstanceID, i.ID,
	)

	next := d.Activity(d.StartActivityKey).Transitions[model.ActionComplete]
	if next == "" {
		i.Status = model.StatusComplete
		i.EndTime = i.StartTime
	}
	if err := e.storage.StoreInstance(ctx, i); err != nil {
		return nil, nil, fmt.Errorf("storing instance: %w", err)
	}
	logger.Debug(logkeys.Message, "started instance")
	if next == "" {
		return i, nil, nil
	}

	t, err := e.openTask(ctx, d, i, next, "")
	if err != nil {
		return i, nil, err
	}
	return i, t, nil
}

// CompleteTask finishes task taskID with action (complete or reject)
// and opens the task for the activity's transition.
// The instance ends when there is no next activity and no other open tasks.
func (e *Engine) CompleteTask(ctx context.Context, d *model.ProcessDeployment, taskID string, action model.ActionType, data map[string][]string) (*model.Task, error) {
	var status model.TaskStatus
	switch action {
	case model.ActionComplete:
		status = model.StatusComplete
	case model.ActionReject:
		status = model.StatusRejected
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotFinishing, action)
	}

	t, err := e.storage.RetrieveTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !t.Open() {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotOpen, taskID)
	}
	i, err := e.storage.RetrieveInstance(ctx, t.ProcessInstanceID)
	if err != nil {
		return nil, err
	}
	a := d.Activity(t.ActivityKey)
	if a == nil {
		return nil, NewErrNoSuchActivity(t.ActivityKey)
	}

	t.Status = status
	t.EndTime = e.now()
	if err = e.storage.StoreTask(ctx, t); err != nil {
		return nil, fmt.Errorf("storing task: %w", err)
	}
	i.Data = mergeData(i.Data, data)

	logger := ctxlog.Logger(ctx, e.logger).With(
		logkeys.InstanceID, i.ID,
		logkeys.TaskID, t.ID,
		logkeys.Action, action,
	)
	logger.Debug(logkeys.Message, "finished task")

	var nextTask *model.Task
	if next := a.Transitions[action]; next != "" && t.ParentTaskID == "" {
		if nextTask, err = e.openTask(ctx, d, i, next, ""); err != nil {
			return nil, err
		}
	} else {
		open, err := e.storage.SearchTasks(ctx, &storage.TaskCriteria{
			ProcessInstanceID: i.ID,
			Status:            model.StatusOpen,
		})
		if err != nil {
			return nil, fmt.Errorf("searching open tasks: %w", err)
		}
		if len(open) < 1 {
			i.Status = status
			i.EndTime = t.EndTime
			logger.Debug(logkeys.Message, "instance ended")
		}
	}
	if err = e.storage.StoreInstance(ctx, i); err != nil {
		return nil, fmt.Errorf("storing instance: %w", err)
	}
	return nextTask, nil
}

// CreateSubtask opens a child task of parentTaskID.
// The child is for the activity of the parent's subcreate transition,
// or the parent's own activity. Without an assignee on that activity
// the child is assigned to u.
func (e *Engine) CreateSubtask(ctx context.Context, d *model.ProcessDeployment, parentTaskID string, u *model.User) (*model.Task, error) {
	parent, err := e.storage.RetrieveTask(ctx, parentTaskID)
	if err != nil {
		return nil, err
	}
	if !parent.Open() {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotOpen, parentTaskID)
	}
	i, err := e.storage.RetrieveInstance(ctx, parent.ProcessInstanceID)
	if err != nil {
		return nil, err
	}
	a := d.Activity(parent.ActivityKey)
	if a == nil {
		return nil, NewErrNoSuchActivity(parent.ActivityKey)
	}
	key := a.Key
	if next := a.Transitions[model.ActionSubCreate]; next != "" {
		key = next
	}
	if key == "" {
		key = parent.ActivityKey
	}
	if sub := d.Activity(key); sub != nil && sub.Assignee == "" && len(sub.CandidateGroups) < 1 {
		// open then assign to the creating user
		t, err := e.openTask(ctx, d, i, key, parent.ID)
		if err != nil {
			return nil, err
		}
		t.Assignee = u.UserID()
		return t, e.storage.StoreTask(ctx, t)
	}
	return e.openTask(ctx, d, i, key, parent.ID)
}

// CancelInstance cancels the instance and its open tasks.
func (e *Engine) CancelInstance(ctx context.Context, instanceID string) error {
	i, err := e.storage.RetrieveInstance(ctx, instanceID)
	if err != nil {
		return err
	}
	open, err := e.storage.SearchTasks(ctx, &storage.TaskCriteria{
		ProcessInstanceID: instanceID,
		Status:            model.StatusOpen,
	})
	if err != nil {
		return fmt.Errorf("searching open tasks: %w", err)
	}
	now := e.now()
	for _, t := range open {
		t.Status = model.StatusCancelled
		t.EndTime = now
		if err = e.storage.StoreTask(ctx, t); err != nil {
			return fmt.Errorf("storing task: %w", err)
		}
	}
	if i.Status == model.StatusOpen {
		i.Status = model.StatusCancelled
		i.EndTime = now
	}
	return e.storage.StoreInstance(ctx, i)
}

// RetrieveTask returns the task with id.
func (e *Engine) RetrieveTask(ctx context.Context, id string) (*model.Task, error) {
	return e.storage.RetrieveTask(ctx, id)
}

// RetrieveInstance returns the process instance with id.
func (e *Engine) RetrieveInstance(ctx context.Context, id string) (*model.ProcessInstance, error) {
	return e.storage.RetrieveInstance(ctx, id)
}

// SearchTasks returns the tasks matching c.
func (e *Engine) SearchTasks(ctx context.Context, c *storage.TaskCriteria) ([]*model.Task, error) {
	return e.storage.SearchTasks(ctx, c)
}
