package form

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/piecework/piecework/attachment"
	attachmentstorage "github.com/piecework/piecework/attachment/storage"
	enginestorage "github.com/piecework/piecework/engine/storage"
	"github.com/piecework/piecework/form/storage"
	"github.com/piecework/piecework/log/logkeys"
	"github.com/piecework/piecework/metrics"
	"github.com/piecework/piecework/model"
	processstorage "github.com/piecework/piecework/process/storage"
	"github.com/piecework/piecework/utils/uuid"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

const lockStripes = 64

// Dispatcher resolves form requests and dispatches submissions by action.
type Dispatcher struct {
	provider    ProcessDeploymentProvider
	store       storage.Storage
	engine      ProcessEngine
	commands    CommandFactory
	attachments AttachmentService
	tracker     AccessTracker
	factory     *Factory
	metrics     *metrics.Metrics

	logger log.Logger
	ider   uuid.IDer
	now    func() time.Time

	// serializes submissions of the same request in this process
	locks [lockStripes]sync.Mutex
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(logger log.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithIDer sets the generator of request, submission, and validation IDs.
func WithIDer(ider uuid.IDer) Option {
	return func(d *Dispatcher) {
		d.ider = ider
	}
}

// WithCommandFactory replaces the default command factory.
func WithCommandFactory(c CommandFactory) Option {
	return func(d *Dispatcher) {
		d.commands = c
	}
}

// WithAttachments enables the attach and remove actions.
func WithAttachments(a AttachmentService) Option {
	return func(d *Dispatcher) {
		d.attachments = a
	}
}

// WithAccessTracker sets the tracker notified of form access and alarms.
func WithAccessTracker(t AccessTracker) Option {
	return func(d *Dispatcher) {
		d.tracker = t
	}
}

// WithFactory sets the form factory.
func WithFactory(f *Factory) Option {
	return func(d *Dispatcher) {
		d.factory = f
	}
}

// WithMetrics counts dispatched operations in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithClock sets the dispatcher's time source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

type nopTracker struct{}

func (nopTracker) Track(context.Context, *model.FormRequest, *model.User) {}
func (nopTracker) Alarm(context.Context, string, string, *model.User)     {}

// New creates a new dispatcher.
func New(provider ProcessDeploymentProvider, store storage.Storage, engine ProcessEngine, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		provider: provider,
		store:    store,
		engine:   engine,
		tracker:  nopTracker{},
		factory:  NewFactory(DefaultPrefix),
		logger:   log.NopLogger,
		ider:     uuid.NewCompact(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.commands == nil {
		c := NewCommands(nil, engine, d.ider)
		c.now = d.now
		d.commands = c
	}
	return d
}

func (d *Dispatcher) lock(requestID string) func() {
	h := fnv.New32a()
	h.Write([]byte(requestID))
	mu := &d.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

func (d *Dispatcher) count(action model.ActionType, err error) {
	if d.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = http.StatusText(StatusCode(err))
	}
	d.metrics.Dispatched.WithLabelValues(string(action), outcome).Inc()
}

// resolveProcess returns the process for key.
func (d *Dispatcher) resolveProcess(ctx context.Context, key string) (*model.Process, error) {
	p, err := d.provider.Process(ctx, key)
	if errors.Is(err, processstorage.ErrProcessNotFound) {
		return nil, &NotFoundError{Message: "process " + key, Err: err}
	} else if err != nil {
		return nil, &InternalServerError{Message: "retrieving process", Err: err}
	}
	if p.Deleted {
		return nil, &GoneError{Message: fmt.Sprintf("process %s was deleted", key)}
	}
	return p, nil
}

// resolve builds the target of req for user.
func (d *Dispatcher) resolve(ctx context.Context, user *model.User, req *model.FormRequest) (*Target, error) {
	p, err := d.resolveProcess(ctx, req.ProcessDefinitionKey)
	if err != nil {
		if _, ok := err.(*NotFoundError); ok {
			// the request exists so its process must, too
			return nil, &InternalServerError{Message: "form request references a missing process", Err: err}
		}
		return nil, err
	}
	deploymentID := req.DeploymentID
	if deploymentID == "" {
		deploymentID = p.DeploymentID
	}
	if deploymentID == "" {
		return nil, &InternalServerError{Message: fmt.Sprintf("process %s has no published deployment", p.Key)}
	}
	dep, err := d.provider.Deployment(ctx, p.Key, deploymentID)
	if err != nil {
		return nil, &InternalServerError{Message: "retrieving deployment", Err: err}
	}
	activityKey := req.ActivityKey
	if activityKey == "" {
		activityKey = dep.StartActivityKey
	}
	a := dep.Activity(activityKey)
	if a == nil {
		return nil, &InternalServerError{Message: fmt.Sprintf("deployment %s has no activity %s", dep.ID, activityKey)}
	}
	t := &Target{Process: p, Deployment: dep, Activity: a, Request: req, User: user}
	if req.TaskID != "" {
		if t.Task, err = d.engine.RetrieveTask(ctx, req.TaskID); err != nil {
			return nil, &InternalServerError{Message: "retrieving task", Err: err}
		}
	}
	return t, nil
}

// owns checks that user may act on req.
func owns(user *model.User, req *model.FormRequest) error {
	if user.IsAnonymous() {
		if !req.Anonymous && req.Principal != "" {
			return &ForbiddenError{Message: "request belongs to an authenticated principal"}
		}
		return nil
	}
	if req.Principal != "" && req.Principal != user.ID {
		return &ForbiddenError{Message: "request belongs to another principal"}
	}
	return nil
}

// readRequest returns request requestID of process key.
// Unknown requests and requests of other processes are not found.
func (d *Dispatcher) readRequest(ctx context.Context, key, requestID string) (*model.FormRequest, error) {
	if requestID == "" {
		return nil, &NotFoundError{Message: "missing request id"}
	}
	req, err := d.store.RetrieveRequest(ctx, requestID)
	if errors.Is(err, storage.ErrRequestNotFound) {
		return nil, &NotFoundError{Message: "request " + requestID, Err: err}
	} else if err != nil {
		return nil, &InternalServerError{Message: "retrieving request", Err: err}
	}
	if req.ProcessDefinitionKey != key {
		return nil, &NotFoundError{Message: "request " + requestID}
	}
	return req, nil
}

func (d *Dispatcher) newRequest(p *model.Process, user *model.User, details *model.RequestDetails) *model.FormRequest {
	r := &model.FormRequest{
		RequestID:            d.ider.ID(),
		ProcessDefinitionKey: p.Key,
		DeploymentID:         p.DeploymentID,
		Action:               model.ActionCreate,
		Principal:            user.UserID(),
		Anonymous:            user.IsAnonymous(),
		RequestDate:          d.now(),
	}
	if details != nil {
		r.RemoteAddr = details.RemoteAddr
		r.RemoteHost = details.RemoteHost
		r.UserAgent = details.UserAgent
		r.Referrer = details.Referrer
	}
	return r
}

func (d *Dispatcher) storeRequest(ctx context.Context, r *model.FormRequest) error {
	if err := d.store.StoreRequest(ctx, r); err != nil {
		return &InternalServerError{Message: "storing request", Err: err}
	}
	return nil
}

func (d *Dispatcher) attachmentsOf(ctx context.Context, requestID string) []*model.Attachment {
	if d.attachments == nil {
		return nil
	}
	list, err := d.attachments.List(ctx, requestID)
	if err != nil {
		ctxlog.Logger(ctx, d.logger).Info(
			logkeys.Message, "listing attachments",
			logkeys.RequestID, requestID,
			logkeys.Error, err,
		)
	}
	return list
}

// StartForm issues a create request for the start activity of process key.
// Anonymous principals may only start processes that allow anonymous submission.
func (d *Dispatcher) StartForm(ctx context.Context, user *model.User, key string, details *model.RequestDetails) (form *model.Form, err error) {
	defer func() { d.count(model.ActionCreate, err) }()
	p, err := d.resolveProcess(ctx, key)
	if err != nil {
		return nil, err
	}
	if user.IsAnonymous() && !p.AllowAnonymousSubmission {
		return nil, &ForbiddenError{Message: fmt.Sprintf("process %s does not allow anonymous submission", key)}
	}
	req := d.newRequest(p, user, details)
	t, err := d.resolve(ctx, user, req)
	if err != nil {
		return nil, err
	}
	req.DeploymentID = t.Deployment.ID
	req.ActivityKey = t.Deployment.StartActivityKey
	if err = d.storeRequest(ctx, req); err != nil {
		return nil, err
	}
	d.tracker.Track(ctx, req, user)
	ctxlog.Logger(ctx, d.logger).Debug(
		logkeys.Message, "started form",
		logkeys.ProcessKey, key,
		logkeys.RequestID, req.RequestID,
		logkeys.Anonymous, user.IsAnonymous(),
	)
	return d.factory.Form(t, nil, nil, nil, nil), nil
}

// instanceData returns the data of the process instance req is bound to.
// Forms render without it when the instance can not be read.
func (d *Dispatcher) instanceData(ctx context.Context, req *model.FormRequest) map[string][]string {
	if req.ProcessInstanceID == "" || req.Action.Terminal() {
		return nil
	}
	i, err := d.engine.RetrieveInstance(ctx, req.ProcessInstanceID)
	if err != nil {
		ctxlog.Logger(ctx, d.logger).Info(
			logkeys.Message, "retrieving process instance",
			logkeys.RequestID, req.RequestID,
			logkeys.InstanceID, req.ProcessInstanceID,
			logkeys.Error, err,
		)
		return nil
	}
	return i.Data
}

// render builds the form of req, restoring its validation if any.
func (d *Dispatcher) render(ctx context.Context, user *model.User, req *model.FormRequest) (*model.Form, error) {
	t, err := d.resolve(ctx, user, req)
	if err != nil {
		return nil, err
	}
	var v *model.Validation
	if req.ValidationID != "" {
		v, err = d.store.RetrieveValidation(ctx, req.ValidationID)
		if err != nil && !errors.Is(err, storage.ErrValidationNotFound) {
			return nil, &InternalServerError{Message: "retrieving validation", Err: err}
		}
	}
	data := d.instanceData(ctx, req)
	if req.Action.Terminal() {
		// confirmations echo what was submitted
		if sub, err := d.store.RetrieveTerminalSubmission(ctx, req.PreviousRequestID); err == nil && sub != nil {
			data = sub.Data
		}
	}
	return d.factory.Form(t, data, v, nil, d.attachmentsOf(ctx, req.RequestID)), nil
}

// RequestForm reads back request requestID of process key.
// Requests without an action are never viewable; anonymous principals may
// only view confirmations; authenticated principals only their own requests.
func (d *Dispatcher) RequestForm(ctx context.Context, user *model.User, key, requestID string) (*model.Form, error) {
	req, err := d.readRequest(ctx, key, requestID)
	if err != nil {
		return nil, err
	}
	if err = Viewable(user.IsAnonymous(), req.Action); err != nil {
		return nil, err
	}
	if err = owns(user, req); err != nil {
		return nil, err
	}
	d.tracker.Track(ctx, req, user)
	return d.render(ctx, user, req)
}

// TaskForm issues a create request for task taskID.
// Anonymous access raises an urgent alarm and is forbidden.
func (d *Dispatcher) TaskForm(ctx context.Context, user *model.User, key, taskID string, details *model.RequestDetails) (form *model.Form, err error) {
	defer func() { d.count(model.ActionCreate, err) }()
	if user.IsAnonymous() {
		d.tracker.Alarm(ctx, AlarmUrgent, fmt.Sprintf("anonymous access to task %s of process %s", taskID, key), user)
		return nil, &ForbiddenError{Message: "task forms require an authenticated principal"}
	}
	task, err := d.engine.RetrieveTask(ctx, taskID)
	if errors.Is(err, enginestorage.ErrTaskNotFound) {
		return nil, &NotFoundError{Message: "task " + taskID, Err: err}
	} else if err != nil {
		return nil, &InternalServerError{Message: "retrieving task", Err: err}
	}
	if task.ProcessDefinitionKey != key {
		return nil, &NotFoundError{Message: "task " + taskID}
	}
	if !task.Open() {
		return nil, &ConflictError{Message: fmt.Sprintf("task %s is %s", taskID, task.Status)}
	}
	if !task.Actionable(user) {
		return nil, &ForbiddenError{Message: fmt.Sprintf("task %s is not assigned to %s", taskID, user.ID)}
	}
	p, err := d.resolveProcess(ctx, key)
	if err != nil {
		return nil, err
	}
	req := d.newRequest(p, user, details)
	req.DeploymentID = task.DeploymentID
	req.ActivityKey = task.ActivityKey
	req.ProcessInstanceID = task.ProcessInstanceID
	req.TaskID = task.ID
	t, err := d.resolve(ctx, user, req)
	if err != nil {
		return nil, err
	}
	if err = d.storeRequest(ctx, req); err != nil {
		return nil, err
	}
	d.tracker.Track(ctx, req, user)
	return d.factory.Form(t, d.instanceData(ctx, req), nil, nil, nil), nil
}

// submission builds the submission of input against t.
// Only editable fields of the form are kept; values of restricted
// fields are kept apart from regular values.
func (d *Dispatcher) submission(t *Target, action model.ActionType, input *Input) *model.Submission {
	req := t.Request
	sub := &model.Submission{
		ID:                   d.ider.ID(),
		RequestID:            req.RequestID,
		ProcessDefinitionKey: req.ProcessDefinitionKey,
		ProcessInstanceID:    req.ProcessInstanceID,
		TaskID:               req.TaskID,
		Action:               action,
		Submitter:            t.User.UserID(),
		Anonymous:            t.User.IsAnonymous(),
		SubmissionDate:       d.now(),
	}
	var container *model.Container
	if a := t.Activity.Action(req.Action); a != nil {
		container = a.Container
	}
	if container == nil || container.ReadOnly {
		return sub
	}
	for k, v := range input.Data {
		f := container.Field(k)
		if k == "action" || f == nil || f.ReadOnly {
			continue
		}
		if f.Restricted {
			if sub.RestrictedData == nil {
				sub.RestrictedData = make(map[string][]string)
			}
			sub.RestrictedData[k] = v
			continue
		}
		if sub.Data == nil {
			sub.Data = make(map[string][]string)
		}
		sub.Data[k] = v
	}
	return sub
}

// SubmitForm submits input against request requestID of process key.
//
// Unknown requests are NotFoundError. A request that was already completed
// or rejected is superseded by its next request and is a ConflictError.
// Invalid submissions are a BadRequestError carrying the stored validation.
func (d *Dispatcher) SubmitForm(ctx context.Context, user *model.User, key, requestID string, input *Input) (resp *SubmissionCommandResponse, err error) {
	if input == nil {
		input = &Input{}
	}
	action := input.Action
	if action == "" {
		action = model.ActionComplete
	}
	defer func() { d.count(action, err) }()

	req, err := d.readRequest(ctx, key, requestID)
	if err != nil {
		return nil, err
	}
	logger := ctxlog.Logger(ctx, d.logger).With(
		logkeys.ProcessKey, key,
		logkeys.RequestID, requestID,
		logkeys.Action, action,
	)

	if err = owns(user, req); err != nil {
		return nil, err
	}

	unlock := d.lock(requestID)
	defer unlock()

	if done, err := d.store.RetrieveTerminalSubmission(ctx, requestID); err != nil {
		return nil, &InternalServerError{Message: "retrieving submissions", Err: err}
	} else if done != nil {
		return nil, &ConflictError{Message: fmt.Sprintf("request %s was already submitted with %s", requestID, done.Action)}
	}
	if err = Permit(user.IsAnonymous(), req.Action, action); err != nil {
		return nil, err
	}
	d.tracker.Track(ctx, req, user)

	t, err := d.resolve(ctx, user, req)
	if err != nil {
		return nil, err
	}
	if t.Task != nil && !t.Task.Open() {
		return nil, &ConflictError{Message: fmt.Sprintf("task %s is %s", t.Task.ID, t.Task.Status)}
	}
	sub := d.submission(t, action, input)

	switch action {
	case model.ActionAttach:
		resp, err = d.attach(ctx, t, sub, input)
	case model.ActionRemove:
		resp, err = d.remove(ctx, t, sub, input)
	case model.ActionValidate:
		resp, err = d.validate(ctx, t, sub)
	default:
		resp, err = d.submit(ctx, t, sub)
	}
	if err != nil {
		logger.Info(logkeys.Message, "submission", logkeys.Error, err)
		return nil, err
	}
	logger.Debug(
		logkeys.Message, "submitted form",
		logkeys.SubmissionID, sub.ID,
		logkeys.PreviousRequestID, requestID,
		logkeys.RequestID, resp.NextRequest.RequestID,
	)
	return resp, nil
}

func (d *Dispatcher) storeSubmission(ctx context.Context, sub *model.Submission) error {
	if err := d.store.StoreSubmission(ctx, sub); err != nil {
		return &InternalServerError{Message: "storing submission", Err: err}
	}
	return nil
}

// storeValidation stores the submission and v, returning a BadRequestError if v has errors.
func (d *Dispatcher) storeValidation(ctx context.Context, sub *model.Submission, v *model.Validation) error {
	if err := d.storeSubmission(ctx, sub); err != nil {
		return err
	}
	if err := d.store.StoreValidation(ctx, v); err != nil {
		return &InternalServerError{Message: "storing validation", Err: err}
	}
	if !v.Valid() {
		return &BadRequestError{Message: "submission failed validation", Validation: v}
	}
	return nil
}

func (d *Dispatcher) validate(ctx context.Context, t *Target, sub *model.Submission) (*SubmissionCommandResponse, error) {
	sub.Attachments = d.attachmentsOf(ctx, sub.RequestID)
	v, err := d.commands.Validation(ctx, t, sub)
	if err != nil {
		return nil, err
	}
	if err = d.storeValidation(ctx, sub, v); err != nil {
		return nil, err
	}
	return &SubmissionCommandResponse{Submission: sub, Validation: v, NextRequest: t.Request, Task: t.Task}, nil
}

func (d *Dispatcher) submit(ctx context.Context, t *Target, sub *model.Submission) (*SubmissionCommandResponse, error) {
	sub.Attachments = d.attachmentsOf(ctx, sub.RequestID)
	v, err := d.commands.SubmissionValidation(ctx, t, sub)
	if err != nil {
		return nil, err
	}
	if !v.Valid() {
		// failed submissions never finish their request
		sub.Action = model.ActionValidate
		return nil, d.storeValidation(ctx, sub, v)
	}
	resp, err := d.commands.SubmitForm(ctx, t, sub)
	if err != nil {
		return nil, err
	}
	resp.Validation = v
	// the next request is stored before the submission that supersedes its predecessor
	if err = d.storeRequest(ctx, resp.NextRequest); err != nil {
		return nil, err
	}
	if err = d.storeSubmission(ctx, sub); err != nil {
		return nil, err
	}
	return resp, nil
}

func (d *Dispatcher) attach(ctx context.Context, t *Target, sub *model.Submission, input *Input) (*SubmissionCommandResponse, error) {
	if d.attachments == nil || !t.Activity.AllowAttachments {
		return nil, &ForbiddenError{Message: "attachments are not allowed"}
	}
	if len(input.Uploads) < 1 {
		return nil, &BadRequestError{Message: "no attachments uploaded"}
	}
	for _, u := range input.Uploads {
		a, err := d.attachments.Attach(ctx, t.Request, t.User, u, t.Activity.MaxAttachments)
		if errors.Is(err, attachment.ErrEmptyName) || errors.Is(err, attachment.ErrTooManyUploads) {
			return nil, &BadRequestError{Message: err.Error()}
		} else if err != nil {
			return nil, &InternalServerError{Message: "storing attachment", Err: err}
		}
		sub.Attachments = append(sub.Attachments, a)
	}
	if err := d.storeSubmission(ctx, sub); err != nil {
		return nil, err
	}
	return &SubmissionCommandResponse{Submission: sub, NextRequest: t.Request, Task: t.Task}, nil
}

func (d *Dispatcher) remove(ctx context.Context, t *Target, sub *model.Submission, input *Input) (*SubmissionCommandResponse, error) {
	if d.attachments == nil {
		return nil, &ForbiddenError{Message: "attachments are not allowed"}
	}
	err := d.attachments.Remove(ctx, t.Request.RequestID, input.AttachmentID)
	if errors.Is(err, attachmentstorage.ErrAttachmentNotFound) {
		return nil, &NotFoundError{Message: "attachment " + input.AttachmentID, Err: err}
	} else if err != nil {
		return nil, &InternalServerError{Message: "removing attachment", Err: err}
	}
	if err = d.storeSubmission(ctx, sub); err != nil {
		return nil, err
	}
	return &SubmissionCommandResponse{Submission: sub, NextRequest: t.Request, Task: t.Task}, nil
}

// ValidateForm validates input against request requestID without progressing it.
// The validation is stored; an invalid submission is a BadRequestError.
func (d *Dispatcher) ValidateForm(ctx context.Context, user *model.User, key, requestID string, input *Input) (*model.Validation, error) {
	if input == nil {
		input = &Input{}
	}
	in := *input
	in.Action = model.ActionValidate
	resp, err := d.SubmitForm(ctx, user, key, requestID, &in)
	if err != nil {
		return nil, err
	}
	return resp.Validation, nil
}

// ValidationForm re-renders the request of validation validationID with its
// field messages and submitted values.
func (d *Dispatcher) ValidationForm(ctx context.Context, user *model.User, key, validationID string) (*model.Form, error) {
	v, err := d.store.RetrieveValidation(ctx, validationID)
	if errors.Is(err, storage.ErrValidationNotFound) {
		return nil, &NotFoundError{Message: "validation " + validationID, Err: err}
	} else if err != nil {
		return nil, &InternalServerError{Message: "retrieving validation", Err: err}
	}
	if v.ProcessDefinitionKey != key {
		return nil, &NotFoundError{Message: "validation " + validationID}
	}
	req, err := d.readRequest(ctx, key, v.RequestID)
	if err != nil {
		return nil, err
	}
	if err = owns(user, req); err != nil {
		return nil, err
	}
	t, err := d.resolve(ctx, user, req)
	if err != nil {
		return nil, err
	}
	return d.factory.Form(t, d.instanceData(ctx, req), v, nil, d.attachmentsOf(ctx, req.RequestID)), nil
}

// recoverable reports whether a failed submission can be re-rendered.
func recoverable(err error) bool {
	switch StatusCode(err) {
	case http.StatusNotFound, http.StatusForbidden, http.StatusConflict, http.StatusGone:
		return false
	}
	return true
}

// Recover turns the failed submission of req into a new create request
// that re-renders the same form. Validation failures carry their
// validation; other failures carry an explanation. Failures that cannot
// be retried (not found, forbidden, conflict, gone) are returned.
func (d *Dispatcher) Recover(ctx context.Context, user *model.User, req *model.FormRequest, cause error) (*model.Form, error) {
	if req == nil || cause == nil || !recoverable(cause) {
		return nil, cause
	}
	logger := ctxlog.Logger(ctx, d.logger).With(
		logkeys.ProcessKey, req.ProcessDefinitionKey,
		logkeys.PreviousRequestID, req.RequestID,
	)

	next := chain(req, d.ider.ID(), d.now(), model.ActionCreate)
	v := ValidationOf(cause)
	var explanation *model.Explanation
	if v != nil {
		next.ValidationID = v.ID
	} else {
		code := StatusCode(cause)
		explanation = &model.Explanation{Message: http.StatusText(code)}
		if code != http.StatusInternalServerError {
			explanation.MessageDetail = cause.Error()
		} else {
			explanation.MessageDetail = "The form could not be submitted. Please try again."
		}
		next.Explanation = explanation
		logger.Info(
			logkeys.Message, "recovering failed submission",
			logkeys.StatusCode, code,
			logkeys.Error, cause,
		)
	}

	t, err := d.resolve(ctx, user, next)
	if err != nil {
		return nil, err
	}
	if err = d.storeRequest(ctx, next); err != nil {
		return nil, err
	}
	if d.attachments != nil {
		if err = d.attachments.Copy(ctx, req.RequestID, next.RequestID); err != nil {
			logger.Info(logkeys.Message, "copying attachments", logkeys.Error, err)
		}
	}
	logger.Debug(
		logkeys.Message, "recovered submission",
		logkeys.RequestID, next.RequestID,
		logkeys.ValidationID, next.ValidationID,
	)
	return d.factory.Form(t, d.instanceData(ctx, next), v, explanation, d.attachmentsOf(ctx, next.RequestID)), nil
}

// Request returns request requestID of process key for user.
// It is used to recover failed submissions.
func (d *Dispatcher) Request(ctx context.Context, user *model.User, key, requestID string) (*model.FormRequest, error) {
	req, err := d.readRequest(ctx, key, requestID)
	if err != nil {
		return nil, err
	}
	if err = owns(user, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Search returns the tasks of process key that user may act on.
// Anonymous access raises an urgent alarm and is forbidden.
func (d *Dispatcher) Search(ctx context.Context, user *model.User, key string, c *enginestorage.TaskCriteria) ([]*model.Task, error) {
	if user.IsAnonymous() {
		d.tracker.Alarm(ctx, AlarmUrgent, fmt.Sprintf("anonymous search of process %s", key), user)
		return nil, &ForbiddenError{Message: "search requires an authenticated principal"}
	}
	if _, err := d.resolveProcess(ctx, key); err != nil {
		return nil, err
	}
	criteria := enginestorage.TaskCriteria{}
	if c != nil {
		criteria = *c
	}
	criteria.ProcessDefinitionKeys = []string{key}
	criteria.Assignee = user.ID
	criteria.CandidateGroups = user.Groups
	tasks, err := d.engine.SearchTasks(ctx, &criteria)
	if err != nil {
		return nil, &InternalServerError{Message: "searching tasks", Err: err}
	}
	return tasks, nil
}

// Attachment opens attachment attachmentID of request requestID.
// The caller must close the reader.
func (d *Dispatcher) Attachment(ctx context.Context, user *model.User, key, requestID, attachmentID string) (*model.Attachment, io.ReadCloser, error) {
	if d.attachments == nil {
		return nil, nil, &NotFoundError{Message: "attachment " + attachmentID}
	}
	req, err := d.Request(ctx, user, key, requestID)
	if err != nil {
		return nil, nil, err
	}
	a, rc, err := d.attachments.Open(ctx, req.RequestID, attachmentID)
	if errors.Is(err, attachmentstorage.ErrAttachmentNotFound) || errors.Is(err, attachmentstorage.ErrContentNotFound) {
		return nil, nil, &NotFoundError{Message: "attachment " + attachmentID, Err: err}
	} else if err != nil {
		return nil, nil, &InternalServerError{Message: "opening attachment", Err: err}
	}
	return a, rc, nil
}
