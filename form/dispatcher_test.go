package form

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/piecework/piecework/attachment"
	attachmentinmem "github.com/piecework/piecework/attachment/storage/inmem"
	"github.com/piecework/piecework/engine"
	engineinmem "github.com/piecework/piecework/engine/storage/inmem"
	"github.com/piecework/piecework/form/storage/inmem"
	"github.com/piecework/piecework/model"
	"github.com/piecework/piecework/process/cache"
	processinmem "github.com/piecework/piecework/process/storage/inmem"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alarm struct {
	severity string
	user     *model.User
}

type recordingTracker struct {
	mu      sync.Mutex
	tracked []string
	alarms  []alarm
}

func (r *recordingTracker) Track(_ context.Context, req *model.FormRequest, _ *model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracked = append(r.tracked, req.RequestID)
}

func (r *recordingTracker) Alarm(_ context.Context, severity, _ string, u *model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alarms = append(r.alarms, alarm{severity: severity, user: u})
}

var (
	alice = &model.User{ID: "alice"}
	bob   = &model.User{ID: "bob", Groups: []string{"reviewers"}}
	carol = &model.User{ID: "carol"}
)

func testDeployment() *model.ProcessDeployment {
	return &model.ProcessDeployment{
		ID:               "1",
		StartActivityKey: "start",
		Activities: map[string]*model.Activity{
			"start": {
				Key:              "start",
				Name:             "Apply",
				AllowAttachments: true,
				MaxAttachments:   2,
				Transitions:      map[model.ActionType]string{model.ActionComplete: "review"},
				Actions: map[model.ActionType]*model.Action{
					model.ActionCreate: {Container: &model.Container{Fields: []*model.Field{
						{Name: "name", Type: model.FieldText, Required: true},
						{Name: "ssn", Type: model.FieldText, Restricted: true},
					}}},
				},
			},
			"review": {
				Key:             "review",
				Name:            "Review",
				CandidateGroups: []string{"reviewers"},
				Actions: map[model.ActionType]*model.Action{
					model.ActionCreate: {Container: &model.Container{Fields: []*model.Field{
						{Name: "name", Type: model.FieldText, ReadOnly: true},
						{Name: "decision", Type: model.FieldSelect, Required: true, Options: []model.Option{{Value: "ok"}, {Value: "no"}}},
					}}},
				},
			},
		},
	}
}

type fixture struct {
	d       *Dispatcher
	tracker *recordingTracker
	forms   *inmem.InMem
	engine  *engine.Engine
}

func newFixture(t *testing.T, anonymous bool) *fixture {
	t.Helper()
	ctx := context.Background()
	processes := processinmem.New()
	require.NoError(t, processes.StoreProcess(ctx, &model.Process{Key: "demo", Name: "Demo", AllowAnonymousSubmission: anonymous}))
	require.NoError(t, processes.StoreDeployment(ctx, "demo", testDeployment()))
	require.NoError(t, processes.PublishDeployment(ctx, "demo", "1", time.Now()))

	f := &fixture{
		tracker: &recordingTracker{},
		forms:   inmem.New(),
		engine:  engine.New(engineinmem.New()),
	}
	content := attachmentinmem.New()
	f.d = New(
		cache.New(processes, 0),
		f.forms,
		f.engine,
		WithAccessTracker(f.tracker),
		WithAttachments(attachment.New(content, content)),
	)
	return f
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	return StatusCode(err)
}

func TestStartForm(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, false)
	_, err := f.d.StartForm(ctx, model.Anonymous, "demo", nil)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = f.d.StartForm(ctx, alice, "missing", nil)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	form, err := f.d.StartForm(ctx, alice, "demo", &model.RequestDetails{RemoteAddr: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, model.ActionCreate, form.Action)
	assert.Equal(t, "start", form.ActivityKey)
	assert.Equal(t, "Apply", form.ActivityName)
	assert.False(t, form.ReadOnly)
	assert.Contains(t, form.AllowedActions, model.ActionValidate)

	req, err := f.forms.RetrieveRequest(ctx, form.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "alice", req.Principal)
	assert.Equal(t, "1", req.DeploymentID)
	assert.Equal(t, "10.0.0.1", req.RemoteAddr)
	assert.Equal(t, []string{form.RequestID}, f.tracker.tracked)
}

func TestRequestForm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	form, err := f.d.StartForm(ctx, alice, "demo", nil)
	require.NoError(t, err)

	_, err = f.d.RequestForm(ctx, alice, "demo", "nope")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = f.d.RequestForm(ctx, alice, "other", form.RequestID)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err), "request of another process")

	_, err = f.d.RequestForm(ctx, carol, "demo", form.RequestID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err), "another principal")

	_, err = f.d.RequestForm(ctx, model.Anonymous, "demo", form.RequestID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err), "anonymous create request")

	first, err := f.d.RequestForm(ctx, alice, "demo", form.RequestID)
	require.NoError(t, err)
	second, err := f.d.RequestForm(ctx, alice, "demo", form.RequestID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, form.RequestID, first.RequestID)
}

func TestRequestFormUndefinedAction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	require.NoError(t, f.forms.StoreRequest(ctx, &model.FormRequest{
		RequestID:            "noaction",
		ProcessDefinitionKey: "demo",
		Principal:            "alice",
	}))
	_, err := f.d.RequestForm(ctx, alice, "demo", "noaction")
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}

func TestSubmitValidationRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	form, err := f.d.StartForm(ctx, alice, "demo", nil)
	require.NoError(t, err)

	_, submitErr := f.d.SubmitForm(ctx, alice, "demo", form.RequestID, &Input{
		Data: map[string][]string{"ssn": {"123"}},
	})
	require.Equal(t, http.StatusBadRequest, statusOf(t, submitErr))
	v := ValidationOf(submitErr)
	require.NotNil(t, v)
	assert.False(t, v.Valid())
	assert.Contains(t, v.Results, "name")
	assert.NotContains(t, v.Data, "ssn", "restricted values are not kept with the validation")

	req, err := f.d.Request(ctx, alice, "demo", form.RequestID)
	require.NoError(t, err)
	recovered, err := f.d.Recover(ctx, alice, req, submitErr)
	require.NoError(t, err)
	assert.NotEqual(t, form.RequestID, recovered.RequestID)
	assert.Equal(t, model.ActionCreate, recovered.Action)
	assert.Equal(t, v.ID, recovered.ValidationID)
	assert.Contains(t, recovered.Results, "name")

	// the recovered request re-renders the same validation
	again, err := f.d.RequestForm(ctx, alice, "demo", recovered.RequestID)
	require.NoError(t, err)
	assert.Equal(t, recovered.Results, again.Results)

	byValidation, err := f.d.ValidationForm(ctx, alice, "demo", v.ID)
	require.NoError(t, err)
	assert.Equal(t, form.RequestID, byValidation.RequestID)
	assert.Contains(t, byValidation.Results, "name")
	assert.NotContains(t, byValidation.Data, "ssn")

	_, err = f.d.ValidationForm(ctx, alice, "demo", "nope")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	_, err = f.d.ValidationForm(ctx, carol, "demo", v.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}

func TestValidateForm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	form, err := f.d.StartForm(ctx, alice, "demo", nil)
	require.NoError(t, err)

	v, err := f.d.ValidateForm(ctx, alice, "demo", form.RequestID, &Input{
		Data: map[string][]string{"name": {"Alice"}},
	})
	require.NoError(t, err)
	assert.True(t, v.Valid())

	// validating does not progress the request
	again, err := f.d.RequestForm(ctx, alice, "demo", form.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.ActionCreate, again.Action)

	anon, err := f.d.StartForm(ctx, model.Anonymous, "demo", nil)
	require.NoError(t, err)
	_, err = f.d.ValidateForm(ctx, model.Anonymous, "demo", anon.RequestID, nil)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err), "anonymous validate")
}

func TestSubmitComplete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	form, err := f.d.StartForm(ctx, alice, "demo", nil)
	require.NoError(t, err)

	resp, err := f.d.SubmitForm(ctx, alice, "demo", form.RequestID, &Input{
		Data: map[string][]string{"name": {"Alice"}, "ssn": {"123"}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Instance)
	require.NotNil(t, resp.Task)
	assert.Equal(t, "review", resp.Task.ActivityKey)

	// alice is not a reviewer so she is shown a confirmation
	next := resp.NextRequest
	assert.Equal(t, model.ActionComplete, next.Action)
	assert.Equal(t, form.RequestID, next.PreviousRequestID)
	assert.Equal(t, resp.Instance.ID, next.ProcessInstanceID)

	assert.Equal(t, []string{"Alice"}, resp.Submission.Data["name"])
	assert.Equal(t, []string{"123"}, resp.Submission.RestrictedData["ssn"])
	assert.NotContains(t, resp.Submission.Data, "ssn")

	done, err := f.d.RequestForm(ctx, alice, "demo", next.RequestID)
	require.NoError(t, err)
	assert.True(t, done.Done)
	assert.True(t, done.ReadOnly)
	assert.Equal(t, []string{"Alice"}, done.Data["name"])
	assert.NotContains(t, done.Data, "ssn")

	_, err = f.d.SubmitForm(ctx, carol, "demo", form.RequestID, &Input{
		Data: map[string][]string{"name": {"Carol"}},
	})
	assert.Equal(t, http.StatusForbidden, statusOf(t, err), "other principals do not learn the request was submitted")

	_, err = f.d.SubmitForm(ctx, alice, "demo", form.RequestID, &Input{
		Data: map[string][]string{"name": {"Alice"}},
	})
	assert.Equal(t, http.StatusConflict, statusOf(t, err), "superseded request")

	_, err = f.d.SubmitForm(ctx, alice, "demo", next.RequestID, nil)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err), "confirmation requests accept no actions")
}

func TestSubmitKeepsEditableFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	form, err := f.d.StartForm(ctx, alice, "demo", nil)
	require.NoError(t, err)
	resp, err := f.d.SubmitForm(ctx, alice, "demo", form.RequestID, &Input{
		Data: map[string][]string{
			"name":     {"Alice"},
			"decision": {"ok"},
			"stray":    {"x"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"name": {"Alice"}}, resp.Submission.Data)

	i, err := f.engine.RetrieveInstance(ctx, resp.Instance.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"name": {"Alice"}}, i.Data)

	// the reviewer sees what was submitted before
	tf, err := f.d.TaskForm(ctx, bob, "demo", resp.Task.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, tf.Data["name"])
	assert.NotContains(t, tf.Data, "ssn")

	again, err := f.d.RequestForm(ctx, bob, "demo", tf.RequestID)
	require.NoError(t, err)
	assert.Equal(t, tf.Data, again.Data)

	resp, err = f.d.SubmitForm(ctx, bob, "demo", tf.RequestID, &Input{
		Data: map[string][]string{"decision": {"ok"}, "name": {"Mallory"}},
	})
	require.NoError(t, err)
	assert.NotContains(t, resp.Submission.Data, "name", "read-only values are dropped")

	i, err = f.engine.RetrieveInstance(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, i.Data["name"])
	assert.Equal(t, []string{"ok"}, i.Data["decision"])
}

func TestSubmitAnonymous(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	form, err := f.d.StartForm(ctx, model.Anonymous, "demo", nil)
	require.NoError(t, err)
	assert.True(t, form.Anonymous)
	assert.Equal(t, []model.ActionType{model.ActionComplete, model.ActionReject}, form.AllowedActions)

	resp, err := f.d.SubmitForm(ctx, model.Anonymous, "demo", form.RequestID, &Input{
		Data: map[string][]string{"name": {"Anon"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "", resp.Instance.Initiator)

	done, err := f.d.RequestForm(ctx, model.Anonymous, "demo", resp.NextRequest.RequestID)
	require.NoError(t, err)
	assert.True(t, done.Done)
}

func TestRejectStartForm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	form, err := f.d.StartForm(ctx, alice, "demo", nil)
	require.NoError(t, err)
	resp, err := f.d.SubmitForm(ctx, alice, "demo", form.RequestID, &Input{Action: model.ActionReject})
	require.NoError(t, err, "rejection skips required fields")
	assert.Nil(t, resp.Instance)
	assert.Equal(t, model.ActionReject, resp.NextRequest.Action)
}

func TestTaskForm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	form, err := f.d.StartForm(ctx, alice, "demo", nil)
	require.NoError(t, err)
	resp, err := f.d.SubmitForm(ctx, alice, "demo", form.RequestID, &Input{
		Data: map[string][]string{"name": {"Alice"}},
	})
	require.NoError(t, err)
	taskID := resp.Task.ID

	_, err = f.d.TaskForm(ctx, model.Anonymous, "demo", taskID, nil)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
	require.Len(t, f.tracker.alarms, 1)
	assert.Equal(t, AlarmUrgent, f.tracker.alarms[0].severity)

	_, err = f.d.TaskForm(ctx, carol, "demo", taskID, nil)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err), "not a reviewer")

	_, err = f.d.TaskForm(ctx, bob, "demo", "nope", nil)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	tf, err := f.d.TaskForm(ctx, bob, "demo", taskID, nil)
	require.NoError(t, err)
	assert.Equal(t, "review", tf.ActivityKey)
	require.NotNil(t, tf.Task)
	assert.Equal(t, taskID, tf.Task.ID)

	_, err = f.d.SubmitForm(ctx, bob, "demo", tf.RequestID, &Input{
		Data: map[string][]string{"decision": {"maybe"}},
	})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err), "unknown option")

	resp, err = f.d.SubmitForm(ctx, bob, "demo", tf.RequestID, &Input{
		Action: model.ActionComplete,
		Data:   map[string][]string{"decision": {"ok"}},
	})
	require.NoError(t, err)
	assert.Nil(t, resp.Task, "review is the last activity")
	assert.Equal(t, model.ActionComplete, resp.NextRequest.Action)

	_, err = f.d.TaskForm(ctx, bob, "demo", taskID, nil)
	assert.Equal(t, http.StatusConflict, statusOf(t, err), "closed task")

	i, err := f.engine.RetrieveInstance(ctx, resp.Submission.ProcessInstanceID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusComplete, i.Status)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	form, err := f.d.StartForm(ctx, alice, "demo", nil)
	require.NoError(t, err)
	_, err = f.d.SubmitForm(ctx, alice, "demo", form.RequestID, &Input{
		Data: map[string][]string{"name": {"Alice"}},
	})
	require.NoError(t, err)

	_, err = f.d.Search(ctx, model.Anonymous, "demo", nil)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
	require.Len(t, f.tracker.alarms, 1)

	tasks, err := f.d.Search(ctx, bob, "demo", nil)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "review", tasks[0].ActivityKey)

	tasks, err = f.d.Search(ctx, carol, "demo", nil)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestAttachments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	form, err := f.d.StartForm(ctx, alice, "demo", nil)
	require.NoError(t, err)
	assert.Contains(t, form.Links, "attachment")

	upload := func(name string) *attachment.Upload {
		return &attachment.Upload{Name: name, ContentType: "text/plain", Size: 5, Content: strings.NewReader("hello")}
	}

	_, err = f.d.SubmitForm(ctx, alice, "demo", form.RequestID, &Input{Action: model.ActionAttach})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err), "nothing uploaded")

	resp, err := f.d.SubmitForm(ctx, alice, "demo", form.RequestID, &Input{
		Action:  model.ActionAttach,
		Uploads: []*attachment.Upload{upload("a.txt"), upload("b.txt")},
	})
	require.NoError(t, err)
	require.Len(t, resp.Submission.Attachments, 2)
	assert.Equal(t, form.RequestID, resp.NextRequest.RequestID, "attach does not progress the request")

	_, err = f.d.SubmitForm(ctx, alice, "demo", form.RequestID, &Input{
		Action:  model.ActionAttach,
		Uploads: []*attachment.Upload{upload("c.txt")},
	})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err), "over the limit")

	id := resp.Submission.Attachments[0].ID
	a, rc, err := f.d.Attachment(ctx, alice, "demo", form.RequestID, id)
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
	assert.Equal(t, "a.txt", a.Name)

	_, _, err = f.d.Attachment(ctx, carol, "demo", form.RequestID, id)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = f.d.SubmitForm(ctx, alice, "demo", form.RequestID, &Input{Action: model.ActionRemove, AttachmentID: id})
	require.NoError(t, err)
	_, _, err = f.d.Attachment(ctx, alice, "demo", form.RequestID, id)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	rendered, err := f.d.RequestForm(ctx, alice, "demo", form.RequestID)
	require.NoError(t, err)
	assert.Len(t, rendered.Attachments, 1)
}

func TestRecover(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	form, err := f.d.StartForm(ctx, alice, "demo", nil)
	require.NoError(t, err)
	req, err := f.d.Request(ctx, alice, "demo", form.RequestID)
	require.NoError(t, err)

	for _, cause := range []error{
		&ForbiddenError{},
		&NotFoundError{},
		&ConflictError{},
		&GoneError{},
	} {
		_, err := f.d.Recover(ctx, alice, req, cause)
		assert.Same(t, cause, err)
	}

	recovered, err := f.d.Recover(ctx, alice, req, errors.New("boom"))
	require.NoError(t, err)
	require.NotNil(t, recovered.Explanation)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), recovered.Explanation.Message)
	assert.NotContains(t, recovered.Explanation.MessageDetail, "boom")

	stored, err := f.forms.RetrieveRequest(ctx, recovered.RequestID)
	require.NoError(t, err)
	assert.Equal(t, req.RequestID, stored.PreviousRequestID)
	assert.NotNil(t, stored.Explanation)
}

func TestDeletedProcess(t *testing.T) {
	ctx := context.Background()
	processes := processinmem.New()
	require.NoError(t, processes.StoreProcess(ctx, &model.Process{Key: "demo"}))
	require.NoError(t, processes.StoreDeployment(ctx, "demo", testDeployment()))
	require.NoError(t, processes.PublishDeployment(ctx, "demo", "1", time.Now()))
	require.NoError(t, processes.DeleteProcess(ctx, "demo"))

	d := New(cache.New(processes, 0), inmem.New(), engine.New(engineinmem.New()))
	_, err := d.StartForm(ctx, alice, "demo", nil)
	assert.Equal(t, http.StatusGone, statusOf(t, err))
}
