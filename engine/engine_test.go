package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/piecework/piecework/engine/storage"
	"github.com/piecework/piecework/engine/storage/inmem"
	"github.com/piecework/piecework/model"
	processinmem "github.com/piecework/piecework/process/storage/inmem"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeployment() *model.ProcessDeployment {
	return &model.ProcessDeployment{
		ID:               "1",
		StartActivityKey: "start",
		Activities: map[string]*model.Activity{
			"start": {
				Key:         "start",
				Transitions: map[model.ActionType]string{model.ActionComplete: "review"},
			},
			"review": {
				Key:             "review",
				Name:            "Review",
				CandidateGroups: []string{"reviewers"},
				Transitions: map[model.ActionType]string{
					model.ActionComplete:  "confirm",
					model.ActionSubCreate: "consult",
				},
			},
			"consult": {Key: "consult", Name: "Consult"},
			"confirm": {Key: "confirm", Name: "Confirm", Assignee: AssigneeInitiator},
		},
	}
}

var (
	testProcess = &model.Process{Key: "demo"}
	alice       = &model.User{ID: "alice"}
	bob         = &model.User{ID: "bob", Groups: []string{"reviewers"}}
)

func TestStartAndComplete(t *testing.T) {
	ctx := context.Background()
	e := New(inmem.New())
	d := testDeployment()

	i, task, err := e.StartInstance(ctx, testProcess, d, alice, map[string][]string{"name": {"Alice"}})
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "alice", i.Initiator)
	assert.Equal(t, model.StatusOpen, i.Status)
	assert.Equal(t, "review", task.ActivityKey)
	assert.Equal(t, []string{"reviewers"}, task.CandidateGroups)
	assert.True(t, task.Actionable(bob))
	assert.False(t, task.Actionable(alice))

	next, err := e.CompleteTask(ctx, d, task.ID, model.ActionComplete, map[string][]string{"decision": {"ok"}})
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "confirm", next.ActivityKey)
	assert.Equal(t, "alice", next.Assignee, "initiator assignee resolved")

	_, err = e.CompleteTask(ctx, d, task.ID, model.ActionComplete, nil)
	assert.True(t, errors.Is(err, ErrTaskNotOpen))

	last, err := e.CompleteTask(ctx, d, next.ID, model.ActionComplete, nil)
	require.NoError(t, err)
	assert.Nil(t, last)

	i, err = e.RetrieveInstance(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusComplete, i.Status)
	assert.False(t, i.EndTime.IsZero())
	assert.Equal(t, []string{"Alice"}, i.Data["name"])
	assert.Equal(t, []string{"ok"}, i.Data["decision"])
}

func TestStartWithoutTransition(t *testing.T) {
	d := testDeployment()
	d.Activities["start"].Transitions = nil
	i, task, err := New(inmem.New()).StartInstance(context.Background(), testProcess, d, model.Anonymous, nil)
	require.NoError(t, err)
	assert.Nil(t, task)
	assert.Equal(t, model.StatusComplete, i.Status)
	assert.Empty(t, i.Initiator)
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	e := New(inmem.New())
	d := testDeployment()

	i, task, err := e.StartInstance(ctx, testProcess, d, alice, nil)
	require.NoError(t, err)

	next, err := e.CompleteTask(ctx, d, task.ID, model.ActionReject, nil)
	require.NoError(t, err)
	assert.Nil(t, next)

	i, err = e.RetrieveInstance(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, i.Status)

	task, err = e.RetrieveTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, task.Status)

	_, err = e.CompleteTask(ctx, d, task.ID, model.ActionValidate, nil)
	assert.True(t, errors.Is(err, ErrNotFinishing))
}

func TestSubtask(t *testing.T) {
	ctx := context.Background()
	e := New(inmem.New())
	d := testDeployment()

	i, task, err := e.StartInstance(ctx, testProcess, d, alice, nil)
	require.NoError(t, err)

	sub, err := e.CreateSubtask(ctx, d, task.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, "consult", sub.ActivityKey)
	assert.Equal(t, task.ID, sub.ParentTaskID)
	assert.Equal(t, "bob", sub.Assignee)

	stored, err := e.RetrieveTask(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", stored.Assignee)

	// finishing the subtask does not move the instance
	next, err := e.CompleteTask(ctx, d, sub.ID, model.ActionComplete, nil)
	require.NoError(t, err)
	assert.Nil(t, next)

	i, err = e.RetrieveInstance(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, i.Status)

	open, err := e.SearchTasks(ctx, &storage.TaskCriteria{ProcessInstanceID: i.ID, Status: model.StatusOpen})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, task.ID, open[0].ID)
}

func TestWorkerCancelsDeletedProcesses(t *testing.T) {
	ctx := context.Background()
	e := New(inmem.New())
	d := testDeployment()
	procs := processinmem.New()
	require.NoError(t, procs.StoreProcess(ctx, &model.Process{Key: "demo"}))

	i, task, err := e.StartInstance(ctx, testProcess, d, alice, nil)
	require.NoError(t, err)

	w := NewWorker(e, procs)
	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// an open task whose instance is gone can not be cancelled
	require.NoError(t, e.storage.StoreTask(ctx, &model.Task{
		ID:                   "orphan",
		ProcessInstanceID:    "i-missing",
		ProcessDefinitionKey: "demo",
		ActivityKey:          "review",
		Status:               model.StatusOpen,
	}))

	require.NoError(t, procs.DeleteProcess(ctx, "demo"))
	n, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	task, err = e.RetrieveTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, task.Status)
	i, err = e.RetrieveInstance(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, i.Status)
}
