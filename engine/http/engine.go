// Package http contains HTTP handlers that work with the Piecework task engine.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/piecework/piecework/engine/storage"
	"github.com/piecework/piecework/http/api"
	"github.com/piecework/piecework/log/logkeys"
	"github.com/piecework/piecework/model"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

var ErrNoTaskID = errors.New("no task id provided")

// TaskReader retrieves and searches tasks.
type TaskReader interface {
	RetrieveTask(ctx context.Context, id string) (*model.Task, error)
	SearchTasks(ctx context.Context, c *storage.TaskCriteria) ([]*model.Task, error)
}

func statusCode(err error) int {
	if errors.Is(err, storage.ErrTaskNotFound) || errors.Is(err, storage.ErrInstanceNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// GetTaskHandler creates a HandlerFunc that returns a task as JSON.
func GetTaskHandler(tasks TaskReader, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		id := flow.Param(r.Context(), "id")
		if id == "" {
			logger.Info(logkeys.Message, "parameters", logkeys.Error, ErrNoTaskID)
			api.JSONError(w, ErrNoTaskID, http.StatusBadRequest)
			return
		}
		logger = logger.With(logkeys.TaskID, id)
		t, err := tasks.RetrieveTask(r.Context(), id)
		if err != nil {
			logger.Info(logkeys.Message, "retrieving task", logkeys.Error, err)
			api.JSONError(w, err, statusCode(err))
			return
		}
		if err = api.JSON(w, t, 0); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}

// CriteriaFromRequest reads task search criteria from the query string.
// Supported parameters are process (repeatable), instance, status,
// assignee, and group (repeatable).
func CriteriaFromRequest(r *http.Request) *storage.TaskCriteria {
	q := r.URL.Query()
	return &storage.TaskCriteria{
		ProcessDefinitionKeys: q["process"],
		ProcessInstanceID:     q.Get("instance"),
		Status:                model.TaskStatus(q.Get("status")),
		Assignee:              q.Get("assignee"),
		CandidateGroups:       q["group"],
	}
}

// SearchTasksHandler creates a HandlerFunc that returns matching tasks as JSON.
func SearchTasksHandler(tasks TaskReader, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		found, err := tasks.SearchTasks(r.Context(), CriteriaFromRequest(r))
		if err != nil {
			logger.Info(logkeys.Message, "searching tasks", logkeys.Error, err)
			api.JSONError(w, err, 0)
			return
		}
		if found == nil {
			found = []*model.Task{}
		}
		logger.Debug(logkeys.Message, "searched tasks", logkeys.GenericCount, len(found))
		if err = api.JSON(w, found, 0); err != nil {
			logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
		}
	}
}
