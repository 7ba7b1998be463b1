// Package http contains HTTP handlers for administering processes and their deployments.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/piecework/piecework/http/api"
	"github.com/piecework/piecework/log/logkeys"
	"github.com/piecework/piecework/model"
	"github.com/piecework/piecework/process/storage"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

var (
	ErrNoKey          = errors.New("no process key provided")
	ErrNoDeploymentID = errors.New("no deployment id provided")
)

// Invalidator drops cached copies of a process and its deployments.
type Invalidator interface {
	Invalidate(key string)
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, storage.ErrProcessNotFound), errors.Is(err, storage.ErrDeploymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDeploymentPublished):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func invalidate(inv Invalidator, key string) {
	if inv != nil {
		inv.Invalidate(key)
	}
}

func writeJSON(w http.ResponseWriter, logger log.Logger, v interface{}) {
	if err := api.JSON(w, v, 0); err != nil {
		logger.Info(logkeys.Message, "encoding json response", logkeys.Error, err)
	}
}

// keyParam reads the process key or writes an error.
func keyParam(w http.ResponseWriter, r *http.Request, logger log.Logger) string {
	key := flow.Param(r.Context(), "key")
	if key == "" {
		logger.Info(logkeys.Message, "key parameter", logkeys.Error, ErrNoKey)
		api.JSONError(w, ErrNoKey, http.StatusBadRequest)
	}
	return key
}

// GetProcessHandler returns an HTTP handler that fetches a process.
func GetProcessHandler(store storage.ReadStorage, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		key := keyParam(w, r, logger)
		if key == "" {
			return
		}
		logger = logger.With(logkeys.ProcessKey, key)
		p, err := store.RetrieveProcess(r.Context(), key)
		if err != nil {
			logger.Info(logkeys.Message, "retrieving process", logkeys.Error, err)
			api.JSONError(w, err, statusCode(err))
			return
		}
		writeJSON(w, logger, p)
	}
}

// GetProcessesHandler returns an HTTP handler that lists every process.
func GetProcessesHandler(store storage.ReadStorage, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		processes, err := store.RetrieveProcesses(r.Context())
		if err != nil {
			logger.Info(logkeys.Message, "retrieving processes", logkeys.Error, err)
			api.JSONError(w, err, 0)
			return
		}
		if processes == nil {
			processes = []*model.Process{}
		}
		logger.Debug(logkeys.Message, "retrieved processes", logkeys.GenericCount, len(processes))
		writeJSON(w, logger, processes)
	}
}

// PutProcessHandler returns an HTTP handler that stores a process.
// The key of the path overrides any key in the body.
func PutProcessHandler(store storage.Storage, inv Invalidator, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		key := keyParam(w, r, logger)
		if key == "" {
			return
		}
		logger = logger.With(logkeys.ProcessKey, key)
		p := new(model.Process)
		if err := json.NewDecoder(r.Body).Decode(p); err != nil {
			logger.Info(logkeys.Message, "decoding body", logkeys.Error, err)
			api.JSONError(w, err, http.StatusBadRequest)
			return
		}
		p.Key = key
		// the current deployment only changes by publishing
		p.DeploymentID = ""
		existing, err := store.RetrieveProcess(r.Context(), key)
		if err == nil {
			p.DeploymentID = existing.DeploymentID
		} else if !errors.Is(err, storage.ErrProcessNotFound) {
			logger.Info(logkeys.Message, "retrieving process", logkeys.Error, err)
			api.JSONError(w, err, 0)
			return
		}
		if err = store.StoreProcess(r.Context(), p); err != nil {
			logger.Info(logkeys.Message, "storing process", logkeys.Error, err)
			api.JSONError(w, err, statusCode(err))
			return
		}
		invalidate(inv, key)
		logger.Debug(logkeys.Message, "stored process")
		w.WriteHeader(http.StatusNoContent)
	}
}

// DeleteProcessHandler returns an HTTP handler that marks a process deleted.
func DeleteProcessHandler(store storage.Storage, inv Invalidator, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		key := keyParam(w, r, logger)
		if key == "" {
			return
		}
		logger = logger.With(logkeys.ProcessKey, key)
		if err := store.DeleteProcess(r.Context(), key); err != nil {
			logger.Info(logkeys.Message, "deleting process", logkeys.Error, err)
			api.JSONError(w, err, statusCode(err))
			return
		}
		invalidate(inv, key)
		logger.Debug(logkeys.Message, "deleted process")
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetDeploymentHandler returns an HTTP handler that fetches a deployment.
func GetDeploymentHandler(store storage.ReadStorage, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		key := keyParam(w, r, logger)
		if key == "" {
			return
		}
		id := flow.Param(r.Context(), "id")
		logger = logger.With(logkeys.ProcessKey, key, logkeys.DeploymentID, id)
		d, err := store.RetrieveDeployment(r.Context(), key, id)
		if err != nil {
			logger.Info(logkeys.Message, "retrieving deployment", logkeys.Error, err)
			api.JSONError(w, err, statusCode(err))
			return
		}
		writeJSON(w, logger, d)
	}
}

// PutDeploymentHandler returns an HTTP handler that stores a deployment.
// Published deployments can not be changed.
func PutDeploymentHandler(store storage.Storage, inv Invalidator, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		key := keyParam(w, r, logger)
		if key == "" {
			return
		}
		id := flow.Param(r.Context(), "id")
		if id == "" {
			logger.Info(logkeys.Message, "id parameter", logkeys.Error, ErrNoDeploymentID)
			api.JSONError(w, ErrNoDeploymentID, http.StatusBadRequest)
			return
		}
		logger = logger.With(logkeys.ProcessKey, key, logkeys.DeploymentID, id)
		d := new(model.ProcessDeployment)
		if err := json.NewDecoder(r.Body).Decode(d); err != nil {
			logger.Info(logkeys.Message, "decoding body", logkeys.Error, err)
			api.JSONError(w, err, http.StatusBadRequest)
			return
		}
		d.ID = id
		if err := d.Validate(); err != nil {
			logger.Info(logkeys.Message, "validating deployment", logkeys.Error, err)
			api.JSONError(w, err, http.StatusBadRequest)
			return
		}
		if err := store.StoreDeployment(r.Context(), key, d); err != nil {
			logger.Info(logkeys.Message, "storing deployment", logkeys.Error, err)
			api.JSONError(w, err, statusCode(err))
			return
		}
		invalidate(inv, key)
		logger.Debug(logkeys.Message, "stored deployment", logkeys.GenericCount, len(d.Activities))
		w.WriteHeader(http.StatusNoContent)
	}
}

// PublishDeploymentHandler returns an HTTP handler that publishes a
// deployment as the current deployment of its process.
func PublishDeploymentHandler(store storage.Storage, inv Invalidator, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := ctxlog.Logger(r.Context(), logger)
		key := keyParam(w, r, logger)
		if key == "" {
			return
		}
		id := flow.Param(r.Context(), "id")
		logger = logger.With(logkeys.ProcessKey, key, logkeys.DeploymentID, id)
		if err := store.PublishDeployment(r.Context(), key, id, time.Now()); err != nil {
			logger.Info(logkeys.Message, "publishing deployment", logkeys.Error, err)
			api.JSONError(w, err, statusCode(err))
			return
		}
		invalidate(inv, key)
		logger.Debug(logkeys.Message, "published deployment")
		w.WriteHeader(http.StatusNoContent)
	}
}
