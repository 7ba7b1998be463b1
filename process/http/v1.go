package http

import (
	"net/http"

	"github.com/piecework/piecework/process/storage"

	"github.com/micromdm/nanolib/log"
)

// Mux can register HTTP handlers.
// Ostensibly this supports flow router.
type Mux interface {
	// Handle registers the handler for the given pattern.
	Handle(pattern string, handler http.Handler, methods ...string)
}

// HandleAPIv1 registers the process API handlers into mux.
// API endpoint paths are prepended with prefix.
// Writes invalidate inv, which may be nil.
// Authentication or any other layered handlers are not present.
// The logger is adorned with a "handler" key of the endpoint name.
func HandleAPIv1(prefix string, mux Mux, logger log.Logger, store storage.Storage, inv Invalidator) {
	mux.Handle(
		prefix+"/processes",
		GetProcessesHandler(store, logger.With("handler", "get processes")),
		"GET",
	)
	mux.Handle(
		prefix+"/process/:key",
		GetProcessHandler(store, logger.With("handler", "get process")),
		"GET",
	)
	mux.Handle(
		prefix+"/process/:key",
		PutProcessHandler(store, inv, logger.With("handler", "put process")),
		"PUT",
	)
	mux.Handle(
		prefix+"/process/:key",
		DeleteProcessHandler(store, inv, logger.With("handler", "delete process")),
		"DELETE",
	)
	mux.Handle(
		prefix+"/process/:key/deployment/:id/publish",
		PublishDeploymentHandler(store, inv, logger.With("handler", "publish deployment")),
		"POST",
	)
	mux.Handle(
		prefix+"/process/:key/deployment/:id",
		GetDeploymentHandler(store, logger.With("handler", "get deployment")),
		"GET",
	)
	mux.Handle(
		prefix+"/process/:key/deployment/:id",
		PutDeploymentHandler(store, inv, logger.With("handler", "put deployment")),
		"PUT",
	)
}
