package http

import (
	"net/http"

	"github.com/micromdm/nanolib/log"
)

// Mux can register HTTP handlers.
// Ostensibly this supports flow router.
type Mux interface {
	// Handle registers the handler for the given pattern.
	Handle(pattern string, handler http.Handler, methods ...string)
}

// HandleAPIv1 registers the task API handlers into mux.
// API endpoint paths are prepended with prefix.
// Authentication or any other layered handlers are not present.
// The logger is adorned with a "handler" key of the endpoint name.
func HandleAPIv1(prefix string, mux Mux, logger log.Logger, tasks TaskReader) {
	mux.Handle(
		prefix+"/task/:id",
		GetTaskHandler(tasks, logger.With("handler", "get task")),
		"GET",
	)
	mux.Handle(
		prefix+"/tasks",
		SearchTasksHandler(tasks, logger.With("handler", "search tasks")),
		"GET",
	)
}
