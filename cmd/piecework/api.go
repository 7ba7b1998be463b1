package main

import (
	enginehttp "github.com/piecework/piecework/engine/http"
	formhttp "github.com/piecework/piecework/form/http"
	processhttp "github.com/piecework/piecework/process/http"

	"github.com/alexedwards/flow"
	"github.com/micromdm/nanolib/log"
)

// handleAPIv1 registers the admin API.
func handleAPIv1(mux *flow.Mux, logger log.Logger, s *storageConfig, tasks enginehttp.TaskReader, inv processhttp.Invalidator) {
	processhttp.HandleAPIv1("/v1", mux, logger, s.process, inv)
	enginehttp.HandleAPIv1("/v1", mux, logger, tasks)
	formhttp.HandleAPIv1("/v1", mux, logger, s.form)
}
