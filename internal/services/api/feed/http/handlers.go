// Package http provides the live event feed endpoint
package http

import (
	stdhttp "net/http"

	"facewarden/internal/modkit/httpkit"
	perr "facewarden/internal/platform/errors"
)

// Feed is the hub surface the handler needs
type Feed interface {
	ServeWS(w stdhttp.ResponseWriter, r *stdhttp.Request)
}

// Deps are the handler dependencies
type Deps struct {
	Feed Feed
}

type handlers struct {
	deps Deps
}

// Register mounts the feed routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}

	r.Get("/ws", h.ws)
}

// swagger:route GET /ws Feed feedWS
// @Summary WebSocket upgrade streaming every dispatched event
// @Tags Feed
// @Success 101 upgrade
// @Router /ws [get]
func (h *handlers) ws(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if h.deps.Feed == nil {
		httpkit.RespondError(w, r, perr.Unavailablef("live feed is not enabled"))
		return
	}
	h.deps.Feed.ServeWS(w, r)
}
