// Package http provides the enrolled identity endpoints
package http

import (
	stdhttp "net/http"

	"facewarden/internal/modkit/httpkit"
	perr "facewarden/internal/platform/errors"
)

// Roster is the identity store surface the handlers need
type Roster interface {
	Reload() error
	Names() []string
	Counts() map[string]int
	Len() int
}

// Deps are the handler dependencies. A nil Roster means face recognition
// is not enabled on this agent
type Deps struct {
	Roster Roster
}

// EnrolledFace is one identity and its stored embedding count
// swagger:model
type EnrolledFace struct {
	Name       string `json:"name" example:"alice"`
	Embeddings int    `json:"embeddings" example:"3"`
}

// EnrolledResponse lists every enrolled identity
// swagger:model
type EnrolledResponse struct {
	Enrolled []EnrolledFace `json:"enrolled"`
	Count    int            `json:"count" example:"2"`
}

// ReloadResponse reports the roster size after a reload
// swagger:model
type ReloadResponse struct {
	Reloaded      bool `json:"reloaded" example:"true"`
	EnrolledFaces int  `json:"enrolled_faces" example:"2"`
}

type handlers struct {
	deps Deps
}

// Register mounts the identity routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}

	httpkit.Get(r, "/enrolled-faces", h.enrolled)
	httpkit.Post(r, "/identities/reload", h.reload)
}

// swagger:route GET /enrolled-faces Identities identitiesEnrolled
// @Summary List enrolled identities and their embedding counts
// @Tags Identities
// @Produce json
// @Success 200 type EnrolledResponse ok
// @Router /enrolled-faces [get]
func (h *handlers) enrolled(_ *stdhttp.Request) (any, error) {
	out := EnrolledResponse{Enrolled: []EnrolledFace{}}
	if h.deps.Roster == nil {
		return out, nil
	}

	counts := h.deps.Roster.Counts()
	for _, name := range h.deps.Roster.Names() {
		out.Enrolled = append(out.Enrolled, EnrolledFace{Name: name, Embeddings: counts[name]})
	}
	out.Count = len(out.Enrolled)
	return out, nil
}

// swagger:route POST /identities/reload Identities identitiesReload
// @Summary Reload the identity database from disk
// @Tags Identities
// @Produce json
// @Success 200 type ReloadResponse ok
// @Router /identities/reload [post]
func (h *handlers) reload(_ *stdhttp.Request) (any, error) {
	if h.deps.Roster == nil {
		return nil, perr.Unavailablef("face recognition is not enabled")
	}
	if err := h.deps.Roster.Reload(); err != nil {
		return nil, perr.Unavailablef("reload identities: %v", err)
	}
	return ReloadResponse{Reloaded: true, EnrolledFaces: h.deps.Roster.Len()}, nil
}
