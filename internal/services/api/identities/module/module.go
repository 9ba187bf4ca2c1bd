// Package module wires the identity endpoints into the API using modkit
package module

import (
	"net/http"

	modkit "facewarden/internal/modkit"
	"facewarden/internal/modkit/httpkit"
	str "facewarden/internal/platform/strings"

	identhttp "facewarden/internal/services/api/identities/http"
)

// Ports declares the injected collaborators for this module.
// Roster may be nil when face recognition is disabled
type Ports struct {
	Roster identhttp.Roster
}

// Module implements the identities module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler
	ports  Ports

	register func(httpkit.Router)
}

// New constructs the identities module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("identities"),
	}, opts...)...)

	var injected Ports
	if p, ok := b.Ports.(Ports); ok {
		injected = p
	}

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		ports:  injected,
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		identhttp.Register(r, identhttp.Deps{Roster: injected.Roster})
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	httpkit.MountUnder(r, m.prefix, m.mws, m.register)
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }
