// Package module wires the live feed endpoint into the API using modkit.
// The feed takes no scoped middleware: response compression and request
// timeouts both break the WebSocket upgrade
package module

import (
	"net/http"

	modkit "facewarden/internal/modkit"
	"facewarden/internal/modkit/httpkit"
	str "facewarden/internal/platform/strings"

	feedhttp "facewarden/internal/services/api/feed/http"
)

// Ports declares the injected collaborators for this module.
// Feed may be nil when the live feed is disabled
type Ports struct {
	Feed feedhttp.Feed
}

// Module implements the feed module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler
	ports  Ports

	register func(httpkit.Router)
}

// New constructs the feed module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("feed"),
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
		feedhttp.Register(r, feedhttp.Deps{Feed: injected.Feed})
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
