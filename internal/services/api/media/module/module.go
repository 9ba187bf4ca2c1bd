// Package module wires the media endpoints into the API using modkit
package module

import (
	"net/http"

	modkit "facewarden/internal/modkit"
	"facewarden/internal/modkit/httpkit"
	str "facewarden/internal/platform/strings"

	mediahttp "facewarden/internal/services/api/media/http"
)

// Module implements the media module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	register func(httpkit.Router)
}

// New constructs the media module. The archives come from deps.Media and
// may be nil when storage is disabled
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("media"),
	}, opts...)...)

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		mediahttp.Register(r, mediahttp.Deps{Media: deps.Media})
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
func (m *Module) Ports() any { return nil }
