// Package module wires the manual alert endpoints into the API using modkit
package module

import (
	"net/http"

	modkit "facewarden/internal/modkit"
	"facewarden/internal/modkit/httpkit"
	str "facewarden/internal/platform/strings"

	"facewarden/internal/services/api/alerts/domain"
	alertshttp "facewarden/internal/services/api/alerts/http"
)

// Ports declares the injected collaborators for this module
type Ports struct {
	Injector domain.Injector
}

// Module implements the alerts module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler
	ports  Ports

	register func(httpkit.Router)
}

// New constructs the alerts module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("alerts"),
	}, opts...)...)

	var injected Ports
	if p, ok := b.Ports.(Ports); ok {
		injected = p
	}
	if injected.Injector == nil {
		panic("alerts module requires an Injector port (from services/pipeline)")
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
		alertshttp.Register(r, alertshttp.Deps{Injector: injected.Injector})
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
