// Package module wires the system endpoints into the API using modkit
package module

import (
	"net/http"
	"time"

	modkit "facewarden/internal/modkit"
	"facewarden/internal/modkit/httpkit"
	str "facewarden/internal/platform/strings"

	"facewarden/internal/services/api/system/domain"
	systemhttp "facewarden/internal/services/api/system/http"
)

// Ports declares the injected collaborators for this module
type Ports struct {
	Alerting  domain.Alerting
	Roster    domain.Roster
	Telemetry domain.Telemetry
}

// Module implements the system module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler
	ports  Ports

	register func(httpkit.Router)

	startedAt time.Time
}

// New constructs the system module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("system"),
	}, opts...)...)

	var injected Ports
	if p, ok := b.Ports.(Ports); ok {
		injected = p
	}
	if injected.Alerting == nil {
		panic("system module requires an Alerting port (from services/dispatch)")
	}
	if injected.Telemetry == nil {
		panic("system module requires a Telemetry port (from services/stats)")
	}

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		ports:     injected,
		startedAt: time.Now(),
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		systemhttp.Register(r, systemhttp.Deps{
			Alerting:  injected.Alerting,
			Roster:    injected.Roster,
			Telemetry: injected.Telemetry,
			Media:     deps.Media,
			StartedAt: m.startedAt,
		})
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
