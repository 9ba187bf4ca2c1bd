// Package api provides the HTTP surface of the agent
package api

import (
	"net/http"

	"facewarden/internal/core/identity"
	"facewarden/internal/platform/config"
	"facewarden/internal/platform/logger"
	phttp "facewarden/internal/platform/net/http"
	"facewarden/internal/platform/store"
	"facewarden/internal/services/dispatch"
	"facewarden/internal/services/pipeline"
	"facewarden/internal/services/stats"

	"facewarden/internal/modkit"
	"facewarden/internal/modkit/httpkit"
	"facewarden/internal/modkit/module"
	"facewarden/internal/modkit/swaggerkit"

	alertsmod "facewarden/internal/services/api/alerts/module"
	feedhttp "facewarden/internal/services/api/feed/http"
	feedmod "facewarden/internal/services/api/feed/module"
	identitiesmod "facewarden/internal/services/api/identities/module"
	mediamod "facewarden/internal/services/api/media/module"
	systemmod "facewarden/internal/services/api/system/module"
)

// Options are the API options
type Options struct {
	Config config.Conf
	Log    logger.Logger

	// Media backs /detections, /frames and /clips, nil disables them
	Media *store.Store

	// Identity may be nil when face recognition is disabled
	Identity *identity.Store

	// Pipeline owns the alert injection path
	Pipeline *pipeline.Pipeline

	// Tracker backs /statistics
	Tracker *stats.Tracker

	// Dispatcher reports webhook state on /health and /status
	Dispatcher *dispatch.Dispatcher

	// Feed may be nil when the live event feed is disabled
	Feed *dispatch.Hub

	// CameraID stamps request scope for logs
	CameraID string

	// Auth guards the alert and identity endpoints when set: callers must
	// present a key it accepts, as X-API-Key or a bearer token
	Auth httpkit.KeyFunc

	EnableSwagger  bool
	EnableProfiler bool
}

// Mount mounts the agent API onto the given router. The router must be
// fresh: the base middleware registers first, and chi refuses Use once a
// route exists. Buffered endpoints add compression and a request timeout;
// the WebSocket feed mounts without them because both break the upgrade
func Mount(r phttp.Router, opt Options) {
	deps := modkit.Deps{
		Log:   opt.Log,
		Cfg:   opt.Config,
		Media: opt.Media,
	}

	sysPorts := systemmod.Ports{}
	if opt.Dispatcher != nil {
		sysPorts.Alerting = opt.Dispatcher
	}
	if opt.Tracker != nil {
		sysPorts.Telemetry = opt.Tracker
	}
	identPorts := identitiesmod.Ports{}
	if opt.Identity != nil {
		sysPorts.Roster = opt.Identity
		identPorts.Roster = opt.Identity
	}
	alertsPorts := alertsmod.Ports{}
	if opt.Pipeline != nil {
		alertsPorts.Injector = opt.Pipeline
	}
	var feedPort feedhttp.Feed
	if opt.Feed != nil {
		feedPort = opt.Feed
	}

	r.Use(append(httpkit.BaseStack(), httpkit.CameraScope(opt.CameraID))...)

	scoped := httpkit.ScopeStack()
	guarded := scoped
	if opt.Auth != nil {
		guarded = append(append([]func(http.Handler) http.Handler{}, scoped...),
			httpkit.Auth(httpkit.NewPortFunc(opt.Auth)))
	}
	mods := []module.Module{
		systemmod.New(deps,
			modkit.WithPorts(sysPorts),
			modkit.WithMiddlewares(scoped...)),
		alertsmod.New(deps,
			modkit.WithPorts(alertsPorts),
			modkit.WithMiddlewares(guarded...)),
		identitiesmod.New(deps,
			modkit.WithPorts(identPorts),
			modkit.WithMiddlewares(guarded...)),
		mediamod.New(deps,
			modkit.WithMiddlewares(scoped...)),
		feedmod.New(deps,
			modkit.WithPorts(feedmod.Ports{Feed: feedPort})),
	}

	swaggerkit.Mount(r, opt.EnableSwagger)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

	for _, m := range mods {
		module.Register(m.Name(), m.Ports())
		m.MountRoutes(r)
	}
}
