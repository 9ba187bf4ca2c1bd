package httpkit

import "net/http"

// MountUnder mounts a subrouter at prefix and applies per-module middlewares.
// An empty prefix attaches the routes to the router as a plain group so
// modules can live at the root without fighting over a mount point.
func MountUnder(r Router, prefix string, mw []func(http.Handler) http.Handler, mount func(Router)) {
	attach := func(sub Router) {
		if len(mw) > 0 {
			sub.Use(mw...)
		}
		mount(sub)
	}
	if prefix == "" || prefix == "/" {
		r.Group(attach)
		return
	}
	r.Route(prefix, attach)
}
