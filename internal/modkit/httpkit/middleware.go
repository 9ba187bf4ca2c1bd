package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	phttp "facewarden/internal/platform/net/http"
	"facewarden/internal/platform/net/middleware"
)

// BaseStack returns the middleware every route shares, including raw media
// and WebSocket upgrades. It must be installed on the root mux before any
// route is registered so the heartbeat and slash handling see all paths
func BaseStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		// tracing / correlation
		middleware.RequestID(),
		middleware.RealIP(),

		// safety
		middleware.RecoverJSON,

		// cache / freshness
		middleware.NoCache(),

		// observability
		middleware.Logger(),

		// cross-origin (tweak config in main if needed)
		middleware.CORS(middleware.CORSOptions{}),

		// /health is a real handler with webhook state, so the bare
		// liveness ping lives elsewhere
		middleware.Heartbeat("/ping"),
		middleware.RedirectSlashes(),
		middleware.StripSlashes(),
	}
}

// ScopeStack returns the additions for buffered JSON routes. Compression
// and the request timeout both break connection hijack, so upgrade routes
// must never pass through these
func ScopeStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.Compress(flate.BestSpeed),
		middleware.Timeout(30 * time.Second),
	}
}

// CommonStack returns the full baseline for a mux that serves only
// buffered JSON, BaseStack then ScopeStack
func CommonStack() []func(http.Handler) http.Handler {
	return append(BaseStack(), ScopeStack()...)
}

// Auth wires the auth middleware to the platform JSON writer
func Auth(p middleware.AuthPort) func(http.Handler) http.Handler {
	// middleware expects write func(w http.ResponseWriter, status int, body any)
	// use phttp.JSON which matches that signature
	return middleware.Auth(p, phttp.JSON)
}
