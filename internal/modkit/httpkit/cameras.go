package httpkit

import (
	"net/http"

	"facewarden/internal/platform/logger"
	pnet "facewarden/internal/platform/net"
)

// CameraScope stamps the agent's camera id onto every request context so
// handlers and request logs carry it without threading it by hand
// empty camera id makes this a no op
func CameraScope(cameraID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cameraID != "" {
				ctx := pnet.WithRequest(r.Context(), "", cameraID)
				ctx = logger.WithRequest(ctx, "", cameraID)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}
