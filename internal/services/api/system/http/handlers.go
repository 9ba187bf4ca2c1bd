// Package http provides the system endpoints: health, status, statistics
package http

import (
	stdhttp "net/http"
	"time"

	"facewarden/internal/core/version"
	"facewarden/internal/modkit/httpkit"
	"facewarden/internal/platform/store"
	"facewarden/internal/services/api/system/domain"
)

// Deps are the handler dependencies
type Deps struct {
	Alerting  domain.Alerting
	Roster    domain.Roster
	Telemetry domain.Telemetry
	Media     *store.Store
	StartedAt time.Time
}

type handlers struct {
	deps Deps
}

// Register mounts the system routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}

	httpkit.Get(r, "/health", h.health)
	httpkit.Get(r, "/status", h.status)
	httpkit.Get(r, "/statistics", h.statistics)
}

// swagger:route GET /health System systemHealth
// @Summary Liveness and webhook state
// @Tags System
// @Produce json
// @Success 200 type domain.HealthResponse ok
// @Router /health [get]
func (h *handlers) health(_ *stdhttp.Request) (any, error) {
	return domain.HealthResponse{
		Status:         "ok",
		WebhookEnabled: h.deps.Alerting.WebhookEnabled(),
		WebhookURL:     h.deps.Alerting.WebhookURL(),
	}, nil
}

// swagger:route GET /status System systemStatus
// @Summary Agent status with recognition and storage detail
// @Tags System
// @Produce json
// @Success 200 type domain.StatusResponse ok
// @Router /status [get]
func (h *handlers) status(_ *stdhttp.Request) (any, error) {
	rec := domain.RecognitionInfo{}
	if h.deps.Roster != nil {
		rec.Enabled = true
		rec.EnrolledFaces = h.deps.Roster.Len()
	}

	st := domain.StorageInfo{}
	if h.deps.Media != nil {
		if h.deps.Media.Frames != nil {
			st.FramesStored = h.deps.Media.Frames.Len()
		}
		if h.deps.Media.Clips != nil {
			st.ClipsStored = h.deps.Media.Clips.Len()
		}
	}

	return domain.StatusResponse{
		Status: "ok",
		System: domain.SystemInfo{
			Running:        true,
			APIVersion:     version.APIVersion,
			WebhookEnabled: h.deps.Alerting.WebhookEnabled(),
			UptimeSeconds:  int64(time.Since(h.deps.StartedAt) / time.Second),
		},
		FaceRecognition: rec,
		Storage:         st,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// swagger:route GET /statistics System systemStatistics
// @Summary Runtime counters for the pipeline and dispatcher
// @Tags System
// @Produce json
// @Success 200 type stats.Snapshot ok
// @Router /statistics [get]
func (h *handlers) statistics(_ *stdhttp.Request) (any, error) {
	return h.deps.Telemetry.Snapshot(), nil
}
