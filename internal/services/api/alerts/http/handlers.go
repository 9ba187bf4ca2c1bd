// Package http provides the manual alert injection endpoints
package http

import (
	stdhttp "net/http"

	"facewarden/internal/modkit/httpkit"
	perr "facewarden/internal/platform/errors"
	"facewarden/internal/services/api/alerts/domain"
	"facewarden/internal/services/pipeline"
)

// Deps are the handler dependencies
type Deps struct {
	Injector domain.Injector
}

type handlers struct {
	deps Deps
}

// Register mounts the alert routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}

	httpkit.Post(r, "/unknown-person-alert", h.unknownPerson)
	httpkit.Post(r, "/verified-person-alert", h.verifiedPerson)
}

// swagger:route POST /unknown-person-alert Alerts alertsUnknownPerson
// @Summary Inject an unknown-person detection from an external detector
// @Tags Alerts
// @Accept mpfd
// @Produce json
// @Success 200 type domain.AlertReceipt ok
// @Router /unknown-person-alert [post]
func (h *handlers) unknownPerson(r *stdhttp.Request) (any, error) {
	form, box, err := parseForm(r)
	if err != nil {
		return nil, err
	}

	rc, err := h.deps.Injector.Inject(r.Context(), pipeline.ManualAlert{
		CameraID:   form.CameraID,
		Confidence: form.Confidence,
		Box:        box,
		JPEG:       form.Frame,
		Metadata:   withClient(r, form.Metadata),
	})
	if err != nil {
		return nil, err
	}
	return receipt(rc), nil
}

// swagger:route POST /verified-person-alert Alerts alertsVerifiedPerson
// @Summary Inject a verified-person detection from an external detector
// @Tags Alerts
// @Accept mpfd
// @Produce json
// @Success 200 type domain.AlertReceipt ok
// @Router /verified-person-alert [post]
func (h *handlers) verifiedPerson(r *stdhttp.Request) (any, error) {
	form, box, err := parseForm(r)
	if err != nil {
		return nil, err
	}
	if form.PersonName == "" {
		return nil, perr.Validationf("person_name is required")
	}

	rc, err := h.deps.Injector.Inject(r.Context(), pipeline.ManualAlert{
		CameraID:   form.CameraID,
		Name:       form.PersonName,
		Confidence: form.MatchConfidence,
		Box:        box,
		JPEG:       form.Frame,
		Metadata:   withClient(r, form.Metadata),
	})
	if err != nil {
		return nil, err
	}
	return receipt(rc), nil
}

// withClient records which authenticated caller submitted the alert so the
// webhook consumer can tell detector nodes apart. Unauthenticated mounts
// pass metadata through untouched
func withClient(r *stdhttp.Request, meta map[string]any) map[string]any {
	cid, err := httpkit.Client(r)
	if err != nil {
		return meta
	}
	if meta == nil {
		meta = make(map[string]any, 1)
	}
	meta["client_id"] = cid
	return meta
}

func receipt(rc pipeline.Receipt) domain.AlertReceipt {
	return domain.AlertReceipt{
		Dispatched: rc.Dispatched,
		EventType:  string(rc.Type),
		FrameURL:   rc.FrameURL,
	}
}
