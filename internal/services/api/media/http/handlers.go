// Package http provides the detection history and raw media endpoints.
// History is a read of the frame archive: filenames carry the event kind,
// person slug, and capture time, so no separate journal exists
package http

import (
	stdhttp "net/http"
	"strconv"
	"time"

	"facewarden/internal/core/event"
	"facewarden/internal/modkit/httpkit"
	perr "facewarden/internal/platform/errors"
	"facewarden/internal/platform/store"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Deps are the handler dependencies
type Deps struct {
	Media *store.Store
}

// DetectionRecord is one reconstructed alert
// swagger:model
type DetectionRecord struct {
	EventType  string `json:"event_type" example:"unknown_person_detected"`
	PersonName string `json:"person_name,omitempty" example:"alice"`
	Timestamp  string `json:"timestamp" example:"2025-08-23T10:15:42.123456Z"`
	FrameName  string `json:"frame_name" example:"unknown_person_20250823_101542_123456.jpg"`
	FrameURL   string `json:"frame_url,omitempty" example:"http://host:8090/frames/unknown_person_20250823_101542_123456.jpg"`
}

// DetectionsResponse is the alert history page
// swagger:model
type DetectionsResponse struct {
	Detections []DetectionRecord `json:"detections"`
	Count      int               `json:"count" example:"2"`
}

type handlers struct {
	deps Deps
}

// Register mounts the media routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}

	httpkit.Get(r, "/detections", h.detections)
	r.Get("/frames/{name}", h.frame)
	r.Get("/clips/{name}", h.clip)
}

// swagger:route GET /detections Media mediaDetections
// @Summary Recent alert history reconstructed from archived frame names
// @Tags Media
// @Produce json
// @Param limit query int false "page size, default 50, max 200"
// @Param event_type query string false "verified_person_detected | unknown_person_detected | face_detected"
// @Success 200 type DetectionsResponse ok
// @Router /detections [get]
func (h *handlers) detections(r *stdhttp.Request) (any, error) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, perr.Validationf("limit must be a positive integer")
		}
		limit = min(n, maxLimit)
	}

	filter := r.URL.Query().Get("event_type")
	switch filter {
	case "", string(event.TypeFaceDetected), string(event.TypeVerifiedPerson), string(event.TypeUnknownPerson):
	default:
		return nil, perr.Validationf("unknown event_type %q", filter)
	}

	out := DetectionsResponse{Detections: []DetectionRecord{}}
	fr := h.frames()
	if fr == nil {
		return out, nil
	}

	for _, ent := range fr.List() {
		p, ok := store.ParseName(ent.Name)
		if !ok {
			continue
		}
		et := eventType(p.Kind)
		if et == "" || (filter != "" && filter != et) {
			continue
		}
		out.Detections = append(out.Detections, DetectionRecord{
			EventType:  et,
			PersonName: p.Person,
			Timestamp:  p.At.UTC().Format(time.RFC3339Nano),
			FrameName:  ent.Name,
			FrameURL:   fr.URLFor(ent.Name),
		})
		if len(out.Detections) == limit {
			break
		}
	}
	out.Count = len(out.Detections)
	return out, nil
}

func eventType(k store.Kind) string {
	switch k {
	case store.KindCapture:
		return string(event.TypeFaceDetected)
	case store.KindVerified:
		return string(event.TypeVerifiedPerson)
	case store.KindUnknown:
		return string(event.TypeUnknownPerson)
	}
	return ""
}

// swagger:route GET /frames/{name} Media mediaFrame
// @Summary Archived frame bytes
// @Tags Media
// @Produce jpeg
// @Param name path string true "archive filename"
// @Success 200 file byte frame
// @Router /frames/{name} [get]
func (h *handlers) frame(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	h.serveRaw(w, r, h.frames(), "image/jpeg")
}

// swagger:route GET /clips/{name} Media mediaClip
// @Summary Archived training clip bytes
// @Tags Media
// @Produce octet-stream
// @Param name path string true "archive filename"
// @Success 200 file byte clip
// @Router /clips/{name} [get]
func (h *handlers) clip(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	h.serveRaw(w, r, h.clips(), "video/x-motion-jpeg")
}

func (h *handlers) frames() store.Archive {
	if h.deps.Media == nil {
		return nil
	}
	return h.deps.Media.Frames
}

func (h *handlers) clips() store.Archive {
	if h.deps.Media == nil {
		return nil
	}
	return h.deps.Media.Clips
}

// serveRaw streams one archived file. Names that do not follow the archive
// codec 404 without touching the filesystem
func (h *handlers) serveRaw(w stdhttp.ResponseWriter, r *stdhttp.Request, a store.Archive, contentType string) {
	if a == nil {
		httpkit.RespondError(w, r, perr.Unavailablef("archive is not enabled"))
		return
	}

	name := httpkit.Param(r, "name")
	if _, ok := store.ParseName(name); !ok {
		httpkit.RespondError(w, r, perr.NotFoundf("no such file"))
		return
	}

	data, err := a.ReadFile(name)
	if err != nil {
		httpkit.RespondError(w, r, perr.NotFoundf("no such file"))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}
