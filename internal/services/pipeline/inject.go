package pipeline

import (
	"context"
	"time"

	"facewarden/internal/core/event"
	"facewarden/internal/core/face"
	"facewarden/internal/core/identity"
	perr "facewarden/internal/platform/errors"
	"facewarden/internal/platform/store"
)

// ManualAlert is an externally supplied detection pushed through the same
// gate, archive, and dispatch path the camera loop uses. Upstream systems
// post these when their own detector saw something this camera did not.
type ManualAlert struct {
	// CameraID overrides the pipeline camera for this event.
	CameraID string

	// Name is the verified identity; empty means an unknown person.
	Name string

	// Confidence is the caller's match or detection confidence.
	Confidence float64

	Box  face.BBox
	JPEG []byte

	// Metadata entries are merged into the event; reserved keys win.
	Metadata map[string]any

	// At defaults to the current time.
	At time.Time
}

// Receipt reports what an injected alert turned into. Dispatched is false
// when the cooldown gate absorbed it or the dispatch queue refused it.
type Receipt struct {
	Dispatched bool
	Type       event.Type
	FrameURL   string
}

// Inject runs a manual alert through gating, archival, and dispatch.
// Verified alerts below the confidence floor are refused outright.
func (p *Pipeline) Inject(ctx context.Context, a ManualAlert) (Receipt, error) {
	if a.At.IsZero() {
		a.At = time.Now()
	}
	if a.CameraID == "" {
		a.CameraID = p.cfg.CameraID
	}
	if a.Name != "" {
		return p.injectVerified(ctx, a)
	}
	return p.injectUnknown(ctx, a)
}

func (p *Pipeline) injectVerified(ctx context.Context, a ManualAlert) (Receipt, error) {
	if a.Confidence < p.cfg.VerifiedMin {
		return Receipt{}, perr.Validationf(
			"confidence %.2f below verified threshold %.2f", a.Confidence, p.cfg.VerifiedMin)
	}

	rc := Receipt{Type: event.TypeVerifiedPerson}
	if !p.verified.ShouldAlert(a.Name, a.At, p.cfg.VerifiedWindow) {
		return rc, nil
	}

	det := face.Detection{Box: a.Box, Confidence: a.Confidence, Name: a.Name}
	ev := event.New(event.TypeVerifiedPerson, a.CameraID, a.At,
		[]event.Detection{event.FromDetection(det)}, event.SourceManual)
	ev.Metadata["alert_type"] = "verified_person"
	ev.Metadata["confidence_threshold"] = p.cfg.VerifiedMin
	ev.Metadata["person"] = personMeta(a.Name, a.Confidence, a.At)
	mergeMeta(ev.Metadata, a.Metadata)

	if len(a.JPEG) > 0 {
		url, inline := p.putFrame(ctx, p.log, store.VerifiedName(identity.Slug(a.Name), a.At), a.JPEG)
		attach(&ev, url, inline, a.JPEG)
		rc.FrameURL = url
	}

	rc.Dispatched = p.disp.Send(ev)
	if rc.Dispatched {
		p.track.AlertFired(a.Name)
	}
	return rc, nil
}

func (p *Pipeline) injectUnknown(ctx context.Context, a ManualAlert) (Receipt, error) {
	rc := Receipt{Type: event.TypeUnknownPerson}
	if !p.unknown.ShouldAlert(a.Box.Bucket(p.cfg.BucketCell), a.At, p.cfg.UnknownWindow) {
		return rc, nil
	}

	det := face.Detection{Box: a.Box, Confidence: a.Confidence}
	ev := event.New(event.TypeUnknownPerson, a.CameraID, a.At,
		[]event.Detection{event.FromDetection(det)}, event.SourceManual)
	ev.Metadata["alert_type"] = "unknown_person"
	mergeMeta(ev.Metadata, a.Metadata)

	if len(a.JPEG) > 0 {
		url, inline := p.putFrame(ctx, p.log, store.UnknownName(a.At), a.JPEG)
		attach(&ev, url, inline, a.JPEG)
		rc.FrameURL = url
	}

	rc.Dispatched = p.disp.Send(ev)
	if rc.Dispatched {
		p.track.AlertFired("")
	}
	return rc, nil
}

// mergeMeta copies caller metadata into dst without clobbering the keys the
// event schema owns.
func mergeMeta(dst, src map[string]any) {
	for k, v := range src {
		if _, taken := dst[k]; !taken {
			dst[k] = v
		}
	}
}
