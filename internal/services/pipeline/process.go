package pipeline

import (
	"context"
	"image"
	"time"

	"facewarden/internal/core/event"
	"facewarden/internal/core/face"
	"facewarden/internal/core/identity"
	"facewarden/internal/platform/logger"
	"facewarden/internal/platform/store"
)

func (p *Pipeline) worker(ctx context.Context, id int) {
	log := p.log.With().Int("worker", id).Logger()
	for fr := range p.queue {
		if ctx.Err() != nil {
			continue
		}
		start := time.Now()
		p.process(ctx, log, fr)
		p.track.FrameProcessed(time.Since(start))
	}
}

// outcome is what recognition concluded about one detection.
type outcome struct {
	match identity.Match

	// embedded is false when the chip produced no usable embedding; such
	// faces stay anonymous and never trip the unknown gate.
	embedded bool
}

// process runs one frame through detection, recognition, and alerting.
func (p *Pipeline) process(ctx context.Context, log logger.Logger, fr face.Frame) {
	img, err := face.DecodeJPEG(fr.JPEG)
	if err != nil {
		log.Warn().Err(err).Uint64("seq", fr.Seq).Msg("frame decode failed")
		return
	}
	bounds := img.Bounds()

	dets, err := p.vis.Locate(ctx, face.Downscale(img, p.cfg.Resize))
	if err != nil {
		// Inference trouble reads as an empty frame; the stream goes on.
		log.Warn().Err(err).Uint64("seq", fr.Seq).Msg("face detection failed")
		return
	}
	if len(dets) == 0 {
		return
	}

	// Boxes come back in downscaled coordinates.
	for i := range dets {
		dets[i].Box = dets[i].Box.Scale(1 / p.cfg.Resize).Clamp(bounds.Dx(), bounds.Dy())
	}

	outs := p.recognize(ctx, log, img, dets)
	p.classify(ctx, log, fr, dets, outs)
}

// recognize fills in detection names and returns the per-face outcomes.
func (p *Pipeline) recognize(ctx context.Context, log logger.Logger, img image.Image, dets []face.Detection) []outcome {
	outs := make([]outcome, len(dets))
	for i := range dets {
		chip := face.Crop(img, dets[i].Box, p.cfg.CropMargin)
		emb, err := p.vis.Embed(ctx, chip)
		if err != nil {
			log.Debug().Err(err).Msg("embedding failed, face stays anonymous")
			continue
		}
		outs[i].embedded = true
		outs[i].match = p.ids.Match(emb, p.cfg.Tolerance)
		if outs[i].match.Known() {
			dets[i].Name = outs[i].match.Name
		}
	}
	return outs
}

// classify turns one processed frame into events.
//
// Matches at or above the verified floor alert through the per-identity
// gate. Faces with no match within tolerance alert through the per-location
// gate and trigger a training clip. Matches below the verified floor only
// annotate the routine capture event. The capture event itself carries every
// face and always goes out.
func (p *Pipeline) classify(ctx context.Context, log logger.Logger, fr face.Frame, dets []face.Detection, outs []outcome) {
	now := fr.At

	for i := range dets {
		o := outs[i]
		if !o.embedded || !o.match.Known() || o.match.Confidence() < p.cfg.VerifiedMin {
			continue
		}
		if !p.verified.ShouldAlert(o.match.Name, now, p.cfg.VerifiedWindow) {
			continue
		}
		ev := event.New(event.TypeVerifiedPerson, p.cfg.CameraID, now,
			[]event.Detection{event.FromDetection(dets[i])}, event.SourceAutomatic)
		ev.Metadata["alert_type"] = "verified_person"
		ev.Metadata["confidence_threshold"] = p.cfg.VerifiedMin
		ev.Metadata["person"] = personMeta(o.match.Name, o.match.Confidence(), now)

		url, inline := p.putFrame(ctx, log, store.VerifiedName(identity.Slug(o.match.Name), now), fr.JPEG)
		attach(&ev, url, inline, fr.JPEG)
		p.disp.Send(ev)
		p.track.AlertFired(o.match.Name)
		log.Info().Str("name", o.match.Name).Float64("confidence", o.match.Confidence()).Msg("verified person")
	}

	var admitted []face.Detection
	for i := range dets {
		if !outs[i].embedded || outs[i].match.Known() {
			continue
		}
		if p.unknown.ShouldAlert(dets[i].Box.Bucket(p.cfg.BucketCell), now, p.cfg.UnknownWindow) {
			admitted = append(admitted, dets[i])
		}
	}
	if len(admitted) > 0 {
		// One archived frame shared by every unknown face admitted from it.
		url, inline := p.putFrame(ctx, log, store.UnknownName(now), fr.JPEG)
		for _, det := range admitted {
			ev := event.New(event.TypeUnknownPerson, p.cfg.CameraID, now,
				[]event.Detection{event.FromDetection(det)}, event.SourceAutomatic)
			ev.Metadata["alert_type"] = "unknown_person"
			attach(&ev, url, inline, fr.JPEG)
			p.disp.Send(ev)
			p.track.AlertFired("")
		}
		log.Info().Int("faces", len(admitted)).Msg("unknown person")
		p.recordClip(ctx, log, now)
	}

	wire := make([]event.Detection, 0, len(dets))
	for _, d := range dets {
		wire = append(wire, event.FromDetection(d))
	}
	ev := event.New(event.TypeFaceDetected, p.cfg.CameraID, now, wire, event.SourceAutomatic)
	url, inline := p.putFrame(ctx, log, store.CaptureName(now), fr.JPEG)
	attach(&ev, url, inline, fr.JPEG)
	p.disp.Send(ev)
}

// putFrame archives jpeg under name and reports how events should reference
// it. A failed write degrades to an event with no frame reference.
func (p *Pipeline) putFrame(ctx context.Context, log logger.Logger, name string, jpeg []byte) (url string, inline bool) {
	if p.media == nil || p.media.Frames == nil {
		return "", p.cfg.InlineFrames
	}
	entry, err := p.media.Frames.Put(ctx, name, jpeg)
	if err != nil {
		log.Warn().Err(err).Str("file", name).Msg("frame archive failed")
		return "", false
	}
	url = p.media.Frames.URLFor(entry.Name)
	return url, url == "" && p.cfg.InlineFrames
}

func attach(ev *event.Event, url string, inline bool, jpeg []byte) {
	if url != "" {
		ev.AttachFrame(url)
		return
	}
	if inline {
		ev.AttachInline(jpeg)
	}
}

// personMeta is the person block verified alerts carry, matching the
// longstanding webhook consumer contract.
func personMeta(name string, confidence float64, at time.Time) map[string]any {
	at = at.UTC()
	return map[string]any{
		"name":       name,
		"confidence": confidence,
		"date":       at.Format("2006-01-02"),
		"time":       at.Format("15:04:05"),
		"datetime":   at.Format(time.RFC3339),
		"timestamp":  at.Unix(),
	}
}
