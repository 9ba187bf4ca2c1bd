package pipeline

import (
	"context"
	"sync"
	"time"

	"facewarden/internal/core/event"
	"facewarden/internal/core/face"
	"facewarden/internal/platform/logger"
	"facewarden/internal/platform/store"
)

// recorder keeps the last few seconds of submitted frames so an unknown
// person alert can ship the camera context that led up to it. A nil recorder
// is inert.
type recorder struct {
	keep time.Duration

	mu     sync.Mutex
	frames []face.Frame
}

func newRecorder(keep time.Duration) *recorder {
	return &recorder{keep: keep}
}

// push appends fr and prunes anything older than the keep window.
func (r *recorder) push(fr face.Frame) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames = append(r.frames, fr)
	cutoff := fr.At.Add(-r.keep)
	i := 0
	for i < len(r.frames) && r.frames[i].At.Before(cutoff) {
		i++
	}
	if i > 0 {
		r.frames = append(r.frames[:0], r.frames[i:]...)
	}
}

// snapshot returns the buffered frames oldest first.
func (r *recorder) snapshot() []face.Frame {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]face.Frame, len(r.frames))
	copy(out, r.frames)
	return out
}

// recordClip writes the buffered frames as an MJPEG clip and announces it.
func (p *Pipeline) recordClip(ctx context.Context, log logger.Logger, now time.Time) {
	if p.rec == nil || p.media == nil || p.media.Clips == nil {
		return
	}
	frames := p.rec.snapshot()
	if len(frames) == 0 {
		return
	}

	name := store.ClipName(now)
	entry, err := p.media.Clips.Put(ctx, name, mjpegConcat(frames))
	if err != nil {
		log.Warn().Err(err).Str("file", name).Msg("clip archive failed")
		return
	}

	ev := event.New(event.TypeTrainingClip, p.cfg.CameraID, now, nil, event.SourceAutomatic)
	ev.Metadata["trigger"] = "unknown_person"
	ev.Metadata["frame_count"] = len(frames)
	ev.Metadata["duration_seconds"] = frames[len(frames)-1].At.Sub(frames[0].At).Seconds()
	if url := p.media.Clips.URLFor(entry.Name); url != "" {
		ev.AttachClip(url)
	}
	p.disp.Send(ev)
	log.Info().Str("file", name).Int("frames", len(frames)).Msg("training clip recorded")
}

// mjpegConcat renders frames as a raw MJPEG stream, one JPEG after another.
func mjpegConcat(frames []face.Frame) []byte {
	n := 0
	for _, f := range frames {
		n += len(f.JPEG)
	}
	out := make([]byte, 0, n)
	for _, f := range frames {
		out = append(out, f.JPEG...)
	}
	return out
}
