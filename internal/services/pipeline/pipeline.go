// Package pipeline runs the capture, detection, and alerting loop.
//
// One capture goroutine reads frames from the camera, numbers them, and
// pushes every (SkipFactor+1)th frame onto a small work queue. A pool of
// workers pulls frames, locates faces on a downscaled copy, resolves
// identities, and turns the results into events. Two cooldown gates, one
// keyed by identity and one by spatial bucket, keep repeated sightings from
// flooding the alert path. The capture side never blocks: when the queue is
// full the frame is dropped and counted.
package pipeline

import (
	"context"
	"sync"
	"time"

	"facewarden/internal/core/cooldown"
	"facewarden/internal/core/face"
	perr "facewarden/internal/platform/errors"
	"facewarden/internal/platform/logger"
	"facewarden/internal/platform/store"
	"facewarden/internal/services/stats"
)

// Config tunes the pipeline.
type Config struct {
	// CameraID names this camera in every event it emits.
	CameraID string

	// SkipFactor is how many frames are skipped between processed ones.
	// 2 means every third frame is submitted; 0 submits every frame.
	SkipFactor int

	// Resize scales frames before detection, clamped to [0.1, 1.0].
	// Detection boxes are mapped back to full-frame coordinates.
	Resize float64

	// Workers is the detection pool size. 1 processes sequentially.
	Workers int

	// QueueSize bounds how many frames may wait for a worker.
	QueueSize int

	// Tolerance is the match distance cutoff for recognition.
	Tolerance float64

	// VerifiedMin is the confidence floor for verified person alerts.
	VerifiedMin float64

	// VerifiedWindow is the per-identity alert cooldown.
	VerifiedWindow time.Duration

	// UnknownWindow is the per-location alert cooldown for unknown faces.
	UnknownWindow time.Duration

	// BucketCell is the spatial bucket size in pixels for unknown cooldowns.
	BucketCell int

	// CropMargin pads detection boxes before embedding.
	CropMargin float64

	// SweepInterval is how often stale cooldown entries are evicted;
	// SweepFactor times the window is the age that counts as stale.
	SweepInterval time.Duration
	SweepFactor   int

	// ClipSeconds is how much camera context a training clip captures.
	ClipSeconds int

	// InlineFrames attaches frames as base64 when no archive URL exists.
	InlineFrames bool

	// ReconnectMin and ReconnectMax bound the camera reopen backoff.
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	// DrainGrace is how long shutdown waits for in-flight frames.
	DrainGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.CameraID == "" {
		c.CameraID = "camera0"
	}
	if c.SkipFactor < 0 {
		c.SkipFactor = 0
	}
	if c.Resize <= 0 {
		c.Resize = 0.75
	}
	if c.Resize < 0.1 {
		c.Resize = 0.1
	}
	if c.Resize > 1 {
		c.Resize = 1
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 3
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 0.6
	}
	if c.VerifiedMin <= 0 {
		c.VerifiedMin = 0.95
	}
	if c.VerifiedWindow <= 0 {
		c.VerifiedWindow = 60 * time.Second
	}
	if c.UnknownWindow <= 0 {
		c.UnknownWindow = 30 * time.Second
	}
	if c.BucketCell <= 0 {
		c.BucketCell = 100
	}
	if c.CropMargin <= 0 {
		c.CropMargin = 0.25
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
	if c.SweepFactor <= 0 {
		c.SweepFactor = 10
	}
	if c.ClipSeconds <= 0 {
		c.ClipSeconds = 10
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = time.Second
	}
	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = 30 * time.Second
	}
	if c.DrainGrace <= 0 {
		c.DrainGrace = 5 * time.Second
	}
	return c
}

// Deps are the collaborators the pipeline drives.
type Deps struct {
	Camera  Camera
	Vision  Vision
	Matcher Matcher
	Alerter Alerter

	// Media holds the frame and clip archives; either may be nil.
	Media *store.Store

	Stats *stats.Tracker
	Log   logger.Logger
}

// Pipeline owns the capture loop, the worker pool, and the cooldown gates.
type Pipeline struct {
	cfg   Config
	log   logger.Logger
	cam   Camera
	vis   Vision
	ids   Matcher
	disp  Alerter
	media *store.Store
	track *stats.Tracker

	verified *cooldown.Gate
	unknown  *cooldown.Gate

	queue chan face.Frame
	rec   *recorder
}

// New builds a pipeline. Run starts it.
func New(cfg Config, deps Deps) *Pipeline {
	cfg = cfg.withDefaults()
	if deps.Matcher == nil {
		// No identity database: every face resolves as unknown.
		deps.Matcher = noMatcher{}
	}
	p := &Pipeline{
		cfg:      cfg,
		log:      deps.Log.With().Str("component", "pipeline").Str("camera_id", cfg.CameraID).Logger(),
		cam:      deps.Camera,
		vis:      deps.Vision,
		ids:      deps.Matcher,
		disp:     deps.Alerter,
		media:    deps.Media,
		track:    deps.Stats,
		verified: cooldown.New(),
		unknown:  cooldown.New(),
		queue:    make(chan face.Frame, cfg.QueueSize),
	}
	if deps.Media != nil && deps.Media.Clips != nil {
		p.rec = newRecorder(time.Duration(cfg.ClipSeconds) * time.Second)
	}
	return p
}

// Run captures until ctx is canceled, then drains the workers. A camera that
// cannot open at startup is fatal; read failures after that trigger the
// reconnect loop instead.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.cam.Open(ctx); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "pipeline: open camera")
	}
	defer p.cam.Close()

	// Workers get their own context so queued frames can still be processed
	// after ctx is canceled, up to the drain grace.
	wctx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(wctx, id)
		}(i)
	}
	go p.sweepLoop(ctx)

	p.log.Info().
		Int("workers", p.cfg.Workers).
		Int("skip_factor", p.cfg.SkipFactor).
		Float64("resize", p.cfg.Resize).
		Msg("pipeline running")

	p.capture(ctx)

	close(p.queue)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(p.cfg.DrainGrace):
		p.log.Warn().Dur("grace", p.cfg.DrainGrace).Msg("drain grace expired, abandoning in-flight frames")
		cancelWorkers()
		<-done
	}
	return ctx.Err()
}

// capture reads frames, numbers them, and feeds the work queue. It owns the
// reconnect loop: a failed read closes the source and reopens it with
// exponential backoff.
func (p *Pipeline) capture(ctx context.Context) {
	var seq uint64
	backoff := p.cfg.ReconnectMin

	for {
		if ctx.Err() != nil {
			return
		}
		jpeg, at, err := p.cam.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn().Err(err).Msg("camera read failed, reconnecting")
			p.reconnect(ctx, &backoff)
			continue
		}
		backoff = p.cfg.ReconnectMin

		seq++
		p.track.FrameCaptured(at)
		if !submit(seq, p.cfg.SkipFactor) {
			continue
		}

		fr := face.Frame{Seq: seq, At: at, JPEG: jpeg}
		p.rec.push(fr)
		select {
		case p.queue <- fr:
			p.track.ObserveQueueDepth(len(p.queue))
		default:
			p.track.FrameDropped()
			p.log.Debug().Uint64("seq", seq).Msg("work queue full, frame dropped")
		}
	}
}

// submit reports whether the frame with this 1-based sequence number passes
// the skip filter.
func submit(seq uint64, skip int) bool {
	if skip <= 0 {
		return true
	}
	return (seq-1)%uint64(skip+1) == 0
}

func (p *Pipeline) reconnect(ctx context.Context, backoff *time.Duration) {
	_ = p.cam.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(*backoff):
		}
		err := p.cam.Open(ctx)
		if err == nil {
			p.log.Info().Msg("camera reconnected")
			return
		}
		p.log.Warn().Err(err).Dur("backoff", *backoff).Msg("camera reopen failed")
		*backoff *= 2
		if *backoff > p.cfg.ReconnectMax {
			*backoff = p.cfg.ReconnectMax
		}
	}
}

// sweepLoop evicts cooldown entries old enough that they can no longer
// influence gating, bounding gate memory on long runs.
func (p *Pipeline) sweepLoop(ctx context.Context) {
	t := time.NewTicker(p.cfg.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n := p.verified.Sweep(now, time.Duration(p.cfg.SweepFactor)*p.cfg.VerifiedWindow)
			n += p.unknown.Sweep(now, time.Duration(p.cfg.SweepFactor)*p.cfg.UnknownWindow)
			if n > 0 {
				p.log.Debug().Int("evicted", n).Msg("cooldown sweep")
			}
		}
	}
}
