// Command facewarden-agent watches one camera, recognizes enrolled faces,
// and raises cooldown-gated alerts. It also serves the agent API: manual
// alert ingest, detection history, archived media, and the live event feed.
//
// Configuration is environment driven under the FACEWARDEN_ prefix; a .env
// file in the working directory is loaded first when present. Without
// FACEWARDEN_CAMERA_INPUT the agent skips capture and serves the API only.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"facewarden/internal/adapters/camera"
	"facewarden/internal/adapters/vision"
	"facewarden/internal/core/identity"
	"facewarden/internal/modkit/httpkit"
	"facewarden/internal/platform/config"
	"facewarden/internal/platform/logger"
	phttp "facewarden/internal/platform/net/http"
	"facewarden/internal/platform/store"

	"facewarden/internal/services/api"
	"facewarden/internal/services/dispatch"
	"facewarden/internal/services/pipeline"
	"facewarden/internal/services/stats"
)

// keyTable turns "client:secret" pairs into the API key check. A bare
// secret gets the client id "default". Empty input leaves the API open
func keyTable(pairs []string) httpkit.KeyFunc {
	if len(pairs) == 0 {
		return nil
	}
	keys := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		client, secret, ok := strings.Cut(pair, ":")
		if !ok {
			client, secret = "default", pair
		}
		keys[secret] = client
	}
	return func(key string) (string, error) {
		if client, ok := keys[key]; ok {
			return client, nil
		}
		return "", errors.New("unknown api key")
	}
}

func main() {
	_ = godotenv.Load()

	root := config.New().Prefix("FACEWARDEN_")
	httpCfg := root.Prefix("HTTP_")
	camCfg := root.Prefix("CAMERA_")
	detCfg := root.Prefix("DETECT_")
	recogCfg := root.Prefix("RECOG_")
	alertCfg := root.Prefix("ALERTS_")
	framesCfg := root.Prefix("FRAMES_")
	clipsCfg := root.Prefix("CLIPS_")
	hookCfg := root.Prefix("WEBHOOK_")
	mqttCfg := root.Prefix("MQTT_")
	feedCfg := root.Prefix("FEED_")

	// bring up logging early (FACEWARDEN_LOG_*)
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(
		context.Background(),
		store.Config{
			Frames: store.ArchiveConfig{
				Enabled:  framesCfg.MayBool("ENABLED", true),
				Dir:      framesCfg.MayString("DIR", "data/frames"),
				Capacity: framesCfg.MayInt("CAPACITY", 100),
				BaseURL:  framesCfg.MayString("BASE_URL", ""),
			},
			Clips: store.ArchiveConfig{
				Enabled:  clipsCfg.MayBool("ENABLED", true),
				Dir:      clipsCfg.MayString("DIR", "data/clips"),
				Capacity: clipsCfg.MayInt("CAPACITY", 20),
				BaseURL:  clipsCfg.MayString("BASE_URL", ""),
			},
		},
		store.WithLogger(*l),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	// enrolled identities; no database means recognition is off and every
	// face classifies as unknown
	var ids *identity.Store
	if path := recogCfg.MayString("DB", ""); path != "" {
		ids, err = identity.Open(path)
		if err != nil {
			l.Panic().Err(err).Str("path", path).Msg("identity.Open failed")
		}
		l.Info().Str("path", path).Int("names", ids.Len()).Msg("identities loaded")
	} else {
		l.Warn().Msg("no identity database configured, recognition disabled")
	}

	// camera is optional; without one the agent still accepts manual alerts
	var cam camera.Source
	if input := camCfg.MayString("INPUT", ""); input != "" {
		cam, err = camera.Open(camera.Config{
			Source:     camCfg.MayEnum("SOURCE", camera.SourceFFmpeg, camera.SourceFFmpeg, camera.SourceMJPEG, camera.SourceDir),
			Input:      input,
			FFmpegPath: camCfg.MayString("FFMPEG", "ffmpeg"),
			Width:      camCfg.MayInt("WIDTH", 640),
			Height:     camCfg.MayInt("HEIGHT", 480),
			FPS:        camCfg.MayInt("FPS", 30),
		}, *l)
		if err != nil {
			l.Panic().Err(err).Msg("camera.Open failed")
		}
	}

	var vis vision.Backend
	if cam != nil {
		vis, err = vision.Open(ctx, vision.Config{
			Backend:       detCfg.MayEnum("BACKEND", vision.BackendREST, vision.BackendREST, vision.BackendSidecar),
			BaseURL:       detCfg.MayString("URL", ""),
			APIKey:        detCfg.MayString("API_KEY", ""),
			Command:       detCfg.MayString("COMMAND", ""),
			Args:          detCfg.MayCSV("ARGS", nil),
			MinConfidence: detCfg.MayFloat64("MIN_CONFIDENCE", 0.5),
			Timeout:       detCfg.MayDuration("TIMEOUT", 10*time.Second),
		}, *l)
		if err != nil {
			l.Panic().Err(err).Msg("vision.Open failed")
		}
		defer func() {
			if err := vis.Close(); err != nil {
				l.Error().Err(err).Msg("failed to close vision backend")
			}
		}()

		// a dead detector is not fatal, the pipeline drops frames and
		// keeps retrying while the service comes up
		if p, ok := vis.(vision.Prober); ok {
			if err := p.Probe(ctx); err != nil {
				l.Warn().Err(err).Msg("detector probe failed")
			}
		}
	}

	tr := stats.New()

	var sinks []dispatch.Sink
	var hub *dispatch.Hub
	if feedCfg.MayBool("ENABLED", true) {
		hub = dispatch.NewHub(tr, *l)
		sinks = append(sinks, hub)
	}
	if broker := mqttCfg.MayString("BROKER", ""); broker != "" {
		mq, err := dispatch.OpenMQTT(dispatch.MQTTConfig{
			Broker:         broker,
			ClientID:       mqttCfg.MayString("CLIENT_ID", ""),
			TopicPrefix:    mqttCfg.MayString("TOPIC_PREFIX", ""),
			ConnectTimeout: mqttCfg.MayDuration("CONNECT_TIMEOUT", 5*time.Second),
		}, *l)
		if err != nil {
			l.Panic().Err(err).Str("broker", broker).Msg("mqtt connect failed")
		}
		defer func() {
			if err := mq.Close(); err != nil {
				l.Error().Err(err).Msg("failed to close mqtt sink")
			}
		}()
		sinks = append(sinks, mq)
	}

	d := dispatch.New(dispatch.Options{
		WebhookURL: hookCfg.MayString("URL", ""),
		Timeout:    hookCfg.MayDuration("TIMEOUT", 5*time.Second),
		QueueSize:  hookCfg.MayInt("QUEUE", 64),
		RetryDelay: hookCfg.MayDuration("RETRY_DELAY", 2*time.Second),
	}, tr, *l, sinks...)

	pcfg := pipeline.Config{
		CameraID:       camCfg.MayString("ID", "camera0"),
		SkipFactor:     detCfg.MayInt("SKIP_FACTOR", 2),
		Resize:         detCfg.MayFloat64("RESIZE", 0.75),
		Workers:        detCfg.MayInt("WORKERS", 2),
		QueueSize:      detCfg.MayInt("QUEUE", 3),
		CropMargin:     detCfg.MayFloat64("CROP_MARGIN", 0.25),
		Tolerance:      recogCfg.MayFloat64("TOLERANCE", 0.6),
		VerifiedMin:    alertCfg.MayFloat64("VERIFIED_MIN", 0.95),
		VerifiedWindow: alertCfg.MayDuration("VERIFIED_WINDOW", 60*time.Second),
		UnknownWindow:  alertCfg.MayDuration("UNKNOWN_WINDOW", 30*time.Second),
		BucketCell:     alertCfg.MayInt("BUCKET_CELL", 100),
		SweepInterval:  alertCfg.MayDuration("SWEEP_INTERVAL", 5*time.Minute),
		SweepFactor:    alertCfg.MayInt("SWEEP_FACTOR", 10),
		ClipSeconds:    clipsCfg.MayInt("SECONDS", 10),
		InlineFrames:   hookCfg.MayBool("INLINE_FRAMES", false),
		ReconnectMin:   camCfg.MayDuration("RECONNECT_MIN", time.Second),
		ReconnectMax:   camCfg.MayDuration("RECONNECT_MAX", 30*time.Second),
		DrainGrace:     detCfg.MayDuration("DRAIN_GRACE", 5*time.Second),
	}

	pdeps := pipeline.Deps{
		Camera:  cam,
		Vision:  vis,
		Alerter: d,
		Media:   st,
		Stats:   tr,
		Log:     *l,
	}
	if ids != nil {
		pdeps.Matcher = ids
	}
	pipe := pipeline.New(pcfg, pdeps)

	var pipeErr error
	pipeDone := make(chan struct{})
	if cam != nil {
		go func() {
			defer close(pipeDone)
			if err := pipe.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				pipeErr = err
				stop()
			}
		}()
	} else {
		close(pipeDone)
		l.Info().Msg("no camera configured, serving API only")
	}

	// http server (reads FACEWARDEN_HTTP_PORT)
	srv := phttp.NewServer(httpCfg)
	api.Mount(
		srv.Router(),
		api.Options{
			Config:         root,
			Log:            *l,
			Media:          st,
			Identity:       ids,
			Pipeline:       pipe,
			Tracker:        tr,
			Dispatcher:     d,
			Feed:           hub,
			CameraID:       pcfg.CameraID,
			Auth:           keyTable(httpCfg.MayCSV("TOKENS", nil)),
			EnableSwagger:  httpCfg.MayBool("SWAGGER", true),
			EnableProfiler: httpCfg.MayBool("PROFILER", false),
		},
	)

	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Run(ctx) }()

	var runErr error
	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(shCtx); err != nil {
			l.Error().Err(err).Msg("http shutdown failed")
		}
		cancel()
		runErr = <-srvErr
	case runErr = <-srvErr:
		// listener died on its own, take the pipeline down too
		stop()
	}

	// the pipeline drains in-flight frames before the dispatcher closes so
	// their alerts still go out
	<-pipeDone

	clCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.Close(clCtx); err != nil {
		l.Error().Err(err).Msg("dispatcher close failed")
	}
	if hub != nil {
		if err := hub.Close(); err != nil {
			l.Error().Err(err).Msg("feed close failed")
		}
	}

	if runErr != nil {
		l.Panic().Err(runErr).Msg("http server stopped")
	}
	if pipeErr != nil {
		l.Panic().Err(pipeErr).Msg("pipeline stopped")
	}
	l.Info().Msg("agent stopped")
}
