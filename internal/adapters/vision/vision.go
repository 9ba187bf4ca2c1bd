// Package vision wraps the external face model behind two interchangeable
// backends: a REST client speaking multipart to a detector service, and a
// sidecar subprocess speaking length-prefixed msgpack over its pipes.
//
// The pipeline treats every backend failure as zero detections, so nothing in
// here is allowed to take the service down after startup.
package vision

import (
	"context"
	"image"
	"image/color"
	"time"

	"facewarden/internal/core/face"
	perr "facewarden/internal/platform/errors"
	"facewarden/internal/platform/logger"

	"github.com/disintegration/imaging"
)

// Recognized Config.Backend values.
const (
	BackendREST    = "rest"
	BackendSidecar = "sidecar"
)

// Backend locates faces and computes embeddings.
type Backend interface {
	// Locate finds faces in the frame. An empty slice is a valid answer.
	Locate(ctx context.Context, img image.Image) ([]face.Detection, error)

	// Embed computes the embedding for a cropped face chip.
	Embed(ctx context.Context, img image.Image) ([]float64, error)

	// Close releases the backend.
	Close() error
}

// Prober is implemented by backends that can verify readiness at startup.
type Prober interface {
	Probe(ctx context.Context) error
}

// Config selects and tunes a backend.
type Config struct {
	// Backend is rest or sidecar.
	Backend string

	// BaseURL and APIKey configure the REST detector service.
	BaseURL string
	APIKey  string

	// Command and Args spawn the sidecar process.
	Command string
	Args    []string

	// MinConfidence drops detections below this floor.
	MinConfidence float64

	// Timeout bounds one request round trip on either backend.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.5
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// Open builds the backend selected by cfg. The sidecar process starts
// immediately and lives until Close or ctx cancellation.
func Open(ctx context.Context, cfg Config, log logger.Logger) (Backend, error) {
	cfg = cfg.withDefaults()

	switch cfg.Backend {
	case BackendREST:
		if cfg.BaseURL == "" {
			return nil, perr.InvalidArgf("detector base url is empty")
		}
		return newREST(cfg, log), nil
	case BackendSidecar:
		if cfg.Command == "" {
			return nil, perr.InvalidArgf("sidecar command is empty")
		}
		return openSidecar(ctx, cfg, log)
	default:
		return nil, perr.InvalidArgf("unknown vision backend %q", cfg.Backend)
	}
}

// probeBlank pushes a tiny blank frame through the backend. Zero faces is the
// expected answer; any transport or protocol fault surfaces as an error.
func probeBlank(ctx context.Context, b Backend) error {
	img := imaging.New(8, 8, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	_, err := b.Locate(ctx, img)
	return err
}
