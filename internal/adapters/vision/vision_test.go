package vision

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
)

// testChip returns a small frame for backend tests.
func testChip() image.Image {
	return imaging.New(32, 24, color.NRGBA{R: 90, G: 120, B: 200, A: 255})
}

// TestOpen_SelectsBackend verifies backend selection and the required fields
// for each backend.
func TestOpen_SelectsBackend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := zerolog.Nop()

	b, err := Open(ctx, Config{Backend: BackendREST, BaseURL: "http://127.0.0.1:9"}, log)
	if err != nil {
		t.Fatalf("Open rest: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := Open(ctx, Config{Backend: BackendREST}, log); err == nil {
		t.Error("rest backend without base url should be rejected")
	}
	if _, err := Open(ctx, Config{Backend: BackendSidecar}, log); err == nil {
		t.Error("sidecar backend without command should be rejected")
	}
	if _, err := Open(ctx, Config{Backend: "grpc"}, log); err == nil {
		t.Error("unknown backend should be rejected")
	}
}

// TestConfigDefaults verifies the confidence floor and timeout fallbacks and
// that explicit values survive.
func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	if cfg.MinConfidence != 0.5 {
		t.Errorf("MinConfidence = %v, want 0.5", cfg.MinConfidence)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}

	cfg = Config{MinConfidence: 0.9, Timeout: time.Second}.withDefaults()
	if cfg.MinConfidence != 0.9 || cfg.Timeout != time.Second {
		t.Errorf("explicit values were overwritten: %+v", cfg)
	}
}
