package pipeline

import (
	"context"
	"image"
	"math"
	"time"

	"facewarden/internal/core/event"
	"facewarden/internal/core/face"
	"facewarden/internal/core/identity"
)

// Camera is the frame source. The camera adapter satisfies it.
type Camera interface {
	Open(ctx context.Context) error
	Read(ctx context.Context) ([]byte, time.Time, error)
	Close() error
}

// Vision locates faces and embeds chips. The vision backends satisfy it.
type Vision interface {
	Locate(ctx context.Context, img image.Image) ([]face.Detection, error)
	Embed(ctx context.Context, img image.Image) ([]float64, error)
}

// Matcher resolves embeddings against the enrolled identities. The identity
// store satisfies it.
type Matcher interface {
	Match(embedding []float64, tolerance float64) identity.Match
}

// noMatcher stands in when no identity database is configured.
type noMatcher struct{}

func (noMatcher) Match([]float64, float64) identity.Match {
	return identity.Match{Distance: math.Inf(1)}
}

// Alerter accepts finished events for delivery. The dispatcher satisfies it.
// Send reports whether the event was accepted for delivery.
type Alerter interface {
	Send(ev event.Event) bool
}
