// Package store provides a unified interface to the bounded media archives
package store

import (
	"context"
	"errors"
	"fmt"

	"facewarden/internal/platform/logger"
	"facewarden/internal/platform/store/disk"
)

// Store is the facade for the media backends
// zero value is safe but does nothing
type Store struct {
	// Log is the logger used by subclients
	// zero means a no op zerolog logger
	Log logger.Logger

	// Frames is the bounded capture archive, nil when disabled
	Frames Archive

	// Clips is the bounded training clip archive, nil when disabled
	Clips Archive
}

// Entry describes one archived file
type Entry = disk.Entry

// Archive is the surface the pipeline and API use for bounded media
// Put evicts the oldest entry synchronously once the archive is full
type Archive interface {
	Put(ctx context.Context, name string, data []byte) (Entry, error)
	ReadFile(name string) ([]byte, error)
	List() []Entry
	Len() int
	URLFor(name string) string
	Remove(name string) error
}

// Prober is any seam that can report readiness
type Prober interface{ Probe(context.Context) error }

// Open constructs a Store with the requested archives
// archives not enabled in cfg remain nil on the Store
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}

	// defaults for zero logger to avoid nil checks
	s.Log = s.Log.With().Logger()

	if cfg.Frames.Enabled {
		frames, err := openArchive(ctx, "frames", cfg.Frames, s)
		if err != nil {
			return nil, err
		}
		s.Frames = frames
	}

	if cfg.Clips.Enabled {
		clips, err := openArchive(ctx, "clips", cfg.Clips, s)
		if err != nil {
			return nil, err
		}
		s.Clips = clips
	}

	return s, nil
}

// Guard verifies all configured archives are still present and writable
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	var errs []error
	if s.Frames != nil {
		if p, ok := any(s.Frames).(Prober); ok {
			if err := p.Probe(ctx); err != nil {
				errs = append(errs, fmt.Errorf("frames: %w", err))
			}
		}
	}
	if s.Clips != nil {
		if p, ok := any(s.Clips).(Prober); ok {
			if err := p.Probe(ctx); err != nil {
				errs = append(errs, fmt.Errorf("clips: %w", err))
			}
		}
	}

	return errors.Join(errs...)
}

// Close releases all initialized archives gracefully
// nil archives are ignored
func (s *Store) Close(ctx context.Context) error {
	var errs []error

	if c, ok := s.Frames.(interface{ Close() error }); ok {
		if e := c.Close(); e != nil {
			errs = append(errs, e)
		}
	}

	if c, ok := s.Clips.(interface{ Close() error }); ok {
		if e := c.Close(); e != nil {
			errs = append(errs, e)
		}
	}

	return errors.Join(errs...)
}
