package store

import (
	"context"
	"fmt"

	"facewarden/internal/platform/store/disk"
)

// openArchive opens one disk archive and proves it writable before
// publishing it on the Store
func openArchive(ctx context.Context, kind string, cfg ArchiveConfig, s *Store) (Archive, error) {
	a, err := disk.Open(disk.Config{
		Dir:      cfg.Dir,
		Capacity: cfg.Capacity,
		BaseURL:  cfg.BaseURL,
	}, s.Log.With().Str("archive", kind).Logger())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	// Writability guardrail: probe before anything depends on the archive
	if err := a.Probe(ctx); err != nil {
		return nil, fmt.Errorf("%s probe failed: %w", kind, err)
	}

	return a, nil
}
