package camera

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	perr "facewarden/internal/platform/errors"
	"facewarden/internal/platform/logger"

	"github.com/rwcarlsen/goexif/exif"
)

// dirSource replays a directory of JPEGs at the configured rate, looping
// forever. Useful for development and soak testing without a camera. Capture
// timestamps come from EXIF when the frames carry it.
type dirSource struct {
	cfg Config
	log logger.Logger

	files    []string
	idx      int
	interval time.Duration
	next     time.Time
}

func newDir(cfg Config, log logger.Logger) *dirSource {
	return &dirSource{cfg: cfg, log: log.With().Str("source", SourceDir).Logger()}
}

func (s *dirSource) Open(ctx context.Context) error {
	entries, err := os.ReadDir(s.cfg.Input)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStorage, "replay dir %s", s.cfg.Input)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg":
			files = append(files, filepath.Join(s.cfg.Input, e.Name()))
		}
	}
	if len(files) == 0 {
		return perr.NotFoundf("no jpeg frames in %s", s.cfg.Input)
	}

	s.files = files
	s.idx = 0
	s.interval = time.Second / time.Duration(s.cfg.FPS)
	s.next = time.Time{}

	s.log.Info().Int("frames", len(files)).Str("dir", s.cfg.Input).Msg("replay source ready")
	return nil
}

func (s *dirSource) Read(ctx context.Context) ([]byte, time.Time, error) {
	if len(s.files) == 0 {
		return nil, time.Time{}, perr.Unavailablef("replay source not open")
	}

	if !s.next.IsZero() {
		if wait := time.Until(s.next); wait > 0 {
			select {
			case <-ctx.Done():
				return nil, time.Time{}, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	s.next = time.Now().Add(s.interval)

	path := s.files[s.idx]
	s.idx = (s.idx + 1) % len(s.files)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, perr.Wrapf(err, perr.ErrorCodeStorage, "replay frame %s", filepath.Base(path))
	}

	at, ok := exifCaptureTime(data)
	if !ok {
		at = time.Now().UTC()
	}
	return data, at, nil
}

func (s *dirSource) Close() error {
	s.files = nil
	return nil
}

// exifCaptureTime digs the original capture time out of the frame's EXIF.
func exifCaptureTime(jpeg []byte) (time.Time, bool) {
	x, err := exif.Decode(bytes.NewReader(jpeg))
	if err != nil {
		return time.Time{}, false
	}
	t, err := x.DateTime()
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
