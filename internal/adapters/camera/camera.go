// Package camera provides the frame sources the pipeline captures from.
//
// Three sources are supported: an ffmpeg subprocess decoding a device or
// stream to MJPEG on stdout, an MJPEG-over-HTTP client for IP cameras, and a
// directory replayer for development. All of them hand back raw JPEG bytes
// with a capture timestamp; sequence numbering belongs to the capture loop.
package camera

import (
	"context"
	"time"

	perr "facewarden/internal/platform/errors"
	"facewarden/internal/platform/logger"
)

// Recognized Config.Source values.
const (
	SourceFFmpeg = "ffmpeg"
	SourceMJPEG  = "mjpeg"
	SourceDir    = "dir"
)

// Source delivers camera frames.
type Source interface {
	// Open establishes the stream.
	Open(ctx context.Context) error

	// Read blocks for the next frame and returns its JPEG bytes and capture
	// time. Bytes are owned by the caller.
	Read(ctx context.Context) ([]byte, time.Time, error)

	// Close releases the stream. Open may be called again afterwards.
	Close() error
}

// Config selects and tunes a frame source.
type Config struct {
	// Source is one of ffmpeg, mjpeg, or dir.
	Source string

	// Input is the device path or stream URL for ffmpeg, the stream URL for
	// mjpeg, or the frame directory for dir.
	Input string

	// FFmpegPath overrides the ffmpeg binary looked up on PATH.
	FFmpegPath string

	// Width, Height, and FPS hint the capture geometry. Device sources honor
	// them; network streams deliver whatever the camera sends.
	Width  int
	Height int
	FPS    int
}

func (c Config) withDefaults() Config {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.Width <= 0 {
		c.Width = 640
	}
	if c.Height <= 0 {
		c.Height = 480
	}
	if c.FPS <= 0 {
		c.FPS = 30
	}
	return c
}

// Open builds the source selected by cfg. The stream itself is not touched
// until Source.Open.
func Open(cfg Config, log logger.Logger) (Source, error) {
	cfg = cfg.withDefaults()
	if cfg.Input == "" {
		return nil, perr.InvalidArgf("camera input is empty")
	}

	switch cfg.Source {
	case SourceFFmpeg:
		return newFFmpeg(cfg, log), nil
	case SourceMJPEG:
		return newMJPEG(cfg, log), nil
	case SourceDir:
		return newDir(cfg, log), nil
	default:
		return nil, perr.InvalidArgf("unknown camera source %q", cfg.Source)
	}
}
