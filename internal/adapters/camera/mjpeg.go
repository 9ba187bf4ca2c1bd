package camera

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	perr "facewarden/internal/platform/errors"
	"facewarden/internal/platform/logger"
)

// mjpegSource consumes MJPEG over HTTP. IP cameras almost always serve
// multipart/x-mixed-replace; a few stream bare concatenated JPEG, which the
// raw scanner handles.
type mjpegSource struct {
	cfg    Config
	log    logger.Logger
	client *http.Client

	resp  *http.Response
	parts *multipart.Reader
	raw   *jpegStream
}

func newMJPEG(cfg Config, log logger.Logger) *mjpegSource {
	return &mjpegSource{
		cfg: cfg,
		log: log.With().Str("source", SourceMJPEG).Logger(),
		// no client timeout: the response body is a stream that stays open
		// for the life of the connection
		client: &http.Client{Transport: &http.Transport{ResponseHeaderTimeout: 10 * time.Second}},
	}
}

func (s *mjpegSource) Open(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Input, nil)
	if err != nil {
		return perr.InvalidArgf("camera stream url %q: %v", s.cfg.Input, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "camera stream connect")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return perr.Unavailablef("camera stream status %d", resp.StatusCode)
	}

	s.resp = resp
	s.parts = nil
	s.raw = nil

	mediatype, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err == nil && strings.HasPrefix(mediatype, "multipart/") && params["boundary"] != "" {
		s.parts = multipart.NewReader(resp.Body, params["boundary"])
	} else {
		s.log.Debug().Str("content_type", resp.Header.Get("Content-Type")).Msg("not multipart, scanning raw stream")
		s.raw = newJPEGStream(resp.Body)
	}

	s.log.Info().Str("url", s.cfg.Input).Msg("camera stream connected")
	return nil
}

func (s *mjpegSource) Read(ctx context.Context) ([]byte, time.Time, error) {
	if s.resp == nil {
		return nil, time.Time{}, perr.Unavailablef("camera stream not open")
	}
	if err := ctx.Err(); err != nil {
		return nil, time.Time{}, err
	}

	data, err := s.nextFrame()
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, time.Time{}, cerr
		}
		return nil, time.Time{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "camera stream read")
	}
	return data, time.Now().UTC(), nil
}

func (s *mjpegSource) nextFrame() ([]byte, error) {
	if s.parts != nil {
		part, err := s.parts.NextPart()
		if err != nil {
			return nil, err
		}
		defer func() { _ = part.Close() }()
		return io.ReadAll(part)
	}
	return s.raw.next()
}

func (s *mjpegSource) Close() error {
	if s.resp != nil {
		_ = s.resp.Body.Close()
		s.resp = nil
	}
	s.parts = nil
	s.raw = nil
	return nil
}
