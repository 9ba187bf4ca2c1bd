package camera

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	perr "facewarden/internal/platform/errors"
	"facewarden/internal/platform/logger"
)

// ffmpegSource shells out to ffmpeg and reads MJPEG off its stdout. It covers
// V4L2 devices, RTSP cameras, and plain media files in one adapter.
type ffmpegSource struct {
	cfg Config
	log logger.Logger

	cmd     *exec.Cmd
	stdout  io.ReadCloser
	frames  *jpegStream
	wg      sync.WaitGroup
	closing atomic.Bool
}

func newFFmpeg(cfg Config, log logger.Logger) *ffmpegSource {
	return &ffmpegSource{cfg: cfg, log: log.With().Str("source", SourceFFmpeg).Logger()}
}

func (s *ffmpegSource) Open(ctx context.Context) error {
	args := ffmpegArgs(s.cfg)
	cmd := exec.CommandContext(ctx, s.cfg.FFmpegPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "ffmpeg stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "ffmpeg stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "ffmpeg start (%s)", s.cfg.FFmpegPath)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.frames = newJPEGStream(stdout)
	s.closing.Store(false)

	s.log.Info().Int("pid", cmd.Process.Pid).Str("input", s.cfg.Input).Msg("ffmpeg started")

	s.wg.Add(2)
	go s.logStderr(stderr)
	go s.waitProcess()

	return nil
}

func (s *ffmpegSource) Read(ctx context.Context) ([]byte, time.Time, error) {
	if s.frames == nil {
		return nil, time.Time{}, perr.Unavailablef("ffmpeg source not open")
	}
	if err := ctx.Err(); err != nil {
		return nil, time.Time{}, err
	}

	data, err := s.frames.next()
	if err != nil {
		// stdout closes when the process dies, including on ctx cancel
		if cerr := ctx.Err(); cerr != nil {
			return nil, time.Time{}, cerr
		}
		return nil, time.Time{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "ffmpeg stream read")
	}
	return data, time.Now().UTC(), nil
}

func (s *ffmpegSource) Close() error {
	s.closing.Store(true)
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.wg.Wait()
	s.cmd = nil
	s.stdout = nil
	s.frames = nil
	return nil
}

// logStderr drains ffmpeg's diagnostics. With -loglevel warning only
// warnings and errors show up here.
func (s *ffmpegSource) logStderr(r io.Reader) {
	defer s.wg.Done()

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		s.log.Warn().Str("stderr", line).Msg("ffmpeg")
	}
}

// waitProcess reaps the subprocess so it never zombies.
func (s *ffmpegSource) waitProcess() {
	defer s.wg.Done()

	err := s.cmd.Wait()
	switch {
	case err == nil:
		s.log.Debug().Msg("ffmpeg exited cleanly")
	case s.closing.Load():
		s.log.Debug().Msg("ffmpeg stopped")
	default:
		s.log.Warn().Err(err).Msg("ffmpeg exited unexpectedly")
	}
}

func ffmpegArgs(cfg Config) []string {
	args := []string{"-hide_banner", "-loglevel", "warning", "-nostdin"}

	in := cfg.Input
	switch {
	case strings.HasPrefix(in, "rtsp://"):
		args = append(args, "-rtsp_transport", "tcp", "-i", in)
	case strings.HasPrefix(in, "/dev/"):
		args = append(args,
			"-f", "v4l2",
			"-video_size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
			"-framerate", strconv.Itoa(cfg.FPS),
			"-i", in)
	default:
		// media file or anything else ffmpeg can demux on its own; -re paces
		// playback at native speed instead of dumping every frame at once
		args = append(args, "-re", "-i", in)
	}

	return append(args,
		"-an",
		"-c:v", "mjpeg",
		"-q:v", "4",
		"-f", "mjpeg",
		"pipe:1")
}
