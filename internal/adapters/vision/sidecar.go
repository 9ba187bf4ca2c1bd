package vision

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"facewarden/internal/core/face"
	perr "facewarden/internal/platform/errors"
	"facewarden/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	opLocate = "locate"
	opEmbed  = "embed"

	// replies carry boxes or one embedding; anything bigger is stream
	// corruption
	maxSidecarMessage = 16 << 20
)

// sidecarRequest goes to the worker as length-prefixed msgpack. Frames travel
// as raw RGB24 so the worker never pays a decode or base64 tax.
type sidecarRequest struct {
	ID            string  `msgpack:"id"`
	Op            string  `msgpack:"op"`
	Frame         []byte  `msgpack:"frame_data"`
	Width         int     `msgpack:"width"`
	Height        int     `msgpack:"height"`
	MinConfidence float64 `msgpack:"min_confidence"`
}

// sidecarReply comes back tagged with the request id. Boxes answer locate,
// Embedding answers embed, Err reports a worker-side failure.
type sidecarReply struct {
	ID          string    `msgpack:"id"`
	Boxes       [][4]int  `msgpack:"boxes"`
	Confidences []float64 `msgpack:"confidences"`
	Embedding   []float64 `msgpack:"embedding"`
	Err         string    `msgpack:"error"`
}

// sidecarBackend runs the model worker as a child process and correlates
// requests with replies by id, so pool workers can call it concurrently even
// though the worker answers on a single pipe.
type sidecarBackend struct {
	cfg Config
	log logger.Logger

	cmd   *exec.Cmd
	stdin io.WriteCloser

	writeMu sync.Mutex
	mu      sync.Mutex
	pending map[string]chan sidecarReply

	wg      sync.WaitGroup
	closing atomic.Bool
}

func openSidecar(ctx context.Context, cfg Config, log logger.Logger) (*sidecarBackend, error) {
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "sidecar stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "sidecar stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "sidecar stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "sidecar start (%s)", cfg.Command)
	}

	s := &sidecarBackend{
		cfg:     cfg,
		log:     log.With().Str("backend", BackendSidecar).Logger(),
		cmd:     cmd,
		stdin:   stdin,
		pending: make(map[string]chan sidecarReply),
	}

	s.log.Info().Int("pid", cmd.Process.Pid).Str("command", cfg.Command).Msg("sidecar started")

	s.wg.Add(3)
	go s.readLoop(stdout)
	go s.logStderr(stderr)
	go s.waitProcess()

	return s, nil
}

func (s *sidecarBackend) Locate(ctx context.Context, img image.Image) ([]face.Detection, error) {
	buf, w, h := face.ToRGB(img)
	rep, err := s.call(ctx, sidecarRequest{
		Op:            opLocate,
		Frame:         buf,
		Width:         w,
		Height:        h,
		MinConfidence: s.cfg.MinConfidence,
	})
	if err != nil {
		return nil, err
	}

	dets := make([]face.Detection, 0, len(rep.Boxes))
	for i, b := range rep.Boxes {
		conf := 1.0
		if i < len(rep.Confidences) {
			conf = rep.Confidences[i]
		}
		if conf < s.cfg.MinConfidence {
			continue
		}
		dets = append(dets, face.Detection{
			Box:        face.BBox{X1: b[0], Y1: b[1], X2: b[2], Y2: b[3]},
			Confidence: conf,
		})
	}
	return dets, nil
}

func (s *sidecarBackend) Embed(ctx context.Context, img image.Image) ([]float64, error) {
	buf, w, h := face.ToRGB(img)
	rep, err := s.call(ctx, sidecarRequest{Op: opEmbed, Frame: buf, Width: w, Height: h})
	if err != nil {
		return nil, err
	}
	if len(rep.Embedding) == 0 {
		return nil, perr.NotFoundf("no face in chip")
	}
	return rep.Embedding, nil
}

func (s *sidecarBackend) Probe(ctx context.Context) error {
	return probeBlank(ctx, s)
}

// call writes one request and waits for its reply, the timeout, or ctx.
func (s *sidecarBackend) call(ctx context.Context, req sidecarRequest) (sidecarReply, error) {
	if s.closing.Load() {
		return sidecarReply{}, perr.Unavailablef("sidecar stopped")
	}

	req.ID = uuid.NewString()
	payload, err := msgpack.Marshal(req)
	if err != nil {
		return sidecarReply{}, perr.Internalf("sidecar encode: %v", err)
	}

	ch := make(chan sidecarReply, 1)
	s.mu.Lock()
	s.pending[req.ID] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, req.ID)
		s.mu.Unlock()
	}()

	if err := s.write(payload); err != nil {
		return sidecarReply{}, err
	}

	select {
	case rep := <-ch:
		if rep.Err != "" {
			return sidecarReply{}, perr.Rejectedf("sidecar: %s", rep.Err)
		}
		return rep, nil
	case <-ctx.Done():
		return sidecarReply{}, ctx.Err()
	case <-time.After(s.cfg.Timeout):
		return sidecarReply{}, perr.Unavailablef("sidecar reply timeout after %s", s.cfg.Timeout)
	}
}

// write frames and sends one message. A hung worker would block the pipe
// forever, so the write itself runs under the timeout; timing out marks the
// backend stopped because the stream can no longer be trusted.
func (s *sidecarBackend) write(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := s.stdin.Write(frameMessage(payload))
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnavailable, "sidecar write")
		}
		return nil
	case <-time.After(s.cfg.Timeout):
		s.closing.Store(true)
		return perr.Unavailablef("sidecar write timeout")
	}
}

func (s *sidecarBackend) readLoop(stdout io.Reader) {
	defer s.wg.Done()

	for {
		msg, err := readMessage(stdout, maxSidecarMessage)
		if err != nil {
			if !s.closing.Load() && !errors.Is(err, io.EOF) {
				s.log.Warn().Err(err).Msg("sidecar stdout read failed")
			}
			s.failPending()
			return
		}

		var rep sidecarReply
		if err := msgpack.Unmarshal(msg, &rep); err != nil {
			s.log.Warn().Err(err).Int("bytes", len(msg)).Msg("sidecar reply decode failed")
			continue
		}

		s.mu.Lock()
		ch, ok := s.pending[rep.ID]
		s.mu.Unlock()
		if !ok {
			s.log.Debug().Str("id", rep.ID).Msg("sidecar reply with no waiter")
			continue
		}
		select {
		case ch <- rep:
		default:
		}
	}
}

// failPending answers every outstanding call with an error reply so waiters
// fall through instead of riding out their full timeout.
func (s *sidecarBackend) failPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.pending {
		select {
		case ch <- sidecarReply{ID: id, Err: "sidecar stream closed"}:
		default:
		}
	}
}

// logStderr maps the worker's log level markers onto ours.
func (s *sidecarBackend) logStderr(r io.Reader) {
	defer s.wg.Done()

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.Contains(line, "[ERROR]") || strings.Contains(line, "[CRITICAL]"):
			s.log.Error().Str("line", line).Msg("sidecar")
		case strings.Contains(line, "[WARNING]") || strings.Contains(line, "[WARN]"):
			s.log.Warn().Str("line", line).Msg("sidecar")
		default:
			s.log.Debug().Str("line", line).Msg("sidecar")
		}
	}
}

func (s *sidecarBackend) waitProcess() {
	defer s.wg.Done()

	err := s.cmd.Wait()
	switch {
	case err == nil:
		s.log.Debug().Msg("sidecar exited cleanly")
	case s.closing.Load():
		s.log.Debug().Msg("sidecar stopped")
	default:
		s.log.Error().Err(err).Msg("sidecar exited unexpectedly")
	}
}

func (s *sidecarBackend) Close() error {
	if s.closing.Swap(true) {
		return nil
	}

	// closing stdin asks the worker to exit on its own
	_ = s.stdin.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.log.Warn().Msg("sidecar stop timeout, killing")
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		<-done
	}
	return nil
}

// frameMessage prefixes payload with its length, 4 bytes big-endian.
func frameMessage(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out[:4], uint32(len(payload)))
	copy(out[4:], payload)
	return out
}

// readMessage reads one length-prefixed message.
func readMessage(r io.Reader, maxLen uint32) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > maxLen {
		return nil, perr.Internalf("sidecar message length %d out of range", n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
