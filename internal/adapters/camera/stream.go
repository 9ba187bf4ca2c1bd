package camera

import (
	"bufio"
	"io"
)

// jpegStream splits a concatenated JPEG byte stream into frames. ffmpeg's
// mjpeg muxer and some IP cameras emit exactly this: frame after frame with
// no envelope. Frames are recovered by the SOI/EOI markers; FF D9 cannot
// occur inside entropy-coded data because the encoder stuffs FF 00 there.
type jpegStream struct {
	r *bufio.Reader
}

func newJPEGStream(r io.Reader) *jpegStream {
	return &jpegStream{r: bufio.NewReaderSize(r, 64<<10)}
}

// next returns the next complete frame including both markers.
func (s *jpegStream) next() ([]byte, error) {
	if err := s.seekSOI(); err != nil {
		return nil, err
	}

	buf := make([]byte, 2, 32<<10)
	buf[0], buf[1] = 0xFF, 0xD8

	prev := byte(0)
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b)
		if prev == 0xFF && b == 0xD9 {
			return buf, nil
		}
		prev = b
	}
}

func (s *jpegStream) seekSOI() error {
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return err
		}
		if b != 0xFF {
			continue
		}
		nb, err := s.r.ReadByte()
		if err != nil {
			return err
		}
		if nb == 0xD8 {
			return nil
		}
		if nb == 0xFF {
			// could be the first byte of the marker itself
			if err := s.r.UnreadByte(); err != nil {
				return err
			}
		}
	}
}
