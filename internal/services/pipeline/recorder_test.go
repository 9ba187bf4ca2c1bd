package pipeline

import (
	"bytes"
	"testing"
	"time"

	"facewarden/internal/core/face"
)

func TestRecorder_PrunesToKeepWindow(t *testing.T) {
	t.Parallel()

	r := newRecorder(10 * time.Second)
	base := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)
	for i := 0; i <= 15; i++ {
		r.push(face.Frame{Seq: uint64(i), At: base.Add(time.Duration(i) * time.Second)})
	}

	frames := r.snapshot()
	// Newest frame is at base+15s, so the window floor is base+5s.
	if len(frames) != 11 {
		t.Fatalf("buffered frames = %d, want 11", len(frames))
	}
	if frames[0].Seq != 5 || frames[len(frames)-1].Seq != 15 {
		t.Fatalf("window spans seq %d..%d, want 5..15", frames[0].Seq, frames[len(frames)-1].Seq)
	}
	for i := 1; i < len(frames); i++ {
		if frames[i].At.Before(frames[i-1].At) {
			t.Fatalf("snapshot out of order at %d", i)
		}
	}
}

func TestRecorder_NilIsInert(t *testing.T) {
	t.Parallel()

	var r *recorder
	r.push(face.Frame{Seq: 1, At: time.Now()})
	if got := r.snapshot(); got != nil {
		t.Fatalf("nil recorder snapshot = %v", got)
	}
}

func TestMJPEGConcat(t *testing.T) {
	t.Parallel()

	frames := []face.Frame{
		{JPEG: []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}},
		{JPEG: []byte{0xFF, 0xD8, 0x02, 0xFF, 0xD9}},
		{JPEG: []byte{0xFF, 0xD8, 0x03, 0xFF, 0xD9}},
	}
	got := mjpegConcat(frames)
	want := []byte{
		0xFF, 0xD8, 0x01, 0xFF, 0xD9,
		0xFF, 0xD8, 0x02, 0xFF, 0xD9,
		0xFF, 0xD8, 0x03, 0xFF, 0xD9,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("concat = % X, want % X", got, want)
	}
	if len(mjpegConcat(nil)) != 0 {
		t.Fatal("empty input should concat to nothing")
	}
}
