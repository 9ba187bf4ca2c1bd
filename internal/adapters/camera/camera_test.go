package camera

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// TestOpen_SelectsSource verifies the factory maps source names to adapters
// and rejects nonsense before any stream is touched.
func TestOpen_SelectsSource(t *testing.T) {
	t.Parallel()

	log := zerolog.Nop()

	if _, err := Open(Config{Source: SourceFFmpeg, Input: "/dev/video0"}, log); err != nil {
		t.Fatalf("ffmpeg source: %v", err)
	}
	if _, err := Open(Config{Source: SourceMJPEG, Input: "http://cam.local/stream"}, log); err != nil {
		t.Fatalf("mjpeg source: %v", err)
	}
	if _, err := Open(Config{Source: SourceDir, Input: "/tmp/frames"}, log); err != nil {
		t.Fatalf("dir source: %v", err)
	}

	if _, err := Open(Config{Source: "gstreamer", Input: "x"}, log); err == nil {
		t.Fatalf("unknown source accepted")
	}
	if _, err := Open(Config{Source: SourceFFmpeg}, log); err == nil {
		t.Fatalf("empty input accepted")
	}
}

// TestFFmpegArgs verifies input kinds pick the right demuxer flags.
func TestFFmpegArgs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  []string
		skip  []string
	}{
		{
			name:  "rtsp stream",
			input: "rtsp://cam.local/live",
			want:  []string{"-rtsp_transport", "tcp"},
			skip:  []string{"-f v4l2", "-re"},
		},
		{
			name:  "v4l2 device",
			input: "/dev/video0",
			want:  []string{"-f", "v4l2", "-video_size", "640x480", "-framerate", "30"},
			skip:  []string{"-re"},
		},
		{
			name:  "media file",
			input: "clips/porch.mp4",
			want:  []string{"-re"},
			skip:  []string{"-f v4l2", "-rtsp_transport"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			args := ffmpegArgs(Config{Source: SourceFFmpeg, Input: tc.input}.withDefaults())
			joined := strings.Join(args, " ")

			for _, w := range tc.want {
				if !strings.Contains(joined, w) {
					t.Fatalf("args %q missing %q", joined, w)
				}
			}
			for _, sk := range tc.skip {
				if strings.Contains(joined, sk) {
					t.Fatalf("args %q should not contain %q", joined, sk)
				}
			}
			if !strings.Contains(joined, "-f mjpeg pipe:1") {
				t.Fatalf("args %q missing mjpeg stdout output", joined)
			}
			if !strings.Contains(joined, tc.input) {
				t.Fatalf("args %q missing input", joined)
			}
		})
	}
}

// TestConfigDefaults verifies the capture hints fall back to 640x480 at 30fps
// and ffmpeg resolves from PATH.
func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{Source: SourceFFmpeg, Input: "/dev/video0"}.withDefaults()
	if cfg.Width != 640 || cfg.Height != 480 || cfg.FPS != 30 {
		t.Fatalf("defaults = %dx%d@%d", cfg.Width, cfg.Height, cfg.FPS)
	}
	if cfg.FFmpegPath != "ffmpeg" {
		t.Fatalf("ffmpeg path = %q", cfg.FFmpegPath)
	}

	cfg = Config{Source: SourceFFmpeg, Input: "x", Width: 1280, Height: 720, FPS: 15, FFmpegPath: "/opt/ffmpeg"}.withDefaults()
	if cfg.Width != 1280 || cfg.Height != 720 || cfg.FPS != 15 || cfg.FFmpegPath != "/opt/ffmpeg" {
		t.Fatalf("explicit config overwritten: %+v", cfg)
	}
}
