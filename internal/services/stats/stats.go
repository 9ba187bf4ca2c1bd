// Package stats aggregates runtime counters for the pipeline and dispatcher.
//
// A single Tracker is shared by the capture loop, the detection workers and
// the dispatcher. Plain counters are atomics; the FPS window, the processing
// time ring and the per-identity alert counts sit behind a small mutex since
// they are multi-field updates.
package stats

import (
	"sync"
	"sync/atomic"
	"time"

	tim "facewarden/internal/platform/time"
)

const (
	// processingWindow is how many recent per-frame processing times feed
	// the rolling average.
	processingWindow = 30

	// fpsWindow is the minimum elapsed time before the FPS figure is
	// recomputed from the frame count of the current window.
	fpsWindow = time.Second

	// staleAfter is how long after the last captured frame the FPS figure
	// is reported as zero.
	staleAfter = 2 * time.Second
)

// Tracker accumulates frame, alert and dispatch counters.
// The zero value is not usable; call New.
type Tracker struct {
	captured  atomic.Uint64
	processed atomic.Uint64
	dropped   atomic.Uint64

	sent         atomic.Uint64
	retried      atomic.Uint64
	dropped2     atomic.Uint64
	suppressed   atomic.Uint64
	queueDepth   atomic.Int64
	clientsGauge atomic.Int64

	mu        sync.Mutex
	fps       float64
	windowAt  time.Time
	windowN   int
	lastFrame time.Time
	samples   []time.Duration
	next      int
	alerts    map[string]uint64
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{alerts: make(map[string]uint64)}
}

// FrameCaptured records one frame read from the camera at the given time.
// FPS is recomputed once at least a second of the current window has elapsed.
func (t *Tracker) FrameCaptured(now time.Time) {
	t.captured.Add(1)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.windowAt.IsZero() {
		t.windowAt = now
	}
	t.windowN++
	t.lastFrame = now
	if elapsed := now.Sub(t.windowAt); elapsed >= fpsWindow {
		t.fps = float64(t.windowN) / elapsed.Seconds()
		t.windowAt = now
		t.windowN = 0
	}
}

// FrameProcessed records one frame that made it through a detection worker
// along with how long the worker spent on it.
func (t *Tracker) FrameProcessed(d time.Duration) {
	t.processed.Add(1)

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.samples) < processingWindow {
		t.samples = append(t.samples, d)
		return
	}
	t.samples[t.next] = d
	t.next = (t.next + 1) % processingWindow
}

// FrameDropped records one frame discarded because the work queue was full.
func (t *Tracker) FrameDropped() { t.dropped.Add(1) }

// AlertFired bumps the per-identity alert count. Unknown-person alerts are
// keyed under "unknown".
func (t *Tracker) AlertFired(name string) {
	if name == "" {
		name = "unknown"
	}
	t.mu.Lock()
	t.alerts[name]++
	t.mu.Unlock()
}

// ObserveQueueDepth records the current depth of the detection work queue.
func (t *Tracker) ObserveQueueDepth(n int) { t.queueDepth.Store(int64(n)) }

// ObserveFeedClients records the current number of websocket feed clients.
func (t *Tracker) ObserveFeedClients(n int) { t.clientsGauge.Store(int64(n)) }

// DispatchSent records an event delivered to the webhook.
func (t *Tracker) DispatchSent() { t.sent.Add(1) }

// DispatchRetried records a webhook delivery that needed its one retry.
func (t *Tracker) DispatchRetried() { t.retried.Add(1) }

// DispatchDropped records an event abandoned by the dispatcher.
func (t *Tracker) DispatchDropped() { t.dropped2.Add(1) }

// DispatchSuppressed records an event that would have been sent had a
// webhook URL been configured.
func (t *Tracker) DispatchSuppressed() { t.suppressed.Add(1) }

// DispatchCounters is the dispatcher slice of a snapshot.
type DispatchCounters struct {
	Sent       uint64 `json:"sent"`
	Retried    uint64 `json:"retried"`
	Dropped    uint64 `json:"dropped"`
	Suppressed uint64 `json:"suppressed"`
}

// Snapshot is a point-in-time copy of every counter, shaped for the
// statistics endpoint.
type Snapshot struct {
	FramesCaptured  uint64            `json:"frames_captured"`
	FramesProcessed uint64            `json:"frames_processed"`
	FramesDropped   uint64            `json:"frames_dropped"`
	FPS             float64           `json:"fps"`
	AvgProcessingMS float64           `json:"avg_processing_ms"`
	QueueDepth      int               `json:"queue_depth"`
	FeedClients     int               `json:"feed_clients"`
	LastFrameAt     *time.Time        `json:"last_frame_at,omitempty"`
	AlertsByName    map[string]uint64 `json:"alerts_by_name"`
	Dispatch        DispatchCounters  `json:"dispatch"`
}

// Snapshot returns a copy of the current counters. The FPS figure reads as
// zero when no frame has arrived within the staleness window.
func (t *Tracker) Snapshot() Snapshot {
	return t.snapshotAt(time.Now())
}

func (t *Tracker) snapshotAt(now time.Time) Snapshot {
	s := Snapshot{
		FramesCaptured:  t.captured.Load(),
		FramesProcessed: t.processed.Load(),
		FramesDropped:   t.dropped.Load(),
		QueueDepth:      int(t.queueDepth.Load()),
		FeedClients:     int(t.clientsGauge.Load()),
		Dispatch: DispatchCounters{
			Sent:       t.sent.Load(),
			Retried:    t.retried.Load(),
			Dropped:    t.dropped2.Load(),
			Suppressed: t.suppressed.Load(),
		},
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s.FPS = t.fps
	s.LastFrameAt = tim.Ptr(t.lastFrame)
	if t.lastFrame.IsZero() || now.Sub(t.lastFrame) > staleAfter {
		s.FPS = 0
	}

	if len(t.samples) > 0 {
		var total time.Duration
		for _, d := range t.samples {
			total += d
		}
		s.AvgProcessingMS = float64(total.Microseconds()) / float64(len(t.samples)) / 1000
	}

	s.AlertsByName = make(map[string]uint64, len(t.alerts))
	for name, n := range t.alerts {
		s.AlertsByName[name] = n
	}
	return s
}
