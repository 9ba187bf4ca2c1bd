// Package dispatch delivers detection events to the configured outputs.
//
// Events enter through a bounded queue and leave through a single sender
// goroutine: first the webhook POST, then every registered sink (MQTT
// broker, websocket feed). Enqueueing never blocks the pipeline; when the
// queue is full the event is counted and dropped. Webhook delivery gets at
// most one retry, and only when the failure was classified transient.
package dispatch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"facewarden/internal/core/event"
	perr "facewarden/internal/platform/errors"
	"facewarden/internal/platform/logger"
	"facewarden/internal/services/stats"
)

// Sink receives the wire payload of every event the dispatcher processes,
// whether or not a webhook is configured.
type Sink interface {
	Publish(ctx context.Context, typ event.Type, payload []byte) error
	Close() error
}

// Options configure a Dispatcher.
type Options struct {
	// WebhookURL is the alert endpoint. Empty disables webhook delivery;
	// events are then counted as suppressed but still reach the sinks.
	WebhookURL string

	// Timeout bounds each webhook attempt and each sink publish.
	Timeout time.Duration

	// QueueSize bounds how many events may wait for the sender.
	QueueSize int

	// RetryDelay is the pause before the single webhook retry.
	RetryDelay time.Duration

	// Client overrides the webhook HTTP client.
	Client *http.Client
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 250 * time.Millisecond
	}
	if o.Client == nil {
		o.Client = &http.Client{}
	}
	return o
}

// Dispatcher owns the outbound side of the alert path.
type Dispatcher struct {
	opts  Options
	log   logger.Logger
	stats *stats.Tracker
	sinks []Sink

	queue   chan event.Event
	stop    chan struct{}
	done    chan struct{}
	closing atomic.Bool
}

// New builds a dispatcher and starts its sender goroutine. The tracker must
// not be nil; sinks may be empty.
func New(opts Options, tr *stats.Tracker, log logger.Logger, sinks ...Sink) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts:  opts,
		log:   log.With().Str("component", "dispatch").Logger(),
		stats: tr,
		sinks: sinks,
		queue: make(chan event.Event, opts.QueueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// WebhookEnabled reports whether a webhook URL is configured.
func (d *Dispatcher) WebhookEnabled() bool { return d.opts.WebhookURL != "" }

// WebhookURL returns the configured webhook URL, or "".
func (d *Dispatcher) WebhookURL() string { return d.opts.WebhookURL }

// Send queues ev for delivery and reports whether it was accepted. It never
// blocks: a full queue or a closed dispatcher drops the event.
func (d *Dispatcher) Send(ev event.Event) bool {
	if d.closing.Load() {
		d.stats.DispatchDropped()
		return false
	}
	select {
	case d.queue <- ev:
		return true
	default:
		d.stats.DispatchDropped()
		d.log.Warn().Str("event_type", string(ev.Type)).Msg("dispatch queue full, event dropped")
		return false
	}
}

// Close stops intake and flushes queued events. The context bounds the
// flush; on expiry whatever is still queued is abandoned. Sinks are closed
// either way.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d.closing.Swap(true) {
		<-d.done
		return nil
	}
	close(d.stop)

	var err error
	select {
	case <-d.done:
	case <-ctx.Done():
		err = perr.Unavailablef("dispatch: close abandoned %d queued events", len(d.queue))
	}

	for _, s := range d.sinks {
		if cerr := s.Close(); cerr != nil {
			d.log.Warn().Err(cerr).Msg("sink close failed")
		}
	}
	return err
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev event.Event) {
	payload, err := event.Marshal(ev)
	if err != nil {
		d.stats.DispatchDropped()
		d.log.Error().Err(err).Str("event_type", string(ev.Type)).Msg("event failed wire validation, dropped")
		return
	}

	if d.opts.WebhookURL == "" {
		d.stats.DispatchSuppressed()
		d.log.Debug().Str("event_type", string(ev.Type)).Msg("no webhook configured, event suppressed")
	} else {
		d.post(ev.Type, payload)
	}

	for _, s := range d.sinks {
		d.publish(s, ev.Type, payload)
	}
}

func (d *Dispatcher) publish(s Sink, typ event.Type, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
	defer cancel()
	if err := s.Publish(ctx, typ, payload); err != nil {
		d.log.Warn().Err(err).Str("event_type", string(typ)).Msg("sink publish failed")
	}
}

// post delivers one payload to the webhook with at most one retry.
func (d *Dispatcher) post(typ event.Type, payload []byte) {
	err := d.postOnce(payload)
	if err == nil {
		d.stats.DispatchSent()
		return
	}
	if !transient(err) {
		d.stats.DispatchDropped()
		d.log.Warn().Err(err).Str("event_type", string(typ)).Msg("webhook refused event, dropped")
		return
	}

	d.stats.DispatchRetried()
	d.log.Debug().Err(err).Str("event_type", string(typ)).Msg("webhook delivery failed, retrying once")
	time.Sleep(d.opts.RetryDelay)

	if err := d.postOnce(payload); err != nil {
		d.stats.DispatchDropped()
		d.log.Warn().Err(err).Str("event_type", string(typ)).Msg("webhook retry failed, event dropped")
		return
	}
	d.stats.DispatchSent()
}

func (d *Dispatcher) postOnce(payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.opts.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeInvalidArgument, "dispatch: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.opts.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return perr.Wrap(err, perr.ErrorCodeUnavailable, "dispatch: webhook timeout")
		}
		return perr.FromTransport(err, "dispatch: webhook post")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return perr.FromStatus(resp.StatusCode, "dispatch: webhook")
}

// transient reports whether a classified delivery error is worth the single
// retry. Classification happens in postOnce; 4xx maps to Rejected and stays
// final.
func transient(err error) bool {
	return perr.IsCode(err, perr.ErrorCodeUnavailable) || perr.IsCode(err, perr.ErrorCodeTooManyRequests)
}
