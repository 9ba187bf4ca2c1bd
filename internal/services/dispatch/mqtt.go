package dispatch

import (
	"context"
	"time"

	"facewarden/internal/core/event"
	perr "facewarden/internal/platform/errors"
	"facewarden/internal/platform/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Events are fire-and-forget; a missed alert on the bus is not worth
// blocking the dispatcher for.
const qosEvents = 0

// MQTTConfig configures the broker sink.
type MQTTConfig struct {
	// Broker is the host:port of the MQTT broker.
	Broker string

	// ClientID identifies this agent on the broker.
	ClientID string

	// TopicPrefix roots the event topics: <prefix>/events/<event_type>.
	TopicPrefix string

	// ConnectTimeout bounds the initial connect.
	ConnectTimeout time.Duration
}

func (c MQTTConfig) withDefaults() MQTTConfig {
	if c.ClientID == "" {
		c.ClientID = "facewarden"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "facewarden"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	return c
}

// MQTTSink publishes events to an MQTT broker, one topic per event type.
// The paho client reconnects on its own after broker hiccups; publishes in
// the gap fail and are logged by the dispatcher.
type MQTTSink struct {
	cfg    MQTTConfig
	log    logger.Logger
	client mqtt.Client
}

// OpenMQTT connects to the broker and returns the sink. The initial connect
// is synchronous so a bad broker address surfaces at startup.
func OpenMQTT(cfg MQTTConfig, log logger.Logger) (*MQTTSink, error) {
	cfg = cfg.withDefaults()
	if cfg.Broker == "" {
		return nil, perr.InvalidArgf("mqtt: broker address is empty")
	}

	s := &MQTTSink{cfg: cfg, log: log.With().Str("component", "mqtt").Logger()}

	opts := mqtt.NewClientOptions()
	opts.AddBroker("tcp://" + cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		s.log.Info().Str("broker", cfg.Broker).Str("client_id", cfg.ClientID).Msg("mqtt connected")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		s.log.Warn().Err(err).Str("broker", cfg.Broker).Msg("mqtt connection lost, reconnecting")
	}

	s.client = mqtt.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, perr.Unavailablef("mqtt: connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "mqtt: connect")
	}
	return s, nil
}

// Publish sends the payload to <prefix>/events/<event_type>.
func (s *MQTTSink) Publish(ctx context.Context, typ event.Type, payload []byte) error {
	topic := s.cfg.TopicPrefix + "/events/" + string(typ)
	token := s.client.Publish(topic, qosEvents, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return perr.Wrap(err, perr.ErrorCodeUnavailable, "mqtt: publish "+topic)
		}
		return nil
	case <-ctx.Done():
		return perr.Wrap(ctx.Err(), perr.ErrorCodeUnavailable, "mqtt: publish "+topic)
	}
}

// Close disconnects from the broker after letting in-flight work quiesce.
func (s *MQTTSink) Close() error {
	if s.client.IsConnected() {
		s.client.Disconnect(250)
		s.log.Info().Msg("mqtt disconnected")
	}
	return nil
}
