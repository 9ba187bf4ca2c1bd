package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"facewarden/internal/core/event"
	perr "facewarden/internal/platform/errors"
	"facewarden/internal/platform/logger"
	"facewarden/internal/services/stats"

	"github.com/gorilla/websocket"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = (feedPongWait * 9) / 10
	feedReadLimit  = 512

	// clientBuffer is how many events a slow client may fall behind before
	// it starts missing them.
	clientBuffer = 16
)

// feedMessage is the envelope every feed client receives.
type feedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub broadcasts dispatched events to websocket feed clients. It is a Sink,
// so it sits on the same fan-out as the MQTT broker.
//
// Slow clients never stall the dispatcher: when a client's buffer is full
// the event is skipped for that client only.
type Hub struct {
	log      logger.Logger
	stats    *stats.Tracker
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*feedClient]struct{}
	closed  bool
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub builds an empty hub. Clients attach through ServeWS.
func NewHub(tr *stats.Tracker, log logger.Logger) *Hub {
	return &Hub{
		log:   log.With().Str("component", "feed").Logger(),
		stats: tr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*feedClient]struct{}),
	}
}

// Clients returns the number of connected feed clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish wraps the wire payload in the feed envelope and offers it to every
// connected client.
func (h *Hub) Publish(_ context.Context, _ event.Type, payload []byte) error {
	msg, err := json.Marshal(feedMessage{Type: "detection_event", Payload: payload})
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "feed: envelope")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
	return nil
}

// ServeWS upgrades the request and pumps events to the client until it goes
// away. It blocks for the life of the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &feedClient{conn: conn, send: make(chan []byte, clientBuffer)}
	if !h.add(c) {
		_ = conn.Close()
		return
	}
	h.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("feed client connected")

	go h.writePump(c)
	h.readPump(c)
	h.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("feed client disconnected")
}

// Close detaches every client. Further upgrades are refused.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	clients := make([]*feedClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
	return nil
}

func (h *Hub) add(c *feedClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.stats.ObserveFeedClients(len(h.clients))
	return true
}

func (h *Hub) remove(c *feedClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.stats.ObserveFeedClients(n)
	_ = c.conn.Close()
}

// readPump drains and discards inbound frames; the feed is one-way. Its real
// job is keeping the pong deadline fresh and noticing the peer is gone.
func (h *Hub) readPump(c *feedClient) {
	defer h.remove(c)

	c.conn.SetReadLimit(feedReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *feedClient) {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
