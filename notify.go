package argot

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Event is broadcast to live clients when the board changes.
type Event struct {
	Type      string `json:"type"` // "post" or "comment"
	PostID    string `json:"post_id"`
	CommentID string `json:"comment_id,omitempty"`
}

// Hub fans board events out to connected websocket clients. A client whose
// buffer is full is dropped rather than blocking the publisher.
type Hub struct {
	mu      sync.Mutex
	clients map[*liveClient]struct{}
	log     zerolog.Logger
	gauge   prometheus.Gauge
	closed  bool
}

type liveClient struct {
	conn *websocket.Conn
	send chan Event
}

// NewHub returns an empty hub.
func NewHub(log zerolog.Logger, m *Metrics) *Hub {
	return &Hub{
		clients: make(map[*liveClient]struct{}),
		log:     log.With().Str("component", "hub").Logger(),
		gauge:   m.LiveClients,
	}
}

// Publish queues ev for every connected client.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			h.removeLocked(c)
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
	h.closed = true
}

func (h *Hub) add(c *liveClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.gauge.Set(float64(len(h.clients)))
	return true
}

func (h *Hub) remove(c *liveClient) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *liveClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.gauge.Set(float64(len(h.clients)))
}

// ServeWS upgrades the request and streams events until the client goes away.
func (h *Hub) ServeWS(upgrader *websocket.Upgrader) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			h.log.Warn().Err(err).Msg("websocket upgrade failed")
			return nil
		}
		client := &liveClient{conn: conn, send: make(chan Event, sendBuffer)}
		if !h.add(client) {
			conn.Close()
			return nil
		}
		h.log.Debug().Str("remote", c.RealIP()).Msg("live client connected")
		go client.readPump(h)
		client.writePump()
		return nil
	}
}

// readPump only exists to process pongs and notice disconnects; clients
// do not send anything meaningful.
func (c *liveClient) readPump(h *Hub) {
	defer h.remove(c)
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *liveClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func newUpgrader(origins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range origins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
}
