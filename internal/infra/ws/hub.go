package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pthora/eldwatch/internal/domain/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// message is the wire envelope around a domain event.
type message struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Hub fans agent events out to connected dashboard clients. Slow
// clients get dropped, never waited on.
type Hub struct {
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan message
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// dashboard is served from another origin in dev
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log:     log,
		clients: make(map[string]*client),
	}
}

// Broadcast implements events.Notifier. Non-blocking: full send buffers
// drop the client.
func (h *Hub) Broadcast(e events.Event) {
	msg := message{Type: e.Type, Timestamp: time.Now(), Data: e.Data}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn().Str("client", id).Msg("websocket client too slow, dropping")
			delete(h.clients, id)
			close(c.send)
		}
	}
}

// ClientCount is exposed on the health endpoint.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan message, sendBuffer),
	}

	// welcome goes on the buffer before anyone else knows the channel;
	// after registration a broadcast burst may close it.
	c.send <- message{
		Type:      "connected",
		Timestamp: time.Now(),
		Data:      map[string]any{"client_id": c.id},
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	go c.writePump()
	go h.readPump(c)
}

// readPump discards inbound frames; the socket is outbound-only. It
// exists to notice closes and answer pings.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug().Err(err).Str("client", c.id).Msg("websocket read error")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
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

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}
