package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/pitwall/internal/metrics"
	"github.com/woozymasta/pitwall/internal/models"
)

// MessageTypeSnapshot frames carry the full list of server statuses.
const MessageTypeSnapshot = "status_snapshot"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// Message is a websocket frame sent to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans status snapshots out to websocket clients.
// New clients receive the latest snapshot right after connecting.
type Hub struct {
	clients  map[*wsClient]struct{}
	upgrader websocket.Upgrader
	last     []byte
	mu       sync.Mutex
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Status data is public and read-only
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// String names the service for the supervisor.
func (h *Hub) String() string {
	return "websocket-hub"
}

// Serve blocks until ctx is canceled and then disconnects every client.
func (h *Hub) Serve(ctx context.Context) error {
	<-ctx.Done()

	h.mu.Lock()
	count := len(h.clients)
	for c := range h.clients {
		h.dropLocked(c)
	}
	h.mu.Unlock()

	log.Info().Int("clients_closed", count).Msg("Websocket hub stopped")
	return ctx.Err()
}

// Broadcast encodes the snapshot once and queues it for every client.
// Clients whose buffer is full are disconnected instead of blocking the caller.
func (h *Hub) Broadcast(list []models.ServerStatus) {
	frame, err := json.Marshal(Message{Type: MessageTypeSnapshot, Data: list})
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode status snapshot")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = frame
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			log.Debug().Str("remote", c.remote).Msg("Slow websocket client dropped")
			h.dropLocked(c)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, remote string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an error status
		log.Debug().Err(err).Str("remote", remote).Msg("Websocket upgrade failed")
		return
	}

	c := &wsClient{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		remote: remote,
	}
	h.add(c)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}

	metrics.WebSocketClients.Inc()
	log.Debug().Str("remote", c.remote).Int("total_clients", len(h.clients)).Msg("Websocket client connected")
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropLocked(c)
}

// dropLocked unregisters c and closes its queue, which ends its write pump. Callers hold mu.
func (h *Hub) dropLocked(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	delete(h.clients, c)
	close(c.send)
	metrics.WebSocketClients.Dec()
}

type wsClient struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	remote string
}

// readPump only keeps the connection alive; client messages are discarded.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("remote", c.remote).Msg("Unexpected websocket close")
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
