package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/jeongseonghan/ntn-linksim/internal/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage represents a WebSocket message.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// PointPayload carries one finished sweep point.
type PointPayload struct {
	SweepID string  `json:"sweep_id"`
	Sweep   string  `json:"sweep"`
	Index   int     `json:"index"`
	Value   float64 `json:"value"`
	BER     float64 `json:"ber"`
}

// StatusPayload reports a sweep lifecycle change.
type StatusPayload struct {
	SweepID string `json:"sweep_id,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// WSHub manages WebSocket connections.
type WSHub struct {
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	log     logging.Logger
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub(log logging.Logger) *WSHub {
	if log == nil {
		log = logging.Noop()
	}
	return &WSHub{
		clients: make(map[*websocket.Conn]bool),
		log:     log,
	}
}

// AddClient registers a new WebSocket connection.
func (h *WSHub) AddClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
	h.log.Info(context.Background(), "WebSocket client connected", logging.Int("clients", len(h.clients)))
}

// RemoveClient removes a WebSocket connection.
func (h *WSHub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[conn] {
		return
	}
	delete(h.clients, conn)
	conn.Close()
	h.log.Info(context.Background(), "WebSocket client disconnected", logging.Int("clients", len(h.clients)))
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends a message to all connected clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error(context.Background(), "WebSocket marshal error", logging.Err(err))
		return
	}

	// Writes are serialized under the lock; a gorilla conn allows one writer.
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Warn(context.Background(), "WebSocket write error", logging.Err(err))
			go h.RemoveClient(conn)
		}
	}
}

// BroadcastPoint sends a finished sweep point to all clients.
func (h *WSHub) BroadcastPoint(p PointPayload) {
	h.Broadcast(WSMessage{Type: "point", Payload: p})
}

// BroadcastStatus sends a status update to all clients.
func (h *WSHub) BroadcastStatus(sweepID, status, message string) {
	h.Broadcast(WSMessage{
		Type: "status",
		Payload: StatusPayload{
			SweepID: sweepID,
			Status:  status,
			Message: message,
		},
	})
}
