package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/tdlobby/internal/model"
	"github.com/mcoot/tdlobby/internal/protocol"
	"github.com/mcoot/tdlobby/internal/services/broadcast"
)

// Hub tracks live WebSocket clients by connection id and delivers frames to them
type Hub struct {
	clients map[model.ConnectionID]*Client
	mu      sync.RWMutex
	logger  *slog.Logger
}

// NewHub creates an empty Hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[model.ConnectionID]*Client),
		logger:  logger.With(slog.String("component", "ws")),
	}
}

// Ensure Hub implements the broadcast transport
var _ broadcast.Transport = (*Hub)(nil)

// Register adds a client
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("ws client registered",
		slog.String("connection_id", string(client.id)),
		slog.Int("total_clients", count))
}

// Unregister removes a client and closes its send channel. Unknown clients are ignored.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.id]
	if !ok || current != client {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.id)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("ws client unregistered",
		slog.String("connection_id", string(client.id)),
		slog.Duration("connection_duration", time.Since(client.connectedAt)),
		slog.Int("total_clients", count))
}

// Emit queues an event for one connection. Unknown connections are ignored.
func (h *Hub) Emit(conn model.ConnectionID, event string, payload any) {
	frame, ok := h.encode(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if client, ok := h.clients[conn]; ok {
		h.deliver(client, event, frame)
	}
}

// EmitToAll queues an event for every connection
func (h *Hub) EmitToAll(event string, payload any) {
	frame, ok := h.encode(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		h.deliver(client, event, frame)
	}
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// deliver must be called with the read lock held, so send is never closed underneath it
func (h *Hub) deliver(client *Client, event string, frame []byte) {
	select {
	case client.send <- frame:
	default:
		h.logger.Warn("ws message dropped - client buffer full",
			slog.String("connection_id", string(client.id)),
			slog.String("event", event))
	}
}

func (h *Hub) encode(event string, payload any) ([]byte, bool) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		h.logger.Error("failed to encode frame",
			slog.String("event", event),
			slog.Any("error", err))
		return nil, false
	}
	return frame, true
}
