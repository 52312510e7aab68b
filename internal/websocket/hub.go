// Package websocket relays room push events to connected clients. The
// relay is a delivery hint channel only: clients fetch message data over
// HTTP, never from these frames.
package websocket

import (
	"context"
	"log/slog"

	"roomsync/internal/observability"
)

// BroadcastEvent is one event addressed to every client in a room.
type BroadcastEvent struct {
	RoomID string
	Topic  string
	Frame  []byte
}

// Hub maintains active clients per room and fans events out to them.
type Hub struct {
	// Registered clients by room
	clients map[string]map[*Client]bool

	broadcast  chan *BroadcastEvent
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan *BroadcastEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			slog.Info("hub shutting down gracefully")
			return ctx.Err()

		case client := <-h.register:
			if h.clients[client.roomID] == nil {
				h.clients[client.roomID] = make(map[*Client]bool)
			}
			h.clients[client.roomID][client] = true
			observability.WebSocketConnectionsActive.WithLabelValues(client.roomID).Inc()
			slog.Info("client registered",
				slog.String("principal_id", client.principal.ID),
				slog.String("room_id", client.roomID))

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			clients, ok := h.clients[event.RoomID]
			if !ok {
				continue
			}
			for client := range clients {
				select {
				case client.send <- event.Frame:
					observability.WebSocketEventsSent.WithLabelValues(event.RoomID, event.Topic).Inc()
				default:
					// Client's send buffer is full, close connection
					h.closeClientSend(client)
					delete(clients, client)
				}
			}
		}
	}
}

// unregisterClient safely removes a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	clients, ok := h.clients[client.roomID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	h.closeClientSend(client)
	observability.WebSocketConnectionsActive.WithLabelValues(client.roomID).Dec()
	slog.Info("client unregistered",
		slog.String("principal_id", client.principal.ID),
		slog.String("room_id", client.roomID))

	if len(clients) == 0 {
		delete(h.clients, client.roomID)
	}
}

// closeClientSend safely closes a client's send channel
func (h *Hub) closeClientSend(client *Client) {
	select {
	case <-client.send:
		// Channel already closed
	default:
		close(client.send)
	}
}

// shutdown performs graceful cleanup of all connections
func (h *Hub) shutdown() {
	close(h.done)

	for roomID, clients := range h.clients {
		for client := range clients {
			h.closeClientSend(client)
			slog.Info("closed client connection",
				slog.String("principal_id", client.principal.ID),
				slog.String("room_id", roomID))
		}
	}

	slog.Info("hub shutdown complete")
}

// Broadcast sends an event frame to all clients in a room.
func (h *Hub) Broadcast(roomID, topic string, frame []byte) {
	h.broadcast <- &BroadcastEvent{
		RoomID: roomID,
		Topic:  topic,
		Frame:  frame,
	}
}

// Register registers a client with the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}
