package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"roomsync/internal/middleware"
	"roomsync/internal/pubsub"
	"roomsync/internal/service"
	ws "roomsync/internal/websocket"
)

// WebSocketHandler upgrades connections onto the room event relay.
type WebSocketHandler struct {
	hub      *ws.Hub
	bridge   *ws.Bridge
	rooms    *service.RoomService
	broker   pubsub.Broker
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler. allowedOrigins
// uses the same semantics as the CORS middleware.
func NewWebSocketHandler(hub *ws.Hub, bridge *ws.Bridge, rooms *service.RoomService, broker pubsub.Broker, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		bridge: bridge,
		rooms:  rooms,
		broker: broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					// Non-browser clients send no Origin header.
					return true
				}
				for _, o := range allowedOrigins {
					if o == origin || o == "*" {
						return true
					}
				}
				return false
			},
		},
	}
}

// HandleConnection handles WebSocket upgrade and connection
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
		return
	}

	roomID := chi.URLParam(r, "id")
	if roomID == "" {
		http.Error(w, `{"error":"room id required"}`, http.StatusBadRequest)
		return
	}

	isMember, err := h.rooms.IsMember(r.Context(), roomID, principal.ID)
	if err != nil || !isMember {
		http.Error(w, `{"error":"not a member of this room"}`, http.StatusForbidden)
		return
	}

	if err := h.bridge.Acquire(roomID); err != nil {
		slog.Error("bridge subscribe failed",
			slog.String("room_id", roomID),
			slog.String("error", err.Error()))
		http.Error(w, `{"error":"push channel unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.bridge.Release(roomID)
		slog.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := ws.NewClient(r.Context(), h.hub, conn, *principal, roomID, h.broker)
	h.hub.Register(client)

	go client.WritePump()
	go func() {
		client.ReadPump()
		h.bridge.Release(roomID)
	}()
}
