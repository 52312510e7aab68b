package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"roomsync/internal/middleware"
	"roomsync/internal/service"
)

// RoomHandler handles the room directory endpoints
type RoomHandler struct {
	rooms *service.RoomService
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(rooms *service.RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// CreateRoomRequest represents a room creation request
type CreateRoomRequest struct {
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
}

// JoinRoomRequest represents a join request
type JoinRoomRequest struct {
	Password string `json:"password,omitempty"`
}

// List retrieves all rooms
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.ListRooms(r.Context())
	if err != nil {
		http.Error(w, `{"error":"failed to retrieve rooms"}`, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

// Create creates a new room with the caller as owner
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	room, err := h.rooms.CreateRoom(r.Context(), req.Name, req.Password, *principal)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, room)
}

// Join adds the caller to a room
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
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

	var req JoinRoomRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
	}

	if err := h.rooms.JoinRoom(r.Context(), roomID, req.Password, *principal); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"joined": true})
}
