package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"roomsync/internal/middleware"
	"roomsync/internal/service"
)

// MessageHandler handles the message log endpoints
type MessageHandler struct {
	rooms *service.RoomService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(rooms *service.RoomService) *MessageHandler {
	return &MessageHandler{rooms: rooms}
}

// SendMessageRequest represents a message send request
type SendMessageRequest struct {
	Content string `json:"content"`
}

// List serves both read modes of the message log: ?since=N returns newer
// messages ascending for incremental sync, ?before=N (or no cursor)
// returns a history page newest-first.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
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

	query := r.URL.Query()
	limit := 0
	if limitStr := query.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	if sinceStr := query.Get("since"); sinceStr != "" {
		since, err := strconv.ParseInt(sinceStr, 10, 64)
		if err != nil || since < 0 {
			http.Error(w, `{"error":"invalid since cursor"}`, http.StatusBadRequest)
			return
		}
		messages, err := h.rooms.ListSince(r.Context(), roomID, principal.ID, since, limit)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
		return
	}

	var before int64
	if beforeStr := query.Get("before"); beforeStr != "" {
		parsed, err := strconv.ParseInt(beforeStr, 10, 64)
		if err != nil || parsed < 0 {
			http.Error(w, `{"error":"invalid before cursor"}`, http.StatusBadRequest)
			return
		}
		before = parsed
	}

	messages, err := h.rooms.ListPage(r.Context(), roomID, principal.ID, before, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// Send appends one message to the room's log.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
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

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	msg, err := h.rooms.SendMessage(r.Context(), roomID, *principal, req.Content)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, msg)
}
