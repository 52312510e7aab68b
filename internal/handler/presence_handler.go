package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"roomsync/internal/middleware"
	"roomsync/internal/service"
)

// PresenceHandler handles the presence endpoints
type PresenceHandler struct {
	presence *service.PresenceService
}

// NewPresenceHandler creates a new presence handler
func NewPresenceHandler(presence *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// Heartbeat records a liveness announcement for the caller.
func (h *PresenceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
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

	if err := h.presence.Heartbeat(r.Context(), roomID, *principal); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Withdraw removes the caller's presence record on explicit leave.
func (h *PresenceHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
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

	if err := h.presence.Withdraw(r.Context(), roomID, principal.ID); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Online lists the room's currently online principals.
func (h *PresenceHandler) Online(w http.ResponseWriter, r *http.Request) {
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

	online, err := h.presence.Online(r.Context(), roomID, principal.ID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"online": online})
}
