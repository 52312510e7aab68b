package handler

import (
	"encoding/json"
	"net/http"

	"roomsync/internal/domain"
	"roomsync/internal/middleware"
	"roomsync/internal/session"
)

// SessionHandler issues and revokes bearer tokens.
type SessionHandler struct {
	sessions *session.Store
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *session.Store) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// CreateSessionRequest represents a token request
type CreateSessionRequest struct {
	DisplayName string `json:"display_name"`
}

// CreateSessionResponse carries the issued token and its principal
type CreateSessionResponse struct {
	Token     string           `json:"token"`
	Principal domain.Principal `json:"principal"`
}

// Create issues a fresh token for the given display name.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	token, principal, err := h.sessions.Create(r.Context(), req.DisplayName)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, CreateSessionResponse{
		Token:     token,
		Principal: *principal,
	})
}

// Me returns the principal the caller's token resolves to. Clients that
// reuse a stored token recover their identity through it.
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
		return
	}

	respondJSON(w, http.StatusOK, principal)
}
