package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"roomsync/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// respondError maps domain errors onto HTTP statuses. Unknown errors are
// a 500 with a generic body; the detail stays in the logs.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrMessageNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrNotMember):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrWrongPassword):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrInvalidContent), errors.Is(err, domain.ErrInvalidInput):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrRateLimited):
		status, message = http.StatusTooManyRequests, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		status, message = http.StatusUnauthorized, err.Error()
	}

	respondJSON(w, status, map[string]string{"error": message})
}
