package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/keymint/keymint-server/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// handleError maps core errors onto HTTP responses. Validation failures are
// routine outcomes; only a missing signing key or an unexpected store error
// is a server fault.
func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
	case errors.Is(err, model.ErrRefreshTokenInvalid):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid refresh token"})
	case errors.Is(err, model.ErrTokenExpired),
		errors.Is(err, model.ErrTokenMalformed),
		errors.Is(err, model.ErrTokenNotYetValid),
		errors.Is(err, model.ErrSignatureInvalid),
		errors.Is(err, model.ErrAudienceMismatch),
		errors.Is(err, model.ErrIssuerMismatch),
		errors.Is(err, model.ErrTokenVersionStale),
		errors.Is(err, model.ErrTokenRevoked):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	case errors.Is(err, model.ErrKeyNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "key not found"})
	case errors.Is(err, model.ErrLastActiveKey):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "cannot retire last active key"})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, model.ErrAccountLockedOut), errors.Is(err, model.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
