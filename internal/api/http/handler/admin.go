package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/keymint/keymint-server/internal/api/http/httpctx"
	"github.com/keymint/keymint-server/internal/keys"
	"github.com/keymint/keymint-server/internal/logger"
	"github.com/keymint/keymint-server/internal/service"
)

const adminRole = "admin"

// Admin serves the key lifecycle and token revocation operations consumed
// by the administration layer.
type Admin struct {
	keys           *keys.Manager
	tokens         *service.TokenService
	contextManager *httpctx.Manager
	logger         *logger.Logger
}

func NewAdmin(keys *keys.Manager, tokens *service.TokenService, contextManager *httpctx.Manager, logger *logger.Logger) *Admin {
	return &Admin{keys: keys, tokens: tokens, contextManager: contextManager, logger: logger}
}

// requireAdmin rejects callers whose verified claims lack the admin role.
func (h *Admin) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	claims, ok := h.contextManager.GetClaims(r.Context())
	if !ok || claims.Role != adminRole {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return false
	}
	return true
}

// GenerateKey creates and activates a fresh signing key without touching
// existing keys.
func (h *Admin) GenerateKey(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	key, err := h.keys.GenerateKeyPair()
	if err != nil {
		handleError(w, err)
		return
	}
	if err := h.keys.ActivateAndPersist(r.Context(), key); err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"kid": key.Kid})
}

type rotateRequest struct {
	Graceful bool `json:"graceful"`
}

// RotateKeys generates and activates a new signing key, optionally retiring
// all previously active keys.
func (h *Admin) RotateKeys(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req rotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	key, err := h.keys.Rotate(r.Context(), req.Graceful)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"kid": key.Kid})
}

// RetireKey deactivates a key by kid.
func (h *Admin) RetireKey(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	kid := mux.Vars(r)["kid"]
	if err := h.keys.Retire(r.Context(), kid); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type revokeAccessRequest struct {
	JTI       uuid.UUID `json:"jti"`
	UserID    uuid.UUID `json:"user_id"`
	AppID     string    `json:"app_id"`
	Reason    string    `json:"reason"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RevokeAccessToken denylists a specific access token until its natural
// expiry.
func (h *Admin) RevokeAccessToken(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req revokeAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JTI == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	if err := h.tokens.RevokeAccess(r.Context(), req.JTI, req.UserID, req.AppID, req.Reason, req.ExpiresAt); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DenylistCount reports the number of denylist entries for monitoring.
func (h *Admin) DenylistCount(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	count, err := h.tokens.DenylistCount(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}
