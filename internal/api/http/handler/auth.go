package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/keymint/keymint-server/internal/api/http/httpctx"
	"github.com/keymint/keymint-server/internal/lockout"
	"github.com/keymint/keymint-server/internal/logger"
	"github.com/keymint/keymint-server/internal/model"
	"github.com/keymint/keymint-server/internal/service"

	"github.com/google/uuid"
)

// Auth serves login, refresh and logout.
type Auth struct {
	tokens         *service.TokenService
	passwords      model.PasswordVerifier
	tracker        *lockout.Tracker
	contextManager *httpctx.Manager
	logger         *logger.Logger
}

func NewAuth(
	tokens *service.TokenService,
	passwords model.PasswordVerifier,
	tracker *lockout.Tracker,
	contextManager *httpctx.Manager,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		tokens:         tokens,
		passwords:      passwords,
		tracker:        tracker,
		contextManager: contextManager,
		logger:         logger,
	}
}

type loginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
	Audience string `json:"audience"`
}

// Login verifies credentials behind the lockout gate and issues a token
// pair.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identity == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	origin := clientOrigin(r)
	if locked, retryAfter := h.tracker.IsLockedOut(origin, req.Identity); locked {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
		handleError(w, model.ErrAccountLockedOut)
		return
	}

	userID, err := h.passwords.VerifyPassword(r.Context(), req.Identity, req.Password)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			if locked, retryAfter := h.tracker.RecordFailure(origin, req.Identity); locked {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
				handleError(w, model.ErrAccountLockedOut)
				return
			}
		}
		handleError(w, err)
		return
	}
	h.tracker.RecordSuccess(origin, req.Identity)

	pair, err := h.tokens.IssuePair(r.Context(), userID, req.Audience)
	if err != nil {
		h.logger.Error("Auth handler: failed to issue token pair",
			"user_id", userID,
			"error", err.Error())
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	Audience     string `json:"audience"`
}

// Refresh rotates a presented refresh token into a new token pair.
func (h *Auth) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	pair, err := h.tokens.Refresh(r.Context(), req.RefreshToken, req.Audience)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Logout revokes the presented refresh token.
func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	if err := h.tokens.RevokeByToken(r.Context(), req.RefreshToken); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll bumps the caller's token version and revokes every refresh
// token. Requires an authenticated request.
func (h *Auth) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.contextManager.GetClaims(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	if err := h.tokens.GlobalLogout(r.Context(), userID); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// clientOrigin extracts the network origin used for lockout accounting.
func clientOrigin(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
