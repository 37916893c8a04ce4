package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/keymint/keymint-server/internal/keys"
	"github.com/keymint/keymint-server/internal/logger"
)

// JWKSHandler publishes the active public key set. Rotation is infrequent,
// so responses are cacheable for a short TTL with stale-while-revalidate
// tolerance.
type JWKSHandler struct {
	keys   *keys.Manager
	maxAge time.Duration
	logger *logger.Logger
}

func NewJWKSHandler(keys *keys.Manager, maxAge time.Duration, logger *logger.Logger) *JWKSHandler {
	return &JWKSHandler{keys: keys, maxAge: maxAge, logger: logger}
}

// Serve returns the key set in JWKS format.
func (h *JWKSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	set, err := h.keys.JWKS(r.Context())
	if err != nil {
		h.logger.Error("JWKS handler: export failed", "error", err.Error())
		handleError(w, err)
		return
	}

	maxAge := int(h.maxAge.Seconds())
	w.Header().Set("Cache-Control",
		fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", maxAge, maxAge/5))
	writeJSON(w, http.StatusOK, set)
}
