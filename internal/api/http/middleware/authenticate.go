package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/keymint/keymint-server/internal/api/http/httpctx"
	"github.com/keymint/keymint-server/internal/logger"
	"github.com/keymint/keymint-server/internal/token"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenString, expectedAudience string) (*token.Claims, error)
}

// Authenticate validates bearer tokens and injects the verified claims into
// the request context.
type Authenticate struct {
	verifier       TokenVerifier
	contextManager *httpctx.Manager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(verifier TokenVerifier, contextManager *httpctx.Manager, logger *logger.Logger) *Authenticate {
	return &Authenticate{verifier: verifier, contextManager: contextManager, logger: logger}
}

// Handle parses the Authorization header, verifies the token and calls the
// next handler with the claims in context. Verification failures are
// reported as a single unauthorized result; the specific sub-reason stays in
// the log.
func (m *Authenticate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" || tokenString == authHeader {
			unauthorized(w)
			return
		}

		claims, err := m.verifier.Verify(r.Context(), tokenString, "")
		if err != nil {
			m.logger.Debug("Authenticate middleware: token rejected", "error", err.Error())
			unauthorized(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(m.contextManager.SetClaims(r.Context(), claims)))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
