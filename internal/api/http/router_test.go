package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keymint/keymint-server/internal/api/http/handler"
	"github.com/keymint/keymint-server/internal/api/http/httpctx"
	"github.com/keymint/keymint-server/internal/api/http/middleware"
	"github.com/keymint/keymint-server/internal/keys"
	"github.com/keymint/keymint-server/internal/lockout"
	"github.com/keymint/keymint-server/internal/mocks"
	"github.com/keymint/keymint-server/internal/service"
	"github.com/keymint/keymint-server/internal/testutil"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	lg := testutil.MakeNoopLogger()
	contextManager := httpctx.NewManager()
	km := keys.NewManager(testutil.NewInMemoryKeyStore(), lg)
	_, err := km.GetSigningKey(context.Background())
	require.NoError(t, err)

	verifier := new(mocks.AccessVerifier)
	tokens := service.NewTokenService(new(mocks.AccessIssuer), verifier,
		new(mocks.UserStore), new(mocks.RefreshTokenStore), new(mocks.DenylistStore),
		lg, 24*time.Hour)
	tracker := lockout.NewTracker(nil, lg)

	auth := handler.NewAuth(tokens, new(mocks.PasswordVerifier), tracker, contextManager, lg)
	admin := handler.NewAdmin(km, tokens, contextManager, lg)
	jwks := handler.NewJWKSHandler(km, time.Minute, lg)
	authenticate := middleware.NewAuthenticate(verifier, contextManager, lg)
	logging := middleware.NewLogging(lg)

	return New(auth, admin, jwks, authenticate, logging).Register()
}

func TestRouter_Register(t *testing.T) {
	router := newTestRouter(t)
	require.NotNil(t, router)
}

func TestRouter_PublicKeySet(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/auth/logout/all"},
		{http.MethodPost, "/admin/keys"},
		{http.MethodPost, "/admin/keys/rotate"},
		{http.MethodPost, "/admin/keys/some-kid/retire"},
		{http.MethodPost, "/admin/tokens/revoke"},
		{http.MethodGet, "/admin/tokens/revoked/count"},
	}

	for _, route := range routes {
		req := httptest.NewRequest(route.method, route.path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/token", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
