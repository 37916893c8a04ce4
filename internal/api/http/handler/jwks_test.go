package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keymint/keymint-server/internal/keys"
	"github.com/keymint/keymint-server/internal/testutil"
)

func TestJWKSHandler_Serve(t *testing.T) {
	km := keys.NewManager(testutil.NewInMemoryKeyStore(), testutil.MakeNoopLogger())
	_, err := km.GetSigningKey(context.Background())
	require.NoError(t, err)

	h := NewJWKSHandler(km, 5*time.Minute, testutil.MakeNoopLogger())

	req := httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil)
	rec := httptest.NewRecorder()
	h.Serve(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=300, stale-while-revalidate=60", rec.Header().Get("Cache-Control"))

	var set keys.JWKS
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&set))
	require.Len(t, set.Keys, 1)
	assert.Equal(t, "EC", set.Keys[0].Kty)
	assert.Equal(t, "P-256", set.Keys[0].Crv)
	assert.NotEmpty(t, set.Keys[0].X)
	assert.NotEmpty(t, set.Keys[0].Y)
}

func TestJWKSHandler_Serve_EmptyKeySet(t *testing.T) {
	km := keys.NewManager(testutil.NewInMemoryKeyStore(), testutil.MakeNoopLogger())
	h := NewJWKSHandler(km, time.Minute, testutil.MakeNoopLogger())

	req := httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil)
	rec := httptest.NewRecorder()
	h.Serve(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var set keys.JWKS
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&set))
	assert.Empty(t, set.Keys)
}
