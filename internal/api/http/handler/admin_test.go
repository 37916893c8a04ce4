package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/keymint/keymint-server/internal/api/http/httpctx"
	"github.com/keymint/keymint-server/internal/keys"
	"github.com/keymint/keymint-server/internal/mocks"
	"github.com/keymint/keymint-server/internal/model"
	"github.com/keymint/keymint-server/internal/service"
	"github.com/keymint/keymint-server/internal/testutil"
	"github.com/keymint/keymint-server/internal/token"
)

type adminHandlerDeps struct {
	keys     *keys.Manager
	denylist *mocks.DenylistStore
	context  *httpctx.Manager
}

func newTestAdmin(t *testing.T) (*Admin, *adminHandlerDeps) {
	t.Helper()
	d := &adminHandlerDeps{
		keys:     keys.NewManager(testutil.NewInMemoryKeyStore(), testutil.MakeNoopLogger()),
		denylist: new(mocks.DenylistStore),
		context:  httpctx.NewManager(),
	}
	tokens := service.NewTokenService(new(mocks.AccessIssuer), new(mocks.AccessVerifier),
		new(mocks.UserStore), new(mocks.RefreshTokenStore), d.denylist,
		testutil.MakeNoopLogger(), 24*time.Hour)
	h := NewAdmin(d.keys, tokens, d.context, testutil.MakeNoopLogger())
	return h, d
}

func withRole(cm *httpctx.Manager, r *http.Request, role string) *http.Request {
	claims := &token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
		Role:             role,
	}
	return r.WithContext(cm.SetClaims(context.Background(), claims))
}

func TestAdmin_RequiresAdminRole(t *testing.T) {
	h, d := newTestAdmin(t)

	endpoints := map[string]http.HandlerFunc{
		"generate": h.GenerateKey,
		"rotate":   h.RotateKeys,
		"retire":   h.RetireKey,
		"revoke":   h.RevokeAccessToken,
		"count":    h.DenylistCount,
	}

	for name, endpoint := range endpoints {
		t.Run(name+" without claims", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin", nil)
			rec := httptest.NewRecorder()
			endpoint(rec, req)
			assert.Equal(t, http.StatusForbidden, rec.Code)
		})
		t.Run(name+" with user role", func(t *testing.T) {
			req := withRole(d.context, httptest.NewRequest(http.MethodPost, "/admin", nil), "user")
			rec := httptest.NewRecorder()
			endpoint(rec, req)
			assert.Equal(t, http.StatusForbidden, rec.Code)
		})
	}
}

func TestAdmin_GenerateKey(t *testing.T) {
	h, d := newTestAdmin(t)

	req := withRole(d.context, httptest.NewRequest(http.MethodPost, "/admin/keys", nil), "admin")
	rec := httptest.NewRecorder()
	h.GenerateKey(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp["kid"])

	active, err := d.keys.ListActivePublicKeys(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestAdmin_RotateKeys(t *testing.T) {
	h, d := newTestAdmin(t)
	ctx := context.Background()

	first, err := d.keys.GetSigningKey(ctx)
	require.NoError(t, err)

	body := bytes.NewBufferString(`{"graceful":false}`)
	req := withRole(d.context, httptest.NewRequest(http.MethodPost, "/admin/keys/rotate", body), "admin")
	rec := httptest.NewRecorder()
	h.RotateKeys(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEqual(t, first.Kid, resp["kid"])

	active, err := d.keys.ListActivePublicKeys(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, resp["kid"], active[0].Kid)
}

func TestAdmin_RetireKey(t *testing.T) {
	h, d := newTestAdmin(t)
	ctx := context.Background()

	first, err := d.keys.GetSigningKey(ctx)
	require.NoError(t, err)
	_, err = d.keys.Rotate(ctx, true)
	require.NoError(t, err)

	req := withRole(d.context, httptest.NewRequest(http.MethodPost, "/admin/keys/"+first.Kid+"/retire", nil), "admin")
	req = mux.SetURLVars(req, map[string]string{"kid": first.Kid})
	rec := httptest.NewRecorder()
	h.RetireKey(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAdmin_RetireKey_LastActive(t *testing.T) {
	h, d := newTestAdmin(t)

	key, err := d.keys.GetSigningKey(context.Background())
	require.NoError(t, err)

	req := withRole(d.context, httptest.NewRequest(http.MethodPost, "/admin/keys/"+key.Kid+"/retire", nil), "admin")
	req = mux.SetURLVars(req, map[string]string{"kid": key.Kid})
	rec := httptest.NewRecorder()
	h.RetireKey(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdmin_RevokeAccessToken(t *testing.T) {
	h, d := newTestAdmin(t)
	jti := uuid.New()

	d.denylist.On("Revoke", mock.Anything, mock.MatchedBy(func(e model.RevokedAccessToken) bool {
		return e.JTI == jti && e.Reason == "compromised"
	})).Return(nil)

	payload, err := json.Marshal(map[string]any{
		"jti":        jti,
		"user_id":    uuid.New(),
		"app_id":     "app-1",
		"reason":     "compromised",
		"expires_at": time.Now().Add(10 * time.Minute),
	})
	require.NoError(t, err)

	req := withRole(d.context, httptest.NewRequest(http.MethodPost, "/admin/tokens/revoke", bytes.NewBuffer(payload)), "admin")
	rec := httptest.NewRecorder()
	h.RevokeAccessToken(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	d.denylist.AssertExpectations(t)
}

func TestAdmin_RevokeAccessToken_MissingJTI(t *testing.T) {
	h, d := newTestAdmin(t)

	req := withRole(d.context, httptest.NewRequest(http.MethodPost, "/admin/tokens/revoke", bytes.NewBufferString(`{}`)), "admin")
	rec := httptest.NewRecorder()
	h.RevokeAccessToken(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_DenylistCount(t *testing.T) {
	h, d := newTestAdmin(t)

	d.denylist.On("Count", mock.Anything).Return(int64(4), nil)

	req := withRole(d.context, httptest.NewRequest(http.MethodGet, "/admin/tokens/revoked/count", nil), "admin")
	rec := httptest.NewRecorder()
	h.DenylistCount(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]int64
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(4), resp["count"])
}
