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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/keymint/keymint-server/internal/api/http/httpctx"
	"github.com/keymint/keymint-server/internal/lockout"
	"github.com/keymint/keymint-server/internal/mocks"
	"github.com/keymint/keymint-server/internal/model"
	"github.com/keymint/keymint-server/internal/service"
	"github.com/keymint/keymint-server/internal/testutil"
	"github.com/keymint/keymint-server/internal/token"
)

type authHandlerDeps struct {
	issuer    *mocks.AccessIssuer
	users     *mocks.UserStore
	refresh   *mocks.RefreshTokenStore
	passwords *mocks.PasswordVerifier
	tracker   *lockout.Tracker
	context   *httpctx.Manager
}

func newTestAuth(t *testing.T, tiers []lockout.Tier) (*Auth, *authHandlerDeps) {
	t.Helper()
	d := &authHandlerDeps{
		issuer:    new(mocks.AccessIssuer),
		users:     new(mocks.UserStore),
		refresh:   new(mocks.RefreshTokenStore),
		passwords: new(mocks.PasswordVerifier),
		tracker:   lockout.NewTracker(tiers, testutil.MakeNoopLogger()),
		context:   httpctx.NewManager(),
	}
	tokens := service.NewTokenService(d.issuer, new(mocks.AccessVerifier), d.users,
		d.refresh, new(mocks.DenylistStore), testutil.MakeNoopLogger(), 24*time.Hour)
	h := NewAuth(tokens, d.passwords, d.tracker, d.context, testutil.MakeNoopLogger())
	return h, d
}

func loginBody(t *testing.T, identity, password string) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"identity": identity,
		"password": password,
		"audience": "app-1",
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func issuedClaims() *token.Claims {
	return &token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}
}

func TestAuth_Login(t *testing.T) {
	h, d := newTestAuth(t, nil)
	userID := uuid.New()
	user := model.User{ID: userID, Role: "user", TokenVersion: 1}

	d.passwords.On("VerifyPassword", mock.Anything, "alice", "hunter2").Return(userID, nil)
	d.users.On("GetByID", mock.Anything, userID).Return(user, nil)
	d.issuer.On("Issue", mock.Anything, user, "app-1").Return("signed-access", issuedClaims(), nil)
	d.refresh.On("Create", mock.Anything, mock.AnythingOfType("model.RefreshToken")).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/token", loginBody(t, "alice", "hunter2"))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var pair service.TokenPair
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&pair))
	assert.Equal(t, "signed-access", pair.AccessToken)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, model.TokenKindRefresh, model.DetectTokenKind(pair.RefreshToken))
}

func TestAuth_Login_InvalidBody(t *testing.T) {
	h, _ := newTestAuth(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "{"},
		{name: "missing identity", body: `{"password":"x"}`},
		{name: "missing password", body: `{"identity":"alice"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			h.Login(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAuth_Login_WrongPassword(t *testing.T) {
	h, d := newTestAuth(t, nil)

	d.passwords.On("VerifyPassword", mock.Anything, "alice", "wrong").
		Return(uuid.Nil, model.ErrInvalidCredentials)

	req := httptest.NewRequest(http.MethodPost, "/auth/token", loginBody(t, "alice", "wrong"))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_Login_LockoutEscalation(t *testing.T) {
	h, d := newTestAuth(t, []lockout.Tier{{Threshold: 3, Duration: time.Minute}})

	d.passwords.On("VerifyPassword", mock.Anything, "alice", "wrong").
		Return(uuid.Nil, model.ErrInvalidCredentials)

	// Failures below the threshold come back as plain auth failures.
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/token", loginBody(t, "alice", "wrong"))
		rec := httptest.NewRecorder()
		h.Login(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	// The third failure crosses the threshold.
	req := httptest.NewRequest(http.MethodPost, "/auth/token", loginBody(t, "alice", "wrong"))
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// While locked, even the correct password is rejected up front.
	req = httptest.NewRequest(http.MethodPost, "/auth/token", loginBody(t, "alice", "hunter2"))
	rec = httptest.NewRecorder()
	h.Login(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	d.passwords.AssertNumberOfCalls(t, "VerifyPassword", 3)
}

func TestAuth_Login_SuccessClearsFailures(t *testing.T) {
	h, d := newTestAuth(t, []lockout.Tier{{Threshold: 3, Duration: time.Minute}})
	userID := uuid.New()
	user := model.User{ID: userID, TokenVersion: 1}

	d.passwords.On("VerifyPassword", mock.Anything, "alice", "wrong").
		Return(uuid.Nil, model.ErrInvalidCredentials)
	d.passwords.On("VerifyPassword", mock.Anything, "alice", "hunter2").Return(userID, nil)
	d.users.On("GetByID", mock.Anything, userID).Return(user, nil)
	d.issuer.On("Issue", mock.Anything, user, "app-1").Return("signed-access", issuedClaims(), nil)
	d.refresh.On("Create", mock.Anything, mock.AnythingOfType("model.RefreshToken")).Return(nil)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/token", loginBody(t, "alice", "wrong"))
		h.Login(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/token", loginBody(t, "alice", "hunter2"))
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// The counter reset, so two more failures stay under the threshold.
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/token", loginBody(t, "alice", "wrong"))
		rec := httptest.NewRecorder()
		h.Login(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestAuth_Refresh_InvalidToken(t *testing.T) {
	h, d := newTestAuth(t, nil)

	d.refresh.On("GetByHash", mock.Anything, mock.Anything).
		Return(model.RefreshToken{}, model.ErrNotFound)

	body := bytes.NewBufferString(`{"refresh_token":"kmr_unknown","audience":"app-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", body)
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_Refresh_MissingToken(t *testing.T) {
	h, _ := newTestAuth(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	h.Refresh(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuth_Logout(t *testing.T) {
	h, d := newTestAuth(t, nil)

	d.refresh.On("GetByHash", mock.Anything, mock.Anything).
		Return(model.RefreshToken{}, model.ErrNotFound)

	body := bytes.NewBufferString(`{"refresh_token":"kmr_whatever"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", body)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	// Unknown tokens are ignored: logout is idempotent.
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuth_LogoutAll(t *testing.T) {
	h, d := newTestAuth(t, nil)
	userID := uuid.New()

	d.users.On("BumpTokenVersion", mock.Anything, userID).Return(int64(2), nil)
	d.refresh.On("RevokeAllForUser", mock.Anything, userID).Return(nil)

	claims := &token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
	}
	req := httptest.NewRequest(http.MethodPost, "/auth/logout/all", nil)
	req = req.WithContext(d.context.SetClaims(context.Background(), claims))
	rec := httptest.NewRecorder()
	h.LogoutAll(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	d.users.AssertExpectations(t)
	d.refresh.AssertExpectations(t)
}

func TestAuth_LogoutAll_Unauthenticated(t *testing.T) {
	h, _ := newTestAuth(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout/all", nil)
	rec := httptest.NewRecorder()
	h.LogoutAll(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
