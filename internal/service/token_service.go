package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/keymint/keymint-server/internal/logger"
	"github.com/keymint/keymint-server/internal/model"
	"github.com/keymint/keymint-server/internal/token"
)

// AccessIssuer mints signed access tokens.
type AccessIssuer interface {
	Issue(ctx context.Context, user model.User, audience string) (string, *token.Claims, error)
}

// AccessVerifier validates signed access tokens.
type AccessVerifier interface {
	Verify(ctx context.Context, tokenString, expectedAudience string) (*token.Claims, error)
}

// TokenPair is what a successful login or refresh returns.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenService provides high-level operations for issuing, rotating and
// revoking token pairs. It composes the issuer, verifier and the refresh and
// denylist stores.
type TokenService struct {
	issuer     AccessIssuer
	verifier   AccessVerifier
	users      model.UserStore
	refresh    model.RefreshTokenStore
	denylist   model.DenylistStore
	logger     *logger.Logger
	refreshTTL time.Duration
}

func NewTokenService(
	issuer AccessIssuer,
	verifier AccessVerifier,
	users model.UserStore,
	refresh model.RefreshTokenStore,
	denylist model.DenylistStore,
	logger *logger.Logger,
	refreshTTL time.Duration,
) *TokenService {
	return &TokenService{
		issuer:     issuer,
		verifier:   verifier,
		users:      users,
		refresh:    refresh,
		denylist:   denylist,
		logger:     logger,
		refreshTTL: refreshTTL,
	}
}

// IssuePair mints an access token and a fresh refresh token for the user.
// The raw refresh secret is returned to the caller; only its hash is stored.
func (s *TokenService) IssuePair(ctx context.Context, userID uuid.UUID, audience string) (TokenPair, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to get user: %w", err)
	}

	access, claims, err := s.issuer.Issue(ctx, user, audience)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to issue access token: %w", err)
	}

	raw, err := token.NewRefreshSecret()
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	now := time.Now()
	rt := model.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: token.HashRefreshSecret(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if err := s.refresh.Create(ctx, rt); err != nil {
		return TokenPair{}, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: raw,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(claims.ExpiresAt.Time).Seconds()),
	}, nil
}

// Refresh validates a presented refresh token and rotates it: the successor
// is created and the predecessor revoked as one atomic store operation, so
// only one of two concurrent rotations of the same token can win. Every
// failure mode is collapsed into model.ErrRefreshTokenInvalid so a caller
// cannot distinguish a wrong token from an expired or already-used one.
func (s *TokenService) Refresh(ctx context.Context, rawRefresh, audience string) (TokenPair, error) {
	if model.DetectTokenKind(rawRefresh) != model.TokenKindRefresh {
		return TokenPair{}, model.ErrRefreshTokenInvalid
	}

	rt, err := s.refresh.GetByHash(ctx, token.HashRefreshSecret(rawRefresh))
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			s.logger.Error("Token service: refresh lookup failed", "error", err.Error())
		}
		return TokenPair{}, model.ErrRefreshTokenInvalid
	}

	now := time.Now()
	if rt.RevokedAt != nil || now.After(rt.ExpiresAt) {
		s.logger.Info("Token service: rejected stale refresh token",
			"user_id", rt.UserID,
			"revoked", rt.RevokedAt != nil)
		return TokenPair{}, model.ErrRefreshTokenInvalid
	}

	newRaw, err := token.NewRefreshSecret()
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to generate refresh secret: %w", err)
	}

	successor := model.RefreshToken{
		ID:        uuid.New(),
		UserID:    rt.UserID,
		TokenHash: token.HashRefreshSecret(newRaw),
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if err := s.refresh.Rotate(ctx, rt.ID, successor); err != nil {
		if errors.Is(err, model.ErrRefreshTokenUsed) || errors.Is(err, model.ErrNotFound) {
			// Lost a concurrent rotation of the same predecessor.
			return TokenPair{}, model.ErrRefreshTokenInvalid
		}
		return TokenPair{}, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	user, err := s.users.GetByID(ctx, rt.UserID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to get user: %w", err)
	}

	access, claims, err := s.issuer.Issue(ctx, user, audience)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to issue access token: %w", err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: newRaw,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(claims.ExpiresAt.Time).Seconds()),
	}, nil
}

// RevokeByToken revokes the refresh token matching the presented secret.
// Unknown tokens are ignored: logout is idempotent.
func (s *TokenService) RevokeByToken(ctx context.Context, rawRefresh string) error {
	rt, err := s.refresh.GetByHash(ctx, token.HashRefreshSecret(rawRefresh))
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get refresh token: %w", err)
	}
	if err := s.refresh.Revoke(ctx, rt.ID); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every outstanding refresh token of the user.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.refresh.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}

// GlobalLogout bumps the user's token version, invalidating every issued
// access token, and revokes all refresh tokens in bulk.
func (s *TokenService) GlobalLogout(ctx context.Context, userID uuid.UUID) error {
	version, err := s.users.BumpTokenVersion(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to bump token version: %w", err)
	}
	if err := s.refresh.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}

	s.logger.Info("Token service: global logout",
		"user_id", userID,
		"token_version", version)
	return nil
}

// RevokeAccess denylists a specific access token by jti until its natural
// expiry.
func (s *TokenService) RevokeAccess(ctx context.Context, jti, userID uuid.UUID, appID, reason string, expiresAt time.Time) error {
	entry := model.RevokedAccessToken{
		JTI:       jti,
		UserID:    userID,
		AppID:     appID,
		Reason:    reason,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	if err := s.denylist.Revoke(ctx, entry); err != nil {
		return fmt.Errorf("failed to denylist token: %w", err)
	}

	s.logger.Info("Token service: access token revoked",
		"jti", jti,
		"user_id", userID,
		"reason", reason)
	return nil
}

// IsAccessRevoked reports whether the jti is denylisted.
func (s *TokenService) IsAccessRevoked(ctx context.Context, jti uuid.UUID) (bool, error) {
	return s.denylist.IsRevoked(ctx, jti)
}

// DenylistCount exposes the denylist size for monitoring.
func (s *TokenService) DenylistCount(ctx context.Context) (int64, error) {
	return s.denylist.Count(ctx)
}

// Verify exposes access token verification to transport middleware.
func (s *TokenService) Verify(ctx context.Context, tokenString, expectedAudience string) (*token.Claims, error) {
	return s.verifier.Verify(ctx, tokenString, expectedAudience)
}
