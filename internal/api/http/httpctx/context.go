package httpctx

import (
	"context"

	"github.com/keymint/keymint-server/internal/token"
)

type claimsKey struct{}

// Manager moves verified token claims in and out of request contexts.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) SetClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func (m *Manager) GetClaims(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*token.Claims)
	return claims, ok
}
