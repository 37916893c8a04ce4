package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/keymint/keymint-server/internal/model"
	"github.com/keymint/keymint-server/internal/token"
)

type AccessIssuer struct {
	mock.Mock
}

func (m *AccessIssuer) Issue(ctx context.Context, user model.User, audience string) (string, *token.Claims, error) {
	args := m.Called(ctx, user, audience)
	var claims *token.Claims
	if args.Get(1) != nil {
		claims = args.Get(1).(*token.Claims)
	}
	return args.String(0), claims, args.Error(2)
}

type AccessVerifier struct {
	mock.Mock
}

func (m *AccessVerifier) Verify(ctx context.Context, tokenString, expectedAudience string) (*token.Claims, error) {
	args := m.Called(ctx, tokenString, expectedAudience)
	var claims *token.Claims
	if args.Get(0) != nil {
		claims = args.Get(0).(*token.Claims)
	}
	return claims, args.Error(1)
}
