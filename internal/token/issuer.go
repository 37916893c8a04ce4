package token

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/keymint/keymint-server/internal/keys"
	"github.com/keymint/keymint-server/internal/model"
)

// Issuer builds and signs access tokens with the key manager's current
// signing key.
type Issuer struct {
	keys      *keys.Manager
	issuer    string
	accessTTL time.Duration
}

// NewIssuer creates an access token issuer.
func NewIssuer(keys *keys.Manager, issuer string, accessTTL time.Duration) *Issuer {
	return &Issuer{keys: keys, issuer: issuer, accessTTL: accessTTL}
}

// Issue signs a new access token for the user scoped to the requesting
// application. The signing key's kid goes into the token header so verifiers
// know which public key to use.
func (i *Issuer) Issue(ctx context.Context, user model.User, audience string) (string, *Claims, error) {
	key, err := i.keys.GetSigningKey(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to get signing key: %w", err)
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = key.Kid

	signed, err := token.SignedString(key.PrivateKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return signed, claims, nil
}
