package token

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/keymint/keymint-server/internal/model"
)

// KeyResolver resolves a token header kid to a verification key. The full
// active and recently-retired set participates, not just the current signing
// key, so tokens signed moments before a rotation still verify.
type KeyResolver interface {
	VerificationKey(ctx context.Context, kid string) (*ecdsa.PublicKey, error)
}

// Verifier validates access tokens against the rotating key set, the user's
// live token version and, when a denylist is configured, the jti denylist.
type Verifier struct {
	keys     KeyResolver
	users    model.UserStore
	denylist model.DenylistStore
	issuer   string
}

// NewVerifier creates a token verifier. denylist may be nil to disable
// revocation checks.
func NewVerifier(keys KeyResolver, users model.UserStore, denylist model.DenylistStore, issuer string) *Verifier {
	return &Verifier{keys: keys, users: users, denylist: denylist, issuer: issuer}
}

// Verify parses and validates an access token. expectedAudience may be empty
// to skip the audience check. Each failure mode maps onto a distinct
// sentinel from the model package.
func (v *Verifier) Verify(ctx context.Context, tokenString, expectedAudience string) (*Claims, error) {
	claims := &Claims{}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{model.AlgorithmES256}),
		jwt.WithIssuer(v.issuer),
		jwt.WithIssuedAt(),
	}
	if expectedAudience != "" {
		options = append(options, jwt.WithAudience(expectedAudience))
	}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, model.ErrTokenMalformed
		}
		return v.keys.VerificationKey(ctx, kid)
	}, options...)
	if err != nil {
		return nil, mapJWTError(err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, model.ErrTokenMalformed
	}

	liveVersion, err := v.users.GetTokenVersion(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrTokenVersionStale
		}
		return nil, fmt.Errorf("failed to get token version: %w", err)
	}
	if claims.TokenVersion != liveVersion {
		return nil, model.ErrTokenVersionStale
	}

	if v.denylist != nil {
		jti, err := uuid.Parse(claims.ID)
		if err != nil {
			return nil, model.ErrTokenMalformed
		}
		revoked, err := v.denylist.IsRevoked(ctx, jti)
		if err != nil {
			return nil, fmt.Errorf("failed to check denylist: %w", err)
		}
		if revoked {
			return nil, model.ErrTokenRevoked
		}
	}

	return claims, nil
}

// mapJWTError translates jwt/v5 validation errors onto the model taxonomy.
// Order matters: jwt joins multiple causes into one error and the most
// specific match should win.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, model.ErrKeyNotFound):
		return model.ErrKeyNotFound
	case errors.Is(err, jwt.ErrTokenExpired):
		return model.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return model.ErrTokenNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return model.ErrAudienceMismatch
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return model.ErrIssuerMismatch
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return model.ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return model.ErrTokenNotYetValid
	case errors.Is(err, model.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenMalformed):
		return model.ErrTokenMalformed
	default:
		return fmt.Errorf("%w: %w", model.ErrTokenMalformed, err)
	}
}
