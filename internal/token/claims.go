package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the access token claim set. On top of the registered claims
// (iss, aud, sub, jti, iat, nbf, exp) every token carries the user's role
// and the per-user monotonic token version; bumping the version invalidates
// all previously issued tokens without a denylist entry per token.
type Claims struct {
	jwt.RegisteredClaims
	Role         string `json:"rol"`
	TokenVersion int64  `json:"ver"`
}
