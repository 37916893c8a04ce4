package keys

import (
	"context"
	"encoding/base64"
	"fmt"
)

// JWK is a single RFC 7517 EC public key.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
}

// JWKS is the published key set relying applications verify tokens against.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWKS exports every active public key in JWK format.
func (m *Manager) JWKS(ctx context.Context) (JWKS, error) {
	active, err := m.ListActivePublicKeys(ctx)
	if err != nil {
		return JWKS{}, err
	}

	set := JWKS{Keys: make([]JWK, 0, len(active))}
	for _, key := range active {
		pub, err := parseECDSAPublicKey(key.PublicKeyPEM)
		if err != nil {
			return JWKS{}, fmt.Errorf("failed to parse public key %s: %w", key.Kid, err)
		}

		// P-256 coordinates are fixed-width 32-byte values.
		byteLen := (pub.Curve.Params().BitSize + 7) / 8
		x := make([]byte, byteLen)
		y := make([]byte, byteLen)
		pub.X.FillBytes(x)
		pub.Y.FillBytes(y)

		set.Keys = append(set.Keys, JWK{
			Kty: "EC",
			Crv: "P-256",
			X:   base64.RawURLEncoding.EncodeToString(x),
			Y:   base64.RawURLEncoding.EncodeToString(y),
			Kid: key.Kid,
			Alg: key.Algorithm,
			Use: "sig",
		})
	}

	return set, nil
}
