package syncnode

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/meridian-labs/chainwatch/op-service/eth"
	"github.com/meridian-labs/chainwatch/supervisor/types"
)

// signRequestClaims mints a fresh HS256 JWT for a single outgoing RPC call,
// matching the "shared-secret JWT with per-request claims" authentication
// spec §4.E calls for: unlike a long-lived bearer token attached once at
// connection time, every call gets its own `iat` so a captured token
// cannot be replayed after its short validity window.
func signRequestClaims(secret eth.Bytes32) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Second)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(secret[:])
	if err != nil {
		return "", fmt.Errorf("%w: sign request claims: %v", types.ErrAuthentication, err)
	}
	return signed, nil
}
