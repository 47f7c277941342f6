// Package claimstest mints access tokens for tests.
package claimstest

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// SigningKey signs test tokens. Decoding never checks it.
var SigningKey = []byte("test-signing-key")

// Authorities renders roles the way the reservation API serialises them.
func Authorities(roles ...string) []map[string]string {
	out := make([]map[string]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, map[string]string{"authority": r})
	}
	return out
}

// Token returns a signed JWT carrying claims.
func Token(t testing.TB, claims jwtlib.MapClaims) string {
	t.Helper()
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(SigningKey)
	require.NoError(t, err)
	return signed
}

// AccessToken returns a token for subject with a single ROLE_ authority that
// expires in an hour.
func AccessToken(t testing.TB, subject, role string) string {
	t.Helper()
	return Token(t, jwtlib.MapClaims{
		"sub":  subject,
		"role": Authorities("ROLE_" + role),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
}
