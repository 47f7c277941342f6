package claims_test

import (
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/claims"
	"github.com/jrsteele09/go-auth-client/claims/claimstest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	tests := []struct {
		name     string
		claims   jwtlib.MapClaims
		expected claims.Identity
	}{
		{
			name:     "authority objects",
			claims:   jwtlib.MapClaims{"sub": "a@b.com", "role": claimstest.Authorities("ROLE_TEACHER")},
			expected: claims.Identity{Subject: "a@b.com", Role: claims.RoleTeacher},
		},
		{
			name:     "string list",
			claims:   jwtlib.MapClaims{"sub": "a@b.com", "role": []string{"ROLE_STUDENT"}},
			expected: claims.Identity{Subject: "a@b.com", Role: claims.RoleStudent},
		},
		{
			name:     "plain string",
			claims:   jwtlib.MapClaims{"sub": "a@b.com", "role": "ROLE_ADMIN"},
			expected: claims.Identity{Subject: "a@b.com", Role: claims.RoleAdmin},
		},
		{
			name:     "serialised authority list",
			claims:   jwtlib.MapClaims{"sub": "a@b.com", "role": `[{"authority":"ROLE_TEACHER"}]`},
			expected: claims.Identity{Subject: "a@b.com", Role: claims.RoleTeacher},
		},
		{
			name:     "first role authority wins",
			claims:   jwtlib.MapClaims{"sub": "a@b.com", "role": claimstest.Authorities("course:read", "ROLE_STUDENT", "ROLE_ADMIN")},
			expected: claims.Identity{Subject: "a@b.com", Role: claims.RoleStudent},
		},
		{
			name:     "expiry carried",
			claims:   jwtlib.MapClaims{"sub": "a@b.com", "role": "ROLE_ADMIN", "exp": exp.Unix()},
			expected: claims.Identity{Subject: "a@b.com", Role: claims.RoleAdmin, ExpiresAt: exp},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			identity, err := claims.Decode(claimstest.Token(t, tc.claims))
			require.NoError(t, err)
			require.Equal(t, tc.expected.Subject, identity.Subject)
			require.Equal(t, tc.expected.Role, identity.Role)
			require.True(t, tc.expected.ExpiresAt.Equal(identity.ExpiresAt))
		})
	}
}

func TestDecode_IgnoresSignature(t *testing.T) {
	token := claimstest.AccessToken(t, "a@b.com", "TEACHER")
	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + ".not-a-signature"

	identity, err := claims.Decode(tampered)
	require.NoError(t, err)
	require.Equal(t, claims.RoleTeacher, identity.Role)

	unsigned, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, jwtlib.MapClaims{
		"sub":  "a@b.com",
		"role": "ROLE_STUDENT",
	}).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	identity, err = claims.Decode(unsigned)
	require.NoError(t, err)
	require.Equal(t, claims.RoleStudent, identity.Role)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "not a jwt", token: "opaque-refresh-token"},
		{name: "bad payload", token: "eyJhbGciOiJIUzI1NiJ9.%%%.sig"},
		{name: "missing role", token: claimstest.Token(t, jwtlib.MapClaims{"sub": "a@b.com"})},
		{name: "missing subject", token: claimstest.Token(t, jwtlib.MapClaims{"role": "ROLE_ADMIN"})},
		{name: "subject not a string", token: claimstest.Token(t, jwtlib.MapClaims{"sub": 42, "role": "ROLE_ADMIN"})},
		{name: "unknown role", token: claimstest.Token(t, jwtlib.MapClaims{"sub": "a@b.com", "role": "ROLE_JANITOR"})},
		{name: "no role authority", token: claimstest.Token(t, jwtlib.MapClaims{"sub": "a@b.com", "role": []string{"course:read"}})},
		{name: "empty role list", token: claimstest.Token(t, jwtlib.MapClaims{"sub": "a@b.com", "role": []string{}})},
		{name: "broken embedded list", token: claimstest.Token(t, jwtlib.MapClaims{"sub": "a@b.com", "role": `[{"authority":`})},
		{name: "numeric role", token: claimstest.Token(t, jwtlib.MapClaims{"sub": "a@b.com", "role": 7})},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			identity, err := claims.Decode(tc.token)
			require.Error(t, err)
			require.True(t, errors.Is(err, claims.ErrMalformedToken), "got %v", err)
			require.Empty(t, identity.Role)
		})
	}
}

func TestParseRole(t *testing.T) {
	role, err := claims.ParseRole(`["ROLE_ADMIN"]`)
	require.NoError(t, err)
	require.Equal(t, claims.RoleAdmin, role)

	role, err = claims.ParseRole(map[string]any{"authority": "ROLE_STUDENT"})
	require.NoError(t, err)
	require.Equal(t, claims.RoleStudent, role)

	_, err = claims.ParseRole(nil)
	require.True(t, errors.Is(err, claims.ErrMalformedToken))

	// A serialised list inside a serialised list is not unpacked twice.
	_, err = claims.ParseRole(`["[\"ROLE_ADMIN\"]"]`)
	require.True(t, errors.Is(err, claims.ErrMalformedToken))
}
