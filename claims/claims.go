// Package claims reads the identity carried in an access token.
//
// Only the payload is decoded. The client holds no key material, so the
// signature is never checked and the result is a hint for the UI layer, not
// proof of identity. The server stays the authority on every request.
package claims

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// RoleClaim is the payload field holding the user's granted authorities.
const RoleClaim = "role"

// ErrMalformedToken is returned when a token is not a JWT or lacks the
// subject or role.
var ErrMalformedToken = errors.New("malformed token")

// Identity is the user described by an access token.
type Identity struct {
	Subject   string
	Role      Role
	ExpiresAt time.Time // zero when the token has no exp claim
}

// Decode parses the payload of accessToken into an Identity.
func Decode(accessToken string) (Identity, error) {
	if strings.TrimSpace(accessToken) == "" {
		return Identity{}, errors.Wrap(ErrMalformedToken, "empty token")
	}

	token, _, err := jwtlib.NewParser().ParseUnverified(accessToken, jwtlib.MapClaims{})
	// An unknown or missing alg only matters for verification, which never
	// happens here. The claims are already parsed at that point.
	if err != nil && !(errors.Is(err, jwtlib.ErrTokenUnverifiable) && token != nil) {
		return Identity{}, errors.Wrap(ErrMalformedToken, err.Error())
	}

	mapClaims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return Identity{}, errors.Wrap(ErrMalformedToken, "error extracting claims")
	}

	subject, err := mapClaims.GetSubject()
	if err != nil {
		return Identity{}, errors.Wrap(ErrMalformedToken, err.Error())
	}
	if subject == "" {
		return Identity{}, errors.Wrap(ErrMalformedToken, "missing sub claim")
	}

	role, err := ParseRole(mapClaims[RoleClaim])
	if err != nil {
		return Identity{}, err
	}

	identity := Identity{Subject: subject, Role: role}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}
	return identity, nil
}
