// Package tokenstore persists the access and refresh tokens of the current
// session.
package tokenstore

import (
	"context"

	"github.com/pkg/errors"
)

// Storage keys for the two token entries.
const (
	AccessTokenKey  = "jwtToken"
	RefreshTokenKey = "refreshToken"
)

// ErrUnknownKey is returned when a key outside the session entries is used.
var ErrUnknownKey = errors.New("unknown token key")

// Pair is the access/refresh token pair issued by the auth endpoints. The two
// halves are always written and removed together.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Empty reports whether neither token is present.
func (p Pair) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Store is the durable key/value storage behind a session. A missing key reads
// as the empty string with a nil error. Implementations must make writes
// visible to subsequent reads immediately and must surface storage failures.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error

	// GetPair reads both entries.
	GetPair(ctx context.Context) (Pair, error)
	// SetPair replaces both entries atomically: a reader never sees the new
	// access token next to the old refresh token, or the reverse.
	SetPair(ctx context.Context, pair Pair) error
	// ClearPair removes both entries.
	ClearPair(ctx context.Context) error
}

// ValidKey reports whether key is one of the session entries.
func ValidKey(key string) bool {
	return key == AccessTokenKey || key == RefreshTokenKey
}

// CheckKey returns ErrUnknownKey wrapped with the offending key when key is
// not a session entry.
func CheckKey(key string) error {
	if !ValidKey(key) {
		return errors.Wrapf(ErrUnknownKey, "%q", key)
	}
	return nil
}
