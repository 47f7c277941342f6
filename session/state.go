// Package session holds the authentication state of the running client and
// fans its transitions out to subscribers.
package session

import (
	"fmt"

	"github.com/jrsteele09/go-auth-client/claims"
)

type Status int

const (
	StatusAnonymous Status = iota
	StatusAuthenticated
)

func (s Status) String() string {
	if s == StatusAuthenticated {
		return "authenticated"
	}
	return "anonymous"
}

// State is either Anonymous or Authenticated with an Identity. The zero value
// is Anonymous.
type State struct {
	Status   Status
	Identity claims.Identity
}

func Anonymous() State {
	return State{Status: StatusAnonymous}
}

func Authenticated(identity claims.Identity) State {
	return State{Status: StatusAuthenticated, Identity: identity}
}

func (s State) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated
}

// Equal reports whether two states describe the same session.
func (s State) Equal(other State) bool {
	if s.Status != other.Status {
		return false
	}
	if s.Status == StatusAnonymous {
		return true
	}
	return s.Identity.Subject == other.Identity.Subject &&
		s.Identity.Role == other.Identity.Role &&
		s.Identity.ExpiresAt.Equal(other.Identity.ExpiresAt)
}

func (s State) String() string {
	if !s.IsAuthenticated() {
		return s.Status.String()
	}
	return fmt.Sprintf("%s(%s, %s)", s.Status, s.Identity.Subject, s.Identity.Role)
}
