package config

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	refreshTimeoutVar    = "AUTH_REFRESH_TIMEOUT"
	loginPathVar         = "AUTH_LOGIN_PATH"
	rejectionStatusesVar = "AUTH_REJECTION_STATUSES"
)

type SessionConfig interface {
	GetRefreshTimeout() time.Duration
	GetLoginPath() string
	GetRejectionStatuses() []int
}

type Session struct {
	values Values
}

var _ SessionConfig = Session{}

// GetRefreshTimeout bounds a single call to the refresh endpoint. A timeout is
// handled as a failed refresh.
func (s Session) GetRefreshTimeout() time.Duration {
	return s.values.duration(refreshTimeoutVar, 10*time.Second)
}

// GetLoginPath is the unauthenticated entry point the client is sent to when
// the session cannot be recovered.
func (s Session) GetLoginPath() string {
	return s.values.get(loginPathVar, "/login")
}

// GetRejectionStatuses lists the response codes that signal a stale access
// token. The API answers 403 for expired tokens.
func (s Session) GetRejectionStatuses() []int {
	raw := s.values.get(rejectionStatusesVar, strconv.Itoa(http.StatusForbidden))
	var statuses []int
	for _, part := range strings.Split(raw, ",") {
		code, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || code < 100 || code > 599 {
			continue
		}
		statuses = append(statuses, code)
	}
	if len(statuses) == 0 {
		return []int{http.StatusForbidden}
	}
	return statuses
}
