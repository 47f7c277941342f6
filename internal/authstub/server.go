// Package authstub runs an in-process stand-in for the reservation API: the
// /auth endpoints plus a protected /api/ resource that accepts only the
// access tokens it issued and has not expired.
package authstub

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/claims"
	"github.com/jrsteele09/go-auth-client/claims/claimstest"
	"github.com/jrsteele09/go-auth-client/tokenstore"
)

// Endpoint paths as served.
const (
	AuthenticatePath = "/auth/authenticate"
	RegisterPath     = "/auth/register"
	RefreshPath      = "/auth/refresh"
	LogoutPath       = "/auth/logout"
	ResourcePrefix   = "/api/"
)

type user struct {
	password string
	role     claims.Role
}

// Resource is the body the protected resource answers with.
type Resource struct {
	Subject string `json:"subject"`
	Path    string `json:"path"`
	Echo    string `json:"echo,omitempty"`
}

type Server struct {
	*httptest.Server
	t testing.TB

	lock          sync.Mutex
	users         map[string]user
	access        map[string]string // live access token -> subject
	refresh       map[string]string // live refresh token -> subject
	registrations []map[string]any
	seq           int

	refreshStatus    int
	logoutStatus     int
	authenticateBody string
	refreshBody      string
	refreshDelay     time.Duration
	refreshGate      chan struct{}

	calls sync.Map // path -> *atomic.Int64
}

func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		t:       t,
		users:   make(map[string]user),
		access:  make(map[string]string),
		refresh: make(map[string]string),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(AuthenticatePath, s.count(s.handleAuthenticate))
	mux.HandleFunc(RegisterPath, s.count(s.handleRegister))
	mux.HandleFunc(RefreshPath, s.count(s.handleRefresh))
	mux.HandleFunc(LogoutPath, s.count(s.handleLogout))
	mux.HandleFunc(ResourcePrefix, s.count(s.handleResource))
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) AddUser(email, password string, role claims.Role) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.users[email] = user{password: password, role: role}
}

// Issue mints a live pair for email, as a login would.
func (s *Server) Issue(email string) tokenstore.Pair {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.issueLocked(email)
}

// Expire makes accessToken unacceptable to the protected resource, as if it
// had run out of time.
func (s *Server) Expire(accessToken string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.access, accessToken)
}

// ExpireAccessTokens expires every live access token.
func (s *Server) ExpireAccessTokens() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.access = make(map[string]string)
}

// AccessTokenLive reports whether accessToken would be accepted.
func (s *Server) AccessTokenLive(accessToken string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, ok := s.access[accessToken]
	return ok
}

// SetRefreshStatus makes /auth/refresh answer with status instead of a pair.
// Zero restores normal behaviour.
func (s *Server) SetRefreshStatus(status int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.refreshStatus = status
}

func (s *Server) SetLogoutStatus(status int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.logoutStatus = status
}

// SetAuthenticateBody replaces the successful /auth/authenticate body.
func (s *Server) SetAuthenticateBody(body string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.authenticateBody = body
}

// SetRefreshBody replaces the successful /auth/refresh body.
func (s *Server) SetRefreshBody(body string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.refreshBody = body
}

func (s *Server) SetRefreshDelay(delay time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.refreshDelay = delay
}

// HoldRefresh blocks /auth/refresh until the returned release func is
// called.
func (s *Server) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	s.lock.Lock()
	s.refreshGate = gate
	s.lock.Unlock()

	var once sync.Once
	release = func() { once.Do(func() { close(gate) }) }
	s.t.Cleanup(release)
	return release
}

// Calls returns how many requests path has received. Resource paths are
// counted under ResourcePrefix.
func (s *Server) Calls(path string) int64 {
	if v, ok := s.calls.Load(path); ok {
		return v.(*atomic.Int64).Load()
	}
	return 0
}

func (s *Server) Registrations() []map[string]any {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]map[string]any(nil), s.registrations...)
}

func (s *Server) count(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if strings.HasPrefix(key, ResourcePrefix) {
			key = ResourcePrefix
		}
		v, _ := s.calls.LoadOrStore(key, new(atomic.Int64))
		v.(*atomic.Int64).Add(1)
		next(w, r)
	}
}

func (s *Server) issueLocked(email string) tokenstore.Pair {
	s.seq++
	role := s.users[email].role
	if role == "" {
		role = claims.RoleStudent
	}
	accessToken := claimstest.Token(s.t, jwtlib.MapClaims{
		"sub":  email,
		"role": claimstest.Authorities("ROLE_" + string(role)),
		"jti":  fmt.Sprintf("access-%d", s.seq),
		"exp":  time.Now().Add(15 * time.Minute).Unix(),
	})
	refreshToken := fmt.Sprintf("refresh-%d-%s", s.seq, email)
	s.access[accessToken] = email
	s.refresh[refreshToken] = email
	return tokenstore.Pair{AccessToken: accessToken, RefreshToken: refreshToken}
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writePair(w http.ResponseWriter, pair tokenstore.Pair) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.lock.Lock()
	u, ok := s.users[creds.Email]
	if !ok || u.password != creds.Password {
		s.lock.Unlock()
		http.Error(w, "bad credentials", http.StatusForbidden)
		return
	}
	if s.authenticateBody != "" {
		body := s.authenticateBody
		s.lock.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
		return
	}
	pair := s.issueLocked(creds.Email)
	s.lock.Unlock()
	writePair(w, pair)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	email, _ := body["email"].(string)
	password, _ := body["password"].(string)

	s.lock.Lock()
	defer s.lock.Unlock()
	s.registrations = append(s.registrations, body)
	if _, exists := s.users[email]; exists {
		http.Error(w, "email already registered", http.StatusConflict)
		return
	}
	s.users[email] = user{password: password, role: claims.RoleStudent}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	gate, delay := s.refreshGate, s.refreshDelay
	s.lock.Unlock()

	if gate != nil {
		<-gate
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if s.refreshStatus != 0 {
		http.Error(w, "refresh rejected", s.refreshStatus)
		return
	}
	email, ok := s.refresh[bearer(r)]
	if !ok {
		http.Error(w, "invalid refresh token", http.StatusForbidden)
		return
	}
	if s.refreshBody != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, s.refreshBody)
		return
	}
	// Refresh rotates: the old refresh token is spent.
	delete(s.refresh, bearer(r))
	writePair(w, s.issueLocked(email))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.logoutStatus != 0 {
		http.Error(w, "logout failed", s.logoutStatus)
		return
	}
	email, ok := s.access[bearer(r)]
	if !ok {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	for token, subject := range s.access {
		if subject == email {
			delete(s.access, token)
		}
	}
	for token, subject := range s.refresh {
		if subject == email {
			delete(s.refresh, token)
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	subject, ok := s.access[bearer(r)]
	s.lock.Unlock()
	if !ok {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Resource{Subject: subject, Path: r.URL.Path, Echo: string(body)})
}
