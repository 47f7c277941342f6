package client_test

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-auth-client/authapi"
	"github.com/jrsteele09/go-auth-client/claims"
	"github.com/jrsteele09/go-auth-client/client"
	"github.com/jrsteele09/go-auth-client/internal/authstub"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "a@b.com"
	testPassword = "password123"
)

func setupServer(t *testing.T) *authstub.Server {
	t.Helper()
	srv := authstub.New(t)
	srv.AddUser(testEmail, testPassword, claims.RoleAdmin)
	t.Setenv("AUTH_API_BASE_URL", srv.URL)
	t.Setenv(config.ConfigFileEnvVar, "")
	return srv
}

func newSession(t *testing.T, opts ...client.Option) *client.Session {
	t.Helper()
	s, err := client.New(context.Background(), config.New(), append([]client.Option{client.WithLogger(zerolog.Nop())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNew_FileStoreSurvivesRestart(t *testing.T) {
	setupServer(t)
	t.Setenv("AUTH_TOKEN_STORE", "file")
	t.Setenv("AUTH_TOKEN_FILE", filepath.Join(t.TempDir(), "session.json"))
	t.Setenv("AUTH_TOKEN_SEAL_KEY", "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")

	first := newSession(t)
	require.NoError(t, first.Coordinator.Login(context.Background(), authapi.Credentials{Email: testEmail, Password: testPassword}))
	require.NoError(t, first.Close())

	second := newSession(t)
	state := second.Coordinator.State()
	require.True(t, state.IsAuthenticated())
	require.Equal(t, claims.RoleAdmin, state.Identity.Role)
}

func TestNew_RedisStore(t *testing.T) {
	setupServer(t)
	mr := miniredis.RunT(t)
	t.Setenv("AUTH_TOKEN_STORE", "redis")
	t.Setenv("AUTH_REDIS_ADDR", mr.Addr())
	t.Setenv("AUTH_REDIS_PREFIX", "it:")

	s := newSession(t)
	require.NoError(t, s.Coordinator.Login(context.Background(), authapi.Credentials{Email: testEmail, Password: testPassword}))
	require.True(t, mr.Exists("it:jwtToken"))
	require.True(t, mr.Exists("it:refreshToken"))
}

func TestNew_RedisUnavailable(t *testing.T) {
	setupServer(t)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()
	t.Setenv("AUTH_TOKEN_STORE", "redis")
	t.Setenv("AUTH_REDIS_ADDR", addr)

	_, err = client.New(context.Background(), config.New(), client.WithLogger(zerolog.Nop()))
	require.Error(t, err)
}

func TestNew_BadSealKey(t *testing.T) {
	setupServer(t)
	t.Setenv("AUTH_TOKEN_STORE", "file")
	t.Setenv("AUTH_TOKEN_SEAL_KEY", "abcd")

	_, err := client.New(context.Background(), config.New(), client.WithLogger(zerolog.Nop()))
	require.Error(t, err)
}

func TestSession_HTTPClientRefreshesAndNavigates(t *testing.T) {
	srv := setupServer(t)
	t.Setenv("AUTH_TOKEN_STORE", "memory")
	t.Setenv("AUTH_LOGIN_PATH", "/signin")

	var navigatedTo string
	reg := prometheus.NewRegistry()
	s := newSession(t,
		client.WithRegisterer(reg),
		client.WithNavigator(transport.NavigatorFunc(func(path string) { navigatedTo = path })),
	)
	require.NoError(t, s.Coordinator.Login(context.Background(), authapi.Credentials{Email: testEmail, Password: testPassword}))

	stale, err := s.Coordinator.CurrentAccessToken(context.Background())
	require.NoError(t, err)
	srv.Expire(stale)

	resp, err := s.HTTPClient.Get(s.URL("/api/courses"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	srv.ExpireAccessTokens()
	srv.SetRefreshStatus(http.StatusForbidden)
	resp, err = s.HTTPClient.Get(s.URL("api/courses"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "/signin", navigatedTo)
	require.False(t, s.Coordinator.State().IsAuthenticated())

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestSession_RefreshTimeoutEndsSession(t *testing.T) {
	srv := setupServer(t)
	t.Setenv("AUTH_TOKEN_STORE", "memory")
	t.Setenv("AUTH_REFRESH_TIMEOUT", "50ms")

	var navigatedTo string
	s := newSession(t, client.WithNavigator(transport.NavigatorFunc(func(path string) { navigatedTo = path })))
	require.NoError(t, s.Coordinator.Login(context.Background(), authapi.Credentials{Email: testEmail, Password: testPassword}))

	srv.ExpireAccessTokens()
	srv.SetRefreshDelay(2 * time.Second)

	resp, err := s.HTTPClient.Get(s.URL("/api/courses"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "/login", navigatedTo)
	require.False(t, s.Coordinator.State().IsAuthenticated())
	require.False(t, s.Coordinator.RefreshInFlight())
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := client.New(context.Background(), nil)
	require.Error(t, err)
}
