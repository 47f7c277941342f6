package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/claims"
	"github.com/jrsteele09/go-auth-client/internal/authstub"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func setupCLI(t *testing.T) *authstub.Server {
	t.Helper()
	srv := authstub.New(t)
	srv.AddUser("a@b.com", "password123", claims.RoleTeacher)

	t.Setenv(config.ConfigFileEnvVar, "")
	t.Setenv("AUTH_API_BASE_URL", srv.URL)
	t.Setenv("AUTH_LOG_LEVEL", "disabled")
	t.Setenv("AUTH_TOKEN_STORE", "file")
	t.Setenv("AUTH_TOKEN_FILE", filepath.Join(t.TempDir(), "session.json"))
	t.Setenv(passwordEnvVar, "")
	return srv
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append([]string{"--quiet"}, args...), strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String() + stderr.String(), err
}

func TestParseArgs(t *testing.T) {
	cfg, command, rest, err := parseArgs([]string{"-c", "client.yaml", "-q", "get", "/api/courses"})
	require.NoError(t, err)
	require.Equal(t, "client.yaml", cfg.configFile)
	require.False(t, cfg.banner)
	require.Equal(t, "get", command)
	require.Equal(t, []string{"/api/courses"}, rest)

	_, _, _, err = parseArgs(nil)
	require.True(t, errors.Is(err, errShowUsage))

	_, _, _, err = parseArgs([]string{"--config"})
	require.Error(t, err)

	_, _, _, err = parseArgs([]string{"--verbose", "whoami"})
	require.Error(t, err)
}

func TestCLI_SessionLifecycle(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "password123\n", "login", "a@b.com")
	require.NoError(t, err)
	require.Contains(t, out, "Logged in as a@b.com (TEACHER)")

	out, err = runCLI(t, "", "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "a@b.com")

	out, err = runCLI(t, "", "get", "/api/courses")
	require.NoError(t, err)
	require.Contains(t, out, `"subject":"a@b.com"`)

	out, err = runCLI(t, "", "refresh")
	require.NoError(t, err)
	require.Contains(t, out, "Logged in as")

	out, err = runCLI(t, "", "logout")
	require.NoError(t, err)
	require.Contains(t, out, "Logged out.")

	out, err = runCLI(t, "", "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "Not logged in.")
}

func TestCLI_LoginRejected(t *testing.T) {
	setupCLI(t)
	t.Setenv(passwordEnvVar, "wrong")

	_, err := runCLI(t, "", "login", "a@b.com")
	require.True(t, errors.Is(err, auth.ErrAuthenticationRejected))
}

func TestCLI_ExpiredSessionNavigatesToLogin(t *testing.T) {
	srv := setupCLI(t)
	_, err := runCLI(t, "password123\n", "login", "a@b.com")
	require.NoError(t, err)

	srv.ExpireAccessTokens()
	srv.SetRefreshStatus(403)

	out, err := runCLI(t, "", "get", "/api/courses")
	require.Error(t, err)
	require.Contains(t, out, "Session expired. Log in again (/login).")

	out, err = runCLI(t, "", "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "Not logged in.")
}

func TestCLI_Register(t *testing.T) {
	srv := setupCLI(t)

	out, err := runCLI(t, "pw\npw\n", "register", "new@b.com", "Ada", "Lovelace", "555-0100")
	require.NoError(t, err)
	require.Contains(t, out, "Registered new@b.com")
	require.Len(t, srv.Registrations(), 1)

	_, err = runCLI(t, "pw\nother\n", "register", "x@b.com", "X", "Y", "1")
	require.True(t, errors.Is(err, auth.ErrPasswordMismatch))
}

func TestCLI_UnknownCommand(t *testing.T) {
	setupCLI(t)
	_, err := runCLI(t, "", "teleport")
	require.Error(t, err)

	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	require.Contains(t, out, "authclient dev")
}
