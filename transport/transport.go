// Package transport attaches the session's access token to outgoing API
// requests and recovers from a stale token with one refresh and one resend.
package transport

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// RequestIDHeader carries a per-request id. A resend keeps the id of the
// original attempt.
const RequestIDHeader = "X-Request-ID"

const defaultLoginPath = "/login"

// SessionCoordinator is the part of the session the interceptor drives.
type SessionCoordinator interface {
	CurrentAccessToken(ctx context.Context) (string, error)
	AwaitRefresh(ctx context.Context) error
	RefreshIfStale(ctx context.Context, staleAccessToken string) error
	Logout(ctx context.Context) error
}

var _ SessionCoordinator = (*auth.Coordinator)(nil)

// Navigator sends the user to another entry point of the application.
type Navigator interface {
	NavigateTo(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) NavigateTo(path string) {
	f(path)
}

// Transport is an http.RoundTripper for API calls made on behalf of the
// session.
//
// A response whose status is one of the rejection statuses (403 unless
// configured otherwise), to a request that carried a token, is taken to mean
// the access token went stale. The session is refreshed once, shared with any
// other request in the same position, and the request is sent again with the
// new token. If the refresh fails the session is logged out, the navigator is
// sent to the login path and the original response is returned. A refresh
// overtaken by a login or logout is not a failure: the request is resent with
// whatever token is stored now, or returned as is when there is none.
type Transport struct {
	base      http.RoundTripper
	session   SessionCoordinator
	navigator Navigator
	loginPath string
	rejection map[int]bool
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

var _ http.RoundTripper = (*Transport)(nil)

type TransportOption func(*Transport)

// WithBase sets the transport requests are sent through. Defaults to
// http.DefaultTransport.
func WithBase(base http.RoundTripper) TransportOption {
	return func(t *Transport) {
		if base != nil {
			t.base = base
		}
	}
}

func WithNavigator(navigator Navigator) TransportOption {
	return func(t *Transport) {
		if navigator != nil {
			t.navigator = navigator
		}
	}
}

func WithLoginPath(path string) TransportOption {
	return func(t *Transport) {
		if path != "" {
			t.loginPath = path
		}
	}
}

// WithRejectionStatuses replaces the statuses that signal a stale token.
func WithRejectionStatuses(statuses ...int) TransportOption {
	return func(t *Transport) {
		if len(statuses) == 0 {
			return
		}
		t.rejection = make(map[int]bool, len(statuses))
		for _, s := range statuses {
			t.rejection[s] = true
		}
	}
}

func WithLogger(logger zerolog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) TransportOption {
	return func(t *Transport) {
		t.metrics = m
	}
}

func New(session SessionCoordinator, options ...TransportOption) (*Transport, error) {
	if session == nil {
		return nil, errors.New("[transport.New] session coordinator is required")
	}

	t := &Transport{
		base:      http.DefaultTransport,
		session:   session,
		loginPath: defaultLoginPath,
		rejection: map[int]bool{http.StatusForbidden: true},
		logger:    log.Logger,
	}
	t.navigator = NavigatorFunc(func(path string) {
		t.logger.Warn().Str("path", path).Msg("session ended, login required")
	})
	for _, opt := range options {
		opt(t)
	}
	return t, nil
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	// Requests issued during a refresh go out with its result.
	if err := t.session.AwaitRefresh(ctx); err != nil {
		closeBody(req)
		return nil, errors.Wrap(err, "[Transport.RoundTrip]")
	}
	token, err := t.session.CurrentAccessToken(ctx)
	if err != nil {
		closeBody(req)
		return nil, errors.Wrap(err, "[Transport.RoundTrip] read access token")
	}

	out := req.Clone(ctx)
	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.NewString())
	}
	attach(out, token)

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if token == "" || !t.rejection[resp.StatusCode] {
		return resp, nil
	}

	logger := t.logger.With().
		Str("request_id", out.Header.Get(RequestIDHeader)).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Logger()

	if !replayable(req) {
		logger.Debug().Msg("request body cannot be replayed, not retrying")
		return resp, nil
	}

	if err := t.session.RefreshIfStale(ctx, token); err != nil {
		if ctx.Err() != nil {
			return resp, nil
		}
		if !errors.Is(err, auth.ErrSessionReplaced) {
			t.endSession(ctx, logger, err)
			return resp, nil
		}
		// A login or logout overtook the refresh. Its session stands.
		logger.Debug().Err(err).Msg("session replaced during refresh")
	}

	fresh, err := t.session.CurrentAccessToken(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("reading refreshed access token")
		return resp, nil
	}
	if fresh == "" || fresh == token {
		return resp, nil
	}
	retry, err := rebuild(req, out, fresh)
	if err != nil {
		logger.Error().Err(err).Msg("rebuilding request for resend")
		return resp, nil
	}

	discard(resp)
	t.metrics.RecordRetry()
	logger.Debug().Msg("resending with refreshed token")
	return t.base.RoundTrip(retry)
}

func (t *Transport) endSession(ctx context.Context, logger zerolog.Logger, cause error) {
	logger.Warn().Err(cause).Msg("refresh failed, logging out")
	if err := t.session.Logout(context.WithoutCancel(ctx)); err != nil {
		logger.Warn().Err(err).Msg("logout after failed refresh")
	}
	t.metrics.RecordForcedNavigation()
	t.navigator.NavigateTo(t.loginPath)
}

func attach(req *http.Request, token string) {
	if token == "" {
		return
	}
	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// rebuild makes the resend of req, keeping the headers of the first attempt.
func rebuild(req, first *http.Request, token string) (*http.Request, error) {
	retry := req.Clone(req.Context())
	retry.Header = first.Header.Clone()
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.Wrap(err, "[transport.rebuild]")
		}
		retry.Body = body
	}
	retry.Header.Del("Authorization")
	attach(retry, token)
	return retry, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
