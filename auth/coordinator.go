// Package auth coordinates the session lifecycle: login, refresh and logout
// against the auth endpoints, keeping the token store and the published
// session state in step.
//
// The session state is Authenticated exactly when the store holds an access
// token that decodes into an identity. Every mutation of the store goes
// through the Coordinator together with the matching state change.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/authapi"
	"github.com/jrsteele09/go-auth-client/claims"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/metrics"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/telemetry"
	"github.com/jrsteele09/go-auth-client/tokenstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const defaultRefreshTimeout = 10 * time.Second

// AuthAPI is the remote side of the session: the /auth endpoints.
type AuthAPI interface {
	Authenticate(ctx context.Context, creds authapi.Credentials) (authapi.TokenResponse, error)
	Register(ctx context.Context, registration authapi.Registration) error
	Refresh(ctx context.Context, refreshToken string) (authapi.TokenResponse, error)
	Logout(ctx context.Context, accessToken string) error
}

var _ AuthAPI = (*authapi.Client)(nil)

// Coordinator owns the session of one client.
type Coordinator struct {
	api            AuthAPI
	store          tokenstore.Store
	broadcaster    *session.Broadcaster
	refreshTimeout time.Duration
	logger         zerolog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	nowTime        func() time.Time

	// mutate serialises store writes with the state published for them.
	// epoch moves on every mutation so a refresh that started before a
	// logout or login cannot overwrite it.
	mutate sync.Mutex
	epoch  uint64

	flights  singleflight.Group
	lock     sync.Mutex // guards inflight
	inflight chan struct{}
}

type CoordinatorOption func(*Coordinator)

func WithLogger(logger zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithRefreshTimeout bounds the refresh network call. A refresh that runs out
// of time fails like a rejected one.
func WithRefreshTimeout(timeout time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if timeout > 0 {
			c.refreshTimeout = timeout
		}
	}
}

func WithMetrics(m *metrics.Metrics) CoordinatorOption {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) CoordinatorOption {
	return func(c *Coordinator) {
		c.tracer = tracer
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.nowTime = nowFunc
	}
}

func NewCoordinator(
	api AuthAPI,
	store tokenstore.Store,
	broadcaster *session.Broadcaster,
	options ...CoordinatorOption,
) (*Coordinator, error) {
	if api == nil {
		return nil, errors.New("[NewCoordinator] auth API is required")
	}
	if store == nil {
		return nil, errors.New("[NewCoordinator] token store is required")
	}
	if broadcaster == nil {
		return nil, errors.New("[NewCoordinator] broadcaster is required")
	}

	c := &Coordinator{
		api:            api,
		store:          store,
		broadcaster:    broadcaster,
		refreshTimeout: defaultRefreshTimeout,
		logger:         log.Logger,
		tracer:         telemetry.Tracer(),
		nowTime:        time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Login exchanges credentials for a token pair and starts an authenticated
// session. The pair is only stored once its access token decodes.
func (c *Coordinator) Login(ctx context.Context, creds authapi.Credentials) (err error) {
	ctx, span := telemetry.StartSessionSpan(ctx, c.tracer, "login")
	outcome := metrics.OutcomeSuccess
	defer func() {
		c.metrics.RecordLogin(outcome)
		telemetry.EndSpan(span, outcome, err)
	}()

	tr, err := c.api.Authenticate(ctx, creds)
	switch {
	case err == nil:
	case authapi.IsStatus(err):
		outcome = metrics.OutcomeRejected
		return apperrors.Classify("Coordinator.Login", ErrAuthenticationRejected, err)
	case errors.Is(err, authapi.ErrMalformedResponse):
		outcome = metrics.OutcomeInvalidToken
		return apperrors.Classify("Coordinator.Login", ErrInvalidToken, err)
	default:
		outcome = metrics.OutcomeRejected
		return errors.Wrap(err, "[Coordinator.Login]")
	}

	pair, identity, err := decodePair(tr)
	if err != nil {
		outcome = metrics.OutcomeInvalidToken
		return apperrors.Classify("Coordinator.Login", ErrInvalidToken, err)
	}

	if err := c.apply(ctx, pair, identity, nil); err != nil {
		outcome = metrics.OutcomeStorageError
		return errors.Wrap(err, "[Coordinator.Login] store tokens")
	}

	c.logger.Info().Str("subject", identity.Subject).Stringer("role", identity.Role).Msg("logged in")
	return nil
}

// Register creates an account. It does not log the new user in.
func (c *Coordinator) Register(ctx context.Context, registration authapi.Registration) (err error) {
	if registration.Password != registration.ConfirmPassword {
		return errors.Wrap(ErrPasswordMismatch, "[Coordinator.Register]")
	}

	ctx, span := telemetry.StartSessionSpan(ctx, c.tracer, "register")
	outcome := metrics.OutcomeSuccess
	defer func() { telemetry.EndSpan(span, outcome, err) }()

	if err := c.api.Register(ctx, registration); err != nil {
		outcome = metrics.OutcomeRejected
		if authapi.IsStatus(err) {
			return apperrors.Classify("Coordinator.Register", ErrRegistrationRejected, err)
		}
		return errors.Wrap(err, "[Coordinator.Register]")
	}
	c.logger.Info().Str("subject", registration.Email).Msg("registered")
	return nil
}

// Logout ends the session. The remote call is best effort: the store is
// cleared and Anonymous published whatever it returns. A remote failure is
// reported as ErrLogoutFailed after the local teardown. A store read failure
// is returned after the teardown too; the remote call is skipped then.
func (c *Coordinator) Logout(ctx context.Context) (err error) {
	ctx, span := telemetry.StartSessionSpan(ctx, c.tracer, "logout")
	outcome := metrics.OutcomeSuccess
	defer func() {
		c.metrics.RecordLogout(outcome)
		telemetry.EndSpan(span, outcome, err)
	}()

	var remoteErr error
	accessToken, readErr := c.store.Get(ctx, tokenstore.AccessTokenKey)
	if readErr != nil {
		c.logger.Warn().Err(readErr).Msg("reading access token for logout, skipping remote logout")
	}
	if accessToken != "" {
		remoteErr = c.api.Logout(ctx, accessToken)
	}

	// Teardown must happen even when the caller's context is already done.
	if err := c.teardown(context.WithoutCancel(ctx)); err != nil {
		outcome = metrics.OutcomeStorageError
		return errors.Wrap(err, "[Coordinator.Logout] clear tokens")
	}
	if readErr != nil {
		outcome = metrics.OutcomeStorageError
		return errors.Wrap(readErr, "[Coordinator.Logout] read access token")
	}

	if remoteErr != nil {
		outcome = metrics.OutcomeRemoteFailed
		c.logger.Warn().Err(remoteErr).Msg("remote logout failed, local session cleared")
		return apperrors.Classify("Coordinator.Logout", ErrLogoutFailed, remoteErr)
	}
	c.logger.Info().Msg("logged out")
	return nil
}

// Restore recomputes the session state from whatever the store already
// holds, so a durable session carries over a restart. A stored access token
// that no longer decodes is cleared.
func (c *Coordinator) Restore(ctx context.Context) error {
	c.mutate.Lock()
	defer c.mutate.Unlock()

	pair, err := c.store.GetPair(ctx)
	if err != nil {
		return errors.Wrap(err, "[Coordinator.Restore]")
	}
	if pair.AccessToken == "" {
		c.broadcaster.Publish(session.Anonymous())
		return nil
	}

	identity, err := claims.Decode(pair.AccessToken)
	if err != nil {
		c.logger.Warn().Err(err).Msg("stored access token does not decode, clearing session")
		c.epoch++
		c.broadcaster.Publish(session.Anonymous())
		if err := c.store.ClearPair(ctx); err != nil {
			return errors.Wrap(err, "[Coordinator.Restore] clear tokens")
		}
		return nil
	}

	c.broadcaster.Publish(session.Authenticated(identity))
	c.logger.Info().Str("subject", identity.Subject).Msg("session restored")
	return nil
}

func (c *Coordinator) CurrentAccessToken(ctx context.Context) (string, error) {
	return c.store.Get(ctx, tokenstore.AccessTokenKey)
}

func (c *Coordinator) CurrentRefreshToken(ctx context.Context) (string, error) {
	return c.store.Get(ctx, tokenstore.RefreshTokenKey)
}

func (c *Coordinator) State() session.State {
	return c.broadcaster.Current()
}

// Subscribe registers fn for session state transitions. fn is called once
// straight away with the current state. It runs while the session is being
// changed and must not call Login, Logout, Refresh or Restore.
func (c *Coordinator) Subscribe(fn func(session.State)) *session.Subscription {
	return c.broadcaster.Subscribe(fn)
}

// apply stores pair and publishes the identity decoded from it. With a
// non-nil expectEpoch the write is dropped if another mutation got there
// first.
func (c *Coordinator) apply(ctx context.Context, pair tokenstore.Pair, identity claims.Identity, expectEpoch *uint64) error {
	c.mutate.Lock()
	defer c.mutate.Unlock()

	if expectEpoch != nil && *expectEpoch != c.epoch {
		return ErrSessionReplaced
	}
	if err := c.store.SetPair(ctx, pair); err != nil {
		return err
	}
	c.epoch++
	c.broadcaster.Publish(session.Authenticated(identity))
	return nil
}

// teardown clears the pair and publishes Anonymous. Anonymous is published
// even if the store fails so the session never stays Authenticated.
func (c *Coordinator) teardown(ctx context.Context) error {
	c.mutate.Lock()
	defer c.mutate.Unlock()

	c.epoch++
	err := c.store.ClearPair(ctx)
	c.broadcaster.Publish(session.Anonymous())
	return err
}

// teardownAt is teardown for a refresh that started at epoch. It leaves the
// session alone and reports replaced when another mutation got there first.
func (c *Coordinator) teardownAt(ctx context.Context, epoch uint64) (replaced bool, err error) {
	c.mutate.Lock()
	defer c.mutate.Unlock()

	if c.epoch != epoch {
		return true, nil
	}
	c.epoch++
	err = c.store.ClearPair(ctx)
	c.broadcaster.Publish(session.Anonymous())
	return false, err
}

func (c *Coordinator) currentEpoch() uint64 {
	c.mutate.Lock()
	defer c.mutate.Unlock()
	return c.epoch
}

func decodePair(tr authapi.TokenResponse) (tokenstore.Pair, claims.Identity, error) {
	accessToken, refreshToken := tr.Tokens()
	identity, err := claims.Decode(accessToken)
	if err != nil {
		return tokenstore.Pair{}, claims.Identity{}, err
	}
	return tokenstore.Pair{AccessToken: accessToken, RefreshToken: refreshToken}, identity, nil
}
