// Package client wires a complete session from configuration: token store,
// auth endpoint client, coordinator and the intercepting HTTP client. It is
// the one place the session objects are created; everything else receives
// them.
package client

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/authapi"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/metrics"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/tokenstore"
	"github.com/jrsteele09/go-auth-client/tokenstore/filestore"
	"github.com/jrsteele09/go-auth-client/tokenstore/redisstore"
	tokenfakerepo "github.com/jrsteele09/go-auth-client/tokenstore/repofake"
	"github.com/jrsteele09/go-auth-client/transport"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Session is a wired session context.
type Session struct {
	Config      config.Config
	Logger      zerolog.Logger
	Store       tokenstore.Store
	Broadcaster *session.Broadcaster
	Coordinator *auth.Coordinator
	Transport   *transport.Transport
	Metrics     *metrics.Metrics

	// HTTPClient sends API requests on behalf of the session.
	HTTPClient *http.Client

	baseURL *url.URL
	closers []func() error
}

type options struct {
	logger     *zerolog.Logger
	registerer prometheus.Registerer
	navigator  transport.Navigator
	store      tokenstore.Store
	base       http.RoundTripper
}

type Option func(*options)

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// WithRegisterer registers the session metrics. Without it the metrics are
// kept but not exported.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

func WithNavigator(navigator transport.Navigator) Option {
	return func(o *options) {
		o.navigator = navigator
	}
}

// WithStore bypasses the configured store backend.
func WithStore(store tokenstore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithBaseTransport sets the transport under both the auth endpoint client
// and the API client.
func WithBaseTransport(base http.RoundTripper) Option {
	return func(o *options) {
		o.base = base
	}
}

// New builds a session from cfg and restores any session the store already
// holds.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("[client.New] config is required")
	}
	o := options{base: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{Config: cfg}
	s.Logger = newLogger(cfg, o.logger)

	baseURL, err := url.Parse(cfg.GetAPIBaseURL())
	if err != nil {
		return nil, errors.Wrap(err, "[client.New] API base URL")
	}
	s.baseURL = baseURL

	if s.Metrics, err = metrics.New(o.registerer); err != nil {
		return nil, err
	}

	s.Store = o.store
	if s.Store == nil {
		if s.Store, err = s.openStore(ctx, cfg); err != nil {
			return nil, err
		}
	}

	api, err := authapi.NewClient(cfg.GetAPIBaseURL(),
		authapi.WithHTTPClient(&http.Client{Transport: o.base, Timeout: cfg.GetHTTPTimeout()}),
		authapi.WithLogger(s.Logger),
	)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	s.Broadcaster = session.NewBroadcaster(session.WithLogger(s.Logger))
	s.Coordinator, err = auth.NewCoordinator(api, s.Store, s.Broadcaster,
		auth.WithLogger(s.Logger),
		auth.WithRefreshTimeout(cfg.GetRefreshTimeout()),
		auth.WithMetrics(s.Metrics),
	)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	s.Transport, err = transport.New(s.Coordinator,
		transport.WithBase(o.base),
		transport.WithNavigator(o.navigator),
		transport.WithLoginPath(cfg.GetLoginPath()),
		transport.WithRejectionStatuses(cfg.GetRejectionStatuses()...),
		transport.WithLogger(s.Logger),
		transport.WithMetrics(s.Metrics),
	)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.HTTPClient = &http.Client{Transport: s.Transport, Timeout: cfg.GetHTTPTimeout()}

	if err := s.Coordinator.Restore(ctx); err != nil {
		_ = s.Close()
		return nil, errors.Wrap(err, "[client.New]")
	}
	return s, nil
}

// URL resolves an API path against the configured base URL.
func (s *Session) URL(path string) string {
	return s.baseURL.ResolveReference(&url.URL{Path: strings.TrimPrefix(path, "/")}).String()
}

// Close releases the store connection. The stored session is kept.
func (s *Session) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

func (s *Session) openStore(ctx context.Context, cfg config.Config) (tokenstore.Store, error) {
	switch backend := cfg.GetStoreBackend(); backend {
	case config.StoreBackendMemory:
		return tokenfakerepo.NewFakeTokenRepo(), nil

	case config.StoreBackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, errors.Wrapf(err, "[client.openStore] redis %s", cfg.GetRedisAddr())
		}
		s.closers = append(s.closers, rdb.Close)
		s.Logger.Debug().Str("addr", cfg.GetRedisAddr()).Msg("using redis token store")
		return redisstore.New(rdb, cfg.GetRedisPrefix())

	default:
		key, err := cfg.GetSealKey()
		if err != nil {
			return nil, errors.Wrap(err, "[client.openStore]")
		}
		s.Logger.Debug().Str("file", cfg.GetTokenFile()).Bool("sealed", key != nil).Msg("using file token store")
		return filestore.New(cfg.GetTokenFile(), filestore.WithSealKey(key))
	}
}

func newLogger(cfg config.Config, override *zerolog.Logger) zerolog.Logger {
	if override != nil {
		return *override
	}
	level, err := zerolog.ParseLevel(cfg.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Str("app", cfg.GetAppName()).
		Str("env", cfg.GetEnv()).
		Logger()
}
