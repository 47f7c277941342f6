// Package authapi talks to the /auth endpoints of the reservation API.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Endpoint paths, relative to the API base URL.
const (
	AuthenticatePath = "auth/authenticate"
	RegisterPath     = "auth/register"
	RefreshPath      = "auth/refresh"
	LogoutPath       = "auth/logout"
)

const maxErrorBody = 512

// Client calls the auth endpoints. Its http.Client must not be one that
// attaches session tokens itself.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     zerolog.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(baseURL string, options ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[authapi.NewClient] base URL is required")
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "[authapi.NewClient] base URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("[authapi.NewClient] base URL %q is not absolute", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: http.DefaultClient,
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the resolved API root.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Authenticate exchanges credentials for a token pair.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (TokenResponse, error) {
	var tr TokenResponse
	if err := c.post(ctx, AuthenticatePath, "", creds, &tr); err != nil {
		return TokenResponse{}, errors.Wrap(err, "[Client.Authenticate]")
	}
	return tr, nil
}

func (c *Client) Register(ctx context.Context, registration Registration) error {
	if err := c.post(ctx, RegisterPath, "", registration, nil); err != nil {
		return errors.Wrap(err, "[Client.Register]")
	}
	return nil
}

// Refresh exchanges refreshToken, sent as the bearer credential, for a new
// pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenResponse, error) {
	var tr TokenResponse
	if err := c.post(ctx, RefreshPath, refreshToken, nil, &tr); err != nil {
		return TokenResponse{}, errors.Wrap(err, "[Client.Refresh]")
	}
	return tr, nil
}

// Logout invalidates accessToken on the server.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	if err := c.post(ctx, LogoutPath, accessToken, nil, nil); err != nil {
		return errors.Wrap(err, "[Client.Logout]")
	}
	return nil
}

func (c *Client) post(ctx context.Context, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(payload)
	}

	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		(&oauth2.Token{AccessToken: bearer, TokenType: "Bearer"}).SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "POST %s", path)
	}
	defer resp.Body.Close()

	c.logger.Debug().Str("endpoint", path).Int("status", resp.StatusCode).Msg("auth endpoint called")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(ErrMalformedResponse, err.Error())
	}
	return nil
}
