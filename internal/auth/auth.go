// Package auth obtains Spotify Web API access tokens with the OAuth2
// client-credentials flow and caches them on disk.
package auth

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// DefaultTokenURL is Spotify's accounts token endpoint.
	DefaultTokenURL = "https://accounts.spotify.com/api/token"

	// Environment variables holding the app credentials.
	EnvClientID     = "SPOTIFY_CLIENT_ID"
	EnvClientSecret = "SPOTIFY_CLIENT_SECRET"

	// expiryMargin is subtracted from the advertised token lifetime.
	expiryMargin = 60 * time.Second

	defaultLifetime = time.Hour
	requestTimeout  = 10 * time.Second
)

// State describes where the authenticator is in the token lifecycle.
type State string

const (
	StateUnconfigured State = "unconfigured"
	StateNoToken      State = "configured_no_token"
	StateToken        State = "configured_token"
)

// Credentials identify a Spotify developer app.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// CredentialsFromEnv reads SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET.
func CredentialsFromEnv() Credentials {
	return Credentials{
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
	}
}

// Configured reports whether both values are present.
func (c Credentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Authenticator hands out client-credentials access tokens.
type Authenticator struct {
	creds      Credentials
	cache      *TokenCache
	httpClient *http.Client
	tokenURL   string
	now        func() time.Time
	logger     logrus.FieldLogger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithHTTPClient sets the client used for token requests. A nil client
// makes the authenticator unavailable.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Authenticator) {
		a.httpClient = c
	}
}

// WithTokenURL overrides the token endpoint.
func WithTokenURL(u string) Option {
	return func(a *Authenticator) {
		a.tokenURL = u
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(a *Authenticator) {
		a.logger = l
	}
}

// New creates an Authenticator. Missing credentials are not an error: the
// authenticator simply reports itself unavailable.
func New(creds Credentials, cache *TokenCache, opts ...Option) *Authenticator {
	a := &Authenticator{
		creds:      creds,
		cache:      cache,
		httpClient: &http.Client{Timeout: requestTimeout},
		tokenURL:   DefaultTokenURL,
		now:        time.Now,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Available reports whether credentials and an HTTP client are present.
// It never touches the network.
func (a *Authenticator) Available() bool {
	return a.creds.Configured() && a.httpClient != nil
}

// State reports the current lifecycle state.
func (a *Authenticator) State() State {
	if !a.Available() {
		return StateUnconfigured
	}
	if a.cached() != nil {
		return StateToken
	}
	return StateNoToken
}

// Token returns a valid access token, requesting and caching a new one when
// needed. It returns false when unavailable or when the request fails; the
// caller is expected to fall back to cached data.
func (a *Authenticator) Token(ctx context.Context) (string, bool) {
	if !a.Available() {
		return "", false
	}

	if rec := a.cached(); rec != nil {
		return rec.AccessToken, true
	}

	cfg := clientcredentials.Config{
		ClientID:     a.creds.ClientID,
		ClientSecret: a.creds.ClientSecret,
		TokenURL:     a.tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)

	tok, err := cfg.Token(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to get Spotify access token")
		return "", false
	}

	lifetime := defaultLifetime
	if tok.ExpiresIn > 0 {
		lifetime = time.Duration(tok.ExpiresIn) * time.Second
	}
	rec := &TokenRecord{
		AccessToken: tok.AccessToken,
		ExpiresAt:   a.now().Add(lifetime - expiryMargin),
	}
	if err := a.cache.Save(rec); err != nil {
		a.logger.WithError(err).Warn("Failed to cache access token")
	}

	return rec.AccessToken, true
}

// Invalidate discards the cached token so the next Token call requests a
// fresh one.
func (a *Authenticator) Invalidate() {
	if err := a.cache.Delete(); err != nil {
		a.logger.WithError(err).WithField("path", a.cache.Path()).Warn("Failed to discard access token")
	}
}

// cached returns the on-disk token if it is still valid. Unreadable token
// files count as absent.
func (a *Authenticator) cached() *TokenRecord {
	rec, err := a.cache.Load()
	if err != nil {
		a.logger.WithError(err).WithField("path", a.cache.Path()).Warn("Ignoring unreadable token cache")
		return nil
	}
	if !rec.ValidAt(a.now()) {
		return nil
	}
	return rec
}
