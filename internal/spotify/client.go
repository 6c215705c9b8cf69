// Package spotify is a small Spotify Web API client for batched artist and
// track lookups with client-credentials tokens.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL is the Spotify Web API root.
	DefaultBaseURL = "https://api.spotify.com/v1"

	// MaxIDsPerRequest is the most ids the batch endpoints accept.
	MaxIDsPerRequest = 50

	// DefaultRetryAfter is used when a 429 response has no usable
	// Retry-After header.
	DefaultRetryAfter = 5 * time.Second

	defaultBatchDelay = 100 * time.Millisecond
	requestTimeout    = 10 * time.Second
	userAgent         = "spotify-listening-stats/1.0"
)

// ErrRateLimited is returned when a batch is still rate limited after its
// one retry.
var ErrRateLimited = errors.New("rate limit exceeded")

// StatusError is a non-2xx API response.
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("spotify API returned %d: %s", e.StatusCode, e.Body)
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

// Client performs batched Spotify Web API lookups.
type Client struct {
	httpClient *http.Client
	baseURL    string
	batchDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	logger     logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithBaseURL overrides the API root, for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithBatchDelay sets the pause between successive batches.
func WithBatchDelay(d time.Duration) Option {
	return func(c *Client) {
		c.batchDelay = d
	}
}

// WithSleeper replaces the function used to wait, for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a Client for the public Spotify Web API.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    DefaultBaseURL,
		batchDelay: defaultBatchDelay,
		sleep:      Sleep,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// fetchBatch requests one batch, retrying exactly once after a 429.
func (c *Client) fetchBatch(ctx context.Context, endpoint string, ids []string, token string, result *BatchResult) ([]byte, error) {
	params := url.Values{"ids": {strings.Join(ids, ",")}}
	reqURL := c.baseURL + endpoint + "?" + params.Encode()

	body, err := c.doSingleRequest(ctx, reqURL, token)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests {
		return body, err
	}

	rateLimited.WithLabelValues(endpoint).Inc()
	result.Retried = true
	result.RetryAfter = se.RetryAfter
	c.logger.WithFields(logrus.Fields{
		"endpoint":    endpoint,
		"batch":       result.Index,
		"retry_after": se.RetryAfter,
	}).Warn("Rate limited, waiting before retry")

	if err := c.sleep(ctx, se.RetryAfter); err != nil {
		return nil, err
	}

	body, err = c.doSingleRequest(ctx, reqURL, token)
	if errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return body, err
}

// doSingleRequest performs a single authorized GET.
func (c *Client) doSingleRequest(ctx context.Context, reqURL, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Body:       strings.TrimSpace(string(body)),
		}
	}

	return body, nil
}

// parseRetryAfter reads a Retry-After value in whole seconds.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return DefaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}
