// Package tmdb is the metadata provider: title search and full movie details
// from The Movie Database API.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/Clark-Hu/seances/internal/domain"
)

// ErrNotFound is returned when TMDB has no record for the requested id.
var ErrNotFound = errors.New("tmdb: not found")

var errRetryable = errors.New("tmdb: retryable upstream status")

// DefaultBudget bounds one call including every retry and backoff.
const DefaultBudget = 10 * time.Second

// Provider defines the metadata operations used by the resolver.
type Provider interface {
	SearchMovie(ctx context.Context, query string) ([]domain.Candidate, error)
	MovieDetails(ctx context.Context, movieID int64) (*Details, error)
}

// Client implements Provider over the TMDB v3 HTTP API.
type Client struct {
	apiKey   string
	baseURL  string
	language string
	attempts uint
	delay    time.Duration
	budget   time.Duration
	client   *http.Client
	logger   *log.Logger
}

var _ Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithRetry sets the attempt count and initial backoff for 429/5xx responses.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if delay >= 0 {
			c.delay = delay
		}
	}
}

// WithBudget caps the total time one call may spend across retries.
func WithBudget(budget time.Duration) Option {
	return func(c *Client) {
		if budget > 0 {
			c.budget = budget
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a TMDB client.
func New(apiKey, baseURL, language string, timeout time.Duration, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	c := &Client{
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: strings.TrimSpace(language),
		attempts: 3,
		delay:    500 * time.Millisecond,
		budget:   DefaultBudget,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
				MaxIdleConnsPerHost:   8,
			},
		},
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SearchMovie searches TMDB movies by title and returns validated candidates
// in provider order.
func (c *Client) SearchMovie(ctx context.Context, query string) ([]domain.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("query", query)

	var payload searchResponse
	if err := c.get(ctx, "/search/movie", params, &payload); err != nil {
		return nil, err
	}
	return payload.candidates(), nil
}

// MovieDetails fetches the full record for a movie with credits and images appended.
func (c *Client) MovieDetails(ctx context.Context, movieID int64) (*Details, error) {
	if movieID <= 0 {
		return nil, fmt.Errorf("invalid movie id %d", movieID)
	}
	params := url.Values{}
	params.Set("append_to_response", "credits,images")

	var details Details
	if err := c.get(ctx, "/movie/"+strconv.FormatInt(movieID, 10), params, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dst any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()
	return retry.Do(
		func() error {
			return c.do(ctx, endpoint.String(), path, dst)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errRetryable)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Printf("tmdb: retrying %s (attempt %d): %v", path, n+1, err)
		}),
	)
}

func (c *Client) do(ctx context.Context, endpoint, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("decode tmdb response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s returned %d (latency=%v)", errRetryable, path, resp.StatusCode, latency)
	default:
		return fmt.Errorf("tmdb: %s returned %d (latency=%v)", path, resp.StatusCode, latency)
	}
}
