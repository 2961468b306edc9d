// Package allocine fetches raw showtime listings for a venue, from the
// paginated JSON endpoint or, as a fallback, the venue HTML page.
package allocine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Clark-Hu/seances/internal/domain"
)

const (
	// DefaultBaseURL is the public listings site.
	DefaultBaseURL = "https://www.allocine.fr"
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	maxPages       = 20
)

// ErrNoListings is returned when a venue page carries no movie cards at all.
var ErrNoListings = errors.New("allocine: no listings found")

// Provider is the listings capability the aggregator depends on.
type Provider interface {
	FetchListings(ctx context.Context, venueID, date string) ([]domain.RawListing, error)
	FetchListingsHTML(ctx context.Context, venueID string) ([]domain.RawListing, error)
}

// Client talks to the listings site.
type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  *log.Logger
}

var _ Provider = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for JSON requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// New constructs a Client.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse allocine base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout, Transport: transport},
		timeout: timeout,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchListings walks every page of the JSON showtimes endpoint for venueID
// on date (YYYY-MM-DD). Titles keep their first-seen order; start times are
// "HH:MM", distinct and ascending. Titles without a parseable start are
// dropped.
func (c *Client) FetchListings(ctx context.Context, venueID, date string) ([]domain.RawListing, error) {
	acc := newAccumulator(venueID)
	totalPages := 1
	for page := 1; page <= totalPages && page <= maxPages; page++ {
		var payload showtimesPage
		if err := c.getJSON(ctx, fmt.Sprintf("/_/showtimes/theater-%s/d-%s/p-%d", url.PathEscape(venueID), url.PathEscape(date), page), &payload); err != nil {
			return nil, fmt.Errorf("listings %s page %d: %w", venueID, page, err)
		}
		if int(payload.Pagination.TotalPages) > totalPages {
			totalPages = int(payload.Pagination.TotalPages)
		}
		for _, result := range payload.Results {
			title := strings.TrimSpace(result.Movie.Title)
			if title == "" {
				title = domain.UnknownTitle
			}
			for _, group := range result.Showtimes {
				for _, st := range group {
					if hhmm, ok := clockFromTimestamp(st.StartsAt); ok {
						acc.add(title, hhmm, int(result.Movie.ProductionYear))
					}
				}
			}
		}
	}
	if totalPages > maxPages {
		c.logger.Printf("allocine: venue %s reports %d pages, read the first %d", venueID, totalPages, maxPages)
	}
	return acc.listings(), nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// clockFromTimestamp extracts the wall-clock "HH:MM" of an ISO timestamp.
func clockFromTimestamp(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("15:04"), true
		}
	}
	return "", false
}
