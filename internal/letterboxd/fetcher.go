package letterboxd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Clark-Hu/seances/internal/ratingcache"
)

const (
	// DefaultBaseURL is where film pages are addressed by external id.
	DefaultBaseURL = "https://letterboxd.com"
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	maxPageBytes   = 2 << 20
)

// Outcome classifies a single fetch for reporting.
type Outcome int

const (
	// OutcomeCached means a fresh cache entry answered without a request.
	OutcomeCached Outcome = iota
	// OutcomeFetched means the film page was fetched and carried a rating.
	OutcomeFetched
	// OutcomeMissing means no rating could be read, including failed requests.
	OutcomeMissing
	// OutcomeBlocked means the breaker was open or the site denied access.
	OutcomeBlocked
)

// Result is the outcome of Fetch.
type Result struct {
	Rating  *float64
	URL     string
	Outcome Outcome
}

// Fetcher retrieves community ratings, persisting outcomes in the rating
// cache and honouring the shared breaker.
type Fetcher struct {
	baseURL string
	client  *http.Client
	cache   *ratingcache.Cache
	breaker *Breaker
	logger  *log.Logger
	now     func() time.Time
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client used for page requests.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		if now != nil {
			f.now = now
		}
	}
}

// New constructs a Fetcher.
func New(baseURL string, timeout time.Duration, cache *ratingcache.Cache, breaker *Breaker, logger *log.Logger, opts ...Option) (*Fetcher, error) {
	if cache == nil {
		return nil, errors.New("letterboxd: rating cache is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	if breaker == nil {
		breaker = NewBreaker(DefaultCooldown, logger)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       60 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	f := &Fetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout, Transport: transport},
		cache:   cache,
		breaker: breaker,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// CanonicalURL returns the page address for an external movie id.
func CanonicalURL(baseURL string, id int64) string {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return strings.TrimRight(baseURL, "/") + "/tmdb/" + strconv.FormatInt(id, 10)
}

// Breaker exposes the shared breaker.
func (f *Fetcher) Breaker() *Breaker { return f.breaker }

// Fetch returns the rating for id. A fresh cache entry is served without a
// network call unless force is set. Denials trip the breaker and are never
// persisted; every other completed attempt is written to the cache.
func (f *Fetcher) Fetch(ctx context.Context, id int64, force bool) Result {
	canonical := CanonicalURL(f.baseURL, id)

	if !force {
		if entry, fresh, ok := f.cache.Lookup(ctx, id); ok && fresh {
			return Result{Rating: entry.Value, URL: urlOr(entry.URL, canonical), Outcome: OutcomeCached}
		}
	}

	if f.breaker.Open(f.now()) {
		return Result{URL: canonical, Outcome: OutcomeBlocked}
	}

	page, finalURL, status, err := f.get(ctx, canonical)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return Result{URL: canonical, Outcome: OutcomeMissing}
		}
		f.logger.Printf("letterboxd: fetch tmdb %d failed: %v", id, err)
		f.cache.Save(ctx, id, nil, canonical)
		return Result{URL: canonical, Outcome: OutcomeMissing}
	case status == http.StatusForbidden:
		f.breaker.Trip(f.now())
		return Result{URL: canonical, Outcome: OutcomeBlocked}
	case status == http.StatusNotFound:
		f.cache.Save(ctx, id, nil, canonical)
		return Result{URL: canonical, Outcome: OutcomeMissing}
	case status < 200 || status > 299:
		f.logger.Printf("letterboxd: fetch tmdb %d: unexpected status %d", id, status)
		f.cache.Save(ctx, id, nil, canonical)
		return Result{URL: canonical, Outcome: OutcomeMissing}
	}

	if finalURL == "" {
		finalURL = canonical
	}
	value, ok := ExtractRating(page)
	if !ok {
		f.cache.Save(ctx, id, nil, finalURL)
		return Result{URL: finalURL, Outcome: OutcomeMissing}
	}
	rating := ratingcache.ClampRating(&value)
	f.cache.Save(ctx, id, rating, finalURL)
	return Result{Rating: rating, URL: finalURL, Outcome: OutcomeFetched}
}

func (f *Fetcher) get(ctx context.Context, target string) (string, string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", "", 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", f.baseURL+"/")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", 0, err
	}
	defer resp.Body.Close()

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageBytes))
		return "", finalURL, resp.StatusCode, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", finalURL, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return string(body), finalURL, resp.StatusCode, nil
}

func urlOr(u *string, fallback string) string {
	if u != nil && *u != "" {
		return *u
	}
	return fallback
}
