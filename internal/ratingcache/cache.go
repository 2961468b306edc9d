// Package ratingcache provides staleness-aware access to persisted community
// ratings keyed by canonical movie id.
package ratingcache

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/Clark-Hu/seances/internal/domain"
)

// ErrNotFound is returned by stores when no entry exists for a movie id.
var ErrNotFound = errors.New("ratingcache: not found")

// DefaultTTL is the age after which a cached rating becomes retry-eligible.
const DefaultTTL = 24 * time.Hour

// Store is the durable key-value capability behind the cache.
type Store interface {
	Get(ctx context.Context, movieID int64) (domain.RatingEntry, error)
	Upsert(ctx context.Context, entry domain.RatingEntry) error
}

// Cache wraps a Store with TTL semantics. Store failures are logged and
// reported as misses.
type Cache struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *log.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a cache over store.
func New(store Store, ttl time.Duration, logger *log.Logger, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.Default()
	}
	c := &Cache{store: store, ttl: ttl, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the staleness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Lookup returns the cached entry for movieID. ok is false when nothing is
// cached; fresh is false once the entry is older than the TTL.
func (c *Cache) Lookup(ctx context.Context, movieID int64) (entry domain.RatingEntry, fresh bool, ok bool) {
	if c == nil || c.store == nil || movieID <= 0 {
		return domain.RatingEntry{}, false, false
	}
	entry, err := c.store.Get(ctx, movieID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Printf("ratingcache: get %d failed: %v", movieID, err)
		}
		return domain.RatingEntry{}, false, false
	}
	return entry, !entry.Stale(c.now(), c.ttl), true
}

// Save records a rating attempt with the current timestamp. A nil value
// throttles retries until the entry goes stale.
func (c *Cache) Save(ctx context.Context, movieID int64, value *float64, url string) {
	if c == nil || c.store == nil || movieID <= 0 {
		return
	}
	entry := domain.RatingEntry{
		MovieID:   movieID,
		Value:     ClampRating(value),
		UpdatedAt: c.now().Truncate(time.Second),
	}
	if url != "" {
		entry.URL = &url
	}
	if err := c.store.Upsert(ctx, entry); err != nil {
		c.logger.Printf("ratingcache: upsert %d failed: %v", movieID, err)
	}
}

// ClampRating bounds a rating to [0, 5] rounded to one decimal.
func ClampRating(value *float64) *float64 {
	if value == nil || math.IsNaN(*value) {
		return nil
	}
	v := math.Round(*value*10) / 10
	v = math.Max(0, math.Min(5, v))
	return &v
}
