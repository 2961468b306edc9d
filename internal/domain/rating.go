package domain

import "time"

// RatingEntry is a cached community rating for a canonical movie id.
// A nil Value records an attempt that produced no rating.
type RatingEntry struct {
	MovieID   int64
	Value     *float64
	URL       *string
	UpdatedAt time.Time
}

// Stale reports whether the entry is older than ttl at now.
func (e RatingEntry) Stale(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.UpdatedAt) > ttl
}
