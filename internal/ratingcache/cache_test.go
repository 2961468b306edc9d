package ratingcache

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/Clark-Hu/seances/internal/domain"
)

type failingStore struct{}

func (failingStore) Get(ctx context.Context, movieID int64) (domain.RatingEntry, error) {
	return domain.RatingEntry{}, errors.New("disk on fire")
}

func (failingStore) Upsert(ctx context.Context, entry domain.RatingEntry) error {
	return errors.New("disk on fire")
}

func floatPtr(v float64) *float64 { return &v }

func TestCacheRoundTripAndStaleness(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewMemoryStore()
	cache := New(store, 24*time.Hour, log.New(io.Discard, "", 0), WithClock(func() time.Time { return now }))

	cache.Save(context.Background(), 872585, floatPtr(4.2), "https://letterboxd.com/film/oppenheimer-2023/")

	entry, fresh, ok := cache.Lookup(context.Background(), 872585)
	if !ok || !fresh {
		t.Fatalf("Lookup ok=%v fresh=%v, want cached fresh entry", ok, fresh)
	}
	if entry.Value == nil || *entry.Value != 4.2 {
		t.Fatalf("Value = %v, want 4.2", entry.Value)
	}
	if entry.URL == nil || *entry.URL != "https://letterboxd.com/film/oppenheimer-2023/" {
		t.Fatalf("URL = %v", entry.URL)
	}
	if !entry.UpdatedAt.Equal(now) {
		t.Fatalf("UpdatedAt = %v, want %v", entry.UpdatedAt, now)
	}

	now = now.Add(25 * time.Hour)
	entry, fresh, ok = cache.Lookup(context.Background(), 872585)
	if !ok || fresh {
		t.Fatalf("after TTL: ok=%v fresh=%v, want stale entry", ok, fresh)
	}
	if entry.Value == nil || *entry.Value != 4.2 {
		t.Fatalf("stale entry should keep its rating, got %v", entry.Value)
	}
}

func TestCacheSaveNilRating(t *testing.T) {
	store := NewMemoryStore()
	cache := New(store, time.Hour, log.New(io.Discard, "", 0))

	cache.Save(context.Background(), 42, nil, "https://letterboxd.com/tmdb/42")
	entry, fresh, ok := cache.Lookup(context.Background(), 42)
	if !ok || !fresh || entry.Value != nil {
		t.Fatalf("nil rating should be cached as fresh miss marker: %+v fresh=%v ok=%v", entry, fresh, ok)
	}
}

func TestCacheStoreFailuresDegradeToMiss(t *testing.T) {
	cache := New(failingStore{}, time.Hour, log.New(io.Discard, "", 0))
	cache.Save(context.Background(), 1, floatPtr(3), "u")
	if _, _, ok := cache.Lookup(context.Background(), 1); ok {
		t.Fatalf("failing store should report a miss")
	}
}

func TestClampRating(t *testing.T) {
	tests := []struct {
		in   *float64
		want *float64
	}{
		{nil, nil},
		{floatPtr(3.86), floatPtr(3.9)},
		{floatPtr(7.2), floatPtr(5)},
		{floatPtr(-1), floatPtr(0)},
	}
	for _, tt := range tests {
		got := ClampRating(tt.in)
		if (got == nil) != (tt.want == nil) {
			t.Fatalf("ClampRating(%v) = %v, want %v", tt.in, got, tt.want)
		}
		if got != nil && *got != *tt.want {
			t.Fatalf("ClampRating(%v) = %v, want %v", *tt.in, *got, *tt.want)
		}
	}
}
