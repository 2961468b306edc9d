package ratingcache

import (
	"context"
	"sync"

	"github.com/Clark-Hu/seances/internal/domain"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[int64]domain.RatingEntry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[int64]domain.RatingEntry)}
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, movieID int64) (domain.RatingEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[movieID]
	if !ok {
		return domain.RatingEntry{}, ErrNotFound
	}
	return entry, nil
}

// Upsert implements Store.
func (m *MemoryStore) Upsert(ctx context.Context, entry domain.RatingEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.MovieID] = entry
	return nil
}

// Len reports the number of cached entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
