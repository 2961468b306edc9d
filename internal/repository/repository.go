// Package repository persists community ratings in PostgreSQL or SQLite.
package repository

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/seances/internal/ratingcache"
	"github.com/Clark-Hu/seances/internal/store"
)

// ErrNotFound indicates the requested entity does not exist. It is the
// rating cache sentinel so stores satisfy ratingcache.Store directly.
var ErrNotFound = ratingcache.ErrNotFound

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Repository aggregates the rating repositories for one backend.
type Repository struct {
	Ratings RatingStore
}

// New constructs a Repository backed by the PostgreSQL store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{Ratings: &RatingsRepository{pool: pool}}
}

// NewSQLite constructs a Repository backed by the SQLite store.
func NewSQLite(st *store.SQLite) *Repository {
	return NewWithDB(st.DB())
}

// NewWithDB allows constructing repositories from a database/sql handle.
func NewWithDB(conn *sql.DB) *Repository {
	return &Repository{Ratings: &SQLiteRatingsRepository{db: conn}}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
