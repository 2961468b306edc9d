package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/seances/internal/domain"
)

// RatingsRepository stores community ratings in PostgreSQL.
type RatingsRepository struct {
	pool *pgxpool.Pool
}

const ratingColumns = `tmdb_id, rating, letterboxd_url, updated_at`

// Get retrieves the cached rating for a movie.
func (r *RatingsRepository) Get(ctx context.Context, movieID int64) (domain.RatingEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM letterboxd_ratings WHERE tmdb_id = $1`, ratingColumns)
	entry, err := scanRating(r.pool.QueryRow(ctx, query, movieID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RatingEntry{}, ErrNotFound
		}
		return domain.RatingEntry{}, err
	}
	return entry, nil
}

// Upsert inserts or replaces the rating for a movie.
func (r *RatingsRepository) Upsert(ctx context.Context, entry domain.RatingEntry) error {
	const query = `
        INSERT INTO letterboxd_ratings (tmdb_id, rating, letterboxd_url, updated_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (tmdb_id)
        DO UPDATE SET rating = EXCLUDED.rating,
                      letterboxd_url = EXCLUDED.letterboxd_url,
                      updated_at = EXCLUDED.updated_at
    `
	if _, err := r.pool.Exec(ctx, query, entry.MovieID, entry.Value, entry.URL, entry.UpdatedAt.Unix()); err != nil {
		return fmt.Errorf("upsert rating %d: %w", entry.MovieID, err)
	}
	return nil
}

// List returns cached ratings, most recently updated first.
func (r *RatingsRepository) List(ctx context.Context, filters RatingListFilters) (RatingListResult, error) {
	limit := clampLimit(filters.Limit)

	where := make([]string, 0, 2)
	args := make([]any, 0, 3)
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.RatedOnly {
		where = append(where, "rating IS NOT NULL")
	}
	if filters.Cursor != nil {
		where = append(where, fmt.Sprintf("(updated_at, tmdb_id) < (%s, %s)",
			arg(filters.Cursor.UpdatedAt), arg(filters.Cursor.MovieID)))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(ratingColumns)
	b.WriteString(" FROM letterboxd_ratings")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY updated_at DESC, tmdb_id DESC")
	b.WriteString(fmt.Sprintf(" LIMIT %d", limit))

	rows, err := r.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return RatingListResult{}, err
	}
	defer rows.Close()

	items := make([]domain.RatingEntry, 0)
	for rows.Next() {
		entry, err := scanRating(rows)
		if err != nil {
			return RatingListResult{}, err
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return RatingListResult{}, err
	}

	next, err := nextCursor(items, limit)
	if err != nil {
		return RatingListResult{}, err
	}
	return RatingListResult{Items: items, NextCursor: next}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRating(row rowScanner) (domain.RatingEntry, error) {
	var (
		entry     domain.RatingEntry
		rating    *float64
		url       *string
		updatedAt int64
	)
	if err := row.Scan(&entry.MovieID, &rating, &url, &updatedAt); err != nil {
		return domain.RatingEntry{}, err
	}
	entry.Value = rating
	entry.URL = url
	entry.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return entry, nil
}
