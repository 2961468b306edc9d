package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Clark-Hu/seances/internal/domain"
)

// SQLiteRatingsRepository stores community ratings in a SQLite file.
type SQLiteRatingsRepository struct {
	db *sql.DB
}

// Get retrieves the cached rating for a movie.
func (r *SQLiteRatingsRepository) Get(ctx context.Context, movieID int64) (domain.RatingEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM letterboxd_ratings WHERE tmdb_id = ?`, ratingColumns)
	entry, err := scanRating(r.db.QueryRowContext(ctx, query, movieID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RatingEntry{}, ErrNotFound
		}
		return domain.RatingEntry{}, err
	}
	return entry, nil
}

// Upsert inserts or replaces the rating for a movie.
func (r *SQLiteRatingsRepository) Upsert(ctx context.Context, entry domain.RatingEntry) error {
	const query = `
        INSERT INTO letterboxd_ratings (tmdb_id, rating, letterboxd_url, updated_at)
        VALUES (?,?,?,?)
        ON CONFLICT (tmdb_id)
        DO UPDATE SET rating = excluded.rating,
                      letterboxd_url = excluded.letterboxd_url,
                      updated_at = excluded.updated_at
    `
	if _, err := r.db.ExecContext(ctx, query, entry.MovieID, nullFloat(entry.Value), nullString(entry.URL), entry.UpdatedAt.Unix()); err != nil {
		return fmt.Errorf("upsert rating %d: %w", entry.MovieID, err)
	}
	return nil
}

// List returns cached ratings, most recently updated first.
func (r *SQLiteRatingsRepository) List(ctx context.Context, filters RatingListFilters) (RatingListResult, error) {
	limit := clampLimit(filters.Limit)

	where := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if filters.RatedOnly {
		where = append(where, "rating IS NOT NULL")
	}
	if filters.Cursor != nil {
		where = append(where, "(updated_at < ? OR (updated_at = ? AND tmdb_id < ?))")
		args = append(args, filters.Cursor.UpdatedAt, filters.Cursor.UpdatedAt, filters.Cursor.MovieID)
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

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
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

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
