package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/Clark-Hu/seances/internal/domain"
	"github.com/Clark-Hu/seances/internal/ratingcache"
)

// RatingStore is a rating cache store that can also page through entries.
type RatingStore interface {
	ratingcache.Store
	List(ctx context.Context, filters RatingListFilters) (RatingListResult, error)
}

// RatingListFilters encapsulates pagination options.
type RatingListFilters struct {
	Limit     int
	RatedOnly bool
	Cursor    *RatingCursor
}

// RatingCursor allows stable pagination by updated_at/tmdb_id.
type RatingCursor struct {
	UpdatedAt int64 `json:"updatedAt"`
	MovieID   int64 `json:"tmdbId"`
}

// RatingListResult returns the paginated payload.
type RatingListResult struct {
	Items      []domain.RatingEntry
	NextCursor *string
}

func nextCursor(items []domain.RatingEntry, limit int) (*string, error) {
	if len(items) != limit || limit == 0 {
		return nil, nil
	}
	last := items[len(items)-1]
	token, err := encodeCursor(RatingCursor{UpdatedAt: last.UpdatedAt.Unix(), MovieID: last.MovieID})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func encodeCursor(c RatingCursor) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(payload), nil
}

// DecodeCursor parses a cursor token into a RatingCursor.
func DecodeCursor(token string) (*RatingCursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var cursor RatingCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	return &cursor, nil
}
