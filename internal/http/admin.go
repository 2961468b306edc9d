package httpserver

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Clark-Hu/seances/internal/prefetch"
	"github.com/Clark-Hu/seances/internal/repository"
	"github.com/Clark-Hu/seances/internal/showtimes"
)

// maxPrefetchSleep bounds the pause between live fetches of one batch.
const maxPrefetchSleep = 30 * time.Second

var errMissingToken = errors.New("missing admin token")

type ratingResponse struct {
	TMDBID        int64    `json:"tmdb_id"`
	Rating        *float64 `json:"letterboxd_rating"`
	LetterboxdURL *string  `json:"letterboxd_url"`
	UpdatedAt     string   `json:"updated_at"`
}

type ratingListResponse struct {
	Items      []ratingResponse `json:"items"`
	NextCursor *string          `json:"next_cursor,omitempty"`
}

func (s *Server) handlePrefetch(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}

	query := r.URL.Query()
	date, err := s.dateParam(query)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "date must follow YYYY-MM-DD format")
		return
	}
	req, err := buildPrefetchRequest(query)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	req.Date = date

	report, err := s.prefetch.Run(r.Context(), req)
	if err != nil {
		if errors.Is(err, showtimes.ErrInvalidDate) {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "date must follow YYYY-MM-DD format")
			return
		}
		s.logger.Printf("prefetch error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Prefetch batch failed")
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func buildPrefetchRequest(query url.Values) (prefetch.Request, error) {
	req := prefetch.Request{
		MaxMovies: prefetch.DefaultMaxMovies,
		Sleep:     prefetch.DefaultSleep,
	}
	if val := strings.TrimSpace(query.Get("max_movies")); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return req, fmt.Errorf("invalid max_movies value")
		}
		req.MaxMovies = n
	}
	if val := strings.TrimSpace(query.Get("offset")); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return req, fmt.Errorf("invalid offset value")
		}
		req.Offset = max(n, 0)
	}
	if val := strings.TrimSpace(query.Get("sleep")); val != "" {
		secs, err := strconv.ParseFloat(val, 64)
		if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return req, fmt.Errorf("invalid sleep value")
		}
		secs = math.Min(math.Max(secs, 0), maxPrefetchSleep.Seconds())
		req.Sleep = time.Duration(secs * float64(time.Second))
	}
	return req, nil
}

func (s *Server) handleListRatings(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	if s.ratings == nil {
		s.respondError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Rating listing requires a persistent rating store")
		return
	}

	filters, err := buildRatingFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	result, err := s.ratings.List(r.Context(), filters)
	if err != nil {
		s.logger.Printf("list ratings error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list ratings")
		return
	}

	items := make([]ratingResponse, 0, len(result.Items))
	for _, e := range result.Items {
		items = append(items, ratingResponse{
			TMDBID:        e.MovieID,
			Rating:        e.Value,
			LetterboxdURL: e.URL,
			UpdatedAt:     e.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	s.respondJSON(w, http.StatusOK, ratingListResponse{Items: items, NextCursor: result.NextCursor})
}

func buildRatingFilters(query url.Values) (repository.RatingListFilters, error) {
	var filters repository.RatingListFilters
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid limit value")
		}
		filters.Limit = limit
	}
	if val := strings.TrimSpace(query.Get("rated")); val != "" {
		rated, err := strconv.ParseBool(val)
		if err != nil {
			return filters, fmt.Errorf("invalid rated value")
		}
		filters.RatedOnly = rated
	}
	if val := strings.TrimSpace(query.Get("cursor")); val != "" {
		cursor, err := repository.DecodeCursor(val)
		if err != nil {
			return filters, fmt.Errorf("invalid cursor")
		}
		filters.Cursor = cursor
	}
	return filters, nil
}

// authorize checks the admin token and writes the error response when it
// does not match. An unconfigured token rejects every request.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	err := s.verifyToken(r)
	switch {
	case err == nil:
		return true
	case errors.Is(err, errMissingToken):
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing admin token")
	default:
		s.respondError(w, http.StatusForbidden, "FORBIDDEN", "Invalid admin token")
	}
	return false
}

func (s *Server) verifyToken(r *http.Request) error {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = bearerToken(r.Header.Get("Authorization"))
	}
	if token == "" {
		return errMissingToken
	}
	expected := s.cfg.PrefetchToken
	if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return errors.New("invalid admin token")
	}
	return nil
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
