// Package resolver turns a scraped title into an enriched movie record by
// searching the metadata provider, scoring candidates and attaching ratings.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Clark-Hu/seances/internal/domain"
	"github.com/Clark-Hu/seances/internal/letterboxd"
	"github.com/Clark-Hu/seances/internal/ratingcache"
	"github.com/Clark-Hu/seances/internal/titlematch"
	"github.com/Clark-Hu/seances/internal/tmdb"
)

const (
	// DefaultPosterBaseURL prefixes poster file paths.
	DefaultPosterBaseURL = "https://image.tmdb.org/t/p/w500"
	DefaultMemoSize      = 512
	maxActors            = 5
	maxGenres            = 2
)

// RatingFetcher performs a live community-rating lookup.
type RatingFetcher interface {
	Fetch(ctx context.Context, movieID int64, force bool) letterboxd.Result
}

// Options tunes enrichment.
type Options struct {
	LiveRatings   bool
	RatingBaseURL string
	PosterBaseURL string
	MemoSize      int
}

type memoKey struct {
	title string
	year  int
}

// Resolver resolves raw titles. Safe for concurrent use.
type Resolver struct {
	provider tmdb.Provider
	scorer   *titlematch.Scorer
	ratings  *ratingcache.Cache
	fetcher  RatingFetcher
	opts     Options
	memo     *lru.Cache[memoKey, *domain.EnrichedMovie]
	group    singleflight.Group
	logger   *log.Logger
}

// New wires a Resolver. fetcher may be nil when live ratings are disabled.
func New(provider tmdb.Provider, scorer *titlematch.Scorer, ratings *ratingcache.Cache, fetcher RatingFetcher, opts Options, logger *log.Logger) (*Resolver, error) {
	if provider == nil {
		return nil, errors.New("resolver: metadata provider is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	if scorer == nil {
		scorer = titlematch.NewScorer(titlematch.DefaultThresholds(), logger)
	}
	if opts.PosterBaseURL == "" {
		opts.PosterBaseURL = DefaultPosterBaseURL
	}
	if opts.RatingBaseURL == "" {
		opts.RatingBaseURL = letterboxd.DefaultBaseURL
	}
	if opts.MemoSize <= 0 {
		opts.MemoSize = DefaultMemoSize
	}
	memo, err := lru.New[memoKey, *domain.EnrichedMovie](opts.MemoSize)
	if err != nil {
		return nil, fmt.Errorf("resolver: create memo: %w", err)
	}
	return &Resolver{
		provider: provider,
		scorer:   scorer,
		ratings:  ratings,
		fetcher:  fetcher,
		opts:     opts,
		memo:     memo,
		logger:   logger,
	}, nil
}

// Resolve returns the enriched record for rawTitle, or nil when no
// candidate is confident enough. Errors come from the metadata provider and
// are not memoized; every other outcome is cached for the process lifetime.
func (r *Resolver) Resolve(ctx context.Context, rawTitle string, yearHint int) (*domain.EnrichedMovie, error) {
	key := memoKey{title: rawTitle, year: yearHint}
	if movie, ok := r.memo.Get(key); ok {
		return clone(movie), nil
	}

	// The shared lookup outlives any single caller; each caller only stops
	// waiting when its own ctx ends.
	flightCtx := context.WithoutCancel(ctx)
	flightKey := strconv.Itoa(yearHint) + "|" + rawTitle
	ch := r.group.DoChan(flightKey, func() (any, error) {
		if movie, ok := r.memo.Get(key); ok {
			return movie, nil
		}
		movie, err := r.resolve(flightCtx, rawTitle, yearHint)
		if err != nil {
			return nil, err
		}
		r.memo.Add(key, movie)
		return movie, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		movie, _ := res.Val.(*domain.EnrichedMovie)
		return clone(movie), nil
	}
}

// Candidates exposes the scored search results for a title, for diagnostics.
func (r *Resolver) Candidates(ctx context.Context, rawTitle string, yearHint int) (string, []titlematch.Scored, error) {
	query := titlematch.NormalizeForSearch(rawTitle)
	if query == "" {
		return query, nil, nil
	}
	candidates, err := r.provider.SearchMovie(ctx, query)
	if err != nil {
		return query, nil, err
	}
	return query, r.scorer.Rank(candidates, query, yearHint), nil
}

func (r *Resolver) resolve(ctx context.Context, rawTitle string, yearHint int) (*domain.EnrichedMovie, error) {
	query := titlematch.NormalizeForSearch(rawTitle)
	if query == "" {
		return nil, nil
	}

	candidates, err := r.provider.SearchMovie(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if len(candidates) == 0 {
		r.logger.Printf("resolver: no search results for %q", query)
		return nil, nil
	}

	best, score, ok := r.scorer.PickBest(candidates, query, yearHint)
	if !ok {
		return nil, nil
	}

	details, err := r.provider.MovieDetails(ctx, best.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("details %d: %w", best.ExternalID, err)
	}
	r.logger.Printf("resolver: %q -> tmdb %d %q (score %.2f)", rawTitle, best.ExternalID, details.Title, score)

	movie := r.shape(rawTitle, details)
	r.attachRating(ctx, &movie)
	return &movie, nil
}

func (r *Resolver) shape(rawTitle string, d *tmdb.Details) domain.EnrichedMovie {
	id := d.ID
	title := d.Title
	if title == "" {
		title = rawTitle
	}

	movie := domain.EnrichedMovie{
		ExternalID:      &id,
		Title:           title,
		Director:        director(d.Credits.Crew),
		Duration:        DurationLabel(d.Runtime),
		DurationMinutes: max(d.Runtime, 0),
		Sessions:        []domain.Session{},
		Actors:          make([]string, 0, maxActors),
		ReleaseDate:     d.ReleaseDate,
		Overview:        d.Overview,
		VoteAverage:     d.VoteAverage,
		Genres:          make([]string, 0, maxGenres),
	}
	for _, c := range d.Credits.Cast {
		if len(movie.Actors) == maxActors {
			break
		}
		movie.Actors = append(movie.Actors, c.Name)
	}
	for _, g := range d.Genres {
		if len(movie.Genres) == maxGenres {
			break
		}
		movie.Genres = append(movie.Genres, g.Name)
	}
	if path := PosterPath(d); path != "" {
		u := r.opts.PosterBaseURL + path
		movie.PosterURL = &u
	}
	return movie
}

func (r *Resolver) attachRating(ctx context.Context, movie *domain.EnrichedMovie) {
	id := *movie.ExternalID

	var (
		value *float64
		url   string
	)
	if entry, fresh, ok := r.ratings.Lookup(ctx, id); ok {
		if entry.URL != nil {
			url = *entry.URL
		}
		if fresh {
			value = entry.Value
		}
	}

	if value == nil && r.opts.LiveRatings && r.fetcher != nil {
		res := r.fetcher.Fetch(ctx, id, false)
		value = res.Rating
		if res.URL != "" && (url == "" || res.Outcome != letterboxd.OutcomeBlocked) {
			url = res.URL
		}
	}
	if url == "" {
		url = letterboxd.CanonicalURL(r.opts.RatingBaseURL, id)
	}

	movie.RatingValue = value
	movie.RatingURL = &url
}

// DurationLabel formats minutes as "XhMM".
func DurationLabel(minutes int) string {
	if minutes <= 0 {
		return domain.UnknownDuration
	}
	return fmt.Sprintf("%dh%02d", minutes/60, minutes%60)
}

func director(crew []tmdb.CrewMember) string {
	for _, c := range crew {
		if c.Job == "Director" && c.Name != "" {
			return c.Name
		}
	}
	return domain.UnknownDirector
}

// PosterPath picks the poster in order: original language, French, English,
// large untagged artwork, then the default poster.
func PosterPath(d *tmdb.Details) string {
	posters := d.Images.Posters
	byLanguage := func(lang string) string {
		if lang == "" {
			return ""
		}
		for _, p := range posters {
			if p.Language != nil && *p.Language == lang && p.FilePath != "" {
				return p.FilePath
			}
		}
		return ""
	}
	for _, lang := range []string{d.OriginalLanguage, "fr", "en"} {
		if path := byLanguage(lang); path != "" {
			return path
		}
	}
	for _, p := range posters {
		if p.Language == nil && p.Width >= 300 && p.Height >= 450 && p.FilePath != "" {
			return p.FilePath
		}
	}
	return d.PosterPath
}

func clone(m *domain.EnrichedMovie) *domain.EnrichedMovie {
	if m == nil {
		return nil
	}
	out := *m
	out.Sessions = append([]domain.Session{}, m.Sessions...)
	out.Actors = append([]string{}, m.Actors...)
	out.Genres = append([]string{}, m.Genres...)
	if m.ExternalID != nil {
		id := *m.ExternalID
		out.ExternalID = &id
	}
	if m.PosterURL != nil {
		u := *m.PosterURL
		out.PosterURL = &u
	}
	if m.RatingValue != nil {
		v := *m.RatingValue
		out.RatingValue = &v
	}
	if m.RatingURL != nil {
		u := *m.RatingURL
		out.RatingURL = &u
	}
	return &out
}
