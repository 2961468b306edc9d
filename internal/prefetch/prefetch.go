// Package prefetch warms the rating cache for the titles showing on a date.
package prefetch

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/Clark-Hu/seances/internal/domain"
	"github.com/Clark-Hu/seances/internal/letterboxd"
	"github.com/Clark-Hu/seances/internal/ratingcache"
	"github.com/Clark-Hu/seances/internal/showtimes"
)

const (
	DefaultMaxMovies = 80
	DefaultSleep     = 800 * time.Millisecond
)

// TitleSource lists the distinct titles showing on a date.
type TitleSource interface {
	Titles(ctx context.Context, date string) ([]showtimes.TitleRef, error)
}

// Resolver maps a title to its enriched record.
type Resolver interface {
	Resolve(ctx context.Context, rawTitle string, yearHint int) (*domain.EnrichedMovie, error)
}

// RatingFetcher performs a live rating fetch.
type RatingFetcher interface {
	Fetch(ctx context.Context, movieID int64, force bool) letterboxd.Result
}

// Request selects one batch of titles.
type Request struct {
	Date      string
	MaxMovies int
	Offset    int
	Sleep     time.Duration
}

// Report summarises a batch run.
type Report struct {
	Date               string `json:"date"`
	Offset             int    `json:"offset"`
	BatchSize          int    `json:"batch_size"`
	TotalUniqueTitles  int    `json:"total_unique_titles"`
	HasMore            bool   `json:"has_more"`
	ProcessedIDs       int    `json:"processed_tmdb_ids"`
	FromCache          int    `json:"from_cache"`
	Fetched            int    `json:"fetched_letterboxd"`
	BlockedOrMissing   int    `json:"blocked_or_missing"`
	LiveRatingsEnabled bool   `json:"enable_live_letterboxd"`
}

// Runner executes prefetch batches.
type Runner struct {
	titles      TitleSource
	resolver    Resolver
	ratings     *ratingcache.Cache
	fetcher     RatingFetcher
	liveEnabled bool
	logger      *log.Logger
}

// New builds a Runner. liveEnabled is only reported; batches always fetch.
func New(titles TitleSource, resolver Resolver, ratings *ratingcache.Cache, fetcher RatingFetcher, liveEnabled bool, logger *log.Logger) (*Runner, error) {
	if titles == nil || resolver == nil || fetcher == nil {
		return nil, errors.New("prefetch: titles, resolver and fetcher are required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		titles:      titles,
		resolver:    resolver,
		ratings:     ratings,
		fetcher:     fetcher,
		liveEnabled: liveEnabled,
		logger:      logger,
	}, nil
}

// Run resolves the requested slice of titles and force-fetches every rating
// that is not already cached, pacing live fetches by req.Sleep.
func (r *Runner) Run(ctx context.Context, req Request) (Report, error) {
	if req.MaxMovies <= 0 {
		req.MaxMovies = DefaultMaxMovies
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	if req.Sleep < 0 {
		req.Sleep = 0
	}

	titles, err := r.titles.Titles(ctx, req.Date)
	if err != nil {
		return Report{}, err
	}

	start := min(req.Offset, len(titles))
	end := min(start+req.MaxMovies, len(titles))
	batch := titles[start:end]

	report := Report{
		Date:               req.Date,
		Offset:             req.Offset,
		BatchSize:          len(batch),
		TotalUniqueTitles:  len(titles),
		HasMore:            req.Offset+len(batch) < len(titles),
		LiveRatingsEnabled: r.liveEnabled,
	}

	limit := rate.Inf
	if req.Sleep > 0 {
		limit = rate.Every(req.Sleep)
	}
	limiter := rate.NewLimiter(limit, 1)

	for _, t := range batch {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		movie, err := r.resolver.Resolve(ctx, t.Title, t.YearHint)
		if err != nil {
			r.logger.Printf("prefetch: resolve %q failed: %v", t.Title, err)
			continue
		}
		if movie == nil || movie.ExternalID == nil {
			continue
		}
		id := *movie.ExternalID
		report.ProcessedIDs++

		if entry, fresh, ok := r.ratings.Lookup(ctx, id); ok && fresh && entry.Value != nil {
			report.FromCache++
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return report, err
		}
		res := r.fetcher.Fetch(ctx, id, true)
		if res.Rating != nil {
			report.Fetched++
		} else {
			report.BlockedOrMissing++
		}
	}

	r.logger.Printf("prefetch: %s offset=%d batch=%d processed=%d cached=%d fetched=%d missing=%d",
		report.Date, report.Offset, report.BatchSize, report.ProcessedIDs, report.FromCache, report.Fetched, report.BlockedOrMissing)
	return report, nil
}
