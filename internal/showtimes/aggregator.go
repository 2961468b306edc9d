// Package showtimes aggregates enriched per-venue listings for a date.
package showtimes

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/Clark-Hu/seances/internal/allocine"
	"github.com/Clark-Hu/seances/internal/domain"
	"github.com/Clark-Hu/seances/internal/titlematch"
)

const (
	// DateLayout is the date key format.
	DateLayout     = "2006-01-02"
	DefaultWorkers = 6
)

// ErrInvalidDate is returned for date keys that are not YYYY-MM-DD.
var ErrInvalidDate = errors.New("showtimes: invalid date, expected YYYY-MM-DD")

// Result maps venue names to their enriched movies.
type Result map[string][]domain.EnrichedMovie

// Resolver enriches a raw title. A nil movie means no confident match.
type Resolver interface {
	Resolve(ctx context.Context, rawTitle string, yearHint int) (*domain.EnrichedMovie, error)
}

// TitleRef is one distinct title found in the listings of a date.
type TitleRef struct {
	Title    string
	YearHint int
}

// Options tunes the aggregator.
type Options struct {
	Workers  int
	Location *time.Location
	Clock    func() time.Time
}

// Aggregator fans listings fetches out across venues and enriches titles.
type Aggregator struct {
	venues   []domain.Venue
	listings allocine.Provider
	resolver Resolver
	cache    ResponseCache
	workers  int
	loc      *time.Location
	now      func() time.Time
	logger   *log.Logger
}

// New builds an Aggregator. cache may be nil to disable response caching.
func New(venues []domain.Venue, listings allocine.Provider, resolver Resolver, cache ResponseCache, opts Options, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Aggregator{
		venues:   append([]domain.Venue(nil), venues...),
		listings: listings,
		resolver: resolver,
		cache:    cache,
		workers:  opts.Workers,
		loc:      opts.Location,
		now:      opts.Clock,
		logger:   logger,
	}
}

// ParseDate validates a YYYY-MM-DD key.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t, nil
}

// Today returns the current date key in the configured timezone.
func (a *Aggregator) Today() string {
	return a.now().In(a.loc).Format(DateLayout)
}

// Venues returns the configured venues in table order.
func (a *Aggregator) Venues() []domain.Venue {
	return append([]domain.Venue(nil), a.venues...)
}

// VenueByName finds a configured venue by exact name.
func (a *Aggregator) VenueByName(name string) (domain.Venue, bool) {
	for _, v := range a.venues {
		if v.Name == name {
			return v, true
		}
	}
	return domain.Venue{}, false
}

// Aggregate returns every venue's enriched movies for date. Venue failures
// yield an empty list for that venue; only an invalid date is an error.
// The fan-out runs to completion even if ctx is cancelled, so a dropped
// caller never leaves a partial result in the response cache.
func (a *Aggregator) Aggregate(ctx context.Context, date string) (Result, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)
	if a.cache != nil {
		if cached, ok := a.cache.Get(ctx, date); ok {
			return cached, nil
		}
	}

	start := a.now()
	lists := make([][]domain.EnrichedMovie, len(a.venues))
	p := pool.New().WithMaxGoroutines(a.workers)
	for i, venue := range a.venues {
		p.Go(func() {
			defer func() {
				if rec := recover(); rec != nil {
					a.logger.Printf("showtimes: venue %s panicked: %v", venue.Name, rec)
					lists[i] = []domain.EnrichedMovie{}
				}
			}()
			lists[i] = a.Venue(ctx, venue, date)
		})
	}
	p.Wait()

	result := make(Result, len(a.venues))
	for i, venue := range a.venues {
		movies := lists[i]
		if movies == nil {
			movies = []domain.EnrichedMovie{}
		}
		result[venue.Name] = movies
	}
	a.logger.Printf("showtimes: aggregated %d venues for %s in %s", len(a.venues), date, a.now().Sub(start).Round(time.Millisecond))

	if a.cache != nil {
		a.cache.Set(ctx, date, result)
	}
	return result, nil
}

// Venue fetches and enriches the listings of one venue. It never fails:
// upstream errors produce an empty list.
func (a *Aggregator) Venue(ctx context.Context, venue domain.Venue, date string) []domain.EnrichedMovie {
	listings := a.fetch(ctx, venue, date)
	groups := groupListings(listings)

	movies := make([]domain.EnrichedMovie, 0, len(groups))
	for _, g := range groups {
		if len(g.starts) == 0 {
			continue
		}
		movie := a.enrich(ctx, g)
		if len(movie.Sessions) == 0 {
			continue
		}
		movies = append(movies, movie)
	}
	return movies
}

func (a *Aggregator) fetch(ctx context.Context, venue domain.Venue, date string) []domain.RawListing {
	listings, err := a.listings.FetchListings(ctx, venue.ID, date)
	if err == nil && (len(listings) > 0 || date != a.Today()) {
		return listings
	}
	if err != nil {
		a.logger.Printf("showtimes: json listings for %s (%s) unavailable: %v", venue.Name, venue.ID, err)
	}
	if date != a.Today() {
		return nil
	}

	html, err := a.listings.FetchListingsHTML(ctx, venue.ID)
	if err != nil {
		a.logger.Printf("showtimes: html listings for %s (%s) failed: %v", venue.Name, venue.ID, err)
		return nil
	}
	return html
}

func (a *Aggregator) enrich(ctx context.Context, g listingGroup) domain.EnrichedMovie {
	var movie domain.EnrichedMovie
	resolved, err := a.resolver.Resolve(ctx, g.title, g.yearHint)
	switch {
	case err != nil:
		a.logger.Printf("showtimes: resolve %q failed: %v", g.title, err)
		movie = domain.UnknownMovie(g.title)
	case resolved == nil:
		movie = domain.UnknownMovie(g.title)
	default:
		movie = *resolved
		movie.Title = g.title
	}
	movie.Sessions = buildSessions(g.starts, movie.ScreeningMinutes())
	return movie
}

// Titles lists the distinct titles of the JSON listings for date across all
// venues, deduplicated by normalized key in first-seen order.
func (a *Aggregator) Titles(ctx context.Context, date string) ([]TitleRef, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []TitleRef
	for _, venue := range a.venues {
		listings, err := a.listings.FetchListings(ctx, venue.ID, date)
		if err != nil {
			a.logger.Printf("showtimes: titles for %s (%s) unavailable: %v", venue.Name, venue.ID, err)
			continue
		}
		for _, l := range listings {
			key := titlematch.Normalize(l.Title)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, TitleRef{Title: l.Title, YearHint: l.YearHint})
		}
	}
	return out, nil
}

type listingGroup struct {
	title    string
	yearHint int
	starts   []string
}

// groupListings merges listings with the exact same raw title, keeping the
// first non-zero year hint and encounter order.
func groupListings(listings []domain.RawListing) []listingGroup {
	index := make(map[string]int)
	var groups []listingGroup
	for _, l := range listings {
		i, ok := index[l.Title]
		if !ok {
			i = len(groups)
			index[l.Title] = i
			groups = append(groups, listingGroup{title: l.Title})
		}
		if groups[i].yearHint == 0 {
			groups[i].yearHint = l.YearHint
		}
		groups[i].starts = append(groups[i].starts, l.StartTimes...)
	}
	return groups
}

// buildSessions parses HH:MM starts, drops invalid and duplicate ones and
// returns sessions sorted by start with end = start + minutes.
func buildSessions(starts []string, minutes int) []domain.Session {
	seen := make(map[string]struct{}, len(starts))
	sessions := make([]domain.Session, 0, len(starts))
	for _, s := range starts {
		t, err := time.Parse("15:04", s)
		if err != nil {
			continue
		}
		start := t.Format("15:04")
		if _, dup := seen[start]; dup {
			continue
		}
		seen[start] = struct{}{}
		sessions = append(sessions, domain.Session{
			Start: start,
			End:   t.Add(time.Duration(minutes) * time.Minute).Format("15:04"),
		})
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Start < sessions[j].Start })
	return sessions
}
