package showtimes

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Clark-Hu/seances/internal/domain"
)

type fakeListings struct {
	mu        sync.Mutex
	json      map[string][]domain.RawListing
	jsonErr   map[string]error
	html      map[string][]domain.RawListing
	jsonCalls atomic.Int32
	htmlCalls atomic.Int32
}

func (f *fakeListings) FetchListings(ctx context.Context, venueID, _ string) ([]domain.RawListing, error) {
	f.jsonCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.jsonErr[venueID]; err != nil {
		return nil, err
	}
	return f.json[venueID], nil
}

func (f *fakeListings) FetchListingsHTML(ctx context.Context, venueID string) ([]domain.RawListing, error) {
	f.htmlCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.html[venueID], nil
}

type fakeResolver struct {
	movies map[string]*domain.EnrichedMovie
	panics map[string]bool
	calls  atomic.Int32
}

func (f *fakeResolver) Resolve(_ context.Context, rawTitle string, _ int) (*domain.EnrichedMovie, error) {
	f.calls.Add(1)
	if f.panics[rawTitle] {
		panic("resolver exploded")
	}
	if m, ok := f.movies[rawTitle]; ok {
		cp := *m
		return &cp, nil
	}
	if rawTitle == "Erreur" {
		return nil, errors.New("metadata provider down")
	}
	return nil, nil
}

var testVenues = []domain.Venue{
	{Name: "Le Champo", ID: "C0073"},
	{Name: "Reflet Médicis", ID: "C0074"},
	{Name: "Le Grand Action", ID: "C0072"},
}

var fixedNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func newAggregator(listings *fakeListings, resolver Resolver, cache ResponseCache) *Aggregator {
	return New(testVenues, listings, resolver, cache, Options{
		Workers:  2,
		Location: time.UTC,
		Clock:    func() time.Time { return fixedNow },
	}, log.New(io.Discard, "", 0))
}

func oppenheimer() *domain.EnrichedMovie {
	id := int64(872585)
	return &domain.EnrichedMovie{
		ExternalID:      &id,
		Title:           "Oppenheimer",
		Director:        "Christopher Nolan",
		Duration:        "3h00",
		DurationMinutes: 180,
		Sessions:        []domain.Session{},
		Actors:          []string{"Cillian Murphy"},
		Genres:          []string{"Drame"},
	}
}

func TestAggregateEndToEnd(t *testing.T) {
	listings := &fakeListings{
		json: map[string][]domain.RawListing{
			"C0073": {{VenueID: "C0073", Title: "Oppenheimer", StartTimes: []string{"20:00"}}},
		},
		jsonErr: map[string]error{"C0074": errors.New("connection reset")},
	}
	resolver := &fakeResolver{movies: map[string]*domain.EnrichedMovie{"Oppenheimer": oppenheimer()}}
	agg := newAggregator(listings, resolver, nil)

	result, err := agg.Aggregate(context.Background(), "2025-03-20")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(result) != len(testVenues) {
		t.Fatalf("expected every venue in the result, got %d", len(result))
	}

	champo := result["Le Champo"]
	if len(champo) != 1 {
		t.Fatalf("expected one movie at Le Champo, got %d", len(champo))
	}
	movie := champo[0]
	if movie.Duration != "3h00" {
		t.Fatalf("duration = %q", movie.Duration)
	}
	if len(movie.Sessions) != 1 || movie.Sessions[0] != (domain.Session{Start: "20:00", End: "23:00"}) {
		t.Fatalf("sessions = %+v", movie.Sessions)
	}

	reflet, ok := result["Reflet Médicis"]
	if !ok || reflet == nil || len(reflet) != 0 {
		t.Fatalf("failing venue must map to an empty list, got %v (present=%v)", reflet, ok)
	}
	if listings.htmlCalls.Load() != 0 {
		t.Fatalf("html fallback must not run for a date other than today")
	}
}

func TestAggregateGroupsAndDefaultsUnresolved(t *testing.T) {
	listings := &fakeListings{
		json: map[string][]domain.RawListing{
			"C0073": {
				{Title: "La Chimera", StartTimes: []string{"21:00", "14:00"}, YearHint: 2023},
				{Title: "Erreur", StartTimes: []string{"23:30"}},
				{Title: "La Chimera", StartTimes: []string{"14:00", "bad"}},
				{Title: "Sans horaire", StartTimes: nil},
			},
		},
	}
	agg := newAggregator(listings, &fakeResolver{}, nil)

	result, err := agg.Aggregate(context.Background(), "2025-03-20")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	movies := result["Le Champo"]
	if len(movies) != 2 {
		t.Fatalf("expected 2 movies, got %d: %+v", len(movies), movies)
	}

	chimera := movies[0]
	if chimera.Title != "La Chimera" || chimera.Duration != "2h00" || chimera.Director != domain.UnknownDirector {
		t.Fatalf("unexpected fallback record %+v", chimera)
	}
	want := []domain.Session{{Start: "14:00", End: "16:00"}, {Start: "21:00", End: "23:00"}}
	if len(chimera.Sessions) != 2 || chimera.Sessions[0] != want[0] || chimera.Sessions[1] != want[1] {
		t.Fatalf("sessions = %+v, want %+v", chimera.Sessions, want)
	}
	if chimera.ExternalID != nil || chimera.PosterURL != nil {
		t.Fatalf("unresolved record must carry no ids")
	}

	late := movies[1]
	if late.Title != "Erreur" || late.Sessions[0].End != "01:30" {
		t.Fatalf("resolver errors must degrade to the default record, got %+v", late)
	}
}

func TestAggregateRecoversVenuePanic(t *testing.T) {
	listings := &fakeListings{
		json: map[string][]domain.RawListing{
			"C0073": {{Title: "Boom", StartTimes: []string{"18:00"}}},
			"C0072": {{Title: "Oppenheimer", StartTimes: []string{"20:00"}}},
		},
	}
	resolver := &fakeResolver{
		movies: map[string]*domain.EnrichedMovie{"Oppenheimer": oppenheimer()},
		panics: map[string]bool{"Boom": true},
	}
	agg := newAggregator(listings, resolver, nil)

	result, err := agg.Aggregate(context.Background(), "2025-03-20")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if got := result["Le Champo"]; got == nil || len(got) != 0 {
		t.Fatalf("panicking venue must map to an empty list, got %v", got)
	}
	if len(result["Le Grand Action"]) != 1 {
		t.Fatalf("sibling venue results must survive a panic")
	}
}

func TestAggregateUsesResponseCache(t *testing.T) {
	listings := &fakeListings{
		json: map[string][]domain.RawListing{
			"C0073": {{Title: "Oppenheimer", StartTimes: []string{"20:00"}}},
		},
	}
	resolver := &fakeResolver{movies: map[string]*domain.EnrichedMovie{"Oppenheimer": oppenheimer()}}
	now := fixedNow
	cache := NewMemoryCache(DefaultCacheTTL, func() time.Time { return now })
	agg := newAggregator(listings, resolver, cache)
	ctx := context.Background()

	if _, err := agg.Aggregate(ctx, "2025-03-20"); err != nil {
		t.Fatalf("first Aggregate: %v", err)
	}
	calls := listings.jsonCalls.Load()

	second, err := agg.Aggregate(ctx, "2025-03-20")
	if err != nil {
		t.Fatalf("second Aggregate: %v", err)
	}
	if listings.jsonCalls.Load() != calls {
		t.Fatalf("cache hit must not refetch listings")
	}
	if len(second["Le Champo"]) != 1 {
		t.Fatalf("cached result lost data: %+v", second)
	}

	now = now.Add(DefaultCacheTTL + time.Second)
	if _, err := agg.Aggregate(ctx, "2025-03-20"); err != nil {
		t.Fatalf("third Aggregate: %v", err)
	}
	if listings.jsonCalls.Load() == calls {
		t.Fatalf("expired entry must trigger recomputation")
	}
}

func TestAggregateHTMLFallbackOnlyToday(t *testing.T) {
	listings := &fakeListings{
		json:    map[string][]domain.RawListing{},
		jsonErr: map[string]error{"C0074": errors.New("json endpoint gone")},
		html: map[string][]domain.RawListing{
			"C0073": {{Title: "Perfect Days", StartTimes: []string{"16:00"}}},
			"C0074": {{Title: "Perfect Days", StartTimes: []string{"18:30"}}},
		},
	}
	agg := newAggregator(listings, &fakeResolver{}, nil)

	today, err := agg.Aggregate(context.Background(), "2025-03-14")
	if err != nil {
		t.Fatalf("Aggregate today: %v", err)
	}
	if len(today["Le Champo"]) != 1 || len(today["Reflet Médicis"]) != 1 {
		t.Fatalf("expected html fallback results today, got %+v", today)
	}
	if listings.htmlCalls.Load() != int32(len(testVenues)) {
		t.Fatalf("expected html fallback per empty venue, got %d", listings.htmlCalls.Load())
	}

	listings.htmlCalls.Store(0)
	other, err := agg.Aggregate(context.Background(), "2025-03-15")
	if err != nil {
		t.Fatalf("Aggregate tomorrow: %v", err)
	}
	if listings.htmlCalls.Load() != 0 || len(other["Le Champo"]) != 0 {
		t.Fatalf("html fallback must be limited to today")
	}
}

func TestAggregateRejectsBadDate(t *testing.T) {
	listings := &fakeListings{}
	agg := newAggregator(listings, &fakeResolver{}, nil)
	for _, date := range []string{"2024-13-40", "14/03/2025", ""} {
		if _, err := agg.Aggregate(context.Background(), date); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("Aggregate(%q) error = %v, want ErrInvalidDate", date, err)
		}
	}
	if listings.jsonCalls.Load() != 0 {
		t.Fatalf("invalid dates must not reach the listings provider")
	}
}

func TestTitlesDeduplicatesByKey(t *testing.T) {
	listings := &fakeListings{
		json: map[string][]domain.RawListing{
			"C0073": {{Title: "Amélie", YearHint: 2001}, {Title: "Dune : Deuxième partie"}},
			"C0074": {{Title: "Amelie"}, {Title: "Oppenheimer"}},
		},
		jsonErr: map[string]error{"C0072": errors.New("down")},
	}
	agg := newAggregator(listings, &fakeResolver{}, nil)

	titles, err := agg.Titles(context.Background(), "2025-03-14")
	if err != nil {
		t.Fatalf("Titles: %v", err)
	}
	if len(titles) != 3 {
		t.Fatalf("expected 3 unique titles, got %+v", titles)
	}
	if titles[0] != (TitleRef{Title: "Amélie", YearHint: 2001}) || titles[2].Title != "Oppenheimer" {
		t.Fatalf("unexpected titles %+v", titles)
	}
}

func TestVenueByName(t *testing.T) {
	agg := newAggregator(&fakeListings{}, &fakeResolver{}, nil)
	v, ok := agg.VenueByName("Reflet Médicis")
	if !ok || v.ID != "C0074" {
		t.Fatalf("VenueByName = %+v %v", v, ok)
	}
	if _, ok := agg.VenueByName("reflet médicis"); ok {
		t.Fatalf("venue lookup is case-sensitive")
	}
	if agg.Today() != "2025-03-14" {
		t.Fatalf("Today = %s", agg.Today())
	}
}

func TestAggregateCancelledCallerDoesNotPoisonCache(t *testing.T) {
	listings := &fakeListings{
		json: map[string][]domain.RawListing{
			"C0073": {{VenueID: "C0073", Title: "Oppenheimer", StartTimes: []string{"20:00"}}},
		},
	}
	resolver := &fakeResolver{movies: map[string]*domain.EnrichedMovie{"Oppenheimer": oppenheimer()}}
	cache := NewMemoryCache(DefaultCacheTTL, func() time.Time { return fixedNow })
	agg := newAggregator(listings, resolver, cache)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	first, err := agg.Aggregate(ctx, "2025-03-20")
	if err != nil {
		t.Fatalf("Aggregate with cancelled ctx: %v", err)
	}
	if len(first["Le Champo"]) != 1 {
		t.Fatalf("cancelled caller got %d movies at Le Champo, want 1", len(first["Le Champo"]))
	}

	second, err := agg.Aggregate(context.Background(), "2025-03-20")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(second["Le Champo"]) != 1 {
		t.Fatalf("follow-up request served %d movies at Le Champo, want 1", len(second["Le Champo"]))
	}
	if got := listings.jsonCalls.Load(); got != int32(len(testVenues)) {
		t.Fatalf("json calls = %d, want %d (second request served from cache)", got, len(testVenues))
	}
}
