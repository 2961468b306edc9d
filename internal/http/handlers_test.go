package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/seances/internal/config"
	"github.com/Clark-Hu/seances/internal/domain"
	"github.com/Clark-Hu/seances/internal/prefetch"
	"github.com/Clark-Hu/seances/internal/repository"
	"github.com/Clark-Hu/seances/internal/showtimes"
)

type fakeShowtimes struct {
	mu         sync.Mutex
	today      string
	venues     []domain.Venue
	movies     []domain.EnrichedMovie
	aggregates []string
	venueCalls []string
}

func (f *fakeShowtimes) Aggregate(ctx context.Context, date string) (showtimes.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aggregates = append(f.aggregates, date)
	out := make(showtimes.Result, len(f.venues))
	for _, v := range f.venues {
		out[v.Name] = f.movies
	}
	return out, nil
}

func (f *fakeShowtimes) Venue(ctx context.Context, venue domain.Venue, date string) []domain.EnrichedMovie {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.venueCalls = append(f.venueCalls, venue.ID+"@"+date)
	return f.movies
}

func (f *fakeShowtimes) Venues() []domain.Venue { return f.venues }

func (f *fakeShowtimes) VenueByName(name string) (domain.Venue, bool) {
	for _, v := range f.venues {
		if v.Name == name {
			return v, true
		}
	}
	return domain.Venue{}, false
}

func (f *fakeShowtimes) Today() string { return f.today }

type fakePrefetch struct {
	requests []prefetch.Request
	err      error
}

func (f *fakePrefetch) Run(ctx context.Context, req prefetch.Request) (prefetch.Report, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return prefetch.Report{}, f.err
	}
	return prefetch.Report{Date: req.Date, Offset: req.Offset, BatchSize: 2, TotalUniqueTitles: 5, HasMore: true}, nil
}

type fakeRatings struct {
	filters []repository.RatingListFilters
}

func (f *fakeRatings) List(ctx context.Context, filters repository.RatingListFilters) (repository.RatingListResult, error) {
	f.filters = append(f.filters, filters)
	rating := 3.9
	url := "https://letterboxd.com/film/oppenheimer-2023/"
	next := "next-token"
	return repository.RatingListResult{
		Items: []domain.RatingEntry{
			{MovieID: 872585, Value: &rating, URL: &url, UpdatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		},
		NextCursor: &next,
	}, nil
}

type fakeHealth struct{ err error }

func (f fakeHealth) HealthCheck(ctx context.Context) error { return f.err }

type testDeps struct {
	showtimes *fakeShowtimes
	prefetch  *fakePrefetch
	ratings   *fakeRatings
}

func buildTestServer(tb testing.TB, token string) (*Server, *testDeps) {
	tb.Helper()
	cfg := config.Config{
		Port:             "0",
		PrefetchToken:    token,
		ReadTimeoutSecs:  15,
		WriteTimeoutSecs: 15,
		IdleTimeoutSecs:  60,
	}
	deps := &testDeps{
		showtimes: &fakeShowtimes{
			today: "2025-03-01",
			venues: []domain.Venue{
				{Name: "Le Grand Action", ID: "C0072"},
				{Name: "Reflet Médicis", ID: "C0074"},
			},
			movies: []domain.EnrichedMovie{domain.UnknownMovie("Nosferatu")},
		},
		prefetch: &fakePrefetch{},
		ratings:  &fakeRatings{},
	}
	srv := New(cfg, Deps{
		Showtimes: deps.showtimes,
		Prefetch:  deps.prefetch,
		Ratings:   deps.ratings,
	}, log.New(io.Discard, "", 0))
	// Replace chi router to avoid default middleware noise.
	srv.router = chi.NewRouter()
	srv.registerRoutes()
	return srv, deps
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestHandleShowtimes_InvalidDateSkipsProviders(t *testing.T) {
	srv, deps := buildTestServer(t, "secret")

	for _, date := range []string{"2024-13-40", "01/03/2025", "tomorrow"} {
		rec := serve(srv, httptest.NewRequest(http.MethodGet, "/showtimes?date="+date, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("date %q: status = %d, want 400", date, rec.Code)
		}
		if body := decodeError(t, rec); body.Code != "BAD_REQUEST" {
			t.Fatalf("date %q: code = %q, want BAD_REQUEST", date, body.Code)
		}
	}
	if len(deps.showtimes.aggregates) != 0 {
		t.Fatalf("aggregator called %d times for invalid dates", len(deps.showtimes.aggregates))
	}
}

func TestHandleShowtimes_DefaultsToToday(t *testing.T) {
	srv, deps := buildTestServer(t, "secret")

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/showtimes", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Date      string                            `json:"date"`
		Showtimes map[string][]domain.EnrichedMovie `json:"showtimes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Date != "2025-03-01" {
		t.Fatalf("date = %q, want today", body.Date)
	}
	if len(body.Showtimes) != 2 || len(body.Showtimes["Reflet Médicis"]) != 1 {
		t.Fatalf("unexpected showtimes payload: %+v", body.Showtimes)
	}
	if got := deps.showtimes.aggregates; len(got) != 1 || got[0] != "2025-03-01" {
		t.Fatalf("aggregate calls = %v", got)
	}

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/showtimes?date=2025-03-04", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("explicit date status = %d", rec.Code)
	}
	if got := deps.showtimes.aggregates; got[len(got)-1] != "2025-03-04" {
		t.Fatalf("explicit date not forwarded: %v", got)
	}
}

func TestHandleTestCinema(t *testing.T) {
	srv, deps := buildTestServer(t, "secret")

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/test-cinema/Nowhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != "NOT_FOUND" {
		t.Fatalf("code = %q, want NOT_FOUND", body.Code)
	}
	if len(deps.showtimes.venueCalls) != 0 {
		t.Fatalf("unknown cinema must not hit providers")
	}

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/test-cinema/Reflet%20M%C3%A9dicis", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	var body cinemaResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Cinema != "Reflet Médicis" || body.CinemaID != "C0074" || len(body.Showtimes) != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if got := deps.showtimes.venueCalls; len(got) != 1 || got[0] != "C0074@2025-03-01" {
		t.Fatalf("venue calls = %v", got)
	}
}

func TestHandleCinemasAndIndex(t *testing.T) {
	srv, _ := buildTestServer(t, "secret")

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/cinemas", nil))
	var cinemas cinemasResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &cinemas); err != nil {
		t.Fatalf("decode cinemas: %v", err)
	}
	if len(cinemas.Cinemas) != 2 || cinemas.Cinemas[0] != "Le Grand Action" {
		t.Fatalf("cinemas = %v, want table order", cinemas.Cinemas)
	}

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	var index indexResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &index); err != nil {
		t.Fatalf("decode index: %v", err)
	}
	if _, ok := index.Endpoints["/cinemas"]; !ok {
		t.Fatalf("index missing /cinemas: %v", index.Endpoints)
	}
}

func TestAdminTokenGate(t *testing.T) {
	cases := []struct {
		name       string
		configured string
		target     string
		header     string
		wantStatus int
	}{
		{name: "missing token", configured: "secret", target: "/prefetch-letterboxd", wantStatus: http.StatusUnauthorized},
		{name: "wrong token", configured: "secret", target: "/prefetch-letterboxd?token=nope", wantStatus: http.StatusForbidden},
		{name: "unconfigured", configured: "", target: "/prefetch-letterboxd?token=anything", wantStatus: http.StatusForbidden},
		{name: "query token", configured: "secret", target: "/prefetch-letterboxd?token=secret", wantStatus: http.StatusOK},
		{name: "bearer token", configured: "secret", target: "/prefetch-letterboxd", header: "Bearer secret", wantStatus: http.StatusOK},
		{name: "ratings wrong token", configured: "secret", target: "/ratings?token=nope", wantStatus: http.StatusForbidden},
		{name: "ratings ok", configured: "secret", target: "/ratings?token=secret", wantStatus: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, deps := buildTestServer(t, tc.configured)
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := serve(srv, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.wantStatus, rec.Body.String())
			}
			if tc.wantStatus != http.StatusOK && len(deps.prefetch.requests) != 0 {
				t.Fatalf("rejected request reached the prefetch runner")
			}
		})
	}
}

func TestHandlePrefetch_ParsesParameters(t *testing.T) {
	srv, deps := buildTestServer(t, "secret")

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/prefetch-letterboxd?token=secret&date=2025-03-02&max_movies=10&offset=-4&sleep=0.25", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if len(deps.prefetch.requests) != 1 {
		t.Fatalf("runner calls = %d, want 1", len(deps.prefetch.requests))
	}
	req := deps.prefetch.requests[0]
	if req.Date != "2025-03-02" || req.MaxMovies != 10 || req.Offset != 0 || req.Sleep != 250*time.Millisecond {
		t.Fatalf("unexpected request: %+v", req)
	}
	var report prefetch.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if !report.HasMore || report.TotalUniqueTitles != 5 {
		t.Fatalf("unexpected report: %+v", report)
	}

	// Defaults apply when parameters are omitted.
	_ = serve(srv, httptest.NewRequest(http.MethodGet, "/prefetch-letterboxd?token=secret", nil))
	req = deps.prefetch.requests[1]
	if req.Date != "2025-03-01" || req.MaxMovies != prefetch.DefaultMaxMovies || req.Sleep != prefetch.DefaultSleep {
		t.Fatalf("defaults not applied: %+v", req)
	}
}

func TestHandlePrefetch_BadParameters(t *testing.T) {
	srv, deps := buildTestServer(t, "secret")
	for _, q := range []string{"date=2024-13-40", "max_movies=abc", "max_movies=0", "offset=x", "sleep=NaN", "sleep=fast"} {
		rec := serve(srv, httptest.NewRequest(http.MethodGet, "/prefetch-letterboxd?token=secret&"+q, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", q, rec.Code)
		}
	}
	if len(deps.prefetch.requests) != 0 {
		t.Fatalf("invalid parameters reached the runner")
	}

	deps.prefetch.err = errors.New("boom")
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/prefetch-letterboxd?token=secret", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("runner failure status = %d, want 500", rec.Code)
	}
}

func TestHandleListRatings(t *testing.T) {
	srv, deps := buildTestServer(t, "secret")

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/ratings?token=secret&limit=5&rated=true", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body ratingListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].TMDBID != 872585 || body.Items[0].UpdatedAt != "2025-03-01T10:00:00Z" {
		t.Fatalf("unexpected items: %+v", body.Items)
	}
	if body.NextCursor == nil || *body.NextCursor != "next-token" {
		t.Fatalf("next cursor not forwarded")
	}
	if f := deps.ratings.filters[0]; f.Limit != 5 || !f.RatedOnly {
		t.Fatalf("filters = %+v", f)
	}

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/ratings?token=secret&cursor=%25%25", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad cursor status = %d, want 400", rec.Code)
	}

	srv.ratings = nil
	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/ratings?token=secret", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("memory store status = %d, want 501", rec.Code)
	}
}

func TestHandleHealthz(t *testing.T) {
	srv, _ := buildTestServer(t, "secret")

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	srv.health = fakeHealth{err: errors.New("down")}
	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
