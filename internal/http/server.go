package httpserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Clark-Hu/seances/internal/config"
	"github.com/Clark-Hu/seances/internal/domain"
	"github.com/Clark-Hu/seances/internal/prefetch"
	"github.com/Clark-Hu/seances/internal/repository"
	"github.com/Clark-Hu/seances/internal/showtimes"
)

// Showtimes is the aggregation surface the handlers need.
type Showtimes interface {
	Aggregate(ctx context.Context, date string) (showtimes.Result, error)
	Venue(ctx context.Context, venue domain.Venue, date string) []domain.EnrichedMovie
	Venues() []domain.Venue
	VenueByName(name string) (domain.Venue, bool)
	Today() string
}

// Prefetcher runs one rating warm-up batch.
type Prefetcher interface {
	Run(ctx context.Context, req prefetch.Request) (prefetch.Report, error)
}

// RatingLister pages through the persisted rating cache.
type RatingLister interface {
	List(ctx context.Context, filters repository.RatingListFilters) (repository.RatingListResult, error)
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps groups the collaborators of the HTTP layer. Ratings and Health may be nil.
type Deps struct {
	Showtimes Showtimes
	Prefetch  Prefetcher
	Ratings   RatingLister
	Health    HealthChecker
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg       config.Config
	showtimes Showtimes
	prefetch  Prefetcher
	ratings   RatingLister
	health    HealthChecker
	logger    *log.Logger
	router    chi.Router
	httpSrv   *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, deps Deps, logger *log.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		cfg:       cfg,
		showtimes: deps.Showtimes,
		prefetch:  deps.Prefetch,
		ratings:   deps.Ratings,
		health:    deps.Health,
		logger:    logger,
		router:    r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/cinemas", s.handleCinemas)
	s.router.Get("/showtimes", s.handleShowtimes)
	s.router.Get("/test-cinema/{name}", s.handleTestCinema)
	s.router.Get("/prefetch-letterboxd", s.handlePrefetch)
	s.router.Get("/ratings", s.handleListRatings)
}

// Handler exposes the routed handler, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start boots the HTTP server asynchronously.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.health != nil {
		if err := s.health.HealthCheck(ctx); err != nil {
			s.logger.Printf("healthz: store unavailable: %v", err)
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
