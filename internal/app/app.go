// Package app wires configuration into the running components.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Clark-Hu/seances/internal/allocine"
	"github.com/Clark-Hu/seances/internal/config"
	httpserver "github.com/Clark-Hu/seances/internal/http"
	"github.com/Clark-Hu/seances/internal/letterboxd"
	"github.com/Clark-Hu/seances/internal/prefetch"
	"github.com/Clark-Hu/seances/internal/ratingcache"
	"github.com/Clark-Hu/seances/internal/repository"
	"github.com/Clark-Hu/seances/internal/resolver"
	"github.com/Clark-Hu/seances/internal/showtimes"
	"github.com/Clark-Hu/seances/internal/store"
	"github.com/Clark-Hu/seances/internal/titlematch"
	"github.com/Clark-Hu/seances/internal/tmdb"
)

// App holds the wired components of one process.
type App struct {
	Config      config.Config
	RatingStore repository.RatingStore
	Ratings     *ratingcache.Cache
	Breaker     *letterboxd.Breaker
	Fetcher     *letterboxd.Fetcher
	Resolver    *resolver.Resolver
	Showtimes   *showtimes.Aggregator
	Prefetch    *prefetch.Runner

	health  httpserver.HealthChecker
	closers []func() error
	logger  *log.Logger
}

// Build constructs every component from cfg. The returned App must be closed.
func Build(ctx context.Context, cfg config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	a := &App{Config: cfg, logger: logger}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	ratingStore, err := a.openRatingStore(ctx)
	if err != nil {
		return err
	}
	a.Ratings = ratingcache.New(ratingStore, seconds(cfg.RatingTTLSecs), a.logger)

	metadata, err := tmdb.New(cfg.TMDBAPIKey, cfg.TMDBBaseURL, cfg.TMDBLanguage, seconds(cfg.TMDBTimeoutSecs),
		tmdb.WithRetry(uint(cfg.TMDBRetryAttempts), 500*time.Millisecond),
		tmdb.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("init tmdb client: %w", err)
	}

	listings, err := allocine.New(cfg.AllocineBaseURL, seconds(cfg.AllocineTimeoutSecs), allocine.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("init listings client: %w", err)
	}

	a.Breaker = letterboxd.NewBreaker(seconds(cfg.RatingBlockCooldownSecs), a.logger)
	a.Fetcher, err = letterboxd.New(cfg.LetterboxdBaseURL, seconds(cfg.LetterboxdTimeoutSecs), a.Ratings, a.Breaker, a.logger)
	if err != nil {
		return fmt.Errorf("init rating fetcher: %w", err)
	}

	th := titlematch.DefaultThresholds()
	th.MinScore = cfg.MatchMinScore
	th.ShortRatio = cfg.MatchShortRatio
	th.ShortFloor = cfg.MatchShortFloor
	a.Resolver, err = resolver.New(metadata, titlematch.NewScorer(th, a.logger), a.Ratings, a.Fetcher, resolver.Options{
		LiveRatings:   cfg.EnableLiveLetterboxd,
		RatingBaseURL: cfg.LetterboxdBaseURL,
		PosterBaseURL: cfg.TMDBPosterBaseURL,
		MemoSize:      cfg.ResolverMemoSize,
	}, a.logger)
	if err != nil {
		return err
	}

	a.Showtimes = showtimes.New(cfg.Venues, listings, a.Resolver, a.responseCache(), showtimes.Options{
		Workers:  cfg.AggregatorWorkers,
		Location: cfg.Location,
	}, a.logger)

	a.Prefetch, err = prefetch.New(a.Showtimes, a.Resolver, a.Ratings, a.Fetcher, cfg.EnableLiveLetterboxd, a.logger)
	return err
}

func (a *App) openRatingStore(ctx context.Context) (ratingcache.Store, error) {
	kind, target, err := a.Config.RatingStore()
	if err != nil {
		return nil, err
	}
	switch kind {
	case config.StorePostgres:
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		st, err := store.New(dbCtx, target, store.Options{
			MaxConns:               int32(a.Config.DBMaxConns),
			MinConns:               int32(a.Config.DBMinConns),
			MaxConnIdleTime:        seconds(a.Config.DBMaxIdleSecs),
			MaxConnLifetime:        seconds(a.Config.DBMaxLifeSecs),
			ConnTimeout:            seconds(a.Config.DBConnTimeoutSecs),
			StatementCacheCapacity: a.Config.DBStatementCache,
			Logger:                 a.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, func() error { st.Close(); return nil })
		a.health = st
		a.RatingStore = repository.New(st).Ratings
		return a.RatingStore, nil
	case config.StoreSQLite:
		st, err := store.OpenSQLite(ctx, target, a.logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		a.health = st
		a.RatingStore = repository.NewSQLite(st).Ratings
		return a.RatingStore, nil
	default:
		a.logger.Printf("app: rating cache is in memory and will not survive restarts")
		return ratingcache.NewMemoryStore(), nil
	}
}

// responseCache prefers a reachable Redis and falls back to process memory.
func (a *App) responseCache() showtimes.ResponseCache {
	ttl := seconds(a.Config.ShowtimesTTLSecs)
	if a.Config.RedisAddr == "" {
		return showtimes.NewMemoryCache(ttl, nil)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		a.logger.Printf("app: redis %s unreachable, using memory response cache: %v", a.Config.RedisAddr, err)
		_ = client.Close()
		return showtimes.NewMemoryCache(ttl, nil)
	}
	a.closers = append(a.closers, client.Close)
	return showtimes.NewRedisCache(client, ttl, a.logger)
}

// HTTPDeps exposes the components the HTTP layer serves.
func (a *App) HTTPDeps() httpserver.Deps {
	deps := httpserver.Deps{
		Showtimes: a.Showtimes,
		Prefetch:  a.Prefetch,
		Health:    a.health,
	}
	if a.RatingStore != nil {
		deps.Ratings = a.RatingStore
	}
	return deps
}

// Close releases stores and connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
