// Package config loads runtime settings from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/Clark-Hu/seances/internal/domain"
)

// Rating store backends selectable through RATING_STORE_URL.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port string

	TMDBAPIKey        string
	TMDBBaseURL       string
	TMDBLanguage      string
	TMDBPosterBaseURL string
	TMDBTimeoutSecs   int
	TMDBRetryAttempts int

	LetterboxdBaseURL     string
	LetterboxdTimeoutSecs int
	EnableLiveLetterboxd  bool
	PrefetchToken         string

	AllocineBaseURL     string
	AllocineTimeoutSecs int
	Venues              []domain.Venue
	TimeZone            string
	Location            *time.Location

	RatingStoreURL          string
	RatingTTLSecs           int
	RatingBlockCooldownSecs int
	ShowtimesTTLSecs        int
	AggregatorWorkers       int
	ResolverMemoSize        int

	MatchMinScore   float64
	MatchShortRatio float64
	MatchShortFloor int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ReadTimeoutSecs   int
	WriteTimeoutSecs  int
	IdleTimeoutSecs   int
	DBMaxConns        int
	DBMinConns        int
	DBMaxIdleSecs     int
	DBMaxLifeSecs     int
	DBConnTimeoutSecs int
	DBStatementCache  int
}

// Load reads configuration from environment variables, applying defaults and validation.
func Load() (Config, error) {
	cfg := Config{
		Port:                    getEnv("PORT", "8080"),
		TMDBAPIKey:              os.Getenv("TMDB_API_KEY"),
		TMDBBaseURL:             getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBLanguage:            getEnv("TMDB_LANGUAGE", "fr-FR"),
		TMDBPosterBaseURL:       getEnv("TMDB_POSTER_BASE_URL", "https://image.tmdb.org/t/p/w500"),
		TMDBTimeoutSecs:         getEnvInt("TMDB_TIMEOUT_SECS", 6),
		TMDBRetryAttempts:       getEnvInt("TMDB_RETRY_ATTEMPTS", 3),
		LetterboxdBaseURL:       getEnv("LETTERBOXD_BASE_URL", "https://letterboxd.com"),
		LetterboxdTimeoutSecs:   getEnvInt("LETTERBOXD_TIMEOUT_SECS", 6),
		EnableLiveLetterboxd:    getEnvBool("ENABLE_LIVE_LETTERBOXD", false),
		PrefetchToken:           os.Getenv("PREFETCH_TOKEN"),
		AllocineBaseURL:         getEnv("ALLOCINE_BASE_URL", "https://www.allocine.fr"),
		AllocineTimeoutSecs:     getEnvInt("ALLOCINE_TIMEOUT_SECS", 10),
		TimeZone:                getEnv("TIMEZONE", "Europe/Paris"),
		RatingStoreURL:          getEnv("RATING_STORE_URL", "sqlite://seances_cache.db"),
		RatingTTLSecs:           getEnvInt("RATING_TTL_SECS", 24*60*60),
		RatingBlockCooldownSecs: getEnvInt("RATING_BLOCK_COOLDOWN_SECS", 6*60*60),
		ShowtimesTTLSecs:        getEnvInt("SHOWTIMES_TTL_SECS", 15*60),
		AggregatorWorkers:       getEnvInt("AGGREGATOR_WORKERS", 6),
		ResolverMemoSize:        getEnvInt("RESOLVER_MEMO_SIZE", 512),
		MatchMinScore:           getEnvFloat("MATCH_MIN_SCORE", 0.70),
		MatchShortRatio:         getEnvFloat("MATCH_SHORT_RATIO", 0.6),
		MatchShortFloor:         getEnvInt("MATCH_SHORT_FLOOR", 4),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 getEnvInt("REDIS_DB", 0),
		ReadTimeoutSecs:         getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs:        getEnvInt("SERVER_WRITE_TIMEOUT", 120),
		IdleTimeoutSecs:         getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		DBMaxConns:              getEnvInt("DB_MAX_CONNS", 10),
		DBMinConns:              getEnvInt("DB_MIN_CONNS", 1),
		DBMaxIdleSecs:           getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:           getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs:       getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:        getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 256),
	}

	if cfg.TMDBAPIKey == "" {
		return Config{}, fmt.Errorf("TMDB_API_KEY is required")
	}
	for name, value := range map[string]int{
		"TMDB_TIMEOUT_SECS":          cfg.TMDBTimeoutSecs,
		"TMDB_RETRY_ATTEMPTS":        cfg.TMDBRetryAttempts,
		"LETTERBOXD_TIMEOUT_SECS":    cfg.LetterboxdTimeoutSecs,
		"ALLOCINE_TIMEOUT_SECS":      cfg.AllocineTimeoutSecs,
		"RATING_TTL_SECS":            cfg.RatingTTLSecs,
		"RATING_BLOCK_COOLDOWN_SECS": cfg.RatingBlockCooldownSecs,
		"SHOWTIMES_TTL_SECS":         cfg.ShowtimesTTLSecs,
		"AGGREGATOR_WORKERS":         cfg.AggregatorWorkers,
		"RESOLVER_MEMO_SIZE":         cfg.ResolverMemoSize,
	} {
		if value <= 0 {
			return Config{}, fmt.Errorf("%s must be positive", name)
		}
	}
	if cfg.MatchMinScore <= 0 || cfg.MatchMinScore > 1.15 {
		return Config{}, fmt.Errorf("MATCH_MIN_SCORE must be in (0, 1.15]")
	}
	if cfg.MatchShortRatio < 0 || cfg.MatchShortRatio > 1 {
		return Config{}, fmt.Errorf("MATCH_SHORT_RATIO must be in [0, 1]")
	}
	if cfg.MatchShortFloor < 0 {
		return Config{}, fmt.Errorf("MATCH_SHORT_FLOOR must be non-negative")
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return Config{}, fmt.Errorf("TIMEZONE %q is invalid: %w", cfg.TimeZone, err)
	}
	cfg.Location = loc

	cfg.Venues = DefaultVenues()
	if raw := strings.TrimSpace(os.Getenv("CINEMA_IDS")); raw != "" {
		venues, err := ParseVenues(raw)
		if err != nil {
			return Config{}, fmt.Errorf("CINEMA_IDS: %w", err)
		}
		cfg.Venues = venues
	}

	if _, _, err := cfg.RatingStore(); err != nil {
		return Config{}, err
	}

	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}

	return cfg, nil
}

// RatingStore splits RATING_STORE_URL into a backend kind and its target:
// the full URL for postgres, the file path for sqlite, empty for memory.
func (c Config) RatingStore() (kind, target string, err error) {
	raw := strings.TrimSpace(c.RatingStoreURL)
	if raw == StoreMemory || raw == "memory://" {
		return StoreMemory, "", nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("RATING_STORE_URL is invalid: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		return StorePostgres, raw, nil
	case "sqlite", "sqlite3", "file":
		path := strings.TrimPrefix(raw, u.Scheme+"://")
		if path == "" {
			return "", "", fmt.Errorf("RATING_STORE_URL must name a sqlite file")
		}
		return StoreSQLite, path, nil
	default:
		return "", "", fmt.Errorf("RATING_STORE_URL scheme %q is not supported (postgres, sqlite, memory)", u.Scheme)
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "":
		return fallback
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
