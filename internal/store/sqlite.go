package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/Clark-Hu/seances/db"
)

// SQLite is a single-file rating store used when no PostgreSQL URL is set.
type SQLite struct {
	db     *sql.DB
	path   string
	logger *log.Logger
}

// OpenSQLite opens (creating when needed) the database at path, enables WAL
// and applies the embedded migrations.
func OpenSQLite(ctx context.Context, path string, logger *log.Logger) (*SQLite, error) {
	if logger == nil {
		logger = log.Default()
	}
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer avoids SQLITE_BUSY between pool connections.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := conn.ExecContext(ctx, pragma); execErr != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &SQLite{db: conn, path: path, logger: logger}
	if err := s.applyMigrations(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	logger.Printf("store: sqlite rating store ready at %s", path)
	return s, nil
}

func (s *SQLite) applyMigrations(ctx context.Context) error {
	migrations, err := db.Migrations()
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	for _, m := range migrations {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", m.Version).Scan(&count); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		if count > 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.Version, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// DB exposes the handle for repositories.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Path returns the database file location.
func (s *SQLite) Path() string {
	return s.path
}

// HealthCheck verifies the database file is usable.
func (s *SQLite) HealthCheck(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.logger.Println("store: closing sqlite database")
	return s.db.Close()
}
