// Package db embeds the SQL schema shared by the PostgreSQL and SQLite
// rating stores.
package db

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migration is a single forward schema step.
type Migration struct {
	Version string
	SQL     string
}

// Migrations returns the up migrations ordered by version.
func Migrations() ([]Migration, error) {
	names, err := fs.Glob(migrationFS, "migrations/*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := migrationFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		version := strings.TrimSuffix(strings.TrimPrefix(name, "migrations/"), ".up.sql")
		out = append(out, Migration{Version: version, SQL: string(data)})
	}
	return out, nil
}
