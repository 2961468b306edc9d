package db

import (
	"strings"
	"testing"
)

func TestMigrationsOrderedAndNonEmpty(t *testing.T) {
	migrations, err := Migrations()
	if err != nil {
		t.Fatalf("Migrations: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatalf("expected at least one migration")
	}
	if migrations[0].Version != "0001_create_letterboxd_ratings" {
		t.Fatalf("unexpected first version %q", migrations[0].Version)
	}
	for i, m := range migrations {
		if strings.TrimSpace(m.SQL) == "" {
			t.Fatalf("migration %s is empty", m.Version)
		}
		if i > 0 && migrations[i-1].Version >= m.Version {
			t.Fatalf("migrations out of order: %s before %s", migrations[i-1].Version, m.Version)
		}
	}
}
