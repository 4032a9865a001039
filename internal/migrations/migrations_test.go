package migrations_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/questlab/player/internal/database"
	"github.com/questlab/player/internal/migrations"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrations(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	if err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	want := map[string]string{
		"session_results":          "table",
		"idx_session_results_game": "index",
	}
	for name, kind := range want {
		var got string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type=? AND name=?", kind, name,
		).Scan(&got)
		if err != nil {
			t.Errorf("%s %q not found: %v", kind, name, err)
		}
	}

	v, err := migrations.Version(ctx, db)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 1 {
		t.Errorf("expected schema version 1, got %d", v)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	if err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("second run (should be no-op): %v", err)
	}
}
