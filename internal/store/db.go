package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open opens the State Store for the given driver/DSN, runs embedded
// migrations, and returns a ready-to-use *sql.DB. driver is "sqlite" or
// "postgres"; for sqlite, dsn is a filesystem path and its parent
// directory is created if missing.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	var db *sql.DB
	var err error

	switch driver {
	case "sqlite", "":
		if dir := filepath.Dir(dsn); dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("create state store directory: %w", mkErr)
			}
		}
		db, err = sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_foreign_keys=on")
		if err == nil {
			db.SetMaxOpenConns(1) // mattn/go-sqlite3 serializes writers; avoid SQLITE_BUSY
		}
	case "postgres":
		db, err = sql.Open("postgres", dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping state store: %w", err)
	}

	if err := newMigrator(db, normalizeDriver(driver)).run(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func normalizeDriver(driver string) string {
	if driver == "" {
		return "sqlite"
	}
	return driver
}
