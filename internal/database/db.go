// Package database sets up/opens the program database.
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const dbDriver = "sqlite3"

const downloadsSchema = `
CREATE TABLE IF NOT EXISTS downloads (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	quality TEXT NOT NULL,
	output_path TEXT NOT NULL,
	segments_expected INTEGER NOT NULL,
	segments_written INTEGER NOT NULL,
	released_at TEXT,
	created_at TIMESTAMP NOT NULL,
	UNIQUE(item_id, kind, quality)
);`

// Database wraps the program's sqlite handle.
type Database struct {
	DB *sql.DB
}

// Open opens (or creates) the database at path and ensures tables exist.
func Open(path string) (*Database, error) {
	db, err := sql.Open(dbDriver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at path %q: %w", path, err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(downloadsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}
	return &Database{DB: db}, nil
}

// Close closes the underlying handle.
func (d *Database) Close() error {
	return d.DB.Close()
}
