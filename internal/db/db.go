package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

type DB struct {
	*sql.DB
}

func Connect(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return &DB{db}, nil
}

// EnsureSchema creates the tables castellan needs if they do not exist yet.
func EnsureSchema(db *DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS libraries (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			library_type TEXT NOT NULL,
			path TEXT NOT NULL,
			watch_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS media_items (
			id UUID PRIMARY KEY,
			library_id UUID NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
			file_path TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			year INTEGER,
			media_type TEXT NOT NULL,
			duration_seconds DOUBLE PRECISION,
			video_codec TEXT,
			audio_codec TEXT,
			file_size BIGINT,
			fingerprint TEXT,
			blurhash TEXT,
			tmdb_id INTEGER,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_media_items_library ON media_items(library_id)`,
		`CREATE INDEX IF NOT EXISTS idx_media_items_fingerprint ON media_items(fingerprint)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
