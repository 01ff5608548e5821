// Package db stores assembly history in Postgres.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps the connection pool; queries live next to the table they touch.
type DB struct {
	*sql.DB
}

// New opens a Postgres pool and verifies the connection.
func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{DB: conn}, nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS videos (
		id               UUID PRIMARY KEY,
		file_name        TEXT NOT NULL,
		video_url        TEXT NOT NULL,
		orientation      TEXT NOT NULL,
		scene_count      INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL,
		has_captions     BOOLEAN NOT NULL DEFAULT FALSE,
		client_id        TEXT NOT NULL DEFAULT '',
		recreate         BOOLEAN NOT NULL DEFAULT FALSE,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS videos_created_at_idx ON videos (created_at DESC);
`

// EnsureSchema creates the history table when it does not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
