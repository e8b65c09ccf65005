package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS admin_accounts (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS media_assets (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		media_type TEXT NOT NULL,
		file_url   TEXT NOT NULL,
		created_by TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS view_events (
		id          TEXT PRIMARY KEY,
		media_id    TEXT NOT NULL REFERENCES media_assets (id),
		viewer_ip   TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS view_events_media_occurred_idx
		ON view_events (media_id, occurred_at)`,
}

// MigratePostgres applies the streamgate schema. Statements are idempotent so
// the migration can run on every boot.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
