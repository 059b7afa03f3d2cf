package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE connection_status AS ENUM ('open', 'closed'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS relay_connections (
		id TEXT PRIMARY KEY,
		remote_addr TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		status connection_status NOT NULL DEFAULT 'open',
		restart_count INTEGER NOT NULL DEFAULT 0,
		close_reason TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_relay_connections_open ON relay_connections (started_at) WHERE status = 'open'`,
	`CREATE TABLE IF NOT EXISTS recognition_sessions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		connection_id TEXT NOT NULL REFERENCES relay_connections(id) ON DELETE CASCADE,
		session_index INTEGER NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ NOT NULL,
		replayed_chunks INTEGER NOT NULL,
		bridging_offset_ms BIGINT NOT NULL,
		final_request_end_ms BIGINT NOT NULL,
		result_count INTEGER NOT NULL,
		UNIQUE(connection_id, session_index)
	)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
