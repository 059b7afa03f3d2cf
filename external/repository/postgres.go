package repository

import (
	"context"
	"time"

	"github.com/foxseedlab/speechrelay/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is the subset of *pgxpool.Pool the repository uses.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	db dbtx
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return newPostgresRepository(pool)
}

func newPostgresRepository(db dbtx) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateConnection(ctx context.Context, input repository.CreateConnectionInput) (*repository.Connection, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO relay_connections (id, remote_addr, started_at, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, remote_addr, started_at, ended_at, status, restart_count, close_reason`,
		input.ID, input.RemoteAddr, input.StartedAt, string(repository.ConnectionStatusOpen))
	var c repository.Connection
	var endedAt *time.Time
	err := row.Scan(&c.ID, &c.RemoteAddr, &c.StartedAt, &endedAt, &c.Status, &c.RestartCount, &c.CloseReason)
	if err != nil {
		return nil, err
	}
	c.EndedAt = endedAt
	return &c, nil
}

func (r *PostgresRepository) CompleteConnection(ctx context.Context, input repository.CompleteConnectionInput) error {
	_, err := r.db.Exec(ctx,
		`UPDATE relay_connections
		 SET status = $2, ended_at = $3, restart_count = $4, close_reason = $5
		 WHERE id = $1`,
		input.ID, string(repository.ConnectionStatusClosed), input.EndedAt, input.RestartCount, input.CloseReason)
	return err
}

func (r *PostgresRepository) InsertSession(ctx context.Context, input repository.InsertSessionInput) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO recognition_sessions
		 (connection_id, session_index, started_at, ended_at, replayed_chunks, bridging_offset_ms, final_request_end_ms, result_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		input.ConnectionID, input.SessionIndex, input.StartedAt, input.EndedAt,
		input.ReplayedChunks, input.BridgingOffsetMs, input.FinalRequestEndMs, input.ResultCount)
	return err
}
