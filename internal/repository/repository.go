package repository

import (
	"context"
	"time"
)

type CreateConnectionInput struct {
	ID         string
	RemoteAddr string
	StartedAt  time.Time
}

type CompleteConnectionInput struct {
	ID           string
	EndedAt      time.Time
	RestartCount int
	CloseReason  string
}

type InsertSessionInput struct {
	ConnectionID      string
	SessionIndex      int
	StartedAt         time.Time
	EndedAt           time.Time
	ReplayedChunks    int
	BridgingOffsetMs  int64
	FinalRequestEndMs int64
	ResultCount       int
}

type ConnectionRepository interface {
	CreateConnection(ctx context.Context, input CreateConnectionInput) (*Connection, error)
	CompleteConnection(ctx context.Context, input CompleteConnectionInput) error
}

type SessionRepository interface {
	InsertSession(ctx context.Context, input InsertSessionInput) error
}

type Repository interface {
	ConnectionRepository
	SessionRepository
}
