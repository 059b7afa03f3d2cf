package repository

import (
	"context"

	"github.com/foxseedlab/speechrelay/internal/repository"
)

// NoopRepository is used when no database is configured.
type NoopRepository struct{}

func NewNoopRepository() repository.Repository {
	return NoopRepository{}
}

func (NoopRepository) CreateConnection(_ context.Context, input repository.CreateConnectionInput) (*repository.Connection, error) {
	return &repository.Connection{
		ID:         input.ID,
		RemoteAddr: input.RemoteAddr,
		StartedAt:  input.StartedAt,
		Status:     repository.ConnectionStatusOpen,
	}, nil
}

func (NoopRepository) CompleteConnection(_ context.Context, _ repository.CompleteConnectionInput) error {
	return nil
}

func (NoopRepository) InsertSession(_ context.Context, _ repository.InsertSessionInput) error {
	return nil
}
