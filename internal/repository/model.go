package repository

import "time"

type ConnectionStatus string

const (
	ConnectionStatusOpen   ConnectionStatus = "open"
	ConnectionStatusClosed ConnectionStatus = "closed"
)

type Connection struct {
	ID           string
	RemoteAddr   string
	StartedAt    time.Time
	EndedAt      *time.Time
	Status       ConnectionStatus
	RestartCount int
	CloseReason  string
}
