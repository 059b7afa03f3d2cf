package transcript

import (
	"errors"
	"time"
)

type Kind string

const (
	KindInterim     Kind = "interim"
	KindFinal       Kind = "final"
	KindForcedFinal Kind = "forced_final"
)

// Event is one line of transcript output. CorrectedMs places the result on a
// single timeline spanning every restart of the connection.
type Event struct {
	ConnectionID string    `json:"connection_id"`
	Kind         Kind      `json:"kind"`
	Transcript   string    `json:"transcript,omitempty"`
	CorrectedMs  int64     `json:"corrected_ms"`
	RestartCount int       `json:"restart_count"`
	EmittedAt    time.Time `json:"emitted_at"`
}

type Sink interface {
	Emit(event Event) error
}

// MultiSink delivers every event to each sink, even when an earlier one fails.
type MultiSink []Sink

func (m MultiSink) Emit(event Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
