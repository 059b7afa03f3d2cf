package transcript

import (
	"fmt"
	"io"
	"sync"

	"github.com/foxseedlab/speechrelay/internal/transcript"
)

const (
	forcedFinalMarker = "final-"
	shortIDLength     = 8
)

// ConsoleSink prints transcripts for an operator terminal. Interim lines end
// with a carriage return so the next line overwrites them.
type ConsoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

func (s *ConsoleSink) Emit(event transcript.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := shortID(event.ConnectionID)
	var err error
	switch event.Kind {
	case transcript.KindInterim:
		_, err = fmt.Fprintf(s.w, "[%s] %s\r", prefix, event.Transcript)
	case transcript.KindFinal:
		_, err = fmt.Fprintf(s.w, "[%s] Final-%d: %s\n", prefix, event.CorrectedMs, event.Transcript)
	case transcript.KindForcedFinal:
		_, err = fmt.Fprintf(s.w, "[%s] %s\n", prefix, forcedFinalMarker)
	default:
		return fmt.Errorf("unknown transcript kind %q", event.Kind)
	}
	return err
}

func shortID(id string) string {
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}
