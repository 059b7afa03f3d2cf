package transcriber

import (
	"context"
	"errors"
	"time"
)

// ErrStreamLimit is returned by Stream.Recv when the backend ends a stream
// because it reached its own maximum duration.
var ErrStreamLimit = errors.New("recognition stream reached backend duration limit")

type Alternative struct {
	Transcript string
}

type Result struct {
	Alternatives []Alternative
	IsFinal      bool
	// EndOffset is relative to the start of the stream's audio.
	EndOffset time.Duration
}

type Response struct {
	Results []Result
}

// Stream is one duplex recognition exchange. Write and CloseSend may be called
// from a different goroutine than Recv. Recv returns io.EOF once the backend
// has delivered every result.
type Stream interface {
	Write(pcm []byte) error
	CloseSend() error
	Recv() (*Response, error)
	Close() error
}

type Transcriber interface {
	StartStreaming(ctx context.Context, connectionID string) (Stream, error)
}
