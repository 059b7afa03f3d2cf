package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/foxseedlab/speechrelay/internal/metrics"
	"github.com/foxseedlab/speechrelay/internal/transcriber"
	"github.com/foxseedlab/speechrelay/internal/transcript"
)

type consumeOutcome int

const (
	outcomeExhausted consumeOutcome = iota
	outcomeLimit
	outcomeKeyword
	outcomeError
)

func (o consumeOutcome) String() string {
	switch o {
	case outcomeExhausted:
		return "exhausted"
	case outcomeLimit:
		return "limit"
	case outcomeKeyword:
		return "keyword"
	case outcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// responseConsumer walks the recognition results of one session.
type responseConsumer struct {
	connectionID string
	state        *State
	limit        time.Duration
	now          func() time.Time
	sink         transcript.Sink
	keywords     *regexp.Regexp
	metrics      metrics.Recorder

	results  int
	finals   int
	interims int
}

func (c *responseConsumer) Consume(ctx context.Context, stream transcriber.Stream) consumeOutcome {
	for {
		resp, err := stream.Recv()
		if err != nil {
			return c.handleRecvError(ctx, err)
		}

		if c.state.ExpireSession(c.now(), c.limit) {
			return outcomeLimit
		}
		if len(resp.Results) == 0 {
			continue
		}
		result := resp.Results[0]
		if len(result.Alternatives) == 0 {
			continue
		}
		text := result.Alternatives[0].Transcript
		corrected := c.state.RecordResult(result.EndOffset.Milliseconds(), result.IsFinal, c.limit.Milliseconds())
		c.results++
		c.metrics.ResultReceived(result.IsFinal)

		if !result.IsFinal {
			c.interims++
			c.emit(transcript.KindInterim, text, corrected)
			continue
		}
		c.finals++
		c.emit(transcript.KindFinal, text, corrected)
		if c.keywords != nil && c.keywords.MatchString(text) {
			slog.Info("exit keyword recognized; closing connection", "connection_id", c.connectionID, "transcript", text)
			c.state.Close(CloseReasonKeyword)
			return outcomeKeyword
		}
	}
}

func (c *responseConsumer) handleRecvError(ctx context.Context, err error) consumeOutcome {
	switch {
	case errors.Is(err, io.EOF):
		return outcomeExhausted
	case errors.Is(err, transcriber.ErrStreamLimit):
		slog.Info("recognition stream closed by backend duration limit", "connection_id", c.connectionID)
		return outcomeLimit
	case ctx.Err() != nil:
		c.state.Close(CloseReasonShutdown)
		return outcomeError
	default:
		slog.Error("recognition stream failed; closing connection", "connection_id", c.connectionID, "error", err)
		c.state.Close(CloseReasonBackendError)
		return outcomeError
	}
}

func (c *responseConsumer) emit(kind transcript.Kind, text string, correctedMs int64) {
	err := c.sink.Emit(transcript.Event{
		ConnectionID: c.connectionID,
		Kind:         kind,
		Transcript:   text,
		CorrectedMs:  correctedMs,
		RestartCount: c.state.RestartCount(),
		EmittedAt:    c.now(),
	})
	if err != nil {
		slog.Warn("failed to emit transcript", "connection_id", c.connectionID, "kind", kind, "error", err)
	}
}

// keywordPattern matches any of words as a whole word, ignoring case.
func keywordPattern(words []string) *regexp.Regexp {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
}
