package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/speechrelay/internal/audio"
	"github.com/foxseedlab/speechrelay/internal/metrics"
	"github.com/foxseedlab/speechrelay/internal/repository"
	"github.com/foxseedlab/speechrelay/internal/transcriber"
	"github.com/foxseedlab/speechrelay/internal/transcript"
)

const ledgerWriteTimeout = 5 * time.Second

type relayConfig struct {
	connectionID string
	source       io.Reader
	conn         io.Closer
	transcriber  transcriber.Transcriber
	sink         transcript.Sink
	metrics      metrics.Recorder
	repo         repository.SessionRepository
	limit        time.Duration
	chunkBytes   int
	keywords     *regexp.Regexp
	now          func() time.Time
}

// Relay drives one client connection through consecutive recognition
// sessions until the socket, an exit keyword or the backend ends it.
//
//	starting   -> streaming   new generator and backend stream
//	streaming  -> restarting  response consumer returned
//	restarting -> starting    unless the state is closed
//	any        -> closed      queue and socket released
type Relay struct {
	cfg   relayConfig
	state *State
	queue *audio.Queue

	bytesReceived atomic.Int64
	sessions      []sessionSummary
	finals        int
	interims      int
}

type sessionSummary struct {
	index             int
	startedAt         time.Time
	endedAt           time.Time
	replayedChunks    int
	bridgingOffsetMs  int64
	finalRequestEndMs int64
	results           int
	outcome           consumeOutcome
}

func newRelay(cfg relayConfig) *Relay {
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.metrics == nil {
		cfg.metrics = metrics.Nop{}
	}
	return &Relay{
		cfg:   cfg,
		state: NewState(cfg.now()),
		queue: audio.NewQueue(),
	}
}

func (r *Relay) Run(ctx context.Context) CloseReason {
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		err := readSocket(r.cfg.source, r.queue, r.cfg.chunkBytes, func(n int) {
			r.bytesReceived.Add(int64(n))
			r.cfg.metrics.BytesReceived(n)
		})
		if err != nil {
			slog.Debug("socket reader stopped", "connection_id", r.cfg.connectionID, "error", err)
		}
	}()

	for !r.state.Closed() {
		r.runSession(ctx)
	}

	r.queue.Close()
	if err := r.cfg.conn.Close(); err != nil {
		slog.Debug("failed to close client connection", "connection_id", r.cfg.connectionID, "error", err)
	}
	<-readerDone
	return r.state.CloseReason()
}

func (r *Relay) runSession(ctx context.Context) {
	startedAt := r.cfg.now()
	r.state.BeginSession(startedAt)
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := r.cfg.transcriber.StartStreaming(sessionCtx, r.cfg.connectionID)
	if err != nil {
		if ctx.Err() != nil {
			r.state.Close(CloseReasonShutdown)
			return
		}
		slog.Error("failed to start recognition stream", "connection_id", r.cfg.connectionID, "error", err)
		r.state.Close(CloseReasonBackendError)
		return
	}

	gen := newChunkGenerator(r.state, r.queue, r.cfg.limit, r.cfg.now, r.cfg.metrics)
	sendDone := make(chan struct{})
	go func() {
		defer close(sendDone)
		r.pump(sessionCtx, gen, stream)
	}()

	consumer := &responseConsumer{
		connectionID: r.cfg.connectionID,
		state:        r.state,
		limit:        r.cfg.limit,
		now:          r.cfg.now,
		sink:         r.cfg.sink,
		keywords:     r.cfg.keywords,
		metrics:      r.cfg.metrics,
	}
	outcome := consumer.Consume(sessionCtx, stream)
	cancel()
	_ = stream.Close()
	<-sendDone

	r.restart(startedAt, gen, consumer, outcome)
}

func (r *Relay) pump(ctx context.Context, gen *chunkGenerator, stream transcriber.Stream) {
	for {
		pcm, err := gen.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if err := stream.CloseSend(); err != nil {
					slog.Debug("failed to half-close recognition stream", "connection_id", r.cfg.connectionID, "error", err)
				}
			}
			return
		}
		if err := stream.Write(pcm); err != nil {
			slog.Debug("failed to write audio to recognition stream", "connection_id", r.cfg.connectionID, "error", err)
			return
		}
	}
}

func (r *Relay) restart(startedAt time.Time, gen *chunkGenerator, consumer *responseConsumer, outcome consumeOutcome) {
	h := r.state.EndSession()
	r.finals += consumer.finals
	r.interims += consumer.interims
	if h.forceFinal {
		err := r.cfg.sink.Emit(transcript.Event{
			ConnectionID: r.cfg.connectionID,
			Kind:         transcript.KindForcedFinal,
			RestartCount: h.sessionIndex,
			EmittedAt:    r.cfg.now(),
		})
		if err != nil {
			slog.Warn("failed to emit forced final marker", "connection_id", r.cfg.connectionID, "error", err)
		}
	}

	summary := sessionSummary{
		index:             h.sessionIndex,
		startedAt:         startedAt,
		endedAt:           r.cfg.now(),
		replayedChunks:    gen.Replayed(),
		bridgingOffsetMs:  h.bridgingOffsetMs,
		finalRequestEndMs: h.finalRequestEndMs,
		results:           consumer.results,
		outcome:           outcome,
	}
	r.sessions = append(r.sessions, summary)
	r.recordSession(summary)

	if r.state.Closed() {
		return
	}
	r.cfg.metrics.SessionRestarted()
	slog.Info("restarting recognition session",
		"connection_id", r.cfg.connectionID,
		"session_index", summary.index,
		"outcome", outcome.String(),
		"restart_count", h.sessionIndex+1,
		"previous_chunks", h.previousChunks,
		"final_request_end_ms", h.finalRequestEndMs,
		"bridging_offset_ms", h.bridgingOffsetMs)
}

func (r *Relay) recordSession(s sessionSummary) {
	if r.cfg.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ledgerWriteTimeout)
	defer cancel()
	if err := r.cfg.repo.InsertSession(ctx, repository.InsertSessionInput{
		ConnectionID:      r.cfg.connectionID,
		SessionIndex:      s.index,
		StartedAt:         s.startedAt,
		EndedAt:           s.endedAt,
		ReplayedChunks:    s.replayedChunks,
		BridgingOffsetMs:  s.bridgingOffsetMs,
		FinalRequestEndMs: s.finalRequestEndMs,
		ResultCount:       s.results,
	}); err != nil {
		slog.Error("failed to record recognition session", "connection_id", r.cfg.connectionID, "session_index", s.index, "error", err)
	}
}

// Restarts is the number of times the relay opened a new recognition session
// after the first one.
func (r *Relay) Restarts() int {
	if len(r.sessions) == 0 {
		return 0
	}
	return len(r.sessions) - 1
}
