package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/foxseedlab/speechrelay/internal/audio"
	"github.com/foxseedlab/speechrelay/internal/metrics"
)

// chunkGenerator produces the outbound audio of a single recognition session.
// The first unit of a restarted session is prefixed with the replayed tail of
// the previous session. Next returns io.EOF when the request side should end.
type chunkGenerator struct {
	state   *State
	queue   *audio.Queue
	limit   time.Duration
	now     func() time.Time
	metrics metrics.Recorder

	replayed int
	done     bool
}

func newChunkGenerator(state *State, queue *audio.Queue, limit time.Duration, now func() time.Time, rec metrics.Recorder) *chunkGenerator {
	return &chunkGenerator{
		state:   state,
		queue:   queue,
		limit:   limit,
		now:     now,
		metrics: rec,
	}
}

func (g *chunkGenerator) Next(ctx context.Context) ([]byte, error) {
	if g.done {
		return nil, io.EOF
	}
	if g.state.SessionExpired(g.now(), g.limit) {
		g.done = true
		g.state.StartDraining()
		return nil, io.EOF
	}

	var batch [][]byte
	if replay := g.state.TakeReplay(g.limit.Milliseconds()); len(replay) > 0 {
		g.replayed = len(replay)
		g.metrics.ChunksReplayed(len(replay))
		for _, c := range replay {
			batch = append(batch, c)
		}
	}

	g.metrics.QueueDepth(g.queue.Len())
	c, err := g.queue.Pop(ctx)
	if err != nil {
		if errors.Is(err, audio.ErrQueueClosed) {
			g.done = true
			g.state.Close(CloseReasonSocketClosed)
			return nil, io.EOF
		}
		return nil, err
	}
	g.state.RecordPulled(c)
	batch = append(batch, c)

	// Drain whatever is already buffered. A close marker here ends the
	// sequence on the following call so the collected batch is still sent.
	for {
		c, ok, err := g.queue.TryPop()
		if !ok || err != nil {
			break
		}
		g.state.RecordPulled(c)
		batch = append(batch, c)
	}
	return bytes.Join(batch, nil), nil
}

func (g *chunkGenerator) Replayed() int {
	return g.replayed
}
