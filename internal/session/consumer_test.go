package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/foxseedlab/speechrelay/internal/metrics"
	"github.com/foxseedlab/speechrelay/internal/transcriber"
	"github.com/foxseedlab/speechrelay/internal/transcript"
)

func newTestConsumer(state *State, sink transcript.Sink, now func() time.Time, limit time.Duration) *responseConsumer {
	return &responseConsumer{
		connectionID: "conn-1",
		state:        state,
		limit:        limit,
		now:          now,
		sink:         sink,
		keywords:     keywordPattern([]string{"exit", "quit"}),
		metrics:      metrics.Nop{},
	}
}

func TestResponseConsumerConsume_EmitsInterimAndFinal(t *testing.T) {
	now := fixedClock()
	state := NewState(now())
	sink := &recordingSink{}
	c := newTestConsumer(state, sink, now, time.Minute)
	stream := newFakeStream(context.Background(), []scriptStep{
		{resp: resultResponse("hel", 300, false)},
		{resp: &transcriber.Response{}},
		{resp: &transcriber.Response{Results: []transcriber.Result{{IsFinal: true}}}},
		{resp: resultResponse("hello", 900, true)},
		{err: io.EOF},
	})

	if outcome := c.Consume(context.Background(), stream); outcome != outcomeExhausted {
		t.Fatalf("expected exhausted, got %s", outcome)
	}
	events := sink.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected two events, got %+v", events)
	}
	if events[0].Kind != transcript.KindInterim || events[0].Transcript != "hel" || events[0].CorrectedMs != 300 {
		t.Fatalf("unexpected interim: %+v", events[0])
	}
	if events[1].Kind != transcript.KindFinal || events[1].Transcript != "hello" || events[1].CorrectedMs != 900 {
		t.Fatalf("unexpected final: %+v", events[1])
	}
	if c.results != 2 || c.finals != 1 || c.interims != 1 {
		t.Fatalf("unexpected counters: results=%d finals=%d interims=%d", c.results, c.finals, c.interims)
	}
	if state.Closed() {
		t.Fatal("exhausted stream must not close the connection")
	}
}

func TestResponseConsumerConsume_ExitKeywordInFinalCloses(t *testing.T) {
	now := fixedClock()
	state := NewState(now())
	sink := &recordingSink{}
	c := newTestConsumer(state, sink, now, time.Minute)
	stream := newFakeStream(context.Background(), []scriptStep{
		{resp: resultResponse("please exit", 400, false)},
		{resp: resultResponse("I exited the room", 600, true)},
		{resp: resultResponse("OK QUIT now", 900, true)},
		{resp: resultResponse("never delivered", 1200, true)},
	})

	if outcome := c.Consume(context.Background(), stream); outcome != outcomeKeyword {
		t.Fatalf("expected keyword outcome, got %s", outcome)
	}
	if state.CloseReason() != CloseReasonKeyword {
		t.Fatalf("expected keyword close, got %q", state.CloseReason())
	}
	events := sink.snapshot()
	if len(events) != 3 || events[2].Transcript != "OK QUIT now" {
		t.Fatalf("expected the keyword final to be emitted last, got %+v", events)
	}
}

func TestResponseConsumerConsume_StreamLimitIsNotAClose(t *testing.T) {
	now := fixedClock()
	state := NewState(now())
	c := newTestConsumer(state, &recordingSink{}, now, time.Minute)
	stream := newFakeStream(context.Background(), []scriptStep{
		{err: fmt.Errorf("%w: exceeded", transcriber.ErrStreamLimit)},
	})

	if outcome := c.Consume(context.Background(), stream); outcome != outcomeLimit {
		t.Fatalf("expected limit outcome, got %s", outcome)
	}
	if state.Closed() {
		t.Fatal("backend duration limit must not close the connection")
	}
}

func TestResponseConsumerConsume_BackendErrorCloses(t *testing.T) {
	now := fixedClock()
	state := NewState(now())
	c := newTestConsumer(state, &recordingSink{}, now, time.Minute)
	stream := newFakeStream(context.Background(), []scriptStep{
		{err: errors.New("unavailable")},
	})

	if outcome := c.Consume(context.Background(), stream); outcome != outcomeError {
		t.Fatalf("expected error outcome, got %s", outcome)
	}
	if state.CloseReason() != CloseReasonBackendError {
		t.Fatalf("expected backend_error, got %q", state.CloseReason())
	}
}

func TestResponseConsumerConsume_LimitGuardStopsBeforeEmitting(t *testing.T) {
	t0 := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	current := t0
	now := func() time.Time { return current }
	state := NewState(t0)
	sink := &recordingSink{}
	c := newTestConsumer(state, sink, now, time.Second)
	stream := newFakeStream(context.Background(), []scriptStep{
		{resp: resultResponse("late", 1200, true)},
	})

	current = t0.Add(2 * time.Second)
	if outcome := c.Consume(context.Background(), stream); outcome != outcomeLimit {
		t.Fatalf("expected limit outcome, got %s", outcome)
	}
	if len(sink.snapshot()) != 0 {
		t.Fatalf("expected no events past the limit, got %+v", sink.snapshot())
	}
	if state.SessionExpired(current, time.Second) {
		t.Fatal("limit guard must restart the session clock")
	}
}

func TestKeywordPattern(t *testing.T) {
	if keywordPattern(nil) != nil || keywordPattern([]string{" ", ""}) != nil {
		t.Fatal("expected nil pattern without keywords")
	}
	re := keywordPattern([]string{"exit", "a.b"})
	cases := map[string]bool{
		"Exit":         true,
		"time to EXIT": true,
		"exiting":      false,
		"a.b":          true,
		"axb":          false,
	}
	for text, want := range cases {
		if got := re.MatchString(text); got != want {
			t.Fatalf("MatchString(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestResponseConsumerConsume_DrainingSessionKeepsFlushedFinal(t *testing.T) {
	t0 := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	current := t0.Add(2 * time.Second)
	now := func() time.Time { return current }
	state := NewState(t0)
	state.StartDraining()
	sink := &recordingSink{}
	c := newTestConsumer(state, sink, now, time.Second)
	stream := newFakeStream(context.Background(), []scriptStep{
		{resp: resultResponse("flushed words", 950, true)},
		{err: io.EOF},
	})

	if outcome := c.Consume(context.Background(), stream); outcome != outcomeExhausted {
		t.Fatalf("expected exhausted, got %s", outcome)
	}
	events := sink.snapshot()
	if len(events) != 1 || events[0].Transcript != "flushed words" {
		t.Fatalf("expected the flushed final to be emitted, got %+v", events)
	}
	if h := state.EndSession(); h.finalRequestEndMs != 950 {
		t.Fatalf("expected flushed final to advance the request end, got %d", h.finalRequestEndMs)
	}

	state.BeginSession(t0)
	if !state.ExpireSession(current, time.Second) {
		t.Fatal("a new session must honour the limit guard again")
	}
}
