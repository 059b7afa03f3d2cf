package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/foxseedlab/speechrelay/internal/transcriber"
	"github.com/foxseedlab/speechrelay/internal/transcript"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func newTestRelay(conn net.Conn, stt transcriber.Transcriber, sink transcript.Sink, repo *mockRepository, limit time.Duration) *Relay {
	return newRelay(relayConfig{
		connectionID: "conn-1",
		source:       conn,
		conn:         conn,
		transcriber:  stt,
		sink:         sink,
		repo:         repo,
		limit:        limit,
		chunkBytes:   4,
		keywords:     keywordPattern([]string{"exit", "quit"}),
		now:          fixedClock(),
	})
}

func runRelay(ctx context.Context, r *Relay) <-chan CloseReason {
	out := make(chan CloseReason, 1)
	go func() {
		out <- r.Run(ctx)
	}()
	return out
}

func waitReason(t *testing.T, ch <-chan CloseReason) CloseReason {
	t.Helper()
	select {
	case reason := <-ch:
		return reason
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not finish")
		return ""
	}
}

func TestRelayRun_ReplaysUnacknowledgedTailAcrossRestart(t *testing.T) {
	server, client := net.Pipe()
	defer func() {
		_ = client.Close()
	}()
	stt := newFakeTranscriber(
		[]scriptStep{
			{afterBytes: 12, resp: resultResponse("hello there", 200, true)},
			{err: fmt.Errorf("%w: stream duration exceeded", transcriber.ErrStreamLimit)},
		},
		[]scriptStep{
			{afterBytes: 8, resp: resultResponse("exit now", 150, true)},
		},
	)
	sink := &recordingSink{}
	repo := &mockRepository{}
	r := newTestRelay(server, stt, sink, repo, 300*time.Millisecond)
	result := runRelay(context.Background(), r)

	if _, err := client.Write([]byte("aaaabbbbcccc")); err != nil {
		t.Fatalf("write first session audio: %v", err)
	}
	for idx := range 2 {
		select {
		case got := <-stt.started:
			if got != idx {
				t.Fatalf("expected session %d to start, got %d", idx, got)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("session %d did not start", idx)
		}
	}
	if _, err := client.Write([]byte("dddd")); err != nil {
		t.Fatalf("write second session audio: %v", err)
	}

	if reason := waitReason(t, result); reason != CloseReasonKeyword {
		t.Fatalf("expected keyword close, got %q", reason)
	}

	first := bytes.Join(stt.stream(0).writtenUnits(), nil)
	if string(first) != "aaaabbbbcccc" {
		t.Fatalf("unexpected first session audio: %q", first)
	}
	second := stt.stream(1).writtenUnits()
	if len(second) == 0 || string(second[0]) != "ccccdddd" {
		t.Fatalf("expected replayed tail before live audio, got %q", second)
	}

	events := sink.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected two events, got %+v", events)
	}
	if events[0].Kind != transcript.KindFinal || events[0].CorrectedMs != 200 || events[0].RestartCount != 0 {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Kind != transcript.KindFinal || events[1].CorrectedMs != 350 || events[1].RestartCount != 1 {
		t.Fatalf("unexpected second event: %+v", events[1])
	}

	if r.Restarts() != 1 {
		t.Fatalf("expected one restart, got %d", r.Restarts())
	}
	if len(repo.sessions) != 2 {
		t.Fatalf("expected two session rows, got %d", len(repo.sessions))
	}
	if got := repo.sessions[1]; got.ReplayedChunks != 1 || got.BridgingOffsetMs != 100 || got.FinalRequestEndMs != 150 {
		t.Fatalf("unexpected second session row: %+v", got)
	}
	if r.finals != 2 || r.bytesReceived.Load() != 16 {
		t.Fatalf("unexpected totals: finals=%d bytes=%d", r.finals, r.bytesReceived.Load())
	}
}

func TestRelayRun_SocketCloseEmitsForcedFinal(t *testing.T) {
	server, client := net.Pipe()
	stt := newFakeTranscriber([]scriptStep{
		{afterBytes: 8, resp: resultResponse("good mor", 100, false)},
		{afterSendClosed: true, err: io.EOF},
	})
	sink := &recordingSink{}
	r := newTestRelay(server, stt, sink, &mockRepository{}, time.Minute)
	result := runRelay(context.Background(), r)

	if _, err := client.Write([]byte("aaaabbbb")); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	_ = client.Close()

	if reason := waitReason(t, result); reason != CloseReasonSocketClosed {
		t.Fatalf("expected socket close, got %q", reason)
	}
	events := sink.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected interim and forced final, got %+v", events)
	}
	if events[0].Kind != transcript.KindInterim || events[0].Transcript != "good mor" {
		t.Fatalf("unexpected interim: %+v", events[0])
	}
	if events[1].Kind != transcript.KindForcedFinal {
		t.Fatalf("expected forced final, got %+v", events[1])
	}
	if r.Restarts() != 0 {
		t.Fatalf("expected no restarts, got %d", r.Restarts())
	}
}

func TestRelayRun_StartFailureClosesWithBackendError(t *testing.T) {
	server, client := net.Pipe()
	defer func() {
		_ = client.Close()
	}()
	stt := newFakeTranscriber()
	stt.startErr = errors.New("permission denied")
	sink := &recordingSink{}
	r := newTestRelay(server, stt, sink, &mockRepository{}, time.Minute)

	if reason := waitReason(t, runRelay(context.Background(), r)); reason != CloseReasonBackendError {
		t.Fatalf("expected backend error close, got %q", reason)
	}
	if len(sink.snapshot()) != 0 {
		t.Fatalf("expected no events, got %+v", sink.snapshot())
	}
	if _, err := client.Write([]byte("aaaa")); err == nil {
		t.Fatal("expected socket to be closed after relay finished")
	}
}

func TestRelayRun_BackendFailureClosesConnection(t *testing.T) {
	server, client := net.Pipe()
	defer func() {
		_ = client.Close()
	}()
	stt := newFakeTranscriber([]scriptStep{
		{afterBytes: 4, err: errors.New("rpc error: code = Internal")},
	})
	r := newTestRelay(server, stt, &recordingSink{}, &mockRepository{}, time.Minute)
	result := runRelay(context.Background(), r)

	if _, err := client.Write([]byte("aaaa")); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if reason := waitReason(t, result); reason != CloseReasonBackendError {
		t.Fatalf("expected backend error close, got %q", reason)
	}
	if r.Restarts() != 0 {
		t.Fatalf("expected no restart after backend failure, got %d", r.Restarts())
	}
}

func TestRelayRun_ContextCancelShutsDown(t *testing.T) {
	server, client := net.Pipe()
	defer func() {
		_ = client.Close()
	}()
	stt := newFakeTranscriber()
	r := newTestRelay(server, stt, &recordingSink{}, &mockRepository{}, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	result := runRelay(ctx, r)

	select {
	case <-stt.started:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not start")
	}
	cancel()
	if reason := waitReason(t, result); reason != CloseReasonShutdown {
		t.Fatalf("expected shutdown close, got %q", reason)
	}
}
