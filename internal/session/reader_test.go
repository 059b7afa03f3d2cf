package session

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/foxseedlab/speechrelay/internal/audio"
)

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func drain(t *testing.T, q *audio.Queue) []string {
	t.Helper()
	var out []string
	for {
		c, err := q.Pop(context.Background())
		if errors.Is(err, audio.ErrQueueClosed) {
			return out
		}
		if err != nil {
			t.Fatalf("unexpected pop error: %v", err)
		}
		out = append(out, string(c))
	}
}

func TestReadSocket_ReframesAndFlushesPartialChunk(t *testing.T) {
	q := audio.NewQueue()
	var total int
	err := readSocket(bytes.NewReader([]byte("aaaabbbbcc")), q, 4, func(n int) { total += n })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := drain(t, q)
	if len(got) != 3 || got[0] != "aaaa" || got[1] != "bbbb" || got[2] != "cc" {
		t.Fatalf("unexpected chunks: %q", got)
	}
	if total != 10 {
		t.Fatalf("expected 10 bytes counted, got %d", total)
	}
}

func TestReadSocket_ClosesQueueOnReadError(t *testing.T) {
	q := audio.NewQueue()
	readErr := errors.New("connection reset")
	err := readSocket(&failingReader{data: []byte("aaaa"), err: readErr}, q, 4, func(int) {})
	if !errors.Is(err, readErr) {
		t.Fatalf("expected read error, got %v", err)
	}
	if got := drain(t, q); len(got) != 1 || got[0] != "aaaa" {
		t.Fatalf("unexpected chunks: %q", got)
	}
}

func TestReadSocket_EmptySourceOnlyCloses(t *testing.T) {
	q := audio.NewQueue()
	if err := readSocket(bytes.NewReader(nil), q, 4, func(int) {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := q.Pop(context.Background()); !errors.Is(err, audio.ErrQueueClosed) {
		t.Fatalf("expected closed queue, got %v", err)
	}
}
