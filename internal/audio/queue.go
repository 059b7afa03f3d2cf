package audio

import (
	"context"
	"errors"
	"sync"
)

var ErrQueueClosed = errors.New("audio queue closed")

// Chunk is one fixed-duration slice of PCM. It must not be modified once queued.
type Chunk []byte

// Queue is an unbounded FIFO of chunks terminated by an in-band close marker.
// Push never blocks. Chunks queued before Close are still delivered; Pop reports
// ErrQueueClosed once the marker is reached and keeps reporting it afterwards.
//
// There is no capacity limit: a stalled consumer lets the queue grow without bound.
type Queue struct {
	mu     sync.Mutex
	items  []Chunk
	closed bool
	ready  chan struct{}
}

func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{})}
}

func (q *Queue) Push(c Chunk) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, c)
	q.notifyLocked()
}

// Close enqueues the close marker. Calling it more than once is harmless.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notifyLocked()
}

// Pop blocks until a chunk is available, the close marker is reached or ctx is done.
func (q *Queue) Pop(ctx context.Context) (Chunk, error) {
	for {
		q.mu.Lock()
		c, ok, err := q.takeLocked()
		ready := q.ready
		q.mu.Unlock()
		if ok {
			return c, err
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TryPop returns immediately. ok is false when the queue is momentarily empty.
func (q *Queue) TryPop() (c Chunk, ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	c, ok, err = q.takeLocked()
	return c, ok, err
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) takeLocked() (Chunk, bool, error) {
	if len(q.items) > 0 {
		c := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		return c, true, nil
	}
	if q.closed {
		return nil, true, ErrQueueClosed
	}
	return nil, false, nil
}

func (q *Queue) notifyLocked() {
	close(q.ready)
	q.ready = make(chan struct{})
}
