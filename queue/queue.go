package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/mezonai/mmn-faucet/types"
)

// ErrBackpressure is returned when the queue is at capacity. Callers surface
// it as "try again later"; the request is never silently dropped.
var ErrBackpressure = errors.New("request queue is full")

// ErrClosed is returned by Enqueue after shutdown has begun.
var ErrClosed = errors.New("request queue is closed")

// RequestQueue is a bounded FIFO of drip requests. Enqueue never blocks the
// calling front-end; Dequeue is performed exclusively by the dispatcher's
// single submission loop.
type RequestQueue struct {
	requests chan *types.DripRequest
	mu       sync.Mutex
	closed   bool
}

// NewRequestQueue creates a queue holding at most capacity requests.
func NewRequestQueue(capacity int) *RequestQueue {
	if capacity <= 0 {
		capacity = 100
	}
	return &RequestQueue{
		requests: make(chan *types.DripRequest, capacity),
	}
}

// Enqueue adds a request without blocking. It fails with ErrBackpressure when
// the queue is full and ErrClosed once shutdown has begun.
func (q *RequestQueue) Enqueue(req *types.DripRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	select {
	case q.requests <- req:
		return nil
	default:
		return ErrBackpressure
	}
}

// Dequeue blocks until a request is available, the queue is closed and
// drained, or ctx is done. The second return is false when no request will
// ever arrive again.
func (q *RequestQueue) Dequeue(ctx context.Context) (*types.DripRequest, bool) {
	// Cancellation wins over a ready request so shutdown can fail the
	// remainder through Drain instead of racing the consumer for them.
	if ctx.Err() != nil {
		return nil, false
	}
	select {
	case req, ok := <-q.requests:
		return req, ok
	case <-ctx.Done():
		return nil, false
	}
}

// Len returns the number of queued requests.
func (q *RequestQueue) Len() int {
	return len(q.requests)
}

// Close stops intake. Queued requests remain dequeueable until Drain is
// called or the channel empties.
func (q *RequestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.requests)
	}
}

// Drain removes and returns every remaining request so shutdown can fail
// them explicitly rather than discard them. Close must be called first.
func (q *RequestQueue) Drain() []*types.DripRequest {
	var remaining []*types.DripRequest
	for req := range q.requests {
		remaining = append(remaining, req)
	}
	return remaining
}
