// Package mctpqueue implements the bounded, thread-safe FIFOs that connect
// the pipeline's seven stages, and the object pools built on top of them.
// A native Go channel almost fits: TryPush-without-blocking is `select
// default`, and a normal Pop is a channel receive. The piece a channel
// can't express cleanly is Pop's dual contract — "return nil immediately
// if empty" versus "block until an element arrives or the queue is
// explicitly shut down" — while still allowing every blocked popper to
// wake on shutdown without closing the channel out from under a producer
// that might still be mid-TryPush. A mutex plus condition variable gives
// both call shapes directly, which is the same tradeoff spec.md's own
// bounded-queue design documents for the C implementation this core is
// grown from.
package mctpqueue

import (
	"context"
	"sync"
)

// Queue is a fixed-capacity FIFO of T.
type Queue[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []T
	cap      int
	shutdown bool
}

// New creates a Queue with the given capacity.
func New[T any](capacity int) *Queue[T] {
	q := &Queue[T]{
		items: make([]T, 0, capacity),
		cap:   capacity,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// TryPush appends v without blocking. It returns false if the queue is
// full or has been shut down.
func (q *Queue[T]) TryPush(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.shutdown || len(q.items) >= q.cap {
		return false
	}
	q.items = append(q.items, v)
	q.cond.Signal()
	return true
}

// Pop removes and returns the head of the queue. If the queue is empty it
// blocks until an element arrives, ctx is done, or the queue is shut down;
// ok is false in the latter two cases.
func (q *Queue[T]) Pop(ctx context.Context) (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.shutdown {
		if ctx != nil && ctx.Err() != nil {
			return v, false
		}
		q.waitOrCancel(ctx)
	}

	if len(q.items) == 0 {
		return v, false
	}

	v = q.items[0]
	q.items = q.items[1:]
	return v, true
}

// TryPop returns immediately: (zero, false) if the queue is empty,
// otherwise the head element and true. It never blocks regardless of
// shutdown state — this is the spec's wait=0 pop variant.
func (q *Queue[T]) TryPop() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return v, false
	}
	v = q.items[0]
	q.items = q.items[1:]
	return v, true
}

// Shutdown marks the queue closed and wakes every blocked popper. It is
// idempotent and irreversible.
func (q *Queue[T]) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.shutdown {
		return
	}
	q.shutdown = true
	q.cond.Broadcast()
}

// Len reports the current occupancy, primarily for tests and metrics.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// waitOrCancel blocks on the condition variable until a push or a
// shutdown wakes it, or, when ctx is non-nil, until ctx is done: a
// context.AfterFunc broadcasts on the condvar at cancellation, and the
// loop in Pop then re-checks ctx.Err(). With a nil ctx it is a plain
// cond.Wait.
func (q *Queue[T]) waitOrCancel(ctx context.Context) {
	if ctx == nil {
		q.cond.Wait()
		return
	}
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
		close(done)
	})
	defer stop()
	q.cond.Wait()
}
