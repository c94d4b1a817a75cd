// Package queue is a mutex-guarded bounded FIFO shared by the tap path and
// the journal writers.
package queue

import "sync"

// Queue holds at most limit items; limit <= 0 means unbounded. Offers to a
// full queue are counted and refused so the oldest items survive.
type Queue[T any] struct {
	mu      sync.Mutex
	buf     []T
	head    int
	limit   int
	dropped int
}

func New[T any](limit int) *Queue[T] {
	return &Queue[T]{limit: limit}
}

func (q *Queue[T]) size() int { return len(q.buf) - q.head }

func (q *Queue[T]) Offer(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limit > 0 && q.size() >= q.limit {
		q.dropped++
		return false
	}
	q.buf = append(q.buf, item)
	return true
}

// Requeue puts items back at the front, ahead of anything offered since
// they were drained. Items beyond the limit are dropped from the back.
func (q *Queue[T]) Requeue(items []T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	merged := make([]T, 0, len(items)+q.size())
	merged = append(merged, items...)
	merged = append(merged, q.buf[q.head:]...)
	if q.limit > 0 && len(merged) > q.limit {
		q.dropped += len(merged) - q.limit
		merged = merged[:q.limit]
	}
	q.buf, q.head = merged, 0
}

func (q *Queue[T]) Poll() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if q.size() == 0 {
		return zero, false
	}
	item := q.buf[q.head]
	q.buf[q.head] = zero
	q.head++
	if q.head == len(q.buf) {
		q.buf, q.head = q.buf[:0], 0
	} else if q.head > 32 && q.head*2 > len(q.buf) {
		q.buf = append(q.buf[:0], q.buf[q.head:]...)
		q.head = 0
	}
	return item, true
}

// Drain removes and returns every item, oldest first.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, q.size())
	copy(out, q.buf[q.head:])
	q.buf, q.head = q.buf[:0], 0
	return out
}

func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.buf)
	q.buf, q.head = q.buf[:0], 0
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size()
}

func (q *Queue[T]) Empty() bool { return q.Len() == 0 }

// Dropped counts refused offers and items cut by Requeue.
func (q *Queue[T]) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
