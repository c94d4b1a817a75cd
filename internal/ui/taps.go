package ui

import (
	"github.com/arlens/flicker/internal/queue"
)

// TapQueueCapacity bounds pending taps; further taps are dropped.
const TapQueueCapacity = 16

// Tap is a touch position in view pixels.
type Tap struct {
	X, Y float32
}

// TapQueue buffers taps from the UI goroutine until the render goroutine
// polls them, one per tick.
type TapQueue struct {
	q *queue.Queue[Tap]
}

// NewTapQueue creates an empty queue with TapQueueCapacity slots.
func NewTapQueue() *TapQueue {
	return &TapQueue{q: queue.New[Tap](TapQueueCapacity)}
}

// Offer enqueues a tap. It returns false when the queue is full.
func (t *TapQueue) Offer(x, y float32) bool {
	return t.q.Offer(Tap{X: x, Y: y})
}

// Poll returns the oldest pending tap.
func (t *TapQueue) Poll() (Tap, bool) {
	return t.q.Poll()
}

// Len returns the number of pending taps.
func (t *TapQueue) Len() int {
	return t.q.Len()
}

// Clear drops every pending tap.
func (t *TapQueue) Clear() {
	t.q.Clear()
}
