package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_EmptyPoll(t *testing.T) {
	q := New[string](4)
	assert.True(t, q.Empty())
	_, ok := q.Poll()
	assert.False(t, ok)
}

func TestQueue_OrderAcrossCompaction(t *testing.T) {
	q := New[int](0)
	next := 0
	for i := range 200 {
		require.True(t, q.Offer(i))
		if i%3 == 0 {
			v, ok := q.Poll()
			require.True(t, ok)
			assert.Equal(t, next, v)
			next++
		}
	}
	for _, v := range q.Drain() {
		assert.Equal(t, next, v)
		next++
	}
	assert.Equal(t, 200, next)
	assert.True(t, q.Empty())
}

func TestQueue_FullKeepsOldest(t *testing.T) {
	q := New[int](2)
	assert.True(t, q.Offer(1))
	assert.True(t, q.Offer(2))
	assert.False(t, q.Offer(3))
	assert.Equal(t, 1, q.Dropped())

	v, _ := q.Poll()
	assert.Equal(t, 1, v)
	assert.True(t, q.Offer(4))
	assert.Equal(t, []int{2, 4}, q.Drain())
}

func TestQueue_Requeue(t *testing.T) {
	q := New[int](4)
	q.Offer(1)
	q.Offer(2)
	batch := q.Drain()
	q.Offer(3)

	q.Requeue(batch)
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []int{1, 2, 3}, q.Drain())

	q.Offer(9)
	q.Offer(10)
	q.Offer(11)
	q.Requeue([]int{7, 8})
	assert.Equal(t, []int{7, 8, 9, 10}, q.Drain())
	assert.Equal(t, 1, q.Dropped())
}

func TestQueue_Clear(t *testing.T) {
	q := New[int](8)
	q.Offer(1)
	q.Poll()
	q.Offer(2)
	q.Clear()
	assert.Zero(t, q.Len())
	assert.Empty(t, q.Drain())
}

func TestQueue_ConcurrentOffers(t *testing.T) {
	q := New[int](500)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				q.Offer(g*100 + i)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 500, q.Len())
	assert.Equal(t, 300, q.Dropped())
}
