package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchQueueEnqueueIsIdempotent(t *testing.T) {
	q := NewMatchQueue()

	q.Enqueue("queue:HARD", "conn-a")
	q.Enqueue("queue:HARD", "conn-a")
	q.Enqueue("queue:HARD", "conn-a")

	assert.Equal(t, 1, q.Size("queue:HARD"))
}

func TestMatchQueuePairsInArrivalOrder(t *testing.T) {
	q := NewMatchQueue()

	q.Enqueue("queue:HARD", "conn-a")
	q.Enqueue("queue:HARD", "conn-b")
	q.Enqueue("queue:HARD", "conn-c")

	first, second, ok := q.DequeueBoth("queue:HARD")
	require.True(t, ok)
	assert.Equal(t, "conn-a", first)
	assert.Equal(t, "conn-b", second)

	// the third arrival waits for the next pair cycle
	assert.Equal(t, 1, q.Size("queue:HARD"))
	_, _, ok = q.DequeueBoth("queue:HARD")
	assert.False(t, ok)
}

func TestMatchQueueLoneConnectionNeverPairs(t *testing.T) {
	q := NewMatchQueue()

	q.Enqueue("queue:NORMAL", "conn-a")

	_, _, ok := q.DequeueBoth("queue:NORMAL")
	assert.False(t, ok)
	assert.Equal(t, 1, q.Size("queue:NORMAL"))
}

func TestMatchQueuePeekOpponent(t *testing.T) {
	q := NewMatchQueue()

	q.Enqueue("queue:HARD", "conn-a")
	_, ok := q.PeekOpponent("conn-a", "queue:HARD")
	assert.False(t, ok)

	q.Enqueue("queue:HARD", "conn-b")
	opponent, ok := q.PeekOpponent("conn-a", "queue:HARD")
	require.True(t, ok)
	assert.Equal(t, "conn-b", opponent)
}

func TestMatchQueueRemove(t *testing.T) {
	q := NewMatchQueue()

	q.Enqueue("queue:HARD", "conn-a")
	q.Enqueue("queue:HARD", "conn-b")

	assert.True(t, q.Remove("conn-a"))
	assert.False(t, q.Remove("conn-a"))
	assert.Equal(t, 1, q.Size("queue:HARD"))

	// removed connections can requeue
	q.Enqueue("queue:HARD", "conn-a")
	first, second, ok := q.DequeueBoth("queue:HARD")
	require.True(t, ok)
	assert.Equal(t, "conn-b", first)
	assert.Equal(t, "conn-a", second)
}

func TestMatchQueueDequeueBothIsExclusive(t *testing.T) {
	q := NewMatchQueue()
	for i := 0; i < 100; i++ {
		q.Enqueue("queue:HARD", fmt.Sprintf("conn-%03d", i))
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				first, second, ok := q.DequeueBoth("queue:HARD")
				if !ok {
					return
				}
				mu.Lock()
				seen[first]++
				seen[second]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// every connection paired exactly once, none twice
	assert.Len(t, seen, 100)
	for connID, count := range seen {
		assert.Equalf(t, 1, count, "connection %s paired %d times", connID, count)
	}
}
