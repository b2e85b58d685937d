package services

import "sync"

// MatchQueue holds named FIFO waiting lists of connection ids, one list per
// match mode. Pairing is strict arrival order, two at a time; a third arrival
// waits for the next pair cycle. All operations share one mutex so that two
// concurrent pairing attempts can never dequeue the same pair twice.
type MatchQueue struct {
	mu     sync.Mutex
	queues map[string][]string
	queued map[string]string // connection id -> queue id
}

func NewMatchQueue() *MatchQueue {
	return &MatchQueue{
		queues: make(map[string][]string),
		queued: make(map[string]string),
	}
}

// Enqueue appends a connection to the named queue. A connection already
// waiting anywhere is not duplicated.
func (q *MatchQueue) Enqueue(queueID, connID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queued[connID]; ok {
		return
	}
	q.queues[queueID] = append(q.queues[queueID], connID)
	q.queued[connID] = queueID
}

// Size returns the current waiting count for the named queue.
func (q *MatchQueue) Size(queueID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[queueID])
}

// PeekOpponent returns the other waiting connection when exactly two are
// present in the queue.
func (q *MatchQueue) PeekOpponent(connID, queueID string) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	waiting := q.queues[queueID]
	if len(waiting) != 2 {
		return "", false
	}
	for _, id := range waiting {
		if id != connID {
			return id, true
		}
	}
	return "", false
}

// DequeueBoth atomically removes and returns the two earliest waiting
// connections. It fails without side effects when fewer than two are waiting.
func (q *MatchQueue) DequeueBoth(queueID string) (string, string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	waiting := q.queues[queueID]
	if len(waiting) < 2 {
		return "", "", false
	}
	first, second := waiting[0], waiting[1]
	q.queues[queueID] = waiting[2:]
	delete(q.queued, first)
	delete(q.queued, second)
	return first, second, true
}

// Remove takes a connection out of whichever queue it is waiting in and
// reports whether it was waiting at all.
func (q *MatchQueue) Remove(connID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	queueID, ok := q.queued[connID]
	if !ok {
		return false
	}
	delete(q.queued, connID)
	waiting := q.queues[queueID]
	for i, id := range waiting {
		if id == connID {
			q.queues[queueID] = append(waiting[:i], waiting[i+1:]...)
			break
		}
	}
	return true
}
