package pipeline

import "sync"

// Queue is an unbounded FIFO of paths shared by pool workers.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []string
	closed bool
}

// NewQueue returns an empty open queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends path. It returns false once the queue is closed.
func (q *Queue) Push(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, path)
	q.cond.Signal()
	return true
}

// Pop removes the oldest path, blocking while the queue is open and empty.
// ok is false when the queue is closed and drained.
func (q *Queue) Pop() (path string, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return "", false
	}
	path = q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	return path, true
}

// Close stops further pushes and wakes blocked poppers. Items already queued
// can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued paths.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
