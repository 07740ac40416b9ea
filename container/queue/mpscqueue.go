package queue

import (
	"sync"
)

// MPSCQueue is an unbounded (or bounded by maxSize) multi producer single
// consumer queue. Pop hands the consumer the whole pending batch at once.
type MPSCQueue[T any] struct {
	in         []T
	out        []T
	mu         sync.Mutex
	cond       *sync.Cond
	maxSize    int
	shrinkSize int
	closed     bool
}

func NewMPSCQueue[T any](maxSize, shrinkSize int) *MPSCQueue[T] {
	q := &MPSCQueue[T]{
		maxSize:    maxSize,
		shrinkSize: shrinkSize,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends v. It reports false when the queue is closed, or when maxSize
// is exceeded, in which case the queue closes itself.
func (q *MPSCQueue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if q.maxSize > 0 && len(q.in) >= q.maxSize {
		q.closed = true
		q.mu.Unlock()
		q.cond.Signal()
		return false
	}
	q.in = append(q.in, v)
	q.mu.Unlock()
	q.cond.Signal()
	return true
}

func (q *MPSCQueue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop blocks until items are pending or the queue is closed. ok is false once
// the queue is closed; items pushed before Close are still delivered first.
func (q *MPSCQueue[T]) Pop() (batch []T, ok bool) {
	q.clearOrShrinkOut()
	q.mu.Lock()
	for len(q.in) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.in) == 0 {
		q.mu.Unlock()
		return nil, false
	}
	q.in, q.out = q.out, q.in
	q.mu.Unlock()
	return q.out, true
}

func (q *MPSCQueue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.in)
}

func (q *MPSCQueue[T]) clearOrShrinkOut() {
	if q.shrinkSize == 0 || cap(q.out) < q.shrinkSize {
		clear(q.out)
		q.out = q.out[:0]
	} else {
		q.out = nil
	}
}
