// Package queue buffers records between producers on the dispatch path and
// one batch writer.
package queue

import "sync"

// Queue is safe for any number of producers. Items pushed by one goroutine
// keep their relative order; interleaving across goroutines is unspecified.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	q.items = append(q.items, items...)
	q.mu.Unlock()
}

// Requeue puts items back in front of anything pushed since they were
// drained, so a failed batch is retried before newer records.
func (q *Queue[T]) Requeue(items []T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(items[:len(items):len(items)], q.items...)
	q.mu.Unlock()
}

// Drain hands the buffered items to the caller and leaves the queue empty.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	out := q.items
	q.items = nil
	q.mu.Unlock()
	return out
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}
