// Package queue implements the ready queue: a bounded, priority-ordered
// queue of task IDs with FIFO tie-breaking within a priority level.
package queue

import (
	"container/heap"
	"context"
	"sync"

	"github.com/example/atomsched/pkg/atomerr"
)

// Item is a single entry in the ready queue.
type Item struct {
	TaskID   string
	Priority int
	Seq      uint64 // submission order, used to break Priority ties FIFO
}

// innerHeap implements container/heap.Interface. Higher Priority comes
// first; within equal Priority, lower Seq (earlier submission) comes
// first.
type innerHeap []Item

func (h innerHeap) Len() int { return len(h) }
func (h innerHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].Seq < h[j].Seq
}
func (h innerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *innerHeap) Push(x any)   { *h = append(*h, x.(Item)) }
func (h *innerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is a bounded priority queue of ready task IDs, safe for
// concurrent use by multiple producers (scheduler dispatch) and
// consumers (worker pool).
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	h        innerHeap
	capacity int
	closed   bool
}

// New returns a Queue with the given capacity. A capacity of 0 means
// unbounded.
func New(capacity int) *Queue {
	q := &Queue{h: innerHeap{}, capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push adds an item to the queue. It returns KindQueueFull if the queue
// is at capacity.
func (q *Queue) Push(item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return atomerr.New(atomerr.KindInvalidState, "queue.Push", "queue is closed")
	}
	if q.capacity > 0 && len(q.h) >= q.capacity {
		return atomerr.New(atomerr.KindQueueFull, "queue.Push", "ready queue is at capacity")
	}
	heap.Push(&q.h, item)
	q.notEmpty.Signal()
	return nil
}

// Pop removes and returns the highest-priority item, blocking until one
// is available, the queue is closed, or ctx is done.
func (q *Queue) Pop(ctx context.Context) (Item, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.notEmpty.Broadcast()
			q.mu.Unlock()
		case <-done:
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.h) == 0 && !q.closed {
		if ctx.Err() != nil {
			return Item{}, ctx.Err()
		}
		q.notEmpty.Wait()
	}
	if len(q.h) == 0 {
		if ctx.Err() != nil {
			return Item{}, ctx.Err()
		}
		return Item{}, atomerr.New(atomerr.KindInvalidState, "queue.Pop", "queue is closed and empty")
	}
	item := heap.Pop(&q.h).(Item)
	return item, nil
}

// TryPop removes and returns the highest-priority item without blocking,
// reporting false if the queue is currently empty.
func (q *Queue) TryPop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return Item{}, false
	}
	return heap.Pop(&q.h).(Item), true
}

// Remove deletes the first queued item matching taskID, reporting whether
// one was found. Used by cancellation to pull a still-queued task out
// before a worker ever claims it.
func (q *Queue) Remove(taskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.h {
		if it.TaskID == taskID {
			heap.Remove(&q.h, i)
			return true
		}
	}
	return false
}

// Len returns the number of items currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

// Drain removes and returns all queued items, leaving the queue empty.
func (q *Queue) Drain() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.h))
	copy(out, q.h)
	q.h = q.h[:0]
	return out
}

// Close marks the queue closed, waking any blocked Pop callers. Pushes
// after Close fail with KindInvalidState.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notEmpty.Broadcast()
}
