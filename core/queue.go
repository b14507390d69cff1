package core

import (
	"container/heap"
	"sync"
	"time"
)

const defaultQueueCap = 16

// =============================================================================
// priorityQueue: min-heap keyed on (priority desc, sequence asc)
// =============================================================================

type queueItem[T any] struct {
	value    T
	priority TaskPriority
	sequence uint64
	index    int
}

// itemHeap implements heap.Interface. Higher priority pops first; the
// monotonic sequence keeps same-priority items FIFO.
type itemHeap[T any] []*queueItem[T]

func (h itemHeap[T]) Len() int { return len(h) }

func (h itemHeap[T]) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].sequence < h[j].sequence
}

func (h itemHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap[T]) Push(x any) {
	n := len(*h)
	item := x.(*queueItem[T])
	item.index = n
	*h = append(*h, item)
}

func (h *itemHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// priorityQueue is the unsynchronized core shared by the pool's WorkQueue and
// the dispatcher's call queue. Callers provide their own locking.
type priorityQueue[T any] struct {
	pq      itemHeap[T]
	nextSeq uint64
}

func newPriorityQueue[T any]() priorityQueue[T] {
	return priorityQueue[T]{pq: make(itemHeap[T], 0, defaultQueueCap)}
}

func (q *priorityQueue[T]) push(v T, priority TaskPriority) {
	item := &queueItem[T]{value: v, priority: priority, sequence: q.nextSeq}
	q.nextSeq++
	heap.Push(&q.pq, item)
}

func (q *priorityQueue[T]) pop() (T, bool) {
	var zero T
	if len(q.pq) == 0 {
		return zero, false
	}
	item := heap.Pop(&q.pq).(*queueItem[T])
	return item.value, true
}

func (q *priorityQueue[T]) len() int { return len(q.pq) }

func (q *priorityQueue[T]) clear() []T {
	out := make([]T, 0, len(q.pq))
	for _, item := range q.pq {
		out = append(out, item.value)
	}
	q.pq = make(itemHeap[T], 0, defaultQueueCap)
	q.nextSeq = 0
	return out
}

// =============================================================================
// WorkQueue: the pool's shared (priority, task) queue with blocking pop
// =============================================================================

// WorkQueue is the shared queue the pool pushes into and workers pull from.
// Pop blocks with a bounded timeout so shutdown signals and idle-limit checks
// are periodically re-evaluated even when no work arrives.
type WorkQueue struct {
	mu     sync.Mutex
	pq     priorityQueue[*Task]
	signal chan struct{}
}

// NewWorkQueue creates a WorkQueue. signalCap bounds the wakeup channel; the
// pool sizes it from its maximum worker count.
func NewWorkQueue(signalCap int) *WorkQueue {
	if signalCap < 1 {
		signalCap = 1
	}
	return &WorkQueue{
		pq:     newPriorityQueue[*Task](),
		signal: make(chan struct{}, signalCap),
	}
}

// Push enqueues task at the given priority and nudges one waiting worker.
func (q *WorkQueue) Push(task *Task, priority TaskPriority) {
	q.mu.Lock()
	q.pq.push(task, priority)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
		// Wakeup channel full; a worker is already being woken and will
		// drain the queue.
	}
}

// TryPop removes the highest-priority task without blocking.
func (q *WorkQueue) TryPop() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pq.pop()
}

// Pop blocks until a task is available, the timeout elapses (ErrTimeout), or
// stop is closed (ErrShutdown).
func (q *WorkQueue) Pop(timeout time.Duration, stop <-chan struct{}) (*Task, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if task, ok := q.TryPop(); ok {
			return task, nil
		}
		select {
		case <-q.signal:
		case <-timer.C:
			return nil, ErrTimeout
		case <-stop:
			return nil, ErrShutdown
		}
	}
}

// Len returns the number of queued tasks.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pq.len()
}

// Clear drops every queued task and returns them so the pool can resolve
// their futures with ErrShutdown.
func (q *WorkQueue) Clear() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pq.clear()
}
