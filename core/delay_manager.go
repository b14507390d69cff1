package core

import (
	"container/heap"
	"sync"
	"time"
)

// delayedItem is a task scheduled for future submission.
type delayedItem struct {
	runAt    time.Time
	task     *Task
	priority TaskPriority
	index    int
}

// delayedHeap implements heap.Interface ordered by runAt.
type delayedHeap []*delayedItem

func (h delayedHeap) Len() int           { return len(h) }
func (h delayedHeap) Less(i, j int) bool { return h[i].runAt.Before(h[j].runAt) }
func (h delayedHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayedHeap) Push(x any) {
	n := len(*h)
	item := x.(*delayedItem)
	item.index = n
	*h = append(*h, item)
}

func (h *delayedHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// delayManager holds not-yet-due tasks on a timer heap and submits each one
// to the pool when its time arrives. One manager, one goroutine, per pool
// start/stop cycle.
type delayManager struct {
	pool     *ThreadPool
	mu       sync.Mutex
	pq       delayedHeap
	wakeup   chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newDelayManager(pool *ThreadPool) *delayManager {
	dm := &delayManager{
		pool:   pool,
		pq:     make(delayedHeap, 0),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	heap.Init(&dm.pq)
	go dm.loop()
	return dm
}

func (dm *delayManager) add(task *Task, delay time.Duration, priority TaskPriority) {
	dm.mu.Lock()
	heap.Push(&dm.pq, &delayedItem{
		runAt:    time.Now().Add(delay),
		task:     task,
		priority: priority,
	})
	dm.mu.Unlock()

	select {
	case <-dm.stopCh:
		// Lost the race with stop; the loop will not run again.
		dm.flush()
		return
	default:
	}
	select {
	case dm.wakeup <- struct{}{}:
	default:
	}
}

func (dm *delayManager) stop() {
	dm.stopOnce.Do(func() { close(dm.stopCh) })
}

func (dm *delayManager) loop() {
	for {
		dm.mu.Lock()
		var wait time.Duration
		if len(dm.pq) == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(dm.pq[0].runAt)
		}

		if wait <= 0 {
			item := heap.Pop(&dm.pq).(*delayedItem)
			dm.mu.Unlock()
			// A stop race rejects the submission; resolve the task so its
			// waiters are not left hanging.
			if err := dm.pool.Submit(item.task, item.priority); err != nil {
				item.task.Done(Result{Err: err}, true)
			}
			continue
		}
		dm.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-dm.wakeup:
			timer.Stop()
		case <-dm.stopCh:
			timer.Stop()
			dm.flush()
			return
		}
	}
}

// flush resolves every not-yet-due task with ErrShutdown.
func (dm *delayManager) flush() {
	dm.mu.Lock()
	items := dm.pq
	dm.pq = nil
	dm.mu.Unlock()

	for _, item := range items {
		item.task.Done(Result{Err: ErrShutdown}, true)
	}
}
