package core

import (
	"context"
	"sync/atomic"
	"time"
)

// WorkerStatus is the advisory state of a worker. It is written only by the
// worker itself and read by the pool for diagnostics, so a stale read is
// harmless.
type WorkerStatus int32

const (
	WorkerStarting WorkerStatus = iota
	WorkerIdle
	WorkerExecuting
	WorkerCleaning
	WorkerStopped
)

func (s WorkerStatus) String() string {
	switch s {
	case WorkerStarting:
		return "starting"
	case WorkerIdle:
		return "idle"
	case WorkerExecuting:
		return "executing"
	case WorkerCleaning:
		return "cleaning"
	case WorkerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// WorkerThread pulls (priority, task) items off the pool's shared queue and
// executes them. A task error or panic is captured into the task's result;
// it never escapes the worker. A worker idle past the pool's idle limit
// offers itself back to the pool for possible decommission.
type WorkerThread struct {
	id       int
	pool     *ThreadPool
	status   atomic.Int32
	lastIdle atomic.Int64 // unix nanos of the latest transition to idle
	exited   chan struct{}
}

func newWorkerThread(id int, pool *ThreadPool) *WorkerThread {
	w := &WorkerThread{
		id:     id,
		pool:   pool,
		exited: make(chan struct{}),
	}
	w.status.Store(int32(WorkerStarting))
	return w
}

// ID returns the worker's pool-local identifier.
func (w *WorkerThread) ID() int { return w.id }

// Status returns the worker's current advisory status.
func (w *WorkerThread) Status() WorkerStatus {
	return WorkerStatus(w.status.Load())
}

func (w *WorkerThread) setStatus(s WorkerStatus) {
	w.status.Store(int32(s))
}

func (w *WorkerThread) markIdle() {
	w.setStatus(WorkerIdle)
	w.lastIdle.Store(time.Now().UnixNano())
}

func (w *WorkerThread) idleSince() time.Time {
	return time.Unix(0, w.lastIdle.Load())
}

// start launches the worker loop on its own goroutine.
func (w *WorkerThread) start(ctx context.Context, shutdown <-chan struct{}) {
	go w.loop(ctx, shutdown)
}

func (w *WorkerThread) loop(ctx context.Context, shutdown <-chan struct{}) {
	defer func() {
		w.setStatus(WorkerStopped)
		w.pool.deregister(w)
		close(w.exited)
	}()

	w.markIdle()

	for {
		task, err := w.pool.queue.Pop(w.pool.config.PopTimeout, shutdown)
		switch err {
		case nil:
			w.execute(ctx, task)
			w.markIdle()
		case ErrTimeout:
			// Still idle. Past the idle limit, offer to quit; the pool
			// honors the offer only when capacity allows.
			if time.Since(w.idleSince()) >= w.pool.config.IdleTimeout {
				if w.pool.offerToQuit(w) {
					return
				}
				w.lastIdle.Store(time.Now().UnixNano())
			}
		case ErrShutdown:
			return
		}
	}
}

// execute runs one task, routing its outcome through Done with errors
// suppressed: the worker surfaces failures via log and metrics, never by
// crashing.
func (w *WorkerThread) execute(ctx context.Context, task *Task) {
	w.setStatus(WorkerExecuting)
	res := task.run(ctx)

	w.setStatus(WorkerCleaning)
	task.Done(res, true)
	w.pool.onTaskFinished(w, task, res)
}
