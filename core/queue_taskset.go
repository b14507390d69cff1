package core

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// QueueTasksetConfig configures a QueueTaskset.
type QueueTasksetConfig struct {
	// WaitEach makes the set run each child to completion before pulling the
	// next. When false, children are submitted to the pool and run
	// concurrently.
	WaitEach bool

	// MaxInFlight bounds concurrent children in pooled mode. Zero or less
	// means unbounded.
	MaxInFlight int64

	// Capacity is the buffer of the input queue. Defaults to 16.
	Capacity int
}

// QueueTaskset is a long-lived task that repeatedly pulls child tasks from an
// input queue. Enqueue feeds it from any goroutine; Terminate (the nil
// sentinel) asks it to finish the in-flight children and exit. A child's
// error is captured into that child's own Future and never kills the loop.
//
// Stop flushes every pending, not-yet-started child and asks the running
// child to stop.
type QueueTaskset struct {
	*Task

	config QueueTasksetConfig
	input  chan *Task
	sem    *semaphore.Weighted
	wg     sync.WaitGroup

	mu      sync.Mutex
	current *Task
}

// NewQueueTaskset creates the set. Like the other compositions it is a Task:
// Initialize and Start it, then Enqueue children into it.
func NewQueueTaskset(cfg QueueTasksetConfig) *QueueTaskset {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 16
	}
	s := &QueueTaskset{
		config: cfg,
		input:  make(chan *Task, cfg.Capacity),
	}
	if !cfg.WaitEach && cfg.MaxInFlight > 0 {
		s.sem = semaphore.NewWeighted(cfg.MaxInFlight)
	}
	s.Task = NewTask(s.consume)
	return s
}

// Enqueue hands a child to the set. It blocks when the input buffer is full
// and returns ErrShutdown once the set has been stopped.
func (s *QueueTaskset) Enqueue(child *Task) error {
	if s.Stopped() {
		return ErrShutdown
	}
	select {
	case s.input <- child:
		return nil
	case <-s.stopFlag:
		return ErrShutdown
	}
}

// Terminate sends the sentinel: the set finishes children already in flight
// and then exits its loop.
func (s *QueueTaskset) Terminate() {
	select {
	case s.input <- nil:
	case <-s.stopFlag:
	}
}

// Pending returns the number of enqueued children not yet pulled.
func (s *QueueTaskset) Pending() int { return len(s.input) }

// Stop flushes pending children and requests the running child to stop. The
// in-flight child still finishes; see Task.Stop for the advisory contract.
func (s *QueueTaskset) Stop() {
	s.Task.Stop()
	s.mu.Lock()
	if s.current != nil {
		s.current.Stop()
	}
	s.mu.Unlock()
	s.flush()
}

// flush drains every not-yet-started child, resolving each with ErrShutdown
// so waiters are not left hanging.
func (s *QueueTaskset) flush() {
	for {
		select {
		case child := <-s.input:
			if child != nil {
				child.Done(Result{Err: ErrShutdown}, true)
			}
		default:
			return
		}
	}
}

// consume is the set's ExecuteFunc: the queue-pulling loop.
func (s *QueueTaskset) consume(ctx context.Context) (any, error) {
	defer s.wg.Wait()

	for {
		select {
		case <-s.stopFlag:
			s.flush()
			return nil, nil
		case child := <-s.input:
			if child == nil {
				return nil, nil
			}
			if err := child.Initialize(s.Task, nil); err != nil {
				child.Done(Result{Err: err}, true)
				continue
			}
			if s.config.WaitEach {
				s.runInline(ctx, child)
			} else if err := s.runPooled(ctx, child); err != nil {
				child.Done(Result{Err: err}, true)
			}
		}
	}
}

// runInline runs child to completion on the loop's goroutine. The child's
// error stays in its own result.
func (s *QueueTaskset) runInline(ctx context.Context, child *Task) {
	s.mu.Lock()
	s.current = child
	s.mu.Unlock()

	res := child.run(ctx)
	child.Done(res, true)

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

// runPooled submits child to the pool, holding a semaphore slot until it
// resolves when MaxInFlight is set.
func (s *QueueTaskset) runPooled(ctx context.Context, child *Task) error {
	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	s.wg.Add(1)
	child.OnResolved(func(*Task, Result) {
		if s.sem != nil {
			s.sem.Release(1)
		}
		s.wg.Done()
	})
	if err := child.Start(); err != nil {
		// OnResolved already registered; resolving via Done below releases
		// the slot and the wait group through the callback.
		return err
	}
	return nil
}
