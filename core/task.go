package core

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// TaskPriority: scheduling priority for pool and dispatch queues
// =============================================================================

// TaskPriority orders work in the pool and dispatch queues. Higher values run
// first; within one priority level items run in submission order (FIFO).
type TaskPriority int

const (
	// TaskPriorityBestEffort: lowest priority, e.g. cache warming.
	TaskPriorityBestEffort TaskPriority = iota

	// TaskPriorityUserVisible: default priority, e.g. decoding the image the
	// user is about to see.
	TaskPriorityUserVisible

	// TaskPriorityUserBlocking: highest priority. The user is waiting on the
	// result right now; the viewer feels frozen until it lands.
	TaskPriorityUserBlocking
)

// ExecuteFunc performs a task's actual work. The core never looks inside it;
// it only decides when and where it runs. Implementations needing
// finer-grained cancellation than Stop provides must poll task.Stopped or ctx.
type ExecuteFunc func(ctx context.Context) (any, error)

// =============================================================================
// Task: cancellable, composable unit of work
// =============================================================================

// Task wraps an ExecuteFunc with a lifecycle: constructed inert, Initialize
// assigns identity and copies the shared context from the parent, Start either
// enqueues it on the pool or runs it inline, Done records the result and
// wakes waiters.
//
// Ownership: the submitter owns the Task until Start; execution ownership
// then transfers to the worker until Done returns. No two goroutines may run
// Execute on the same Task concurrently.
type Task struct {
	mu          sync.Mutex
	tag         string
	shared      SharedContext
	priority    TaskPriority
	execute     ExecuteFunc
	initialized bool
	stopFlag    chan struct{}
	stopOnce    sync.Once
	startTime   time.Time
	endTime     time.Time
	future      *Future
	doneResult  Result
	doneSet     bool
}

// NewTask creates an inert task around execute with default priority.
// Initialize must be called before Start.
func NewTask(execute ExecuteFunc) *Task {
	return &Task{
		priority: TaskPriorityUserVisible,
		execute:  execute,
		stopFlag: make(chan struct{}),
		future:   NewFuture(),
	}
}

// SetPriority changes the scheduling priority. Only meaningful before Start.
func (t *Task) SetPriority(p TaskPriority) *Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.priority = p
	return t
}

// Priority returns the scheduling priority.
func (t *Task) Priority() TaskPriority {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.priority
}

// Tag returns the task's unique identity, derived from the parent chain.
// Empty until Initialize.
func (t *Task) Tag() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tag
}

// Shared returns the task's shared context. Zero value until Initialize.
func (t *Task) Shared() SharedContext {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shared
}

// StartTime returns when execution began, zero if it has not.
func (t *Task) StartTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startTime
}

// EndTime returns when Done first ran, zero if it has not.
func (t *Task) EndTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endTime
}

// Future returns the single-assignment cell resolved when the task finishes.
func (t *Task) Future() *Future { return t.future }

// Initialize assigns the task's identity and copies the shared context from
// parent, applying override on top. A nil parent is allowed only when
// override supplies the shared context for a fresh task tree; otherwise
// ErrUninitializedParent is returned.
func (t *Task) Initialize(parent *Task, override *SharedContext) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.initialized {
		return nil
	}
	if parent == nil {
		if override == nil {
			return ErrUninitializedParent
		}
		override.fillDefaults()
		t.shared = *override
		t.tag = rootTag()
	} else {
		parent.mu.Lock()
		if !parent.initialized {
			parent.mu.Unlock()
			return ErrUninitializedParent
		}
		shared := parent.shared
		parentTag := parent.tag
		parent.mu.Unlock()

		t.shared = shared.merged(override)
		t.tag = t.shared.childTag(parentTag)
	}
	t.initialized = true
	return nil
}

// Start begins execution. With a pool handle in the shared context the task
// is enqueued at its priority and Start returns immediately; without one the
// task runs inline on the calling goroutine and Start returns its Done error.
func (t *Task) Start() error {
	t.mu.Lock()
	if !t.initialized {
		t.mu.Unlock()
		return ErrNotInitialized
	}
	pool := t.shared.Pool
	t.mu.Unlock()

	if pool != nil {
		return pool.Submit(t, t.Priority())
	}
	res := t.run(context.Background())
	return t.Done(res, false)
}

// run executes the work on the calling goroutine, capturing a panic or error
// into the returned Result. It never resolves the task; callers pair it with
// Done.
func (t *Task) run(ctx context.Context) Result {
	t.mu.Lock()
	execute := t.execute
	t.startTime = time.Now()
	t.mu.Unlock()

	if execute == nil {
		return Result{}
	}
	value, err := runCall(ctx, CallFunc(execute))
	return Result{Value: value, Err: NewTaskError(t.Tag(), err)}
}

// Done records the result exactly once: timing, the completion signal, and
// the resolved callbacks all fire on the first call. A second call keeps the
// original result and ignores the new one.
//
// When the stored result is an error and suppressError is false, that error
// is returned to the caller of Done. This is how a pooled worker routes a
// task failure into its own error handling without crashing.
func (t *Task) Done(res Result, suppressError bool) error {
	t.mu.Lock()
	if t.doneSet {
		res = t.doneResult
		t.mu.Unlock()
	} else {
		t.doneResult = res
		t.doneSet = true
		t.endTime = time.Now()
		t.mu.Unlock()
		t.future.resolve(res)
	}

	if suppressError {
		return nil
	}
	return res.Err
}

// Wait blocks until Done has been called, re-raising a stored error to the
// caller. A timeout of zero or less waits forever; ErrTimeout reports an
// elapsed budget.
func (t *Task) Wait(timeout time.Duration) (any, error) {
	return t.future.Wait(timeout)
}

// OnResolved registers cb to run once with the task and its result, on the
// goroutine that calls Done.
func (t *Task) OnResolved(cb func(*Task, Result)) {
	t.future.OnResolved(func(r Result) { cb(t, r) })
}

// Stop requests cancellation. It is advisory: it prevents compound tasks
// from starting their next child but does not interrupt an Execute already
// in flight.
func (t *Task) Stop() {
	t.stopOnce.Do(func() { close(t.stopFlag) })
}

// Stopped reports whether Stop has been requested. Execute implementations
// can poll it for cooperative cancellation.
func (t *Task) Stopped() bool {
	select {
	case <-t.stopFlag:
		return true
	default:
		return false
	}
}

// Finished reports whether Done has run.
func (t *Task) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doneSet
}

// NewInitializedTask is a convenience for root tasks: it creates the task and
// initializes it against a fresh shared context in one step.
func NewInitializedTask(execute ExecuteFunc, shared *SharedContext) (*Task, error) {
	t := NewTask(execute)
	if err := t.Initialize(nil, shared); err != nil {
		return nil, err
	}
	return t, nil
}
