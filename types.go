package taskcore

import "github.com/lumaview/taskcore/core"

// Re-export commonly used types from the core package so most callers can
// import taskcore alone.

// Future is the single-assignment result cell.
type Future = core.Future

// Result is the tagged outcome of a call or task.
type Result = core.Result

// CallFunc is a deferred call.
type CallFunc = core.CallFunc

// Task is the cancellable, composable unit of work.
type Task = core.Task

// ExecuteFunc performs a task's actual work.
type ExecuteFunc = core.ExecuteFunc

// SharedContext carries the handles a task tree inherits.
type SharedContext = core.SharedContext

// ThreadPool is the dynamically sized worker pool.
type ThreadPool = core.ThreadPool

// PoolConfig holds the knobs of a ThreadPool.
type PoolConfig = core.PoolConfig

// Dispatcher is the GUI-thread dispatch queue.
type Dispatcher = core.Dispatcher

// DispatcherConfig holds the knobs of a Dispatcher.
type DispatcherConfig = core.DispatcherConfig

// SequentialTaskset runs children in order.
type SequentialTaskset = core.SequentialTaskset

// ConcurrentAndTaskset fans children out and waits for all of them.
type ConcurrentAndTaskset = core.ConcurrentAndTaskset

// QueueTaskset pulls children from an input queue.
type QueueTaskset = core.QueueTaskset

// QueueTasksetConfig configures a QueueTaskset.
type QueueTasksetConfig = core.QueueTasksetConfig

// TaskPriority orders work in the pool and dispatch queues.
type TaskPriority = core.TaskPriority

// Priority constants; higher values run first.
const (
	TaskPriorityBestEffort   TaskPriority = core.TaskPriorityBestEffort
	TaskPriorityUserVisible  TaskPriority = core.TaskPriorityUserVisible
	TaskPriorityUserBlocking TaskPriority = core.TaskPriorityUserBlocking
)

// Error taxonomy.
var (
	ErrTimeout         = core.ErrTimeout
	ErrAlreadyResolved = core.ErrAlreadyResolved
	ErrNotInitialized  = core.ErrNotInitialized
	ErrShutdown        = core.ErrShutdown
)

// Constructors and helpers.
var (
	NewFuture               = core.NewFuture
	NewFrozenFuture         = core.NewFrozenFuture
	NewTask                 = core.NewTask
	NewInitializedTask      = core.NewInitializedTask
	NewSharedContext        = core.NewSharedContext
	NewThreadPool           = core.NewThreadPool
	NewThreadPoolWithConfig = core.NewThreadPoolWithConfig
	NewDispatcher           = core.NewDispatcher
	NewSequentialTaskset    = core.NewSequentialTaskset
	NewConcurrentAndTaskset = core.NewConcurrentAndTaskset
	NewQueueTaskset         = core.NewQueueTaskset
	CurrentPool             = core.CurrentPool
	CurrentDispatcher       = core.CurrentDispatcher
	DefaultPoolConfig       = core.DefaultPoolConfig
)
