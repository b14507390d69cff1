package taskcore

import (
	"context"
	"sync"
	"time"

	"github.com/lumaview/taskcore/core"
)

// =============================================================================
// Global pool and main dispatcher (singletons)
// =============================================================================

var (
	globalPool     *core.ThreadPool
	mainDispatcher *core.Dispatcher
	globalMu       sync.Mutex
)

// InitGlobalPool creates and starts the process-wide background pool. It is
// the pool image decode, thumbnailing, and prefetch work lands on unless a
// subsystem brings its own.
func InitGlobalPool(minWorkers, maxWorkers int, idleTimeout time.Duration) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPool != nil {
		return // Already initialized
	}
	globalPool = core.NewThreadPool(minWorkers, maxWorkers, idleTimeout)
	globalPool.Start(true)
}

// InitGlobalPoolWithConfig is InitGlobalPool with an explicit config.
func InitGlobalPoolWithConfig(cfg core.PoolConfig) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPool != nil {
		return
	}
	globalPool = core.NewThreadPoolWithConfig(cfg)
	globalPool.Start(true)
}

// GlobalPool returns the global pool. It panics if InitGlobalPool has not
// been called.
func GlobalPool() *core.ThreadPool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPool == nil {
		panic("taskcore: global pool not initialized, call InitGlobalPool first")
	}
	return globalPool
}

// ShutdownGlobalPool stops the global pool, waiting for in-flight work.
func ShutdownGlobalPool() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPool != nil {
		globalPool.Stop(true)
		globalPool = nil
	}
}

// Submit enqueues task on the global pool.
func Submit(task *core.Task, priority core.TaskPriority) error {
	return GlobalPool().Submit(task, priority)
}

// SubmitFunc wraps fn in a task on the global pool and returns its Future.
func SubmitFunc(fn core.CallFunc, priority core.TaskPriority) (*core.Future, error) {
	return GlobalPool().SubmitFunc(fn, priority)
}

// =============================================================================
// Main dispatcher helpers
// =============================================================================

// InitMainDispatcher creates the dispatcher for the designated UI goroutine.
func InitMainDispatcher(cfg core.DispatcherConfig) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if mainDispatcher != nil {
		return
	}
	mainDispatcher = core.NewDispatcher(cfg)
}

// MainDispatcher returns the main dispatcher. It panics if
// InitMainDispatcher has not been called.
func MainDispatcher() *core.Dispatcher {
	globalMu.Lock()
	defer globalMu.Unlock()

	if mainDispatcher == nil {
		panic("taskcore: main dispatcher not initialized, call InitMainDispatcher first")
	}
	return mainDispatcher
}

// ShutdownMainDispatcher stops the main dispatcher, failing pending calls
// with ErrShutdown.
func ShutdownMainDispatcher() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if mainDispatcher != nil {
		mainDispatcher.Stop()
		mainDispatcher = nil
	}
}

// DispatchAsync enqueues fn for the designated goroutine and returns its
// Future.
func DispatchAsync(fn core.CallFunc) *core.Future {
	return MainDispatcher().DispatchAsync(fn)
}

// DispatchSync runs fn on the designated goroutine and blocks for its
// result; called from the designated goroutine it runs inline.
func DispatchSync(ctx context.Context, fn core.CallFunc) (any, error) {
	return MainDispatcher().DispatchSync(ctx, fn)
}

// DispatchOneshot coalesces fn under category; only the latest pending call
// per category executes on the next drain.
func DispatchOneshot(category string, fn core.CallFunc) {
	MainDispatcher().DispatchOneshot(category, fn)
}

// RunForever binds the calling goroutine as the designated consumer of the
// main dispatcher.
func RunForever(ctx context.Context, iterationBudget time.Duration) error {
	return MainDispatcher().RunForever(ctx, iterationBudget)
}
