// Package taskcore is the concurrency and task-scheduling core of the
// lumaview image viewer.
//
// Every other part of the application builds on four primitives: a
// single-assignment result cell (Future), a cancellable unit of work with
// sequential, concurrent, and queue-driven compositions (Task), a
// dynamically sized worker pool fed by a priority queue (ThreadPool), and a
// dispatch queue that lets background goroutines safely request work on the
// one goroutine that owns UI state (Dispatcher).
//
// # Quick Start
//
// Initialize the global pool at application startup:
//
//	taskcore.InitGlobalPool(2, 8, 5*time.Second)
//	defer taskcore.ShutdownGlobalPool()
//
// Submit background work and wait for the result:
//
//	future, _ := taskcore.SubmitFunc(func(ctx context.Context) (any, error) {
//		return decodeImage(path)
//	}, taskcore.TaskPriorityUserVisible)
//	img, err := future.Wait(time.Second)
//
// # The designated goroutine
//
// UI-owned state follows a strict single-writer discipline: one goroutine
// runs the dispatch loop, and everyone else enqueues.
//
//	taskcore.InitMainDispatcher(core.DispatcherConfig{Name: "ui"})
//	go backgroundWork()
//	taskcore.RunForever(ctx, 16*time.Millisecond) // the UI goroutine stays here
//
// Background goroutines then use DispatchAsync for fire-and-forget updates,
// DispatchSync for blocking calls, and DispatchOneshot to coalesce redundant
// updates such as redraw requests.
//
// # Priorities and ordering
//
// Work carries a TaskPriority; higher values run first and items of equal
// priority run in submission order. The pool and the dispatcher are
// independent channels with no ordering between them.
//
// # Failure model
//
// A task's error or panic is captured into its Result and surfaces only to
// callers that Wait or inspect the Future; workers and the dispatch loop
// never crash on task failures. A Future resolved with an error that nobody
// inspects drops that error silently, so fire-and-forget submissions should
// be genuinely fire-and-forget.
package taskcore
