package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type dispatcherKeyType struct{}

var dispatcherKey dispatcherKeyType

// CurrentDispatcher returns the Dispatcher whose loop is executing the
// current call, or nil when the context did not come from a dispatch loop.
// This is how DispatchSync detects that it is already on the designated
// goroutine.
func CurrentDispatcher(ctx context.Context) *Dispatcher {
	if v := ctx.Value(dispatcherKey); v != nil {
		return v.(*Dispatcher)
	}
	return nil
}

// DispatcherConfig holds the knobs of a Dispatcher.
type DispatcherConfig struct {
	// Name labels the dispatcher in logs.
	Name string

	// Logger receives loop lifecycle events and call failures. Defaults to
	// DefaultLogger.
	Logger Logger
}

// =============================================================================
// Dispatcher: the GUI-thread dispatch queue
// =============================================================================

// Dispatcher lets background goroutines request work on the one goroutine
// that owns UI state. Any goroutine may enqueue; only the designated
// goroutine, the one inside RunForever (or calling Drain from its own loop),
// ever executes items.
//
// Items are frozen Futures ordered by (priority, submission order). Oneshot
// categories coalesce redundant pending updates: only the latest call per
// category survives to the next drain.
type Dispatcher struct {
	config DispatcherConfig

	mu           sync.Mutex
	queue        priorityQueue[*Future]
	oneshots     map[string]CallFunc
	oneshotOrder []string
	stopped      bool // guarded by mu so no push can race Stop's drain

	signal   chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	bound    atomic.Bool
}

// NewDispatcher creates an idle dispatcher. Nothing executes until some
// goroutine enters RunForever or drives Drain itself.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Name == "" {
		cfg.Name = "main"
	}
	if cfg.Logger == nil {
		cfg.Logger = NewDefaultLogger()
	}
	return &Dispatcher{
		config:   cfg,
		queue:    newPriorityQueue[*Future](),
		oneshots: make(map[string]CallFunc),
		signal:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

// QueueDepth returns the number of pending calls, coalesced items included.
func (d *Dispatcher) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.len() + len(d.oneshotOrder)
}

// DispatchAsync enqueues fn at default priority and returns its Future. The
// call runs on the designated goroutine during a future drain cycle; calls
// enqueued from the loop itself are likewise deferred to the next cycle, so
// execution never reenters mid-iteration.
//
// After Stop, the returned Future is already resolved with ErrShutdown.
func (d *Dispatcher) DispatchAsync(fn CallFunc) *Future {
	return d.DispatchAsyncPriority(fn, TaskPriorityUserVisible)
}

// DispatchAsyncPriority is DispatchAsync at an explicit priority.
func (d *Dispatcher) DispatchAsyncPriority(fn CallFunc, priority TaskPriority) *Future {
	f := NewFrozenFuture(fn)
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		f.Fail(ErrShutdown)
		return f
	}
	d.queue.push(f, priority)
	d.mu.Unlock()
	d.wake()
	return f
}

// DispatchSync runs fn on the designated goroutine and returns its result.
// Called from the designated goroutine itself (detected through ctx), fn runs
// inline, so there is no self-deadlock; from any other goroutine the caller
// blocks until the loop services the call.
func (d *Dispatcher) DispatchSync(ctx context.Context, fn CallFunc) (any, error) {
	if CurrentDispatcher(ctx) == d {
		return runCall(ctx, fn)
	}
	return d.DispatchAsync(fn).Wait(0)
}

// DispatchOneshot replaces any not-yet-executed pending call under category
// with fn. Redundant updates, e.g. repeated redraw requests, collapse to the
// most recent one before the next drain executes it.
func (d *Dispatcher) DispatchOneshot(category string, fn CallFunc) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if _, pending := d.oneshots[category]; !pending {
		d.oneshotOrder = append(d.oneshotOrder, category)
	}
	d.oneshots[category] = fn
	d.mu.Unlock()
	d.wake()
}

// Drain executes queued calls until the queue is empty or budget has
// elapsed, then executes at most one pending call per oneshot category, then
// returns the number of calls run. It never blocks waiting for new work.
//
// Only the designated goroutine may call Drain; the loop context it passes is
// what DispatchSync uses for inline detection.
func (d *Dispatcher) Drain(ctx context.Context, budget time.Duration) int {
	deadline := time.Now().Add(budget)
	executed := 0

	for {
		d.mu.Lock()
		f, ok := d.queue.pop()
		d.mu.Unlock()
		if !ok {
			break
		}
		d.runOne(ctx, f)
		executed++
		if budget > 0 && !time.Now().Before(deadline) {
			break
		}
	}

	d.mu.Lock()
	categories := d.oneshotOrder
	calls := make([]CallFunc, len(categories))
	for i, c := range categories {
		calls[i] = d.oneshots[c]
		delete(d.oneshots, c)
	}
	d.oneshotOrder = nil
	d.mu.Unlock()

	for _, fn := range calls {
		if _, err := runCall(ctx, fn); err != nil {
			d.config.Logger.Error("oneshot call failed",
				F("dispatcher", d.config.Name),
				F("err", err))
		}
		executed++
	}
	return executed
}

// runOne thaws one queued Future with errors suppressed; failures stay in the
// Future for the submitter and get a log line here.
func (d *Dispatcher) runOne(ctx context.Context, f *Future) {
	f.Thaw(ctx, true)
	if r, ok := f.Peek(); ok && r.Failed() {
		d.config.Logger.Error("dispatched call failed",
			F("dispatcher", d.config.Name),
			F("err", r.Err))
	}
}

// RunForever binds the calling goroutine as the designated consumer and
// drains the queue whenever work arrives, spending at most iterationBudget
// per drain before yielding to check for stop. It returns when Stop is
// called or ctx is cancelled; ErrLoopAlreadyBound when another goroutine
// already owns the loop.
func (d *Dispatcher) RunForever(ctx context.Context, iterationBudget time.Duration) error {
	if !d.bound.CompareAndSwap(false, true) {
		return ErrLoopAlreadyBound
	}
	defer d.bound.Store(false)

	loopCtx := context.WithValue(ctx, dispatcherKey, d)
	d.config.Logger.Info("dispatch loop bound", F("dispatcher", d.config.Name))

	for {
		d.Drain(loopCtx, iterationBudget)
		select {
		case <-d.signal:
		case <-d.stopCh:
			d.failPending()
			return nil
		case <-ctx.Done():
			d.failPending()
			return ctx.Err()
		}
	}
}

// WaitIdle blocks until every call enqueued before it has executed, by
// riding a barrier call through the queue.
func (d *Dispatcher) WaitIdle(ctx context.Context) error {
	f := d.DispatchAsync(func(context.Context) (any, error) { return nil, nil })
	select {
	case <-f.Done():
		if r, _ := f.Peek(); r.Failed() {
			return r.Err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop refuses new work and wakes the loop, which resolves everything still
// pending with ErrShutdown so blocked DispatchSync callers return.
//
// The stopped flag flips inside the queue mutex, so every push either lands
// before it and is drained by failPending, or observes it and refuses.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.stopOnce.Do(func() { close(d.stopCh) })
	// Resolve here as well: with no loop bound there is nobody else to wake
	// blocked waiters.
	d.failPending()
}

// failPending resolves every queued call with ErrShutdown.
func (d *Dispatcher) failPending() {
	d.mu.Lock()
	pending := d.queue.clear()
	d.oneshots = make(map[string]CallFunc)
	d.oneshotOrder = nil
	d.mu.Unlock()

	for _, f := range pending {
		f.Fail(ErrShutdown)
	}
}

func (d *Dispatcher) wake() {
	select {
	case d.signal <- struct{}{}:
	default:
	}
}
