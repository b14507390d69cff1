package core

import (
	"context"
	"runtime/debug"
	"sync"
	"time"
)

// CallFunc is a deferred call: the unit of work a Future can freeze and a
// dispatcher or pool can run later. Arguments are captured by the closure.
type CallFunc func(ctx context.Context) (any, error)

// Result is the tagged outcome of a call or task. Exactly one of Value and
// Err is meaningful; an error is never smuggled through the value channel.
type Result struct {
	Value any
	Err   error
}

// Failed reports whether the result carries an error.
func (r Result) Failed() bool { return r.Err != nil }

// =============================================================================
// Future: single-assignment result cell
// =============================================================================

// Future is a single-assignment result cell shared between a submitter and an
// executor. It is resolved exactly once, either by whoever runs the frozen
// call (Thaw) or externally (Complete/Fail); once resolved it never reverts.
//
// A Future resolved with an error that nobody ever inspects leaks that error
// silently. That is the intentional fire-and-forget hazard of DispatchAsync
// and SubmitFunc; callers that care must Wait or register OnResolved.
type Future struct {
	mu        sync.Mutex
	done      chan struct{}
	result    Result
	resolved  bool
	call      CallFunc
	callTaken bool // a Thaw owns the call; its resolution is in flight
	callbacks []func(Result)
}

// NewFuture creates an unresolved Future with no deferred call attached.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// NewFrozenFuture creates a Future with call attached, ready to be thawed.
func NewFrozenFuture(call CallFunc) *Future {
	f := NewFuture()
	f.call = call
	return f
}

// Freeze attaches a deferred call without running it. No side effects.
// Freezing an already-frozen Future replaces the pending call; freezing a
// resolved Future is a no-op since the call can never run.
func (f *Future) Freeze(call CallFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolved {
		return
	}
	f.call = call
}

// Thaw invokes the frozen call now on the calling goroutine and resolves the
// Future with its outcome. A panic inside the call is captured as a
// PanicError. When suppressError is false the call's error is also returned
// to the caller of Thaw, in addition to being recorded as the resolution.
//
// Thawing a Future with no frozen call, or one already resolved, does nothing
// and returns the stored result. A Thaw racing another Thaw of the same
// Future waits for the first one's resolution rather than reporting an empty
// result early.
func (f *Future) Thaw(ctx context.Context, suppressError bool) (any, error) {
	f.mu.Lock()
	call := f.call
	f.call = nil
	taken := f.callTaken
	if call != nil {
		f.callTaken = true
	}
	resolved := f.resolved
	f.mu.Unlock()

	if resolved || call == nil {
		if !resolved && taken {
			// Another goroutine owns the call; its resolution is coming.
			<-f.done
		}
		r, _ := f.Peek()
		if suppressError {
			return r.Value, nil
		}
		return r.Value, r.Err
	}

	value, err := runCall(ctx, call)
	f.resolve(Result{Value: value, Err: err})
	if suppressError {
		return value, nil
	}
	return value, err
}

// runCall executes call, converting a panic into a PanicError.
func runCall(ctx context.Context, call CallFunc) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	return call(ctx)
}

// Complete resolves the Future with a success value. The second and later
// resolutions leave the stored result untouched and return ErrAlreadyResolved.
func (f *Future) Complete(value any) error {
	return f.resolve(Result{Value: value})
}

// Fail resolves the Future with an error.
func (f *Future) Fail(err error) error {
	return f.resolve(Result{Err: err})
}

// resolve stores the result exactly once, wakes waiters and invokes
// registered callbacks synchronously on the resolving goroutine.
func (f *Future) resolve(r Result) error {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return ErrAlreadyResolved
	}
	f.result = r
	f.resolved = true
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(r)
	}
	return nil
}

// Wait blocks the calling goroutine until the Future resolves. A timeout of
// zero or less waits forever. It returns ErrTimeout if the budget elapses
// first, the stored error if the Future resolved with one, and the stored
// value otherwise.
func (f *Future) Wait(timeout time.Duration) (any, error) {
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-f.done:
		case <-timer.C:
			return nil, ErrTimeout
		}
	} else {
		<-f.done
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result.Value, f.result.Err
}

// Peek returns the stored result without blocking. The second return value
// reports whether the Future has resolved yet.
func (f *Future) Peek() (Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.resolved
}

// Resolved reports whether the Future holds a result.
func (f *Future) Resolved() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolved
}

// Done returns a channel closed when the Future resolves. Useful for
// select-based fan-in over several Futures.
func (f *Future) Done() <-chan struct{} { return f.done }

// OnResolved registers cb to be invoked exactly once with the result, on
// whichever goroutine resolves the Future. If the Future is already resolved,
// cb runs immediately on the calling goroutine.
func (f *Future) OnResolved(cb func(Result)) {
	f.mu.Lock()
	if !f.resolved {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	r := f.result
	f.mu.Unlock()
	cb(r)
}
