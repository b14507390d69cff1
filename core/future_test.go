package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestFuture_CompleteResolvesOnce verifies single-assignment semantics
// Given: An unresolved Future
// When: Complete is called twice with different values
// Then: The first value sticks and the second call returns ErrAlreadyResolved
func TestFuture_CompleteResolvesOnce(t *testing.T) {
	// Arrange
	f := NewFuture()

	// Act
	if err := f.Complete(1); err != nil {
		t.Fatalf("first Complete returned %v, want nil", err)
	}
	err := f.Complete(2)

	// Assert
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second Complete returned %v, want ErrAlreadyResolved", err)
	}
	value, werr := f.Wait(time.Second)
	if werr != nil {
		t.Fatalf("Wait returned error %v", werr)
	}
	if value != 1 {
		t.Fatalf("Wait returned %v, want 1", value)
	}
}

// TestFuture_FailThenComplete verifies an error resolution is also final
// Given: A Future resolved with Fail
// When: Complete is called afterwards
// Then: The stored error survives and Complete reports ErrAlreadyResolved
func TestFuture_FailThenComplete(t *testing.T) {
	// Arrange
	f := NewFuture()
	errBoom := errors.New("boom")

	// Act
	if err := f.Fail(errBoom); err != nil {
		t.Fatalf("Fail returned %v, want nil", err)
	}
	err := f.Complete(42)

	// Assert
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("Complete after Fail returned %v, want ErrAlreadyResolved", err)
	}
	if _, werr := f.Wait(time.Second); !errors.Is(werr, errBoom) {
		t.Fatalf("Wait returned %v, want boom", werr)
	}
}

// TestFuture_WaitTimeout verifies the bounded wait
// Given: A Future nobody resolves
// When: Wait is called with a small timeout
// Then: ErrTimeout is returned and the Future stays unresolved
func TestFuture_WaitTimeout(t *testing.T) {
	f := NewFuture()

	_, err := f.Wait(20 * time.Millisecond)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Wait returned %v, want ErrTimeout", err)
	}
	if f.Resolved() {
		t.Fatal("Future resolved after a timed-out Wait")
	}
}

// TestFuture_ThawRunsFrozenCall verifies freeze/thaw execution
// Given: A Future frozen around a call
// When: Thaw is invoked
// Then: The call runs on the thawing goroutine and its value resolves the Future
func TestFuture_ThawRunsFrozenCall(t *testing.T) {
	// Arrange
	ran := false
	f := NewFrozenFuture(func(ctx context.Context) (any, error) {
		ran = true
		return "done", nil
	})

	// Act
	value, err := f.Thaw(context.Background(), false)

	// Assert
	if !ran {
		t.Fatal("frozen call did not run")
	}
	if err != nil {
		t.Fatalf("Thaw returned error %v", err)
	}
	if value != "done" {
		t.Fatalf("Thaw returned %v, want done", value)
	}
	if !f.Resolved() {
		t.Fatal("Future not resolved after Thaw")
	}
}

// TestFuture_ThawCapturesPanic verifies panic isolation
// Given: A Future frozen around a panicking call
// When: Thaw is invoked
// Then: The panic is converted into a PanicError instead of unwinding the caller
func TestFuture_ThawCapturesPanic(t *testing.T) {
	f := NewFrozenFuture(func(ctx context.Context) (any, error) {
		panic("kaboom")
	})

	_, err := f.Thaw(context.Background(), false)

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Thaw returned %v, want *PanicError", err)
	}
	if panicErr.Value != "kaboom" {
		t.Fatalf("panic value = %v, want kaboom", panicErr.Value)
	}
	if len(panicErr.Stack) == 0 {
		t.Fatal("panic stack not captured")
	}
}

// TestFuture_ThawSuppressError verifies error suppression for loop callers
func TestFuture_ThawSuppressError(t *testing.T) {
	errBoom := errors.New("boom")
	f := NewFrozenFuture(func(ctx context.Context) (any, error) {
		return nil, errBoom
	})

	_, err := f.Thaw(context.Background(), true)

	if err != nil {
		t.Fatalf("suppressed Thaw returned %v, want nil", err)
	}
	if r, ok := f.Peek(); !ok || !errors.Is(r.Err, errBoom) {
		t.Fatalf("stored result = %+v, want boom error", r)
	}
}

// TestFuture_ThawAfterResolveIsNoOp verifies a resolved Future never reruns
// Given: A frozen Future resolved externally via Complete
// When: Thaw is invoked
// Then: The frozen call does not run and the stored result is returned
func TestFuture_ThawAfterResolveIsNoOp(t *testing.T) {
	ran := false
	f := NewFrozenFuture(func(ctx context.Context) (any, error) {
		ran = true
		return nil, nil
	})
	f.Complete("external")

	value, err := f.Thaw(context.Background(), false)

	if ran {
		t.Fatal("frozen call ran after external resolution")
	}
	if err != nil || value != "external" {
		t.Fatalf("Thaw returned (%v, %v), want (external, nil)", value, err)
	}
}

// TestFuture_FreezeAfterResolveIsNoOp verifies the call can never run late
func TestFuture_FreezeAfterResolveIsNoOp(t *testing.T) {
	f := NewFuture()
	f.Complete(1)

	ran := false
	f.Freeze(func(ctx context.Context) (any, error) {
		ran = true
		return nil, nil
	})
	f.Thaw(context.Background(), true)

	if ran {
		t.Fatal("call frozen after resolution must not run")
	}
}

// TestFuture_OnResolved verifies callback delivery in both orders
// Given: Futures with callbacks registered before and after resolution
// When: The Futures resolve
// Then: Each callback runs exactly once with the stored result
func TestFuture_OnResolved(t *testing.T) {
	// Arrange - callback before resolution
	before := NewFuture()
	var got Result
	calls := 0
	before.OnResolved(func(r Result) {
		got = r
		calls++
	})

	// Act
	before.Complete(7)

	// Assert
	if calls != 1 || got.Value != 7 {
		t.Fatalf("callback ran %d times with %+v, want once with 7", calls, got)
	}

	// Arrange - callback after resolution runs immediately
	after := NewFuture()
	after.Complete(9)

	ran := false
	after.OnResolved(func(r Result) {
		ran = r.Value == 9
	})
	if !ran {
		t.Fatal("callback on resolved Future did not run immediately")
	}
}

// TestFuture_WaitFromManyGoroutines verifies every waiter wakes up
func TestFuture_WaitFromManyGoroutines(t *testing.T) {
	f := NewFuture()

	const waiters = 16
	var wg sync.WaitGroup
	errs := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := f.Wait(2 * time.Second)
			if err != nil {
				errs <- err
				return
			}
			if value != "shared" {
				errs <- errors.New("wrong value")
			}
		}()
	}

	f.Complete("shared")
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("waiter failed: %v", err)
	}
}

// TestFuture_ConcurrentThawWaitsForFirst verifies a racing thawer never sees
// an empty result
// Given: A Future frozen around a slow call
// When: A second Thaw arrives while the first is still executing the call
// Then: The call runs exactly once and the second Thaw returns its result
func TestFuture_ConcurrentThawWaitsForFirst(t *testing.T) {
	// Arrange
	var runs atomic.Int32
	started := make(chan struct{})
	f := NewFrozenFuture(func(ctx context.Context) (any, error) {
		close(started)
		runs.Add(1)
		time.Sleep(40 * time.Millisecond)
		return "slow", nil
	})

	// Act - the first thawer owns the call, the second arrives mid-flight
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		f.Thaw(context.Background(), true)
	}()
	<-started
	value, err := f.Thaw(context.Background(), false)
	<-firstDone

	// Assert
	if err != nil {
		t.Fatalf("second Thaw returned %v", err)
	}
	if value != "slow" {
		t.Fatalf("second Thaw returned %v, want slow", value)
	}
	if got := runs.Load(); got != 1 {
		t.Fatalf("frozen call ran %d times, want 1", got)
	}
}
