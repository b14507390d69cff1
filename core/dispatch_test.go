package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(DispatcherConfig{Name: "test", Logger: NewNoOpLogger()})
}

// startLoop runs the dispatcher loop on its own goroutine and returns a stop
// function that unwinds it.
func startLoop(t *testing.T, d *Dispatcher) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.RunForever(ctx, 10*time.Millisecond)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("dispatch loop did not exit")
		}
	}
}

// TestDispatcher_AsyncRunsOnLoopGoroutine verifies execution placement
// Given: A running dispatch loop
// When: Another goroutine calls DispatchAsync
// Then: The call executes on the loop goroutine, visible via CurrentDispatcher
func TestDispatcher_AsyncRunsOnLoopGoroutine(t *testing.T) {
	// Arrange
	d := newTestDispatcher()
	stop := startLoop(t, d)
	defer stop()

	// Act
	f := d.DispatchAsync(func(ctx context.Context) (any, error) {
		return CurrentDispatcher(ctx) == d, nil
	})

	// Assert
	value, err := f.Wait(2 * time.Second)
	if err != nil {
		t.Fatalf("Wait returned %v", err)
	}
	if value != true {
		t.Fatal("dispatched call did not see its own dispatcher in context")
	}
}

// TestDispatcher_SyncFromOtherGoroutine verifies the blocking round trip
func TestDispatcher_SyncFromOtherGoroutine(t *testing.T) {
	d := newTestDispatcher()
	stop := startLoop(t, d)
	defer stop()

	value, err := d.DispatchSync(context.Background(), func(ctx context.Context) (any, error) {
		return 42, nil
	})

	if err != nil {
		t.Fatalf("DispatchSync returned %v", err)
	}
	if value != 42 {
		t.Fatalf("DispatchSync returned %v, want 42", value)
	}
}

// TestDispatcher_SyncFromLoopRunsInline verifies self-deadlock avoidance
// Given: A running loop
// When: A dispatched call itself calls DispatchSync on the same dispatcher
// Then: The inner call runs inline instead of deadlocking
func TestDispatcher_SyncFromLoopRunsInline(t *testing.T) {
	// Arrange
	d := newTestDispatcher()
	stop := startLoop(t, d)
	defer stop()

	// Act
	f := d.DispatchAsync(func(ctx context.Context) (any, error) {
		return d.DispatchSync(ctx, func(ctx context.Context) (any, error) {
			return "inline", nil
		})
	})

	// Assert
	value, err := f.Wait(2 * time.Second)
	if err != nil {
		t.Fatalf("Wait returned %v", err)
	}
	if value != "inline" {
		t.Fatalf("nested DispatchSync returned %v, want inline", value)
	}
}

// TestDispatcher_PriorityOrderWithinDrain verifies queue ordering
// Given: Calls enqueued at mixed priorities before the loop starts
// When: The loop drains them
// Then: Higher priority runs first, FIFO within a level
func TestDispatcher_PriorityOrderWithinDrain(t *testing.T) {
	// Arrange - enqueue everything before any drain can run
	d := newTestDispatcher()
	results := make(chan string, 8)
	enqueue := func(label string, priority TaskPriority) *Future {
		return d.DispatchAsyncPriority(func(ctx context.Context) (any, error) {
			results <- label
			return nil, nil
		}, priority)
	}
	enqueue("low-1", TaskPriorityBestEffort)
	enqueue("high-1", TaskPriorityUserBlocking)
	enqueue("med-1", TaskPriorityUserVisible)
	enqueue("high-2", TaskPriorityUserBlocking)

	// Act
	stop := startLoop(t, d)
	defer stop()
	if err := d.WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle returned %v", err)
	}

	// Assert
	expected := []string{"high-1", "high-2", "med-1", "low-1"}
	for i, want := range expected {
		got := <-results
		if got != want {
			t.Errorf("step %d: executed %s, want %s", i, got, want)
		}
	}
}

// TestDispatcher_OneshotCoalescesToLatest verifies last-wins coalescing
// Given: Five oneshot calls under one category, enqueued before the loop runs
// When: The loop drains
// Then: Only the fifth call executes
func TestDispatcher_OneshotCoalescesToLatest(t *testing.T) {
	// Arrange
	d := newTestDispatcher()
	executed := make(chan int, 5)
	for i := 1; i <= 5; i++ {
		i := i
		d.DispatchOneshot("redraw", func(ctx context.Context) (any, error) {
			executed <- i
			return nil, nil
		})
	}

	// Act
	stop := startLoop(t, d)
	defer stop()

	// Assert - exactly one call ran, and it is the latest
	select {
	case got := <-executed:
		if got != 5 {
			t.Fatalf("executed call %d, want 5", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no oneshot executed")
	}
	// Give any erroneously surviving call a chance to show up.
	select {
	case got := <-executed:
		t.Fatalf("a second oneshot executed (%d), coalescing failed", got)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestDispatcher_OneshotCategoriesIndependent verifies per-category coalescing
func TestDispatcher_OneshotCategoriesIndependent(t *testing.T) {
	d := newTestDispatcher()
	var mu sync.Mutex
	ran := map[string]int{}
	post := func(category string) {
		d.DispatchOneshot(category, func(ctx context.Context) (any, error) {
			mu.Lock()
			ran[category]++
			mu.Unlock()
			return nil, nil
		})
	}
	post("redraw")
	post("redraw")
	post("relayout")

	stop := startLoop(t, d)
	defer stop()
	if err := d.WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle returned %v", err)
	}

	waitForCondition(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ran["redraw"] == 1 && ran["relayout"] == 1
	})
}

// TestDispatcher_RunForeverExclusive verifies single-consumer binding
// Given: A goroutine already inside RunForever
// When: A second goroutine calls RunForever
// Then: The second call returns ErrLoopAlreadyBound immediately
func TestDispatcher_RunForeverExclusive(t *testing.T) {
	// Arrange
	d := newTestDispatcher()
	stop := startLoop(t, d)
	defer stop()

	// Ensure the first loop is bound before contending.
	if err := d.WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle returned %v", err)
	}

	// Act
	err := d.RunForever(context.Background(), 10*time.Millisecond)

	// Assert
	if !errors.Is(err, ErrLoopAlreadyBound) {
		t.Fatalf("second RunForever returned %v, want ErrLoopAlreadyBound", err)
	}
}

// TestDispatcher_StopFailsPending verifies shutdown resolution
// Given: A dispatcher with queued calls and no loop
// When: Stop is called
// Then: Every pending Future resolves with ErrShutdown and new work is refused
func TestDispatcher_StopFailsPending(t *testing.T) {
	// Arrange
	d := newTestDispatcher()
	pending := d.DispatchAsync(func(ctx context.Context) (any, error) { return nil, nil })

	// Act
	d.Stop()

	// Assert
	if _, err := pending.Wait(time.Second); !errors.Is(err, ErrShutdown) {
		t.Fatalf("pending call resolved with %v, want ErrShutdown", err)
	}
	refused := d.DispatchAsync(func(ctx context.Context) (any, error) { return nil, nil })
	if _, err := refused.Wait(time.Second); !errors.Is(err, ErrShutdown) {
		t.Fatalf("post-stop call resolved with %v, want ErrShutdown", err)
	}
}

// TestDispatcher_CallErrorStaysInFuture verifies the loop survives failures
func TestDispatcher_CallErrorStaysInFuture(t *testing.T) {
	d := newTestDispatcher()
	stop := startLoop(t, d)
	defer stop()

	errBoom := errors.New("boom")
	bad := d.DispatchAsync(func(ctx context.Context) (any, error) { return nil, errBoom })
	good := d.DispatchAsync(func(ctx context.Context) (any, error) { return "fine", nil })

	if _, err := bad.Wait(2 * time.Second); !errors.Is(err, errBoom) {
		t.Fatalf("failing call resolved with %v, want boom", err)
	}
	if value, err := good.Wait(2 * time.Second); err != nil || value != "fine" {
		t.Fatalf("follow-up call returned (%v, %v), want (fine, nil)", value, err)
	}
}

// TestDispatcher_PanicInCallDoesNotKillLoop verifies panic isolation
func TestDispatcher_PanicInCallDoesNotKillLoop(t *testing.T) {
	d := newTestDispatcher()
	stop := startLoop(t, d)
	defer stop()

	bad := d.DispatchAsync(func(ctx context.Context) (any, error) { panic("kaboom") })

	_, err := bad.Wait(2 * time.Second)
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("panicking call resolved with %v, want *PanicError", err)
	}

	// The loop is still alive.
	if _, err := d.DispatchSync(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("loop dead after panic: %v", err)
	}
}

// TestDispatcher_QueueDepth verifies the pending-call count
func TestDispatcher_QueueDepth(t *testing.T) {
	d := newTestDispatcher()

	d.DispatchAsync(func(ctx context.Context) (any, error) { return nil, nil })
	d.DispatchOneshot("redraw", func(ctx context.Context) (any, error) { return nil, nil })
	d.DispatchOneshot("redraw", func(ctx context.Context) (any, error) { return nil, nil })

	if got := d.QueueDepth(); got != 2 {
		t.Fatalf("QueueDepth() = %d, want 2 (one queued call, one coalesced oneshot)", got)
	}
}

// TestDispatcher_DispatchRacingStop verifies no returned Future strands
// Given: Goroutines dispatching while another goroutine stops the dispatcher
// When: DispatchAsync returns a Future
// Then: Every returned Future resolves, so no DispatchSync caller could hang
func TestDispatcher_DispatchRacingStop(t *testing.T) {
	for i := 0; i < 200; i++ {
		// Arrange - no loop bound, so only Stop can resolve stragglers
		d := newTestDispatcher()

		// Act - dispatches and Stop race each other
		futures := make(chan *Future, 4)
		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				futures <- d.DispatchAsync(func(ctx context.Context) (any, error) { return nil, nil })
			}()
		}
		d.Stop()
		wg.Wait()
		close(futures)

		// Assert
		for f := range futures {
			if _, err := f.Wait(time.Second); errors.Is(err, ErrTimeout) {
				t.Fatalf("iteration %d: dispatched Future never resolved", i)
			}
		}
	}
}
