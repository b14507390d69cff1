package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error taxonomy
// =============================================================================

var (
	// ErrTimeout is returned when a blocking wait exceeds its budget.
	// The wait can be retried; the underlying work keeps running.
	ErrTimeout = errors.New("taskcore: wait timed out")

	// ErrAlreadyResolved is returned when Complete or Fail is called on a
	// Future that already holds a result. The stored result is untouched,
	// which keeps the primitive forgiving under racing shutdowns.
	ErrAlreadyResolved = errors.New("taskcore: future already resolved")

	// ErrNotInitialized is returned when a Task is started before Initialize.
	ErrNotInitialized = errors.New("taskcore: task not initialized")

	// ErrUninitializedParent is returned when Initialize is called with a nil
	// parent and no override supplies the required shared context.
	ErrUninitializedParent = errors.New("taskcore: nil parent and no shared context override")

	// ErrShutdown is returned when work is submitted to a pool or dispatcher
	// that has been told to stop.
	ErrShutdown = errors.New("taskcore: submitted after shutdown")

	// ErrLoopAlreadyBound is returned when RunForever is called while another
	// goroutine already owns the dispatch loop.
	ErrLoopAlreadyBound = errors.New("taskcore: dispatch loop already bound to another goroutine")
)

// TaskError wraps whatever a task's Execute returned or panicked with.
// It is always captured into the task's result and never escapes a worker;
// it becomes visible only when a caller blocks in Wait or inspects the Future.
type TaskError struct {
	Tag string
	Err error
}

func (e *TaskError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("task failed: %v", e.Err)
	}
	return fmt.Sprintf("task %s failed: %v", e.Tag, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// NewTaskError wraps err with the failing task's tag. A nil err yields nil.
func NewTaskError(tag string, err error) error {
	if err == nil {
		return nil
	}
	return &TaskError{Tag: tag, Err: err}
}

// PanicError carries a recovered panic value across the worker boundary as a
// regular error so a misbehaving task can never kill a worker goroutine.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}
