package core

import (
	"context"
	"sync"
)

// ChildResult is one child's outcome within a ConcurrentAndTaskset, keyed by
// the order in which the child completed (0 = finished first).
type ChildResult struct {
	Order  int
	Child  *Task
	Result Result
}

// ConcurrentAndTaskset starts every child immediately, each inheriting the
// set as parent, and waits for all of them. Completion events arrive over a
// fan-in signal from each child's resolution callback; nothing polls.
//
// Aggregation policy: if any child failed, the first error in completion
// order is the set's error. Otherwise the set's value is the last-completing
// child's value; Results exposes every child's outcome for callers that want
// all of them.
type ConcurrentAndTaskset struct {
	*Task

	mu       sync.Mutex
	children []*Task
	results  []ChildResult
	started  bool
	closed   bool
	signal   chan struct{}
}

// NewConcurrentAndTaskset creates the set around the given children. The set
// is a Task itself: Initialize and Start it like any other. Starting the set
// from a pool worker requires spare workers for the children; run the set
// inline (no pool in its own override) when the pool is small.
func NewConcurrentAndTaskset(children ...*Task) *ConcurrentAndTaskset {
	s := &ConcurrentAndTaskset{
		children: children,
		signal:   make(chan struct{}, 1),
	}
	s.Task = NewTask(s.executeAll)
	return s
}

// AddTask adds and starts another child after the set has begun. Before the
// set starts, the child is simply queued with the rest. Returns
// ErrAlreadyResolved once the set has finished aggregating and ErrShutdown
// once the set has been stopped.
func (s *ConcurrentAndTaskset) AddTask(child *Task) error {
	if s.Stopped() {
		return ErrShutdown
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrAlreadyResolved
	}
	s.children = append(s.children, child)
	started := s.started
	s.mu.Unlock()

	if started {
		return s.launch(child)
	}
	return nil
}

// Results returns every completed child's outcome in completion order. Safe
// to call at any time; before the set finishes it reflects partial progress.
func (s *ConcurrentAndTaskset) Results() []ChildResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChildResult, len(s.results))
	copy(out, s.results)
	return out
}

// launch initializes child against the set and starts it; the completion
// callback feeds the fan-in signal.
func (s *ConcurrentAndTaskset) launch(child *Task) error {
	if err := child.Initialize(s.Task, nil); err != nil {
		return err
	}
	child.OnResolved(func(c *Task, r Result) {
		s.mu.Lock()
		s.results = append(s.results, ChildResult{Order: len(s.results), Child: c, Result: r})
		s.mu.Unlock()
		select {
		case s.signal <- struct{}{}:
		default:
		}
	})
	return child.Start()
}

// executeAll is the set's ExecuteFunc: fan out, then block on the completion
// signal until every tracked child has reported.
func (s *ConcurrentAndTaskset) executeAll(ctx context.Context) (any, error) {
	s.mu.Lock()
	s.started = true
	pending := make([]*Task, len(s.children))
	copy(pending, s.children)
	s.mu.Unlock()

	for _, child := range pending {
		if err := s.launch(child); err != nil {
			return nil, err
		}
	}

	for {
		s.mu.Lock()
		if len(s.results) >= len(s.children) {
			s.closed = true
			s.mu.Unlock()
			break
		}
		s.mu.Unlock()
		select {
		case <-s.signal:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return s.aggregate()
}

// aggregate applies the completion-order policy over the recorded results.
func (s *ConcurrentAndTaskset) aggregate() (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cr := range s.results {
		if cr.Result.Failed() {
			return nil, cr.Result.Err
		}
	}
	if n := len(s.results); n > 0 {
		return s.results[n-1].Result.Value, nil
	}
	return nil, nil
}
