package core

import (
	"context"
	"sync"
)

// SequentialTaskset runs an ordered list of child tasks one at a time, each
// to completion. A child's error stops the walk and becomes the set's result
// immediately. Stop lets the in-flight child finish but prevents starting the
// next one.
//
// Children execute inline on whichever goroutine runs the set, even when the
// shared context carries a pool handle. Posting them back to the pool would
// let a one-worker pool deadlock against its own taskset, and sequential
// semantics gain nothing from it.
type SequentialTaskset struct {
	*Task

	mu       sync.Mutex
	children []*Task
	next     int
	lastRes  any
}

// NewSequentialTaskset creates the set around the given children. The set is
// a Task itself: Initialize and Start it like any other.
func NewSequentialTaskset(children ...*Task) *SequentialTaskset {
	s := &SequentialTaskset{children: children}
	s.Task = NewTask(s.executeAll)
	return s
}

// Append adds a child to the end of the walk. Children may be appended until
// the walk has passed their position.
func (s *SequentialTaskset) Append(child *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children = append(s.children, child)
}

// Remaining returns the number of children not yet started.
func (s *SequentialTaskset) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.children) - s.next
}

// Step runs the next child to completion and returns its result value. The
// bool reports whether a child was run; it is false once the list is
// exhausted or Stop has been requested.
func (s *SequentialTaskset) Step(ctx context.Context) (any, bool, error) {
	if s.Stopped() {
		return nil, false, nil
	}

	s.mu.Lock()
	if s.next >= len(s.children) {
		s.mu.Unlock()
		return nil, false, nil
	}
	child := s.children[s.next]
	s.next++
	s.mu.Unlock()

	if err := child.Initialize(s.Task, nil); err != nil {
		return nil, true, err
	}
	res := child.run(ctx)
	if err := child.Done(res, false); err != nil {
		return nil, true, err
	}

	s.mu.Lock()
	s.lastRes = res.Value
	s.mu.Unlock()
	return res.Value, true, nil
}

// executeAll is the set's ExecuteFunc: it loops Step until exhausted and
// returns the last child's result.
func (s *SequentialTaskset) executeAll(ctx context.Context) (any, error) {
	for {
		_, more, err := s.Step(ctx)
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRes, nil
}
