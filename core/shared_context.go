package core

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// SharedContext carries the handles a task tree inherits from parent to
// child: the pool the tasks run on, the logger and metrics sinks, and the
// counter that keeps sibling tags unique. It replaces ad-hoc field copying
// with one explicit, typed struct handed over at Initialize.
//
// The struct is copied by value from parent to child; the tag counter is a
// shared pointer so every task in the tree draws from the same sequence.
type SharedContext struct {
	Pool    *ThreadPool
	Logger  Logger
	Metrics Metrics

	tagCounter *atomic.Uint64
}

// NewSharedContext creates a root shared context. pool may be nil, in which
// case tasks started from this context run inline on the calling goroutine.
func NewSharedContext(pool *ThreadPool, logger Logger) *SharedContext {
	sc := &SharedContext{
		Pool:   pool,
		Logger: logger,
	}
	sc.fillDefaults()
	return sc
}

func (sc *SharedContext) fillDefaults() {
	if sc.Logger == nil {
		sc.Logger = NewDefaultLogger()
	}
	if sc.Metrics == nil {
		sc.Metrics = &NilMetrics{}
	}
	if sc.tagCounter == nil {
		sc.tagCounter = &atomic.Uint64{}
	}
}

// merged returns a copy of sc with every non-nil field of override applied.
func (sc SharedContext) merged(override *SharedContext) SharedContext {
	if override == nil {
		return sc
	}
	if override.Pool != nil {
		sc.Pool = override.Pool
	}
	if override.Logger != nil {
		sc.Logger = override.Logger
	}
	if override.Metrics != nil {
		sc.Metrics = override.Metrics
	}
	if override.tagCounter != nil {
		sc.tagCounter = override.tagCounter
	}
	return sc
}

// childTag derives a globally unique tag from the parent's tag and the
// tree-wide counter.
func (sc *SharedContext) childTag(parentTag string) string {
	return fmt.Sprintf("%s.%d", parentTag, sc.tagCounter.Add(1))
}

// rootTag seeds a fresh task tree. The UUID prefix keeps tags from separate
// trees (and separate processes) distinguishable in logs.
func rootTag() string {
	return "task-" + uuid.NewString()[:8]
}
