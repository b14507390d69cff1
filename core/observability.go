package core

import (
	"sync"
	"time"
)

const defaultHistoryCapacity = 100

// TaskExecutionRecord captures one completed task execution.
type TaskExecutionRecord struct {
	Tag        string
	Pool       string
	Priority   TaskPriority
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Failed     bool
}

// PoolStats is a read-only snapshot of a ThreadPool. Taking one has no side
// effects on scheduling.
type PoolStats struct {
	Name       string
	Status     PoolStatus
	MinWorkers int
	MaxWorkers int
	Running    int
	Waiting    int
	QueueDepth int
}

// executionHistory is a fixed-capacity ring of recent task executions.
type executionHistory struct {
	mu    sync.Mutex
	items []TaskExecutionRecord
	head  int
	count int
}

func newExecutionHistory(capacity int) executionHistory {
	if capacity < 1 {
		capacity = defaultHistoryCapacity
	}
	return executionHistory{items: make([]TaskExecutionRecord, capacity)}
}

func (h *executionHistory) Add(record TaskExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// Recent returns up to limit records, newest first.
func (h *executionHistory) Recent(limit int) []TaskExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}
	if limit <= 0 || limit > h.count {
		limit = h.count
	}
	out := make([]TaskExecutionRecord, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}
