package core

import "time"

// =============================================================================
// Metrics: plug point for observability backends
// =============================================================================

// Metrics collects scheduling events. Implementations can forward them to
// monitoring systems (Prometheus, StatsD, etc.); see observability/prometheus
// for a ready-made exporter.
//
// Methods must be safe for concurrent use and fast enough not to perturb
// task execution.
type Metrics interface {
	// RecordTaskDuration records how long a task's Execute took.
	RecordTaskDuration(pool string, priority TaskPriority, duration time.Duration)

	// RecordTaskError records a task that finished with an error, including
	// captured panics.
	RecordTaskError(pool string, tag string)

	// RecordQueueDepth records the current depth of the shared work queue.
	RecordQueueDepth(pool string, depth int)

	// RecordWorkerCount records the current number of running workers.
	RecordWorkerCount(pool string, count int)

	// RecordTaskRejected records a submission refused by the pool, e.g.
	// during shutdown.
	RecordTaskRejected(pool string, reason string)
}

// NilMetrics is the no-op default when no metrics sink is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(pool string, priority TaskPriority, duration time.Duration) {
}
func (m *NilMetrics) RecordTaskError(pool string, tag string)       {}
func (m *NilMetrics) RecordQueueDepth(pool string, depth int)       {}
func (m *NilMetrics) RecordWorkerCount(pool string, count int)      {}
func (m *NilMetrics) RecordTaskRejected(pool string, reason string) {}

// =============================================================================
// PoolConfig: configuration for ThreadPool
// =============================================================================

// PoolConfig holds the knobs of a ThreadPool. Everything is an explicit
// parameter; the core never reads ambient global configuration.
type PoolConfig struct {
	// Name labels the pool in logs and metrics.
	Name string

	// MinWorkers is the floor the attendant never shrinks below while the
	// pool is up.
	MinWorkers int

	// MaxWorkers is the ceiling the attendant grows toward under backlog.
	MaxWorkers int

	// IdleTimeout is how long a worker may sit idle before offering itself
	// back to the pool for decommission.
	IdleTimeout time.Duration

	// PopTimeout bounds each blocking queue pop so workers periodically
	// re-evaluate shutdown and idle limits. Defaults to 200ms.
	PopTimeout time.Duration

	// Logger receives pool lifecycle events. Defaults to DefaultLogger.
	Logger Logger

	// Metrics receives scheduling events. Defaults to NilMetrics.
	Metrics Metrics
}

// DefaultPoolConfig returns a config suitable for a viewer-sized workload.
func DefaultPoolConfig(name string, minWorkers, maxWorkers int) PoolConfig {
	return PoolConfig{
		Name:        name,
		MinWorkers:  minWorkers,
		MaxWorkers:  maxWorkers,
		IdleTimeout: 5 * time.Second,
	}
}

func (c *PoolConfig) fillDefaults() {
	if c.Name == "" {
		c.Name = "pool"
	}
	if c.MinWorkers < 0 {
		c.MinWorkers = 0
	}
	if c.MaxWorkers < 1 {
		c.MaxWorkers = 1
	}
	if c.MinWorkers > c.MaxWorkers {
		c.MinWorkers = c.MaxWorkers
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Second
	}
	if c.PopTimeout <= 0 {
		c.PopTimeout = 200 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = NewDefaultLogger()
	}
	if c.Metrics == nil {
		c.Metrics = &NilMetrics{}
	}
}
