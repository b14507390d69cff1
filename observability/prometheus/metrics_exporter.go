package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/lumaview/taskcore/core"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds *prom.HistogramVec
	taskErrorTotal      *prom.CounterVec
	taskRejectedTotal   *prom.CounterVec
	queueDepth          *prom.GaugeVec
	workerCount         *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "taskcore"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"pool", "priority"})
	errorVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_error_total",
		Help:      "Total number of tasks finished with an error, panics included.",
	}, []string{"pool"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_rejected_total",
		Help:      "Total number of rejected submissions.",
	}, []string{"pool", "reason"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current work queue depth.",
	}, []string{"pool"})
	workerCountVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "worker_count",
		Help:      "Current number of running workers.",
	}, []string{"pool"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if errorVec, err = registerCollector(reg, errorVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}
	if workerCountVec, err = registerCollector(reg, workerCountVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds: durationVec,
		taskErrorTotal:      errorVec,
		taskRejectedTotal:   rejectedVec,
		queueDepth:          queueDepthVec,
		workerCount:         workerCountVec,
	}, nil
}

// RecordTaskDuration records task execution duration.
func (m *MetricsExporter) RecordTaskDuration(pool string, priority core.TaskPriority, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(normalizeLabel(pool, "unknown"), priorityLabel(priority)).Observe(duration.Seconds())
}

// RecordTaskError records a task that finished with an error. The task tag is
// not a label; tags are unbounded and would explode series cardinality.
func (m *MetricsExporter) RecordTaskError(pool string, tag string) {
	if m == nil {
		return
	}
	m.taskErrorTotal.WithLabelValues(normalizeLabel(pool, "unknown")).Inc()
}

// RecordQueueDepth records work queue depth.
func (m *MetricsExporter) RecordQueueDepth(pool string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(pool, "unknown")).Set(float64(depth))
}

// RecordWorkerCount records the running worker count.
func (m *MetricsExporter) RecordWorkerCount(pool string, count int) {
	if m == nil {
		return
	}
	m.workerCount.WithLabelValues(normalizeLabel(pool, "unknown")).Set(float64(count))
}

// RecordTaskRejected records submission rejection events.
func (m *MetricsExporter) RecordTaskRejected(pool string, reason string) {
	if m == nil {
		return
	}
	m.taskRejectedTotal.WithLabelValues(normalizeLabel(pool, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func priorityLabel(priority core.TaskPriority) string {
	switch priority {
	case core.TaskPriorityUserBlocking:
		return "user_blocking"
	case core.TaskPriorityUserVisible:
		return "user_visible"
	case core.TaskPriorityBestEffort:
		return "best_effort"
	default:
		return "unknown"
	}
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
