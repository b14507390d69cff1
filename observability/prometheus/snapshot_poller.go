package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/lumaview/taskcore/core"
)

// PoolSnapshotProvider provides current pool stats snapshots. *core.ThreadPool
// satisfies it.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports pool Stats() snapshots into Prometheus
// gauges. It complements MetricsExporter: the exporter records events as they
// happen, the poller samples state that only exists as a snapshot (worker
// counts by state, pool lifecycle).
type SnapshotPoller struct {
	interval time.Duration

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	poolQueueDepth     *prom.GaugeVec
	poolWorkersRunning *prom.GaugeVec
	poolWorkersWaiting *prom.GaugeVec
	poolWorkersMin     *prom.GaugeVec
	poolWorkersMax     *prom.GaugeVec
	poolUp             *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	poolQueueDepth := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskcore",
		Name:      "pool_queue_depth",
		Help:      "Queued tasks per pool.",
	}, []string{"pool"})
	poolWorkersRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskcore",
		Name:      "pool_workers_running",
		Help:      "Running workers per pool.",
	}, []string{"pool"})
	poolWorkersWaiting := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskcore",
		Name:      "pool_workers_waiting",
		Help:      "Decommissioned workers parked for reuse per pool.",
	}, []string{"pool"})
	poolWorkersMin := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskcore",
		Name:      "pool_workers_min",
		Help:      "Configured worker floor per pool.",
	}, []string{"pool"})
	poolWorkersMax := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskcore",
		Name:      "pool_workers_max",
		Help:      "Configured worker ceiling per pool.",
	}, []string{"pool"})
	poolUp := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskcore",
		Name:      "pool_up",
		Help:      "Pool lifecycle state (1=up, 0=otherwise).",
	}, []string{"pool"})

	var err error
	if poolQueueDepth, err = registerCollector(reg, poolQueueDepth); err != nil {
		return nil, err
	}
	if poolWorkersRunning, err = registerCollector(reg, poolWorkersRunning); err != nil {
		return nil, err
	}
	if poolWorkersWaiting, err = registerCollector(reg, poolWorkersWaiting); err != nil {
		return nil, err
	}
	if poolWorkersMin, err = registerCollector(reg, poolWorkersMin); err != nil {
		return nil, err
	}
	if poolWorkersMax, err = registerCollector(reg, poolWorkersMax); err != nil {
		return nil, err
	}
	if poolUp, err = registerCollector(reg, poolUp); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:           interval,
		pools:              make(map[string]PoolSnapshotProvider),
		poolQueueDepth:     poolQueueDepth,
		poolWorkersRunning: poolWorkersRunning,
		poolWorkersWaiting: poolWorkersWaiting,
		poolWorkersMin:     poolWorkersMin,
		poolWorkersMax:     poolWorkersMax,
		poolUp:             poolUp,
	}, nil
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.poolsMu.RLock()
	defer p.poolsMu.RUnlock()

	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueueDepth.WithLabelValues(name).Set(float64(stats.QueueDepth))
		p.poolWorkersRunning.WithLabelValues(name).Set(float64(stats.Running))
		p.poolWorkersWaiting.WithLabelValues(name).Set(float64(stats.Waiting))
		p.poolWorkersMin.WithLabelValues(name).Set(float64(stats.MinWorkers))
		p.poolWorkersMax.WithLabelValues(name).Set(float64(stats.MaxWorkers))
		if stats.Status == core.PoolUp {
			p.poolUp.WithLabelValues(name).Set(1)
		} else {
			p.poolUp.WithLabelValues(name).Set(0)
		}
	}
}
