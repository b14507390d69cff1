package core

import (
	"context"
	"sync"
	"time"
)

// attendantTick bounds the attendant's condition wait so it stays responsive
// to backlog and shutdown even without explicit signals.
const attendantTick = 50 * time.Millisecond

// PoolStatus is the lifecycle state of a ThreadPool.
type PoolStatus int32

const (
	PoolDown PoolStatus = iota
	PoolStarting
	PoolUp
	PoolStopping
)

func (s PoolStatus) String() string {
	switch s {
	case PoolDown:
		return "down"
	case PoolStarting:
		return "starting"
	case PoolUp:
		return "up"
	case PoolStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

type poolKeyType struct{}

var poolKey poolKeyType

// CurrentPool returns the ThreadPool executing the current task, or nil when
// the context did not come from a pool worker.
func CurrentPool(ctx context.Context) *ThreadPool {
	if v := ctx.Value(poolKey); v != nil {
		return v.(*ThreadPool)
	}
	return nil
}

// =============================================================================
// ThreadPool
// =============================================================================

// ThreadPool owns the shared priority queue and a registry of worker threads.
// A single long-lived attendant loop reconciles the running-worker count
// against the backlog: it grows the pool toward MaxWorkers while the queue is
// non-empty and lets idle workers decommission themselves down to MinWorkers.
//
// Invariants: len(running) never exceeds MaxWorkers, and while the pool is up
// the attendant replaces workers so the count does not stay below MinWorkers.
type ThreadPool struct {
	config PoolConfig
	queue  *WorkQueue

	mu             sync.Mutex
	status         PoolStatus
	stopped        bool // told to stop; cleared by Start
	running        map[*WorkerThread]struct{}
	waiting        []*WorkerThread
	pendingCleanup []*WorkerThread
	nextWorkerID   int
	shutdown       chan struct{}
	upBarrier      chan struct{}
	upClosed       bool
	downBarrier    chan struct{}

	attendantSignal chan struct{}
	baseCtx         context.Context
	delay           *delayManager
	history         executionHistory
}

// NewThreadPool creates a stopped pool with the given worker bounds and
// idle-decommission threshold. Call Start to bring it up.
func NewThreadPool(minWorkers, maxWorkers int, idleTimeout time.Duration) *ThreadPool {
	cfg := DefaultPoolConfig("pool", minWorkers, maxWorkers)
	cfg.IdleTimeout = idleTimeout
	return NewThreadPoolWithConfig(cfg)
}

// NewThreadPoolWithConfig creates a stopped pool from an explicit config.
func NewThreadPoolWithConfig(cfg PoolConfig) *ThreadPool {
	cfg.fillDefaults()
	p := &ThreadPool{
		config:          cfg,
		queue:           NewWorkQueue(cfg.MaxWorkers * 2),
		running:         make(map[*WorkerThread]struct{}),
		attendantSignal: make(chan struct{}, 1),
		history:         newExecutionHistory(defaultHistoryCapacity),
	}
	p.baseCtx = context.WithValue(context.Background(), poolKey, p)
	return p
}

// Name returns the pool's label used in logs and metrics.
func (p *ThreadPool) Name() string { return p.config.Name }

// Status returns the pool's lifecycle state.
func (p *ThreadPool) Status() PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// QueueDepth returns the number of tasks waiting in the shared queue.
func (p *ThreadPool) QueueDepth() int { return p.queue.Len() }

// WorkerStatuses returns an advisory status snapshot of every registered
// worker. Reading it has no effect on scheduling.
func (p *ThreadPool) WorkerStatuses() []WorkerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]WorkerStatus, 0, len(p.running))
	for w := range p.running {
		out = append(out, w.Status())
	}
	return out
}

// Stats returns a read-only snapshot of the pool.
func (p *ThreadPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Name:       p.config.Name,
		Status:     p.status,
		MinWorkers: p.config.MinWorkers,
		MaxWorkers: p.config.MaxWorkers,
		Running:    len(p.running),
		Waiting:    len(p.waiting),
		QueueDepth: p.queue.Len(),
	}
}

// RecentTasks returns recently completed task records, newest first.
func (p *ThreadPool) RecentTasks(limit int) []TaskExecutionRecord {
	return p.history.Recent(limit)
}

// SharedContext returns a root shared context bound to this pool, suitable
// for initializing a fresh task tree.
func (p *ThreadPool) SharedContext() *SharedContext {
	sc := &SharedContext{Pool: p, Logger: p.config.Logger, Metrics: p.config.Metrics}
	sc.fillDefaults()
	return sc
}

// Start launches the attendant loop, which brings up MinWorkers workers.
// With wait set, the caller blocks until the pool reaches steady state.
// Starting an already-up pool is a no-op; starting a stopping pool returns
// ErrShutdown.
func (p *ThreadPool) Start(wait bool) error {
	p.mu.Lock()
	switch p.status {
	case PoolStopping:
		p.mu.Unlock()
		return ErrShutdown
	case PoolDown:
		p.stopped = false
		p.status = PoolStarting
		p.shutdown = make(chan struct{})
		p.upBarrier = make(chan struct{})
		p.upClosed = false
		p.downBarrier = make(chan struct{})
		p.delay = newDelayManager(p)
		go p.attendant()
	}
	barrier := p.upBarrier
	p.mu.Unlock()

	p.config.Logger.Info("pool starting",
		F("pool", p.config.Name),
		F("min", p.config.MinWorkers),
		F("max", p.config.MaxWorkers))
	p.signalAttendant()
	if wait {
		<-barrier
	}
	return nil
}

// Stop signals global shutdown: workers stop pulling new items immediately,
// in-flight executions complete, and queued tasks are resolved with
// ErrShutdown. With wait set, the caller blocks until every worker has
// deregistered and the attendant has exited.
func (p *ThreadPool) Stop(wait bool) error {
	p.mu.Lock()
	if p.status == PoolDown {
		p.mu.Unlock()
		return nil
	}
	var dropped []*Task
	if p.status != PoolStopping {
		p.status = PoolStopping
		p.stopped = true
		close(p.shutdown)
		if !p.upClosed {
			// Release anyone blocked in Start(wait=true).
			p.upClosed = true
			close(p.upBarrier)
		}
		dropped = p.queue.Clear()
		if p.delay != nil {
			p.delay.stop()
		}
	}
	barrier := p.downBarrier
	p.mu.Unlock()

	for _, t := range dropped {
		t.Done(Result{Err: ErrShutdown}, true)
	}
	p.config.Logger.Info("pool stopping",
		F("pool", p.config.Name),
		F("dropped", len(dropped)))
	p.signalAttendant()
	if wait {
		<-barrier
	}
	return nil
}

// Submit enqueues task at the given priority. An uninitialized task is
// initialized against the pool's own shared context first. Returns
// ErrShutdown once the pool has been told to stop.
func (p *ThreadPool) Submit(task *Task, priority TaskPriority) error {
	task.mu.Lock()
	if !task.initialized {
		task.mu.Unlock()
		if err := task.Initialize(nil, p.SharedContext()); err != nil {
			return err
		}
	} else {
		task.mu.Unlock()
	}

	// The push happens under the same lock as the stopped check. Stop flips
	// stopped and clears the queue inside p.mu, so a submission either lands
	// before the clear or observes stopped and is refused; it can never slip
	// into a queue no worker will pop again.
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.config.Metrics.RecordTaskRejected(p.config.Name, "shutdown")
		return ErrShutdown
	}
	p.queue.Push(task, priority)
	p.mu.Unlock()

	p.config.Metrics.RecordQueueDepth(p.config.Name, p.queue.Len())
	p.signalAttendant()
	return nil
}

// SubmitFunc wraps fn in a task, submits it, and returns the Future that
// resolves with fn's outcome.
func (p *ThreadPool) SubmitFunc(fn CallFunc, priority TaskPriority) (*Future, error) {
	task := NewTask(ExecuteFunc(fn)).SetPriority(priority)
	if err := task.Initialize(nil, p.SharedContext()); err != nil {
		return nil, err
	}
	if err := p.Submit(task, priority); err != nil {
		return nil, err
	}
	return task.Future(), nil
}

// SubmitDelayed schedules task for submission after delay. The viewer uses
// this for debounced work like cache trims.
func (p *ThreadPool) SubmitDelayed(task *Task, delay time.Duration, priority TaskPriority) error {
	p.mu.Lock()
	if p.stopped || p.delay == nil {
		p.mu.Unlock()
		p.config.Metrics.RecordTaskRejected(p.config.Name, "shutdown")
		return ErrShutdown
	}
	dm := p.delay
	p.mu.Unlock()
	dm.add(task, delay, priority)
	return nil
}

// AddWorkers grows pool capacity at runtime: MaxWorkers increases by n, and
// when newMin is positive, MinWorkers is raised to it. The attendant picks up
// the new bounds on its next pass.
func (p *ThreadPool) AddWorkers(n int, newMin int) {
	p.mu.Lock()
	if n > 0 {
		p.config.MaxWorkers += n
	}
	if newMin > 0 {
		p.config.MinWorkers = newMin
		if p.config.MinWorkers > p.config.MaxWorkers {
			p.config.MaxWorkers = p.config.MinWorkers
		}
	}
	p.mu.Unlock()
	p.signalAttendant()
}

func (p *ThreadPool) signalAttendant() {
	select {
	case p.attendantSignal <- struct{}{}:
	default:
	}
}

// =============================================================================
// Attendant loop
// =============================================================================

// attendant is the pool's single long-lived reconciliation loop. Each pass it
// reclaims exited workers, promotes one worker when the count is under
// MinWorkers or there is backlog under MaxWorkers, and then sleeps until
// signalled or the tick elapses.
func (p *ThreadPool) attendant() {
	for {
		p.reclaim()

		p.mu.Lock()
		switch p.status {
		case PoolStopping:
			if len(p.running) == 0 {
				p.status = PoolDown
				p.waiting = nil
				barrier := p.downBarrier
				p.mu.Unlock()
				p.config.Metrics.RecordWorkerCount(p.config.Name, 0)
				p.config.Logger.Info("pool down", F("pool", p.config.Name))
				close(barrier)
				return
			}
			p.mu.Unlock()

		default:
			running := len(p.running)
			backlog := p.queue.Len()
			if running < p.config.MinWorkers ||
				(backlog > 0 && running < p.config.MaxWorkers) {
				p.promoteLocked()
				running++
			}
			if p.status == PoolStarting && running >= p.config.MinWorkers && !p.upClosed {
				p.status = PoolUp
				p.upClosed = true
				close(p.upBarrier)
			}
			p.mu.Unlock()
		}

		select {
		case <-p.attendantSignal:
		case <-time.After(attendantTick):
		}
	}
}

// promoteLocked moves one waiting worker into the running set, constructing a
// fresh one when none is parked. Caller holds p.mu.
func (p *ThreadPool) promoteLocked() {
	var w *WorkerThread
	if n := len(p.waiting); n > 0 {
		w = p.waiting[n-1]
		p.waiting = p.waiting[:n-1]
	} else {
		p.nextWorkerID++
		w = newWorkerThread(p.nextWorkerID, p)
	}
	p.running[w] = struct{}{}
	count := len(p.running)
	w.start(p.baseCtx, p.shutdown)

	p.config.Metrics.RecordWorkerCount(p.config.Name, count)
	p.config.Logger.Debug("worker promoted",
		F("pool", p.config.Name),
		F("worker", w.ID()),
		F("running", count))
}

// reclaim releases workers that have fully exited.
func (p *ThreadPool) reclaim() {
	p.mu.Lock()
	exited := p.pendingCleanup
	p.pendingCleanup = nil
	count := len(p.running)
	p.mu.Unlock()

	if len(exited) > 0 {
		p.config.Metrics.RecordWorkerCount(p.config.Name, count)
		for _, w := range exited {
			p.config.Logger.Debug("worker reclaimed",
				F("pool", p.config.Name),
				F("worker", w.ID()))
		}
	}
}

// deregister is called by a worker as its loop exits, whatever the reason.
// The attendant spins up a replacement on its next pass if the count fell
// under MinWorkers.
func (p *ThreadPool) deregister(w *WorkerThread) {
	p.mu.Lock()
	if _, ok := p.running[w]; ok {
		delete(p.running, w)
		p.pendingCleanup = append(p.pendingCleanup, w)
	}
	p.mu.Unlock()
	p.signalAttendant()
}

// offerToQuit is the worker's idle-limit callback. The pool honors the offer
// only while up, above MinWorkers, and with an empty queue; an accepted
// worker is removed from the running set immediately so concurrent offers
// cannot shrink below the floor.
func (p *ThreadPool) offerToQuit(w *WorkerThread) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != PoolUp {
		return false
	}
	if len(p.running) <= p.config.MinWorkers {
		return false
	}
	if p.queue.Len() > 0 {
		return false
	}
	delete(p.running, w)
	p.pendingCleanup = append(p.pendingCleanup, w)
	return true
}

// onTaskFinished records metrics, history, and the error log line for one
// completed task.
func (p *ThreadPool) onTaskFinished(w *WorkerThread, task *Task, res Result) {
	started, finished := task.StartTime(), task.EndTime()
	duration := finished.Sub(started)
	priority := task.Priority()

	p.config.Metrics.RecordTaskDuration(p.config.Name, priority, duration)
	if res.Failed() {
		p.config.Metrics.RecordTaskError(p.config.Name, task.Tag())
		p.config.Logger.Error("task failed",
			F("pool", p.config.Name),
			F("worker", w.ID()),
			F("task", task.Tag()),
			F("err", res.Err))
	}
	p.history.Add(TaskExecutionRecord{
		Tag:        task.Tag(),
		Pool:       p.config.Name,
		Priority:   priority,
		StartedAt:  started,
		FinishedAt: finished,
		Duration:   duration,
		Failed:     res.Failed(),
	})
}
