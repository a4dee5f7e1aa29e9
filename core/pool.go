package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// =============================================================================
// PoolConfig
// =============================================================================

// PoolConfig sizes and wires a Pool. All collaborators are optional; nil
// fields are backfilled with defaults by NewPool.
type PoolConfig struct {
	// CoreWorkers is the number of workers kept alive while the pool runs.
	CoreWorkers int

	// MaxWorkers is the hard ceiling. Extra workers beyond CoreWorkers are
	// spawned when work arrives and nobody is idle, and retire again after
	// sitting idle for KeepAlive.
	MaxWorkers int

	// KeepAlive is how long a surplus worker may sit idle before exiting.
	KeepAlive time.Duration

	// Queue is the pluggable work queue. Defaults to a FIFO Deque.
	Queue WorkQueue

	// BeforeExecute runs on the worker goroutine immediately before each
	// runnable. This is the extension point an executor hangs its hook
	// chain on.
	BeforeExecute func(workerID int, r Runnable)

	// AfterExecute runs on the worker goroutine after each runnable.
	// uncaught is non-nil only when the runnable (or BeforeExecute)
	// panicked.
	AfterExecute func(workerID int, r Runnable, uncaught error)

	Logger              Logger
	Metrics             Metrics
	PanicHandler        PanicHandler
	RejectedTaskHandler RejectedTaskHandler
}

// DefaultPoolConfig mirrors the classic single-threaded-executor defaults:
// one core worker, no surplus, five second keepalive.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		CoreWorkers: 1,
		MaxWorkers:  1,
		KeepAlive:   5 * time.Second,
	}
}

func (cfg PoolConfig) normalized() PoolConfig {
	if cfg.CoreWorkers < 1 {
		cfg.CoreWorkers = 1
	}
	if cfg.MaxWorkers < cfg.CoreWorkers {
		cfg.MaxWorkers = cfg.CoreWorkers
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 5 * time.Second
	}
	if cfg.Queue == nil {
		cfg.Queue = NewDeque()
	}
	if cfg.BeforeExecute == nil {
		cfg.BeforeExecute = func(workerID int, r Runnable) {}
	}
	if cfg.AfterExecute == nil {
		cfg.AfterExecute = func(workerID int, r Runnable, uncaught error) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = NewDefaultLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &NilMetrics{}
	}
	if cfg.PanicHandler == nil {
		cfg.PanicHandler = &DefaultPanicHandler{}
	}
	if cfg.RejectedTaskHandler == nil {
		cfg.RejectedTaskHandler = &DefaultRejectedTaskHandler{}
	}
	return cfg
}

// =============================================================================
// Pool: Bounded, dynamically sized worker pool
// =============================================================================

// Pool executes Runnables on worker goroutines pulled from an unbounded
// queue. It grows from CoreWorkers up to MaxWorkers under load and shrinks
// back when workers idle past KeepAlive.
type Pool struct {
	name  string
	cfg   PoolConfig
	queue WorkQueue

	// signal carries wake-up hints to idle workers. Pushes are
	// non-blocking; a dropped hint is harmless because workers re-check
	// the queue at least every KeepAlive.
	signal chan struct{}

	mu           sync.Mutex // guards lifecycle and worker accounting
	running      bool
	workers      int
	nextWorkerID int
	ctx          context.Context
	cancel       context.CancelFunc
	g            *errgroup.Group

	draining atomic.Bool
	idle     atomic.Int32
	queued   atomic.Int32
	active   atomic.Int32
}

// NewPool builds a pool. Call Start before submitting work.
func NewPool(name string, cfg PoolConfig) *Pool {
	cfg = cfg.normalized()
	return &Pool{
		name:   name,
		cfg:    cfg,
		queue:  cfg.Queue,
		signal: make(chan struct{}, cfg.MaxWorkers*2),
	}
}

// Name returns the pool name used in logs and metrics.
func (p *Pool) Name() string {
	return p.name
}

// Start spawns the core workers. Calling Start on a running pool is a
// no-op. The given ctx bounds the lifetime of all workers.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.g = &errgroup.Group{}
	p.running = true
	p.draining.Store(false)

	for i := 0; i < p.cfg.CoreWorkers; i++ {
		p.spawnWorkerLocked()
	}

	p.cfg.Logger.Info("pool started",
		F("pool", p.name),
		F("core", p.cfg.CoreWorkers),
		F("max", p.cfg.MaxWorkers))
}

// Execute queues a runnable. It never blocks; the queue is unbounded. If
// nobody is idle and the pool is below MaxWorkers, a surplus worker is
// spawned to pick the work up. Returns ErrRejected when the pool is not
// accepting work.
func (p *Pool) Execute(r Runnable) error {
	if p.draining.Load() {
		return p.reject("draining")
	}

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return p.reject("not running")
	}
	// The spawn decision shares the lock with worker accounting so the
	// worker count can never overshoot MaxWorkers.
	if p.idle.Load() == 0 && p.workers < p.cfg.MaxWorkers {
		p.spawnWorkerLocked()
	}
	p.mu.Unlock()

	p.queue.Push(r)
	depth := p.queued.Add(1)
	p.cfg.Metrics.RecordQueueDepth(p.name, int(depth))

	select {
	case p.signal <- struct{}{}:
	default:
		// Signal channel full; the push is already visible to workers.
	}
	return nil
}

func (p *Pool) reject(reason string) error {
	p.cfg.RejectedTaskHandler.HandleRejectedTask(p.name, reason)
	p.cfg.Metrics.RecordRejected(p.name, reason)
	return ErrRejected
}

func (p *Pool) spawnWorkerLocked() {
	id := p.nextWorkerID
	p.nextWorkerID++
	p.workers++

	ctx := p.ctx
	p.g.Go(func() error {
		p.workerLoop(ctx, id)
		return nil
	})
}

// workerLoop is the main loop for each worker.
func (p *Pool) workerLoop(ctx context.Context, id int) {
	p.cfg.Logger.Debug("worker started", F("pool", p.name), F("worker", id))
	for {
		r, ok := p.getWork(ctx)
		if !ok {
			p.cfg.Logger.Debug("worker exiting", F("pool", p.name), F("worker", id))
			return
		}
		p.runOne(ctx, id, r)
	}
}

// getWork pops the next runnable, waiting on the signal channel when the
// queue is empty. Returns false when the worker should exit: pool stopped,
// or idle past KeepAlive with the core set already covered.
func (p *Pool) getWork(ctx context.Context) (Runnable, bool) {
	for {
		if r, ok := p.queue.Pop(); ok {
			depth := p.queued.Add(-1)
			p.cfg.Metrics.RecordQueueDepth(p.name, int(depth))
			return r, true
		}

		p.idle.Add(1)
		timer := time.NewTimer(p.cfg.KeepAlive)
		select {
		case <-p.signal:
			timer.Stop()
			p.idle.Add(-1)
		case <-timer.C:
			p.idle.Add(-1)
			if p.tryRetire() {
				return nil, false
			}
			// Core worker: keep waiting. The periodic wake doubles as a
			// backstop against a dropped signal hint.
		case <-ctx.Done():
			timer.Stop()
			p.idle.Add(-1)
			return nil, false
		}
	}
}

// tryRetire decides under the lock whether an idle-timed-out worker may
// exit. The decrement happens here so two workers cannot both retire past
// the core count.
func (p *Pool) tryRetire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || p.workers <= p.cfg.CoreWorkers {
		return false
	}
	p.workers--
	return true
}

// runOne executes a single runnable with the before/after extension points
// around it. Panics out of the runnable or the hooks are captured and
// routed to the panic handler; the worker always survives.
func (p *Pool) runOne(ctx context.Context, workerID int, r Runnable) {
	p.active.Add(1)
	defer p.active.Add(-1)

	uncaught := p.guard(workerID, func() {
		p.cfg.BeforeExecute(workerID, r)
		r.Run(ctx)
	})
	p.guard(workerID, func() {
		p.cfg.AfterExecute(workerID, r, uncaught)
	})
}

// guard runs fn, converting a panic into a PanicError routed to the panic
// handler. Returns the captured failure, nil when fn completed.
func (p *Pool) guard(workerID int, fn func()) (failure error) {
	defer func() {
		if rec := recover(); rec != nil {
			pe := &PanicError{Value: rec, Stack: debug.Stack()}
			failure = pe
			p.cfg.PanicHandler.HandlePanic(p.name, workerID, rec, pe.Stack)
			p.cfg.Metrics.RecordPanic(p.name)
		}
	}()
	fn()
	return nil
}

// Stop stops the pool immediately. Queued work is dropped and its
// references released; in-flight runnables finish first (workers join).
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		// Release queued references even if the pool never started.
		p.queue.Clear()
		p.queued.Store(0)
		return
	}
	p.running = false
	cancel := p.cancel
	g := p.g
	p.mu.Unlock()

	cancel()
	_ = g.Wait()

	p.mu.Lock()
	p.workers = 0
	p.mu.Unlock()

	p.queue.Clear()
	p.queued.Store(0)
	p.cfg.Logger.Info("pool stopped", F("pool", p.name))
}

// StopGraceful refuses new work, waits up to timeout for the queue to
// drain and in-flight work to finish, then stops. Returns an error when
// the deadline passed and the stop had to be forced.
func (p *Pool) StopGraceful(timeout time.Duration) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	p.draining.Store(true)

	deadline := time.After(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			p.Stop()
			return fmt.Errorf("graceful stop timeout after %v, forced stop", timeout)
		case <-ticker.C:
			if p.QueuedCount() == 0 && p.ActiveCount() == 0 {
				p.Stop()
				return nil
			}
		}
	}
}

// IsRunning reports whether Start has been called and Stop has not.
func (p *Pool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// WorkerCount returns the current number of live workers.
func (p *Pool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// IdleCount returns the number of workers currently waiting for work.
func (p *Pool) IdleCount() int {
	return int(p.idle.Load())
}

// QueuedCount returns the number of runnables waiting in the queue.
func (p *Pool) QueuedCount() int {
	return int(p.queued.Load())
}

// ActiveCount returns the number of runnables currently executing.
func (p *Pool) ActiveCount() int {
	return int(p.active.Load())
}

// Stats returns a point-in-time snapshot.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	workers := p.workers
	running := p.running
	p.mu.Unlock()

	return PoolStats{
		Name:    p.name,
		Workers: workers,
		Idle:    p.IdleCount(),
		Queued:  p.QueuedCount(),
		Active:  p.ActiveCount(),
		Running: running,
	}
}
