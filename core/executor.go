package core

import (
	"context"
	"sync/atomic"
	"time"
)

// =============================================================================
// ExecutorConfig
// =============================================================================

// ExecutorConfig sizes the wrapped pool and wires pool-wide hooks and
// collaborators. Nil fields are backfilled by NewTaskExecutor.
type ExecutorConfig struct {
	// Pool sizing, passed through to the wrapped Pool.
	CoreWorkers int
	MaxWorkers  int
	KeepAlive   time.Duration
	Queue       WorkQueue

	// BeforeExecute runs before every unit, ahead of the unit's own hook.
	BeforeExecute BeforeHook

	// AfterExecute runs after every unit, following the unit's own hook.
	AfterExecute AfterHook

	Logger       Logger
	Metrics      Metrics
	PanicHandler PanicHandler

	// HistorySize caps the execution-record ring. Defaults to 100.
	HistorySize int
}

// DefaultExecutorConfig returns the classic defaults: a single worker,
// five second keepalive, FIFO queue.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		CoreWorkers: 1,
		MaxWorkers:  1,
		KeepAlive:   5 * time.Second,
		HistorySize: defaultHistoryCapacity,
	}
}

// =============================================================================
// TaskExecutor: Bounded pool + deferred results + lifecycle hooks
// =============================================================================

// TaskExecutor runs Calls on a bounded worker pool and hands back an
// AsyncResult per submission. Around every unit it chains the pool-wide
// hooks with the unit's own, and it keeps counters plus a ring of recent
// execution records for diagnostics.
type TaskExecutor struct {
	name string
	pool *Pool

	beforeAll BeforeHook
	afterAll  AfterHook

	logger  Logger
	metrics Metrics

	history executionHistory

	submitted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
	panicked  atomic.Int64
	rejected  atomic.Int64
}

// NewTaskExecutor builds an executor and its wrapped pool. Call Start
// before submitting.
func NewTaskExecutor(name string, cfg ExecutorConfig) *TaskExecutor {
	if name == "" {
		name = "task-executor"
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistoryCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = NewDefaultLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &NilMetrics{}
	}

	e := &TaskExecutor{
		name:      name,
		beforeAll: cfg.BeforeExecute,
		afterAll:  cfg.AfterExecute,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		history:   newExecutionHistory(cfg.HistorySize),
	}
	if e.beforeAll == nil {
		e.beforeAll = nopBeforeHook
	}
	if e.afterAll == nil {
		e.afterAll = nopAfterHook
	}

	e.pool = NewPool(name, PoolConfig{
		CoreWorkers:   cfg.CoreWorkers,
		MaxWorkers:    cfg.MaxWorkers,
		KeepAlive:     cfg.KeepAlive,
		Queue:         cfg.Queue,
		BeforeExecute: e.beforeExecute,
		AfterExecute:  e.afterExecute,
		Logger:        cfg.Logger,
		Metrics:       cfg.Metrics,
		PanicHandler:  cfg.PanicHandler,
	})

	return e
}

// Name returns the executor name used in logs, records and metrics.
func (e *TaskExecutor) Name() string {
	return e.name
}

// Start launches the core workers. ctx bounds the lifetime of the pool.
func (e *TaskExecutor) Start(ctx context.Context) {
	e.pool.Start(ctx)
}

// Shutdown stops the pool immediately; queued units are dropped (their
// results stay pending - cancel them first if waiters exist).
func (e *TaskExecutor) Shutdown() {
	e.pool.Stop()
}

// ShutdownGraceful drains the queue before stopping, up to timeout.
func (e *TaskExecutor) ShutdownGraceful(timeout time.Duration) error {
	return e.pool.StopGraceful(timeout)
}

// =============================================================================
// Submission
// =============================================================================

// SubmitTask is the full-form submission: an explicit Call, an optional
// diagnostic name and optional per-unit hooks. It always returns a usable
// AsyncResult; when the pool refuses the work the result is failed with
// ErrRejected so Get reports the refusal instead of blocking forever.
func (e *TaskExecutor) SubmitTask(name string, call Call, before BeforeHook, after AfterHook) *AsyncResult {
	if name == "" {
		name = resolveCallableName(call.Fn)
	}
	r := NewAsyncResult(call).WithName(name).WithHooks(before, after)

	e.submitted.Add(1)
	if err := e.pool.Execute(r); err != nil {
		e.rejected.Add(1)
		r.fail(err)
		e.logger.Warn("submission rejected",
			F("executor", e.name), F("task", r.ID()), F("name", name))
	}
	return r
}

// Submit queues a callable with positional arguments.
func (e *TaskExecutor) Submit(fn Callable, args ...any) *AsyncResult {
	return e.SubmitTask("", NewCall(fn, args...), nil, nil)
}

// SubmitCall queues a prepared Call (use this for keyword arguments).
func (e *TaskExecutor) SubmitCall(c Call) *AsyncResult {
	return e.SubmitTask("", c, nil, nil)
}

// SubmitNamed queues a callable under a diagnostic name. The name shows up
// in logs, history and metrics; it never affects scheduling.
func (e *TaskExecutor) SubmitNamed(name string, fn Callable, args ...any) *AsyncResult {
	return e.SubmitTask(name, NewCall(fn, args...), nil, nil)
}

// Task wraps a callable so that invoking the wrapper submits it. The
// returned function is safe to call from any goroutine.
func (e *TaskExecutor) Task(fn Callable) func(args ...any) *AsyncResult {
	return func(args ...any) *AsyncResult {
		return e.SubmitTask("", NewCall(fn, args...), nil, nil)
	}
}

// NamedTask is Task with a fixed name and per-unit hooks bound in.
func (e *TaskExecutor) NamedTask(name string, before BeforeHook, after AfterHook, fn Callable) func(args ...any) *AsyncResult {
	return func(args ...any) *AsyncResult {
		return e.SubmitTask(name, NewCall(fn, args...), before, after)
	}
}

// =============================================================================
// Pool extension points
// =============================================================================

// beforeExecute chains the pool-wide before hook with the unit's own.
// Runs on the worker goroutine; a panic here is captured by the pool and
// surfaces as the unit's uncaught failure.
func (e *TaskExecutor) beforeExecute(workerID int, r Runnable) {
	ar, ok := r.(*AsyncResult)
	if !ok {
		return
	}
	ar.markStarted(time.Now())
	e.beforeAll(workerID, ar)
	ar.fireBefore(workerID)
}

// afterExecute finishes the unit's bookkeeping and chains the after hooks
// (unit's own first, then pool-wide). uncaught is non-nil only when the
// unit or a before hook panicked through the pool's guard.
func (e *TaskExecutor) afterExecute(workerID int, r Runnable, uncaught error) {
	ar, ok := r.(*AsyncResult)
	if !ok {
		return
	}

	if uncaught != nil {
		// A hook blew up before Run could happen; fail the result so
		// waiters are not left hanging. No-op if Run already finished.
		ar.fail(uncaught)
	}

	// Bookkeeping first: a panicking after hook must not lose the record.
	finished := time.Now()
	started := ar.startedTime()
	status := ar.status()
	switch status {
	case StatusSucceeded:
		e.succeeded.Add(1)
	case StatusFailed:
		e.failed.Add(1)
	case StatusPanicked:
		e.panicked.Add(1)
	case StatusCancelled:
		e.cancelled.Add(1)
	}

	duration := finished.Sub(started)
	e.metrics.RecordExecution(e.name, status, duration)

	rec := ExecutionRecord{
		ID:         ar.ID(),
		Name:       ar.Name(),
		Source:     e.name,
		WorkerID:   workerID,
		StartedAt:  started,
		FinishedAt: finished,
		Duration:   duration,
		Status:     status,
	}
	if err := ar.failure(); err != nil {
		rec.Err = err.Error()
	}
	e.history.Add(rec)

	ar.fireAfter(uncaught)
	e.afterAll(ar, uncaught)
}

// =============================================================================
// Introspection
// =============================================================================

// IsRunning reports whether the executor accepts work.
func (e *TaskExecutor) IsRunning() bool { return e.pool.IsRunning() }

// WorkerCount returns the current number of live workers.
func (e *TaskExecutor) WorkerCount() int { return e.pool.WorkerCount() }

// QueuedCount returns the number of units waiting to run.
func (e *TaskExecutor) QueuedCount() int { return e.pool.QueuedCount() }

// ActiveCount returns the number of units currently executing.
func (e *TaskExecutor) ActiveCount() int { return e.pool.ActiveCount() }

// Recent returns up to limit execution records, newest first.
func (e *TaskExecutor) Recent(limit int) []ExecutionRecord {
	return e.history.Recent(limit)
}

// LastRecord returns the most recent execution record.
func (e *TaskExecutor) LastRecord() (ExecutionRecord, bool) {
	return e.history.Last()
}

// Stats returns a point-in-time snapshot including lifetime counters.
func (e *TaskExecutor) Stats() ExecutorStats {
	return ExecutorStats{
		PoolStats: e.pool.Stats(),
		Submitted: e.submitted.Load(),
		Succeeded: e.succeeded.Load(),
		Failed:    e.failed.Load(),
		Cancelled: e.cancelled.Load(),
		Panicked:  e.panicked.Load(),
		Rejected:  e.rejected.Load(),
	}
}
