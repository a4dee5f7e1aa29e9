package core

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// goroutineID parses the numeric goroutine id out of runtime.Stack.
// Not free, so callers on hot paths should cache what they can; the
// dispatch bridge pays this once per call, which is fine next to the
// cross-goroutine round trip it guards.
func goroutineID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	// Stack output starts with "goroutine <id> [".
	s := strings.TrimPrefix(string(buf), "goroutine ")
	if i := strings.IndexByte(s, ' '); i > 0 {
		if id, err := strconv.ParseUint(s[:i], 10, 64); err == nil {
			return id
		}
	}
	return 0
}

// LoopConfig wires optional collaborators into an EventLoop.
type LoopConfig struct {
	Logger              Logger
	Metrics             Metrics
	PanicHandler        PanicHandler
	RejectedTaskHandler RejectedTaskHandler
}

// =============================================================================
// EventLoop: Dedicated-goroutine serial execution context
// =============================================================================

// EventLoop binds a dedicated goroutine that executes posted work
// serially, FIFO. It stands in for the privileged thread of a GUI
// toolkit: everything that touches loop-owned state is posted here, and
// code already running on the loop may call through directly.
//
// Use cases:
// 1. Simulating a UI / main thread that owns widgets or shared state
// 2. Serializing access to a resource without locks
// 3. CGO or IO that wants thread affinity
type EventLoop struct {
	queue  WorkQueue
	signal chan struct{}

	// Lifecycle control
	ctx    context.Context
	cancel context.CancelFunc

	// For graceful shutdown
	stopped      chan struct{}
	once         sync.Once
	closed       atomic.Bool
	shutdownChan chan struct{}
	shutdownOnce sync.Once

	// Identity of the dedicated goroutine, set by runLoop before it pops
	// its first task.
	loopGoroutine atomic.Uint64

	processed atomic.Int64
	panics    atomic.Int64

	logger          Logger
	metrics         Metrics
	panicHandler    PanicHandler
	rejectedHandler RejectedTaskHandler

	mu   sync.Mutex
	name string
}

// NewEventLoop creates and starts a loop with default collaborators.
func NewEventLoop(name string) *EventLoop {
	return NewEventLoopWithConfig(name, nil)
}

// NewEventLoopWithConfig creates and starts a loop. It immediately spawns
// the dedicated goroutine.
func NewEventLoopWithConfig(name string, cfg *LoopConfig) *EventLoop {
	if name == "" {
		name = "event-loop"
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &EventLoop{
		queue:        NewDeque(),
		signal:       make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
		stopped:      make(chan struct{}),
		shutdownChan: make(chan struct{}),
		name:         name,
	}

	if cfg != nil {
		l.logger = cfg.Logger
		l.metrics = cfg.Metrics
		l.panicHandler = cfg.PanicHandler
		l.rejectedHandler = cfg.RejectedTaskHandler
	}
	if l.logger == nil {
		l.logger = NewDefaultLogger()
	}
	if l.metrics == nil {
		l.metrics = &NilMetrics{}
	}
	if l.panicHandler == nil {
		l.panicHandler = &DefaultPanicHandler{}
	}
	if l.rejectedHandler == nil {
		l.rejectedHandler = &DefaultRejectedTaskHandler{}
	}

	// Start the dedicated message loop
	go l.runLoop()

	return l
}

// Name returns the name of the loop
func (l *EventLoop) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.name
}

// SetName sets the name of the loop
func (l *EventLoop) SetName(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.name = name
}

// IsCurrent reports whether the caller is running on the loop goroutine.
// This needs no context plumbing, so it works from arbitrary call depth.
func (l *EventLoop) IsCurrent() bool {
	id := l.loopGoroutine.Load()
	return id != 0 && goroutineID() == id
}

// PostTask enqueues work without blocking the caller (the queue is
// unbounded). Returns ErrRejected once the loop is closed.
func (l *EventLoop) PostTask(r Runnable) error {
	if l.closed.Load() {
		l.rejectedHandler.HandleRejectedTask(l.Name(), "closed")
		l.metrics.RecordRejected(l.Name(), "closed")
		return ErrRejected
	}

	l.queue.Push(r)
	l.metrics.RecordQueueDepth(l.Name(), l.queue.Len())

	select {
	case l.signal <- struct{}{}:
	default:
		// Wake-up already pending; the push is visible to the loop.
	}
	return nil
}

// PostFunc is PostTask for a plain function.
func (l *EventLoop) PostFunc(fn func(ctx context.Context)) error {
	return l.PostTask(RunnableFunc(fn))
}

// RunAndWait posts r and blocks until it has run on the loop, ctx
// expires, or the loop stops first. When the caller is already on the
// loop goroutine, r runs inline - queuing would deadlock the loop
// against itself.
//
// A panic raised by r is re-raised on the caller's goroutine with the
// original panic value.
func (l *EventLoop) RunAndWait(ctx context.Context, r Runnable) error {
	if l.IsCurrent() {
		r.Run(ctx)
		return nil
	}

	done := make(chan struct{})
	var panicValue any
	var panicked bool

	wrapper := RunnableFunc(func(runCtx context.Context) {
		defer close(done)
		defer func() {
			if rec := recover(); rec != nil {
				panicked = true
				panicValue = rec
			}
		}()
		r.Run(runCtx)
	})

	if err := l.PostTask(wrapper); err != nil {
		return err
	}

	finish := func() error {
		if panicked {
			panic(panicValue)
		}
		return nil
	}

	select {
	case <-done:
		return finish()
	case <-ctx.Done():
		// Prefer a completed run over a simultaneous expiry.
		select {
		case <-done:
			return finish()
		default:
		}
		return ctx.Err()
	case <-l.stopped:
		select {
		case <-done:
			return finish()
		default:
		}
		return fmt.Errorf("event loop %q stopped before task completed: %w", l.Name(), ErrRejected)
	}
}

// runLoop is the core of the loop, it occupies a dedicated goroutine.
func (l *EventLoop) runLoop() {
	defer close(l.stopped)

	l.loopGoroutine.Store(goroutineID())

	// Tasks can find their loop through the context.
	runCtx := context.WithValue(l.ctx, currentLoopKey, l)

	for {
		// Stop() exits at the next task boundary, even mid-drain.
		select {
		case <-l.ctx.Done():
			return
		default:
		}

		if r, ok := l.queue.Pop(); ok {
			l.runOne(runCtx, r)
			continue
		}

		// Backlog drained: a pending Shutdown can now complete.
		if l.closed.Load() {
			return
		}

		select {
		case <-l.signal:
		case <-l.ctx.Done():
			return
		}
	}
}

// runOne executes a single runnable and catches panics so the loop
// survives misbehaving work.
func (l *EventLoop) runOne(ctx context.Context, r Runnable) {
	start := time.Now()
	status := StatusSucceeded

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				status = StatusPanicked
				l.panics.Add(1)
				l.logger.Error("task panicked on loop",
					F("loop", l.Name()),
					F("task", resolveRunnableName(r)),
					F("panic", rec))
				l.panicHandler.HandlePanic(l.Name(), -1, rec, debug.Stack())
				l.metrics.RecordPanic(l.Name())
			}
		}()
		r.Run(ctx)
	}()

	if ar, ok := r.(*AsyncResult); ok {
		status = ar.status()
	}
	l.processed.Add(1)
	l.metrics.RecordExecution(l.Name(), status, time.Since(start))
}

// Shutdown stops intake, lets the backlog drain, then ends the loop.
// Safe to call from a task running on the loop itself.
//
// After calling Shutdown():
// - WaitShutdown() will return
// - IsClosed() will return true
// - New posts are rejected
// - Already queued work still executes
func (l *EventLoop) Shutdown() {
	l.shutdownOnce.Do(func() {
		l.closed.Store(true)
		// Wake the loop so it notices the closed flag with an empty queue.
		select {
		case l.signal <- struct{}{}:
		default:
		}
		close(l.shutdownChan)
		l.logger.Debug("event loop shutting down", F("loop", l.Name()))
	})
}

// IsClosed returns true once Shutdown or Stop has been called.
func (l *EventLoop) IsClosed() bool {
	return l.closed.Load()
}

// Stop ends the loop at the next task boundary and drops the backlog,
// releasing its references. The in-flight task finishes first.
func (l *EventLoop) Stop() {
	l.once.Do(func() {
		l.Shutdown()
		l.cancel()

		// Wait for runLoop to finish unless we ARE the loop (a task
		// calling Stop would deadlock waiting for itself).
		if !l.IsCurrent() {
			<-l.stopped
		}

		l.queue.Clear()
		l.logger.Debug("event loop stopped",
			F("loop", l.Name()),
			F("processed", l.processed.Load()))
	})
}

// WaitIdle blocks until everything posted before it has run, by posting a
// barrier and waiting for it.
func (l *EventLoop) WaitIdle(ctx context.Context) error {
	if l.IsClosed() {
		return fmt.Errorf("loop is closed")
	}

	done := make(chan struct{})
	if err := l.PostTask(RunnableFunc(func(context.Context) { close(done) })); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FlushAsync posts a barrier that invokes callback on the loop once all
// previously posted work has completed. Non-blocking WaitIdle.
func (l *EventLoop) FlushAsync(callback func()) {
	_ = l.PostTask(RunnableFunc(func(context.Context) {
		callback()
	}))
}

// WaitShutdown blocks until Shutdown() is called on this loop, by an
// external caller or by a task running on the loop itself.
func (l *EventLoop) WaitShutdown(ctx context.Context) error {
	select {
	case <-l.shutdownChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PendingCount returns the number of queued, not yet executed runnables.
func (l *EventLoop) PendingCount() int {
	return l.queue.Len()
}

// Stats returns a point-in-time snapshot.
func (l *EventLoop) Stats() LoopStats {
	return LoopStats{
		Name:      l.Name(),
		Pending:   l.PendingCount(),
		Processed: l.processed.Load(),
		Panics:    l.panics.Load(),
		Closed:    l.IsClosed(),
	}
}
