package core

import (
	"context"
	"runtime/debug"
	"sync"
	"time"
)

// BeforeHook runs on the executing goroutine just before a unit of work
// starts. workerID is -1 when the unit runs outside a pool worker.
type BeforeHook func(workerID int, r *AsyncResult)

// AfterHook runs on the executing goroutine right after a unit of work
// finishes. uncaught is non-nil only for failures that escaped Run itself,
// which a well-behaved unit never produces (Run captures everything).
type AfterHook func(r *AsyncResult, uncaught error)

func nopBeforeHook(workerID int, r *AsyncResult) {}
func nopAfterHook(r *AsyncResult, uncaught error) {}

type resultState int

const (
	statePending resultState = iota
	stateRunning
	stateSucceeded
	stateFailed
	stateCancelled
)

func (s resultState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateRunning:
		return "running"
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	case stateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// =============================================================================
// AsyncResult: Write-once container for the outcome of a unit of work
// =============================================================================

// AsyncResult holds the outcome of a Call executed on some other goroutine.
// It is created where the work is submitted, handed to an executor or loop
// as a Runnable, and read by anyone holding the pointer.
//
// Lifecycle: pending -> running -> succeeded | failed, or
// pending -> cancelled. Exactly one terminal transition ever happens, and
// the done channel closes exactly once, on that transition. Cancelled is
// deliberately distinct from done: IsDone reports only succeeded/failed.
//
// The Call is stored in explicit fields and zeroed on every terminal
// transition, so neither the callable nor its captured arguments outlive
// the execution (see the GC tests).
type AsyncResult struct {
	id   TaskID
	name string

	mu        sync.Mutex
	call      Call
	state     resultState
	value     any
	err       error
	startedAt time.Time

	// done is the binary completion signal. Closed after the terminal
	// state is stored, never before, so a waiter that woke up always
	// observes a terminal state.
	done chan struct{}

	beforeHook BeforeHook
	afterHook  AfterHook
}

// NewAsyncResult wraps a call in a pending result holder.
func NewAsyncResult(call Call) *AsyncResult {
	return &AsyncResult{
		id:         GenerateTaskID(),
		call:       call,
		done:       make(chan struct{}),
		beforeHook: nopBeforeHook,
		afterHook:  nopAfterHook,
	}
}

// WithName attaches a diagnostic name. Names never affect scheduling; they
// show up in logs, history records and metrics. Call before submitting.
func (r *AsyncResult) WithName(name string) *AsyncResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
	return r
}

// WithHooks attaches per-unit hooks. Nil arguments keep the inert default,
// so hook dispatch never needs a nil check. Call before submitting.
func (r *AsyncResult) WithHooks(before BeforeHook, after AfterHook) *AsyncResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if before != nil {
		r.beforeHook = before
	}
	if after != nil {
		r.afterHook = after
	}
	return r
}

// ID returns the generated task identifier.
func (r *AsyncResult) ID() TaskID {
	return r.id
}

// Name returns the diagnostic name, empty if none was set.
func (r *AsyncResult) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

// Run executes the unit of work. It is safe to call more than once and
// safe to call after Cancel: any state other than pending makes it a
// no-op, without touching the signal.
//
// A panic inside the callable is recovered and stored as a failure (the
// PanicError keeps the panic value and stack), so Run never panics and
// the worker that called it survives.
func (r *AsyncResult) Run(ctx context.Context) {
	r.mu.Lock()
	if r.state != statePending {
		r.mu.Unlock()
		return
	}
	r.state = stateRunning
	call := r.call
	r.mu.Unlock()

	// Invoke outside the lock: the body can take arbitrarily long and
	// IsDone/IsCancelled must stay responsive meanwhile.
	value, err := runCall(ctx, call)

	r.mu.Lock()
	r.call = Call{} // release the callable and its captured arguments
	r.value = value
	r.err = err
	if err != nil {
		r.state = stateFailed
	} else {
		r.state = stateSucceeded
	}
	r.mu.Unlock()

	close(r.done)
}

func runCall(ctx context.Context, call Call) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			value = nil
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	return call.Invoke(ctx)
}

// Cancel prevents a not-yet-started unit from ever running. It returns
// true exactly when it performed the transition; once the unit is running
// or finished, Cancel returns false and changes nothing. Cancellation
// never interrupts in-flight work.
//
// Cancel closes the signal so that waiters on a unit that was never
// scheduled wake up and observe the cancellation instead of hanging.
func (r *AsyncResult) Cancel() bool {
	r.mu.Lock()
	if r.state != statePending {
		r.mu.Unlock()
		return false
	}
	r.state = stateCancelled
	r.call = Call{} // release the callable and its captured arguments
	r.mu.Unlock()

	close(r.done)
	return true
}

// Get blocks until the result is terminal or ctx expires.
//
//   - succeeded:  (value, nil)
//   - failed:     (nil, *ExecutionError) wrapping the original failure
//   - cancelled:  (nil, ErrCancelled)
//   - ctx expiry: (nil, ctx.Err()) - the result itself stays pending and a
//     later Get can still succeed, so expiry and cancellation are never
//     confused.
func (r *AsyncResult) Get(ctx context.Context) (any, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		// Prefer a completed outcome over a simultaneous expiry.
		select {
		case <-r.done:
		default:
			return nil, ctx.Err()
		}
	}
	return r.outcome()
}

// GetTimeout is Get with a deadline relative to now.
func (r *AsyncResult) GetTimeout(timeout time.Duration) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return r.Get(ctx)
}

// outcome must only be called after done is closed.
func (r *AsyncResult) outcome() (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.state == stateCancelled:
		return nil, ErrCancelled
	case r.err != nil:
		return nil, &ExecutionError{Cause: r.err}
	default:
		return r.value, nil
	}
}

// Done exposes the completion signal for select-based callers. It becomes
// readable on any terminal transition, including cancellation.
func (r *AsyncResult) Done() <-chan struct{} {
	return r.done
}

// IsDone reports whether the unit produced an outcome (succeeded or
// failed). A cancelled result is not done.
func (r *AsyncResult) IsDone() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateSucceeded || r.state == stateFailed
}

// IsCancelled reports whether the unit was cancelled before it ran.
func (r *AsyncResult) IsCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateCancelled
}

// State returns the current state name, for logs and debugging.
func (r *AsyncResult) State() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.String()
}

// status maps a terminal state to its ExecStatus label.
func (r *AsyncResult) status() ExecStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case stateCancelled:
		return StatusCancelled
	case stateFailed:
		if _, ok := r.err.(*PanicError); ok {
			return StatusPanicked
		}
		return StatusFailed
	default:
		return StatusSucceeded
	}
}

// released reports whether the call fields have been cleared. Used by
// tests to pin down the memory-release contract.
func (r *AsyncResult) released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.call.IsZero()
}

// fail forces a pending result into the failed state. Used by executors
// when the surrounding machinery prevents Run from ever happening (pool
// rejection, hook panic), so waiters get an error instead of hanging.
func (r *AsyncResult) fail(err error) bool {
	r.mu.Lock()
	if r.state != statePending {
		r.mu.Unlock()
		return false
	}
	r.state = stateFailed
	r.call = Call{}
	r.err = err
	r.mu.Unlock()

	close(r.done)
	return true
}

// failure returns the raw stored failure, nil if none.
func (r *AsyncResult) failure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *AsyncResult) markStarted(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startedAt = t
}

func (r *AsyncResult) startedTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startedAt
}

// fireBefore invokes the per-unit before hook.
func (r *AsyncResult) fireBefore(workerID int) {
	r.mu.Lock()
	hook := r.beforeHook
	r.mu.Unlock()
	hook(workerID, r)
}

// fireAfter invokes the per-unit after hook.
func (r *AsyncResult) fireAfter(uncaught error) {
	r.mu.Lock()
	hook := r.afterHook
	r.mu.Unlock()
	hook(r, uncaught)
}
