package core

import (
	"context"
)

// SerialExecutor is the contract the dispatch helpers need from a
// privileged execution context: identity, fire-and-forget posting, and
// a blocking round trip. EventLoop is the canonical implementation.
type SerialExecutor interface {
	IsCurrent() bool
	PostTask(r Runnable) error
	RunAndWait(ctx context.Context, r Runnable) error
}

var _ SerialExecutor = (*EventLoop)(nil)

// =============================================================================
// Dispatch bridge: route calls onto a serial context
// =============================================================================

// CallSync runs fn on loop and waits for the outcome.
//
// When the caller is already on the loop, fn is invoked directly and its
// result and error are returned untouched, with nothing enqueued. This
// is what makes nested bridged calls safe: code running on the loop can
// call a bridged function without deadlocking against its own queue.
//
// From any other goroutine the call is queued as an AsyncResult, waited
// for, and resolved through Get, so a failure comes back wrapped in
// ExecutionError with the original error as its cause.
func CallSync(ctx context.Context, loop SerialExecutor, fn Callable, args ...any) (any, error) {
	return CallSyncCall(ctx, loop, NewCall(fn, args...))
}

// CallSyncCall is CallSync for a prepared Call.
func CallSyncCall(ctx context.Context, loop SerialExecutor, c Call) (any, error) {
	if loop.IsCurrent() {
		return c.Invoke(ctx)
	}

	r := NewAsyncResult(c)
	if err := loop.RunAndWait(ctx, r); err != nil {
		// The loop never ran it: ctx expired, the loop stopped, or the
		// post was rejected. The unit may still run later; its outcome
		// is discarded.
		return nil, err
	}
	return r.Get(ctx)
}

// WrapSync returns fn bound to loop: every invocation goes through
// CallSync.
func WrapSync(loop SerialExecutor, fn Callable) func(ctx context.Context, args ...any) (any, error) {
	return func(ctx context.Context, args ...any) (any, error) {
		return CallSync(ctx, loop, fn, args...)
	}
}

// WrapLater returns a fire-and-forget form of fn bound to loop. On the
// loop it invokes fn immediately; elsewhere it posts a plain runnable
// and returns without waiting. The result and error are discarded
// either way. A panic still reaches the loop's panic handler, on both
// paths.
func WrapLater(loop SerialExecutor, fn Callable) func(args ...any) {
	return func(args ...any) {
		c := NewCall(fn, args...)
		if loop.IsCurrent() {
			_, _ = c.Invoke(context.Background())
			return
		}
		_ = loop.PostTask(RunnableFunc(func(ctx context.Context) {
			_, _ = c.Invoke(ctx)
		}))
	}
}

// WrapAsync returns a form of fn that always enqueues onto loop, even
// when called from the loop itself, and hands back the pending
// AsyncResult immediately. Callers poll or block on it at their leisure.
// If the loop has closed, the returned result is already failed.
func WrapAsync(loop SerialExecutor, fn Callable) func(args ...any) *AsyncResult {
	return func(args ...any) *AsyncResult {
		r := NewAsyncResult(NewCall(fn, args...)).WithName(resolveCallableName(fn))
		if err := loop.PostTask(r); err != nil {
			r.fail(err)
		}
		return r
	}
}
