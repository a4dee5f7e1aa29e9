// Package guithread provides deferred results, a bounded task executor and
// a privileged-goroutine dispatch bridge for Go.
//
// The library implements the threading model GUI and embedded-interpreter
// programs rely on: background work runs on a bounded worker pool, state
// owned by a privileged context (a UI main loop, a CGO-pinned goroutine, a
// resource that must be touched serially) is only reached by posting onto
// that context, and every submission hands back a write-once AsyncResult
// the caller can wait on.
//
// # Quick Start
//
// Initialize the default executor and the main loop at application startup:
//
//	guithread.InitDefaultExecutor(guithread.ExecutorConfig{
//		CoreWorkers: 2,
//		MaxWorkers:  8,
//	})
//	defer guithread.ShutdownDefaultExecutor()
//
//	guithread.InitMainLoop()
//	defer guithread.ShutdownMainLoop()
//
// Submit background work and wait for its outcome:
//
//	r := guithread.Submit(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
//		return fetchUser(ctx, args[0].(string))
//	}, "user-42")
//	user, err := r.Get(context.Background())
//
// Touch loop-owned state from anywhere:
//
//	value, err := guithread.CallSync(ctx, func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
//		return widget.Text(), nil
//	})
//
// # Key Concepts
//
// AsyncResult: the write-once outcome of a submitted unit. Get blocks until
// the unit finishes; failures come back as ExecutionError with the original
// error (or PanicError) as the cause. Cancel prevents a not-yet-started
// unit from ever running.
//
// TaskExecutor: a bounded worker pool (core workers, max workers, idle
// keepalive) that executes Calls and reports each submission through an
// AsyncResult, with before/after hooks, lifetime counters and an execution
// history ring.
//
// EventLoop: a dedicated goroutine executing posted work serially, FIFO.
// Code already on the loop may call through directly; everything else
// posts. CallSync, WrapSync, WrapLater and WrapAsync route function calls
// onto a loop with the call-through, fire-and-forget and always-queue
// flavors.
//
// # Thread Safety
//
// Everything exported here is safe for concurrent use. Work posted to an
// EventLoop never runs concurrently with other work on the same loop, so
// resources owned by a loop need no locks. IsCurrent (and the package
// level IsMainLoop) reports whether the caller is already on the loop's
// goroutine.
//
// # Example
//
//	import (
//		"context"
//
//		"github.com/example/guithread"
//	)
//
//	func main() {
//		guithread.InitDefaultExecutor(guithread.DefaultExecutorConfig())
//		defer guithread.ShutdownDefaultExecutor()
//		guithread.InitMainLoop()
//		defer guithread.ShutdownMainLoop()
//
//		// Background computation
//		sum := guithread.Submit(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
//			return args[0].(int) + args[1].(int), nil
//		}, 3, 4)
//
//		// Main-loop mutation, fire and forget
//		setStatus := guithread.WrapLater(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
//			status = args[0].(string) // owned by the main loop
//			return nil, nil
//		})
//
//		value, _ := sum.Get(context.Background())
//		setStatus("done")
//		_ = value
//	}
//
// Subpackages: core holds the implementation, logging/zaplog the zap
// logging backend, observability/prometheus the metrics exporters.
package guithread
