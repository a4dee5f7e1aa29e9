package guithread

import (
	"context"
	"sync"

	"github.com/example/guithread/core"
)

// =============================================================================
// Default Executor (Singleton)
// =============================================================================

var (
	defaultMu       sync.Mutex
	defaultExecutor *core.TaskExecutor
)

// InitDefaultExecutor initializes the process-wide executor and starts it.
// Repeated calls are no-ops; the first configuration wins.
func InitDefaultExecutor(cfg ExecutorConfig) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultExecutor != nil {
		return // Already initialized
	}

	defaultExecutor = core.NewTaskExecutor("default-executor", cfg)
	defaultExecutor.Start(context.Background())
}

// DefaultExecutor returns the process-wide executor instance.
// It panics if InitDefaultExecutor has not been called.
func DefaultExecutor() *TaskExecutor {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultExecutor == nil {
		panic("guithread: DefaultExecutor not initialized. Call InitDefaultExecutor() first.")
	}
	return defaultExecutor
}

// ShutdownDefaultExecutor stops the process-wide executor and releases the
// singleton so a later InitDefaultExecutor starts fresh.
func ShutdownDefaultExecutor() {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultExecutor != nil {
		defaultExecutor.Shutdown()
		defaultExecutor = nil
	}
}

// Submit queues a callable on the default executor.
func Submit(fn Callable, args ...any) *AsyncResult {
	return DefaultExecutor().Submit(fn, args...)
}

// SubmitNamed queues a callable on the default executor under a diagnostic
// name.
func SubmitNamed(name string, fn Callable, args ...any) *AsyncResult {
	return DefaultExecutor().SubmitNamed(name, fn, args...)
}

// =============================================================================
// Main Loop (Singleton)
// =============================================================================

var (
	mainMu   sync.Mutex
	mainLoop *core.EventLoop
)

// InitMainLoop initializes the process-wide main loop and spawns its
// dedicated goroutine. Repeated calls are no-ops.
//
// The main loop plays the role a GUI toolkit's privileged thread plays:
// state owned by it is only touched from it, and the dispatch helpers
// below route calls onto it from anywhere.
func InitMainLoop() {
	InitMainLoopWithConfig(nil)
}

// InitMainLoopWithConfig is InitMainLoop with explicit collaborators.
func InitMainLoopWithConfig(cfg *LoopConfig) {
	mainMu.Lock()
	defer mainMu.Unlock()

	if mainLoop != nil {
		return // Already initialized
	}

	mainLoop = core.NewEventLoopWithConfig("main-loop", cfg)
}

// MainLoop returns the process-wide main loop instance.
// It panics if InitMainLoop has not been called.
func MainLoop() *EventLoop {
	mainMu.Lock()
	defer mainMu.Unlock()

	if mainLoop == nil {
		panic("guithread: MainLoop not initialized. Call InitMainLoop() first.")
	}
	return mainLoop
}

// ShutdownMainLoop drains the main loop, stops it and releases the
// singleton.
func ShutdownMainLoop() {
	mainMu.Lock()
	loop := mainLoop
	mainLoop = nil
	mainMu.Unlock()

	if loop != nil {
		loop.Stop()
	}
}

// IsMainLoop reports whether the caller is on the main loop goroutine.
// Returns false when the main loop has not been initialized.
func IsMainLoop() bool {
	mainMu.Lock()
	loop := mainLoop
	mainMu.Unlock()

	return loop != nil && loop.IsCurrent()
}

// =============================================================================
// Dispatch helpers bound to the main loop
// =============================================================================

// CallSync runs fn on the main loop and waits for its outcome. Called from
// the main loop itself it invokes fn directly, so nested bridged calls are
// safe.
func CallSync(ctx context.Context, fn Callable, args ...any) (any, error) {
	return core.CallSync(ctx, MainLoop(), fn, args...)
}

// WrapSync returns fn bound to the main loop; every invocation behaves
// like CallSync.
func WrapSync(fn Callable) func(ctx context.Context, args ...any) (any, error) {
	return core.WrapSync(MainLoop(), fn)
}

// WrapLater returns a fire-and-forget form of fn bound to the main loop.
// On the loop it invokes immediately; elsewhere it posts and returns.
func WrapLater(fn Callable) func(args ...any) {
	return core.WrapLater(MainLoop(), fn)
}

// WrapAsync returns a form of fn that always enqueues onto the main loop
// and hands back the pending AsyncResult.
func WrapAsync(fn Callable) func(args ...any) *AsyncResult {
	return core.WrapAsync(MainLoop(), fn)
}

// PostToMain enqueues fn on the main loop without waiting.
func PostToMain(fn func(ctx context.Context)) error {
	return MainLoop().PostFunc(fn)
}
