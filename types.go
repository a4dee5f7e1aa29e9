package guithread

import "github.com/example/guithread/core"

// Re-export commonly used types from the core package for convenience.
// This allows users to import only the guithread package for most use cases.

// Callable is the unit-of-work function shape.
type Callable = core.Callable

// Call binds a Callable to the arguments captured at submission time.
type Call = core.Call

// Runnable is anything the pools and loops can execute.
type Runnable = core.Runnable

// RunnableFunc adapts a plain function to Runnable.
type RunnableFunc = core.RunnableFunc

// AsyncResult is the write-once deferred outcome of a submitted unit.
type AsyncResult = core.AsyncResult

// TaskExecutor runs Calls on a bounded worker pool and hands back
// AsyncResults.
type TaskExecutor = core.TaskExecutor

// ExecutorConfig sizes an executor's pool and wires its hooks.
type ExecutorConfig = core.ExecutorConfig

// ExecutorStats is a point-in-time executor snapshot.
type ExecutorStats = core.ExecutorStats

// EventLoop is a dedicated-goroutine serial execution context.
type EventLoop = core.EventLoop

// LoopConfig wires optional collaborators into an EventLoop.
type LoopConfig = core.LoopConfig

// LoopStats is a point-in-time loop snapshot.
type LoopStats = core.LoopStats

// SerialExecutor is the contract the dispatch helpers need from a
// privileged execution context.
type SerialExecutor = core.SerialExecutor

// Pool is the bounded worker pool underneath TaskExecutor, usable on its
// own for plain runnables.
type Pool = core.Pool

// PoolConfig sizes a Pool.
type PoolConfig = core.PoolConfig

// PoolStats is a point-in-time pool snapshot.
type PoolStats = core.PoolStats

// WorkQueue is the pluggable FIFO behind pools and loops.
type WorkQueue = core.WorkQueue

// BeforeHook runs on the worker goroutine before a unit executes.
type BeforeHook = core.BeforeHook

// AfterHook runs on the worker goroutine after a unit finishes.
type AfterHook = core.AfterHook

// ExecutionRecord captures one finished unit of work.
type ExecutionRecord = core.ExecutionRecord

// ExecStatus labels the terminal state of an executed unit.
type ExecStatus = core.ExecStatus

// TaskID identifies a submitted unit in logs and history.
type TaskID = core.TaskID

// Logger is the structured logging seam (see logging/zaplog for the zap
// backend).
type Logger = core.Logger

// Field is a key-value pair attached to a log message.
type Field = core.Field

// Metrics receives execution events (see observability/prometheus).
type Metrics = core.Metrics

// PanicHandler is called when a unit of work panics.
type PanicHandler = core.PanicHandler

// RejectedTaskHandler is called when a submission is refused.
type RejectedTaskHandler = core.RejectedTaskHandler

// ExecutionError wraps a failure produced by a unit of work.
type ExecutionError = core.ExecutionError

// PanicError carries a panic recovered from a unit of work.
type PanicError = core.PanicError

// Terminal status constants.
const (
	StatusSucceeded ExecStatus = core.StatusSucceeded
	StatusFailed    ExecStatus = core.StatusFailed
	StatusCancelled ExecStatus = core.StatusCancelled
	StatusPanicked  ExecStatus = core.StatusPanicked
)

// Sentinel errors.
var (
	ErrCancelled = core.ErrCancelled
	ErrRejected  = core.ErrRejected
)

// Convenience constructors and helpers, re-exported.
var (
	NewCall                = core.NewCall
	NewAsyncResult         = core.NewAsyncResult
	NewEventLoop           = core.NewEventLoop
	NewEventLoopWithConfig = core.NewEventLoopWithConfig
	NewTaskExecutor        = core.NewTaskExecutor
	NewPool                = core.NewPool
	NewDeque               = core.NewDeque
	DefaultExecutorConfig  = core.DefaultExecutorConfig
	DefaultPoolConfig      = core.DefaultPoolConfig
	GetCurrentLoop         = core.GetCurrentLoop
	F                      = core.F
)
