package core

import (
	"fmt"
	"time"
)

// =============================================================================
// ExecStatus: Terminal states a unit of work can report
// =============================================================================

// ExecStatus labels the terminal state of an executed unit. The values
// double as metric label values, so keep them lowercase and stable.
type ExecStatus string

const (
	StatusSucceeded ExecStatus = "succeeded"
	StatusFailed    ExecStatus = "failed"
	StatusCancelled ExecStatus = "cancelled"
	StatusPanicked  ExecStatus = "panicked"
)

// =============================================================================
// PanicHandler: Interface for handling panics that escape a unit of work
// =============================================================================

// PanicHandler is called when a runnable panics on a worker or on the loop.
// Implementations must be safe for concurrent use.
type PanicHandler interface {
	// HandlePanic receives the source (pool or loop name), the worker ID
	// (-1 for loop goroutines), the recovered value and the stack captured
	// at recovery time.
	HandlePanic(source string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler prints panic information to stdout.
type DefaultPanicHandler struct{}

func (h *DefaultPanicHandler) HandlePanic(source string, workerID int, panicInfo any, stackTrace []byte) {
	if workerID >= 0 {
		fmt.Printf("[Worker %d @ %s] Panic: %v\nStack trace:\n%s",
			workerID, source, panicInfo, stackTrace)
	} else {
		fmt.Printf("[Loop %s] Panic: %v\nStack trace:\n%s",
			source, panicInfo, stackTrace)
	}
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics receives execution events from pools, executors and loops.
// Implementations can forward them to monitoring systems (Prometheus,
// StatsD, etc.). Methods must be fast and non-blocking; they run on worker
// and loop goroutines.
type Metrics interface {
	// RecordExecution records one finished unit: where it ran, how it
	// ended, and how long the body took.
	RecordExecution(source string, status ExecStatus, duration time.Duration)

	// RecordQueueDepth records the current queue depth for a source.
	RecordQueueDepth(source string, depth int)

	// RecordPanic records a panic that escaped a unit of work.
	RecordPanic(source string)

	// RecordRejected records a refused submission (e.g. during shutdown).
	RecordRejected(source string, reason string)
}

// NilMetrics is the no-op default.
type NilMetrics struct{}

func (m *NilMetrics) RecordExecution(source string, status ExecStatus, duration time.Duration) {}
func (m *NilMetrics) RecordQueueDepth(source string, depth int)                               {}
func (m *NilMetrics) RecordPanic(source string)                                               {}
func (m *NilMetrics) RecordRejected(source string, reason string)                             {}

// =============================================================================
// RejectedTaskHandler: Interface for handling refused submissions
// =============================================================================

// RejectedTaskHandler is called when a pool or loop refuses a submission,
// which happens when the target is not running (or is shutting down).
// Implementations must be safe for concurrent use.
type RejectedTaskHandler interface {
	HandleRejectedTask(source string, reason string)
}

// DefaultRejectedTaskHandler logs refused submissions.
type DefaultRejectedTaskHandler struct{}

func (h *DefaultRejectedTaskHandler) HandleRejectedTask(source string, reason string) {
	fmt.Printf("[%s] Task rejected: %s\n", source, reason)
}
