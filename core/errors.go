package core

import (
	"errors"
	"fmt"
)

// ErrCancelled is reported by AsyncResult.Get when the unit of work was
// cancelled before it ever ran.
var ErrCancelled = errors.New("guithread: result cancelled before execution")

// ErrRejected is reported when a pool or loop refuses new work, typically
// because it is not running.
var ErrRejected = errors.New("guithread: submission rejected")

// ExecutionError wraps a failure produced by a unit of work. The original
// failure is reachable through errors.Is / errors.As via Unwrap.
type ExecutionError struct {
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("guithread: task failed: %v", e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// PanicError carries a panic recovered from a unit of work, including the
// stack captured at recovery time. It travels as the Cause of an
// ExecutionError.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("guithread: task panicked: %v", e.Value)
}
