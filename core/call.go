package core

import (
	"context"
)

// Callable is the unit-of-work function shape. It receives the positional
// and named arguments that were captured when the call was built.
type Callable func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// =============================================================================
// Call: A callable bound to the arguments captured at submission time
// =============================================================================

// Call binds a Callable to fixed arguments. The fields are explicit (rather
// than closed over) so that releasing the unit of work is a plain field
// clear, observable by tests and by the garbage collector.
type Call struct {
	Fn     Callable
	Args   []any
	Kwargs map[string]any
}

// NewCall builds a Call from a callable and its positional arguments.
func NewCall(fn Callable, args ...any) Call {
	return Call{Fn: fn, Args: args}
}

// WithKwargs returns a copy of the call with named arguments attached.
func (c Call) WithKwargs(kwargs map[string]any) Call {
	c.Kwargs = kwargs
	return c
}

// IsZero reports whether the call has been released (or was never set).
func (c Call) IsZero() bool {
	return c.Fn == nil
}

// Invoke runs the callable with the captured arguments.
// Panics inside the callable are not recovered here; recovery belongs to
// whoever owns the outcome (see AsyncResult.Run).
func (c Call) Invoke(ctx context.Context) (any, error) {
	return c.Fn(ctx, c.Args, c.Kwargs)
}

// =============================================================================
// Context Helper
// =============================================================================

type currentLoopKeyType struct{}

var currentLoopKey currentLoopKeyType

// GetCurrentLoop returns the EventLoop executing the current task, or nil
// when the context does not belong to a loop goroutine.
func GetCurrentLoop(ctx context.Context) *EventLoop {
	if v := ctx.Value(currentLoopKey); v != nil {
		return v.(*EventLoop)
	}
	return nil
}
