package core

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"
	"time"
)

const defaultHistoryCapacity = 100

// ExecutionRecord captures one finished (or cancelled) unit of work.
type ExecutionRecord struct {
	ID         TaskID
	Name       string
	Source     string
	WorkerID   int // -1 when the unit ran on a loop goroutine
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Status     ExecStatus
	Err        string // failure message, empty on success
}

// PoolStats is a point-in-time snapshot of a worker pool.
type PoolStats struct {
	Name    string
	Workers int
	Idle    int
	Queued  int
	Active  int
	Running bool
}

// ExecutorStats extends the pool snapshot with lifetime counters.
type ExecutorStats struct {
	PoolStats
	Submitted int64
	Succeeded int64
	Failed    int64
	Cancelled int64
	Panicked  int64
	Rejected  int64
}

// LoopStats is a point-in-time snapshot of an event loop.
type LoopStats struct {
	Name      string
	Pending   int
	Processed int64
	Panics    int64
	Closed    bool
}

// =============================================================================
// executionHistory: Fixed-capacity ring of recent execution records
// =============================================================================

type executionHistory struct {
	mu    sync.Mutex
	items []ExecutionRecord
	head  int
	count int
}

func newExecutionHistory(capacity int) executionHistory {
	if capacity < 1 {
		capacity = defaultHistoryCapacity
	}
	return executionHistory{items: make([]ExecutionRecord, capacity)}
}

func (h *executionHistory) Add(record ExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) == 0 {
		return
	}

	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// Recent returns up to limit records, newest first. limit <= 0 means all.
func (h *executionHistory) Recent(limit int) []ExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}

	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]ExecutionRecord, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

func (h *executionHistory) Last() (ExecutionRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return ExecutionRecord{}, false
	}

	idx := (h.head - 1 + len(h.items)) % len(h.items)
	return h.items[idx], true
}

// =============================================================================
// Name resolution
// =============================================================================

// resolveCallableName derives a diagnostic name for an unnamed callable
// from its function symbol. Falls back to "anonymous".
func resolveCallableName(fn any) string {
	if fn == nil {
		return "anonymous"
	}

	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return "anonymous"
	}

	pc := v.Pointer()
	if pc == 0 {
		return "anonymous"
	}

	f := runtime.FuncForPC(pc)
	if f == nil {
		return "anonymous"
	}

	name := f.Name()
	if name == "" {
		return "anonymous"
	}
	return name
}

// resolveRunnableName names an arbitrary Runnable for history records.
func resolveRunnableName(r Runnable) string {
	switch v := r.(type) {
	case *AsyncResult:
		if n := v.Name(); n != "" {
			return n
		}
		return fmt.Sprintf("task-%s", v.ID())
	case RunnableFunc:
		return resolveCallableName(v)
	default:
		return "anonymous"
	}
}
