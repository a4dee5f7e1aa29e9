package core

import (
	"context"
	"sync"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// Runnable is anything a pool worker or a loop goroutine can execute.
// AsyncResult implements it; ad-hoc work uses RunnableFunc.
type Runnable interface {
	Run(ctx context.Context)
}

// RunnableFunc adapts a plain function to the Runnable interface.
type RunnableFunc func(ctx context.Context)

func (f RunnableFunc) Run(ctx context.Context) { f(ctx) }

// WorkQueue defines the interface for pluggable queue implementations.
// Implementations must be safe for concurrent use; ordering discipline is
// the implementation's business (the default Deque is FIFO).
type WorkQueue interface {
	Push(r Runnable)
	PushFront(r Runnable)
	Pop() (Runnable, bool)
	Len() int
	IsEmpty() bool
	MaybeCompact()
	Clear() // Clear removes all work from the queue
}

// =============================================================================
// Deque: Unbounded double-ended queue, FIFO by default
// =============================================================================

// Deque is the default work queue: an unbounded slice-backed deque consumed
// FIFO. Popped slots are zeroed so finished work becomes collectable, and
// the backing array shrinks once it is mostly slack.
type Deque struct {
	mu    sync.Mutex
	items []Runnable
}

func NewDeque() *Deque {
	return &Deque{
		items: make([]Runnable, 0, defaultQueueCap),
	}
}

// Push appends to the back of the queue.
func (q *Deque) Push(r Runnable) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, r)
}

// PushFront inserts at the front of the queue, ahead of everything queued
// so far. O(n), intended for rare urgent work, not as the steady state.
func (q *Deque) PushFront(r Runnable) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, nil)
	copy(q.items[1:], q.items)
	q.items[0] = r
}

func (q *Deque) Pop() (Runnable, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	item := q.items[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.items[0] = nil
	q.items = q.items[1:]
	q.maybeCompactLocked()

	return item, true
}

func (q *Deque) MaybeCompact() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.maybeCompactLocked()
}

func (q *Deque) maybeCompactLocked() {
	n := len(q.items)
	c := cap(q.items)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.items = make([]Runnable, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]Runnable, n, newCap)
	copy(newSlice, q.items)
	q.items = newSlice
}

func (q *Deque) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Deque) IsEmpty() bool {
	return q.Len() == 0
}

// Clear removes all work from the queue and releases references
func (q *Deque) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	// Create a new slice to release all runnable references
	q.items = make([]Runnable, 0, defaultQueueCap)
}
