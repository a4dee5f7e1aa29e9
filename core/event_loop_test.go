package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestEventLoop_SerialFIFO tests ordering and goroutine affinity
// Main test items:
// 1. Posted work runs in FIFO order
// 2. Every unit runs on the same dedicated goroutine
// 3. That goroutine is not the poster's
func TestEventLoop_SerialFIFO(t *testing.T) {
	l := NewEventLoop("fifo-loop")
	defer l.Stop()

	const count = 100
	posterID := goroutineID()

	var order []int
	var loopIDs []uint64
	for i := 0; i < count; i++ {
		id := i
		if err := l.PostFunc(func(ctx context.Context) {
			order = append(order, id)
			loopIDs = append(loopIDs, goroutineID())
		}); err != nil {
			t.Fatalf("PostFunc(%d) error = %v", id, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}

	if len(order) != count {
		t.Fatalf("executed %d units, want %d", len(order), count)
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("execution %d was unit %d, want %d", i, got, i)
		}
	}

	for i, id := range loopIDs {
		if id != loopIDs[0] {
			t.Fatalf("unit %d ran on goroutine %d, others on %d", i, id, loopIDs[0])
		}
	}
	if loopIDs[0] == posterID {
		t.Error("loop shares the poster's goroutine")
	}
}

// TestEventLoop_IsCurrent tests goroutine identity detection
// Main test items:
// 1. IsCurrent is false on an arbitrary goroutine
// 2. IsCurrent is true inside a unit running on the loop
func TestEventLoop_IsCurrent(t *testing.T) {
	l := NewEventLoop("current-loop")
	defer l.Stop()

	if l.IsCurrent() {
		t.Error("IsCurrent() = true on the test goroutine, want false")
	}

	inside := make(chan bool, 1)
	l.PostFunc(func(ctx context.Context) {
		inside <- l.IsCurrent()
	})

	select {
	case got := <-inside:
		if !got {
			t.Error("IsCurrent() = false inside a posted unit, want true")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("posted unit never ran")
	}
}

// TestEventLoop_RunAndWait tests the blocking post
// Main test items:
// 1. RunAndWait returns only after the unit has run
// 2. Calling RunAndWait from a unit already on the loop runs inline
func TestEventLoop_RunAndWait(t *testing.T) {
	l := NewEventLoop("wait-loop")
	defer l.Stop()

	var value int
	err := l.RunAndWait(context.Background(), RunnableFunc(func(ctx context.Context) {
		value = 42
	}))
	if err != nil {
		t.Fatalf("RunAndWait() error = %v", err)
	}
	if value != 42 {
		t.Errorf("value = %d after RunAndWait, want 42", value)
	}

	// Nested call from the loop goroutine must not deadlock.
	var nested bool
	err = l.RunAndWait(context.Background(), RunnableFunc(func(ctx context.Context) {
		_ = l.RunAndWait(ctx, RunnableFunc(func(context.Context) {
			nested = true
		}))
	}))
	if err != nil {
		t.Fatalf("outer RunAndWait() error = %v", err)
	}
	if !nested {
		t.Error("nested RunAndWait did not run inline")
	}
}

// TestEventLoop_RunAndWaitTimeout tests caller-side expiry
// Main test items:
// 1. RunAndWait gives up when the context expires while the loop is busy
// 2. The loop keeps serving afterwards
func TestEventLoop_RunAndWaitTimeout(t *testing.T) {
	l := NewEventLoop("timeout-loop")
	defer l.Stop()

	release := make(chan struct{})
	l.PostFunc(func(ctx context.Context) {
		<-release
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := l.RunAndWait(ctx, RunnableFunc(func(context.Context) {}))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RunAndWait() error = %v, want DeadlineExceeded", err)
	}

	close(release)

	var served bool
	if err := l.RunAndWait(context.Background(), RunnableFunc(func(context.Context) {
		served = true
	})); err != nil {
		t.Fatalf("RunAndWait() after timeout error = %v", err)
	}
	if !served {
		t.Error("loop stopped serving after a caller timeout")
	}
}

// TestEventLoop_RunAndWaitRepanic tests panic transfer to the caller
// Main test items:
// 1. A panic in the unit is re-raised on the calling goroutine
// 2. The original panic value is preserved
// 3. The loop survives
func TestEventLoop_RunAndWaitRepanic(t *testing.T) {
	l := NewEventLoop("repanic-loop")
	defer l.Stop()

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		_ = l.RunAndWait(context.Background(), RunnableFunc(func(context.Context) {
			panic("crash value")
		}))
	}()

	if recovered != "crash value" {
		t.Errorf("recovered = %v, want %q", recovered, "crash value")
	}

	var alive bool
	if err := l.RunAndWait(context.Background(), RunnableFunc(func(context.Context) {
		alive = true
	})); err != nil {
		t.Fatalf("RunAndWait() after panic error = %v", err)
	}
	if !alive {
		t.Error("loop did not survive the panic")
	}
}

// TestEventLoop_RunAndWaitLoopStopped tests stop racing a blocked waiter
// Main test items:
// 1. Stop while a waiter's unit is still queued unblocks the waiter
// 2. The waiter gets an error wrapping ErrRejected, not a hang
func TestEventLoop_RunAndWaitLoopStopped(t *testing.T) {
	l := NewEventLoop("stopping-loop")

	// Occupy the loop until Stop cancels the run context.
	l.PostFunc(func(ctx context.Context) {
		<-ctx.Done()
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- l.RunAndWait(context.Background(), RunnableFunc(func(context.Context) {}))
	}()

	// Give the waiter time to enqueue behind the blocker.
	time.Sleep(50 * time.Millisecond)
	l.Stop()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrRejected) {
			t.Errorf("RunAndWait() error = %v, want ErrRejected in chain", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunAndWait did not unblock after Stop")
	}
}

// TestEventLoop_PostAfterShutdown tests intake rejection
// Main test items:
// 1. PostTask after Shutdown returns ErrRejected
// 2. The rejected handler and metrics see the rejection with its reason
func TestEventLoop_PostAfterShutdown(t *testing.T) {
	metrics := NewTestMetrics()
	rejected := NewTestRejectedTaskHandler()
	l := NewEventLoopWithConfig("rejecting-loop", &LoopConfig{
		Metrics:             metrics,
		RejectedTaskHandler: rejected,
	})
	defer l.Stop()

	l.Shutdown()

	err := l.PostFunc(func(context.Context) {})
	if !errors.Is(err, ErrRejected) {
		t.Errorf("PostFunc() after Shutdown = %v, want ErrRejected", err)
	}

	calls := rejected.GetRejections()
	if len(calls) != 1 {
		t.Fatalf("rejected handler saw %d calls, want 1", len(calls))
	}
	if calls[0].Source != "rejecting-loop" || calls[0].Reason != "closed" {
		t.Errorf("rejection = %+v, want source rejecting-loop reason closed", calls[0])
	}
	if len(metrics.GetRejections()) != 1 {
		t.Errorf("metrics saw %d rejections, want 1", len(metrics.GetRejections()))
	}
}

// TestEventLoop_ShutdownDrainsBacklog tests graceful close
// Main test items:
// 1. Work queued before Shutdown still executes
// 2. IsClosed flips immediately, WaitShutdown unblocks
func TestEventLoop_ShutdownDrainsBacklog(t *testing.T) {
	l := NewEventLoop("draining-loop")

	const count = 50
	var executed atomic.Int32
	for i := 0; i < count; i++ {
		l.PostFunc(func(ctx context.Context) {
			time.Sleep(time.Millisecond)
			executed.Add(1)
		})
	}

	l.Shutdown()

	if !l.IsClosed() {
		t.Error("IsClosed() = false after Shutdown, want true")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.WaitShutdown(ctx); err != nil {
		t.Fatalf("WaitShutdown() error = %v", err)
	}

	if !eventually(5*time.Second, func() bool { return executed.Load() == count }) {
		t.Errorf("executed %d units after Shutdown, want %d (backlog must drain)", executed.Load(), count)
	}
}

// TestEventLoop_StopDropsBacklog tests immediate close
// Main test items:
// 1. Stop ends the loop at the next unit boundary
// 2. Queued units are dropped, not executed
// 3. The queue is released
func TestEventLoop_StopDropsBacklog(t *testing.T) {
	l := NewEventLoop("dropping-loop")

	started := make(chan struct{})
	l.PostFunc(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started

	var executed atomic.Int32
	for i := 0; i < 50; i++ {
		l.PostFunc(func(ctx context.Context) {
			executed.Add(1)
		})
	}

	l.Stop()

	if got := executed.Load(); got != 0 {
		t.Errorf("executed %d queued units after Stop, want 0", got)
	}
	if got := l.PendingCount(); got != 0 {
		t.Errorf("PendingCount() = %d after Stop, want 0", got)
	}
}

// TestEventLoop_WaitIdle tests the draining barrier
// Main test items:
// 1. WaitIdle returns only after everything posted before it has run
// 2. WaitIdle on a closed loop errors instead of hanging
func TestEventLoop_WaitIdle(t *testing.T) {
	l := NewEventLoop("idle-loop")
	defer l.Stop()

	const count = 20
	var executed atomic.Int32
	for i := 0; i < count; i++ {
		l.PostFunc(func(ctx context.Context) {
			time.Sleep(time.Millisecond)
			executed.Add(1)
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}
	if got := executed.Load(); got != count {
		t.Errorf("executed = %d after WaitIdle, want %d", got, count)
	}

	l.Shutdown()
	if err := l.WaitIdle(context.Background()); err == nil {
		t.Error("WaitIdle() on a closed loop = nil, want error")
	}
}

// TestEventLoop_FlushAsync tests the non-blocking barrier
// Main test items:
// 1. The callback fires after previously posted work
// 2. The callback runs on the loop goroutine
func TestEventLoop_FlushAsync(t *testing.T) {
	l := NewEventLoop("flush-loop")
	defer l.Stop()

	var beforeFlush atomic.Bool
	l.PostFunc(func(ctx context.Context) {
		time.Sleep(10 * time.Millisecond)
		beforeFlush.Store(true)
	})

	type flushResult struct {
		sawPrior bool
		onLoop   bool
	}
	done := make(chan flushResult, 1)
	l.FlushAsync(func() {
		done <- flushResult{sawPrior: beforeFlush.Load(), onLoop: l.IsCurrent()}
	})

	select {
	case got := <-done:
		if !got.sawPrior {
			t.Error("flush callback ran before prior work completed")
		}
		if !got.onLoop {
			t.Error("flush callback ran off the loop goroutine")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("flush callback never fired")
	}
}

// TestEventLoop_WaitShutdownFromTask tests shutdown initiated on the loop
// Main test items:
// 1. A unit running on the loop may call Shutdown without deadlocking
// 2. External WaitShutdown callers unblock
// 3. WaitShutdown respects its context
func TestEventLoop_WaitShutdownFromTask(t *testing.T) {
	l := NewEventLoop("self-shutdown-loop")

	waitErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		waitErr <- l.WaitShutdown(ctx)
	}()

	l.PostFunc(func(ctx context.Context) {
		l.Shutdown()
	})

	select {
	case err := <-waitErr:
		if err != nil {
			t.Errorf("WaitShutdown() error = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("WaitShutdown never unblocked")
	}

	// A fresh loop with an expired context reports the expiry.
	l2 := NewEventLoop("patient-loop")
	defer l2.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l2.WaitShutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitShutdown() error = %v, want DeadlineExceeded", err)
	}
}

// TestEventLoop_PanicRecovery tests loop survival of panicking units
// Main test items:
// 1. A panicking unit does not kill the loop
// 2. The panic handler receives source, panic value and stack
// 3. The panic counter and metrics advance
func TestEventLoop_PanicRecovery(t *testing.T) {
	handler := NewTestPanicHandler()
	metrics := NewTestMetrics()
	l := NewEventLoopWithConfig("panicky-loop", &LoopConfig{
		PanicHandler: handler,
		Metrics:      metrics,
	})
	defer l.Stop()

	l.PostFunc(func(ctx context.Context) {
		panic("loop panic")
	})

	if !eventually(2*time.Second, func() bool { return handler.CallCount() == 1 }) {
		t.Fatalf("panic handler calls = %d, want 1", handler.CallCount())
	}

	call := handler.GetCalls()[0]
	if call.Source != "panicky-loop" {
		t.Errorf("call.Source = %q, want %q", call.Source, "panicky-loop")
	}
	if call.WorkerID != -1 {
		t.Errorf("call.WorkerID = %d, want -1 (loops have no worker ids)", call.WorkerID)
	}
	if call.PanicInfo != "loop panic" {
		t.Errorf("call.PanicInfo = %v, want %q", call.PanicInfo, "loop panic")
	}

	if got := l.Stats().Panics; got != 1 {
		t.Errorf("Stats().Panics = %d, want 1", got)
	}
	if len(metrics.GetPanics()) != 1 {
		t.Errorf("metrics saw %d panics, want 1", len(metrics.GetPanics()))
	}

	// Still serving
	var alive bool
	if err := l.RunAndWait(context.Background(), RunnableFunc(func(context.Context) {
		alive = true
	})); err != nil || !alive {
		t.Errorf("loop not serving after panic: err = %v, alive = %v", err, alive)
	}
}

// TestEventLoop_Stats tests the snapshot
// Main test items:
// 1. Processed counts executed units
// 2. Closed tracks the lifecycle
func TestEventLoop_Stats(t *testing.T) {
	l := NewEventLoop("stats-loop")

	if s := l.Stats(); s.Name != "stats-loop" || s.Closed || s.Processed != 0 {
		t.Errorf("fresh Stats() = %+v, want name stats-loop, open, zero processed", s)
	}

	const count = 5
	for i := 0; i < count; i++ {
		l.PostFunc(func(ctx context.Context) {})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}

	// The barrier itself is also processed.
	if got := l.Stats().Processed; got != count+1 {
		t.Errorf("Stats().Processed = %d, want %d", got, count+1)
	}

	l.Stop()
	if !l.Stats().Closed {
		t.Error("Stats().Closed = false after Stop, want true")
	}
}

// TestEventLoop_ConcurrentPost tests many posters
// Main test items:
// 1. Posts from many goroutines all execute exactly once
// 2. Execution stays serial on the loop goroutine
func TestEventLoop_ConcurrentPost(t *testing.T) {
	l := NewEventLoop("busy-loop")
	defer l.Stop()

	const posters = 8
	const perPoster = 50

	var executed atomic.Int32
	var inFlight atomic.Int32
	var overlapped atomic.Bool

	var wg sync.WaitGroup
	for p := 0; p < posters; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perPoster; i++ {
				l.PostFunc(func(ctx context.Context) {
					if inFlight.Add(1) > 1 {
						overlapped.Store(true)
					}
					executed.Add(1)
					inFlight.Add(-1)
				})
			}
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}

	if got := executed.Load(); got != posters*perPoster {
		t.Errorf("executed = %d, want %d", got, posters*perPoster)
	}
	if overlapped.Load() {
		t.Error("units overlapped on a serial loop")
	}
}

// TestEventLoop_GetCurrentLoop tests loop discovery through the context
// Main test items:
// 1. Units can find their loop via GetCurrentLoop
// 2. Foreign contexts carry no loop
func TestEventLoop_GetCurrentLoop(t *testing.T) {
	l := NewEventLoop("discoverable-loop")
	defer l.Stop()

	found := make(chan *EventLoop, 1)
	l.PostFunc(func(ctx context.Context) {
		found <- GetCurrentLoop(ctx)
	})

	select {
	case got := <-found:
		if got != l {
			t.Errorf("GetCurrentLoop() inside unit = %v, want the owning loop", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("posted unit never ran")
	}

	if got := GetCurrentLoop(context.Background()); got != nil {
		t.Errorf("GetCurrentLoop(Background()) = %v, want nil", got)
	}
}

// TestEventLoop_AsyncResultMetrics tests status-aware execution metrics
// Main test items:
// 1. A posted deferred result reports its own terminal status
// 2. The metric carries the loop as source
func TestEventLoop_AsyncResultMetrics(t *testing.T) {
	metrics := NewTestMetrics()
	l := NewEventLoopWithConfig("metered-loop", &LoopConfig{Metrics: metrics})
	defer l.Stop()

	r := NewAsyncResult(NewCall(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return nil, errors.New("deliberate")
	}))
	if err := l.PostTask(r); err != nil {
		t.Fatalf("PostTask() error = %v", err)
	}

	if _, err := r.GetTimeout(2 * time.Second); err == nil {
		t.Fatal("Get() = nil error, want failure")
	}

	ok := eventually(2*time.Second, func() bool {
		for _, e := range metrics.GetExecutions() {
			if e.Source == "metered-loop" && e.Status == StatusFailed {
				return true
			}
		}
		return false
	})
	if !ok {
		t.Errorf("metrics executions = %+v, want one failed from metered-loop", metrics.GetExecutions())
	}
}
