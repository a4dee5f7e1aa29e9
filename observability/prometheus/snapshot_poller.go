package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/example/guithread/core"
)

// ExecutorSnapshotProvider provides current executor stats snapshots.
type ExecutorSnapshotProvider interface {
	Stats() core.ExecutorStats
}

// LoopSnapshotProvider provides current event loop stats snapshots.
type LoopSnapshotProvider interface {
	Stats() core.LoopStats
}

// SnapshotPoller periodically exports executor/loop Stats() snapshots into
// Prometheus gauges. It complements MetricsExporter: the exporter sees
// per-event updates, the poller sees point-in-time state such as worker
// counts and lifetime counters.
type SnapshotPoller struct {
	interval time.Duration

	executorsMu sync.RWMutex
	executors   map[string]ExecutorSnapshotProvider

	loopsMu sync.RWMutex
	loops   map[string]LoopSnapshotProvider

	executorWorkers   *prom.GaugeVec
	executorIdle      *prom.GaugeVec
	executorQueued    *prom.GaugeVec
	executorActive    *prom.GaugeVec
	executorRunning   *prom.GaugeVec
	executorSubmitted *prom.GaugeVec
	executorRejected  *prom.GaugeVec
	executorCompleted *prom.GaugeVec

	loopPending   *prom.GaugeVec
	loopProcessed *prom.GaugeVec
	loopPanics    *prom.GaugeVec
	loopClosed    *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	executorWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "guithread",
		Name:      "executor_workers",
		Help:      "Live workers per executor.",
	}, []string{"executor"})
	executorIdle := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "guithread",
		Name:      "executor_idle",
		Help:      "Idle workers per executor.",
	}, []string{"executor"})
	executorQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "guithread",
		Name:      "executor_queued",
		Help:      "Queued units per executor.",
	}, []string{"executor"})
	executorActive := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "guithread",
		Name:      "executor_active",
		Help:      "Units currently executing per executor.",
	}, []string{"executor"})
	executorRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "guithread",
		Name:      "executor_running",
		Help:      "Executor running state (1=running, 0=stopped).",
	}, []string{"executor"})
	executorSubmitted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "guithread",
		Name:      "executor_submitted_total",
		Help:      "Lifetime submission count snapshot.",
	}, []string{"executor"})
	executorRejected := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "guithread",
		Name:      "executor_rejected_total",
		Help:      "Lifetime rejection count snapshot.",
	}, []string{"executor"})
	executorCompleted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "guithread",
		Name:      "executor_completed_total",
		Help:      "Lifetime completion count snapshot by terminal status.",
	}, []string{"executor", "status"})

	loopPending := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "guithread",
		Name:      "loop_pending",
		Help:      "Queued units per event loop.",
	}, []string{"loop"})
	loopProcessed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "guithread",
		Name:      "loop_processed_total",
		Help:      "Lifetime processed count snapshot per event loop.",
	}, []string{"loop"})
	loopPanics := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "guithread",
		Name:      "loop_panics_total",
		Help:      "Lifetime panic count snapshot per event loop.",
	}, []string{"loop"})
	loopClosed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "guithread",
		Name:      "loop_closed",
		Help:      "Loop closed state (1=closed, 0=open).",
	}, []string{"loop"})

	var err error
	if executorWorkers, err = registerCollector(reg, executorWorkers); err != nil {
		return nil, err
	}
	if executorIdle, err = registerCollector(reg, executorIdle); err != nil {
		return nil, err
	}
	if executorQueued, err = registerCollector(reg, executorQueued); err != nil {
		return nil, err
	}
	if executorActive, err = registerCollector(reg, executorActive); err != nil {
		return nil, err
	}
	if executorRunning, err = registerCollector(reg, executorRunning); err != nil {
		return nil, err
	}
	if executorSubmitted, err = registerCollector(reg, executorSubmitted); err != nil {
		return nil, err
	}
	if executorRejected, err = registerCollector(reg, executorRejected); err != nil {
		return nil, err
	}
	if executorCompleted, err = registerCollector(reg, executorCompleted); err != nil {
		return nil, err
	}
	if loopPending, err = registerCollector(reg, loopPending); err != nil {
		return nil, err
	}
	if loopProcessed, err = registerCollector(reg, loopProcessed); err != nil {
		return nil, err
	}
	if loopPanics, err = registerCollector(reg, loopPanics); err != nil {
		return nil, err
	}
	if loopClosed, err = registerCollector(reg, loopClosed); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:          interval,
		executors:         make(map[string]ExecutorSnapshotProvider),
		loops:             make(map[string]LoopSnapshotProvider),
		executorWorkers:   executorWorkers,
		executorIdle:      executorIdle,
		executorQueued:    executorQueued,
		executorActive:    executorActive,
		executorRunning:   executorRunning,
		executorSubmitted: executorSubmitted,
		executorRejected:  executorRejected,
		executorCompleted: executorCompleted,
		loopPending:       loopPending,
		loopProcessed:     loopProcessed,
		loopPanics:        loopPanics,
		loopClosed:        loopClosed,
	}, nil
}

// AddExecutor adds or replaces an executor snapshot provider by name.
func (p *SnapshotPoller) AddExecutor(name string, provider ExecutorSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "executor")
	p.executorsMu.Lock()
	p.executors[name] = provider
	p.executorsMu.Unlock()
}

// AddLoop adds or replaces a loop snapshot provider by name.
func (p *SnapshotPoller) AddLoop(name string, provider LoopSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "loop")
	p.loopsMu.Lock()
	p.loops[name] = provider
	p.loopsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.executorsMu.RLock()
	for name, provider := range p.executors {
		stats := provider.Stats()
		p.executorWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.executorIdle.WithLabelValues(name).Set(float64(stats.Idle))
		p.executorQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.executorActive.WithLabelValues(name).Set(float64(stats.Active))
		if stats.Running {
			p.executorRunning.WithLabelValues(name).Set(1)
		} else {
			p.executorRunning.WithLabelValues(name).Set(0)
		}
		p.executorSubmitted.WithLabelValues(name).Set(float64(stats.Submitted))
		p.executorRejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.executorCompleted.WithLabelValues(name, string(core.StatusSucceeded)).Set(float64(stats.Succeeded))
		p.executorCompleted.WithLabelValues(name, string(core.StatusFailed)).Set(float64(stats.Failed))
		p.executorCompleted.WithLabelValues(name, string(core.StatusCancelled)).Set(float64(stats.Cancelled))
		p.executorCompleted.WithLabelValues(name, string(core.StatusPanicked)).Set(float64(stats.Panicked))
	}
	p.executorsMu.RUnlock()

	p.loopsMu.RLock()
	for name, provider := range p.loops {
		stats := provider.Stats()
		p.loopPending.WithLabelValues(name).Set(float64(stats.Pending))
		p.loopProcessed.WithLabelValues(name).Set(float64(stats.Processed))
		p.loopPanics.WithLabelValues(name).Set(float64(stats.Panics))
		if stats.Closed {
			p.loopClosed.WithLabelValues(name).Set(1)
		} else {
			p.loopClosed.WithLabelValues(name).Set(0)
		}
	}
	p.loopsMu.RUnlock()
}
