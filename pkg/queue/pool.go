package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tarsy-project/tarsy-core/pkg/config"
	"github.com/tarsy-project/tarsy-core/pkg/hooks"
	"github.com/tarsy-project/tarsy-core/pkg/metrics"
	"github.com/tarsy-project/tarsy-core/pkg/model"
	"github.com/tarsy-project/tarsy-core/pkg/store"
)

// WorkerPool manages a replica's fleet of queue workers plus the orphan
// sweeper that runs alongside them.
type WorkerPool struct {
	podID   string
	store   store.Store
	config  *config.QueueConfig
	runner  ChainRunner
	runs    RunRegistry
	notify  *hooks.Dispatcher
	metrics *metrics.Collector
	workers []*Worker

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	started bool
	orphans orphanState
}

// NewWorkerPool builds a pool. notify may be nil (session lifecycle events
// and Slack notifications are skipped).
func NewWorkerPool(podID string, st store.Store, cfg *config.QueueConfig, runner ChainRunner, runs RunRegistry, notify *hooks.Dispatcher) *WorkerPool {
	return &WorkerPool{
		podID:   podID,
		store:   st,
		config:  cfg,
		runner:  runner,
		runs:    runs,
		notify:  notify,
		workers: make([]*Worker, 0, cfg.WorkerCount),
		stopCh:  make(chan struct{}),
	}
}

// SetMetrics attaches m so Health and every worker's session-completion
// report their observations to it. Call before Start; m may be nil (the
// default), in which case observations are skipped.
func (p *WorkerPool) SetMetrics(m *metrics.Collector) { p.metrics = m }

// Start spawns the configured worker goroutines plus the orphan sweeper.
// Safe to call once; a second call is a no-op.
func (p *WorkerPool) Start(ctx context.Context) {
	if p.started {
		slog.Warn("queue: worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return
	}
	p.started = true

	slog.Info("queue: starting worker pool", "pod_id", p.podID, "worker_count", p.config.WorkerCount)
	for i := 0; i < p.config.WorkerCount; i++ {
		w := NewWorker(fmt.Sprintf("%s-worker-%d", p.podID, i), p.podID, p.store, p.config, p.runner, p.runs, p.notify)
		w.SetMetrics(p.metrics)
		p.workers = append(p.workers, w)
		w.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanSweep(ctx)
	}()
}

// Stop signals every worker and the orphan sweeper to stop, then waits for
// them to finish their current work (graceful shutdown).
func (p *WorkerPool) Stop() {
	slog.Info("queue: stopping worker pool gracefully", "pod_id", p.podID)
	for _, w := range p.workers {
		w.Stop()
	}
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	slog.Info("queue: worker pool stopped", "pod_id", p.podID)
}

// Health reports the pool's aggregate state for the /healthz endpoint.
func (p *WorkerPool) Health(ctx context.Context) *PoolHealth {
	queueDepth, errQ := p.store.CountPendingSessions(ctx)
	if errQ != nil {
		slog.Error("queue: failed to query queue depth for health check", "pod_id", p.podID, "error", errQ)
	}
	activeSessions, errA := p.store.CountSessionsByStatus(ctx, model.SessionInProgress)
	if errA != nil {
		slog.Error("queue: failed to query active sessions for health check", "pod_id", p.podID, "error", errA)
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, w := range p.workers {
		stats := w.Health()
		workerStats[i] = stats
		if stats.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	dbHealthy := errQ == nil && errA == nil
	var dbError string
	if !dbHealthy {
		if errQ != nil {
			dbError = fmt.Sprintf("queue depth query failed: %v", errQ)
		} else {
			dbError = fmt.Sprintf("active sessions query failed: %v", errA)
		}
	}

	p.orphans.mu.Lock()
	lastScan := p.orphans.lastScan
	recovered := p.orphans.recovered
	p.orphans.mu.Unlock()

	p.metrics.SetPoolHealth(queueDepth, activeSessions, activeWorkers, len(p.workers))

	return &PoolHealth{
		IsHealthy:        len(p.workers) > 0 && dbHealthy && activeSessions <= p.config.MaxConcurrentSessions,
		DBReachable:      dbHealthy,
		DBError:          dbError,
		PodID:            p.podID,
		ActiveWorkers:    activeWorkers,
		TotalWorkers:     len(p.workers),
		ActiveSessions:   activeSessions,
		MaxConcurrent:    p.config.MaxConcurrentSessions,
		QueueDepth:       queueDepth,
		WorkerStats:      workerStats,
		LastOrphanScan:   lastScan,
		OrphansRecovered: recovered,
	}
}
