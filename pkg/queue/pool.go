package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flowforge/orchestrator/pkg/config"
	"github.com/flowforge/orchestrator/pkg/engine"
	"github.com/flowforge/orchestrator/pkg/events"
	"github.com/flowforge/orchestrator/pkg/storage"
)

// orphanReclaimInterval is how often the pool checks for orphaned tasks.
// Independent of cfg.OrphanThreshold, which is how stale a task's heartbeat
// must be before it's considered orphaned.
const orphanReclaimInterval = 30 * time.Second

// WorkerPool owns a fixed set of Workers plus the background orphan-reclaim
// loop, for one process. Grounded on the teacher's WorkerPool (pool.go):
// same Start/Stop lifecycle and session cancel registry, targeting
// task_queue claims instead of ent alert sessions.
type WorkerPool struct {
	podID  string
	db     *storage.DB
	cfg    *config.QueueConfig
	eng    *engine.Engine
	publisherFor func(string) *events.Publisher

	workers  []*Worker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool

	mu          sync.RWMutex
	activeTasks map[string]context.CancelFunc
}

// NewWorkerPool creates a pool of cfg.WorkerCount workers, none started yet.
func NewWorkerPool(podID string, db *storage.DB, cfg *config.QueueConfig, eng *engine.Engine, publisherFor func(string) *events.Publisher) *WorkerPool {
	return &WorkerPool{
		podID:        podID,
		db:           db,
		cfg:          cfg,
		eng:          eng,
		publisherFor: publisherFor,
		stopCh:       make(chan struct{}),
		activeTasks:  make(map[string]context.CancelFunc),
	}
}

// Start spawns every worker and the orphan-reclaim loop. Safe to call only
// once; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	if p.started {
		slog.Warn("worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return
	}
	p.started = true

	slog.Info("starting worker pool", "pod_id", p.podID, "worker_count", p.cfg.WorkerCount)
	for i := 0; i < p.cfg.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		w := NewWorker(workerID, p.podID, p.db, p.cfg, p.eng, p, p.publisherFor)
		p.workers = append(p.workers, w)
		w.Start(ctx)
	}

	p.wg.Add(1)
	go p.runOrphanReclaim(ctx)
}

// Stop signals every worker to stop, letting each finish its current task,
// then stops the orphan-reclaim loop.
func (p *WorkerPool) Stop() {
	slog.Info("stopping worker pool")
	for _, w := range p.workers {
		w.Stop()
	}
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	slog.Info("worker pool stopped")
}

// RegisterTask implements SessionRegistry.
func (p *WorkerPool) RegisterTask(taskID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeTasks[taskID] = cancel
}

// UnregisterTask implements SessionRegistry.
func (p *WorkerPool) UnregisterTask(taskID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeTasks, taskID)
}

// CancelTask cancels a running task's context if it is owned by this pool.
// Returns true if found.
func (p *WorkerPool) CancelTask(taskID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cancel, ok := p.activeTasks[taskID]
	if ok {
		cancel()
	}
	return ok
}

// Health reports every worker's current status.
func (p *WorkerPool) Health() []WorkerHealth {
	out := make([]WorkerHealth, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w.Health())
	}
	return out
}

func (p *WorkerPool) runOrphanReclaim(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(orphanReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.db.ReclaimOrphans(ctx, p.cfg.OrphanThreshold)
			if err != nil {
				slog.Warn("orphan reclaim failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("reclaimed orphaned tasks", "count", n)
			}
		}
	}
}
