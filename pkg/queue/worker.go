// Package queue hosts the concurrent worker pool that claims queued tasks
// and runs the Workflow Execution Engine against them, per §5's
// concurrency model: each worker polls storage's task_queue, claims one
// task at a time with SELECT ... FOR UPDATE SKIP LOCKED, and runs a single
// cooperative engine.Execute call to completion before polling again.
// Grounded on the teacher's pkg/queue worker-pool/poll-loop shape
// (worker.go, pool.go), adapted from an ent-backed alert_session claim to
// storage.DB's task_queue claim and from SessionExecutor to engine.Engine.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/flowforge/orchestrator/pkg/config"
	"github.com/flowforge/orchestrator/pkg/engine"
	"github.com/flowforge/orchestrator/pkg/events"
	"github.com/flowforge/orchestrator/pkg/metrics"
	"github.com/flowforge/orchestrator/pkg/storage"
)

// WorkerStatus is a worker's current activity state, surfaced for health
// reporting.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth is a point-in-time snapshot of one worker.
type WorkerHealth struct {
	ID                string
	Status            WorkerStatus
	CurrentTaskID     string
	TasksProcessed    int
	LastActivity      time.Time
}

// SessionRegistry lets a Worker register/unregister a running task's cancel
// function with its owning WorkerPool, for CancelTask.
type SessionRegistry interface {
	RegisterTask(taskID string, cancel context.CancelFunc)
	UnregisterTask(taskID string)
}

// Worker polls storage for claimable tasks and runs the engine against
// each one it wins.
type Worker struct {
	id     string
	podID  string
	db     *storage.DB
	cfg    *config.QueueConfig
	eng    *engine.Engine
	pool   SessionRegistry

	// publisherFor supplies the Publisher a claimed task's events should be
	// sent to (e.g. wired to an events.Bridge or discarded). May be nil, in
	// which case a throwaway Publisher is used.
	publisherFor func(taskID string) *events.Publisher

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu             sync.RWMutex
	status         WorkerStatus
	currentTaskID  string
	tasksProcessed int
	lastActivity   time.Time
}

// NewWorker creates a queue worker. publisherFor may be nil.
func NewWorker(id, podID string, db *storage.DB, cfg *config.QueueConfig, eng *engine.Engine, pool SessionRegistry, publisherFor func(string) *events.Publisher) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		db:           db,
		cfg:          cfg,
		eng:          eng,
		pool:         pool,
		publisherFor: publisherFor,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker's poll loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop after its current task (if any) finishes.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns a snapshot of the worker's current state.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:             w.id,
		Status:         w.status,
		CurrentTaskID:  w.currentTaskID,
		TasksProcessed: w.tasksProcessed,
		LastActivity:   w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil && !errors.Is(err, storage.ErrNoTaskAvailable) {
				log.Warn("poll failed", "error", err)
			}
			w.sleep(ctx)
		}
	}
}

func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-w.stopCh:
	case <-time.After(w.pollInterval()):
	}
}

// pollInterval jitters PollInterval by up to ±PollIntervalJitter, spreading
// concurrent workers' poll timing so they don't thunder the queue in lockstep.
func (w *Worker) pollInterval() time.Duration {
	if w.cfg.PollIntervalJitter <= 0 {
		return w.cfg.PollInterval
	}
	jitter := time.Duration(rand.Int64N(int64(2*w.cfg.PollIntervalJitter))) - w.cfg.PollIntervalJitter
	d := w.cfg.PollInterval + jitter
	if d < 0 {
		d = 0
	}
	return d
}

func (w *Worker) pollAndProcess(ctx context.Context) error {
	task, err := w.db.ClaimTask(ctx, w.id)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.status = WorkerStatusWorking
	w.currentTaskID = task.TaskID
	w.lastActivity = time.Now()
	w.mu.Unlock()

	taskCtx, cancel := context.WithTimeout(ctx, w.cfg.TaskTimeout)
	defer cancel()

	if w.pool != nil {
		w.pool.RegisterTask(task.TaskID, cancel)
		defer w.pool.UnregisterTask(task.TaskID)
	}

	stopHeartbeat := w.startHeartbeat(taskCtx, task.TaskID)
	defer stopHeartbeat()

	pub := events.NewPublisher()
	if w.publisherFor != nil {
		pub = w.publisherFor(task.TaskID)
	}

	success := w.eng.ExecuteWithPublisher(taskCtx, engine.Request{
		TaskID: task.TaskID,
		UserID: task.UserID,
		Query:  task.Query,
	}, pub)
	pub.Close()

	w.mu.Lock()
	w.status = WorkerStatusIdle
	w.currentTaskID = ""
	w.tasksProcessed++
	w.lastActivity = time.Now()
	w.mu.Unlock()

	slog.Info("task processed", "worker_id", w.id, "task_id", task.TaskID, "success", success)
	return nil
}

// startHeartbeat refreshes the claimed task's heartbeat column on
// HeartbeatInterval until the returned stop function is called, so the
// orphan reaper doesn't reclaim a task a worker is still actively running.
func (w *Worker) startHeartbeat(ctx context.Context, taskID string) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(w.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.db.Heartbeat(ctx, taskID); err != nil {
					slog.Warn("heartbeat failed", "task_id", taskID, "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}
