package config

import "time"

// QueueConfig contains queue and worker pool configuration. These values
// control how queued tasks are polled, claimed, and processed by the
// concurrent worker pool that hosts the Workflow Execution Engine.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines polling for claimable tasks.
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentTasks is the global limit of concurrently executing tasks,
	// enforced by a database COUNT(*) check at claim time.
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks"`

	// PollInterval is the base interval for checking pending tasks.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is random jitter added to PollInterval.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// TaskTimeout is the maximum time a single task may run before the
	// worker gives up on it.
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// GracefulShutdownTimeout bounds how long workers wait for active tasks
	// to finish during shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// HeartbeatInterval is how often a worker updates its claimed task's
	// heartbeat column.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// OrphanThreshold is how long a task can go without a heartbeat before
	// it is considered orphaned and eligible for reclaim.
	OrphanThreshold time.Duration `yaml:"orphan_threshold"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             5,
		MaxConcurrentTasks:      5,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		TaskTimeout:             15 * time.Minute,
		GracefulShutdownTimeout: 15 * time.Minute,
		HeartbeatInterval:       30 * time.Second,
		OrphanThreshold:         5 * time.Minute,
	}
}
