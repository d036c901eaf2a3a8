package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flowforge/orchestrator/pkg/config"
)

func TestWorkerPollIntervalWithinJitterBounds(t *testing.T) {
	cfg := &config.QueueConfig{
		PollInterval:       time.Second,
		PollIntervalJitter: 200 * time.Millisecond,
	}
	w := &Worker{cfg: cfg}

	for i := 0; i < 50; i++ {
		d := w.pollInterval()
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}

func TestWorkerPollIntervalNoJitter(t *testing.T) {
	cfg := &config.QueueConfig{
		PollInterval:       time.Second,
		PollIntervalJitter: 0,
	}
	w := &Worker{cfg: cfg}

	assert.Equal(t, time.Second, w.pollInterval())
}

func TestWorkerHealthReportsIdleBeforeAnyTask(t *testing.T) {
	w := NewWorker("w1", "pod1", nil, &config.QueueConfig{}, nil, nil, nil)

	health := w.Health()
	assert.Equal(t, "w1", health.ID)
	assert.Equal(t, WorkerStatusIdle, health.Status)
	assert.Zero(t, health.TasksProcessed)
	assert.Empty(t, health.CurrentTaskID)
}

func TestWorkerStopBeforeStartDoesNotBlock(t *testing.T) {
	w := NewWorker("w1", "pod1", nil, &config.QueueConfig{}, nil, nil, nil)
	assert.NotPanics(t, func() { w.Stop() })
}
