package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRegisterAndCancelTask(t *testing.T) {
	pool := &WorkerPool{
		activeTasks: make(map[string]context.CancelFunc),
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool.RegisterTask("task-1", cancel)

	assert.True(t, pool.CancelTask("task-1"))
	assert.Error(t, ctx.Err())

	assert.False(t, pool.CancelTask("unknown"))
}

func TestPoolUnregisterTask(t *testing.T) {
	pool := &WorkerPool{
		activeTasks: make(map[string]context.CancelFunc),
	}

	_, cancel := context.WithCancel(context.Background())
	pool.RegisterTask("task-1", cancel)
	assert.True(t, pool.CancelTask("task-1"))

	pool.UnregisterTask("task-1")
	assert.False(t, pool.CancelTask("task-1"))
}

func TestPoolStopTwiceDoesNotPanic(t *testing.T) {
	pool := &WorkerPool{
		stopCh:      make(chan struct{}),
		activeTasks: make(map[string]context.CancelFunc),
	}

	pool.Stop()
	assert.NotPanics(t, func() { pool.Stop() })
}

func TestPoolRegisterTaskConcurrency(t *testing.T) {
	pool := &WorkerPool{
		activeTasks: make(map[string]context.CancelFunc),
	}

	const numTasks = 100
	for i := 0; i < numTasks; i++ {
		go func(id int) {
			_, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.RegisterTask(fmt.Sprintf("task-%d", id), cancel)
		}(i)
	}

	require.Eventually(t, func() bool {
		pool.mu.RLock()
		defer pool.mu.RUnlock()
		return len(pool.activeTasks) == numTasks
	}, time.Second, 10*time.Millisecond)
}

func TestPoolCancelNonExistentTask(t *testing.T) {
	pool := &WorkerPool{
		activeTasks: make(map[string]context.CancelFunc),
	}
	assert.False(t, pool.CancelTask("nonexistent"))
}

func TestPoolUnregisterNonExistentTaskDoesNotPanic(t *testing.T) {
	pool := &WorkerPool{
		activeTasks: make(map[string]context.CancelFunc),
	}
	assert.NotPanics(t, func() {
		pool.UnregisterTask("nonexistent")
	})
}

func TestPoolRegisterSameTaskTwiceOverwritesCancel(t *testing.T) {
	pool := &WorkerPool{
		activeTasks: make(map[string]context.CancelFunc),
	}

	ctx1, cancel1 := context.WithCancel(context.Background())
	defer cancel1()
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()

	pool.RegisterTask("task-1", cancel1)
	pool.RegisterTask("task-1", cancel2)

	assert.True(t, pool.CancelTask("task-1"))
	assert.Error(t, ctx2.Err())
	assert.NoError(t, ctx1.Err())
}

func TestPoolHealthEmptyBeforeStart(t *testing.T) {
	pool := &WorkerPool{
		activeTasks: make(map[string]context.CancelFunc),
	}
	assert.Empty(t, pool.Health())
}
