package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNoTaskAvailable is returned by ClaimTask when the queue is empty.
var ErrNoTaskAvailable = errors.New("storage: no queued task available")

// QueuedTask is one row claimed from task_queue.
type QueuedTask struct {
	TaskID string
	UserID string
	Query  string
}

// Enqueue inserts a new queued task.
func (db *DB) Enqueue(ctx context.Context, taskID, userID, query string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO task_queue (task_id, user_id, query, status) VALUES ($1, $2, $3, 'queued')
	`, taskID, userID, query)
	return err
}

// ClaimTask claims the oldest queued task for workerID, using
// SELECT ... FOR UPDATE SKIP LOCKED so concurrent workers never claim the
// same row — grounded on pkg/queue/worker.go's claim-and-update pattern.
func (db *DB) ClaimTask(ctx context.Context, workerID string) (*QueuedTask, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var t QueuedTask
	row := tx.QueryRow(ctx, `
		SELECT task_id, user_id, query FROM task_queue
		WHERE status = 'queued'
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`)
	if err := row.Scan(&t.TaskID, &t.UserID, &t.Query); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoTaskAvailable
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE task_queue SET status = 'claimed', claimed_by = $1, claimed_at = now(), heartbeat_at = now()
		WHERE task_id = $2
	`, workerID, t.TaskID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &t, nil
}

// Heartbeat refreshes a claimed task's heartbeat so the orphan reaper
// doesn't reclaim it out from under a live worker.
func (db *DB) Heartbeat(ctx context.Context, taskID string) error {
	_, err := db.Pool.Exec(ctx, `UPDATE task_queue SET heartbeat_at = now() WHERE task_id = $1`, taskID)
	return err
}

// ReclaimOrphans resets to 'queued' any claimed task whose heartbeat is
// older than threshold — the worker that claimed it is presumed dead.
func (db *DB) ReclaimOrphans(ctx context.Context, threshold time.Duration) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE task_queue SET status = 'queued', claimed_by = NULL, claimed_at = NULL
		WHERE status = 'claimed' AND heartbeat_at < now() - $1::interval
	`, threshold.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
