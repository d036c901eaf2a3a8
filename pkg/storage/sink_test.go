package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/orchestrator/pkg/storage"
	"github.com/flowforge/orchestrator/test/util"
)

// TestPgSinkIdempotentUpserts exercises §8's "save_step_raw/formatted/
// final_result called twice for the same (task, step, content-type)
// produce a single persisted record" invariant against a real Postgres
// schema, grounded on the teacher's testcontainers-backed integration test
// style (test/util.SetupTestDatabase).
func TestPgSinkIdempotentUpserts(t *testing.T) {
	db := util.SetupTestDatabase(t)
	sink := storage.NewPgSink(db)
	ctx := context.Background()

	taskID := "task-1"
	tool := storage.ToolMetadata{MCPName: "coingecko", ToolName: "get_price"}

	require.NoError(t, sink.SaveStepRaw(ctx, taskID, 1, tool, `{"usd":65000}`))
	require.NoError(t, sink.SaveStepRaw(ctx, taskID, 1, tool, `{"usd":65500}`))

	var count int
	err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM task_steps WHERE task_id=$1 AND step_index=1 AND content_type='raw'`, taskID).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	var content string
	err = db.Pool.QueryRow(ctx, `SELECT content FROM task_steps WHERE task_id=$1 AND step_index=1 AND content_type='raw'`, taskID).Scan(&content)
	require.NoError(t, err)
	require.Equal(t, `{"usd":65500}`, content)

	require.NoError(t, sink.SaveFinalResult(ctx, taskID, storage.FinalState{CompletedCount: 1, FailedCount: 0, TerminalSuccess: true}, "done"))
	require.NoError(t, sink.SaveFinalResult(ctx, taskID, storage.FinalState{CompletedCount: 1, FailedCount: 0, TerminalSuccess: true}, "done (retry)"))

	err = db.Pool.QueryRow(ctx, `SELECT count(*) FROM task_results WHERE task_id=$1`, taskID).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

// TestPgSinkRawAndFormattedAreDistinctRecords ensures the content_type
// column keeps raw and formatted step content independent, per the
// WorkflowStep ordering guarantee in §4.G (raw precedes formatted).
func TestPgSinkRawAndFormattedAreDistinctRecords(t *testing.T) {
	db := util.SetupTestDatabase(t)
	sink := storage.NewPgSink(db)
	ctx := context.Background()

	taskID := "task-2"
	tool := storage.ToolMetadata{MCPName: "llm", ToolName: "summarise"}

	require.NoError(t, sink.SaveStepRaw(ctx, taskID, 1, tool, "raw payload"))
	require.NoError(t, sink.SaveStepFormatted(ctx, taskID, 1, tool, "**formatted** payload"))

	var count int
	err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM task_steps WHERE task_id=$1 AND step_index=1`, taskID).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
