package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/orchestrator/test/util"
)

// TestClaimTaskSkipsLockedRows exercises the FOR UPDATE SKIP LOCKED claim
// query that backs §5's "at most one subprocess per (user,service)" style
// exclusivity, but for queued tasks: two claimants never receive the same
// row.
func TestClaimTaskSkipsLockedRows(t *testing.T) {
	db := util.SetupTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.Enqueue(ctx, "task-a", "user-1", "show me current BTC price"))
	require.NoError(t, db.Enqueue(ctx, "task-b", "user-1", "compare BTC and ETH"))

	first, err := db.ClaimTask(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := db.ClaimTask(ctx, "worker-2")
	require.NoError(t, err)
	require.NotNil(t, second)

	require.NotEqual(t, first.TaskID, second.TaskID)
}
